package models

// Price is a monetary value as exchanged with the frontend. Amount is nil
// when the upstream price could not be parsed.
type Price struct {
	Amount    *float64 `json:"amount"`
	Currency  string   `json:"currency,omitempty"`
	Formatted string   `json:"formatted,omitempty"`
}

// Deal is one normalized vendor offer for a product, regardless of which
// provider produced it.
type Deal struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Vendor       string   `json:"vendor"`
	Price        Price    `json:"price"`
	TotalPrice   Price    `json:"totalPrice"`
	ShippingCost *float64 `json:"shippingCost"`
	ShippingText string   `json:"shippingText,omitempty"`
	InStock      *bool    `json:"inStock"`
	StockStatus  string   `json:"stockStatus,omitempty"`
	Link         string   `json:"link,omitempty"`
	Image        string   `json:"image,omitempty"`
	Rating       *float64 `json:"rating"`
	ReviewsCount *int     `json:"reviewsCount"`
	BestPrice    bool     `json:"bestPrice"`
	IsBestPrice  bool     `json:"isBestPrice"`
	Source       string   `json:"source"`
	ProductID    string   `json:"productId,omitempty"`
	WeightKg     *float64 `json:"weightKg,omitempty"`
	PricePerKg   *float64 `json:"pricePerKg,omitempty"`
}

// ProductSummary is the product-level aggregate derived from one or many
// deals: the view a catalogue card renders.
type ProductSummary struct {
	ID                 string   `json:"id"`
	ProductID          string   `json:"product_id,omitempty"`
	Name               string   `json:"name"`
	Brand              string   `json:"brand,omitempty"`
	Flavour            string   `json:"flavour,omitempty"`
	Category           string   `json:"category,omitempty"`
	Image              string   `json:"image"`
	ImageURL           string   `json:"image_url,omitempty"`
	ProteinPerServingG *float64 `json:"protein_per_serving_g"`
	ServingSizeG       *float64 `json:"serving_size_g"`
	BestPrice          Price    `json:"bestPrice"`
	TotalPrice         Price    `json:"totalPrice"`
	BestDeal           *Deal    `json:"bestDeal"`
	OffersCount        int      `json:"offersCount"`
	InStock            *bool    `json:"inStock"`
	StockStatus        string   `json:"stockStatus,omitempty"`
	Rating             *float64 `json:"rating"`
	ReviewsCount       *int     `json:"reviewsCount"`
	ProteinPerEuro     *float64 `json:"proteinPerEuro"`
	PricePerKg         *float64 `json:"pricePerKg"`
	BestVendor         string   `json:"bestVendor,omitempty"`
	Link               string   `json:"link,omitempty"`
}

// Clone returns a deep copy; callers may mutate the result freely.
func (d *Deal) Clone() *Deal {
	if d == nil {
		return nil
	}
	c := *d
	c.ShippingCost = cloneFloat(d.ShippingCost)
	c.InStock = cloneBool(d.InStock)
	c.Rating = cloneFloat(d.Rating)
	c.ReviewsCount = cloneInt(d.ReviewsCount)
	c.WeightKg = cloneFloat(d.WeightKg)
	c.PricePerKg = cloneFloat(d.PricePerKg)
	c.Price.Amount = cloneFloat(d.Price.Amount)
	c.TotalPrice.Amount = cloneFloat(d.TotalPrice.Amount)
	return &c
}

// CloneDeals deep-copies a deal list.
func CloneDeals(deals []Deal) []Deal {
	if deals == nil {
		return nil
	}
	out := make([]Deal, len(deals))
	for i := range deals {
		out[i] = *deals[i].Clone()
	}
	return out
}

func (s *ProductSummary) Clone() *ProductSummary {
	if s == nil {
		return nil
	}
	c := *s
	c.ProteinPerServingG = cloneFloat(s.ProteinPerServingG)
	c.ServingSizeG = cloneFloat(s.ServingSizeG)
	c.InStock = cloneBool(s.InStock)
	c.Rating = cloneFloat(s.Rating)
	c.ReviewsCount = cloneInt(s.ReviewsCount)
	c.ProteinPerEuro = cloneFloat(s.ProteinPerEuro)
	c.PricePerKg = cloneFloat(s.PricePerKg)
	c.BestPrice.Amount = cloneFloat(s.BestPrice.Amount)
	c.TotalPrice.Amount = cloneFloat(s.TotalPrice.Amount)
	c.BestDeal = s.BestDeal.Clone()
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Float, Int and Bool build optional fields in place.
func Float(v float64) *float64 { return &v }
func Int(v int) *int           { return &v }
func Bool(v bool) *bool        { return &v }
