package shopsearch

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexID tolerates upstream identifiers arriving as JSON strings or
// numbers and normalizes them to a trimmed string.
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexID(n.String())
		return nil
	}
	*f = ""
	return nil
}

func (f FlexID) String() string { return string(f) }

// FlexFloat tolerates numeric fields arriving as JSON numbers or
// locale-formatted strings ("4,6"). Unparsable values decode to nil.
type FlexFloat struct {
	Value *float64
}

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	f.Value = nil
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		f.Value = &n
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
		if v, err := strconv.ParseFloat(cleaned, 64); err == nil {
			f.Value = &v
		}
	}
	return nil
}

// FlexInt behaves like FlexFloat for integer counters such as review
// counts ("1523" or 1523).
type FlexInt struct {
	Value *int
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	f.Value = nil
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		f.Value = &n
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			f.Value = &v
		}
	}
	return nil
}

// ShoppingResult is one raw row of a text-query shopping search.
type ShoppingResult struct {
	Title         string    `json:"title"`
	Price         string    `json:"price"`
	Source        string    `json:"source"`
	Merchant      string    `json:"merchant"`
	Link          string    `json:"link"`
	ProductLink   string    `json:"product_link"`
	Thumbnail     string    `json:"thumbnail"`
	Image         string    `json:"image"`
	Availability  string    `json:"availability"`
	Shipping      string    `json:"shipping"`
	Rating        FlexFloat `json:"rating"`
	Reviews       FlexInt   `json:"reviews"`
	ProductID     FlexID    `json:"product_id"`
	ProductPhotos []Photo   `json:"product_photos"`
}

// Photo is an image attachment on a shopping result; which field carries
// the URL varies per result.
type Photo struct {
	Image     string `json:"image"`
	Link      string `json:"link"`
	Thumbnail string `json:"thumbnail"`
	Source    string `json:"source"`
}

// Candidates lists the photo's URL fields in preference order.
func (p Photo) Candidates() []string {
	return []string{p.Image, p.Link, p.Thumbnail, p.Source}
}

// MediaItem appears in product_results.media; only type "image" entries
// carry a displayable URL.
type MediaItem struct {
	Type      string `json:"type"`
	Link      string `json:"link"`
	Image     string `json:"image"`
	Thumbnail string `json:"thumbnail"`
	Source    string `json:"source"`
}

func (m MediaItem) Candidates() []string {
	return []string{m.Link, m.Image, m.Thumbnail, m.Source}
}

// Seller is one vendor row of a product-detail lookup.
type Seller struct {
	Name         string    `json:"name"`
	Source       string    `json:"source"`
	Title        string    `json:"title"`
	BasePrice    string    `json:"base_price"`
	TotalPrice   string    `json:"total_price"`
	Price        string    `json:"price"`
	Shipping     string    `json:"shipping"`
	ShippingCost FlexFloat `json:"shipping_cost"`
	Availability string    `json:"availability"`
	Link         string    `json:"link"`
	ProductLink  string    `json:"product_link"`
	Rating       FlexFloat `json:"rating"`
	Reviews      FlexInt   `json:"reviews"`
	Thumbnail    string    `json:"thumbnail"`
	Image        string    `json:"image"`
	ImageLink    string    `json:"image_link"`
}

// ProductResults is the descriptive half of a product-detail payload.
type ProductResults struct {
	ProductID    FlexID      `json:"product_id"`
	Title        string      `json:"title"`
	Name         string      `json:"name"`
	Brand        string      `json:"brand"`
	Manufacturer string      `json:"manufacturer"`
	Seller       string      `json:"seller"`
	Category     string      `json:"category"`
	Type         string      `json:"type"`
	Link         string      `json:"link"`
	ProductLink  string      `json:"product_link"`
	Thumbnail    string      `json:"thumbnail"`
	Image        string      `json:"image"`
	Media        []MediaItem `json:"media"`
	InlineImages []Photo     `json:"inline_images"`
	Images       []Photo     `json:"images"`
}

// SellersResults wraps the seller list of a product-detail payload.
type SellersResults struct {
	OnlineSellers []Seller `json:"online_sellers"`
}

// ProductDetail is a raw product-detail-by-id payload.
type ProductDetail struct {
	ProductResults *ProductResults `json:"product_results"`
	SellersResults *SellersResults `json:"sellers_results"`
}

// ImageCandidates gathers every field that might carry an image, in the
// order the frontend should prefer them.
func (p *ProductResults) ImageCandidates() []string {
	if p == nil {
		return nil
	}
	candidates := []string{p.Thumbnail, p.Image}
	for _, m := range p.Media {
		if m.Type == "image" {
			candidates = append(candidates, m.Candidates()...)
		}
	}
	for _, item := range p.InlineImages {
		candidates = append(candidates, item.Candidates()...)
	}
	for _, item := range p.Images {
		candidates = append(candidates, item.Candidates()...)
	}
	return candidates
}

// DisplayTitle falls back through the known title fields.
func (p *ProductResults) DisplayTitle() string {
	if p == nil {
		return ""
	}
	if t := strings.TrimSpace(p.Title); t != "" {
		return t
	}
	return strings.TrimSpace(p.Name)
}

// DisplayBrand falls back through brand, manufacturer and seller.
func (p *ProductResults) DisplayBrand() string {
	if p == nil {
		return ""
	}
	for _, v := range []string{p.Brand, p.Manufacturer, p.Seller} {
		if v != "" {
			return v
		}
	}
	return ""
}

// Aliases lists every identifier shape this payload is known under.
func (d *ProductDetail) Aliases() []string {
	if d == nil || d.ProductResults == nil {
		return nil
	}
	return []string{
		d.ProductResults.ProductID.String(),
		d.ProductResults.Link,
		d.ProductResults.ProductLink,
	}
}
