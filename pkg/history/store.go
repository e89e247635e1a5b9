package history

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"wheyhunter/pkg/models"
)

// Store persists price observations in sqlite so trends survive
// restarts.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS price_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			product_id INTEGER NOT NULL,
			source TEXT NOT NULL,
			price REAL NOT NULL,
			currency TEXT NOT NULL,
			recorded_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_price_history_product
		ON price_history (product_id, recorded_at)
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Record stores one observation. Points without an amount are skipped;
// an unknown price is not a data point.
func (s *Store) Record(productID int, point models.PricePoint) error {
	if point.Price.Amount == nil {
		return nil
	}
	recordedAt := point.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	currency := point.Price.Currency
	if currency == "" {
		currency = "EUR"
	}

	_, err := s.db.Exec(
		`INSERT INTO price_history (product_id, source, price, currency, recorded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		productID, point.Source, *point.Price.Amount, currency, recordedAt,
	)
	return err
}

// Since returns the product's observations at or after the given time,
// oldest first. A zero time returns everything.
func (s *Store) Since(productID int, since time.Time) ([]models.PricePoint, error) {
	rows, err := s.db.Query(
		`SELECT source, price, currency, recorded_at FROM price_history
		 WHERE product_id = ? AND recorded_at >= ?
		 ORDER BY recorded_at ASC`,
		productID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.PricePoint
	for rows.Next() {
		var (
			source     string
			price      float64
			currency   string
			recordedAt time.Time
		)
		if err := rows.Scan(&source, &price, &currency, &recordedAt); err != nil {
			return nil, err
		}
		amount := price
		points = append(points, models.PricePoint{
			RecordedAt: recordedAt,
			Source:     source,
			Price: models.Price{
				Amount:   &amount,
				Currency: currency,
			},
		})
	}
	return points, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
