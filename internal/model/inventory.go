package model

import (
	"fmt"
	"time"
)

// InventoryBatch is one physical lot of a drug at one strength. A batch is
// uniquely identified within a household by (gtin, strength, lot code);
// re-adding the same combination merges into the existing row.
type InventoryBatch struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	GTIN        string    `json:"gtin"`
	Name        string    `json:"name"`
	Strength    int       `json:"strength"`
	LotCode     string    `json:"lot_code"`
	Quantity    int       `json:"quantity"`
	ExpiryDate  string    `json:"expiry_date"` // YYYY-MM-DD
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Key returns the composite batch identity as a single string, handy for
// client-side keying and log lines.
func (b *InventoryBatch) Key() string {
	return fmt.Sprintf("%s_%d_%s", b.GTIN, b.Strength, b.LotCode)
}

// Expiry parses the batch expiry date. The zero time is returned for an
// unset or malformed date.
func (b *InventoryBatch) Expiry() time.Time {
	t, err := time.Parse("2006-01-02", b.ExpiryDate)
	if err != nil {
		return time.Time{}
	}
	return t
}
