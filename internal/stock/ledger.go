package stock

import (
	"regexp"
	"strings"
	"time"

	"github.com/pillkeep/pillkeep/internal/model"
	"github.com/pillkeep/pillkeep/internal/store"
)

const (
	// MaxStrength caps dose strength in milligrams.
	MaxStrength = 1000
	// MaxQuantity caps units per batch.
	MaxQuantity = 10000
	// LowStockThreshold is the per-drug total at or below which a warning
	// is raised.
	LowStockThreshold = 5
)

var gtinRegexp = regexp.MustCompile(`^[0-9]+$`)

// NormalizeName uppercases and trims a medicine name so schedule entries
// and inventory batches match case-insensitively.
func NormalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// BatchInput is the raw form data for adding or topping up a batch.
type BatchInput struct {
	GTIN       string
	Name       string
	Strength   int
	LotCode    string
	Quantity   int
	ExpiryDate string // YYYY-MM-DD
}

// Ledger owns validation and merge semantics over the household's
// inventory batches.
type Ledger struct {
	batches *store.InventoryStore
}

func NewLedger(batches *store.InventoryStore) *Ledger {
	return &Ledger{batches: batches}
}

// Upsert validates and normalizes the input, then merges it into the batch
// with the same (gtin, strength, lot) identity, creating it if absent.
// Nothing is written when validation fails.
func (l *Ledger) Upsert(householdID int64, in BatchInput, now time.Time) (*model.InventoryBatch, error) {
	in.GTIN = strings.TrimSpace(in.GTIN)
	if !gtinRegexp.MatchString(in.GTIN) {
		return nil, &ValidationError{Field: "gtin", Reason: "must contain only digits"}
	}
	if NormalizeName(in.Name) == "" {
		return nil, &ValidationError{Field: "name", Reason: "is required"}
	}
	if strings.TrimSpace(in.LotCode) == "" {
		return nil, &ValidationError{Field: "lot_code", Reason: "is required"}
	}
	if in.Strength <= 0 || in.Strength > MaxStrength {
		return nil, &ValidationError{Field: "strength", Reason: "must be between 1 and 1000"}
	}
	if in.Quantity <= 0 || in.Quantity > MaxQuantity {
		return nil, &ValidationError{Field: "quantity", Reason: "must be between 1 and 10000"}
	}
	expiry, err := time.Parse("2006-01-02", in.ExpiryDate)
	if err != nil {
		return nil, &ValidationError{Field: "expiry_date", Reason: "must be a date in YYYY-MM-DD form"}
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if expiry.Before(today) {
		return nil, &ValidationError{Field: "expiry_date", Reason: "must not be in the past"}
	}

	return l.batches.Upsert(model.InventoryBatch{
		HouseholdID: householdID,
		GTIN:        in.GTIN,
		Name:        NormalizeName(in.Name),
		Strength:    in.Strength,
		LotCode:     strings.ToUpper(strings.TrimSpace(in.LotCode)),
		Quantity:    in.Quantity,
		ExpiryDate:  in.ExpiryDate,
	})
}

// List returns the household's full batch ledger, oldest first.
func (l *Ledger) List(householdID int64) ([]model.InventoryBatch, error) {
	return l.batches.ListByHousehold(householdID)
}

// TotalAvailable sums units across non-exhausted batches of a drug at one
// strength. Name matching is case-insensitive via normalization.
func (l *Ledger) TotalAvailable(householdID int64, name string, strength int) (int, error) {
	return l.batches.TotalAvailable(householdID, NormalizeName(name), strength)
}
