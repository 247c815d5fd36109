package stock

import (
	"errors"
	"testing"
	"time"
)

func TestUpsertValidation(t *testing.T) {
	f := setupStockTest(t)
	now := date(2026, 1, 1)

	valid := BatchInput{
		GTIN:       "890123",
		Name:       "Paracetamol",
		Strength:   500,
		LotCode:    "a1",
		Quantity:   10,
		ExpiryDate: "2027-06-01",
	}

	tests := []struct {
		name   string
		mutate func(*BatchInput)
		field  string
	}{
		{"gtin with letters", func(in *BatchInput) { in.GTIN = "89A123" }, "gtin"},
		{"gtin empty", func(in *BatchInput) { in.GTIN = "" }, "gtin"},
		{"name blank", func(in *BatchInput) { in.Name = "   " }, "name"},
		{"lot blank", func(in *BatchInput) { in.LotCode = "" }, "lot_code"},
		{"strength zero", func(in *BatchInput) { in.Strength = 0 }, "strength"},
		{"strength over ceiling", func(in *BatchInput) { in.Strength = 1001 }, "strength"},
		{"quantity zero", func(in *BatchInput) { in.Quantity = 0 }, "quantity"},
		{"quantity over ceiling", func(in *BatchInput) { in.Quantity = 10001 }, "quantity"},
		{"expiry malformed", func(in *BatchInput) { in.ExpiryDate = "06/01/2027" }, "expiry_date"},
		{"expiry in the past", func(in *BatchInput) { in.ExpiryDate = "2025-12-31" }, "expiry_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := f.ledger.Upsert(f.householdID, in, now)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}

	// Nothing should have been written by the rejected inputs.
	batches, err := f.ledger.List(f.householdID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(batches) != 0 {
		t.Errorf("ledger has %d batches after rejected upserts, want 0", len(batches))
	}
}

func TestUpsertNormalizes(t *testing.T) {
	f := setupStockTest(t)

	b, err := f.ledger.Upsert(f.householdID, BatchInput{
		GTIN:       "890123",
		Name:       "  paracetamol ",
		Strength:   500,
		LotCode:    " a1 ",
		Quantity:   10,
		ExpiryDate: "2030-06-01",
	}, date(2026, 1, 1))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if b.Name != "PARACETAMOL" {
		t.Errorf("name = %q, want PARACETAMOL", b.Name)
	}
	if b.LotCode != "A1" {
		t.Errorf("lot = %q, want A1", b.LotCode)
	}
}

func TestUpsertMergesSameIdentity(t *testing.T) {
	f := setupStockTest(t)
	now := date(2026, 1, 1)

	in := BatchInput{
		GTIN:       "890123",
		Name:       "Paracetamol",
		Strength:   500,
		LotCode:    "A1",
		Quantity:   10,
		ExpiryDate: "2030-06-01",
	}
	first, err := f.ledger.Upsert(f.householdID, in, now)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	in.Quantity = 25
	second, err := f.ledger.Upsert(f.householdID, in, now)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("second upsert created row %d, want merge into %d", second.ID, first.ID)
	}
	if second.Quantity != 25 {
		t.Errorf("quantity = %d, want 25", second.Quantity)
	}

	batches, _ := f.ledger.List(f.householdID)
	if len(batches) != 1 {
		t.Fatalf("ledger has %d batches, want 1", len(batches))
	}
}

func TestUpsertDistinctLotsStaySeparate(t *testing.T) {
	f := setupStockTest(t)
	now := date(2026, 1, 1)

	in := BatchInput{
		GTIN:       "890123",
		Name:       "Paracetamol",
		Strength:   500,
		LotCode:    "A1",
		Quantity:   10,
		ExpiryDate: "2030-06-01",
	}
	if _, err := f.ledger.Upsert(f.householdID, in, now); err != nil {
		t.Fatalf("upsert A1: %v", err)
	}
	in.LotCode = "B2"
	if _, err := f.ledger.Upsert(f.householdID, in, now); err != nil {
		t.Fatalf("upsert B2: %v", err)
	}

	batches, _ := f.ledger.List(f.householdID)
	if len(batches) != 2 {
		t.Fatalf("ledger has %d batches, want 2", len(batches))
	}
}

func TestTotalAvailableIgnoresExhausted(t *testing.T) {
	f := setupStockTest(t)
	f.addBatch(t, "890123", "Ibuprofen", 200, "L1", 4, date(2024, 1, 1))
	empty := f.addBatch(t, "890123", "Ibuprofen", 200, "L2", 1, date(2024, 1, 2))

	// Drain L2 to zero.
	if ok, err := f.batches.Decrement(empty.ID); err != nil || !ok {
		t.Fatalf("decrement: ok=%v err=%v", ok, err)
	}

	total, err := f.ledger.TotalAvailable(f.householdID, "ibuprofen", 200)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}

	// Exhausted batches stay on the ledger.
	batches, _ := f.ledger.List(f.householdID)
	if len(batches) != 2 {
		t.Errorf("ledger has %d batches, want 2", len(batches))
	}
}

func TestExpiryToday(t *testing.T) {
	f := setupStockTest(t)
	now := time.Date(2026, 1, 1, 15, 30, 0, 0, time.UTC)

	// A batch expiring today is still acceptable input.
	_, err := f.ledger.Upsert(f.householdID, BatchInput{
		GTIN:       "890123",
		Name:       "Paracetamol",
		Strength:   500,
		LotCode:    "A1",
		Quantity:   1,
		ExpiryDate: "2026-01-01",
	}, now)
	if err != nil {
		t.Fatalf("upsert expiring today: %v", err)
	}
}
