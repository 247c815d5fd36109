package stock

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pillkeep/pillkeep/internal/database"
	"github.com/pillkeep/pillkeep/internal/model"
	"github.com/pillkeep/pillkeep/internal/store"
)

type fixture struct {
	db          *sql.DB
	meds        *store.MedicineStore
	batches     *store.InventoryStore
	engine      *Engine
	ledger      *Ledger
	householdID int64
	userID      int64
}

func setupStockTest(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	households := store.NewHouseholdStore(db)

	u, err := users.Create("sarah@example.com", "Sarah", "x")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	h, err := households.Create("The Smiths", "invite-1", u.ID)
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	if err := users.SetHousehold(u.ID, &h.ID); err != nil {
		t.Fatalf("set household: %v", err)
	}

	meds := store.NewMedicineStore(db)
	batches := store.NewInventoryStore(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &fixture{
		db:          db,
		meds:        meds,
		batches:     batches,
		engine:      NewEngine(meds, batches, logger),
		ledger:      NewLedger(batches),
		householdID: h.ID,
		userID:      u.ID,
	}
}

// addBatch inserts a batch and backdates its creation time so FIFO order
// is deterministic in tests.
func (f *fixture) addBatch(t *testing.T, gtin, name string, strength int, lot string, qty int, createdAt time.Time) *model.InventoryBatch {
	t.Helper()
	b, err := f.batches.Upsert(model.InventoryBatch{
		HouseholdID: f.householdID,
		GTIN:        gtin,
		Name:        NormalizeName(name),
		Strength:    strength,
		LotCode:     lot,
		Quantity:    qty,
		ExpiryDate:  "2030-01-01",
	})
	if err != nil {
		t.Fatalf("upsert batch: %v", err)
	}
	if _, err := f.db.Exec(`UPDATE inventory_batches SET created_at = ? WHERE id = ?`, createdAt, b.ID); err != nil {
		t.Fatalf("backdate batch: %v", err)
	}
	return b
}

func (f *fixture) addDose(t *testing.T, name string, strength int) *model.Medicine {
	t.Helper()
	m, err := f.meds.Create(f.householdID, f.userID, NormalizeName(name), strength, "Monday", "08:00")
	if err != nil {
		t.Fatalf("create medicine: %v", err)
	}
	return m
}

func TestConsumeFIFO(t *testing.T) {
	f := setupStockTest(t)
	b1 := f.addBatch(t, "890123", "Ibuprofen", 200, "L1", 3, date(2024, 1, 1))
	b2 := f.addBatch(t, "890123", "Ibuprofen", 200, "L2", 3, date(2024, 1, 2))

	for i := 0; i < 4; i++ {
		dose := f.addDose(t, "Ibuprofen", 200)
		res, err := f.engine.Consume(f.householdID, dose.ID)
		if err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
		if res.Batch == nil {
			t.Fatalf("consume %d: no batch decremented", i)
		}
	}

	got1, _ := f.batches.GetByID(b1.ID)
	got2, _ := f.batches.GetByID(b2.ID)
	if got1.Quantity != 0 {
		t.Errorf("oldest batch quantity = %d, want 0", got1.Quantity)
	}
	if got2.Quantity != 2 {
		t.Errorf("newest batch quantity = %d, want 2", got2.Quantity)
	}
}

func TestConsumeExhaustedBatchSkipped(t *testing.T) {
	f := setupStockTest(t)
	// Lot A1 has one unit and is oldest; lot B2 holds the rest.
	a1 := f.addBatch(t, "111222", "Paracetamol", 500, "A1", 1, date(2024, 1, 1))
	b2 := f.addBatch(t, "111222", "Paracetamol", 500, "B2", 5, date(2024, 1, 5))

	first := f.addDose(t, "Paracetamol", 500)
	res, err := f.engine.Consume(f.householdID, first.ID)
	if err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if res.Batch.ID != a1.ID {
		t.Errorf("first consume hit batch %d, want oldest %d", res.Batch.ID, a1.ID)
	}

	second := f.addDose(t, "Paracetamol", 500)
	res, err = f.engine.Consume(f.householdID, second.ID)
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if res.Batch.ID != b2.ID {
		t.Errorf("second consume hit batch %d, want %d", res.Batch.ID, b2.ID)
	}

	gotA1, _ := f.batches.GetByID(a1.ID)
	gotB2, _ := f.batches.GetByID(b2.ID)
	if gotA1.Quantity != 0 || gotB2.Quantity != 4 {
		t.Errorf("quantities = %d/%d, want 0/4", gotA1.Quantity, gotB2.Quantity)
	}
}

func TestConsumeOutOfStock(t *testing.T) {
	f := setupStockTest(t)
	dose := f.addDose(t, "Atorvastatin", 20)

	_, err := f.engine.Consume(f.householdID, dose.ID)
	var oos *OutOfStockError
	if !errors.As(err, &oos) {
		t.Fatalf("err = %v, want OutOfStockError", err)
	}
	if oos.Name != "ATORVASTATIN" {
		t.Errorf("error names %q, want ATORVASTATIN", oos.Name)
	}

	got, _ := f.meds.GetByID(dose.ID)
	if got.Taken {
		t.Error("dose marked taken despite out-of-stock rejection")
	}
	if got.Status != model.DoseStatusPending {
		t.Errorf("status = %q, want pending", got.Status)
	}
}

func TestConsumeMatchesExactStrength(t *testing.T) {
	f := setupStockTest(t)
	// Only 500mg stock exists; a 250mg dose must not consume it.
	f.addBatch(t, "111222", "Paracetamol", 500, "A1", 5, date(2024, 1, 1))

	dose := f.addDose(t, "Paracetamol", 250)
	_, err := f.engine.Consume(f.householdID, dose.ID)
	var oos *OutOfStockError
	if !errors.As(err, &oos) {
		t.Fatalf("err = %v, want OutOfStockError", err)
	}
}

func TestConsumeIdempotentWhenAlreadyTaken(t *testing.T) {
	f := setupStockTest(t)
	b := f.addBatch(t, "890123", "Ibuprofen", 200, "L1", 3, date(2024, 1, 1))
	dose := f.addDose(t, "Ibuprofen", 200)

	if _, err := f.engine.Consume(f.householdID, dose.ID); err != nil {
		t.Fatalf("first consume: %v", err)
	}

	res, err := f.engine.Consume(f.householdID, dose.ID)
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if !res.AlreadyTaken {
		t.Error("expected AlreadyTaken on re-invocation")
	}
	if res.Batch != nil {
		t.Error("re-invocation must not touch a batch")
	}

	got, _ := f.batches.GetByID(b.ID)
	if got.Quantity != 2 {
		t.Errorf("quantity = %d, want 2 (single decrement)", got.Quantity)
	}
}

func TestConsumeUnknownDose(t *testing.T) {
	f := setupStockTest(t)
	_, err := f.engine.Consume(f.householdID, 9999)
	if !errors.Is(err, ErrMedicineNotFound) {
		t.Fatalf("err = %v, want ErrMedicineNotFound", err)
	}
}

func TestDeleteDoseLeavesInventoryAlone(t *testing.T) {
	f := setupStockTest(t)
	b := f.addBatch(t, "890123", "Ibuprofen", 200, "L1", 3, date(2024, 1, 1))
	dose := f.addDose(t, "Ibuprofen", 200)

	if _, err := f.engine.Consume(f.householdID, dose.ID); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := f.meds.Delete(dose.ID); err != nil {
		t.Fatalf("delete dose: %v", err)
	}

	got, _ := f.batches.GetByID(b.ID)
	if got.Quantity != 2 {
		t.Errorf("quantity = %d after dose deletion, want 2 (no restock)", got.Quantity)
	}
}
