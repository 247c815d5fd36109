package schedule

import (
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pillkeep/pillkeep/internal/database"
	"github.com/pillkeep/pillkeep/internal/model"
	"github.com/pillkeep/pillkeep/internal/store"
)

func setupRolloverTest(t *testing.T) (*Rollover, *store.MedicineStore, *store.HouseholdStore, *sql.DB, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	households := store.NewHouseholdStore(db)
	meds := store.NewMedicineStore(db)

	u, err := users.Create("sarah@example.com", "Sarah", "x")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	h, err := households.Create("The Smiths", "invite-1", u.ID)
	if err != nil {
		t.Fatalf("create household: %v", err)
	}

	for _, name := range []string{"LISINOPRIL", "METFORMIN", "VITAMIN D3"} {
		m, err := meds.Create(h.ID, u.ID, name, 500, "Monday", "08:00")
		if err != nil {
			t.Fatalf("create medicine: %v", err)
		}
		if err := meds.MarkTaken(m.ID); err != nil {
			t.Fatalf("mark taken: %v", err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRollover(db, logger), meds, households, db, h.ID
}

func allPending(t *testing.T, meds *store.MedicineStore, householdID int64) bool {
	t.Helper()
	list, err := meds.ListByHousehold(householdID)
	if err != nil {
		t.Fatalf("list medicines: %v", err)
	}
	for _, m := range list {
		if m.Taken || m.Status != model.DoseStatusPending {
			return false
		}
	}
	return true
}

func TestRolloverResetsOncePerDay(t *testing.T) {
	r, meds, households, _, hid := setupRolloverTest(t)
	now := time.Date(2026, 2, 5, 7, 30, 0, 0, time.UTC)

	ran, err := r.RunIfNeeded(hid, now)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if !ran {
		t.Fatal("expected first run to reset")
	}
	if !allPending(t, meds, hid) {
		t.Error("doses not reset to pending")
	}

	h, _ := households.GetByID(hid)
	if h.LastRolloverDate != "2026-02-05" {
		t.Errorf("last rollover date = %q, want 2026-02-05", h.LastRolloverDate)
	}
}

func TestRolloverIdempotentSameDay(t *testing.T) {
	r, meds, _, _, hid := setupRolloverTest(t)
	now := time.Date(2026, 2, 5, 7, 30, 0, 0, time.UTC)

	if _, err := r.RunIfNeeded(hid, now); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// A dose taken after the rollover must survive later loads that day.
	list, _ := meds.ListByHousehold(hid)
	if err := meds.MarkTaken(list[0].ID); err != nil {
		t.Fatalf("mark taken: %v", err)
	}

	later := now.Add(6 * time.Hour)
	ran, err := r.RunIfNeeded(hid, later)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if ran {
		t.Error("second run on the same day must be a no-op")
	}

	got, _ := meds.GetByID(list[0].ID)
	if !got.Taken {
		t.Error("same-day rollover re-invocation cleared a taken dose")
	}
}

func TestRolloverNextDayResetsAgain(t *testing.T) {
	r, meds, _, _, hid := setupRolloverTest(t)

	if _, err := r.RunIfNeeded(hid, time.Date(2026, 2, 5, 7, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("day one: %v", err)
	}
	list, _ := meds.ListByHousehold(hid)
	if err := meds.MarkTaken(list[0].ID); err != nil {
		t.Fatalf("mark taken: %v", err)
	}

	ran, err := r.RunIfNeeded(hid, time.Date(2026, 2, 6, 0, 5, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("day two: %v", err)
	}
	if !ran {
		t.Fatal("expected reset on the new day")
	}
	if !allPending(t, meds, hid) {
		t.Error("doses not reset on the new day")
	}
}

func TestRolloverUnknownHousehold(t *testing.T) {
	r, _, _, _, _ := setupRolloverTest(t)
	if _, err := r.RunIfNeeded(9999, time.Now()); err == nil {
		t.Fatal("expected error for unknown household")
	}
}
