package schedule

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pillkeep/pillkeep/internal/model"
)

// Rollover resets every dose's adherence state once per calendar day.
// It holds the *sql.DB directly because the reset and the date stamp must
// land in one transaction.
type Rollover struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewRollover(db *sql.DB, logger *slog.Logger) *Rollover {
	return &Rollover{db: db, logger: logger}
}

// DateString formats a time as the household-local calendar day key.
func DateString(t time.Time) string {
	return t.Format("2006-01-02")
}

// RunIfNeeded resets all doses to pending when the household has not yet
// rolled over today, and records today as done. Returns whether a reset
// happened. Safe to call on every dashboard load: once the date matches it
// is a read-only no-op, and concurrent callers race to write the same
// values.
func (r *Rollover) RunIfNeeded(householdID int64, now time.Time) (bool, error) {
	today := DateString(now)

	var last string
	err := r.db.QueryRow(`SELECT last_rollover_date FROM households WHERE id = ?`, householdID).Scan(&last)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("household %d not found", householdID)
	}
	if err != nil {
		return false, fmt.Errorf("read rollover date: %w", err)
	}
	if last == today {
		return false, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin rollover: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE medicines SET taken = 0, status = ?, updated_at = CURRENT_TIMESTAMP WHERE household_id = ?`,
		model.DoseStatusPending, householdID,
	); err != nil {
		return false, fmt.Errorf("reset doses: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE households SET last_rollover_date = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		today, householdID,
	); err != nil {
		return false, fmt.Errorf("stamp rollover date: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit rollover: %w", err)
	}

	r.logger.Info("daily rollover applied", "household_id", householdID, "date", today)
	return true, nil
}
