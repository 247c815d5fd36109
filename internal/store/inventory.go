package store

import (
	"database/sql"
	"fmt"

	"github.com/pillkeep/pillkeep/internal/model"
)

type InventoryStore struct {
	db *sql.DB
}

func NewInventoryStore(db *sql.DB) *InventoryStore {
	return &InventoryStore{db: db}
}

func scanBatch(scanner interface{ Scan(...any) error }) (*model.InventoryBatch, error) {
	var b model.InventoryBatch
	err := scanner.Scan(
		&b.ID, &b.HouseholdID, &b.GTIN, &b.Name, &b.Strength, &b.LotCode,
		&b.Quantity, &b.ExpiryDate, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

const batchCols = `id, household_id, gtin, name, strength, lot_code, quantity, expiry_date, created_at, updated_at`

// Upsert inserts a batch or, when a row with the same (household, gtin,
// strength, lot) identity exists, merges into it. created_at is preserved
// on merge so FIFO ordering reflects when the batch first entered the house.
func (s *InventoryStore) Upsert(b model.InventoryBatch) (*model.InventoryBatch, error) {
	_, err := s.db.Exec(
		`INSERT INTO inventory_batches (household_id, gtin, name, strength, lot_code, quantity, expiry_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (household_id, gtin, strength, lot_code) DO UPDATE SET
		   name = excluded.name,
		   quantity = excluded.quantity,
		   expiry_date = excluded.expiry_date,
		   updated_at = CURRENT_TIMESTAMP`,
		b.HouseholdID, b.GTIN, b.Name, b.Strength, b.LotCode, b.Quantity, b.ExpiryDate,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert batch: %w", err)
	}
	return s.GetByKey(b.HouseholdID, b.GTIN, b.Strength, b.LotCode)
}

func (s *InventoryStore) GetByID(id int64) (*model.InventoryBatch, error) {
	row := s.db.QueryRow(`SELECT `+batchCols+` FROM inventory_batches WHERE id = ?`, id)
	b, err := scanBatch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

func (s *InventoryStore) GetByKey(householdID int64, gtin string, strength int, lotCode string) (*model.InventoryBatch, error) {
	row := s.db.QueryRow(
		`SELECT `+batchCols+` FROM inventory_batches
		 WHERE household_id = ? AND gtin = ? AND strength = ? AND lot_code = ?`,
		householdID, gtin, strength, lotCode,
	)
	b, err := scanBatch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get batch by key: %w", err)
	}
	return b, nil
}

func (s *InventoryStore) ListByHousehold(householdID int64) ([]model.InventoryBatch, error) {
	rows, err := s.db.Query(
		`SELECT `+batchCols+` FROM inventory_batches WHERE household_id = ? ORDER BY created_at ASC, id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()
	return collectBatches(rows)
}

// ListAvailable returns non-exhausted batches for a drug+strength, oldest
// first. The ordering is the FIFO consumption policy.
func (s *InventoryStore) ListAvailable(householdID int64, name string, strength int) ([]model.InventoryBatch, error) {
	rows, err := s.db.Query(
		`SELECT `+batchCols+` FROM inventory_batches
		 WHERE household_id = ? AND name = ? AND strength = ? AND quantity > 0
		 ORDER BY created_at ASC, id ASC`,
		householdID, name, strength,
	)
	if err != nil {
		return nil, fmt.Errorf("list available batches: %w", err)
	}
	defer rows.Close()
	return collectBatches(rows)
}

func collectBatches(rows *sql.Rows) ([]model.InventoryBatch, error) {
	var batches []model.InventoryBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, *b)
	}
	return batches, rows.Err()
}

func (s *InventoryStore) TotalAvailable(householdID int64, name string, strength int) (int, error) {
	var total int
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(quantity), 0) FROM inventory_batches
		 WHERE household_id = ? AND name = ? AND strength = ? AND quantity > 0`,
		householdID, name, strength,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total available: %w", err)
	}
	return total, nil
}

// Decrement removes exactly one unit from a batch. The quantity > 0 guard
// means a batch raced to zero by another client reports false instead of
// going negative.
func (s *InventoryStore) Decrement(id int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE inventory_batches SET quantity = quantity - 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND quantity > 0`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("decrement batch: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
