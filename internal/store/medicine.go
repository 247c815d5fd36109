package store

import (
	"database/sql"
	"fmt"

	"github.com/pillkeep/pillkeep/internal/model"
)

type MedicineStore struct {
	db *sql.DB
}

func NewMedicineStore(db *sql.DB) *MedicineStore {
	return &MedicineStore{db: db}
}

func scanMedicine(scanner interface{ Scan(...any) error }) (*model.Medicine, error) {
	var m model.Medicine
	var taken int
	err := scanner.Scan(
		&m.ID, &m.HouseholdID, &m.OwnerUserID, &m.Name, &m.Strength,
		&m.DayOfWeek, &m.TimeOfDay, &taken, &m.Status, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Taken = taken != 0
	return &m, nil
}

const medicineCols = `id, household_id, owner_user_id, name, strength, day_of_week, time_of_day, taken, status, created_at, updated_at`

func (s *MedicineStore) Create(householdID, ownerUserID int64, name string, strength int, dayOfWeek, timeOfDay string) (*model.Medicine, error) {
	result, err := s.db.Exec(
		`INSERT INTO medicines (household_id, owner_user_id, name, strength, day_of_week, time_of_day)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		householdID, ownerUserID, name, strength, dayOfWeek, timeOfDay,
	)
	if err != nil {
		return nil, fmt.Errorf("insert medicine: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *MedicineStore) GetByID(id int64) (*model.Medicine, error) {
	row := s.db.QueryRow(`SELECT `+medicineCols+` FROM medicines WHERE id = ?`, id)
	m, err := scanMedicine(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get medicine: %w", err)
	}
	return m, nil
}

func (s *MedicineStore) ListByHousehold(householdID int64) ([]model.Medicine, error) {
	rows, err := s.db.Query(
		`SELECT `+medicineCols+` FROM medicines WHERE household_id = ? ORDER BY time_of_day ASC, id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list medicines: %w", err)
	}
	defer rows.Close()
	return collectMedicines(rows)
}

func (s *MedicineStore) ListByDay(householdID int64, dayOfWeek string) ([]model.Medicine, error) {
	rows, err := s.db.Query(
		`SELECT `+medicineCols+` FROM medicines WHERE household_id = ? AND day_of_week = ? ORDER BY time_of_day ASC, id ASC`,
		householdID, dayOfWeek,
	)
	if err != nil {
		return nil, fmt.Errorf("list medicines by day: %w", err)
	}
	defer rows.Close()
	return collectMedicines(rows)
}

func collectMedicines(rows *sql.Rows) ([]model.Medicine, error) {
	var meds []model.Medicine
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan medicine: %w", err)
		}
		meds = append(meds, *m)
	}
	return meds, rows.Err()
}

func (s *MedicineStore) Update(id int64, name string, strength int, dayOfWeek, timeOfDay string) (*model.Medicine, error) {
	_, err := s.db.Exec(
		`UPDATE medicines SET name = ?, strength = ?, day_of_week = ?, time_of_day = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		name, strength, dayOfWeek, timeOfDay, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update medicine: %w", err)
	}
	return s.GetByID(id)
}

// MarkTaken commits the taken state for a dose. The reverse transition is
// owned exclusively by the daily rollover.
func (s *MedicineStore) MarkTaken(id int64) error {
	_, err := s.db.Exec(
		`UPDATE medicines SET taken = 1, status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		model.DoseStatusTaken, id,
	)
	if err != nil {
		return fmt.Errorf("mark taken: %w", err)
	}
	return nil
}

// Delete removes a scheduled dose. Inventory is deliberately untouched:
// removing a schedule entry does not restock anything.
func (s *MedicineStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM medicines WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete medicine: %w", err)
	}
	return nil
}
