package store

import (
	"database/sql"
	"fmt"

	"github.com/pillkeep/pillkeep/internal/model"
)

type HouseholdStore struct {
	db *sql.DB
}

func NewHouseholdStore(db *sql.DB) *HouseholdStore {
	return &HouseholdStore{db: db}
}

func scanHousehold(scanner interface{ Scan(...any) error }) (*model.Household, error) {
	var h model.Household
	var admin sql.NullInt64
	err := scanner.Scan(&h.ID, &h.Name, &h.InviteCode, &admin, &h.LastRolloverDate, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if admin.Valid {
		h.AdminUserID = &admin.Int64
	}
	return &h, nil
}

const householdCols = `id, name, invite_code, admin_user_id, last_rollover_date, created_at, updated_at`

func (s *HouseholdStore) Create(name, inviteCode string, adminUserID int64) (*model.Household, error) {
	result, err := s.db.Exec(
		`INSERT INTO households (name, invite_code, admin_user_id) VALUES (?, ?, ?)`,
		name, inviteCode, adminUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert household: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *HouseholdStore) GetByID(id int64) (*model.Household, error) {
	row := s.db.QueryRow(`SELECT `+householdCols+` FROM households WHERE id = ?`, id)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	return h, nil
}

func (s *HouseholdStore) GetByInviteCode(code string) (*model.Household, error) {
	row := s.db.QueryRow(`SELECT `+householdCols+` FROM households WHERE invite_code = ?`, code)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household by invite code: %w", err)
	}
	return h, nil
}

// ClaimAdmin atomically takes the admin seat for userID. The conditional
// update succeeds only when the seat is vacant, already held by the
// claimant, or held by a user who is no longer a member of the household.
// Returns false when the seat is validly held by someone else.
func (s *HouseholdStore) ClaimAdmin(householdID, userID int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE households
		 SET admin_user_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?
		   AND (admin_user_id IS NULL
		        OR admin_user_id = ?
		        OR admin_user_id NOT IN (SELECT id FROM users WHERE household_id = households.id))`,
		userID, householdID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("claim admin: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// SetAdmin overwrites the admin seat. A nil userID vacates it.
func (s *HouseholdStore) SetAdmin(householdID int64, userID *int64) error {
	_, err := s.db.Exec(
		`UPDATE households SET admin_user_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		userID, householdID,
	)
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}
	return nil
}

// ListIDs returns the ids of every household.
func (s *HouseholdStore) ListIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT id FROM households ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list household ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan household id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *HouseholdStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM households WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete household: %w", err)
	}
	return nil
}
