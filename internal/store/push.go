package store

import (
	"database/sql"
	"fmt"

	"github.com/pillkeep/pillkeep/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

func scanPushSubscription(scanner interface{ Scan(...any) error }) (*model.PushSubscription, error) {
	var p model.PushSubscription
	err := scanner.Scan(&p.ID, &p.HouseholdID, &p.UserID, &p.Endpoint, &p.P256dhKey, &p.AuthKey, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const pushCols = `id, household_id, user_id, endpoint, p256dh_key, auth_key, created_at`

func (s *PushStore) Upsert(householdID, userID int64, endpoint, p256dh, auth string) error {
	_, err := s.db.Exec(
		`INSERT INTO push_subscriptions (household_id, user_id, endpoint, p256dh_key, auth_key)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (endpoint) DO UPDATE SET
		   household_id = excluded.household_id,
		   user_id = excluded.user_id,
		   p256dh_key = excluded.p256dh_key,
		   auth_key = excluded.auth_key`,
		householdID, userID, endpoint, p256dh, auth,
	)
	if err != nil {
		return fmt.Errorf("upsert push subscription: %w", err)
	}
	return nil
}

func (s *PushStore) ListByHousehold(householdID int64) ([]model.PushSubscription, error) {
	rows, err := s.db.Query(`SELECT `+pushCols+` FROM push_subscriptions WHERE household_id = ?`, householdID)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		p, err := scanPushSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *p)
	}
	return subs, rows.Err()
}

// ListHouseholdIDs returns the distinct households with at least one
// subscription, for the scheduler sweep.
func (s *PushStore) ListHouseholdIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT DISTINCT household_id FROM push_subscriptions`)
	if err != nil {
		return nil, fmt.Errorf("list push households: %w", err)
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

func (s *PushStore) DeleteByEndpoint(endpoint string) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

// WasSent reports whether a notification with this type and reference was
// already delivered for the household. Used to dedupe scheduler ticks.
func (s *PushStore) WasSent(householdID int64, notifType, refID string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM push_sent WHERE household_id = ? AND notif_type = ? AND ref_id = ?`,
		householdID, notifType, refID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check sent: %w", err)
	}
	return n > 0, nil
}

func (s *PushStore) RecordSent(householdID int64, notifType, refID string) error {
	_, err := s.db.Exec(
		`INSERT INTO push_sent (household_id, notif_type, ref_id) VALUES (?, ?, ?)
		 ON CONFLICT (household_id, notif_type, ref_id) DO NOTHING`,
		householdID, notifType, refID,
	)
	if err != nil {
		return fmt.Errorf("record sent: %w", err)
	}
	return nil
}
