// Package household manages membership and the single administrator seat
// of a family group: create/join/leave, the vacant-seat claim protocol,
// and destructive teardown.
package household

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pillkeep/pillkeep/internal/model"
	"github.com/pillkeep/pillkeep/internal/store"
)

// DestroyConfirmation is the literal a caller must type to tear down a
// household.
const DestroyConfirmation = "DESTROY"

var (
	// ErrAlreadyClaimed means the admin seat is validly held by another
	// current member; the caller should refresh household state.
	ErrAlreadyClaimed = errors.New("administrator seat already claimed")
	// ErrNotAdmin guards administrator-only operations.
	ErrNotAdmin = errors.New("caller is not the household administrator")
	// ErrNotFound is returned for an unknown household or invite code.
	ErrNotFound = errors.New("household not found")
	// ErrNotMember is returned when the target user is not in the household.
	ErrNotMember = errors.New("user is not a household member")
	// ErrConfirmation is returned when the destroy confirmation literal
	// does not match.
	ErrConfirmation = errors.New("confirmation text does not match")
)

// CascadeError reports which step of the destroy cascade failed. Earlier
// steps have already been applied; there is no compensation, so the step
// name is the operator's starting point for manual recovery.
type CascadeError struct {
	Step string
	Err  error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("destroy household failed at step %q: %v", e.Step, e.Err)
}

func (e *CascadeError) Unwrap() error { return e.Err }

// Resolver owns household membership and the administrator state machine:
// vacant (nil, or pointing at a departed user) -> claimed (a current member).
type Resolver struct {
	db         *sql.DB
	households *store.HouseholdStore
	users      *store.UserStore
	logger     *slog.Logger
}

func NewResolver(db *sql.DB, households *store.HouseholdStore, users *store.UserStore, logger *slog.Logger) *Resolver {
	return &Resolver{db: db, households: households, users: users, logger: logger}
}

// Create starts a new household with the creator as administrator and
// first member. The invite code is what other family members join with.
func (r *Resolver) Create(name string, ownerID int64) (*model.Household, error) {
	h, err := r.households.Create(name, uuid.NewString(), ownerID)
	if err != nil {
		return nil, err
	}
	if err := r.users.SetHousehold(ownerID, &h.ID); err != nil {
		return nil, fmt.Errorf("link creator: %w", err)
	}
	return h, nil
}

// Join attaches a user to the household with the given invite code.
// Joining a household the user already belongs to is a no-op.
func (r *Resolver) Join(inviteCode string, userID int64) (*model.Household, error) {
	h, err := r.households.GetByInviteCode(inviteCode)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, ErrNotFound
	}

	u, err := r.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if u != nil && u.HouseholdID != nil && *u.HouseholdID == h.ID {
		return h, nil
	}
	if err := r.users.SetHousehold(userID, &h.ID); err != nil {
		return nil, fmt.Errorf("link member: %w", err)
	}
	return h, nil
}

// Members lists the household's current member profiles.
func (r *Resolver) Members(householdID int64) ([]model.User, error) {
	return r.users.ListByHousehold(householdID)
}

// ClaimAdmin takes the administrator seat for userID. The store-level
// conditional update is the compare-and-swap: of two near-simultaneous
// claimants exactly one wins, and the loser gets ErrAlreadyClaimed along
// with the current holder so the UI can tell the user to refresh.
func (r *Resolver) ClaimAdmin(householdID, userID int64) (*model.Household, error) {
	u, err := r.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if u == nil || u.HouseholdID == nil || *u.HouseholdID != householdID {
		return nil, ErrNotMember
	}

	claimed, err := r.households.ClaimAdmin(householdID, userID)
	if err != nil {
		return nil, err
	}
	h, err := r.households.GetByID(householdID)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, ErrNotFound
	}
	if !claimed {
		return h, ErrAlreadyClaimed
	}
	return h, nil
}

// Leave removes the user from the household. A departing administrator
// abdicates: the seat is vacated for the remaining members to claim.
func (r *Resolver) Leave(householdID, userID int64) error {
	h, err := r.households.GetByID(householdID)
	if err != nil {
		return err
	}
	if h == nil {
		return ErrNotFound
	}

	if err := r.users.SetHousehold(userID, nil); err != nil {
		return err
	}
	if h.IsAdmin(userID) {
		if err := r.households.SetAdmin(householdID, nil); err != nil {
			return err
		}
		r.logger.Info("administrator abdicated", "household_id", householdID, "user_id", userID)
	}
	return nil
}

// Kick removes a member. Administrator-only.
func (r *Resolver) Kick(householdID, adminID, targetID int64) error {
	h, err := r.households.GetByID(householdID)
	if err != nil {
		return err
	}
	if h == nil {
		return ErrNotFound
	}
	if !h.IsAdmin(adminID) {
		return ErrNotAdmin
	}

	target, err := r.users.GetByID(targetID)
	if err != nil {
		return err
	}
	if target == nil || target.HouseholdID == nil || *target.HouseholdID != householdID {
		return ErrNotMember
	}
	return r.users.SetHousehold(targetID, nil)
}

// Destroy tears the household down: unlink every member, delete all
// scheduled doses and inventory batches, then the household itself.
// Administrator-only, and confirm must equal DestroyConfirmation.
//
// The cascade runs stepwise so that a mid-way failure names the exact step
// that broke; completed steps are not rolled back.
func (r *Resolver) Destroy(householdID, adminID int64, confirm string) error {
	if confirm != DestroyConfirmation {
		return ErrConfirmation
	}

	h, err := r.households.GetByID(householdID)
	if err != nil {
		return err
	}
	if h == nil {
		return ErrNotFound
	}
	if !h.IsAdmin(adminID) {
		return ErrNotAdmin
	}

	steps := []struct {
		name string
		sql  string
	}{
		{"unlink members", `UPDATE users SET household_id = NULL, updated_at = CURRENT_TIMESTAMP WHERE household_id = ?`},
		{"delete medicines", `DELETE FROM medicines WHERE household_id = ?`},
		{"delete inventory", `DELETE FROM inventory_batches WHERE household_id = ?`},
		{"delete household", `DELETE FROM households WHERE id = ?`},
	}
	for _, step := range steps {
		if _, err := r.db.Exec(step.sql, householdID); err != nil {
			r.logger.Error("destroy cascade failed",
				"household_id", householdID, "step", step.name, "error", err)
			return &CascadeError{Step: step.name, Err: err}
		}
	}

	r.logger.Info("household destroyed", "household_id", householdID, "admin_id", adminID)
	return nil
}
