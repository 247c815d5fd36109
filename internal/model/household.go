package model

import "time"

type Household struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	InviteCode       string    `json:"invite_code"`
	AdminUserID      *int64    `json:"admin_user_id"`
	LastRolloverDate string    `json:"last_rollover_date"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsAdmin reports whether the given user currently holds the admin seat.
func (h *Household) IsAdmin(userID int64) bool {
	return h.AdminUserID != nil && *h.AdminUserID == userID
}
