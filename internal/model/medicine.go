package model

import "time"

const (
	DoseStatusPending = "pending"
	DoseStatusTaken   = "taken"
)

// Medicine is one scheduled dose: drug X at time T on day D for one
// household member. Name is stored uppercase so inventory matching is
// case-insensitive.
type Medicine struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	OwnerUserID int64     `json:"owner_user_id"`
	Name        string    `json:"name"`
	Strength    int       `json:"strength"`
	DayOfWeek   string    `json:"day_of_week"`
	TimeOfDay   string    `json:"time_of_day"`
	Taken       bool      `json:"taken"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
