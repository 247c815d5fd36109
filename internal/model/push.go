package model

import "time"

const (
	NotifTypeDoseDue      = "dose_due"
	NotifTypeLowStock     = "low_stock"
	NotifTypeExpiringSoon = "expiring_soon"
)

type PushSubscription struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	UserID      int64     `json:"user_id"`
	Endpoint    string    `json:"endpoint"`
	P256dhKey   string    `json:"p256dh_key"`
	AuthKey     string    `json:"auth_key"`
	CreatedAt   time.Time `json:"created_at"`
}
