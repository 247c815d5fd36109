package model

import "time"

const (
	BackupStatusPending   = "pending"
	BackupStatusUploading = "uploading"
	BackupStatusCompleted = "completed"
	BackupStatusFailed    = "failed"
)

type Backup struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	Filename    string    `json:"filename"`
	S3Key       string    `json:"s3_key"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}
