package model

import "time"

// Sync attempt outcomes.
const (
	SyncSuccess = "success"
	SyncPartial = "partial"
	SyncFailed  = "failed"
)

// SyncLog records one device upload attempt. DeviceID is the opaque
// X-Device-ID header value — logging only, never authorization.
type SyncLog struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	DeviceID     string `gorm:"not null;index"`
	SyncType     string `gorm:"type:varchar(20);not null"`
	EntityTable  string `gorm:"column:table_name;type:varchar(30);not null"`
	RecordsCount int    `gorm:"not null;default:0"`
	Status       string `gorm:"type:varchar(20);not null"`
	ErrorMessage *string
	CreatedAt    time.Time
}

func (SyncLog) TableName() string { return "sync_log" }
