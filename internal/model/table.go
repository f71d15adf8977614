package model

import (
	"time"

	"github.com/google/uuid"
)

// Table statuses.
const (
	TableFree     = "free"
	TableOccupied = "occupied"
)

// CafeTable is a physical table. A pending sale with TableID set occupies
// it; completing or cancelling the sale frees it.
type CafeTable struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"not null;uniqueIndex"`
	Status    string    `gorm:"type:varchar(20);not null;default:'free'"`
	IsSynced  bool      `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CafeTable) TableName() string { return "cafe_tables" }
