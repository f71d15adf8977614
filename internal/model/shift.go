package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Shift statuses. At most one shift may be open globally at any time —
// enforced by a partial unique index plus a locking existence check.
const (
	ShiftWaitingInitialCash = "waiting_initial_cash"
	ShiftOpen               = "open"
	ShiftClosed             = "closed"
)

// Shift is a cash register session. A shift created in waiting_initial_cash
// belongs to its designated opener, who must count and enter starting cash
// before the shift activates.
type Shift struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	OpenedByID   uuid.UUID `gorm:"type:uuid;not null;index"`
	OpenedByName string    `gorm:"not null"`
	ClosedByID   *uuid.UUID `gorm:"type:uuid"`
	ClosedByName *string
	// StartTime is nil until activation for waiting_initial_cash shifts.
	StartTime         *time.Time
	EndTime           *time.Time
	InitialCash       decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0"`
	FinalCashReported *decimal.Decimal `gorm:"type:decimal(12,2)"`
	CashDifference    *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Status            string           `gorm:"type:varchar(30);not null;index"`
	IsSynced          bool             `gorm:"not null;default:false"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Movement types. Movements are immutable ledger entries scoped to a shift.
const (
	MovementExpense = "gasto"
	MovementPayment = "abono"
	MovementIncome  = "ingreso"
)

// Movement is a cash-drawer transaction used for shift reconciliation totals.
type Movement struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Type        string          `gorm:"type:varchar(20);not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Description string          `gorm:"not null"`
	ShiftID     *uuid.UUID      `gorm:"type:uuid;index"`
	IsSynced    bool            `gorm:"not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
