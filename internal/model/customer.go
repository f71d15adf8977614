package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Customer carries a running credit balance. CurrentDebt can go negative
// (credit in favor) — overpayment is a caller/UI concern, not a data rule.
// Invariant: CurrentDebt == Σ charges − Σ payments, and for outstanding
// charges Σ remaining == CurrentDebt.
type Customer struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name           string    `gorm:"not null;index"`
	Phone          *string
	Address        *string
	Identification *string
	Email          *string
	CreditLimit    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CurrentDebt    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	IsActive       bool            `gorm:"not null;default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Credit transaction types.
const (
	CreditOpeningBalance = "opening_balance"
	CreditCharge         = "charge"
	CreditPayment        = "payment"
)

// CreditTransaction is one ledger entry. Charges and opening balances carry
// Remaining, consumed oldest-first by payments; each payment links to the
// specific charge it settles.
type CreditTransaction struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CustomerID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Type       string          `gorm:"type:varchar(20);not null"`
	Amount     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// Remaining is meaningful for charge/opening_balance rows only.
	Remaining       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	RelatedChargeID *uuid.UUID      `gorm:"type:uuid"`
	MovementID      *uuid.UUID      `gorm:"type:uuid"`
	ShiftID         *uuid.UUID      `gorm:"type:uuid"`
	SaleID          *uuid.UUID      `gorm:"type:uuid"`
	Description     string
	CreatedByID     *uuid.UUID `gorm:"type:uuid"`
	CreatedByName   *string
	CreatedAt       time.Time
}
