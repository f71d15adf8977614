package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sale statuses.
const (
	SalePending    = "pending"
	SaleCompleted  = "completed"
	SaleCancelled  = "cancelled"
	SaleUnpaidDebt = "unpaid_debt"
)

// Sale is an order created on a device and reconciled server-side.
// Total is authoritative only after the server recomputes it from items.
//
// A pending sale normally references a shift. During a transit handoff it
// has ShiftID=nil and PendingReceiverUserID set; the next open shift created
// by that user adopts it.
type Sale struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Total                decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	PaymentMethod        string          `gorm:"type:varchar(30)"`
	Status               string          `gorm:"type:varchar(20);not null;default:'pending';index"`
	Observation          *string
	UnpaidAuthorizedByID *uuid.UUID `gorm:"type:uuid"`
	ShiftID              *uuid.UUID `gorm:"type:uuid;index"`
	TableID              *uuid.UUID `gorm:"type:uuid;index"`
	// PendingReceiverUserID marks a transit-state sale awaiting the
	// designated user to open a shift.
	PendingReceiverUserID *uuid.UUID `gorm:"type:uuid;index"`
	PrintCount            int        `gorm:"not null;default:0"`
	IsSynced              bool       `gorm:"not null;default:false"`
	CreatedAt             time.Time
	UpdatedAt             time.Time

	Items []SaleItem `gorm:"foreignKey:SaleID"`
}

// Item preparation statuses (kitchen workflow).
const (
	PrepPending   = "pending"
	PrepPreparing = "preparing"
	PrepReady     = "ready"
	PrepDelivered = "delivered"
)

// SaleItem is one line of a sale. ProductName and UnitPrice are snapshots
// taken at order time; items are replaced wholesale on every re-sync.
type SaleItem struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SaleID            uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID         uuid.UUID       `gorm:"type:uuid;not null"`
	ProductName       string          `gorm:"not null"`
	Quantity          int             `gorm:"not null;default:1"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Modifiers         ModifierList    `gorm:"type:jsonb"`
	PreparationStatus string          `gorm:"type:varchar(20);not null;default:'pending'"`
	IsSynced          bool            `gorm:"not null;default:false"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Subtotal returns quantity × unit price for this line.
func (i SaleItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Modifier types.
const (
	ModifierExcluded = "excluded"
	ModifierExtra    = "extra"
)

// Modifier adjusts ingredient consumption for one sale item:
// excluded zeroes the ingredient, extra multiplies it by 1+ExtraCount.
type Modifier struct {
	IngredientID uuid.UUID `json:"ingredient_id"`
	Type         string    `json:"type"`
	// ExtraCount defaults to 1 when absent.
	ExtraCount *int `json:"extra_count,omitempty"`
}

// ModifierList stores the modifiers blob as jsonb. Devices send loosely
// typed payloads; parsing happens once here at the boundary.
type ModifierList []Modifier

func (m ModifierList) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *ModifierList) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("modifiers: unsupported column type")
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}
