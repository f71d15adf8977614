package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is both a sellable item and a stock entity. A product is either
// stock-tracked (ManageStock=true, consumption decrements StockCurrent
// directly) or recipe-based (ManageStock=false, consumption flows through
// its Recipe edges into ingredient products).
type Product struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name       string    `gorm:"index;not null"`
	CategoryID *uuid.UUID
	Price      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	// CostUnit is the purchase cost of one whole stock unit.
	CostUnit    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	ManageStock bool            `gorm:"not null;default:false"`
	// StockCurrent is decimal because portion yields produce fractional
	// consumption (e.g. 2 portions of a yield-6 ingredient = 0.3333 units).
	// Invariant: never negative — deductions floor at zero.
	StockCurrent decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0"`
	// StockMin triggers the low-stock alert when crossed downward.
	StockMin decimal.Decimal `gorm:"type:decimal(12,4);not null;default:5"`
	Unit     string          `gorm:"not null;default:'unid'"`
	// YieldPerUnit: sellable portions produced by one stock unit
	// (one tomato → 6 slices). Recipes reference portions, stock is
	// tracked in whole units.
	YieldPerUnit decimal.Decimal `gorm:"type:decimal(10,3);not null;default:1"`
	PortionName  *string
	IsActive     bool `gorm:"not null;default:true"`
	IsSynced     bool `gorm:"not null;default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Recipes []Recipe `gorm:"foreignKey:ProductID"`
}

// Recipe is one bill-of-materials edge: selling one unit of Product consumes
// QuantityRequired portions of the ingredient. Recipes do not nest —
// ingredients are leaf stock entities in the deduction pass.
type Recipe struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProductID    uuid.UUID `gorm:"type:uuid;not null;index"`
	IngredientID uuid.UUID `gorm:"type:uuid;not null;index"`
	// QuantityRequired is in portions of the ingredient, per unit sold.
	QuantityRequired decimal.Decimal `gorm:"type:decimal(10,4);not null;default:0"`
	IsSynced         bool            `gorm:"not null;default:false"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Ingredient *Product `gorm:"foreignKey:IngredientID"`
}
