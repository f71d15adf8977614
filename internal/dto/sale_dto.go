package dto

import (
	"github.com/shopspring/decimal"

	"github.com/Wizard2999/el-super-cafe-backend/internal/model"
)

type CheckoutItemRequest struct {
	ProductID   string             `json:"product_id" validate:"required,uuid"`
	ProductName string             `json:"product_name"`
	Quantity    int                `json:"quantity"   validate:"required,min=1"`
	UnitPrice   decimal.Decimal    `json:"unit_price"`
	Modifiers   model.ModifierList `json:"modifiers"`
}

// CheckoutRequest is the stock-validated single-sale upload. Unlike the
// batch path, a stock shortfall here rejects the whole sale.
type CheckoutRequest struct {
	ID            string                `json:"id"             validate:"required,uuid"`
	PaymentMethod string                `json:"payment_method" validate:"required"`
	Status        string                `json:"status"         validate:"omitempty,oneof=pending completed unpaid_debt"`
	ShiftID       *string               `json:"shift_id"       validate:"omitempty,uuid"`
	TableID       *string               `json:"table_id"       validate:"omitempty,uuid"`
	Observation   *string               `json:"observation"`
	Items         []CheckoutItemRequest `json:"items" validate:"required,min=1,dive"`
}

type SaleItemResponse struct {
	ID                string             `json:"id"`
	ProductID         string             `json:"product_id"`
	ProductName       string             `json:"product_name"`
	Quantity          int                `json:"quantity"`
	UnitPrice         decimal.Decimal    `json:"unit_price"`
	Subtotal          decimal.Decimal    `json:"subtotal"`
	Modifiers         model.ModifierList `json:"modifiers,omitempty"`
	PreparationStatus string             `json:"preparation_status"`
}

type SaleResponse struct {
	ID            string             `json:"id"`
	Total         decimal.Decimal    `json:"total"`
	PaymentMethod string             `json:"payment_method"`
	Status        string             `json:"status"`
	ShiftID       *string            `json:"shift_id"`
	TableID       *string            `json:"table_id"`
	Items         []SaleItemResponse `json:"items"`
	CreatedAt     string             `json:"created_at"`
}

type UpdateItemStatusRequest struct {
	PreparationStatus string `json:"preparation_status" validate:"required,oneof=pending preparing ready delivered"`
}

type CancelSaleRequest struct {
	Reason string `json:"reason"`
}
