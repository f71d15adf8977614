package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreditPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Description string          `json:"description"`
	ShiftID     *string         `json:"shift_id" validate:"omitempty,uuid"`
}

type OpeningBalanceRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Description string          `json:"description"`
}

type CreditTransactionResponse struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Remaining   decimal.Decimal `json:"remaining"`
	Description string          `json:"description"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

type CustomerDetailResponse struct {
	ID           string                      `json:"id"`
	Name         string                      `json:"name"`
	CurrentDebt  decimal.Decimal             `json:"current_debt"`
	CreditLimit  decimal.Decimal             `json:"credit_limit"`
	Transactions []CreditTransactionResponse `json:"transactions"`
}

// PaymentAllocation shows how one payment split across open charges.
type PaymentAllocation struct {
	ChargeID string          `json:"charge_id"`
	Applied  decimal.Decimal `json:"applied"`
}

type CreditPaymentResponse struct {
	CustomerID  string              `json:"customer_id"`
	Amount      decimal.Decimal     `json:"amount"`
	NewDebt     decimal.Decimal     `json:"new_debt"`
	Allocations []PaymentAllocation `json:"allocations"`
}
