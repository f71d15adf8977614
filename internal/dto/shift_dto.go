package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type ActivateShiftRequest struct {
	InitialCash decimal.Decimal `json:"initial_cash" validate:"required"`
}

// HandoverRequest moves pending sales from the open shift to another open
// shift, without closing anything. An empty SaleIDs moves every pending
// sale; a named list moves exactly those and fails if any is not pending.
type HandoverRequest struct {
	TargetShiftID string   `json:"target_shift_id" validate:"required,uuid"`
	SaleIDs       []string `json:"sale_ids"        validate:"omitempty,dive,uuid"`
}

// HandoverAndCloseRequest opens a fresh shift for the receiver with the
// counted drawer, reassigns the pending sales to it, and closes the current
// shift — all in one transaction.
type HandoverAndCloseRequest struct {
	ReceiverUserID    string          `json:"receiver_user_id"    validate:"required,uuid"`
	InitialCash       decimal.Decimal `json:"initial_cash"        validate:"required"`
	FinalCashReported decimal.Decimal `json:"final_cash_reported" validate:"required"`
}

// AtomicHandoverRequest closes the current shift and leaves a successor in
// waiting_initial_cash for the named user, carrying the pending sales.
type AtomicHandoverRequest struct {
	SuccessorUserID   string          `json:"successor_user_id"   validate:"required,uuid"`
	FinalCashReported decimal.Decimal `json:"final_cash_reported" validate:"required"`
}

// TransferTablesRequest detaches pending sales into transit state addressed
// to the receiver, who has no shift yet. SaleIDs selects as in
// HandoverRequest.
type TransferTablesRequest struct {
	ReceiverUserID string   `json:"receiver_user_id" validate:"required,uuid"`
	SaleIDs        []string `json:"sale_ids"         validate:"omitempty,dive,uuid"`
}

type CloseShiftRequest struct {
	FinalCashReported decimal.Decimal `json:"final_cash_reported" validate:"required"`
}

type ShiftResponse struct {
	ID                string           `json:"id"`
	OpenedByID        string           `json:"opened_by_id"`
	OpenedByName      string           `json:"opened_by_name"`
	ClosedByName      *string          `json:"closed_by_name,omitempty"`
	StartTime         *time.Time       `json:"start_time"`
	EndTime           *time.Time       `json:"end_time"`
	InitialCash       decimal.Decimal  `json:"initial_cash"`
	FinalCashReported *decimal.Decimal `json:"final_cash_reported,omitempty"`
	CashDifference    *decimal.Decimal `json:"cash_difference,omitempty"`
	Status            string           `json:"status"`
}

type HandoverResponse struct {
	MovedSales    int            `json:"moved_sales"`
	ClosedShift   *ShiftResponse `json:"closed_shift,omitempty"`
	NewShift      *ShiftResponse `json:"new_shift,omitempty"`
	TargetShiftID string         `json:"target_shift_id,omitempty"`
}
