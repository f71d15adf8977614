package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Wizard2999/el-super-cafe-backend/internal/model"
)

// ─── Upload payloads ─────────────────────────────────────────────────────────
//
// Devices upload full records keyed by their locally generated UUIDs; the
// reconciler upserts by primary key. Any subset of the four arrays may be
// empty.

type SyncShift struct {
	ID                string           `json:"id"             validate:"required,uuid"`
	OpenedByID        string           `json:"opened_by_id"   validate:"required,uuid"`
	OpenedByName      string           `json:"opened_by_name" validate:"required"`
	ClosedByID        *string          `json:"closed_by_id"   validate:"omitempty,uuid"`
	ClosedByName      *string          `json:"closed_by_name"`
	StartTime         *time.Time       `json:"start_time"`
	EndTime           *time.Time       `json:"end_time"`
	InitialCash       decimal.Decimal  `json:"initial_cash"`
	FinalCashReported *decimal.Decimal `json:"final_cash_reported"`
	CashDifference    *decimal.Decimal `json:"cash_difference"`
	Status            string           `json:"status" validate:"required,oneof=waiting_initial_cash open closed"`
}

type SyncSale struct {
	ID                   string          `json:"id"     validate:"required,uuid"`
	Total                decimal.Decimal `json:"total"`
	PaymentMethod        string          `json:"payment_method"`
	Status               string          `json:"status" validate:"required,oneof=pending completed cancelled unpaid_debt"`
	Observation          *string         `json:"observation"`
	UnpaidAuthorizedByID *string         `json:"unpaid_authorized_by_id" validate:"omitempty,uuid"`
	ShiftID              *string         `json:"shift_id"                validate:"omitempty,uuid"`
	TableID              *string         `json:"table_id"                validate:"omitempty,uuid"`
	PrintCount           int             `json:"print_count"`
	CreatedAt            *time.Time      `json:"created_at"`
}

type SyncSaleItem struct {
	ID                string             `json:"id"         validate:"required,uuid"`
	SaleID            string             `json:"sale_id"    validate:"required,uuid"`
	ProductID         string             `json:"product_id" validate:"required,uuid"`
	ProductName       string             `json:"product_name"`
	Quantity          int                `json:"quantity"   validate:"required,min=1"`
	UnitPrice         decimal.Decimal    `json:"unit_price"`
	Modifiers         model.ModifierList `json:"modifiers"`
	PreparationStatus string             `json:"preparation_status" validate:"omitempty,oneof=pending preparing ready delivered"`
}

type SyncMovement struct {
	ID          string          `json:"id"     validate:"required,uuid"`
	Type        string          `json:"type"   validate:"required,oneof=gasto abono ingreso"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Description string          `json:"description"`
	ShiftID     *string         `json:"shift_id" validate:"omitempty,uuid"`
	CreatedAt   *time.Time      `json:"created_at"`
}

type SyncBatchRequest struct {
	Shifts    []SyncShift    `json:"shifts"     validate:"omitempty,dive"`
	Sales     []SyncSale     `json:"sales"      validate:"omitempty,dive"`
	SaleItems []SyncSaleItem `json:"sale_items" validate:"omitempty,dive"`
	Movements []SyncMovement `json:"movements"  validate:"omitempty,dive"`
}

type SyncSalesRequest struct {
	Sales     []SyncSale     `json:"sales"      validate:"required,min=1,dive"`
	SaleItems []SyncSaleItem `json:"sale_items" validate:"omitempty,dive"`
}

type SyncMovementsRequest struct {
	Movements []SyncMovement `json:"movements" validate:"required,min=1,dive"`
}

// ─── Results ─────────────────────────────────────────────────────────────────

// RecordError isolates one failed record; the rest of the batch proceeds.
// Conflicts that abort the whole upload (stock shortfall, duplicate open
// shift) never appear here — those surface as a request-level 409.
type RecordError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type EntityResult struct {
	Synced int           `json:"synced"`
	Errors []RecordError `json:"errors,omitempty"`
}

type SyncBatchResponse struct {
	Shifts    EntityResult `json:"shifts"`
	Sales     EntityResult `json:"sales"`
	SaleItems EntityResult `json:"sale_items"`
	Movements EntityResult `json:"movements"`
}

// Total returns synced counts across all entity types.
func (r SyncBatchResponse) Total() (synced, errored int) {
	for _, er := range []EntityResult{r.Shifts, r.Sales, r.SaleItems, r.Movements} {
		synced += er.Synced
		errored += len(er.Errors)
	}
	return
}

type SyncStatusResponse struct {
	ServerTime time.Time      `json:"server_time"`
	Recent     []SyncLogEntry `json:"recent"`
}

type SyncLogEntry struct {
	DeviceID     string    `json:"device_id"`
	SyncType     string    `json:"sync_type"`
	TableName    string    `json:"table_name"`
	RecordsCount int       `json:"records_count"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type SyncUserEntry struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Username string  `json:"username"`
	Role     string  `json:"role"`
	PinCode  *string `json:"pin_code,omitempty"`
}
