// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Fields: fields}
}

// StockConflict is the 409 envelope for stock-validated sale uploads: the
// whole sale was rejected and the itemized shortfalls tell the device what
// to show at the register.
type StockConflict struct {
	Detail     string      `json:"detail"`
	Shortfalls interface{} `json:"shortfalls"`
}

func NewStockConflict(detail string, shortfalls interface{}) *StockConflict {
	return &StockConflict{Detail: detail, Shortfalls: shortfalls}
}

// ShiftConflict is the 409 envelope for a refused duplicate open shift.
// ExistingShiftID names the authoritative shift the device must adopt.
type ShiftConflict struct {
	Detail          string `json:"detail"`
	ExistingShiftID string `json:"existing_shift_id"`
}

func NewShiftConflict(detail, existingShiftID string) *ShiftConflict {
	return &ShiftConflict{Detail: detail, ExistingShiftID: existingShiftID}
}
