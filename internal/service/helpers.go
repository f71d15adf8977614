package service

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Wizard2999/el-super-cafe-backend/internal/dto"
	"github.com/Wizard2999/el-super-cafe-backend/internal/model"
)

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// parseUUIDPtr converts an optional string id. Invalid values come back nil;
// callers that require the id validate the string beforehand.
func parseUUIDPtr(s *string) *uuid.UUID {
	if s == nil || *s == "" {
		return nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil
	}
	return &id
}

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func shiftToResponse(s *model.Shift) *dto.ShiftResponse {
	return &dto.ShiftResponse{
		ID:                s.ID.String(),
		OpenedByID:        s.OpenedByID.String(),
		OpenedByName:      s.OpenedByName,
		ClosedByName:      s.ClosedByName,
		StartTime:         s.StartTime,
		EndTime:           s.EndTime,
		InitialCash:       s.InitialCash,
		FinalCashReported: s.FinalCashReported,
		CashDifference:    s.CashDifference,
		Status:            s.Status,
	}
}

func saleToResponse(s *model.Sale) *dto.SaleResponse {
	resp := &dto.SaleResponse{
		ID:            s.ID.String(),
		Total:         s.Total,
		PaymentMethod: s.PaymentMethod,
		Status:        s.Status,
		ShiftID:       uuidPtrString(s.ShiftID),
		TableID:       uuidPtrString(s.TableID),
		CreatedAt:     s.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Items:         make([]dto.SaleItemResponse, 0, len(s.Items)),
	}
	for _, it := range s.Items {
		resp.Items = append(resp.Items, itemToResponse(it))
	}
	return resp
}

func itemToResponse(it model.SaleItem) dto.SaleItemResponse {
	return dto.SaleItemResponse{
		ID:                it.ID.String(),
		ProductID:         it.ProductID.String(),
		ProductName:       it.ProductName,
		Quantity:          it.Quantity,
		UnitPrice:         it.UnitPrice,
		Subtotal:          it.Subtotal(),
		Modifiers:         it.Modifiers,
		PreparationStatus: it.PreparationStatus,
	}
}

// itemsPayload renders sale items for order:update events the way devices
// expect them.
func itemsPayload(items []model.SaleItem) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(items))
	for _, it := range items {
		out = append(out, map[string]interface{}{
			"id":                 it.ID.String(),
			"product_id":         it.ProductID.String(),
			"product_name":       it.ProductName,
			"quantity":           it.Quantity,
			"unit_price":         it.UnitPrice,
			"preparation_status": it.PreparationStatus,
		})
	}
	return out
}
