package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Wizard2999/el-super-cafe-backend/internal/dto"
	"github.com/Wizard2999/el-super-cafe-backend/internal/events"
	"github.com/Wizard2999/el-super-cafe-backend/internal/model"
	"github.com/Wizard2999/el-super-cafe-backend/internal/repository"
	"github.com/Wizard2999/el-super-cafe-backend/internal/stock"
)

var (
	ErrSaleNotFound = errors.New("venta no encontrada")
	ErrItemNotFound = errors.New("producto no encontrado en la venta")
)

// StockConflictError rejects a stock-validated upload in full: nothing was
// written, and the shortfalls are itemized for the register UI.
type StockConflictError struct {
	Shortfalls []stock.Shortfall
}

func (e *StockConflictError) Error() string {
	return stock.FormatShortfalls(e.Shortfalls)
}

// SaleService covers the single-sale operations devices call directly,
// outside the batch reconciler.
type SaleService interface {
	Checkout(ctx context.Context, req dto.CheckoutRequest) (*dto.SaleResponse, error)
	Cancel(ctx context.Context, saleID uuid.UUID, reason string) (*dto.SaleResponse, error)
	DeleteItem(ctx context.Context, saleID, itemID uuid.UUID) (*dto.SaleResponse, error)
	UpdateItemStatus(ctx context.Context, saleID, itemID uuid.UUID, status string) error
	Get(ctx context.Context, saleID uuid.UUID) (*dto.SaleResponse, error)
}

type saleService struct {
	sales  repository.SaleRepository
	tables repository.TableRepository
	engine *stock.Engine
	bus    events.Broadcaster
	alerts AlertDispatcher
}

func NewSaleService(
	sales repository.SaleRepository,
	tables repository.TableRepository,
	engine *stock.Engine,
	bus events.Broadcaster,
	alerts AlertDispatcher,
) SaleService {
	return &saleService{sales: sales, tables: tables, engine: engine, bus: bus, alerts: alerts}
}

// Checkout is the stock-validated upload path: unlike the batch reconciler,
// a shortfall here rejects the whole sale with zero partial effect. The
// pre-check outside the transaction fails fast; the deduction re-validates
// under row locks so a concurrent device cannot slip past it.
func (s *saleService) Checkout(ctx context.Context, req dto.CheckoutRequest) (*dto.SaleResponse, error) {
	saleID, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, err
	}

	stockItems := make([]stock.Item, 0, len(req.Items))
	for _, it := range req.Items {
		pid, err := uuid.Parse(it.ProductID)
		if err != nil {
			return nil, errors.New("product_id inválido")
		}
		stockItems = append(stockItems, stock.Item{
			ProductID: pid,
			Quantity:  it.Quantity,
			Modifiers: it.Modifiers,
		})
	}

	status := req.Status
	if status == "" {
		status = model.SaleCompleted
	}
	deduct := status == model.SaleCompleted

	if deduct {
		pre, err := s.engine.Validate(ctx, stockItems)
		if err != nil {
			return nil, err
		}
		if !pre.IsValid {
			return nil, &StockConflictError{Shortfalls: pre.Shortfalls}
		}
	}

	var (
		sale    *model.Sale
		changes []stock.Change
	)
	err = runTx(ctx, s.sales.DB(), func(tx *gorm.DB) error {
		sale = &model.Sale{
			ID:            saleID,
			PaymentMethod: req.PaymentMethod,
			Status:        status,
			Observation:   req.Observation,
			ShiftID:       parseUUIDPtr(req.ShiftID),
			TableID:       parseUUIDPtr(req.TableID),
			IsSynced:      true,
		}
		if err := s.sales.UpsertTx(tx, sale); err != nil {
			return err
		}

		items := make([]model.SaleItem, 0, len(req.Items))
		total := decimal.Zero
		for i, it := range req.Items {
			item := model.SaleItem{
				ID:                uuid.New(),
				SaleID:            saleID,
				ProductID:         stockItems[i].ProductID,
				ProductName:       it.ProductName,
				Quantity:          it.Quantity,
				UnitPrice:         it.UnitPrice,
				Modifiers:         it.Modifiers,
				PreparationStatus: model.PrepPending,
				IsSynced:          true,
			}
			items = append(items, item)
			total = total.Add(item.Subtotal())
		}
		if err := s.sales.ReplaceItemsTx(tx, saleID, items); err != nil {
			return err
		}
		if err := s.sales.UpdateTotalTx(tx, saleID, total); err != nil {
			return err
		}
		sale.Total = total
		sale.Items = items

		if deduct {
			vr, applied, err := s.engine.ValidateAndDeductTx(ctx, tx, stockItems, stock.ReasonSale)
			if err != nil {
				return err
			}
			if !vr.IsValid {
				return &StockConflictError{Shortfalls: vr.Shortfalls}
			}
			changes = applied
		}

		if sale.TableID != nil {
			tableStatus := model.TableOccupied
			if status != model.SalePending {
				tableStatus = model.TableFree
			}
			if err := s.tables.UpdateStatusTx(tx, *sale.TableID, tableStatus); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.bus.Emit(ctx, events.OrderUpdate, map[string]interface{}{
		"sale_id":  sale.ID.String(),
		"status":   sale.Status,
		"total":    sale.Total,
		"table_id": uuidPtrString(sale.TableID),
		"items":    itemsPayload(sale.Items),
	})
	if status == model.SaleCompleted {
		s.bus.Emit(ctx, events.SaleComplete, map[string]interface{}{
			"sale_id":        sale.ID.String(),
			"total":          sale.Total,
			"payment_method": sale.PaymentMethod,
		})
	}
	if sale.TableID != nil {
		tableStatus := model.TableOccupied
		if status != model.SalePending {
			tableStatus = model.TableFree
		}
		s.bus.Emit(ctx, events.TableStatusChange, map[string]interface{}{
			"table_id": sale.TableID.String(),
			"status":   tableStatus,
		})
	}
	broadcastStockChanges(ctx, s.bus, s.alerts, changes)

	return saleToResponse(sale), nil
}

// Cancel wipes the items and marks the sale cancelled. No deduction ever
// ran for a pending sale, so nothing needs restocking.
func (s *saleService) Cancel(ctx context.Context, saleID uuid.UUID, reason string) (*dto.SaleResponse, error) {
	var sale *model.Sale

	err := runTx(ctx, s.sales.DB(), func(tx *gorm.DB) error {
		var err error
		sale, err = s.sales.FindForUpdateTx(tx, saleID)
		if err != nil {
			return ErrSaleNotFound
		}
		if err := s.sales.DeleteItemsTx(tx, saleID); err != nil {
			return err
		}
		if err := s.sales.UpdateStatusTx(tx, saleID, model.SaleCancelled); err != nil {
			return err
		}
		if err := s.sales.UpdateTotalTx(tx, saleID, decimal.Zero); err != nil {
			return err
		}
		sale.Status = model.SaleCancelled
		sale.Total = decimal.Zero
		sale.Items = nil
		if reason != "" {
			sale.Observation = &reason
		}

		if sale.TableID != nil {
			return s.tables.UpdateStatusTx(tx, *sale.TableID, model.TableFree)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.bus.Emit(ctx, events.OrderUpdate, map[string]interface{}{
		"sale_id":  sale.ID.String(),
		"status":   sale.Status,
		"total":    sale.Total,
		"table_id": uuidPtrString(sale.TableID),
		"items":    []map[string]interface{}{},
	})
	if sale.TableID != nil {
		s.bus.Emit(ctx, events.TableStatusChange, map[string]interface{}{
			"table_id": sale.TableID.String(),
			"status":   model.TableFree,
		})
	}
	return saleToResponse(sale), nil
}

// DeleteItem removes one line and recomputes the authoritative total.
func (s *saleService) DeleteItem(ctx context.Context, saleID, itemID uuid.UUID) (*dto.SaleResponse, error) {
	affected, err := s.sales.DeleteItem(ctx, saleID, itemID)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrItemNotFound
	}

	items, err := s.sales.ItemsForSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	if err := s.sales.UpdateTotal(ctx, saleID, total); err != nil {
		return nil, err
	}

	sale, err := s.sales.FindByID(ctx, saleID)
	if err != nil {
		return nil, ErrSaleNotFound
	}

	s.bus.Emit(ctx, events.OrderUpdate, map[string]interface{}{
		"sale_id":  sale.ID.String(),
		"status":   sale.Status,
		"total":    sale.Total,
		"table_id": uuidPtrString(sale.TableID),
		"items":    itemsPayload(sale.Items),
	})
	return saleToResponse(sale), nil
}

// UpdateItemStatus drives the kitchen workflow on one line.
func (s *saleService) UpdateItemStatus(ctx context.Context, saleID, itemID uuid.UUID, status string) error {
	affected, err := s.sales.UpdateItemStatus(ctx, saleID, itemID, status)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrItemNotFound
	}

	s.bus.Emit(ctx, events.KitchenUpdate, map[string]interface{}{
		"sale_id":            saleID.String(),
		"item_id":            itemID.String(),
		"preparation_status": status,
	})
	return nil
}

func (s *saleService) Get(ctx context.Context, saleID uuid.UUID) (*dto.SaleResponse, error) {
	sale, err := s.sales.FindByID(ctx, saleID)
	if err != nil {
		return nil, ErrSaleNotFound
	}
	return saleToResponse(sale), nil
}
