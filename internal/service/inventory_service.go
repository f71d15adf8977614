package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Wizard2999/el-super-cafe-backend/internal/events"
	"github.com/Wizard2999/el-super-cafe-backend/internal/repository"
	"github.com/Wizard2999/el-super-cafe-backend/internal/stock"
)

var ErrProductNotFound = errors.New("producto no encontrado")

// InventoryService covers the admin-facing stock adjustments that bypass
// the sale path. Deductions still floor at zero.
type InventoryService interface {
	AdjustStock(ctx context.Context, productID uuid.UUID, delta decimal.Decimal, reason string) error
}

type inventoryService struct {
	products repository.ProductRepository
	bus      events.Broadcaster
	alerts   AlertDispatcher
}

func NewInventoryService(products repository.ProductRepository, bus events.Broadcaster, alerts AlertDispatcher) InventoryService {
	return &inventoryService{products: products, bus: bus, alerts: alerts}
}

func (s *inventoryService) AdjustStock(ctx context.Context, productID uuid.UUID, delta decimal.Decimal, reason string) error {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return ErrProductNotFound
	}
	if reason == "" {
		reason = stock.ReasonAdminUpdate
	}

	previous := product.StockCurrent
	newStock := previous.Add(delta)
	if newStock.IsNegative() {
		newStock = decimal.Zero
	}
	if err := s.products.AdjustStock(ctx, productID, delta); err != nil {
		return err
	}

	broadcastStockChanges(ctx, s.bus, s.alerts, []stock.Change{{
		ProductID:     product.ID,
		ProductName:   product.Name,
		PreviousStock: previous,
		NewStock:      newStock,
		StockMin:      product.StockMin,
		Unit:          product.Unit,
		Reason:        reason,
		LowStock:      previous.GreaterThan(product.StockMin) && newStock.LessThanOrEqual(product.StockMin),
	}})
	return nil
}
