package service

import (
	"context"

	"github.com/Wizard2999/el-super-cafe-backend/internal/events"
	"github.com/Wizard2999/el-super-cafe-backend/internal/stock"
	"github.com/Wizard2999/el-super-cafe-backend/internal/worker"
)

// AlertDispatcher enqueues low-stock alert jobs. Satisfied by
// *worker.Dispatcher; tests pass a recorder or nil.
type AlertDispatcher interface {
	EnqueueLowStockAlert(ctx context.Context, alert worker.LowStockAlert)
}

// broadcastStockChanges emits one stock:change per applied deduction and
// queues alerts for entities that crossed their minimum. Called after the
// enclosing transaction committed.
func broadcastStockChanges(ctx context.Context, b events.Broadcaster, alerts AlertDispatcher, changes []stock.Change) {
	for _, ch := range changes {
		b.Emit(ctx, events.StockChange, map[string]interface{}{
			"product_id":     ch.ProductID.String(),
			"product_name":   ch.ProductName,
			"previous_stock": ch.PreviousStock,
			"new_stock":      ch.NewStock,
			"reason":         ch.Reason,
		})
		if ch.LowStock && alerts != nil {
			alerts.EnqueueLowStockAlert(ctx, worker.LowStockAlert{
				ProductName: ch.ProductName,
				NewStock:    ch.NewStock.String(),
				StockMin:    ch.StockMin.String(),
				Unit:        ch.Unit,
			})
		}
	}
}
