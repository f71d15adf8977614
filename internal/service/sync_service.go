package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Wizard2999/el-super-cafe-backend/internal/dto"
	"github.com/Wizard2999/el-super-cafe-backend/internal/events"
	"github.com/Wizard2999/el-super-cafe-backend/internal/model"
	"github.com/Wizard2999/el-super-cafe-backend/internal/repository"
	"github.com/Wizard2999/el-super-cafe-backend/internal/stock"
)

// SyncService reconciles state uploaded from offline devices into the
// server's source of truth.
type SyncService interface {
	SyncBatch(ctx context.Context, deviceID string, req dto.SyncBatchRequest) (*dto.SyncBatchResponse, error)
	SyncSales(ctx context.Context, deviceID string, req dto.SyncSalesRequest) (*dto.SyncBatchResponse, error)
	SyncMovements(ctx context.Context, deviceID string, req dto.SyncMovementsRequest) (*dto.SyncBatchResponse, error)
	Status(ctx context.Context) (*dto.SyncStatusResponse, error)
	Users(ctx context.Context) ([]dto.SyncUserEntry, error)
}

// DuplicateOpenShiftError refuses a second open shift. ExistingID names the
// authoritative shift the device must adopt; the whole upload rolls back.
type DuplicateOpenShiftError struct {
	ExistingID uuid.UUID
}

func (e *DuplicateOpenShiftError) Error() string {
	return "ya existe un turno abierto, el dispositivo debe adoptarlo"
}

type syncService struct {
	shifts    repository.ShiftRepository
	sales     repository.SaleRepository
	movements repository.MovementRepository
	tables    repository.TableRepository
	users     repository.UserRepository
	syncLog   repository.SyncLogRepository
	engine    *stock.Engine
	bus       events.Broadcaster
	alerts    AlertDispatcher
}

func NewSyncService(
	shifts repository.ShiftRepository,
	sales repository.SaleRepository,
	movements repository.MovementRepository,
	tables repository.TableRepository,
	users repository.UserRepository,
	syncLog repository.SyncLogRepository,
	engine *stock.Engine,
	bus events.Broadcaster,
	alerts AlertDispatcher,
) SyncService {
	return &syncService{
		shifts:    shifts,
		sales:     sales,
		movements: movements,
		tables:    tables,
		users:     users,
		syncLog:   syncLog,
		engine:    engine,
		bus:       bus,
		alerts:    alerts,
	}
}

// batchEffects defers broadcasts until the enclosing transaction commits.
type batchEffects struct {
	existingOpen *model.Shift
	shiftChanges []*model.Shift
	linked       []linkedOrphans
	sales        []saleSideEffects
	movements    []map[string]interface{}
}

type linkedOrphans struct {
	shift *model.Shift
	sales []model.Sale
}

// SyncBatch processes shifts first (sales reference them), then sales with
// their grouped items, then movements — all in one transaction. Malformed
// records are isolated as per-record errors; a stock shortfall or a
// duplicate open shift rolls the whole upload back and surfaces as a
// request-level conflict.
func (s *syncService) SyncBatch(ctx context.Context, deviceID string, req dto.SyncBatchRequest) (*dto.SyncBatchResponse, error) {
	resp := &dto.SyncBatchResponse{}
	var fx batchEffects

	err := runTx(ctx, s.shifts.DB(), func(tx *gorm.DB) error {
		var err error
		if resp.Shifts, err = s.syncShiftsTx(tx, req.Shifts, &fx); err != nil {
			return err
		}
		resp.Sales, resp.SaleItems, err = s.syncSalesTx(ctx, tx, req.Sales, groupItems(req.SaleItems), &fx)
		if err != nil {
			return err
		}
		resp.Movements = s.syncMovementsTx(tx, req.Movements, &fx)
		return nil
	})
	if err != nil {
		// Rolled back in full. On a duplicate-open refusal the
		// authoritative shift is still re-broadcast so devices converge.
		if fx.existingOpen != nil {
			s.emitShiftChange(ctx, fx.existingOpen)
		}
		s.logConflict(ctx, deviceID, "batch",
			len(req.Shifts)+len(req.Sales)+len(req.SaleItems)+len(req.Movements), err)
		return nil, err
	}

	s.emitBatchEffects(ctx, &fx)
	s.logAttempt(ctx, deviceID, "batch", "shifts", len(req.Shifts), resp.Shifts)
	s.logAttempt(ctx, deviceID, "batch", "sales", len(req.Sales), resp.Sales)
	s.logAttempt(ctx, deviceID, "batch", "sale_items", len(req.SaleItems), resp.SaleItems)
	s.logAttempt(ctx, deviceID, "batch", "movements", len(req.Movements), resp.Movements)
	return resp, nil
}

func (s *syncService) SyncSales(ctx context.Context, deviceID string, req dto.SyncSalesRequest) (*dto.SyncBatchResponse, error) {
	resp := &dto.SyncBatchResponse{}
	var fx batchEffects

	err := runTx(ctx, s.sales.DB(), func(tx *gorm.DB) error {
		var err error
		resp.Sales, resp.SaleItems, err = s.syncSalesTx(ctx, tx, req.Sales, groupItems(req.SaleItems), &fx)
		return err
	})
	if err != nil {
		s.logConflict(ctx, deviceID, "sales", len(req.Sales)+len(req.SaleItems), err)
		return nil, err
	}

	s.emitBatchEffects(ctx, &fx)
	s.logAttempt(ctx, deviceID, "sales", "sales", len(req.Sales), resp.Sales)
	s.logAttempt(ctx, deviceID, "sales", "sale_items", len(req.SaleItems), resp.SaleItems)
	return resp, nil
}

func (s *syncService) SyncMovements(ctx context.Context, deviceID string, req dto.SyncMovementsRequest) (*dto.SyncBatchResponse, error) {
	resp := &dto.SyncBatchResponse{}
	var fx batchEffects

	err := runTx(ctx, s.movements.DB(), func(tx *gorm.DB) error {
		resp.Movements = s.syncMovementsTx(tx, req.Movements, &fx)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitBatchEffects(ctx, &fx)
	s.logAttempt(ctx, deviceID, "movements", "movements", len(req.Movements), resp.Movements)
	return resp, nil
}

// ─── Shifts ──────────────────────────────────────────────────────────────────

func (s *syncService) syncShiftsTx(tx *gorm.DB, uploads []dto.SyncShift, fx *batchEffects) (dto.EntityResult, error) {
	var result dto.EntityResult

	for _, up := range uploads {
		if err := s.syncOneShiftTx(tx, up, fx); err != nil {
			var dup *DuplicateOpenShiftError
			if errors.As(err, &dup) {
				return result, err
			}
			result.Errors = append(result.Errors, dto.RecordError{ID: up.ID, Error: err.Error()})
			continue
		}
		result.Synced++
	}
	return result, nil
}

func (s *syncService) syncOneShiftTx(tx *gorm.DB, up dto.SyncShift, fx *batchEffects) error {
	id, err := uuid.Parse(up.ID)
	if err != nil {
		return fmt.Errorf("id inválido: %w", err)
	}
	openerID, err := uuid.Parse(up.OpenedByID)
	if err != nil {
		return fmt.Errorf("opened_by_id inválido: %w", err)
	}

	exists, err := s.shifts.ExistsTx(tx, id)
	if err != nil {
		return err
	}

	// Duplicate-open refusal: a brand-new open shift while another open
	// shift exists must adopt the existing one instead.
	if !exists && up.Status == model.ShiftOpen {
		open, err := s.shifts.FindOpenForUpdateTx(tx)
		if err != nil && !errors.Is(err, repository.ErrNoOpenShift) {
			return err
		}
		if open != nil && open.ID != id {
			fx.existingOpen = open
			return &DuplicateOpenShiftError{ExistingID: open.ID}
		}
	}

	shift := shiftFromUpload(id, openerID, up)
	if err := s.shifts.UpsertTx(tx, shift); err != nil {
		return err
	}
	fx.shiftChanges = append(fx.shiftChanges, shift)

	// A newly created open shift adopts any transit-state sales that were
	// addressed to its opener.
	if !exists && up.Status == model.ShiftOpen {
		linkedSales, err := linkOrphans(tx, s.sales, openerID, id)
		if err != nil {
			return err
		}
		if len(linkedSales) > 0 {
			fx.linked = append(fx.linked, linkedOrphans{shift: shift, sales: linkedSales})
		}
	}
	return nil
}

func shiftFromUpload(id, openerID uuid.UUID, up dto.SyncShift) *model.Shift {
	return &model.Shift{
		ID:                id,
		OpenedByID:        openerID,
		OpenedByName:      up.OpenedByName,
		ClosedByID:        parseUUIDPtr(up.ClosedByID),
		ClosedByName:      up.ClosedByName,
		StartTime:         up.StartTime,
		EndTime:           up.EndTime,
		InitialCash:       up.InitialCash,
		FinalCashReported: up.FinalCashReported,
		CashDifference:    up.CashDifference,
		Status:            up.Status,
		IsSynced:          true,
	}
}

// linkOrphans attaches transit-state sales addressed to userID to the given
// shift. Shared with the shift activation path.
func linkOrphans(tx *gorm.DB, sales repository.SaleRepository, userID, shiftID uuid.UUID) ([]model.Sale, error) {
	orphans, err := sales.OrphansForReceiverTx(tx, userID)
	if err != nil {
		return nil, err
	}
	if len(orphans) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(orphans))
	for i, o := range orphans {
		ids[i] = o.ID
	}
	if err := sales.LinkOrphansTx(tx, ids, shiftID); err != nil {
		return nil, err
	}
	return orphans, nil
}

func (s *syncService) emitShiftChange(ctx context.Context, shift *model.Shift) {
	s.bus.Emit(ctx, events.ShiftChange, map[string]interface{}{
		"shift_id":       shift.ID.String(),
		"status":         shift.Status,
		"opened_by_id":   shift.OpenedByID.String(),
		"opened_by_name": shift.OpenedByName,
	})
}

func (s *syncService) emitSalesLinked(ctx context.Context, shift *model.Shift, sales []model.Sale) {
	ids := make([]string, len(sales))
	for i, sale := range sales {
		ids[i] = sale.ID.String()
	}
	s.bus.Emit(ctx, events.SalesLinked, map[string]interface{}{
		"shift_id": shift.ID.String(),
		"sale_ids": ids,
		"count":    len(ids),
	})
}

// ─── Sales ───────────────────────────────────────────────────────────────────

func groupItems(uploads []dto.SyncSaleItem) map[string][]dto.SyncSaleItem {
	grouped := make(map[string][]dto.SyncSaleItem)
	for _, it := range uploads {
		grouped[it.SaleID] = append(grouped[it.SaleID], it)
	}
	return grouped
}

// saleSideEffects collects what to broadcast once the transaction commits.
type saleSideEffects struct {
	sale         *model.Sale
	items        []model.SaleItem
	completed    bool
	tableFreed   *uuid.UUID
	tableTaken   *uuid.UUID
	stockChanges []stock.Change
}

func (s *syncService) syncSalesTx(ctx context.Context, tx *gorm.DB, uploads []dto.SyncSale, itemsBySale map[string][]dto.SyncSaleItem, fx *batchEffects) (sales, items dto.EntityResult, err error) {
	for _, up := range uploads {
		group := itemsBySale[up.ID]
		delete(itemsBySale, up.ID)

		if err := s.syncOneSaleTx(ctx, tx, up, group, fx); err != nil {
			var conflict *StockConflictError
			if errors.As(err, &conflict) {
				return sales, items, err
			}
			sales.Errors = append(sales.Errors, dto.RecordError{ID: up.ID, Error: err.Error()})
			if len(group) > 0 {
				items.Errors = append(items.Errors, dto.RecordError{ID: up.ID, Error: "la venta de los items no se sincronizó"})
			}
			continue
		}
		sales.Synced++
		items.Synced += len(group)
	}

	// Item groups whose sale is absent from this batch still apply against
	// sales the server already has.
	for saleID, group := range itemsBySale {
		if err := s.syncOrphanItemsTx(tx, saleID, group, fx); err != nil {
			items.Errors = append(items.Errors, dto.RecordError{ID: saleID, Error: err.Error()})
			continue
		}
		items.Synced += len(group)
	}
	return sales, items, nil
}

func (s *syncService) syncOneSaleTx(ctx context.Context, tx *gorm.DB, up dto.SyncSale, uploadItems []dto.SyncSaleItem, fx *batchEffects) error {
	id, err := uuid.Parse(up.ID)
	if err != nil {
		return fmt.Errorf("id inválido: %w", err)
	}

	var sfx saleSideEffects

	prev, err := s.sales.FindForUpdateTx(tx, id)
	isNew := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !isNew {
		return err
	}

	// Deduction fires exactly once, on the transition into completed.
	needsDeduction := up.Status == model.SaleCompleted &&
		(isNew || prev.Status != model.SaleCompleted)

	sale := saleFromUpload(id, up)
	if err := s.sales.UpsertTx(tx, sale); err != nil {
		return err
	}

	// Replace-strategy: the device uploads its full current item list, so
	// the persisted set is wiped and rebuilt. Sales uploaded without items
	// keep whatever the server already has.
	if len(uploadItems) > 0 {
		items, err := saleItemsFromUpload(id, uploadItems)
		if err != nil {
			return err
		}
		if err := s.sales.ReplaceItemsTx(tx, id, items); err != nil {
			return err
		}
	}

	// The device-reported total is never trusted: recompute from what is
	// actually persisted.
	persisted, err := s.sales.ItemsForSaleTx(tx, id)
	if err != nil {
		return err
	}
	total := decimal.Zero
	for _, it := range persisted {
		total = total.Add(it.Subtotal())
	}
	if err := s.sales.UpdateTotalTx(tx, id, total); err != nil {
		return err
	}
	sale.Total = total
	sale.Items = persisted

	if needsDeduction {
		stockItems := make([]stock.Item, 0, len(persisted))
		for _, it := range persisted {
			stockItems = append(stockItems, stock.Item{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				Modifiers: it.Modifiers,
			})
		}
		vr, changes, err := s.engine.ValidateAndDeductTx(ctx, tx, stockItems, stock.ReasonSale)
		if err != nil {
			return err
		}
		if !vr.IsValid {
			return &StockConflictError{Shortfalls: vr.Shortfalls}
		}
		sfx.stockChanges = changes
		sfx.completed = true
	}

	// Table side effects. Completed or cancelled frees the table; a live
	// pending sale occupies it.
	if sale.TableID != nil {
		switch sale.Status {
		case model.SaleCompleted, model.SaleCancelled, model.SaleUnpaidDebt:
			if err := s.tables.UpdateStatusTx(tx, *sale.TableID, model.TableFree); err != nil {
				return err
			}
			sfx.tableFreed = sale.TableID
		case model.SalePending:
			if err := s.tables.UpdateStatusTx(tx, *sale.TableID, model.TableOccupied); err != nil {
				return err
			}
			sfx.tableTaken = sale.TableID
		}
	}

	sfx.sale = sale
	sfx.items = persisted
	fx.sales = append(fx.sales, sfx)
	return nil
}

// syncOrphanItemsTx applies an item group for a sale that did not travel in
// this batch: same replace-then-recompute path, against the persisted sale.
// The sale's status does not change, so no deduction can fire here.
func (s *syncService) syncOrphanItemsTx(tx *gorm.DB, saleID string, group []dto.SyncSaleItem, fx *batchEffects) error {
	id, err := uuid.Parse(saleID)
	if err != nil {
		return fmt.Errorf("sale_id inválido: %w", err)
	}
	sale, err := s.sales.FindForUpdateTx(tx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.New("venta no encontrada para los items")
	}
	if err != nil {
		return err
	}

	items, err := saleItemsFromUpload(id, group)
	if err != nil {
		return err
	}
	if err := s.sales.ReplaceItemsTx(tx, id, items); err != nil {
		return err
	}

	persisted, err := s.sales.ItemsForSaleTx(tx, id)
	if err != nil {
		return err
	}
	total := decimal.Zero
	for _, it := range persisted {
		total = total.Add(it.Subtotal())
	}
	if err := s.sales.UpdateTotalTx(tx, id, total); err != nil {
		return err
	}
	sale.Total = total
	sale.Items = persisted

	fx.sales = append(fx.sales, saleSideEffects{sale: sale, items: persisted})
	return nil
}

func saleFromUpload(id uuid.UUID, up dto.SyncSale) *model.Sale {
	sale := &model.Sale{
		ID:                   id,
		Total:                up.Total,
		PaymentMethod:        up.PaymentMethod,
		Status:               up.Status,
		Observation:          up.Observation,
		UnpaidAuthorizedByID: parseUUIDPtr(up.UnpaidAuthorizedByID),
		ShiftID:              parseUUIDPtr(up.ShiftID),
		TableID:              parseUUIDPtr(up.TableID),
		PrintCount:           up.PrintCount,
		IsSynced:             true,
	}
	if up.CreatedAt != nil {
		sale.CreatedAt = *up.CreatedAt
	}
	return sale
}

func saleItemsFromUpload(saleID uuid.UUID, uploads []dto.SyncSaleItem) ([]model.SaleItem, error) {
	items := make([]model.SaleItem, 0, len(uploads))
	for _, up := range uploads {
		itemID, err := uuid.Parse(up.ID)
		if err != nil {
			return nil, fmt.Errorf("item id inválido: %w", err)
		}
		productID, err := uuid.Parse(up.ProductID)
		if err != nil {
			return nil, fmt.Errorf("product_id inválido: %w", err)
		}
		prep := up.PreparationStatus
		if prep == "" {
			prep = model.PrepPending
		}
		items = append(items, model.SaleItem{
			ID:                itemID,
			SaleID:            saleID,
			ProductID:         productID,
			ProductName:       up.ProductName,
			Quantity:          up.Quantity,
			UnitPrice:         up.UnitPrice,
			Modifiers:         up.Modifiers,
			PreparationStatus: prep,
			IsSynced:          true,
		})
	}
	return items, nil
}

// emitSaleEffects broadcasts in a fixed order: items exist before the
// order:update goes out, so subscribers never render an empty order.
func (s *syncService) emitSaleEffects(ctx context.Context, sfx saleSideEffects) {
	if sfx.sale == nil {
		return
	}

	s.bus.Emit(ctx, events.OrderUpdate, map[string]interface{}{
		"sale_id":  sfx.sale.ID.String(),
		"status":   sfx.sale.Status,
		"total":    sfx.sale.Total,
		"table_id": uuidPtrString(sfx.sale.TableID),
		"items":    itemsPayload(sfx.items),
	})

	if sfx.completed {
		s.bus.Emit(ctx, events.SaleComplete, map[string]interface{}{
			"sale_id":        sfx.sale.ID.String(),
			"total":          sfx.sale.Total,
			"payment_method": sfx.sale.PaymentMethod,
		})
	}
	if sfx.tableFreed != nil {
		s.emitTableStatus(ctx, *sfx.tableFreed, model.TableFree)
	}
	if sfx.tableTaken != nil {
		s.emitTableStatus(ctx, *sfx.tableTaken, model.TableOccupied)
	}
	broadcastStockChanges(ctx, s.bus, s.alerts, sfx.stockChanges)
}

func (s *syncService) emitTableStatus(ctx context.Context, tableID uuid.UUID, status string) {
	s.bus.Emit(ctx, events.TableStatusChange, map[string]interface{}{
		"table_id": tableID.String(),
		"status":   status,
	})
}

// ─── Movements ───────────────────────────────────────────────────────────────

func (s *syncService) syncMovementsTx(tx *gorm.DB, uploads []dto.SyncMovement, fx *batchEffects) dto.EntityResult {
	var result dto.EntityResult

	for _, up := range uploads {
		inserted, err := s.syncOneMovementTx(tx, up)
		if err != nil {
			result.Errors = append(result.Errors, dto.RecordError{ID: up.ID, Error: err.Error()})
			continue
		}
		result.Synced++
		if inserted {
			fx.movements = append(fx.movements, map[string]interface{}{
				"movement_id": up.ID,
				"type":        up.Type,
				"amount":      up.Amount,
				"shift_id":    up.ShiftID,
			})
		}
	}
	return result
}

func (s *syncService) syncOneMovementTx(tx *gorm.DB, up dto.SyncMovement) (bool, error) {
	id, err := uuid.Parse(up.ID)
	if err != nil {
		return false, fmt.Errorf("id inválido: %w", err)
	}

	movement := &model.Movement{
		ID:          id,
		Type:        up.Type,
		Amount:      up.Amount,
		Description: up.Description,
		ShiftID:     parseUUIDPtr(up.ShiftID),
		IsSynced:    true,
	}
	if up.CreatedAt != nil {
		movement.CreatedAt = *up.CreatedAt
	}
	return s.movements.UpsertTx(tx, movement)
}

// ─── Deferred broadcasts ─────────────────────────────────────────────────────

// emitBatchEffects replays the collected broadcasts in batch order: shifts,
// linked orphans, sales, movements.
func (s *syncService) emitBatchEffects(ctx context.Context, fx *batchEffects) {
	for _, shift := range fx.shiftChanges {
		s.emitShiftChange(ctx, shift)
	}
	for _, l := range fx.linked {
		s.emitSalesLinked(ctx, l.shift, l.sales)
	}
	for _, sfx := range fx.sales {
		s.emitSaleEffects(ctx, sfx)
	}
	for _, payload := range fx.movements {
		s.bus.Emit(ctx, events.MovementCreate, payload)
	}
}

// ─── Status / users ──────────────────────────────────────────────────────────

func (s *syncService) Status(ctx context.Context) (*dto.SyncStatusResponse, error) {
	recent, err := s.syncLog.Recent(ctx, 50)
	if err != nil {
		return nil, err
	}
	resp := &dto.SyncStatusResponse{
		ServerTime: time.Now().UTC(),
		Recent:     make([]dto.SyncLogEntry, 0, len(recent)),
	}
	for _, entry := range recent {
		resp.Recent = append(resp.Recent, dto.SyncLogEntry{
			DeviceID:     entry.DeviceID,
			SyncType:     entry.SyncType,
			TableName:    entry.EntityTable,
			RecordsCount: entry.RecordsCount,
			Status:       entry.Status,
			ErrorMessage: entry.ErrorMessage,
			CreatedAt:    entry.CreatedAt,
		})
	}
	return resp, nil
}

func (s *syncService) Users(ctx context.Context) ([]dto.SyncUserEntry, error) {
	users, err := s.users.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.SyncUserEntry, 0, len(users))
	for _, u := range users {
		out = append(out, dto.SyncUserEntry{
			ID:       u.ID.String(),
			Name:     u.Name,
			Username: u.Username,
			Role:     u.Role,
			PinCode:  u.PinCode,
		})
	}
	return out, nil
}

func (s *syncService) logAttempt(ctx context.Context, deviceID, syncType, table string, count int, result dto.EntityResult) {
	if count == 0 || s.syncLog == nil {
		return
	}
	status := model.SyncSuccess
	var errMsg *string
	if len(result.Errors) > 0 {
		status = model.SyncPartial
		if result.Synced == 0 {
			status = model.SyncFailed
		}
		msg := result.Errors[0].Error
		errMsg = &msg
	}
	entry := &model.SyncLog{
		DeviceID:     deviceID,
		SyncType:     syncType,
		EntityTable:  table,
		RecordsCount: count,
		Status:       status,
		ErrorMessage: errMsg,
	}
	if err := s.syncLog.Create(ctx, entry); err != nil {
		log.Error().Err(err).Str("device_id", deviceID).Msg("sync: no se pudo registrar el intento")
	}
}

// logConflict records an upload the conflict policy rolled back in full.
func (s *syncService) logConflict(ctx context.Context, deviceID, syncType string, count int, cause error) {
	if count == 0 || s.syncLog == nil {
		return
	}
	msg := cause.Error()
	entry := &model.SyncLog{
		DeviceID:     deviceID,
		SyncType:     syncType,
		EntityTable:  "batch",
		RecordsCount: count,
		Status:       model.SyncFailed,
		ErrorMessage: &msg,
	}
	if err := s.syncLog.Create(ctx, entry); err != nil {
		log.Error().Err(err).Str("device_id", deviceID).Msg("sync: no se pudo registrar el intento")
	}
}
