package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wizard2999/el-super-cafe-backend/internal/dto"
	"github.com/Wizard2999/el-super-cafe-backend/internal/events"
	"github.com/Wizard2999/el-super-cafe-backend/internal/model"
	"github.com/Wizard2999/el-super-cafe-backend/internal/stock"
)

type syncFixture struct {
	shifts    *stubShiftRepo
	sales     *stubSaleRepo
	movements *stubMovementRepo
	tables    *stubTableRepo
	users     *stubUserRepo
	products  *stubProductRepo
	syncLog   *stubSyncLogRepo
	bus       *events.Recorder
	alerts    *stubAlerts
	svc       SyncService
}

func newSyncFixture() *syncFixture {
	f := &syncFixture{
		shifts:    newStubShiftRepo(),
		sales:     newStubSaleRepo(),
		movements: newStubMovementRepo(),
		tables:    newStubTableRepo(),
		users:     newStubUserRepo(),
		products:  newStubProductRepo(),
		syncLog:   &stubSyncLogRepo{},
		bus:       events.NewRecorder(),
		alerts:    &stubAlerts{},
	}
	f.svc = NewSyncService(
		f.shifts, f.sales, f.movements, f.tables, f.users, f.syncLog,
		stock.NewEngine(f.products), f.bus, f.alerts,
	)
	return f
}

func saleItemUpload(saleID string, productID uuid.UUID, name string, qty int, price string) dto.SyncSaleItem {
	return dto.SyncSaleItem{
		ID:          uuid.NewString(),
		SaleID:      saleID,
		ProductID:   productID.String(),
		ProductName: name,
		Quantity:    qty,
		UnitPrice:   dec(price),
	}
}

func TestSyncSaleRecomputesTotal(t *testing.T) {
	f := newSyncFixture()
	coffee := f.products.add(&model.Product{Name: "Café", ManageStock: true, StockCurrent: dec("50")})
	saleID := uuid.NewString()

	resp, err := f.svc.SyncBatch(context.Background(), "dev-1", dto.SyncBatchRequest{
		Sales: []dto.SyncSale{{
			ID:            saleID,
			Total:         dec("999"), // device-reported total is ignored
			PaymentMethod: "cash",
			Status:        model.SaleCompleted,
		}},
		SaleItems: []dto.SyncSaleItem{
			saleItemUpload(saleID, coffee.ID, "Café", 2, "100.50"),
			saleItemUpload(saleID, coffee.ID, "Café", 1, "25"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Sales.Synced)
	assert.Empty(t, resp.Sales.Errors)

	persisted := f.sales.sales[uuid.MustParse(saleID)]
	require.NotNil(t, persisted)
	assert.True(t, persisted.Total.Equal(dec("226")), "total %s", persisted.Total)
}

func TestSyncSaleDeductsOnceOnReplay(t *testing.T) {
	f := newSyncFixture()
	beer := f.products.add(&model.Product{Name: "Cerveza", ManageStock: true, StockCurrent: dec("10")})
	saleID := uuid.NewString()

	req := dto.SyncBatchRequest{
		Sales: []dto.SyncSale{{
			ID: saleID, PaymentMethod: "cash", Status: model.SaleCompleted,
		}},
		SaleItems: []dto.SyncSaleItem{
			saleItemUpload(saleID, beer.ID, "Cerveza", 2, "45"),
		},
	}

	_, err := f.svc.SyncBatch(context.Background(), "dev-1", req)
	require.NoError(t, err)
	assert.True(t, beer.StockCurrent.Equal(dec("8")))

	// Replay of the same completed sale: synced again, no second deduction.
	resp, err := f.svc.SyncBatch(context.Background(), "dev-1", req)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Sales.Synced)
	assert.True(t, beer.StockCurrent.Equal(dec("8")))

	completions := 0
	for _, name := range f.bus.Names() {
		if name == events.SaleComplete {
			completions++
		}
	}
	assert.Equal(t, 1, completions)
}

func TestSyncSaleDeductsOnTransitionToCompleted(t *testing.T) {
	f := newSyncFixture()
	beer := f.products.add(&model.Product{Name: "Cerveza", ManageStock: true, StockCurrent: dec("10")})
	table := f.tables.add(&model.CafeTable{Name: "Mesa 1"})
	saleID := uuid.NewString()
	tableID := table.ID.String()

	items := []dto.SyncSaleItem{saleItemUpload(saleID, beer.ID, "Cerveza", 1, "45")}

	_, err := f.svc.SyncBatch(context.Background(), "dev-1", dto.SyncBatchRequest{
		Sales:     []dto.SyncSale{{ID: saleID, Status: model.SalePending, TableID: &tableID}},
		SaleItems: items,
	})
	require.NoError(t, err)
	assert.True(t, beer.StockCurrent.Equal(dec("10")), "pending sales never deduct")
	assert.Equal(t, model.TableOccupied, table.Status)

	_, err = f.svc.SyncBatch(context.Background(), "dev-1", dto.SyncBatchRequest{
		Sales:     []dto.SyncSale{{ID: saleID, PaymentMethod: "cash", Status: model.SaleCompleted, TableID: &tableID}},
		SaleItems: items,
	})
	require.NoError(t, err)
	assert.True(t, beer.StockCurrent.Equal(dec("9")))
	assert.Equal(t, model.TableFree, table.Status)
}

func TestSyncSaleWithoutItemsKeepsExisting(t *testing.T) {
	f := newSyncFixture()
	saleID := uuid.New()
	f.sales.add(&model.Sale{ID: saleID, Status: model.SalePending})
	f.sales.items[saleID] = []model.SaleItem{{
		ID: uuid.New(), SaleID: saleID, ProductID: uuid.New(),
		ProductName: "Café", Quantity: 3, UnitPrice: dec("20"),
	}}

	resp, err := f.svc.SyncBatch(context.Background(), "dev-1", dto.SyncBatchRequest{
		Sales: []dto.SyncSale{{ID: saleID.String(), Status: model.SalePending}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Sales.Synced)
	assert.Len(t, f.sales.items[saleID], 1, "items survive a sale-only upload")
	assert.True(t, f.sales.sales[saleID].Total.Equal(dec("60")))
}

func TestSyncShiftDuplicateOpenFailsWholeBatch(t *testing.T) {
	f := newSyncFixture()
	existing := f.shifts.add(&model.Shift{
		OpenedByID: uuid.New(), OpenedByName: "Ana", Status: model.ShiftOpen,
	})

	resp, err := f.svc.SyncBatch(context.Background(), "dev-2", dto.SyncBatchRequest{
		Shifts: []dto.SyncShift{{
			ID:           uuid.NewString(),
			OpenedByID:   uuid.NewString(),
			OpenedByName: "Luis",
			Status:       model.ShiftOpen,
		}},
	})
	require.Error(t, err)
	assert.Nil(t, resp)

	var dup *DuplicateOpenShiftError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, existing.ID, dup.ExistingID)
	assert.Len(t, f.shifts.shifts, 1, "the refused shift is never persisted")

	// The authoritative shift is re-broadcast so the device converges.
	require.NotEmpty(t, f.bus.Events)
	last := f.bus.Events[len(f.bus.Events)-1]
	assert.Equal(t, events.ShiftChange, last.Name)
	assert.Equal(t, existing.ID.String(), last.Payload["shift_id"])

	// The refused upload is logged as a failed attempt.
	require.Len(t, f.syncLog.entries, 1)
	assert.Equal(t, model.SyncFailed, f.syncLog.entries[0].Status)
}

func TestSyncShiftReplayOfOpenShiftIsIdempotent(t *testing.T) {
	f := newSyncFixture()
	opener := uuid.New()
	shiftID := uuid.New()
	f.shifts.add(&model.Shift{
		ID: shiftID, OpenedByID: opener, OpenedByName: "Ana", Status: model.ShiftOpen,
	})

	resp, err := f.svc.SyncBatch(context.Background(), "dev-1", dto.SyncBatchRequest{
		Shifts: []dto.SyncShift{{
			ID:           shiftID.String(),
			OpenedByID:   opener.String(),
			OpenedByName: "Ana",
			Status:       model.ShiftOpen,
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Shifts.Synced)
	assert.Empty(t, resp.Shifts.Errors)
}

func TestSyncShiftLinksOrphansToNewOpenShift(t *testing.T) {
	f := newSyncFixture()
	receiver := uuid.New()
	rid := receiver
	orphan := f.sales.add(&model.Sale{
		Status:                model.SalePending,
		PendingReceiverUserID: &rid,
	})
	shiftID := uuid.New()

	resp, err := f.svc.SyncBatch(context.Background(), "dev-1", dto.SyncBatchRequest{
		Shifts: []dto.SyncShift{{
			ID:           shiftID.String(),
			OpenedByID:   receiver.String(),
			OpenedByName: "Luis",
			Status:       model.ShiftOpen,
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Shifts.Synced)

	require.NotNil(t, orphan.ShiftID)
	assert.Equal(t, shiftID, *orphan.ShiftID)
	assert.Nil(t, orphan.PendingReceiverUserID)
	assert.Contains(t, f.bus.Names(), events.SalesLinked)
}

func TestSyncShiftClosesExistingShift(t *testing.T) {
	f := newSyncFixture()
	opener := uuid.New()
	shiftID := uuid.New()
	f.shifts.add(&model.Shift{
		ID: shiftID, OpenedByID: opener, OpenedByName: "Ana",
		InitialCash: dec("100"), Status: model.ShiftOpen,
	})
	reported := dec("180")
	diff := dec("-5")

	resp, err := f.svc.SyncBatch(context.Background(), "dev-1", dto.SyncBatchRequest{
		Shifts: []dto.SyncShift{{
			ID:                shiftID.String(),
			OpenedByID:        opener.String(),
			OpenedByName:      "Ana",
			ClosedByName:      strPtr("Ana"),
			FinalCashReported: &reported,
			CashDifference:    &diff,
			Status:            model.ShiftClosed,
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Shifts.Synced)

	persisted := f.shifts.shifts[shiftID]
	assert.Equal(t, model.ShiftClosed, persisted.Status)
	require.NotNil(t, persisted.FinalCashReported)
	assert.True(t, persisted.FinalCashReported.Equal(dec("180")))
	assert.True(t, persisted.IsSynced)
}

func TestSyncMovementReplayBroadcastsOnce(t *testing.T) {
	f := newSyncFixture()
	up := dto.SyncMovement{
		ID:          uuid.NewString(),
		Type:        model.MovementExpense,
		Amount:      dec("30"),
		Description: "Hielo",
	}

	resp, err := f.svc.SyncMovements(context.Background(), "dev-1", dto.SyncMovementsRequest{
		Movements: []dto.SyncMovement{up},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Movements.Synced)

	resp, err = f.svc.SyncMovements(context.Background(), "dev-1", dto.SyncMovementsRequest{
		Movements: []dto.SyncMovement{up},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Movements.Synced, "replay still counts as synced")

	creates := 0
	for _, name := range f.bus.Names() {
		if name == events.MovementCreate {
			creates++
		}
	}
	assert.Equal(t, 1, creates)
	assert.Len(t, f.movements.movements, 1)
}

func TestSyncBatchIsolatesFailedRecords(t *testing.T) {
	f := newSyncFixture()
	good := dto.SyncSale{ID: uuid.NewString(), Status: model.SalePending}
	bad := dto.SyncSale{ID: "no-es-uuid", Status: model.SalePending}

	resp, err := f.svc.SyncBatch(context.Background(), "dev-1", dto.SyncBatchRequest{
		Sales: []dto.SyncSale{bad, good},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Sales.Synced)
	require.Len(t, resp.Sales.Errors, 1)
	assert.Equal(t, "no-es-uuid", resp.Sales.Errors[0].ID)

	synced, errored := resp.Total()
	assert.Equal(t, 1, synced)
	assert.Equal(t, 1, errored)
}

func TestSyncBatchStockShortfallFailsWholeBatch(t *testing.T) {
	f := newSyncFixture()
	beer := f.products.add(&model.Product{Name: "Cerveza", ManageStock: true, StockCurrent: dec("1")})
	coffee := f.products.add(&model.Product{Name: "Café", ManageStock: true, StockCurrent: dec("10")})

	overID := uuid.NewString()
	okID := uuid.NewString()

	resp, err := f.svc.SyncBatch(context.Background(), "dev-1", dto.SyncBatchRequest{
		Sales: []dto.SyncSale{
			{ID: overID, PaymentMethod: "cash", Status: model.SaleCompleted},
			{ID: okID, PaymentMethod: "cash", Status: model.SaleCompleted},
		},
		SaleItems: []dto.SyncSaleItem{
			saleItemUpload(overID, beer.ID, "Cerveza", 5, "45"),
			saleItemUpload(okID, coffee.ID, "Café", 2, "20"),
		},
	})
	require.Error(t, err)
	assert.Nil(t, resp)

	var conflict *StockConflictError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, conflict.Shortfalls, 1)
	assert.Contains(t, conflict.Error(), "Stock insuficiente")

	assert.True(t, beer.StockCurrent.Equal(dec("1")), "nothing deducted")
	assert.True(t, coffee.StockCurrent.Equal(dec("10")), "nothing deducted")
}

func TestSyncBatchLogsAttempts(t *testing.T) {
	f := newSyncFixture()

	_, err := f.svc.SyncBatch(context.Background(), "caja-2", dto.SyncBatchRequest{
		Sales: []dto.SyncSale{
			{ID: uuid.NewString(), Status: model.SalePending},
			{ID: "bad", Status: model.SalePending},
		},
	})
	require.NoError(t, err)

	require.Len(t, f.syncLog.entries, 1)
	entry := f.syncLog.entries[0]
	assert.Equal(t, "caja-2", entry.DeviceID)
	assert.Equal(t, "sales", entry.EntityTable)
	assert.Equal(t, 2, entry.RecordsCount)
	assert.Equal(t, model.SyncPartial, entry.Status)
	require.NotNil(t, entry.ErrorMessage)
}

func TestSyncMovementResendUpdatesAmount(t *testing.T) {
	f := newSyncFixture()
	id := uuid.NewString()

	_, err := f.svc.SyncMovements(context.Background(), "dev-1", dto.SyncMovementsRequest{
		Movements: []dto.SyncMovement{{
			ID: id, Type: model.MovementExpense, Amount: dec("30"), Description: "Hielo",
		}},
	})
	require.NoError(t, err)

	// The cashier corrected the amount offline and the device resends.
	resp, err := f.svc.SyncMovements(context.Background(), "dev-1", dto.SyncMovementsRequest{
		Movements: []dto.SyncMovement{{
			ID: id, Type: model.MovementExpense, Amount: dec("35"), Description: "Hielo y sal",
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Movements.Synced)

	persisted := f.movements.movements[uuid.MustParse(id)]
	require.NotNil(t, persisted)
	assert.True(t, persisted.Amount.Equal(dec("35")), "amount %s", persisted.Amount)
	assert.Equal(t, "Hielo y sal", persisted.Description)

	creates := 0
	for _, name := range f.bus.Names() {
		if name == events.MovementCreate {
			creates++
		}
	}
	assert.Equal(t, 1, creates, "resend broadcasts nothing")
}

func TestSyncItemsApplyToPersistedSale(t *testing.T) {
	f := newSyncFixture()
	coffee := f.products.add(&model.Product{Name: "Café", ManageStock: true, StockCurrent: dec("10")})
	saleID := uuid.New()
	f.sales.add(&model.Sale{ID: saleID, Status: model.SalePending})

	// The sale synced in an earlier batch; only its items travel now.
	resp, err := f.svc.SyncBatch(context.Background(), "dev-1", dto.SyncBatchRequest{
		SaleItems: []dto.SyncSaleItem{
			saleItemUpload(saleID.String(), coffee.ID, "Café", 2, "20"),
			saleItemUpload(saleID.String(), coffee.ID, "Café", 1, "15"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.SaleItems.Synced)
	assert.Empty(t, resp.SaleItems.Errors)

	assert.Len(t, f.sales.items[saleID], 2)
	assert.True(t, f.sales.sales[saleID].Total.Equal(dec("55")))
	assert.Contains(t, f.bus.Names(), events.OrderUpdate)
}

func TestSyncItemsForUnknownSaleReported(t *testing.T) {
	f := newSyncFixture()
	coffee := f.products.add(&model.Product{Name: "Café", ManageStock: true, StockCurrent: dec("10")})
	missing := uuid.NewString()

	resp, err := f.svc.SyncBatch(context.Background(), "dev-1", dto.SyncBatchRequest{
		SaleItems: []dto.SyncSaleItem{
			saleItemUpload(missing, coffee.ID, "Café", 1, "20"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.SaleItems.Synced)
	require.Len(t, resp.SaleItems.Errors, 1)
	assert.Equal(t, missing, resp.SaleItems.Errors[0].ID)
	assert.Contains(t, resp.SaleItems.Errors[0].Error, "venta no encontrada")
}

func TestSyncOrderUpdateCarriesItems(t *testing.T) {
	f := newSyncFixture()
	coffee := f.products.add(&model.Product{Name: "Café", ManageStock: true, StockCurrent: dec("10")})
	saleID := uuid.NewString()

	_, err := f.svc.SyncBatch(context.Background(), "dev-1", dto.SyncBatchRequest{
		Sales:     []dto.SyncSale{{ID: saleID, PaymentMethod: "cash", Status: model.SaleCompleted}},
		SaleItems: []dto.SyncSaleItem{saleItemUpload(saleID, coffee.ID, "Café", 2, "20")},
	})
	require.NoError(t, err)

	names := f.bus.Names()
	require.NotEmpty(t, names)
	assert.Equal(t, events.OrderUpdate, names[0], "order:update goes out before sale:complete")

	items, ok := f.bus.Events[0].Payload["items"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "Café", items[0]["product_name"])
}

func TestSyncUsersDownloadIncludesPin(t *testing.T) {
	f := newSyncFixture()
	pin := "4321"
	f.users.add(&model.User{
		Name: "Ana", Username: "ana", Role: model.RoleCashier,
		PinCode: &pin, IsActive: true,
	})
	f.users.add(&model.User{Name: "Baja", Username: "baja", Role: model.RoleWaiter, IsActive: false})

	users, err := f.svc.Users(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "ana", users[0].Username)
	require.NotNil(t, users[0].PinCode)
	assert.Equal(t, "4321", *users[0].PinCode)
}

func TestSyncStatusReturnsRecentAttempts(t *testing.T) {
	f := newSyncFixture()
	_, err := f.svc.SyncMovements(context.Background(), "dev-9", dto.SyncMovementsRequest{
		Movements: []dto.SyncMovement{{
			ID: uuid.NewString(), Type: model.MovementIncome, Amount: dec("10"),
		}},
	})
	require.NoError(t, err)

	status, err := f.svc.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status.ServerTime.IsZero())
	require.Len(t, status.Recent, 1)
	assert.Equal(t, "dev-9", status.Recent[0].DeviceID)
	assert.Equal(t, model.SyncSuccess, status.Recent[0].Status)
}
