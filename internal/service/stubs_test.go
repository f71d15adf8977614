package service

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Wizard2999/el-super-cafe-backend/internal/model"
	"github.com/Wizard2999/el-super-cafe-backend/internal/repository"
	"github.com/Wizard2999/el-super-cafe-backend/internal/worker"
)

// In-memory repository stubs. DB() returns nil, so runTx calls the body
// directly instead of opening a transaction.

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func strPtr(s string) *string { return &s }

// ─── Shifts ──────────────────────────────────────────────────────────────────

type stubShiftRepo struct {
	shifts map[uuid.UUID]*model.Shift
}

func newStubShiftRepo() *stubShiftRepo {
	return &stubShiftRepo{shifts: make(map[uuid.UUID]*model.Shift)}
}

func (r *stubShiftRepo) add(s *model.Shift) *model.Shift {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.shifts[s.ID] = s
	return s
}

func (r *stubShiftRepo) DB() *gorm.DB { return nil }

func (r *stubShiftRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Shift, error) {
	s, ok := r.shifts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s, nil
}

func (r *stubShiftRepo) findOpen() *model.Shift {
	for _, s := range r.shifts {
		if s.Status == model.ShiftOpen {
			return s
		}
	}
	return nil
}

func (r *stubShiftRepo) FindOpen(_ context.Context) (*model.Shift, error) {
	if s := r.findOpen(); s != nil {
		return s, nil
	}
	return nil, repository.ErrNoOpenShift
}

func (r *stubShiftRepo) FindWaitingForUser(_ context.Context, userID uuid.UUID) (*model.Shift, error) {
	for _, s := range r.shifts {
		if s.Status == model.ShiftWaitingInitialCash && s.OpenedByID == userID {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubShiftRepo) ListOpenExcluding(_ context.Context, excludeID *uuid.UUID) ([]model.Shift, error) {
	var out []model.Shift
	for _, s := range r.shifts {
		if s.Status != model.ShiftOpen {
			continue
		}
		if excludeID != nil && s.ID == *excludeID {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (r *stubShiftRepo) Update(_ context.Context, s *model.Shift) error {
	r.shifts[s.ID] = s
	return nil
}

func (r *stubShiftRepo) FindOpenForUpdateTx(_ *gorm.DB) (*model.Shift, error) {
	if s := r.findOpen(); s != nil {
		return s, nil
	}
	return nil, repository.ErrNoOpenShift
}

func (r *stubShiftRepo) FindForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.Shift, error) {
	s, ok := r.shifts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s, nil
}

func (r *stubShiftRepo) CreateTx(_ *gorm.DB, s *model.Shift) error {
	r.shifts[s.ID] = s
	return nil
}

func (r *stubShiftRepo) UpsertTx(_ *gorm.DB, s *model.Shift) error {
	existing, ok := r.shifts[s.ID]
	if !ok {
		r.shifts[s.ID] = s
		return nil
	}
	existing.ClosedByID = s.ClosedByID
	existing.ClosedByName = s.ClosedByName
	existing.EndTime = s.EndTime
	existing.FinalCashReported = s.FinalCashReported
	existing.CashDifference = s.CashDifference
	existing.Status = s.Status
	existing.IsSynced = s.IsSynced
	return nil
}

func (r *stubShiftRepo) UpdateTx(_ *gorm.DB, s *model.Shift) error {
	r.shifts[s.ID] = s
	return nil
}

func (r *stubShiftRepo) ExistsTx(_ *gorm.DB, id uuid.UUID) (bool, error) {
	_, ok := r.shifts[id]
	return ok, nil
}

var _ repository.ShiftRepository = (*stubShiftRepo)(nil)

// ─── Sales ───────────────────────────────────────────────────────────────────

type stubSaleRepo struct {
	sales map[uuid.UUID]*model.Sale
	items map[uuid.UUID][]model.SaleItem
}

func newStubSaleRepo() *stubSaleRepo {
	return &stubSaleRepo{
		sales: make(map[uuid.UUID]*model.Sale),
		items: make(map[uuid.UUID][]model.SaleItem),
	}
}

func (r *stubSaleRepo) add(s *model.Sale) *model.Sale {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.sales[s.ID] = s
	return s
}

func (r *stubSaleRepo) DB() *gorm.DB { return nil }

func (r *stubSaleRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Sale, error) {
	s, ok := r.sales[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	s.Items = r.items[id]
	return s, nil
}

func (r *stubSaleRepo) ItemsForSale(_ context.Context, saleID uuid.UUID) ([]model.SaleItem, error) {
	return r.items[saleID], nil
}

func (r *stubSaleRepo) FindForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.Sale, error) {
	s, ok := r.sales[id]
	if !ok {
		return &model.Sale{}, gorm.ErrRecordNotFound
	}
	return s, nil
}

func (r *stubSaleRepo) UpsertTx(_ *gorm.DB, s *model.Sale) error {
	existing, ok := r.sales[s.ID]
	if !ok {
		r.sales[s.ID] = s
		return nil
	}
	// Conflict updates never touch shift_id or table_id.
	existing.Total = s.Total
	existing.PaymentMethod = s.PaymentMethod
	existing.Status = s.Status
	existing.Observation = s.Observation
	existing.UnpaidAuthorizedByID = s.UnpaidAuthorizedByID
	existing.PrintCount = s.PrintCount
	existing.IsSynced = s.IsSynced
	return nil
}

func (r *stubSaleRepo) ReplaceItemsTx(_ *gorm.DB, saleID uuid.UUID, items []model.SaleItem) error {
	r.items[saleID] = items
	return nil
}

func (r *stubSaleRepo) ItemsForSaleTx(_ *gorm.DB, saleID uuid.UUID) ([]model.SaleItem, error) {
	return r.items[saleID], nil
}

func (r *stubSaleRepo) UpdateTotalTx(_ *gorm.DB, saleID uuid.UUID, total decimal.Decimal) error {
	if s, ok := r.sales[saleID]; ok {
		s.Total = total
	}
	return nil
}

func (r *stubSaleRepo) UpdateStatusTx(_ *gorm.DB, saleID uuid.UUID, status string) error {
	if s, ok := r.sales[saleID]; ok {
		s.Status = status
	}
	return nil
}

func (r *stubSaleRepo) DeleteItemsTx(_ *gorm.DB, saleID uuid.UUID) error {
	delete(r.items, saleID)
	return nil
}

func (r *stubSaleRepo) DeleteItem(_ context.Context, saleID, itemID uuid.UUID) (int64, error) {
	items := r.items[saleID]
	for i, it := range items {
		if it.ID == itemID {
			r.items[saleID] = append(items[:i:i], items[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (r *stubSaleRepo) UpdateItemStatus(_ context.Context, saleID, itemID uuid.UUID, status string) (int64, error) {
	items := r.items[saleID]
	for i := range items {
		if items[i].ID == itemID {
			items[i].PreparationStatus = status
			return 1, nil
		}
	}
	return 0, nil
}

func (r *stubSaleRepo) UpdateTotal(_ context.Context, saleID uuid.UUID, total decimal.Decimal) error {
	return r.UpdateTotalTx(nil, saleID, total)
}

func (r *stubSaleRepo) PendingByShiftTx(_ *gorm.DB, shiftID uuid.UUID) ([]model.Sale, error) {
	var out []model.Sale
	for _, s := range r.sales {
		if s.ShiftID != nil && *s.ShiftID == shiftID && s.Status == model.SalePending {
			out = append(out, *s)
		}
	}
	sortSalesByID(out)
	return out, nil
}

func (r *stubSaleRepo) ReassignShiftTx(_ *gorm.DB, saleIDs []uuid.UUID, shiftID uuid.UUID) error {
	for _, id := range saleIDs {
		if s, ok := r.sales[id]; ok {
			sid := shiftID
			s.ShiftID = &sid
			s.PendingReceiverUserID = nil
		}
	}
	return nil
}

func (r *stubSaleRepo) DetachToReceiverTx(_ *gorm.DB, saleIDs []uuid.UUID, receiverUserID uuid.UUID) error {
	for _, id := range saleIDs {
		if s, ok := r.sales[id]; ok {
			rid := receiverUserID
			s.ShiftID = nil
			s.PendingReceiverUserID = &rid
		}
	}
	return nil
}

func (r *stubSaleRepo) OrphansForReceiverTx(_ *gorm.DB, receiverUserID uuid.UUID) ([]model.Sale, error) {
	var out []model.Sale
	for _, s := range r.sales {
		if s.ShiftID == nil && s.PendingReceiverUserID != nil &&
			*s.PendingReceiverUserID == receiverUserID && s.Status == model.SalePending {
			out = append(out, *s)
		}
	}
	sortSalesByID(out)
	return out, nil
}

func (r *stubSaleRepo) LinkOrphansTx(tx *gorm.DB, saleIDs []uuid.UUID, shiftID uuid.UUID) error {
	return r.ReassignShiftTx(tx, saleIDs, shiftID)
}

func sortSalesByID(sales []model.Sale) {
	sort.Slice(sales, func(i, j int) bool {
		return sales[i].ID.String() < sales[j].ID.String()
	})
}

var _ repository.SaleRepository = (*stubSaleRepo)(nil)

// ─── Movements ───────────────────────────────────────────────────────────────

type stubMovementRepo struct {
	movements map[uuid.UUID]*model.Movement
}

func newStubMovementRepo() *stubMovementRepo {
	return &stubMovementRepo{movements: make(map[uuid.UUID]*model.Movement)}
}

func (r *stubMovementRepo) add(m *model.Movement) *model.Movement {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	r.movements[m.ID] = m
	return m
}

func (r *stubMovementRepo) DB() *gorm.DB { return nil }

func (r *stubMovementRepo) Create(_ context.Context, m *model.Movement) error {
	r.movements[m.ID] = m
	return nil
}

func (r *stubMovementRepo) ListByShift(_ context.Context, shiftID uuid.UUID) ([]model.Movement, error) {
	var out []model.Movement
	for _, m := range r.movements {
		if m.ShiftID != nil && *m.ShiftID == shiftID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *stubMovementRepo) UpsertTx(_ *gorm.DB, m *model.Movement) (bool, error) {
	if existing, ok := r.movements[m.ID]; ok {
		existing.Amount = m.Amount
		existing.Description = m.Description
		existing.IsSynced = true
		return false, nil
	}
	r.movements[m.ID] = m
	return true, nil
}

func (r *stubMovementRepo) CreateTx(_ *gorm.DB, m *model.Movement) error {
	r.movements[m.ID] = m
	return nil
}

func (r *stubMovementRepo) CashTotalTx(_ *gorm.DB, shiftID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, m := range r.movements {
		if m.ShiftID == nil || *m.ShiftID != shiftID {
			continue
		}
		if m.Type == model.MovementExpense {
			total = total.Sub(m.Amount)
		} else {
			total = total.Add(m.Amount)
		}
	}
	return total, nil
}

var _ repository.MovementRepository = (*stubMovementRepo)(nil)

// ─── Tables ──────────────────────────────────────────────────────────────────

type stubTableRepo struct {
	tables map[uuid.UUID]*model.CafeTable
}

func newStubTableRepo() *stubTableRepo {
	return &stubTableRepo{tables: make(map[uuid.UUID]*model.CafeTable)}
}

func (r *stubTableRepo) add(t *model.CafeTable) *model.CafeTable {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = model.TableFree
	}
	r.tables[t.ID] = t
	return t
}

func (r *stubTableRepo) DB() *gorm.DB { return nil }

func (r *stubTableRepo) FindByID(_ context.Context, id uuid.UUID) (*model.CafeTable, error) {
	t, ok := r.tables[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return t, nil
}

func (r *stubTableRepo) List(_ context.Context) ([]model.CafeTable, error) {
	var out []model.CafeTable
	for _, t := range r.tables {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *stubTableRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	if t, ok := r.tables[id]; ok {
		t.Status = status
	}
	return nil
}

func (r *stubTableRepo) UpdateStatusTx(_ *gorm.DB, id uuid.UUID, status string) error {
	if t, ok := r.tables[id]; ok {
		t.Status = status
	}
	return nil
}

func (r *stubTableRepo) CurrentOrder(_ context.Context, _ uuid.UUID) (*model.Sale, error) {
	return nil, nil
}

var _ repository.TableRepository = (*stubTableRepo)(nil)

// ─── Users ───────────────────────────────────────────────────────────────────

type stubUserRepo struct {
	users map[uuid.UUID]*model.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[uuid.UUID]*model.User)}
}

func (r *stubUserRepo) add(u *model.User) *model.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	r.users[u.ID] = u
	return u
}

func (r *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (r *stubUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range r.users {
		if u.Username == username && u.IsActive {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) ListActive(_ context.Context) ([]model.User, error) {
	var out []model.User
	for _, u := range r.users {
		if u.IsActive {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

var _ repository.UserRepository = (*stubUserRepo)(nil)

// ─── Sync log ────────────────────────────────────────────────────────────────

type stubSyncLogRepo struct {
	entries []*model.SyncLog
}

func (r *stubSyncLogRepo) Create(_ context.Context, entry *model.SyncLog) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *stubSyncLogRepo) Recent(_ context.Context, limit int) ([]model.SyncLog, error) {
	out := make([]model.SyncLog, 0, len(r.entries))
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *r.entries[i])
	}
	return out, nil
}

var _ repository.SyncLogRepository = (*stubSyncLogRepo)(nil)

// ─── Customers ───────────────────────────────────────────────────────────────

type stubCustomerRepo struct {
	customers map[uuid.UUID]*model.Customer
	// txs preserves insertion order; UnpaidChargesTx relies on it for FIFO.
	txs []*model.CreditTransaction
}

func newStubCustomerRepo() *stubCustomerRepo {
	return &stubCustomerRepo{customers: make(map[uuid.UUID]*model.Customer)}
}

func (r *stubCustomerRepo) add(c *model.Customer) *model.Customer {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.customers[c.ID] = c
	return c
}

func (r *stubCustomerRepo) addCharge(customerID uuid.UUID, amount string) *model.CreditTransaction {
	t := &model.CreditTransaction{
		ID:         uuid.New(),
		CustomerID: customerID,
		Type:       model.CreditCharge,
		Amount:     dec(amount),
		Remaining:  dec(amount),
	}
	r.txs = append(r.txs, t)
	return t
}

func (r *stubCustomerRepo) DB() *gorm.DB { return nil }

func (r *stubCustomerRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (r *stubCustomerRepo) Transactions(_ context.Context, customerID uuid.UUID) ([]model.CreditTransaction, error) {
	var out []model.CreditTransaction
	for i := len(r.txs) - 1; i >= 0; i-- {
		if r.txs[i].CustomerID == customerID {
			out = append(out, *r.txs[i])
		}
	}
	return out, nil
}

func (r *stubCustomerRepo) FindForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	// A locked row is a snapshot; writes flow back through AdjustDebtTx.
	cp := *c
	return &cp, nil
}

func (r *stubCustomerRepo) UnpaidChargesTx(_ *gorm.DB, customerID uuid.UUID) ([]model.CreditTransaction, error) {
	var out []model.CreditTransaction
	for _, t := range r.txs {
		if t.CustomerID != customerID {
			continue
		}
		if t.Type != model.CreditCharge && t.Type != model.CreditOpeningBalance {
			continue
		}
		if t.Remaining.IsPositive() {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *stubCustomerRepo) CreateTransactionTx(_ *gorm.DB, t *model.CreditTransaction) error {
	r.txs = append(r.txs, t)
	return nil
}

func (r *stubCustomerRepo) DecrementRemainingTx(_ *gorm.DB, chargeID uuid.UUID, amount decimal.Decimal) error {
	for _, t := range r.txs {
		if t.ID == chargeID {
			t.Remaining = t.Remaining.Sub(amount)
			return nil
		}
	}
	return errors.New("charge not found")
}

func (r *stubCustomerRepo) AdjustDebtTx(_ *gorm.DB, customerID uuid.UUID, delta decimal.Decimal) error {
	c, ok := r.customers[customerID]
	if !ok {
		return errors.New("customer not found")
	}
	c.CurrentDebt = c.CurrentDebt.Add(delta)
	return nil
}

var _ repository.CustomerRepository = (*stubCustomerRepo)(nil)

// ─── Products (stock engine dependency) ──────────────────────────────────────

type stubProductRepo struct {
	products map[uuid.UUID]*model.Product
	recipes  map[uuid.UUID][]model.Recipe
}

func newStubProductRepo() *stubProductRepo {
	return &stubProductRepo{
		products: make(map[uuid.UUID]*model.Product),
		recipes:  make(map[uuid.UUID][]model.Recipe),
	}
}

func (r *stubProductRepo) add(p *model.Product) *model.Product {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.YieldPerUnit.IsZero() {
		p.YieldPerUnit = decimal.NewFromInt(1)
	}
	r.products[p.ID] = p
	return p
}

func (r *stubProductRepo) DB() *gorm.DB { return nil }

func (r *stubProductRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (r *stubProductRepo) RecipesForProduct(_ context.Context, productID uuid.UUID) ([]model.Recipe, error) {
	return r.recipes[productID], nil
}

func (r *stubProductRepo) List(_ context.Context) ([]model.Product, error) { return nil, nil }

func (r *stubProductRepo) FindForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (r *stubProductRepo) DeductStockTx(_ *gorm.DB, id uuid.UUID, delta decimal.Decimal) error {
	p, ok := r.products[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	next := p.StockCurrent.Sub(delta)
	if next.IsNegative() {
		next = decimal.Zero
	}
	p.StockCurrent = next
	return nil
}

func (r *stubProductRepo) AdjustStock(_ context.Context, id uuid.UUID, delta decimal.Decimal) error {
	p, ok := r.products[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	next := p.StockCurrent.Add(delta)
	if next.IsNegative() {
		next = decimal.Zero
	}
	p.StockCurrent = next
	return nil
}

var _ repository.ProductRepository = (*stubProductRepo)(nil)

// ─── Alerts ──────────────────────────────────────────────────────────────────

type stubAlerts struct {
	alerts []worker.LowStockAlert
}

func (a *stubAlerts) EnqueueLowStockAlert(_ context.Context, alert worker.LowStockAlert) {
	a.alerts = append(a.alerts, alert)
}

var _ AlertDispatcher = (*stubAlerts)(nil)
