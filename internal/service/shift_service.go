package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Wizard2999/el-super-cafe-backend/internal/dto"
	"github.com/Wizard2999/el-super-cafe-backend/internal/events"
	"github.com/Wizard2999/el-super-cafe-backend/internal/model"
	"github.com/Wizard2999/el-super-cafe-backend/internal/repository"
)

var (
	ErrNotShiftOwner    = errors.New("solo el usuario designado puede activar este turno")
	ErrShiftNotWaiting  = errors.New("el turno no está esperando efectivo inicial")
	ErrShiftNotOpen     = errors.New("el turno no está abierto")
	ErrTargetNotOpen    = errors.New("el turno destino no está abierto")
	ErrHandoverToItself = errors.New("no se puede transferir un turno a sí mismo")
	ErrSaleNotPending   = errors.New("una de las ventas indicadas no está pendiente")
)

// ShiftService drives the cash register session lifecycle: activation,
// pending-sale handover between shifts, and the transit-state transfer used
// when the successor has not opened a shift yet.
type ShiftService interface {
	GetActive(ctx context.Context, userID uuid.UUID) (*dto.ShiftResponse, error)
	Activate(ctx context.Context, shiftID, userID uuid.UUID, req dto.ActivateShiftRequest) (*dto.ShiftResponse, error)
	Close(ctx context.Context, shiftID uuid.UUID, user Actor, req dto.CloseShiftRequest) (*dto.ShiftResponse, error)
	HandoverPendingSales(ctx context.Context, shiftID uuid.UUID, req dto.HandoverRequest) (*dto.HandoverResponse, error)
	HandoverAndClose(ctx context.Context, shiftID uuid.UUID, user Actor, req dto.HandoverAndCloseRequest) (*dto.HandoverResponse, error)
	AtomicHandover(ctx context.Context, shiftID uuid.UUID, user Actor, req dto.AtomicHandoverRequest) (*dto.HandoverResponse, error)
	TransferTablesToUser(ctx context.Context, shiftID uuid.UUID, req dto.TransferTablesRequest) (*dto.HandoverResponse, error)
	ListOpen(ctx context.Context, excludeShiftID *uuid.UUID) ([]dto.ShiftResponse, error)
}

// Actor identifies the authenticated user performing an operation.
type Actor struct {
	ID   uuid.UUID
	Name string
}

type shiftService struct {
	shifts    repository.ShiftRepository
	sales     repository.SaleRepository
	movements repository.MovementRepository
	users     repository.UserRepository
	bus       events.Broadcaster
}

func NewShiftService(
	shifts repository.ShiftRepository,
	sales repository.SaleRepository,
	movements repository.MovementRepository,
	users repository.UserRepository,
	bus events.Broadcaster,
) ShiftService {
	return &shiftService{shifts: shifts, sales: sales, movements: movements, users: users, bus: bus}
}

// GetActive resolves the caller's working shift: a waiting_initial_cash
// shift designated to them wins over the globally open one.
func (s *shiftService) GetActive(ctx context.Context, userID uuid.UUID) (*dto.ShiftResponse, error) {
	if waiting, err := s.shifts.FindWaitingForUser(ctx, userID); err == nil {
		return shiftToResponse(waiting), nil
	}
	open, err := s.shifts.FindOpen(ctx)
	if err != nil {
		return nil, err
	}
	return shiftToResponse(open), nil
}

// Activate turns a waiting_initial_cash shift open. Only the designated
// opener may activate, and only after counting the drawer.
func (s *shiftService) Activate(ctx context.Context, shiftID, userID uuid.UUID, req dto.ActivateShiftRequest) (*dto.ShiftResponse, error) {
	var (
		activated   *model.Shift
		linkedSales []model.Sale
	)

	err := runTx(ctx, s.shifts.DB(), func(tx *gorm.DB) error {
		shift, err := s.shifts.FindForUpdateTx(tx, shiftID)
		if err != nil {
			return err
		}
		if shift.Status != model.ShiftWaitingInitialCash {
			return ErrShiftNotWaiting
		}
		if shift.OpenedByID != userID {
			return ErrNotShiftOwner
		}

		now := time.Now().UTC()
		shift.InitialCash = req.InitialCash
		shift.Status = model.ShiftOpen
		if shift.StartTime == nil {
			shift.StartTime = &now
		}
		if err := s.shifts.UpdateTx(tx, shift); err != nil {
			return err
		}
		activated = shift

		linkedSales, err = linkOrphans(tx, s.sales, userID, shift.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emitShiftChange(ctx, activated)
	if len(linkedSales) > 0 {
		ids := make([]string, len(linkedSales))
		for i, sale := range linkedSales {
			ids[i] = sale.ID.String()
		}
		s.bus.Emit(ctx, events.SalesLinked, map[string]interface{}{
			"shift_id": activated.ID.String(),
			"sale_ids": ids,
			"count":    len(ids),
		})
	}
	return shiftToResponse(activated), nil
}

// Close settles the drawer: difference = reported − (initial + cash
// movements of the shift).
func (s *shiftService) Close(ctx context.Context, shiftID uuid.UUID, user Actor, req dto.CloseShiftRequest) (*dto.ShiftResponse, error) {
	var closed *model.Shift

	err := runTx(ctx, s.shifts.DB(), func(tx *gorm.DB) error {
		shift, err := s.shifts.FindForUpdateTx(tx, shiftID)
		if err != nil {
			return err
		}
		if shift.Status != model.ShiftOpen {
			return ErrShiftNotOpen
		}
		if err := s.closeTx(tx, shift, user, req.FinalCashReported); err != nil {
			return err
		}
		closed = shift
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitShiftChange(ctx, closed)
	return shiftToResponse(closed), nil
}

// closeTx mutates the shift into closed state inside the caller's tx.
func (s *shiftService) closeTx(tx *gorm.DB, shift *model.Shift, user Actor, reported decimal.Decimal) error {
	expected := shift.InitialCash
	if s.movements != nil {
		cash, err := s.movements.CashTotalTx(tx, shift.ID)
		if err != nil {
			return err
		}
		expected = expected.Add(cash)
	}
	diff := reported.Sub(expected)
	now := time.Now().UTC()

	shift.Status = model.ShiftClosed
	shift.ClosedByID = &user.ID
	shift.ClosedByName = &user.Name
	shift.EndTime = &now
	shift.FinalCashReported = &reported
	shift.CashDifference = &diff
	return s.shifts.UpdateTx(tx, shift)
}

// HandoverPendingSales moves pending sales from one open shift to another
// open shift without closing anything. Naming sale IDs moves exactly those;
// an empty list moves everything pending.
func (s *shiftService) HandoverPendingSales(ctx context.Context, shiftID uuid.UUID, req dto.HandoverRequest) (*dto.HandoverResponse, error) {
	targetID, err := uuid.Parse(req.TargetShiftID)
	if err != nil {
		return nil, err
	}
	if targetID == shiftID {
		return nil, ErrHandoverToItself
	}
	saleIDs, err := parseSaleIDs(req.SaleIDs)
	if err != nil {
		return nil, err
	}

	var moved int
	err = runTx(ctx, s.shifts.DB(), func(tx *gorm.DB) error {
		target, err := s.shifts.FindForUpdateTx(tx, targetID)
		if err != nil {
			return err
		}
		if target.Status != model.ShiftOpen {
			return ErrTargetNotOpen
		}
		moved, err = s.movePendingTx(tx, shiftID, targetID, saleIDs)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.bus.Emit(ctx, events.SalesHandover, map[string]interface{}{
		"from_shift_id": shiftID.String(),
		"to_shift_id":   targetID.String(),
		"moved_sales":   moved,
	})
	return &dto.HandoverResponse{MovedSales: moved, TargetShiftID: targetID.String()}, nil
}

func parseSaleIDs(raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(raw))
	for i, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// selectPendingTx resolves which of a shift's pending sales to move: all of
// them when saleIDs is empty, otherwise exactly the named ones. A named sale
// that is not pending on this shift fails the whole operation.
func (s *shiftService) selectPendingTx(tx *gorm.DB, shiftID uuid.UUID, saleIDs []uuid.UUID) ([]uuid.UUID, error) {
	pending, err := s.sales.PendingByShiftTx(tx, shiftID)
	if err != nil {
		return nil, err
	}
	if len(saleIDs) == 0 {
		ids := make([]uuid.UUID, len(pending))
		for i, sale := range pending {
			ids[i] = sale.ID
		}
		return ids, nil
	}
	byID := make(map[uuid.UUID]bool, len(pending))
	for _, sale := range pending {
		byID[sale.ID] = true
	}
	for _, id := range saleIDs {
		if !byID[id] {
			return nil, ErrSaleNotPending
		}
	}
	return saleIDs, nil
}

func (s *shiftService) movePendingTx(tx *gorm.DB, fromShiftID, toShiftID uuid.UUID, saleIDs []uuid.UUID) (int, error) {
	ids, err := s.selectPendingTx(tx, fromShiftID, saleIDs)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.sales.ReassignShiftTx(tx, ids, toShiftID); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// HandoverAndClose performs the full register change in one transaction:
// closes the current shift with the reported drawer, opens a fresh shift for
// the receiver with the counted initial cash, and moves every pending sale
// onto it. The source closes before the successor is created — only one
// shift may be open at a time.
func (s *shiftService) HandoverAndClose(ctx context.Context, shiftID uuid.UUID, user Actor, req dto.HandoverAndCloseRequest) (*dto.HandoverResponse, error) {
	receiverID, err := uuid.Parse(req.ReceiverUserID)
	if err != nil {
		return nil, err
	}
	receiver, err := s.users.FindByID(ctx, receiverID)
	if err != nil {
		return nil, errors.New("usuario receptor no encontrado")
	}

	var (
		moved  int
		closed *model.Shift
		next   *model.Shift
	)
	err = runTx(ctx, s.shifts.DB(), func(tx *gorm.DB) error {
		source, err := s.shifts.FindForUpdateTx(tx, shiftID)
		if err != nil {
			return err
		}
		if source.Status != model.ShiftOpen {
			return ErrShiftNotOpen
		}
		if err := s.closeTx(tx, source, user, req.FinalCashReported); err != nil {
			return err
		}

		now := time.Now().UTC()
		successor := &model.Shift{
			ID:           uuid.New(),
			OpenedByID:   receiver.ID,
			OpenedByName: receiver.Name,
			InitialCash:  req.InitialCash,
			StartTime:    &now,
			Status:       model.ShiftOpen,
		}
		if err := s.shifts.CreateTx(tx, successor); err != nil {
			return err
		}

		moved, err = s.movePendingTx(tx, shiftID, successor.ID, nil)
		if err != nil {
			return err
		}
		closed = source
		next = successor
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitShiftChange(ctx, closed)
	s.emitShiftChange(ctx, next)
	s.bus.Emit(ctx, events.SalesHandover, map[string]interface{}{
		"from_shift_id": shiftID.String(),
		"to_shift_id":   next.ID.String(),
		"moved_sales":   moved,
	})
	return &dto.HandoverResponse{
		MovedSales:    moved,
		ClosedShift:   shiftToResponse(closed),
		NewShift:      shiftToResponse(next),
		TargetShiftID: next.ID.String(),
	}, nil
}

// AtomicHandover closes the current shift and creates the successor in
// waiting_initial_cash for the named user, carrying all pending sales. The
// successor shift does not occupy the single-open slot until activation.
func (s *shiftService) AtomicHandover(ctx context.Context, shiftID uuid.UUID, user Actor, req dto.AtomicHandoverRequest) (*dto.HandoverResponse, error) {
	successorID, err := uuid.Parse(req.SuccessorUserID)
	if err != nil {
		return nil, err
	}
	successor, err := s.users.FindByID(ctx, successorID)
	if err != nil {
		return nil, errors.New("usuario sucesor no encontrado")
	}

	var (
		moved    int
		closed   *model.Shift
		newShift *model.Shift
	)
	err = runTx(ctx, s.shifts.DB(), func(tx *gorm.DB) error {
		source, err := s.shifts.FindForUpdateTx(tx, shiftID)
		if err != nil {
			return err
		}
		if source.Status != model.ShiftOpen {
			return ErrShiftNotOpen
		}

		next := &model.Shift{
			ID:           uuid.New(),
			OpenedByID:   successor.ID,
			OpenedByName: successor.Name,
			Status:       model.ShiftWaitingInitialCash,
		}
		if err := s.shifts.CreateTx(tx, next); err != nil {
			return err
		}

		moved, err = s.movePendingTx(tx, shiftID, next.ID, nil)
		if err != nil {
			return err
		}
		if err := s.closeTx(tx, source, user, req.FinalCashReported); err != nil {
			return err
		}
		closed = source
		newShift = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitShiftChange(ctx, closed)
	s.emitShiftChange(ctx, newShift)
	s.bus.Emit(ctx, events.SalesHandover, map[string]interface{}{
		"from_shift_id": shiftID.String(),
		"to_shift_id":   newShift.ID.String(),
		"moved_sales":   moved,
	})
	return &dto.HandoverResponse{
		MovedSales:  moved,
		ClosedShift: shiftToResponse(closed),
		NewShift:    shiftToResponse(newShift),
	}, nil
}

// TransferTablesToUser detaches pending sales into transit state: no shift,
// addressed to the receiver. They attach automatically when the receiver's
// next shift opens. Naming sale IDs detaches exactly those.
func (s *shiftService) TransferTablesToUser(ctx context.Context, shiftID uuid.UUID, req dto.TransferTablesRequest) (*dto.HandoverResponse, error) {
	receiverID, err := uuid.Parse(req.ReceiverUserID)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.FindByID(ctx, receiverID); err != nil {
		return nil, errors.New("usuario receptor no encontrado")
	}
	saleIDs, err := parseSaleIDs(req.SaleIDs)
	if err != nil {
		return nil, err
	}

	var moved int
	err = runTx(ctx, s.shifts.DB(), func(tx *gorm.DB) error {
		ids, err := s.selectPendingTx(tx, shiftID, saleIDs)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := s.sales.DetachToReceiverTx(tx, ids, receiverID); err != nil {
			return err
		}
		moved = len(ids)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.bus.Emit(ctx, events.SalesTransfer, map[string]interface{}{
		"from_shift_id":    shiftID.String(),
		"receiver_user_id": receiverID.String(),
		"moved_sales":      moved,
	})
	return &dto.HandoverResponse{MovedSales: moved}, nil
}

// ListOpen feeds the handover target picker on devices: every open shift,
// optionally excluding the caller's own.
func (s *shiftService) ListOpen(ctx context.Context, excludeShiftID *uuid.UUID) ([]dto.ShiftResponse, error) {
	shifts, err := s.shifts.ListOpenExcluding(ctx, excludeShiftID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ShiftResponse, 0, len(shifts))
	for i := range shifts {
		out = append(out, *shiftToResponse(&shifts[i]))
	}
	return out, nil
}

func (s *shiftService) emitShiftChange(ctx context.Context, shift *model.Shift) {
	s.bus.Emit(ctx, events.ShiftChange, map[string]interface{}{
		"shift_id":       shift.ID.String(),
		"status":         shift.Status,
		"opened_by_id":   shift.OpenedByID.String(),
		"opened_by_name": shift.OpenedByName,
	})
}
