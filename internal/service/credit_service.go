package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Wizard2999/el-super-cafe-backend/internal/dto"
	"github.com/Wizard2999/el-super-cafe-backend/internal/events"
	"github.com/Wizard2999/el-super-cafe-backend/internal/model"
	"github.com/Wizard2999/el-super-cafe-backend/internal/repository"
)

var ErrInvalidAmount = errors.New("el monto debe ser mayor a cero")

// CreditService keeps the customer ledger. Payments settle outstanding
// charges oldest-first; each payment row links to the charge it settles so
// the ledger explains itself.
type CreditService interface {
	RegisterPayment(ctx context.Context, customerID uuid.UUID, user Actor, req dto.CreditPaymentRequest) (*dto.CreditPaymentResponse, error)
	CreateOpeningBalance(ctx context.Context, customerID uuid.UUID, user Actor, req dto.OpeningBalanceRequest) (*dto.CustomerDetailResponse, error)
	CustomerDetail(ctx context.Context, customerID uuid.UUID) (*dto.CustomerDetailResponse, error)
}

type creditService struct {
	customers repository.CustomerRepository
	movements repository.MovementRepository
	shifts    repository.ShiftRepository
	bus       events.Broadcaster
}

func NewCreditService(
	customers repository.CustomerRepository,
	movements repository.MovementRepository,
	shifts repository.ShiftRepository,
	bus events.Broadcaster,
) CreditService {
	return &creditService{customers: customers, movements: movements, shifts: shifts, bus: bus}
}

// RegisterPayment distributes one payment across the customer's open
// charges, FIFO. The customer row stays locked for the whole distribution.
// Overpayment is allowed and leaves the debt negative (credit in favor).
func (s *creditService) RegisterPayment(ctx context.Context, customerID uuid.UUID, user Actor, req dto.CreditPaymentRequest) (*dto.CreditPaymentResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var (
		resp     dto.CreditPaymentResponse
		customer *model.Customer
	)

	err := runTx(ctx, s.customers.DB(), func(tx *gorm.DB) error {
		var err error
		customer, err = s.customers.FindForUpdateTx(tx, customerID)
		if err != nil {
			return errors.New("cliente no encontrado")
		}

		shiftID := parseUUIDPtr(req.ShiftID)

		// Cash movement for the drawer. The shift reconciliation counts
		// abonos as income.
		description := req.Description
		if description == "" {
			description = "Abono de " + customer.Name
		}
		movement := &model.Movement{
			ID:          uuid.New(),
			Type:        model.MovementPayment,
			Amount:      req.Amount,
			Description: description,
			ShiftID:     shiftID,
		}
		if s.movements != nil {
			if err := s.movements.CreateTx(tx, movement); err != nil {
				return err
			}
		}

		charges, err := s.customers.UnpaidChargesTx(tx, customerID)
		if err != nil {
			return err
		}

		remaining := req.Amount
		for _, charge := range charges {
			if !remaining.IsPositive() {
				break
			}
			applied := charge.Remaining
			if applied.GreaterThan(remaining) {
				applied = remaining
			}
			if err := s.customers.DecrementRemainingTx(tx, charge.ID, applied); err != nil {
				return err
			}
			chargeID := charge.ID
			payment := &model.CreditTransaction{
				ID:              uuid.New(),
				CustomerID:      customerID,
				Type:            model.CreditPayment,
				Amount:          applied,
				RelatedChargeID: &chargeID,
				MovementID:      &movement.ID,
				ShiftID:         shiftID,
				Description:     description,
				CreatedByID:     &user.ID,
				CreatedByName:   &user.Name,
			}
			if err := s.customers.CreateTransactionTx(tx, payment); err != nil {
				return err
			}
			resp.Allocations = append(resp.Allocations, dto.PaymentAllocation{
				ChargeID: charge.ID.String(),
				Applied:  applied,
			})
			remaining = remaining.Sub(applied)
		}

		// Surplus beyond all open charges still counts as a payment row,
		// unlinked, so the ledger sums to the (negative) debt.
		if remaining.IsPositive() {
			surplus := &model.CreditTransaction{
				ID:            uuid.New(),
				CustomerID:    customerID,
				Type:          model.CreditPayment,
				Amount:        remaining,
				MovementID:    &movement.ID,
				ShiftID:       shiftID,
				Description:   description + " (saldo a favor)",
				CreatedByID:   &user.ID,
				CreatedByName: &user.Name,
			}
			if err := s.customers.CreateTransactionTx(tx, surplus); err != nil {
				return err
			}
		}

		// Debt decreases by the full payment, overpay included.
		if err := s.customers.AdjustDebtTx(tx, customerID, req.Amount.Neg()); err != nil {
			return err
		}
		customer.CurrentDebt = customer.CurrentDebt.Sub(req.Amount)
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp.CustomerID = customerID.String()
	resp.Amount = req.Amount
	resp.NewDebt = customer.CurrentDebt

	s.bus.Emit(ctx, events.CreditPayment, map[string]interface{}{
		"customer_id": customerID.String(),
		"amount":      req.Amount,
		"new_debt":    customer.CurrentDebt,
	})
	s.emitCustomerUpdate(ctx, customer)
	return &resp, nil
}

// CreateOpeningBalance seeds a customer's ledger with pre-existing debt,
// tracked as a charge-like row payments can settle.
func (s *creditService) CreateOpeningBalance(ctx context.Context, customerID uuid.UUID, user Actor, req dto.OpeningBalanceRequest) (*dto.CustomerDetailResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var customer *model.Customer
	err := runTx(ctx, s.customers.DB(), func(tx *gorm.DB) error {
		var err error
		customer, err = s.customers.FindForUpdateTx(tx, customerID)
		if err != nil {
			return errors.New("cliente no encontrado")
		}

		description := req.Description
		if description == "" {
			description = "Saldo inicial"
		}
		opening := &model.CreditTransaction{
			ID:            uuid.New(),
			CustomerID:    customerID,
			Type:          model.CreditOpeningBalance,
			Amount:        req.Amount,
			Remaining:     req.Amount,
			Description:   description,
			CreatedByID:   &user.ID,
			CreatedByName: &user.Name,
		}
		if err := s.customers.CreateTransactionTx(tx, opening); err != nil {
			return err
		}
		if err := s.customers.AdjustDebtTx(tx, customerID, req.Amount); err != nil {
			return err
		}
		customer.CurrentDebt = customer.CurrentDebt.Add(req.Amount)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitCustomerUpdate(ctx, customer)
	return s.CustomerDetail(ctx, customerID)
}

func (s *creditService) CustomerDetail(ctx context.Context, customerID uuid.UUID) (*dto.CustomerDetailResponse, error) {
	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, errors.New("cliente no encontrado")
	}
	txs, err := s.customers.Transactions(ctx, customerID)
	if err != nil {
		return nil, err
	}

	resp := &dto.CustomerDetailResponse{
		ID:           customer.ID.String(),
		Name:         customer.Name,
		CurrentDebt:  customer.CurrentDebt,
		CreditLimit:  customer.CreditLimit,
		Transactions: make([]dto.CreditTransactionResponse, 0, len(txs)),
	}
	for _, t := range txs {
		createdBy := ""
		if t.CreatedByName != nil {
			createdBy = *t.CreatedByName
		}
		resp.Transactions = append(resp.Transactions, dto.CreditTransactionResponse{
			ID:          t.ID.String(),
			Type:        t.Type,
			Amount:      t.Amount,
			Remaining:   t.Remaining,
			Description: t.Description,
			CreatedBy:   createdBy,
			CreatedAt:   t.CreatedAt,
		})
	}
	return resp, nil
}

func (s *creditService) emitCustomerUpdate(ctx context.Context, customer *model.Customer) {
	s.bus.Emit(ctx, events.CreditCustomerUpdate, map[string]interface{}{
		"customer_id":  customer.ID.String(),
		"name":         customer.Name,
		"current_debt": customer.CurrentDebt,
	})
}
