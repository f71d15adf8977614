package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Wizard2999/el-super-cafe-backend/internal/model"
)

type CustomerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	Transactions(ctx context.Context, customerID uuid.UUID) ([]model.CreditTransaction, error)

	// FindForUpdateTx row-locks the customer — payment distribution must
	// not race against a concurrent payment on the same balance.
	FindForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Customer, error)
	// UnpaidChargesTx returns charge/opening_balance rows with remaining > 0,
	// oldest first (FIFO).
	UnpaidChargesTx(tx *gorm.DB, customerID uuid.UUID) ([]model.CreditTransaction, error)
	CreateTransactionTx(tx *gorm.DB, t *model.CreditTransaction) error
	DecrementRemainingTx(tx *gorm.DB, chargeID uuid.UUID, amount decimal.Decimal) error
	AdjustDebtTx(tx *gorm.DB, customerID uuid.UUID, delta decimal.Decimal) error

	DB() *gorm.DB
}

type customerRepo struct{ db *gorm.DB }

func NewCustomerRepository(db *gorm.DB) CustomerRepository { return &customerRepo{db: db} }

func (r *customerRepo) DB() *gorm.DB { return r.db }

func (r *customerRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	var c model.Customer
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	return &c, err
}

func (r *customerRepo) Transactions(ctx context.Context, customerID uuid.UUID) ([]model.CreditTransaction, error) {
	var txs []model.CreditTransaction
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&txs).Error
	return txs, err
}

func (r *customerRepo) FindForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Customer, error) {
	var c model.Customer
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, "id = ?", id).Error
	return &c, err
}

func (r *customerRepo) UnpaidChargesTx(tx *gorm.DB, customerID uuid.UUID) ([]model.CreditTransaction, error) {
	var charges []model.CreditTransaction
	err := tx.
		Where("customer_id = ? AND type IN ? AND remaining > 0",
			customerID, []string{model.CreditCharge, model.CreditOpeningBalance}).
		Order("created_at ASC").
		Find(&charges).Error
	return charges, err
}

func (r *customerRepo) CreateTransactionTx(tx *gorm.DB, t *model.CreditTransaction) error {
	return tx.Create(t).Error
}

func (r *customerRepo) DecrementRemainingTx(tx *gorm.DB, chargeID uuid.UUID, amount decimal.Decimal) error {
	return tx.Model(&model.CreditTransaction{}).Where("id = ?", chargeID).
		Update("remaining", gorm.Expr("remaining - ?", amount)).Error
}

func (r *customerRepo) AdjustDebtTx(tx *gorm.DB, customerID uuid.UUID, delta decimal.Decimal) error {
	return tx.Model(&model.Customer{}).Where("id = ?", customerID).
		Update("current_debt", gorm.Expr("current_debt + ?", delta)).Error
}
