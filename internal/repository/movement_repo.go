package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Wizard2999/el-super-cafe-backend/internal/model"
)

type MovementRepository interface {
	Create(ctx context.Context, m *model.Movement) error
	ListByShift(ctx context.Context, shiftID uuid.UUID) ([]model.Movement, error)

	// UpsertTx inserts, or on replay updates the editable fields (amount,
	// description). Returns true only when the row was newly inserted —
	// replays broadcast nothing.
	UpsertTx(tx *gorm.DB, m *model.Movement) (bool, error)
	CreateTx(tx *gorm.DB, m *model.Movement) error
	// CashTotalTx sums cash-affecting movements for a shift: income and
	// payments add, expenses subtract.
	CashTotalTx(tx *gorm.DB, shiftID uuid.UUID) (decimal.Decimal, error)

	DB() *gorm.DB
}

type movementRepo struct{ db *gorm.DB }

func NewMovementRepository(db *gorm.DB) MovementRepository { return &movementRepo{db: db} }

func (r *movementRepo) DB() *gorm.DB { return r.db }

func (r *movementRepo) Create(ctx context.Context, m *model.Movement) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *movementRepo) ListByShift(ctx context.Context, shiftID uuid.UUID) ([]model.Movement, error) {
	var movements []model.Movement
	err := r.db.WithContext(ctx).
		Where("shift_id = ?", shiftID).
		Order("created_at ASC").
		Find(&movements).Error
	return movements, err
}

func (r *movementRepo) UpsertTx(tx *gorm.DB, m *model.Movement) (bool, error) {
	var count int64
	if err := tx.Model(&model.Movement{}).Where("id = ?", m.ID).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		err := tx.Model(&model.Movement{}).Where("id = ?", m.ID).Updates(map[string]interface{}{
			"amount":      m.Amount,
			"description": m.Description,
			"is_synced":   true,
		}).Error
		return false, err
	}
	return true, tx.Create(m).Error
}

func (r *movementRepo) CreateTx(tx *gorm.DB, m *model.Movement) error {
	return tx.Create(m).Error
}

func (r *movementRepo) CashTotalTx(tx *gorm.DB, shiftID uuid.UUID) (decimal.Decimal, error) {
	var rows []model.Movement
	if err := tx.Where("shift_id = ?", shiftID).Find(&rows).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, m := range rows {
		switch m.Type {
		case model.MovementExpense:
			total = total.Sub(m.Amount)
		default:
			total = total.Add(m.Amount)
		}
	}
	return total, nil
}
