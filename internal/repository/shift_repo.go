package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Wizard2999/el-super-cafe-backend/internal/model"
)

// ErrNoOpenShift is returned when no shift is currently open.
var ErrNoOpenShift = errors.New("no hay turno abierto")

type ShiftRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Shift, error)
	// FindOpen returns the single globally open shift, ErrNoOpenShift otherwise.
	FindOpen(ctx context.Context) (*model.Shift, error)
	FindWaitingForUser(ctx context.Context, userID uuid.UUID) (*model.Shift, error)
	ListOpenExcluding(ctx context.Context, excludeID *uuid.UUID) ([]model.Shift, error)
	Update(ctx context.Context, s *model.Shift) error

	// FindOpenForUpdateTx takes a locking read over open shifts — the
	// uniqueness check and the insert must see the same snapshot.
	FindOpenForUpdateTx(tx *gorm.DB) (*model.Shift, error)
	FindForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Shift, error)
	CreateTx(tx *gorm.DB, s *model.Shift) error
	UpsertTx(tx *gorm.DB, s *model.Shift) error
	UpdateTx(tx *gorm.DB, s *model.Shift) error
	ExistsTx(tx *gorm.DB, id uuid.UUID) (bool, error)

	DB() *gorm.DB
}

type shiftRepo struct{ db *gorm.DB }

func NewShiftRepository(db *gorm.DB) ShiftRepository { return &shiftRepo{db: db} }

func (r *shiftRepo) DB() *gorm.DB { return r.db }

func (r *shiftRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Shift, error) {
	var s model.Shift
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	return &s, err
}

func (r *shiftRepo) FindOpen(ctx context.Context) (*model.Shift, error) {
	var s model.Shift
	err := r.db.WithContext(ctx).
		Where("status = ?", model.ShiftOpen).
		Order("start_time DESC").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoOpenShift
	}
	return &s, err
}

func (r *shiftRepo) FindWaitingForUser(ctx context.Context, userID uuid.UUID) (*model.Shift, error) {
	var s model.Shift
	err := r.db.WithContext(ctx).
		Where("status = ? AND opened_by_id = ?", model.ShiftWaitingInitialCash, userID).
		Order("created_at DESC").
		First(&s).Error
	return &s, err
}

func (r *shiftRepo) ListOpenExcluding(ctx context.Context, excludeID *uuid.UUID) ([]model.Shift, error) {
	q := r.db.WithContext(ctx).Where("status = ?", model.ShiftOpen)
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}
	var shifts []model.Shift
	err := q.Order("start_time DESC").Find(&shifts).Error
	return shifts, err
}

func (r *shiftRepo) Update(ctx context.Context, s *model.Shift) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *shiftRepo) FindOpenForUpdateTx(tx *gorm.DB) (*model.Shift, error) {
	var s model.Shift
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("status = ?", model.ShiftOpen).
		Order("start_time DESC").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoOpenShift
	}
	return &s, err
}

func (r *shiftRepo) FindForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Shift, error) {
	var s model.Shift
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&s, "id = ?", id).Error
	return &s, err
}

func (r *shiftRepo) CreateTx(tx *gorm.DB, s *model.Shift) error {
	return tx.Create(s).Error
}

func (r *shiftRepo) UpsertTx(tx *gorm.DB, s *model.Shift) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"closed_by_id", "closed_by_name", "end_time", "final_cash_reported",
			"cash_difference", "status", "is_synced", "updated_at",
		}),
	}).Create(s).Error
}

func (r *shiftRepo) UpdateTx(tx *gorm.DB, s *model.Shift) error {
	return tx.Save(s).Error
}

func (r *shiftRepo) ExistsTx(tx *gorm.DB, id uuid.UUID) (bool, error) {
	var count int64
	err := tx.Model(&model.Shift{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}
