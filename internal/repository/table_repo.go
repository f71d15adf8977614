package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Wizard2999/el-super-cafe-backend/internal/model"
)

type TableRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.CafeTable, error)
	List(ctx context.Context) ([]model.CafeTable, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateStatusTx(tx *gorm.DB, id uuid.UUID, status string) error
	// CurrentOrder returns the pending sale seated at the table, if any.
	CurrentOrder(ctx context.Context, tableID uuid.UUID) (*model.Sale, error)

	DB() *gorm.DB
}

type tableRepo struct{ db *gorm.DB }

func NewTableRepository(db *gorm.DB) TableRepository { return &tableRepo{db: db} }

func (r *tableRepo) DB() *gorm.DB { return r.db }

func (r *tableRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.CafeTable, error) {
	var t model.CafeTable
	err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error
	return &t, err
}

func (r *tableRepo) List(ctx context.Context) ([]model.CafeTable, error) {
	var tables []model.CafeTable
	err := r.db.WithContext(ctx).Order("name ASC").Find(&tables).Error
	return tables, err
}

func (r *tableRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.db.WithContext(ctx).Model(&model.CafeTable{}).Where("id = ?", id).
		Update("status", status).Error
}

func (r *tableRepo) UpdateStatusTx(tx *gorm.DB, id uuid.UUID, status string) error {
	return tx.Model(&model.CafeTable{}).Where("id = ?", id).Update("status", status).Error
}

func (r *tableRepo) CurrentOrder(ctx context.Context, tableID uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).Preload("Items").
		Where("table_id = ? AND status = ?", tableID, model.SalePending).
		Order("created_at DESC").
		First(&s).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &s, err
}
