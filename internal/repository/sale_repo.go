package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Wizard2999/el-super-cafe-backend/internal/model"
)

type SaleRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	ItemsForSale(ctx context.Context, saleID uuid.UUID) ([]model.SaleItem, error)

	// Tx variants — every write in the reconciler runs inside the
	// enclosing sale transaction.
	FindForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Sale, error)
	UpsertTx(tx *gorm.DB, s *model.Sale) error
	ReplaceItemsTx(tx *gorm.DB, saleID uuid.UUID, items []model.SaleItem) error
	ItemsForSaleTx(tx *gorm.DB, saleID uuid.UUID) ([]model.SaleItem, error)
	UpdateTotalTx(tx *gorm.DB, saleID uuid.UUID, total decimal.Decimal) error
	UpdateStatusTx(tx *gorm.DB, saleID uuid.UUID, status string) error
	DeleteItemsTx(tx *gorm.DB, saleID uuid.UUID) error

	DeleteItem(ctx context.Context, saleID, itemID uuid.UUID) (int64, error)
	UpdateItemStatus(ctx context.Context, saleID, itemID uuid.UUID, status string) (int64, error)
	UpdateTotal(ctx context.Context, saleID uuid.UUID, total decimal.Decimal) error

	// Pending-sale reassignment used by the shift handover paths.
	PendingByShiftTx(tx *gorm.DB, shiftID uuid.UUID) ([]model.Sale, error)
	ReassignShiftTx(tx *gorm.DB, saleIDs []uuid.UUID, shiftID uuid.UUID) error
	DetachToReceiverTx(tx *gorm.DB, saleIDs []uuid.UUID, receiverUserID uuid.UUID) error
	// OrphansForReceiverTx returns transit-state sales addressed to the user.
	OrphansForReceiverTx(tx *gorm.DB, receiverUserID uuid.UUID) ([]model.Sale, error)
	LinkOrphansTx(tx *gorm.DB, saleIDs []uuid.UUID, shiftID uuid.UUID) error

	DB() *gorm.DB
}

type saleRepo struct{ db *gorm.DB }

func NewSaleRepository(db *gorm.DB) SaleRepository { return &saleRepo{db: db} }

func (r *saleRepo) DB() *gorm.DB { return r.db }

func (r *saleRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).Preload("Items").First(&s, "id = ?", id).Error
	return &s, err
}

func (r *saleRepo) ItemsForSale(ctx context.Context, saleID uuid.UUID) ([]model.SaleItem, error) {
	var items []model.SaleItem
	err := r.db.WithContext(ctx).Where("sale_id = ?", saleID).Order("created_at ASC").Find(&items).Error
	return items, err
}

func (r *saleRepo) FindForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&s, "id = ?", id).Error
	return &s, err
}

func (r *saleRepo) UpsertTx(tx *gorm.DB, s *model.Sale) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total", "payment_method", "status", "observation",
			"unpaid_authorized_by_id", "print_count", "is_synced", "updated_at",
		}),
	}).Create(s).Error
}

// ReplaceItemsTx implements the replace-strategy: wipe and re-insert the
// full uploaded set, last writer wins at the item-set granularity.
func (r *saleRepo) ReplaceItemsTx(tx *gorm.DB, saleID uuid.UUID, items []model.SaleItem) error {
	if err := tx.Where("sale_id = ?", saleID).Delete(&model.SaleItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return tx.Create(&items).Error
}

func (r *saleRepo) ItemsForSaleTx(tx *gorm.DB, saleID uuid.UUID) ([]model.SaleItem, error) {
	var items []model.SaleItem
	err := tx.Where("sale_id = ?", saleID).Find(&items).Error
	return items, err
}

func (r *saleRepo) UpdateTotalTx(tx *gorm.DB, saleID uuid.UUID, total decimal.Decimal) error {
	return tx.Model(&model.Sale{}).Where("id = ?", saleID).Update("total", total).Error
}

func (r *saleRepo) UpdateStatusTx(tx *gorm.DB, saleID uuid.UUID, status string) error {
	return tx.Model(&model.Sale{}).Where("id = ?", saleID).Update("status", status).Error
}

func (r *saleRepo) DeleteItemsTx(tx *gorm.DB, saleID uuid.UUID) error {
	return tx.Where("sale_id = ?", saleID).Delete(&model.SaleItem{}).Error
}

func (r *saleRepo) DeleteItem(ctx context.Context, saleID, itemID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("sale_id = ? AND id = ?", saleID, itemID).Delete(&model.SaleItem{})
	return res.RowsAffected, res.Error
}

func (r *saleRepo) UpdateItemStatus(ctx context.Context, saleID, itemID uuid.UUID, status string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.SaleItem{}).
		Where("id = ? AND sale_id = ?", itemID, saleID).
		Update("preparation_status", status)
	return res.RowsAffected, res.Error
}

func (r *saleRepo) UpdateTotal(ctx context.Context, saleID uuid.UUID, total decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&model.Sale{}).Where("id = ?", saleID).Update("total", total).Error
}

func (r *saleRepo) PendingByShiftTx(tx *gorm.DB, shiftID uuid.UUID) ([]model.Sale, error) {
	var sales []model.Sale
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("shift_id = ? AND status = ?", shiftID, model.SalePending).
		Find(&sales).Error
	return sales, err
}

func (r *saleRepo) ReassignShiftTx(tx *gorm.DB, saleIDs []uuid.UUID, shiftID uuid.UUID) error {
	if len(saleIDs) == 0 {
		return nil
	}
	return tx.Model(&model.Sale{}).Where("id IN ?", saleIDs).Updates(map[string]interface{}{
		"shift_id":                 shiftID,
		"pending_receiver_user_id": nil,
	}).Error
}

func (r *saleRepo) DetachToReceiverTx(tx *gorm.DB, saleIDs []uuid.UUID, receiverUserID uuid.UUID) error {
	if len(saleIDs) == 0 {
		return nil
	}
	return tx.Model(&model.Sale{}).Where("id IN ?", saleIDs).Updates(map[string]interface{}{
		"shift_id":                 nil,
		"pending_receiver_user_id": receiverUserID,
	}).Error
}

func (r *saleRepo) OrphansForReceiverTx(tx *gorm.DB, receiverUserID uuid.UUID) ([]model.Sale, error) {
	var sales []model.Sale
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("shift_id IS NULL AND pending_receiver_user_id = ? AND status = ?",
			receiverUserID, model.SalePending).
		Find(&sales).Error
	return sales, err
}

func (r *saleRepo) LinkOrphansTx(tx *gorm.DB, saleIDs []uuid.UUID, shiftID uuid.UUID) error {
	return r.ReassignShiftTx(tx, saleIDs, shiftID)
}
