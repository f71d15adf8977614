package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Wizard2999/el-super-cafe-backend/internal/model"
)

// ProductRepository is the data access contract for products and recipe
// edges. The stock engine depends on this interface, not on GORM, so unit
// tests swap in in-memory stubs.
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	RecipesForProduct(ctx context.Context, productID uuid.UUID) ([]model.Recipe, error)
	List(ctx context.Context) ([]model.Product, error)

	// Used inside transactions — callers pass the live tx instance.
	// FindForUpdateTx takes a SELECT ... FOR UPDATE row lock.
	FindForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Product, error)
	// DeductStockTx applies stock_current = GREATEST(0, stock_current - delta).
	DeductStockTx(tx *gorm.DB, id uuid.UUID, delta decimal.Decimal) error
	AdjustStock(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) DB() *gorm.DB { return r.db }

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	return &p, err
}

func (r *productRepo) RecipesForProduct(ctx context.Context, productID uuid.UUID) ([]model.Recipe, error) {
	var recipes []model.Recipe
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).Find(&recipes).Error
	return recipes, err
}

func (r *productRepo) List(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).Where("is_active = true").Order("name ASC").Find(&products).Error
	return products, err
}

func (r *productRepo) FindForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, "id = ?", id).Error
	return &p, err
}

func (r *productRepo) DeductStockTx(tx *gorm.DB, id uuid.UUID, delta decimal.Decimal) error {
	return tx.Model(&model.Product{}).Where("id = ?", id).
		Update("stock_current", gorm.Expr("GREATEST(0, stock_current - ?)", delta)).Error
}

func (r *productRepo) AdjustStock(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND is_active = true", id).
		Update("stock_current", gorm.Expr("GREATEST(0, stock_current + ?)", delta)).Error
}
