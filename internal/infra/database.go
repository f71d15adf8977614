package infra

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Wizard2999/el-super-cafe-backend/internal/model"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate to
// create / update all tables, then applies any idempotent SQL patches that GORM
// cannot express (partial unique indexes in particular).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

// RunMigrations applies the model schema plus the SQL-only patches. Also used
// by integration tests against a throwaway database.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.Recipe{},
		&model.CafeTable{},
		&model.Shift{},
		&model.Movement{},
		&model.Sale{},
		&model.SaleItem{},
		&model.Customer{},
		&model.CreditTransaction{},
		&model.SyncLog{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot express.
// Each statement guards itself so re-running on a patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// At most one open shift globally. The reconciler also checks under
		// lock, but the index makes the invariant hold even against raw SQL.
		{"unique open shift", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'uniq_shifts_single_open') THEN
    CREATE UNIQUE INDEX uniq_shifts_single_open ON shifts (status) WHERE status = 'open';
  END IF;
END $$`},
		// Transit-state lookup: orphan sales addressed to a receiver.
		{"transit sales index", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_sales_transit') THEN
    CREATE INDEX idx_sales_transit ON sales (pending_receiver_user_id)
        WHERE shift_id IS NULL AND pending_receiver_user_id IS NOT NULL;
  END IF;
END $$`},
		// FIFO allocation scans open charges per customer, oldest first.
		{"open charges index", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_credit_open_charges') THEN
    CREATE INDEX idx_credit_open_charges ON credit_transactions (customer_id, created_at)
        WHERE remaining > 0;
  END IF;
END $$`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
