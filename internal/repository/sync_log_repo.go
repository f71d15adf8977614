package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Wizard2999/el-super-cafe-backend/internal/model"
)

type SyncLogRepository interface {
	Create(ctx context.Context, entry *model.SyncLog) error
	Recent(ctx context.Context, limit int) ([]model.SyncLog, error)
}

type syncLogRepo struct{ db *gorm.DB }

func NewSyncLogRepository(db *gorm.DB) SyncLogRepository { return &syncLogRepo{db: db} }

func (r *syncLogRepo) Create(ctx context.Context, entry *model.SyncLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *syncLogRepo) Recent(ctx context.Context, limit int) ([]model.SyncLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []model.SyncLog
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}
