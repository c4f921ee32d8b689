package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/model"
)

// PackRepository 学员课包只读接口
type PackRepository interface {
	GetActive(ctx context.Context, learnerID string, owner model.OwnerScope) (*model.LearnerPack, error)
}

type packRepo struct {
	db *gorm.DB
}

// NewPackRepo 创建 PackRepository 实例
func NewPackRepo(db *gorm.DB) PackRepository {
	return &packRepo{db: db}
}

// GetActive 返回最新的有效课包，没有时返回 gorm.ErrRecordNotFound
func (r *packRepo) GetActive(ctx context.Context, learnerID string, owner model.OwnerScope) (*model.LearnerPack, error) {
	var pack model.LearnerPack
	err := ownerEquals(r.db.WithContext(ctx), owner).
		Where("learner_id = ? AND is_active = ?", learnerID, true).
		Order("created_at DESC").
		First(&pack).Error
	if err != nil {
		return nil, err
	}
	return &pack, nil
}
