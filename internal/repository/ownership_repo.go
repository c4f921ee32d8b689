package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/model"
)

// OwnershipRepository 学员关联与工作室成员数据访问接口
type OwnershipRepository interface {
	ListLearnerLinks(ctx context.Context, learnerID string) ([]model.LearnerLink, error)
	GetStaff(ctx context.Context, studioID, instructorID string) (*model.StudioStaff, error)
	ListStudioStaff(ctx context.Context, studioID string) ([]model.StudioStaff, error)
}

type ownershipRepo struct {
	db *gorm.DB
}

// NewOwnershipRepo 创建 OwnershipRepository 实例
func NewOwnershipRepo(db *gorm.DB) OwnershipRepository {
	return &ownershipRepo{db: db}
}

func (r *ownershipRepo) ListLearnerLinks(ctx context.Context, learnerID string) ([]model.LearnerLink, error) {
	var links []model.LearnerLink
	err := r.db.WithContext(ctx).
		Where("learner_id = ? AND is_active = ?", learnerID, true).
		Order("owner_type ASC, created_at ASC").
		Find(&links).Error
	return links, err
}

// GetStaff 只返回在职成员，否则 gorm.ErrRecordNotFound
func (r *ownershipRepo) GetStaff(ctx context.Context, studioID, instructorID string) (*model.StudioStaff, error) {
	var staff model.StudioStaff
	err := r.db.WithContext(ctx).
		Where("studio_id = ? AND instructor_id = ? AND is_active = ?", studioID, instructorID, true).
		First(&staff).Error
	if err != nil {
		return nil, err
	}
	return &staff, nil
}

func (r *ownershipRepo) ListStudioStaff(ctx context.Context, studioID string) ([]model.StudioStaff, error) {
	var staff []model.StudioStaff
	err := r.db.WithContext(ctx).
		Where("studio_id = ? AND is_active = ?", studioID, true).
		Order("created_at ASC").
		Find(&staff).Error
	return staff, err
}
