package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/model"
	pkgerrors "github.com/mxrcabrera/pilates-booking-sub001/pkg/errors"
)

// OwnerSettingRepository 场馆预约参数数据访问接口
type OwnerSettingRepository interface {
	Get(ctx context.Context, ownerType, ownerID string) (*model.OwnerSetting, error)
	Create(ctx context.Context, setting *model.OwnerSetting) error
	Update(ctx context.Context, setting *model.OwnerSetting) error
}

type ownerSettingRepo struct {
	db *gorm.DB
}

// NewOwnerSettingRepo 创建 OwnerSettingRepository 实例
func NewOwnerSettingRepo(db *gorm.DB) OwnerSettingRepository {
	return &ownerSettingRepo{db: db}
}

func (r *ownerSettingRepo) Get(ctx context.Context, ownerType, ownerID string) (*model.OwnerSetting, error) {
	var setting model.OwnerSetting
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		First(&setting).Error
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

func (r *ownerSettingRepo) Create(ctx context.Context, setting *model.OwnerSetting) error {
	if setting.Version == 0 {
		setting.Version = 1
	}
	return r.db.WithContext(ctx).Create(setting).Error
}

// Update 乐观锁更新，version 不匹配时返回 ErrOptimisticLock
func (r *ownerSettingRepo) Update(ctx context.Context, setting *model.OwnerSetting) error {
	oldVersion := setting.Version
	result := r.db.WithContext(ctx).
		Model(&model.OwnerSetting{}).
		Where("owner_type = ? AND owner_id = ? AND version = ?", setting.OwnerType, setting.OwnerID, oldVersion).
		Updates(map[string]interface{}{
			"timezone":             setting.Timezone,
			"slot_capacity":        setting.SlotCapacity,
			"anticipation_minutes": setting.AnticipationMinutes,
			"updated_by":           setting.UpdatedBy,
			"updated_at":           gorm.Expr("NOW()"),
			"version":              oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	setting.Version = oldVersion + 1
	return nil
}
