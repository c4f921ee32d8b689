package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/model"
	pkgerrors "github.com/mxrcabrera/pilates-booking-sub001/pkg/errors"
)

// SeriesRepository 循环课程系列数据访问接口
type SeriesRepository interface {
	Create(ctx context.Context, s *model.ClassSeries) error
	GetByID(ctx context.Context, id string) (*model.ClassSeries, error)
	Update(ctx context.Context, s *model.ClassSeries) error
}

type seriesRepo struct {
	db *gorm.DB
}

// NewSeriesRepo 创建 SeriesRepository 实例
func NewSeriesRepo(db *gorm.DB) SeriesRepository {
	return &seriesRepo{db: db}
}

func (r *seriesRepo) Create(ctx context.Context, s *model.ClassSeries) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *seriesRepo) GetByID(ctx context.Context, id string) (*model.ClassSeries, error) {
	var s model.ClassSeries
	if err := r.db.WithContext(ctx).Where("series_id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// Update 乐观锁更新星期集合与时刻
func (r *seriesRepo) Update(ctx context.Context, s *model.ClassSeries) error {
	oldVersion := s.Version
	result := r.db.WithContext(ctx).
		Model(&model.ClassSeries{}).
		Where("series_id = ? AND version = ?", s.SeriesID, oldVersion).
		Updates(map[string]interface{}{
			"weekdays":   s.Weekdays,
			"start_time": s.StartTime,
			"updated_by": s.UpdatedBy,
			"updated_at": gorm.Expr("NOW()"),
			"version":    oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	s.Version = oldVersion + 1
	return nil
}
