package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/model"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/civil"
)

// WindowFilter 窗口查询条件
type WindowFilter struct {
	DayOfWeek *int
	// AllStaff 为 true 时忽略 scope.StaffID，返回工作室下全部教练的窗口
	AllStaff bool
}

// AvailabilityRepository 可预约窗口与封锁日期数据访问接口
type AvailabilityRepository interface {
	CreateWindow(ctx context.Context, w *model.AvailabilityWindow) error
	GetWindow(ctx context.Context, id string) (*model.AvailabilityWindow, error)
	ListWindows(ctx context.Context, scope model.OwnerScope, filter WindowFilter) ([]model.AvailabilityWindow, error)
	DeleteWindow(ctx context.Context, id string, deletedBy string) error

	CreateBlockedDate(ctx context.Context, b *model.BlockedDate) error
	GetBlockedDate(ctx context.Context, id string) (*model.BlockedDate, error)
	ListBlockedDates(ctx context.Context, owner model.OwnerScope, from, to time.Time) ([]model.BlockedDate, error)
	DeleteBlockedDate(ctx context.Context, id string, deletedBy string) error
}

type availabilityRepo struct {
	db *gorm.DB
}

// NewAvailabilityRepo 创建 AvailabilityRepository 实例
func NewAvailabilityRepo(db *gorm.DB) AvailabilityRepository {
	return &availabilityRepo{db: db}
}

// ── 窗口 ──

func (r *availabilityRepo) CreateWindow(ctx context.Context, w *model.AvailabilityWindow) error {
	return r.db.WithContext(ctx).Create(w).Error
}

func (r *availabilityRepo) GetWindow(ctx context.Context, id string) (*model.AvailabilityWindow, error) {
	var w model.AvailabilityWindow
	if err := r.db.WithContext(ctx).Where("window_id = ?", id).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *availabilityRepo) ListWindows(ctx context.Context, scope model.OwnerScope, filter WindowFilter) ([]model.AvailabilityWindow, error) {
	var windows []model.AvailabilityWindow
	db := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ? AND is_active = ?", scope.OwnerType, scope.OwnerID, true)

	if !filter.AllStaff {
		db = staffEquals(db, scope.StaffID)
	}
	if filter.DayOfWeek != nil {
		db = db.Where("day_of_week = ?", *filter.DayOfWeek)
	}

	err := db.Order("day_of_week ASC, start_time ASC").Find(&windows).Error
	return windows, err
}

func (r *availabilityRepo) DeleteWindow(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.AvailabilityWindow{}).
		Where("window_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}

// ── 封锁日期 ──

func (r *availabilityRepo) CreateBlockedDate(ctx context.Context, b *model.BlockedDate) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *availabilityRepo) GetBlockedDate(ctx context.Context, id string) (*model.BlockedDate, error) {
	var b model.BlockedDate
	if err := r.db.WithContext(ctx).Where("blocked_date_id = ?", id).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBlockedDates 闭区间 [from, to]
func (r *availabilityRepo) ListBlockedDates(ctx context.Context, owner model.OwnerScope, from, to time.Time) ([]model.BlockedDate, error) {
	var dates []model.BlockedDate
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", owner.OwnerType, owner.OwnerID).
		Where("blocked_on BETWEEN ? AND ?", civil.FormatDate(from), civil.FormatDate(to)).
		Order("blocked_on ASC").
		Find(&dates).Error
	return dates, err
}

func (r *availabilityRepo) DeleteBlockedDate(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.BlockedDate{}).
		Where("blocked_date_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}

// staffEquals 精确匹配教练维度，空串匹配 NULL
func staffEquals(db *gorm.DB, staffID string) *gorm.DB {
	if staffID == "" {
		return db.Where("staff_id IS NULL")
	}
	return db.Where("staff_id = ?", staffID)
}
