package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/model"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/civil"
)

// OccupancyRow 单个时段的占用人数
type OccupancyRow struct {
	ClassDate time.Time
	StartTime string
	StaffID   *string
	Occupied  int64
}

// StaffKey 教练维度，空串表示不区分教练
func (o OccupancyRow) StaffKey() string {
	if o.StaffID == nil {
		return ""
	}
	return *o.StaffID
}

// OccurrenceRepository 课程记录数据访问接口
type OccurrenceRepository interface {
	Create(ctx context.Context, o *model.ClassOccurrence) error
	BatchCreate(ctx context.Context, items []model.ClassOccurrence) error
	GetByID(ctx context.Context, id string) (*model.ClassOccurrence, error)
	Update(ctx context.Context, o *model.ClassOccurrence) error
	SoftDelete(ctx context.Context, id string, deletedBy string) error

	// CountOccupied 与 ListOccupancy 共用同一占用条件
	CountOccupied(ctx context.Context, key model.SlotKey) (int64, error)
	ListOccupancy(ctx context.Context, owner model.OwnerScope, from, to time.Time) ([]OccupancyRow, error)

	FindLearnerBooking(ctx context.Context, key model.SlotKey, learnerID string) (*model.ClassOccurrence, error)
	CountLearnerBetween(ctx context.Context, owner model.OwnerScope, learnerID string, from, to time.Time) (int64, error)
	ListLearnerBetween(ctx context.Context, owner model.OwnerScope, learnerID string, from, to time.Time) ([]model.ClassOccurrence, error)
	ListLearnerUpcoming(ctx context.Context, learnerID string, from time.Time) ([]model.ClassOccurrence, error)
	ListBySeries(ctx context.Context, seriesID string) ([]model.ClassOccurrence, error)
	ListRange(ctx context.Context, owner model.OwnerScope, from, to time.Time) ([]model.ClassOccurrence, error)
}

type occurrenceRepo struct {
	db *gorm.DB
}

// NewOccurrenceRepo 创建 OccurrenceRepository 实例
func NewOccurrenceRepo(db *gorm.DB) OccurrenceRepository {
	return &occurrenceRepo{db: db}
}

// occupying 占用名额的唯一判定：有学员且未取消，与 model.ClassOccurrence.OccupiesSeat 一致
func occupying(db *gorm.DB) *gorm.DB {
	return db.Where("learner_id IS NOT NULL AND status <> ?", model.ClassCancelled)
}

func ownerEquals(db *gorm.DB, owner model.OwnerScope) *gorm.DB {
	return db.Where("owner_type = ? AND owner_id = ?", owner.OwnerType, owner.OwnerID)
}

func slotEquals(db *gorm.DB, key model.SlotKey) *gorm.DB {
	return ownerEquals(db, key.Scope).
		Where("class_date = ? AND start_time = ?", civil.FormatDate(key.Date), key.StartTime)
}

func (r *occurrenceRepo) Create(ctx context.Context, o *model.ClassOccurrence) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *occurrenceRepo) BatchCreate(ctx context.Context, items []model.ClassOccurrence) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(items, 100).Error
}

func (r *occurrenceRepo) GetByID(ctx context.Context, id string) (*model.ClassOccurrence, error) {
	var o model.ClassOccurrence
	if err := r.db.WithContext(ctx).Where("class_id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *occurrenceRepo) Update(ctx context.Context, o *model.ClassOccurrence) error {
	return r.db.WithContext(ctx).Save(o).Error
}

func (r *occurrenceRepo) SoftDelete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.ClassOccurrence{}).
		Where("class_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}

// ── 占用统计 ──

func (r *occurrenceRepo) CountOccupied(ctx context.Context, key model.SlotKey) (int64, error) {
	var n int64
	db := r.db.WithContext(ctx).Model(&model.ClassOccurrence{})
	db = staffEquals(occupying(slotEquals(db, key)), key.Scope.StaffID)
	err := db.Count(&n).Error
	return n, err
}

// ListOccupancy 按 (日期, 时刻, 教练) 汇总闭区间内的占用人数
func (r *occurrenceRepo) ListOccupancy(ctx context.Context, owner model.OwnerScope, from, to time.Time) ([]OccupancyRow, error) {
	var rows []OccupancyRow
	db := r.db.WithContext(ctx).Model(&model.ClassOccurrence{})
	db = occupying(ownerEquals(db, owner)).
		Where("class_date BETWEEN ? AND ?", civil.FormatDate(from), civil.FormatDate(to))
	err := db.Select("class_date, start_time, staff_id, COUNT(*) AS occupied").
		Group("class_date, start_time, staff_id").
		Scan(&rows).Error
	for i := range rows {
		rows[i].StartTime = civil.NormalizeClock(rows[i].StartTime)
	}
	return rows, err
}

// ── 学员维度 ──

// FindLearnerBooking 学员在该时段的有效预约（不区分教练），没有时返回 gorm.ErrRecordNotFound
func (r *occurrenceRepo) FindLearnerBooking(ctx context.Context, key model.SlotKey, learnerID string) (*model.ClassOccurrence, error) {
	var o model.ClassOccurrence
	err := occupying(slotEquals(r.db.WithContext(ctx), key)).
		Where("learner_id = ?", learnerID).
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *occurrenceRepo) CountLearnerBetween(ctx context.Context, owner model.OwnerScope, learnerID string, from, to time.Time) (int64, error) {
	var n int64
	err := occupying(ownerEquals(r.db.WithContext(ctx).Model(&model.ClassOccurrence{}), owner)).
		Where("learner_id = ?", learnerID).
		Where("class_date BETWEEN ? AND ?", civil.FormatDate(from), civil.FormatDate(to)).
		Count(&n).Error
	return n, err
}

func (r *occurrenceRepo) ListLearnerBetween(ctx context.Context, owner model.OwnerScope, learnerID string, from, to time.Time) ([]model.ClassOccurrence, error) {
	var items []model.ClassOccurrence
	err := occupying(ownerEquals(r.db.WithContext(ctx), owner)).
		Where("learner_id = ?", learnerID).
		Where("class_date BETWEEN ? AND ?", civil.FormatDate(from), civil.FormatDate(to)).
		Order("class_date ASC, start_time ASC").
		Find(&items).Error
	return items, err
}

func (r *occurrenceRepo) ListLearnerUpcoming(ctx context.Context, learnerID string, from time.Time) ([]model.ClassOccurrence, error) {
	var items []model.ClassOccurrence
	err := occupying(r.db.WithContext(ctx)).
		Where("learner_id = ? AND class_date >= ?", learnerID, civil.FormatDate(from)).
		Order("class_date ASC, start_time ASC").
		Find(&items).Error
	return items, err
}

// ── 系列与名单 ──

func (r *occurrenceRepo) ListBySeries(ctx context.Context, seriesID string) ([]model.ClassOccurrence, error) {
	var items []model.ClassOccurrence
	err := r.db.WithContext(ctx).
		Where("series_id = ?", seriesID).
		Order("class_date ASC, start_time ASC").
		Find(&items).Error
	return items, err
}

// ListRange 闭区间内的全部课程（含已取消），用于名单导出与系列去重
func (r *occurrenceRepo) ListRange(ctx context.Context, owner model.OwnerScope, from, to time.Time) ([]model.ClassOccurrence, error) {
	var items []model.ClassOccurrence
	err := ownerEquals(r.db.WithContext(ctx), owner).
		Where("class_date BETWEEN ? AND ?", civil.FormatDate(from), civil.FormatDate(to)).
		Order("class_date ASC, start_time ASC, staff_id ASC").
		Find(&items).Error
	return items, err
}
