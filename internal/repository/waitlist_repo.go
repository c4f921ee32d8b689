package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/model"
)

// WaitlistRepository 候补队列数据访问接口
type WaitlistRepository interface {
	Create(ctx context.Context, e *model.WaitlistEntry) error
	GetByID(ctx context.Context, id string) (*model.WaitlistEntry, error)
	Update(ctx context.Context, e *model.WaitlistEntry) error
	// MaxPosition 队尾位置（含已取消），空队列返回 0
	MaxPosition(ctx context.Context, key model.SlotKey) (int, error)
	FindWaiting(ctx context.Context, key model.SlotKey, learnerID string) (*model.WaitlistEntry, error)
	ListWaiting(ctx context.Context, key model.SlotKey) ([]model.WaitlistEntry, error)
	ListByLearner(ctx context.Context, learnerID string, status string) ([]model.WaitlistEntry, error)
}

type waitlistRepo struct {
	db *gorm.DB
}

// NewWaitlistRepo 创建 WaitlistRepository 实例
func NewWaitlistRepo(db *gorm.DB) WaitlistRepository {
	return &waitlistRepo{db: db}
}

func (r *waitlistRepo) queue(ctx context.Context, key model.SlotKey) *gorm.DB {
	return staffEquals(slotEquals(r.db.WithContext(ctx), key), key.Scope.StaffID)
}

func (r *waitlistRepo) Create(ctx context.Context, e *model.WaitlistEntry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *waitlistRepo) GetByID(ctx context.Context, id string) (*model.WaitlistEntry, error) {
	var e model.WaitlistEntry
	if err := r.db.WithContext(ctx).Where("entry_id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *waitlistRepo) Update(ctx context.Context, e *model.WaitlistEntry) error {
	return r.db.WithContext(ctx).
		Model(&model.WaitlistEntry{}).
		Where("entry_id = ?", e.EntryID).
		Updates(map[string]interface{}{
			"status":     e.Status,
			"updated_at": gorm.Expr("NOW()"),
		}).Error
}

// MaxPosition 锁住队尾行，聚合函数不能与 FOR UPDATE 同用
func (r *waitlistRepo) MaxPosition(ctx context.Context, key model.SlotKey) (int, error) {
	var tail model.WaitlistEntry
	err := r.queue(ctx, key).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("position DESC").
		Limit(1).
		Take(&tail).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return tail.Position, nil
}

func (r *waitlistRepo) FindWaiting(ctx context.Context, key model.SlotKey, learnerID string) (*model.WaitlistEntry, error) {
	var e model.WaitlistEntry
	err := r.queue(ctx, key).
		Where("learner_id = ? AND status = ?", learnerID, model.WaitlistWaiting).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *waitlistRepo) ListWaiting(ctx context.Context, key model.SlotKey) ([]model.WaitlistEntry, error) {
	var entries []model.WaitlistEntry
	err := r.queue(ctx, key).
		Where("status = ?", model.WaitlistWaiting).
		Order("position ASC").
		Find(&entries).Error
	return entries, err
}

func (r *waitlistRepo) ListByLearner(ctx context.Context, learnerID string, status string) ([]model.WaitlistEntry, error) {
	var entries []model.WaitlistEntry
	db := r.db.WithContext(ctx).Where("learner_id = ?", learnerID)
	if status != "" {
		db = db.Where("status = ?", status)
	}
	err := db.Order("class_date ASC, start_time ASC").Find(&entries).Error
	return entries, err
}
