package repository

import (
	"context"
	"database/sql"
	"sync"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Ownership    OwnershipRepository
	OwnerSetting OwnerSettingRepository
	Availability AvailabilityRepository
	Occurrence   OccurrenceRepository
	Series       SeriesRepository
	Pack         PackRepository
	Waitlist     WaitlistRepository

	db *gorm.DB
	// db 为空（单元测试注入 mock）时用互斥锁模拟事务隔离
	txMu sync.Mutex
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Ownership:    NewOwnershipRepo(db),
		OwnerSetting: NewOwnerSettingRepo(db),
		Availability: NewAvailabilityRepo(db),
		Occurrence:   NewOccurrenceRepo(db),
		Series:       NewSeriesRepo(db),
		Pack:         NewPackRepo(db),
		Waitlist:     NewWaitlistRepo(db),
		db:           db,
	}
}

// Transaction 在默认隔离级别的事务内执行 fn，fn 返回错误时回滚
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.transaction(ctx, nil, fn)
}

// Serializable 在可序列化隔离级别的事务内执行 fn
// 冲突以 SQLSTATE 40001 返回，由调用方决定是否重试
func (r *Repository) Serializable(ctx context.Context, fn func(tx *Repository) error) error {
	return r.transaction(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, fn)
}

func (r *Repository) transaction(ctx context.Context, opts *sql.TxOptions, fn func(tx *Repository) error) error {
	if r.db == nil {
		r.txMu.Lock()
		defer r.txMu.Unlock()
		return fn(r)
	}
	if opts == nil {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(NewRepository(tx))
		})
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	}, opts)
}
