package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mxrcabrera/pilates-booking-sub001/config"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/dto"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/model"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/repository"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/civil"
	pkgerrors "github.com/mxrcabrera/pilates-booking-sub001/pkg/errors"
)

// ── 候补模块业务错误 ──

var (
	ErrSlotNotFull      = pkgerrors.New(pkgerrors.KindSlotNotFull, "该时段仍有名额，请直接预约")
	ErrAlreadyWaiting   = pkgerrors.New(pkgerrors.KindAlreadyBooked, "已在候补队列中")
	ErrWaitlistNotFound = pkgerrors.New(pkgerrors.KindNotFound, "候补记录不存在")
)

// WaitlistService 满员时段的候补队列
//
// 位置在加入时分配为队尾 +1（含已取消记录），之后不重排也不复用；
// 有空位时只发通知，晋升为正式预约由外部系统处理
type WaitlistService interface {
	Join(ctx context.Context, req *dto.JoinWaitlistRequest, learnerID string) (*dto.WaitlistResponse, error)
	Leave(ctx context.Context, entryID string, learnerID string) (*dto.WaitlistResponse, error)
	ListMine(ctx context.Context, learnerID string) ([]dto.WaitlistResponse, error)
}

type waitlistService struct {
	repo      *repository.Repository
	cfg       *config.BookingConfig
	ownership OwnershipService
	rules     slotRules
	logger    *zap.Logger
}

// NewWaitlistService 创建 WaitlistService 实例
func NewWaitlistService(
	repo *repository.Repository,
	cfg *config.BookingConfig,
	ownership OwnershipService,
	settings OwnerSettingService,
	availability AvailabilityService,
	now func() time.Time,
	logger *zap.Logger,
) WaitlistService {
	return &waitlistService{
		repo:      repo,
		cfg:       cfg,
		ownership: ownership,
		rules:     slotRules{cfg: cfg, settings: settings, availability: availability, now: now},
		logger:    logger,
	}
}

func (s *waitlistService) Join(ctx context.Context, req *dto.JoinWaitlistRequest, learnerID string) (*dto.WaitlistResponse, error) {
	scope, err := s.ownership.ResolveLearnerScope(ctx, learnerID, scopeFrom(req.ScopeRequest))
	if err != nil {
		return nil, err
	}
	target, err := s.rules.check(ctx, scope, req.Date, req.StartTime)
	if err != nil {
		return nil, err
	}
	key := target.key

	var entry *model.WaitlistEntry
	err = serializable(ctx, s.repo, s.cfg.SerializationRetries, s.logger, func(tx *repository.Repository) error {
		entry = nil
		held, err := learnerHolds(ctx, tx, key, learnerID)
		if err != nil {
			return err
		}
		if held {
			return ErrAlreadyBooked
		}
		occupied, err := tx.Occurrence.CountOccupied(ctx, key)
		if err != nil {
			return err
		}
		if occupied < int64(target.policy.Capacity) {
			return ErrSlotNotFull.WithDetail("剩余 %d 个名额", int64(target.policy.Capacity)-occupied)
		}
		if _, err := tx.Waitlist.FindWaiting(ctx, key, learnerID); err == nil {
			return ErrAlreadyWaiting
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		tail, err := tx.Waitlist.MaxPosition(ctx, key)
		if err != nil {
			return err
		}
		e := &model.WaitlistEntry{
			OwnerType: key.Scope.OwnerType,
			OwnerID:   key.Scope.OwnerID,
			StaffID:   key.Scope.StaffRef(),
			LearnerID: learnerID,
			ClassDate: key.Date,
			StartTime: key.StartTime,
			Position:  tail + 1,
			Status:    model.WaitlistWaiting,
		}
		if err := tx.Waitlist.Create(ctx, e); err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		if _, ok := pkgerrors.KindOf(err); !ok {
			s.logger.Error("加入候补失败", zap.String("scope", scope.String()), zap.String("learner_id", learnerID), zap.Error(err))
		}
		return nil, err
	}
	return toWaitlistResponse(entry), nil
}

// Leave 标记为 cancelled，其他记录位置不变；重复退出直接返回
func (s *waitlistService) Leave(ctx context.Context, entryID string, learnerID string) (*dto.WaitlistResponse, error) {
	entry, err := s.repo.Waitlist.GetByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWaitlistNotFound
		}
		s.logger.Error("查询候补记录失败", zap.String("entry_id", entryID), zap.Error(err))
		return nil, err
	}
	if entry.LearnerID != learnerID {
		return nil, ErrWaitlistNotFound
	}
	if entry.Status == model.WaitlistCancelled {
		return toWaitlistResponse(entry), nil
	}

	entry.Status = model.WaitlistCancelled
	if err := s.repo.Waitlist.Update(ctx, entry); err != nil {
		s.logger.Error("退出候补失败", zap.String("entry_id", entryID), zap.Error(err))
		return nil, err
	}
	return toWaitlistResponse(entry), nil
}

func (s *waitlistService) ListMine(ctx context.Context, learnerID string) ([]dto.WaitlistResponse, error) {
	entries, err := s.repo.Waitlist.ListByLearner(ctx, learnerID, model.WaitlistWaiting)
	if err != nil {
		s.logger.Error("查询候补记录失败", zap.String("learner_id", learnerID), zap.Error(err))
		return nil, err
	}
	result := make([]dto.WaitlistResponse, 0, len(entries))
	for i := range entries {
		result = append(result, *toWaitlistResponse(&entries[i]))
	}
	return result, nil
}

func toWaitlistResponse(e *model.WaitlistEntry) *dto.WaitlistResponse {
	return &dto.WaitlistResponse{
		ID:        e.EntryID,
		OwnerType: e.OwnerType,
		OwnerID:   e.OwnerID,
		StaffID:   e.Scope().StaffID,
		Date:      civil.FormatDate(e.ClassDate),
		StartTime: civil.NormalizeClock(e.StartTime),
		Position:  e.Position,
		Status:    e.Status,
		CreatedAt: e.CreatedAt.Format(timeFormat),
	}
}
