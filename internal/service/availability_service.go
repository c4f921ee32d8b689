package service

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/dto"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/model"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/repository"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/civil"
	pkgerrors "github.com/mxrcabrera/pilates-booking-sub001/pkg/errors"
)

// ── 可预约窗口业务错误 ──

var (
	ErrInvalidWindow      = pkgerrors.New(pkgerrors.KindInvalidInput, "窗口开始时间必须早于结束时间")
	ErrWindowNotFound     = pkgerrors.New(pkgerrors.KindNotFound, "窗口不存在")
	ErrBlockedDateExists  = pkgerrors.New(pkgerrors.KindInvalidInput, "该日期已封锁")
	ErrBlockedDateMissing = pkgerrors.New(pkgerrors.KindNotFound, "封锁日期不存在")
)

// AvailabilityService 每周窗口与封锁日期
//
// ActiveWindows / BlockedDates 供时段计算与预约校验使用；
// 其余方法为场馆管理入口，只做结构性校验（start < end）
type AvailabilityService interface {
	ActiveWindows(ctx context.Context, scope model.OwnerScope, dayOfWeek *int, allStaff bool) ([]model.AvailabilityWindow, error)
	BlockedDates(ctx context.Context, owner model.OwnerScope, from, to time.Time) (map[time.Time]bool, error)

	CreateWindow(ctx context.Context, req *dto.CreateWindowRequest, caller Caller) (*dto.WindowResponse, error)
	ListWindows(ctx context.Context, scope model.OwnerScope, caller Caller) ([]dto.WindowResponse, error)
	DeleteWindow(ctx context.Context, id string, caller Caller) error

	CreateBlockedDate(ctx context.Context, req *dto.CreateBlockedDateRequest, caller Caller) (*dto.BlockedDateResponse, error)
	ListBlockedDates(ctx context.Context, scope model.OwnerScope, from, to string, caller Caller) ([]dto.BlockedDateResponse, error)
	DeleteBlockedDate(ctx context.Context, id string, caller Caller) error
	// ImportBlockedDates 从节假日日历导入封锁日期，已存在的日期跳过
	ImportBlockedDates(ctx context.Context, scope model.OwnerScope, calendar io.Reader, caller Caller) ([]dto.BlockedDateResponse, error)
}

type availabilityService struct {
	repo      *repository.Repository
	ownership OwnershipService
	settings  OwnerSettingService
	logger    *zap.Logger
}

// NewAvailabilityService 创建 AvailabilityService 实例
func NewAvailabilityService(repo *repository.Repository, ownership OwnershipService, settings OwnerSettingService, logger *zap.Logger) AvailabilityService {
	return &availabilityService{repo: repo, ownership: ownership, settings: settings, logger: logger}
}

// ────────────────────── 模板读取 ──────────────────────

func (s *availabilityService) ActiveWindows(ctx context.Context, scope model.OwnerScope, dayOfWeek *int, allStaff bool) ([]model.AvailabilityWindow, error) {
	windows, err := s.repo.Availability.ListWindows(ctx, scope, repository.WindowFilter{DayOfWeek: dayOfWeek, AllStaff: allStaff})
	if err != nil {
		s.logger.Error("查询可预约窗口失败", zap.String("scope", scope.String()), zap.Error(err))
		return nil, err
	}
	return windows, nil
}

// BlockedDates 以 UTC 零点日期为键
func (s *availabilityService) BlockedDates(ctx context.Context, owner model.OwnerScope, from, to time.Time) (map[time.Time]bool, error) {
	rows, err := s.repo.Availability.ListBlockedDates(ctx, owner.Owner(), from, to)
	if err != nil {
		s.logger.Error("查询封锁日期失败", zap.String("owner", owner.String()), zap.Error(err))
		return nil, err
	}
	blocked := make(map[time.Time]bool, len(rows))
	for _, b := range rows {
		blocked[civil.DateOf(b.BlockedOn)] = true
	}
	return blocked, nil
}

// ────────────────────── 窗口管理 ──────────────────────

func (s *availabilityService) CreateWindow(ctx context.Context, req *dto.CreateWindowRequest, caller Caller) (*dto.WindowResponse, error) {
	scope := scopeFrom(req.ScopeRequest)
	if err := s.ownership.AuthorizeOwner(ctx, caller, scope); err != nil {
		return nil, err
	}
	if req.DayOfWeek < 0 || req.DayOfWeek > 6 {
		return nil, ErrInvalidWindow.WithDetail("day_of_week 必须在 0-6 之间")
	}
	start, err := civil.ParseClock(req.StartTime)
	if err != nil {
		return nil, ErrInvalidInput.WithDetail("%v", err)
	}
	end, err := civil.ParseClock(req.EndTime)
	if err != nil {
		return nil, ErrInvalidInput.WithDetail("%v", err)
	}
	if start >= end {
		return nil, ErrInvalidWindow.WithDetail("%s-%s", start, end)
	}

	w := &model.AvailabilityWindow{
		OwnerType: scope.OwnerType,
		OwnerID:   scope.OwnerID,
		StaffID:   scope.StaffRef(),
		DayOfWeek: req.DayOfWeek,
		StartTime: start.String(),
		EndTime:   end.String(),
		IsActive:  true,
	}
	w.CreatedBy = &caller.UserID
	w.UpdatedBy = &caller.UserID

	if err := s.repo.Availability.CreateWindow(ctx, w); err != nil {
		s.logger.Error("创建窗口失败", zap.String("scope", scope.String()), zap.Error(err))
		return nil, err
	}
	return toWindowResponse(w), nil
}

func (s *availabilityService) ListWindows(ctx context.Context, scope model.OwnerScope, caller Caller) ([]dto.WindowResponse, error) {
	if err := s.ownership.AuthorizeOwner(ctx, caller, scope); err != nil {
		return nil, err
	}
	// 普通教练只看自己的窗口，管理员不指定教练时看全部
	windows, err := s.ActiveWindows(ctx, scope, nil, scope.StaffID == "")
	if err != nil {
		return nil, err
	}
	result := make([]dto.WindowResponse, 0, len(windows))
	for i := range windows {
		result = append(result, *toWindowResponse(&windows[i]))
	}
	return result, nil
}

func (s *availabilityService) DeleteWindow(ctx context.Context, id string, caller Caller) error {
	w, err := s.repo.Availability.GetWindow(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWindowNotFound
		}
		s.logger.Error("查询窗口失败", zap.String("id", id), zap.Error(err))
		return err
	}
	scope := model.OwnerScope{OwnerType: w.OwnerType, OwnerID: w.OwnerID, StaffID: w.StaffKey()}
	if err := s.ownership.AuthorizeOwner(ctx, caller, scope); err != nil {
		return err
	}
	if err := s.repo.Availability.DeleteWindow(ctx, id, caller.UserID); err != nil {
		s.logger.Error("删除窗口失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── 封锁日期 ──────────────────────

func (s *availabilityService) CreateBlockedDate(ctx context.Context, req *dto.CreateBlockedDateRequest, caller Caller) (*dto.BlockedDateResponse, error) {
	owner := scopeFrom(req.ScopeRequest).Owner()
	if err := s.ownership.AuthorizeOwner(ctx, caller, owner); err != nil {
		return nil, err
	}
	date, err := civil.ParseDate(req.Date)
	if err != nil {
		return nil, ErrInvalidInput.WithDetail("%v", err)
	}
	existing, err := s.BlockedDates(ctx, owner, date, date)
	if err != nil {
		return nil, err
	}
	if existing[date] {
		return nil, ErrBlockedDateExists.WithDetail("%s", req.Date)
	}

	b := &model.BlockedDate{
		OwnerType: owner.OwnerType,
		OwnerID:   owner.OwnerID,
		BlockedOn: date,
		Reason:    req.Reason,
	}
	b.CreatedBy = &caller.UserID
	b.UpdatedBy = &caller.UserID

	if err := s.repo.Availability.CreateBlockedDate(ctx, b); err != nil {
		if pkgerrors.IsUniqueViolation(err) {
			return nil, ErrBlockedDateExists.WithDetail("%s", req.Date)
		}
		s.logger.Error("创建封锁日期失败", zap.String("owner", owner.String()), zap.Error(err))
		return nil, err
	}
	return toBlockedDateResponse(b), nil
}

func (s *availabilityService) ListBlockedDates(ctx context.Context, scope model.OwnerScope, from, to string, caller Caller) ([]dto.BlockedDateResponse, error) {
	owner := scope.Owner()
	if err := s.ownership.AuthorizeOwner(ctx, caller, owner); err != nil {
		return nil, err
	}
	fromDate, err := civil.ParseDate(from)
	if err != nil {
		return nil, ErrInvalidInput.WithDetail("%v", err)
	}
	toDate, err := civil.ParseDate(to)
	if err != nil {
		return nil, ErrInvalidInput.WithDetail("%v", err)
	}

	rows, err := s.repo.Availability.ListBlockedDates(ctx, owner, fromDate, toDate)
	if err != nil {
		s.logger.Error("查询封锁日期失败", zap.String("owner", owner.String()), zap.Error(err))
		return nil, err
	}
	result := make([]dto.BlockedDateResponse, 0, len(rows))
	for i := range rows {
		result = append(result, *toBlockedDateResponse(&rows[i]))
	}
	return result, nil
}

func (s *availabilityService) DeleteBlockedDate(ctx context.Context, id string, caller Caller) error {
	b, err := s.repo.Availability.GetBlockedDate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBlockedDateMissing
		}
		s.logger.Error("查询封锁日期失败", zap.String("id", id), zap.Error(err))
		return err
	}
	owner := model.OwnerScope{OwnerType: b.OwnerType, OwnerID: b.OwnerID}
	if err := s.ownership.AuthorizeOwner(ctx, caller, owner); err != nil {
		return err
	}
	if err := s.repo.Availability.DeleteBlockedDate(ctx, id, caller.UserID); err != nil {
		s.logger.Error("删除封锁日期失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *availabilityService) ImportBlockedDates(ctx context.Context, scope model.OwnerScope, calendar io.Reader, caller Caller) ([]dto.BlockedDateResponse, error) {
	owner := scope.Owner()
	if err := s.ownership.AuthorizeOwner(ctx, caller, owner); err != nil {
		return nil, err
	}
	policy, err := s.settings.Policy(ctx, owner)
	if err != nil {
		return nil, err
	}
	dates, err := parseBlockedDates(calendar, policy.Location)
	if err != nil {
		return nil, ErrInvalidInput.WithDetail("%v", err)
	}
	if len(dates) == 0 {
		return []dto.BlockedDateResponse{}, nil
	}

	existing, err := s.BlockedDates(ctx, owner, dates[0].Date, dates[len(dates)-1].Date)
	if err != nil {
		return nil, err
	}

	created := make([]dto.BlockedDateResponse, 0, len(dates))
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		created = created[:0]
		for _, d := range dates {
			if existing[d.Date] {
				continue
			}
			b := &model.BlockedDate{
				OwnerType: owner.OwnerType,
				OwnerID:   owner.OwnerID,
				BlockedOn: d.Date,
				Reason:    d.Reason,
			}
			b.CreatedBy = &caller.UserID
			b.UpdatedBy = &caller.UserID
			if err := tx.Availability.CreateBlockedDate(ctx, b); err != nil {
				return err
			}
			created = append(created, *toBlockedDateResponse(b))
		}
		return nil
	})
	if err != nil {
		s.logger.Error("导入封锁日期失败", zap.String("owner", owner.String()), zap.Error(err))
		return nil, err
	}
	return created, nil
}

// ── 响应转换 ──

func toWindowResponse(w *model.AvailabilityWindow) *dto.WindowResponse {
	return &dto.WindowResponse{
		ID:        w.WindowID,
		StaffID:   w.StaffKey(),
		DayOfWeek: w.DayOfWeek,
		StartTime: civil.NormalizeClock(w.StartTime),
		EndTime:   civil.NormalizeClock(w.EndTime),
		IsActive:  w.IsActive,
	}
}

func toBlockedDateResponse(b *model.BlockedDate) *dto.BlockedDateResponse {
	return &dto.BlockedDateResponse{
		ID:     b.BlockedDateID,
		Date:   civil.FormatDate(b.BlockedOn),
		Reason: b.Reason,
	}
}
