package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mxrcabrera/pilates-booking-sub001/config"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/dto"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/repository"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/civil"
)

// SlotService 面向学员的可预约时段查询
type SlotService interface {
	List(ctx context.Context, req *dto.SlotListRequest, learnerID string) ([]dto.SlotResponse, error)
}

type slotService struct {
	repo         *repository.Repository
	cfg          *config.BookingConfig
	ownership    OwnershipService
	settings     OwnerSettingService
	availability AvailabilityService
	now          func() time.Time
	logger       *zap.Logger
}

// NewSlotService 创建 SlotService 实例
func NewSlotService(
	repo *repository.Repository,
	cfg *config.BookingConfig,
	ownership OwnershipService,
	settings OwnerSettingService,
	availability AvailabilityService,
	now func() time.Time,
	logger *zap.Logger,
) SlotService {
	return &slotService{
		repo:         repo,
		cfg:          cfg,
		ownership:    ownership,
		settings:     settings,
		availability: availability,
		now:          now,
		logger:       logger,
	}
}

func (s *slotService) List(ctx context.Context, req *dto.SlotListRequest, learnerID string) ([]dto.SlotResponse, error) {
	scope, err := s.ownership.ResolveLearnerScope(ctx, learnerID, scopeFrom(req.ScopeRequest))
	if err != nil {
		return nil, err
	}
	// 指定教练时只展开该教练的窗口
	allStaff := req.AllStaff && scope.StaffID == ""

	policy, err := s.settings.Policy(ctx, scope)
	if err != nil {
		return nil, err
	}
	weeks := req.Weeks
	if weeks <= 0 {
		weeks = s.cfg.ProjectionWeeks
	}
	now := s.now()
	from, to := Horizon(now, policy.Location, weeks)

	windows, err := s.availability.ActiveWindows(ctx, scope, nil, allStaff)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return []dto.SlotResponse{}, nil
	}
	blocked, err := s.availability.BlockedDates(ctx, scope, from, to)
	if err != nil {
		return nil, err
	}
	occupancy, err := s.repo.Occurrence.ListOccupancy(ctx, scope.Owner(), from, to)
	if err != nil {
		s.logger.Error("统计时段占用失败", zap.String("scope", scope.String()), zap.Error(err))
		return nil, err
	}
	held, err := s.repo.Occurrence.ListLearnerBetween(ctx, scope.Owner(), learnerID, from, to)
	if err != nil {
		s.logger.Error("查询学员预约失败", zap.String("learner_id", learnerID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.SlotResponse, 0)
	for slot := range Project(Projection{
		Windows:     windows,
		Blocked:     blocked,
		Occupancy:   occupancy,
		Held:        held,
		Capacity:    policy.Capacity,
		Location:    policy.Location,
		Now:         now,
		Weeks:       weeks,
		SlotMinutes: s.cfg.SlotMinutes,
	}) {
		result = append(result, dto.SlotResponse{
			Date:      civil.FormatDate(slot.Date),
			StartTime: slot.StartTime.String(),
			StaffID:   slot.StaffID,
			Occupied:  slot.Occupied,
			Capacity:  slot.Capacity,
			Available: slot.Available(),
			HeldByMe:  slot.HeldByMe,
		})
	}
	return result, nil
}
