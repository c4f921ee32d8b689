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

// ── 场馆参数业务错误 ──

var (
	ErrInvalidTimezone = pkgerrors.New(pkgerrors.KindInvalidInput, "时区无效")
)

// OwnerPolicy 场馆生效的预约参数
type OwnerPolicy struct {
	Location     *time.Location
	Capacity     int
	Anticipation time.Duration
}

// OwnerSettingService 场馆预约参数
type OwnerSettingService interface {
	// Policy 读取生效参数，未配置时回退到全局默认值
	Policy(ctx context.Context, owner model.OwnerScope) (OwnerPolicy, error)
	Get(ctx context.Context, scope model.OwnerScope, caller Caller) (*dto.OwnerSettingResponse, error)
	Update(ctx context.Context, scope model.OwnerScope, req *dto.UpdateOwnerSettingRequest, caller Caller) (*dto.OwnerSettingResponse, error)
}

type ownerSettingService struct {
	repo      *repository.Repository
	cfg       *config.BookingConfig
	ownership OwnershipService
	logger    *zap.Logger
}

// NewOwnerSettingService 创建 OwnerSettingService 实例
func NewOwnerSettingService(repo *repository.Repository, cfg *config.BookingConfig, ownership OwnershipService, logger *zap.Logger) OwnerSettingService {
	return &ownerSettingService{repo: repo, cfg: cfg, ownership: ownership, logger: logger}
}

func (s *ownerSettingService) defaults(owner model.OwnerScope) *model.OwnerSetting {
	return &model.OwnerSetting{
		OwnerType:           owner.OwnerType,
		OwnerID:             owner.OwnerID,
		Timezone:            s.cfg.DefaultTimezone,
		SlotCapacity:        s.cfg.DefaultCapacity,
		AnticipationMinutes: s.cfg.DefaultAnticipationMinutes,
	}
}

// load 读取配置行，不存在时返回默认值且 Version=0
func (s *ownerSettingService) load(ctx context.Context, owner model.OwnerScope) (*model.OwnerSetting, error) {
	setting, err := s.repo.OwnerSetting.Get(ctx, owner.OwnerType, owner.OwnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.defaults(owner), nil
		}
		s.logger.Error("查询场馆参数失败", zap.String("owner", owner.String()), zap.Error(err))
		return nil, err
	}
	return setting, nil
}

func (s *ownerSettingService) Policy(ctx context.Context, owner model.OwnerScope) (OwnerPolicy, error) {
	setting, err := s.load(ctx, owner.Owner())
	if err != nil {
		return OwnerPolicy{}, err
	}
	fallback := civil.LoadLocation(s.cfg.DefaultTimezone, time.UTC)
	capacity := setting.SlotCapacity
	if capacity <= 0 {
		capacity = s.cfg.DefaultCapacity
	}
	return OwnerPolicy{
		Location:     civil.LoadLocation(setting.Timezone, fallback),
		Capacity:     capacity,
		Anticipation: time.Duration(setting.AnticipationMinutes) * time.Minute,
	}, nil
}

func (s *ownerSettingService) Get(ctx context.Context, scope model.OwnerScope, caller Caller) (*dto.OwnerSettingResponse, error) {
	if err := s.ownership.AuthorizeOwner(ctx, caller, scope); err != nil {
		return nil, err
	}
	setting, err := s.load(ctx, scope.Owner())
	if err != nil {
		return nil, err
	}
	return toOwnerSettingResponse(setting), nil
}

func (s *ownerSettingService) Update(ctx context.Context, scope model.OwnerScope, req *dto.UpdateOwnerSettingRequest, caller Caller) (*dto.OwnerSettingResponse, error) {
	owner := scope.Owner()
	if err := s.ownership.AuthorizeOwner(ctx, caller, owner); err != nil {
		return nil, err
	}
	setting, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	if setting.Version != req.Version {
		return nil, pkgerrors.ErrOptimisticLock
	}

	if req.Timezone != nil {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			return nil, ErrInvalidTimezone.WithDetail("%s", *req.Timezone)
		}
		setting.Timezone = *req.Timezone
	}
	if req.SlotCapacity != nil {
		setting.SlotCapacity = *req.SlotCapacity
	}
	if req.AnticipationMinutes != nil {
		setting.AnticipationMinutes = *req.AnticipationMinutes
	}
	setting.UpdatedBy = &caller.UserID

	if setting.Version == 0 {
		setting.CreatedBy = &caller.UserID
		err = s.repo.OwnerSetting.Create(ctx, setting)
	} else {
		err = s.repo.OwnerSetting.Update(ctx, setting)
	}
	if err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("保存场馆参数失败", zap.String("owner", owner.String()), zap.Error(err))
		}
		return nil, err
	}
	return toOwnerSettingResponse(setting), nil
}

func toOwnerSettingResponse(s *model.OwnerSetting) *dto.OwnerSettingResponse {
	return &dto.OwnerSettingResponse{
		OwnerType:           s.OwnerType,
		OwnerID:             s.OwnerID,
		Timezone:            s.Timezone,
		SlotCapacity:        s.SlotCapacity,
		AnticipationMinutes: s.AnticipationMinutes,
		Version:             s.Version,
	}
}
