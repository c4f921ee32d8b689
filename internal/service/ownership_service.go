package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/dto"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/model"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/repository"
	pkgerrors "github.com/mxrcabrera/pilates-booking-sub001/pkg/errors"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/jwt"
)

// ── 场馆归属业务错误 ──

var (
	ErrInvalidScope = pkgerrors.New(pkgerrors.KindInvalidInput, "场馆范围无效")
	ErrUnauthorized = pkgerrors.New(pkgerrors.KindUnauthorized, "无权访问该场馆")
)

// OwnershipService 学员与场馆的归属判定
//
// 其他模块只接收已解析的 model.OwnerScope，不自行推导归属
type OwnershipService interface {
	// ListScopes 学员可预约的全部场馆范围；工作室关联会展开到每位在职教练
	ListScopes(ctx context.Context, learnerID string) ([]model.OwnerScope, error)
	// ResolveLearnerScope 校验学员请求的范围，不相关的范围返回 Unauthorized，不会改写为其他范围
	ResolveLearnerScope(ctx context.Context, learnerID string, requested model.OwnerScope) (model.OwnerScope, error)
	// AuthorizeOwner 校验调用方能否管理该范围
	AuthorizeOwner(ctx context.Context, caller Caller, scope model.OwnerScope) error
}

type ownershipService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewOwnershipService 创建 OwnershipService 实例
func NewOwnershipService(repo *repository.Repository, logger *zap.Logger) OwnershipService {
	return &ownershipService{repo: repo, logger: logger}
}

func (s *ownershipService) ListScopes(ctx context.Context, learnerID string) ([]model.OwnerScope, error) {
	links, err := s.repo.Ownership.ListLearnerLinks(ctx, learnerID)
	if err != nil {
		s.logger.Error("查询学员关联失败", zap.String("learner_id", learnerID), zap.Error(err))
		return nil, err
	}

	scopes := make([]model.OwnerScope, 0, len(links))
	for _, link := range links {
		scope := link.Scope()
		scopes = append(scopes, scope)
		if scope.OwnerType != model.OwnerStudio {
			continue
		}
		staff, err := s.repo.Ownership.ListStudioStaff(ctx, scope.OwnerID)
		if err != nil {
			s.logger.Error("查询工作室成员失败", zap.String("studio_id", scope.OwnerID), zap.Error(err))
			return nil, err
		}
		for _, m := range staff {
			scopes = append(scopes, scope.WithStaff(m.InstructorID))
		}
	}
	return scopes, nil
}

func (s *ownershipService) ResolveLearnerScope(ctx context.Context, learnerID string, requested model.OwnerScope) (model.OwnerScope, error) {
	if !requested.Valid() {
		return model.OwnerScope{}, ErrInvalidScope
	}

	links, err := s.repo.Ownership.ListLearnerLinks(ctx, learnerID)
	if err != nil {
		s.logger.Error("查询学员关联失败", zap.String("learner_id", learnerID), zap.Error(err))
		return model.OwnerScope{}, err
	}
	linked := false
	for _, link := range links {
		if link.Scope() == requested.Owner() {
			linked = true
			break
		}
	}
	if !linked {
		return model.OwnerScope{}, ErrUnauthorized.WithDetail("%s", requested.Owner())
	}

	if requested.StaffID != "" {
		if err := s.requireStaff(ctx, requested.OwnerID, requested.StaffID); err != nil {
			return model.OwnerScope{}, err
		}
	}
	return requested, nil
}

func (s *ownershipService) AuthorizeOwner(ctx context.Context, caller Caller, scope model.OwnerScope) error {
	if !scope.Valid() {
		return ErrInvalidScope
	}
	if caller.UserID == "" || caller.Role == jwt.RoleLearner {
		return ErrUnauthorized
	}

	switch scope.OwnerType {
	case model.OwnerInstructor:
		if caller.UserID == scope.OwnerID {
			return nil
		}
		return ErrUnauthorized
	default:
		staff, err := s.repo.Ownership.GetStaff(ctx, scope.OwnerID, caller.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnauthorized
			}
			s.logger.Error("查询工作室成员失败", zap.String("studio_id", scope.OwnerID), zap.Error(err))
			return err
		}
		// 普通教练只能管理自己名下的窗口与课程
		if staff.IsAdmin || scope.StaffID == caller.UserID {
			return nil
		}
		return ErrUnauthorized
	}
}

func (s *ownershipService) requireStaff(ctx context.Context, studioID, instructorID string) error {
	if _, err := s.repo.Ownership.GetStaff(ctx, studioID, instructorID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnauthorized.WithDetail("教练 %s 不属于该工作室", instructorID)
		}
		s.logger.Error("查询工作室成员失败", zap.String("studio_id", studioID), zap.Error(err))
		return err
	}
	return nil
}

// scopeFrom 请求参数转为场馆范围
func scopeFrom(req dto.ScopeRequest) model.OwnerScope {
	return model.OwnerScope{OwnerType: req.OwnerType, OwnerID: req.OwnerID, StaffID: req.StaffID}
}
