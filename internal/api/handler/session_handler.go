package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/service"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/response"
)

// TokenRevoker Token 黑名单写入方
type TokenRevoker interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
}

// SessionHandler 当前调用方信息与注销
// Token 由身份服务签发，本服务只负责校验与吊销
type SessionHandler struct {
	ownershipSvc service.OwnershipService
	revoker      TokenRevoker
}

// NewSessionHandler 创建 SessionHandler
func NewSessionHandler(ownershipSvc service.OwnershipService, revoker TokenRevoker) *SessionHandler {
	return &SessionHandler{ownershipSvc: ownershipSvc, revoker: revoker}
}

// Me 当前调用方身份
// GET /api/v1/me
func (h *SessionHandler) Me(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}
	response.OK(c, gin.H{"user_id": caller.UserID, "role": caller.Role})
}

// Logout 吊销当前 Access Token
// POST /api/v1/auth/logout
func (h *SessionHandler) Logout(c *gin.Context) {
	if _, ok := MustGetUserID(c); !ok {
		return
	}
	jti, exp := tokenInfo(c)
	if h.revoker != nil && jti != "" {
		if err := h.revoker.BlacklistToken(c.Request.Context(), jti, time.Until(exp)); err != nil {
			_ = c.Error(err)
			response.ServiceUnavailable(c, "注销失败，请稍后重试")
			return
		}
	}
	response.OK(c, nil)
}
