package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/dto"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/model"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/service"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	return mustGetString(c, "user_id")
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	return mustGetString(c, "role")
}

func mustGetString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetCaller 提取调用方身份，用于场馆管理接口
func MustGetCaller(c *gin.Context) (service.Caller, bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return service.Caller{}, false
	}
	role, ok := MustGetRole(c)
	if !ok {
		return service.Caller{}, false
	}
	return service.Caller{UserID: userID, Role: role}, true
}

// tokenInfo Token 的 jti 与过期时间，由 JWTAuth 注入
func tokenInfo(c *gin.Context) (string, time.Time) {
	jti := c.GetString("token_jti")
	exp, _ := c.Get("token_exp")
	t, _ := exp.(time.Time)
	return jti, t
}

// scopeOf 请求参数转为场馆范围
func scopeOf(req dto.ScopeRequest) model.OwnerScope {
	return model.OwnerScope{OwnerType: req.OwnerType, OwnerID: req.OwnerID, StaffID: req.StaffID}
}

// bindScopeQuery 绑定查询串中的 owner_type / owner_id / staff_id
func bindScopeQuery(c *gin.Context) (model.OwnerScope, bool) {
	var req dto.ScopeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return model.OwnerScope{}, false
	}
	return scopeOf(req), true
}
