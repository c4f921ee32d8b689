package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/dto"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/service"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/response"
)

// SettingHandler 场馆预约参数 HTTP 处理器
type SettingHandler struct {
	settingSvc service.OwnerSettingService
}

// NewSettingHandler 创建 SettingHandler
func NewSettingHandler(settingSvc service.OwnerSettingService) *SettingHandler {
	return &SettingHandler{settingSvc: settingSvc}
}

// Get 读取场馆参数，未配置时返回默认值（version=0）
// GET /api/v1/settings?owner_type=studio&owner_id=xxx
func (h *SettingHandler) Get(c *gin.Context) {
	scope, ok := bindScopeQuery(c)
	if !ok {
		return
	}
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	setting, err := h.settingSvc.Get(c.Request.Context(), scope, caller)
	if err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, setting)
}

// Update 更新场馆参数，version 不匹配时返回 409
// PUT /api/v1/settings?owner_type=studio&owner_id=xxx
func (h *SettingHandler) Update(c *gin.Context) {
	scope, ok := bindScopeQuery(c)
	if !ok {
		return
	}
	var req dto.UpdateOwnerSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	setting, err := h.settingSvc.Update(c.Request.Context(), scope, &req, caller)
	if err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, setting)
}
