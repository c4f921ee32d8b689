package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/dto"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/service"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/response"
)

// AvailabilityHandler 每周窗口与封锁日期 HTTP 处理器
type AvailabilityHandler struct {
	availabilitySvc service.AvailabilityService
}

// NewAvailabilityHandler 创建 AvailabilityHandler
func NewAvailabilityHandler(availabilitySvc service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availabilitySvc: availabilitySvc}
}

// ── 每周窗口 ──

// CreateWindow 新增每周窗口
// POST /api/v1/windows
func (h *AvailabilityHandler) CreateWindow(c *gin.Context) {
	var req dto.CreateWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	window, err := h.availabilitySvc.CreateWindow(c.Request.Context(), &req, caller)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Created(c, window)
}

// ListWindows 窗口列表
// GET /api/v1/windows?owner_type=studio&owner_id=xxx[&staff_id=xxx]
func (h *AvailabilityHandler) ListWindows(c *gin.Context) {
	scope, ok := bindScopeQuery(c)
	if !ok {
		return
	}
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	windows, err := h.availabilitySvc.ListWindows(c.Request.Context(), scope, caller)
	if err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, dto.NewListResponse(windows))
}

// DeleteWindow 删除窗口（软删除）
// DELETE /api/v1/windows/:id
func (h *AvailabilityHandler) DeleteWindow(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	if err := h.availabilitySvc.DeleteWindow(c.Request.Context(), c.Param("id"), caller); err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, nil)
}

// ── 封锁日期 ──

// CreateBlockedDate 新增封锁日期
// POST /api/v1/blocked-dates
func (h *AvailabilityHandler) CreateBlockedDate(c *gin.Context) {
	var req dto.CreateBlockedDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	blocked, err := h.availabilitySvc.CreateBlockedDate(c.Request.Context(), &req, caller)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Created(c, blocked)
}

// ListBlockedDates 区间内的封锁日期
// GET /api/v1/blocked-dates?owner_type=studio&owner_id=xxx&from=2025-12-01&to=2025-12-31
func (h *AvailabilityHandler) ListBlockedDates(c *gin.Context) {
	scope, ok := bindScopeQuery(c)
	if !ok {
		return
	}
	var rng dto.DateRangeRequest
	if err := c.ShouldBindQuery(&rng); err != nil {
		badRequest(c, err)
		return
	}
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	items, err := h.availabilitySvc.ListBlockedDates(c.Request.Context(), scope, rng.From, rng.To, caller)
	if err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, dto.NewListResponse(items))
}

// DeleteBlockedDate 删除封锁日期
// DELETE /api/v1/blocked-dates/:id
func (h *AvailabilityHandler) DeleteBlockedDate(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	if err := h.availabilitySvc.DeleteBlockedDate(c.Request.Context(), c.Param("id"), caller); err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, nil)
}

// ImportBlockedDates 上传节假日日历（.ics）批量封锁
// POST /api/v1/blocked-dates/import  multipart: owner_type, owner_id, file
func (h *AvailabilityHandler) ImportBlockedDates(c *gin.Context) {
	var req dto.ScopeRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, err)
		return
	}
	defer file.Close()

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	created, err := h.availabilitySvc.ImportBlockedDates(c.Request.Context(), scopeOf(req), file, caller)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Created(c, dto.NewListResponse(created))
}
