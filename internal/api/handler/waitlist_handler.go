package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/dto"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/service"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/response"
)

// WaitlistHandler 候补模块 HTTP 处理器
type WaitlistHandler struct {
	waitlistSvc service.WaitlistService
}

// NewWaitlistHandler 创建 WaitlistHandler
func NewWaitlistHandler(waitlistSvc service.WaitlistService) *WaitlistHandler {
	return &WaitlistHandler{waitlistSvc: waitlistSvc}
}

// Join 加入已满时段的候补队列
// POST /api/v1/waitlist
func (h *WaitlistHandler) Join(c *gin.Context) {
	var req dto.JoinWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	learnerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	entry, err := h.waitlistSvc.Join(c.Request.Context(), &req, learnerID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Created(c, entry)
}

// Leave 退出候补
// DELETE /api/v1/waitlist/:id
func (h *WaitlistHandler) Leave(c *gin.Context) {
	learnerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	entry, err := h.waitlistSvc.Leave(c.Request.Context(), c.Param("id"), learnerID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, entry)
}

// ListMine 我的候补
// GET /api/v1/waitlist/me
func (h *WaitlistHandler) ListMine(c *gin.Context) {
	learnerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	items, err := h.waitlistSvc.ListMine(c.Request.Context(), learnerID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, dto.NewListResponse(items))
}
