package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/dto"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/service"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/response"
)

// SlotHandler 学员可预约范围与时段查询
type SlotHandler struct {
	slotSvc      service.SlotService
	ownershipSvc service.OwnershipService
}

// NewSlotHandler 创建 SlotHandler
func NewSlotHandler(slotSvc service.SlotService, ownershipSvc service.OwnershipService) *SlotHandler {
	return &SlotHandler{slotSvc: slotSvc, ownershipSvc: ownershipSvc}
}

// ListScopes 学员可预约的场馆范围
// GET /api/v1/scopes
func (h *SlotHandler) ListScopes(c *gin.Context) {
	learnerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	scopes, err := h.ownershipSvc.ListScopes(c.Request.Context(), learnerID)
	if err != nil {
		writeError(c, err)
		return
	}

	items := make([]dto.ScopeResponse, 0, len(scopes))
	for _, s := range scopes {
		items = append(items, dto.ScopeResponse{OwnerType: s.OwnerType, OwnerID: s.OwnerID, StaffID: s.StaffID})
	}
	response.OK(c, dto.NewListResponse(items))
}

// ListSlots 可预约时段
// GET /api/v1/slots?owner_type=studio&owner_id=xxx[&staff_id=xxx&all_staff=true&weeks=4]
func (h *SlotHandler) ListSlots(c *gin.Context) {
	var req dto.SlotListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}

	learnerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	slots, err := h.slotSvc.List(c.Request.Context(), &req, learnerID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, dto.NewListResponse(slots))
}
