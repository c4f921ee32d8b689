package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/dto"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/service"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/response"
)

// BookingHandler 预约模块 HTTP 处理器
type BookingHandler struct {
	bookingSvc service.BookingService
}

// NewBookingHandler 创建 BookingHandler
func NewBookingHandler(bookingSvc service.BookingService) *BookingHandler {
	return &BookingHandler{bookingSvc: bookingSvc}
}

// Book 预约时段
// POST /api/v1/bookings
func (h *BookingHandler) Book(c *gin.Context) {
	var req dto.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	learnerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	booking, err := h.bookingSvc.Book(c.Request.Context(), &req, learnerID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Created(c, booking)
}

// ListMine 我的未开始课程
// GET /api/v1/bookings/me
func (h *BookingHandler) ListMine(c *gin.Context) {
	learnerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	items, err := h.bookingSvc.ListMine(c.Request.Context(), learnerID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, dto.NewListResponse(items))
}

// Cancel 学员取消自己的预约，重复取消返回当前状态
// DELETE /api/v1/bookings/:id
func (h *BookingHandler) Cancel(c *gin.Context) {
	learnerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	booking, err := h.bookingSvc.Cancel(c.Request.Context(), c.Param("id"), learnerID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, booking)
}

// OwnerCancel 场馆取消课程
// POST /api/v1/classes/:id/cancel
func (h *BookingHandler) OwnerCancel(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	booking, err := h.bookingSvc.OwnerCancel(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, booking)
}

// MarkAttendance 登记出勤
// PUT /api/v1/classes/:id/attendance
func (h *BookingHandler) MarkAttendance(c *gin.Context) {
	var req dto.AttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	booking, err := h.bookingSvc.MarkAttendance(c.Request.Context(), c.Param("id"), &req, caller)
	if err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, booking)
}
