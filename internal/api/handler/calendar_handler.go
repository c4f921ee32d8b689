package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/service"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/response"
)

const calendarContentType = "text/calendar; charset=utf-8"

// CalendarHandler 学员课表订阅
type CalendarHandler struct {
	calendarSvc service.CalendarService
}

// NewCalendarHandler 创建 CalendarHandler
func NewCalendarHandler(calendarSvc service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendarSvc: calendarSvc}
}

// Feed 导出学员尚未开始的课程
// GET /api/v1/me/calendar.ics
func (h *CalendarHandler) Feed(c *gin.Context) {
	learnerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	body, err := h.calendarSvc.Feed(c.Request.Context(), learnerID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Attachment(c, "classes.ics", calendarContentType, body)
}
