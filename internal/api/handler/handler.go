package handler

import "github.com/mxrcabrera/pilates-booking-sub001/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Session      *SessionHandler
	Slot         *SlotHandler
	Booking      *BookingHandler
	Waitlist     *WaitlistHandler
	Series       *SeriesHandler
	Availability *AvailabilityHandler
	Setting      *SettingHandler
	Calendar     *CalendarHandler
	Export       *ExportHandler
}

// NewHandler 创建 Handler 聚合；revoker 为空时注销接口只返回成功，不写黑名单
func NewHandler(svc *service.Service, revoker TokenRevoker) *Handler {
	return &Handler{
		Session:      NewSessionHandler(svc.Ownership, revoker),
		Slot:         NewSlotHandler(svc.Slot, svc.Ownership),
		Booking:      NewBookingHandler(svc.Booking),
		Waitlist:     NewWaitlistHandler(svc.Waitlist),
		Series:       NewSeriesHandler(svc.Series),
		Availability: NewAvailabilityHandler(svc.Availability),
		Setting:      NewSettingHandler(svc.OwnerSetting),
		Calendar:     NewCalendarHandler(svc.Calendar),
		Export:       NewExportHandler(svc.Export),
	}
}
