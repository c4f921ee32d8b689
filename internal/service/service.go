package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/mxrcabrera/pilates-booking-sub001/config"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/repository"
)

// Caller 已通过认证的调用方
type Caller struct {
	UserID string
	Role   string
}

// Service 所有 Service 的聚合入口
type Service struct {
	Ownership    OwnershipService
	OwnerSetting OwnerSettingService
	Availability AvailabilityService
	Slot         SlotService
	Booking      BookingService
	Series       SeriesService
	Waitlist     WaitlistService
	Calendar     CalendarService
	Export       ExportService

	notifier Notifier
}

// Options 外部协作方，均可为空
type Options struct {
	Publisher Publisher
	Queue     Enqueuer
	Now       func() time.Time
}

// NewService 创建 Service 聚合
func NewService(cfg *config.Config, repo *repository.Repository, opts Options, logger *zap.Logger) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	bc := &cfg.Booking

	ownership := NewOwnershipService(repo, logger)
	settings := NewOwnerSettingService(repo, bc, ownership, logger)
	availability := NewAvailabilityService(repo, ownership, settings, logger)
	notifier := NewNotifier(opts.Publisher, time.Duration(bc.NotificationTimeoutSeconds)*time.Second, logger)
	calendar := NewCalendarService(repo, bc, settings, opts.Queue, now, logger)

	return &Service{
		Ownership:    ownership,
		OwnerSetting: settings,
		Availability: availability,
		Slot:         NewSlotService(repo, bc, ownership, settings, availability, now, logger),
		Booking:      NewBookingService(repo, bc, ownership, settings, availability, notifier, calendar, now, logger),
		Series:       NewSeriesService(repo, bc, ownership, settings, availability, calendar, now, logger),
		Waitlist:     NewWaitlistService(repo, bc, ownership, settings, availability, now, logger),
		Calendar:     calendar,
		Export:       NewExportService(repo, ownership, logger),
		notifier:     notifier,
	}
}

// Drain 等待异步通知与日历同步完成，用于优雅退出
func (s *Service) Drain() {
	s.notifier.Wait()
	s.Calendar.Wait()
}

// ── 响应转换 ──

const timeFormat = time.RFC3339
