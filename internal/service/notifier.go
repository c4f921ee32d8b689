package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/model"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/civil"
)

// 预约事件
const (
	EventBookingCreated   = "booking.created"
	EventBookingCancelled = "booking.cancelled"
	EventSeatFreed        = "waitlist.seat_freed"

	// NotificationChannel 事件发布频道，由通知服务订阅
	NotificationChannel = "classbook:events"
)

// Publisher 消息发布（pkg/redis.Client 实现）
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Notifier 预约事件通知，尽力投递，失败不影响预约结果
type Notifier interface {
	BookingCreated(o *model.ClassOccurrence)
	BookingCancelled(o *model.ClassOccurrence)
	SeatFreed(e *model.WaitlistEntry)
	// Wait 等待已发出的通知完成
	Wait()
}

// Event 发布到频道的事件体
type Event struct {
	Type      string `json:"type"`
	OwnerType string `json:"owner_type"`
	OwnerID   string `json:"owner_id"`
	StaffID   string `json:"staff_id,omitempty"`
	LearnerID string `json:"learner_id,omitempty"`
	ClassID   string `json:"class_id,omitempty"`
	EntryID   string `json:"entry_id,omitempty"`
	Position  int    `json:"position,omitempty"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	SentAt    string `json:"sent_at"`
}

type eventNotifier struct {
	publisher Publisher
	timeout   time.Duration
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewNotifier publisher 为空时只记录日志
func NewNotifier(publisher Publisher, timeout time.Duration, logger *zap.Logger) Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &eventNotifier{publisher: publisher, timeout: timeout, logger: logger}
}

func (n *eventNotifier) BookingCreated(o *model.ClassOccurrence) {
	n.dispatch(occurrenceEvent(EventBookingCreated, o))
}

func (n *eventNotifier) BookingCancelled(o *model.ClassOccurrence) {
	n.dispatch(occurrenceEvent(EventBookingCancelled, o))
}

func (n *eventNotifier) SeatFreed(e *model.WaitlistEntry) {
	n.dispatch(Event{
		Type:      EventSeatFreed,
		OwnerType: e.OwnerType,
		OwnerID:   e.OwnerID,
		StaffID:   e.Scope().StaffID,
		LearnerID: e.LearnerID,
		EntryID:   e.EntryID,
		Position:  e.Position,
		Date:      civil.FormatDate(e.ClassDate),
		StartTime: civil.NormalizeClock(e.StartTime),
	})
}

func (n *eventNotifier) Wait() { n.wg.Wait() }

func (n *eventNotifier) dispatch(evt Event) {
	evt.SentAt = time.Now().UTC().Format(timeFormat)
	if n.publisher == nil {
		n.logger.Info("预约事件（未配置发布通道）",
			zap.String("type", evt.Type),
			zap.String("learner_id", evt.LearnerID),
			zap.String("date", evt.Date),
			zap.String("start_time", evt.StartTime),
		)
		return
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		n.logger.Error("序列化预约事件失败", zap.String("type", evt.Type), zap.Error(err))
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.publisher.Publish(ctx, NotificationChannel, payload); err != nil {
			n.logger.Warn("发布预约事件失败", zap.String("type", evt.Type), zap.Error(err))
		}
	}()
}

func occurrenceEvent(typ string, o *model.ClassOccurrence) Event {
	evt := Event{
		Type:      typ,
		OwnerType: o.OwnerType,
		OwnerID:   o.OwnerID,
		StaffID:   o.Scope().StaffID,
		ClassID:   o.ClassID,
		Date:      civil.FormatDate(o.ClassDate),
		StartTime: civil.NormalizeClock(o.StartTime),
	}
	if o.LearnerID != nil {
		evt.LearnerID = *o.LearnerID
	}
	return evt
}
