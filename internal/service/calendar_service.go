package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/mxrcabrera/pilates-booking-sub001/config"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/model"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/repository"
)

// CalendarSyncQueue 日历同步任务队列，由外部 worker 消费
const CalendarSyncQueue = "calendar:sync"

// Enqueuer 任务入队（pkg/redis.Client 实现）
type Enqueuer interface {
	Enqueue(ctx context.Context, queue string, payload []byte) error
}

// CalendarSync 预约变更后的日历同步，失败只记录日志
type CalendarSync interface {
	Created(o *model.ClassOccurrence)
	Cancelled(o *model.ClassOccurrence)
}

// CalendarService 学员课表订阅与日历同步
type CalendarService interface {
	CalendarSync
	// Feed 学员尚未开始的课程，text/calendar 格式
	Feed(ctx context.Context, learnerID string) ([]byte, error)
	Wait()
}

// SyncJob 同步队列中的任务
type SyncJob struct {
	Action    string `json:"action"` // create | cancel
	ClassID   string `json:"class_id"`
	LearnerID string `json:"learner_id"`
	ICS       string `json:"ics"`
}

type calendarService struct {
	repo     *repository.Repository
	cfg      *config.BookingConfig
	settings OwnerSettingService
	queue    Enqueuer
	now      func() time.Time
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewCalendarService queue 为空时不推送同步任务
func NewCalendarService(
	repo *repository.Repository,
	cfg *config.BookingConfig,
	settings OwnerSettingService,
	queue Enqueuer,
	now func() time.Time,
	logger *zap.Logger,
) CalendarService {
	return &calendarService{repo: repo, cfg: cfg, settings: settings, queue: queue, now: now, logger: logger}
}

func (s *calendarService) duration() time.Duration {
	return time.Duration(s.cfg.SlotMinutes) * time.Minute
}

func (s *calendarService) Feed(ctx context.Context, learnerID string) ([]byte, error) {
	now := s.now()
	items, err := upcomingFor(ctx, s.repo, s.settings, now, learnerID, s.logger)
	if err != nil {
		return nil, err
	}

	events := make([]classEvent, 0, len(items))
	for i := range items {
		policy, err := s.settings.Policy(ctx, items[i].Scope())
		if err != nil {
			return nil, err
		}
		events = append(events, classEvent{occ: &items[i], loc: policy.Location, duration: s.duration(), now: now})
	}
	body, err := encodeClasses(ics.MethodPublish, events)
	if err != nil {
		s.logger.Error("生成课表日历失败", zap.String("learner_id", learnerID), zap.Error(err))
		return nil, err
	}
	return []byte(body), nil
}

func (s *calendarService) Created(o *model.ClassOccurrence) {
	s.push("create", ics.MethodRequest, o)
}

func (s *calendarService) Cancelled(o *model.ClassOccurrence) {
	s.push("cancel", ics.MethodCancel, o)
}

func (s *calendarService) Wait() { s.wg.Wait() }

func (s *calendarService) push(action string, method ics.Method, o *model.ClassOccurrence) {
	if s.queue == nil || o.LearnerID == nil {
		return
	}
	snapshot := *o

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		policy, err := s.settings.Policy(ctx, snapshot.Scope())
		if err != nil {
			s.logger.Warn("日历同步读取场馆参数失败", zap.String("class_id", snapshot.ClassID), zap.Error(err))
			return
		}
		body, err := encodeClasses(method, []classEvent{{occ: &snapshot, loc: policy.Location, duration: s.duration(), now: s.now()}})
		if err != nil {
			s.logger.Warn("生成同步日历失败", zap.String("class_id", snapshot.ClassID), zap.Error(err))
			return
		}
		payload, _ := json.Marshal(SyncJob{
			Action:    action,
			ClassID:   snapshot.ClassID,
			LearnerID: *snapshot.LearnerID,
			ICS:       body,
		})
		if err := s.queue.Enqueue(ctx, CalendarSyncQueue, payload); err != nil {
			s.logger.Warn("日历同步入队失败", zap.String("class_id", snapshot.ClassID), zap.Error(err))
		}
	}()
}
