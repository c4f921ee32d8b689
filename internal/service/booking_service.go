package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mxrcabrera/pilates-booking-sub001/config"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/dto"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/model"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/repository"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/civil"
	pkgerrors "github.com/mxrcabrera/pilates-booking-sub001/pkg/errors"
)

// ── 预约模块业务错误 ──

var (
	ErrInvalidInput         = pkgerrors.New(pkgerrors.KindInvalidInput, "日期或时间无效")
	ErrSlotInPast           = pkgerrors.New(pkgerrors.KindInvalidInput, "时段已过")
	ErrInsufficientLeadTime = pkgerrors.New(pkgerrors.KindInsufficientLeadTime, "距离开课时间不足")
	ErrDateBlocked          = pkgerrors.New(pkgerrors.KindDateBlocked, "该日期不开放预约")
	ErrSlotNotOffered       = pkgerrors.New(pkgerrors.KindSlotNotOffered, "该时段未开放")
	ErrSlotFull             = pkgerrors.New(pkgerrors.KindSlotFull, "该时段已满")
	ErrAlreadyBooked        = pkgerrors.New(pkgerrors.KindAlreadyBooked, "已预约该时段")
	ErrWeeklyQuotaExceeded  = pkgerrors.New(pkgerrors.KindWeeklyQuotaExceeded, "本周预约次数已用完")
	ErrBookingNotFound      = pkgerrors.New(pkgerrors.KindNotFound, "预约不存在")
	ErrPastClass            = pkgerrors.New(pkgerrors.KindPastClass, "课程已开始，无法取消")
	ErrClassNotStarted      = pkgerrors.New(pkgerrors.KindInvalidInput, "课程尚未开始，不能登记出勤")
	ErrClassCancelled       = pkgerrors.New(pkgerrors.KindInvalidInput, "课程已取消")
)

// BookingService 预约事务与取消
type BookingService interface {
	Book(ctx context.Context, req *dto.BookRequest, learnerID string) (*dto.BookingResponse, error)
	Cancel(ctx context.Context, classID string, learnerID string) (*dto.BookingResponse, error)
	OwnerCancel(ctx context.Context, classID string, caller Caller) (*dto.BookingResponse, error)
	MarkAttendance(ctx context.Context, classID string, req *dto.AttendanceRequest, caller Caller) (*dto.BookingResponse, error)
	ListMine(ctx context.Context, learnerID string) ([]dto.BookingResponse, error)
}

type bookingService struct {
	repo      *repository.Repository
	cfg       *config.BookingConfig
	ownership OwnershipService
	settings  OwnerSettingService
	rules     slotRules
	notifier  Notifier
	calendar  CalendarSync
	now       func() time.Time
	logger    *zap.Logger
}

// NewBookingService 创建 BookingService 实例
func NewBookingService(
	repo *repository.Repository,
	cfg *config.BookingConfig,
	ownership OwnershipService,
	settings OwnerSettingService,
	availability AvailabilityService,
	notifier Notifier,
	calendar CalendarSync,
	now func() time.Time,
	logger *zap.Logger,
) BookingService {
	return &bookingService{
		repo:      repo,
		cfg:       cfg,
		ownership: ownership,
		settings:  settings,
		rules:     slotRules{cfg: cfg, settings: settings, availability: availability, now: now},
		notifier:  notifier,
		calendar:  calendar,
		now:       now,
		logger:    logger,
	}
}

// ═══════════════════════════════════════════════════════════
// 时段前置校验（预约与候补共用）
// ═══════════════════════════════════════════════════════════

type slotRules struct {
	cfg          *config.BookingConfig
	settings     OwnerSettingService
	availability AvailabilityService
	now          func() time.Time
}

// slotTarget 通过前置校验的时段
type slotTarget struct {
	key    model.SlotKey
	policy OwnerPolicy
	at     time.Time
}

// check 依次校验：格式与是否已过 → 提前量 → 封锁日期 → 窗口
func (r slotRules) check(ctx context.Context, scope model.OwnerScope, dateStr, timeStr string) (*slotTarget, error) {
	date, err := civil.ParseDate(dateStr)
	if err != nil {
		return nil, ErrInvalidInput.WithDetail("%v", err)
	}
	clock, err := civil.ParseClock(timeStr)
	if err != nil {
		return nil, ErrInvalidInput.WithDetail("%v", err)
	}

	policy, err := r.settings.Policy(ctx, scope)
	if err != nil {
		return nil, err
	}
	now := r.now()
	at := civil.Combine(date, clock, policy.Location)
	if !at.After(now) {
		return nil, ErrSlotInPast.WithDetail("%s %s", dateStr, clock)
	}
	if at.Before(now.Add(policy.Anticipation)) {
		return nil, ErrInsufficientLeadTime.WithDetail("至少提前 %d 分钟", int(policy.Anticipation/time.Minute))
	}

	blocked, err := r.availability.BlockedDates(ctx, scope, date, date)
	if err != nil {
		return nil, err
	}
	if blocked[date] {
		return nil, ErrDateBlocked.WithDetail("%s", civil.FormatDate(date))
	}

	dow := civil.Weekday(date)
	windows, err := r.availability.ActiveWindows(ctx, scope, &dow, false)
	if err != nil {
		return nil, err
	}
	offered := false
	for _, w := range windows {
		if windowOffers(w, clock, r.cfg.SlotMinutes) {
			offered = true
			break
		}
	}
	if !offered {
		return nil, ErrSlotNotOffered.WithDetail("%s %s", civil.FormatDate(date), clock)
	}

	return &slotTarget{
		key:    model.SlotKey{Scope: scope, Date: date, StartTime: clock.String()},
		policy: policy,
		at:     at,
	}, nil
}

// serializable 在可序列化事务中执行 fn，序列化冲突最多重试 retries 次
func serializable(ctx context.Context, repo *repository.Repository, retries int, logger *zap.Logger, fn func(tx *repository.Repository) error) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		err = repo.Serializable(ctx, fn)
		if !pkgerrors.IsSerializationFailure(err) {
			return err
		}
		logger.Warn("可序列化事务冲突", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return pkgerrors.ErrTransientConflict
}

// ═══════════════════════════════════════════════════════════
// Book
// ═══════════════════════════════════════════════════════════

func (s *bookingService) Book(ctx context.Context, req *dto.BookRequest, learnerID string) (*dto.BookingResponse, error) {
	scope, err := s.ownership.ResolveLearnerScope(ctx, learnerID, scopeFrom(req.ScopeRequest))
	if err != nil {
		return nil, err
	}
	target, err := s.rules.check(ctx, scope, req.Date, req.StartTime)
	if err != nil {
		return nil, err
	}

	var created *model.ClassOccurrence
	err = serializable(ctx, s.repo, s.cfg.SerializationRetries, s.logger, func(tx *repository.Repository) error {
		created = nil
		occ, err := reserve(ctx, tx, target, learnerID, req.IsTrial)
		if err != nil {
			return err
		}
		created = occ
		return nil
	})
	if err != nil {
		if pkgerrors.IsUniqueViolation(err) {
			return nil, ErrAlreadyBooked
		}
		if _, ok := pkgerrors.KindOf(err); !ok {
			s.logger.Error("预约事务失败", zap.String("scope", scope.String()), zap.String("learner_id", learnerID), zap.Error(err))
		}
		return nil, err
	}

	s.notifier.BookingCreated(created)
	s.calendar.Created(created)
	return toBookingResponse(created), nil
}

// reserve 事务内：复核占用 → 重复预约 → 周配额 → 写入
// 学员本人已占用时返回 AlreadyBooked，即便该时段因此满员
func reserve(ctx context.Context, tx *repository.Repository, target *slotTarget, learnerID string, trial bool) (*model.ClassOccurrence, error) {
	key := target.key

	occupied, err := tx.Occurrence.CountOccupied(ctx, key)
	if err != nil {
		return nil, err
	}
	held, err := learnerHolds(ctx, tx, key, learnerID)
	if err != nil {
		return nil, err
	}
	if occupied >= int64(target.policy.Capacity) {
		if held {
			return nil, ErrAlreadyBooked
		}
		return nil, ErrSlotFull.WithDetail("%s %s 已有 %d 人", civil.FormatDate(key.Date), key.StartTime, occupied)
	}
	if held {
		return nil, ErrAlreadyBooked
	}

	pack, err := tx.Pack.GetActive(ctx, learnerID, key.Scope.Owner())
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if pack != nil && !pack.Unlimited() {
		monday, sunday := civil.ISOWeekBounds(key.Date)
		n, err := tx.Occurrence.CountLearnerBetween(ctx, key.Scope.Owner(), learnerID, monday, sunday)
		if err != nil {
			return nil, err
		}
		if n >= int64(*pack.WeeklyQuota) {
			return nil, ErrWeeklyQuotaExceeded.WithDetail("每周 %d 次", *pack.WeeklyQuota)
		}
	}

	occ := &model.ClassOccurrence{
		OwnerType:  key.Scope.OwnerType,
		OwnerID:    key.Scope.OwnerID,
		StaffID:    key.Scope.StaffRef(),
		LearnerID:  &learnerID,
		ClassDate:  key.Date,
		StartTime:  key.StartTime,
		Status:     model.ClassReserved,
		Attendance: model.AttendancePending,
		IsTrial:    trial,
	}
	occ.CreatedBy = &learnerID
	occ.UpdatedBy = &learnerID
	if err := tx.Occurrence.Create(ctx, occ); err != nil {
		return nil, err
	}
	return occ, nil
}

func learnerHolds(ctx context.Context, tx *repository.Repository, key model.SlotKey, learnerID string) (bool, error) {
	_, err := tx.Occurrence.FindLearnerBooking(ctx, key, learnerID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

// ═══════════════════════════════════════════════════════════
// Cancel
// ═══════════════════════════════════════════════════════════

func (s *bookingService) Cancel(ctx context.Context, classID string, learnerID string) (*dto.BookingResponse, error) {
	occ, err := s.getOccurrence(ctx, classID)
	if err != nil {
		return nil, err
	}
	// 非本人预约一律按不存在处理
	if occ.LearnerID == nil || *occ.LearnerID != learnerID {
		return nil, ErrBookingNotFound
	}
	return s.cancel(ctx, occ, learnerID)
}

func (s *bookingService) OwnerCancel(ctx context.Context, classID string, caller Caller) (*dto.BookingResponse, error) {
	occ, err := s.getOccurrence(ctx, classID)
	if err != nil {
		return nil, err
	}
	if err := s.ownership.AuthorizeOwner(ctx, caller, occ.Scope()); err != nil {
		return nil, err
	}
	return s.cancel(ctx, occ, caller.UserID)
}

// cancel 置为 cancelled 并保留学员引用；重复取消直接返回
func (s *bookingService) cancel(ctx context.Context, occ *model.ClassOccurrence, actorID string) (*dto.BookingResponse, error) {
	if occ.Status == model.ClassCancelled {
		return toBookingResponse(occ), nil
	}
	started, err := s.started(ctx, occ)
	if err != nil {
		return nil, err
	}
	if started {
		return nil, ErrPastClass
	}

	now := s.now()
	occ.Status = model.ClassCancelled
	occ.CancelledAt = &now
	occ.UpdatedBy = &actorID
	if err := s.repo.Occurrence.Update(ctx, occ); err != nil {
		s.logger.Error("取消预约失败", zap.String("class_id", occ.ClassID), zap.Error(err))
		return nil, err
	}

	s.notifier.BookingCancelled(occ)
	s.calendar.Cancelled(occ)
	s.announceSeat(ctx, occ)
	return toBookingResponse(occ), nil
}

// announceSeat 通知该时段所有候补学员，晋升由外部系统处理
func (s *bookingService) announceSeat(ctx context.Context, occ *model.ClassOccurrence) {
	if occ.LearnerID == nil {
		return
	}
	key := model.SlotKey{Scope: occ.Scope(), Date: occ.ClassDate, StartTime: civil.NormalizeClock(occ.StartTime)}
	entries, err := s.repo.Waitlist.ListWaiting(ctx, key)
	if err != nil {
		s.logger.Warn("查询候补队列失败", zap.String("class_id", occ.ClassID), zap.Error(err))
		return
	}
	for i := range entries {
		s.notifier.SeatFreed(&entries[i])
	}
}

// ═══════════════════════════════════════════════════════════
// MarkAttendance
// ═══════════════════════════════════════════════════════════

func (s *bookingService) MarkAttendance(ctx context.Context, classID string, req *dto.AttendanceRequest, caller Caller) (*dto.BookingResponse, error) {
	if req.Attendance != model.AttendancePresent && req.Attendance != model.AttendanceAbsent {
		return nil, ErrInvalidInput.WithDetail("attendance 只能为 present 或 absent")
	}
	occ, err := s.getOccurrence(ctx, classID)
	if err != nil {
		return nil, err
	}
	if err := s.ownership.AuthorizeOwner(ctx, caller, occ.Scope()); err != nil {
		return nil, err
	}
	if occ.Status == model.ClassCancelled {
		return nil, ErrClassCancelled
	}
	started, err := s.started(ctx, occ)
	if err != nil {
		return nil, err
	}
	if !started {
		return nil, ErrClassNotStarted
	}

	occ.Attendance = req.Attendance
	occ.Status = model.ClassCompleted
	occ.UpdatedBy = &caller.UserID
	if err := s.repo.Occurrence.Update(ctx, occ); err != nil {
		s.logger.Error("登记出勤失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}
	return toBookingResponse(occ), nil
}

// ═══════════════════════════════════════════════════════════
// ListMine
// ═══════════════════════════════════════════════════════════

// ListMine 学员尚未开始的有效预约
func (s *bookingService) ListMine(ctx context.Context, learnerID string) ([]dto.BookingResponse, error) {
	items, err := upcomingFor(ctx, s.repo, s.settings, s.now(), learnerID, s.logger)
	if err != nil {
		return nil, err
	}
	return toBookingResponses(items), nil
}

// upcomingFor 各场馆按自身时区判断是否已开始
func upcomingFor(ctx context.Context, repo *repository.Repository, settings OwnerSettingService, now time.Time, learnerID string, logger *zap.Logger) ([]model.ClassOccurrence, error) {
	// 任何时区的今天都不早于 UTC 的昨天
	from := civil.AddDays(civil.DateOf(now.UTC()), -1)
	items, err := repo.Occurrence.ListLearnerUpcoming(ctx, learnerID, from)
	if err != nil {
		logger.Error("查询学员预约失败", zap.String("learner_id", learnerID), zap.Error(err))
		return nil, err
	}

	policies := make(map[model.OwnerScope]OwnerPolicy)
	result := make([]model.ClassOccurrence, 0, len(items))
	for i := range items {
		owner := items[i].Scope().Owner()
		policy, ok := policies[owner]
		if !ok {
			policy, err = settings.Policy(ctx, owner)
			if err != nil {
				return nil, err
			}
			policies[owner] = policy
		}
		c, err := civil.ParseClock(items[i].StartTime)
		if err != nil {
			continue
		}
		if civil.Combine(items[i].ClassDate, c, policy.Location).After(now) {
			result = append(result, items[i])
		}
	}
	return result, nil
}

// ── 辅助 ──

func (s *bookingService) getOccurrence(ctx context.Context, classID string) (*model.ClassOccurrence, error) {
	occ, err := s.repo.Occurrence.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		s.logger.Error("查询预约失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}
	return occ, nil
}

// started 课程开始时刻是否已到（场馆时区）
func (s *bookingService) started(ctx context.Context, occ *model.ClassOccurrence) (bool, error) {
	policy, err := s.settings.Policy(ctx, occ.Scope())
	if err != nil {
		return false, err
	}
	c, err := civil.ParseClock(occ.StartTime)
	if err != nil {
		return false, ErrInvalidInput.WithDetail("%v", err)
	}
	return !civil.Combine(occ.ClassDate, c, policy.Location).After(s.now()), nil
}

func toBookingResponse(o *model.ClassOccurrence) *dto.BookingResponse {
	resp := &dto.BookingResponse{
		ID:         o.ClassID,
		OwnerType:  o.OwnerType,
		OwnerID:    o.OwnerID,
		StaffID:    o.Scope().StaffID,
		Date:       civil.FormatDate(o.ClassDate),
		StartTime:  civil.NormalizeClock(o.StartTime),
		Status:     o.Status,
		Attendance: o.Attendance,
		IsTrial:    o.IsTrial,
		CreatedAt:  o.CreatedAt.Format(timeFormat),
	}
	if o.LearnerID != nil {
		resp.LearnerID = *o.LearnerID
	}
	if o.SeriesID != nil {
		resp.SeriesID = *o.SeriesID
	}
	return resp
}

func toBookingResponses(items []model.ClassOccurrence) []dto.BookingResponse {
	result := make([]dto.BookingResponse, 0, len(items))
	for i := range items {
		result = append(result, *toBookingResponse(&items[i]))
	}
	return result
}
