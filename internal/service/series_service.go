package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mxrcabrera/pilates-booking-sub001/config"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/dto"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/model"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/repository"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/civil"
	pkgerrors "github.com/mxrcabrera/pilates-booking-sub001/pkg/errors"
)

// ── 循环课程业务错误 ──

var (
	ErrEmptyWeekdays  = pkgerrors.New(pkgerrors.KindInvalidInput, "至少选择一个星期")
	ErrInvalidWeekday = pkgerrors.New(pkgerrors.KindInvalidInput, "星期必须在 0-6 之间")
	ErrInvalidEdit    = pkgerrors.New(pkgerrors.KindInvalidInput, "编辑范围无效")
	ErrSeriesNotFound = pkgerrors.New(pkgerrors.KindNotFound, "系列不存在")
	ErrInvalidHorizon = pkgerrors.New(pkgerrors.KindInvalidInput, "重复次数必须为正数")
)

// SeriesService 循环课程的生成与批量编辑（场馆管理操作，不做容量与配额校验）
type SeriesService interface {
	Generate(ctx context.Context, req *dto.CreateSeriesRequest, caller Caller) (*dto.SeriesResponse, error)
	Edit(ctx context.Context, seriesID string, req *dto.EditSeriesRequest, caller Caller) (*dto.SeriesResponse, error)
	Get(ctx context.Context, seriesID string, caller Caller) (*dto.SeriesResponse, error)
}

type seriesService struct {
	repo         *repository.Repository
	cfg          *config.BookingConfig
	ownership    OwnershipService
	settings     OwnerSettingService
	availability AvailabilityService
	calendar     CalendarSync
	now          func() time.Time
	logger       *zap.Logger
}

// NewSeriesService 创建 SeriesService 实例
func NewSeriesService(
	repo *repository.Repository,
	cfg *config.BookingConfig,
	ownership OwnershipService,
	settings OwnerSettingService,
	availability AvailabilityService,
	calendar CalendarSync,
	now func() time.Time,
	logger *zap.Logger,
) SeriesService {
	return &seriesService{
		repo:         repo,
		cfg:          cfg,
		ownership:    ownership,
		settings:     settings,
		availability: availability,
		calendar:     calendar,
		now:          now,
		logger:       logger,
	}
}

// ── 日期轨道 ──

// seriesDates 某个星期的轨道：不早于 anchor 的首个该星期日期起，每 7 天一次，共 iterations 次
func seriesDates(anchor time.Time, weekday, iterations int) []time.Time {
	first := civil.NextOnOrAfter(anchor, weekday)
	dates := make([]time.Time, iterations)
	for i := range dates {
		dates[i] = civil.AddDays(first, 7*i)
	}
	return dates
}

// seriesEnd 系列覆盖的最后一天：各轨道首日不晚于 anchor+6
func seriesEnd(anchor time.Time, iterations int) time.Time {
	return civil.AddDays(anchor, 7*iterations-1)
}

func normalizeWeekdays(in []int) ([]int, error) {
	if len(in) == 0 {
		return nil, ErrEmptyWeekdays
	}
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, d := range in {
		if d < 0 || d > 6 {
			return nil, ErrInvalidWeekday.WithDetail("%d", d)
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out, nil
}

// ── 去重索引 ──

// dupIndex 已存在的未取消课程
// 有学员时按 (日期, 时刻, 学员) 判重，与唯一索引一致；无学员时按 (日期, 时刻, 教练)
type dupIndex map[string]bool

func dupKey(date time.Time, clock civil.Clock, staffID string, learnerID *string) string {
	if learnerID != nil {
		return civil.FormatDate(date) + " " + clock.String() + " L:" + *learnerID
	}
	return civil.FormatDate(date) + " " + clock.String() + " S:" + staffID
}

func (d dupIndex) addOccurrence(o *model.ClassOccurrence) {
	if o.Status == model.ClassCancelled {
		return
	}
	c, err := civil.ParseClock(o.StartTime)
	if err != nil {
		return
	}
	d[dupKey(civil.DateOf(o.ClassDate), c, o.Scope().StaffID, o.LearnerID)] = true
}

func (d dupIndex) has(date time.Time, clock civil.Clock, staffID string, learnerID *string) bool {
	return d[dupKey(date, clock, staffID, learnerID)]
}

func (d dupIndex) add(date time.Time, clock civil.Clock, staffID string, learnerID *string) {
	d[dupKey(date, clock, staffID, learnerID)] = true
}

// ═══════════════════════════════════════════════════════════
// Generate
// ═══════════════════════════════════════════════════════════

func (s *seriesService) Generate(ctx context.Context, req *dto.CreateSeriesRequest, caller Caller) (*dto.SeriesResponse, error) {
	scope := scopeFrom(req.ScopeRequest)
	if err := s.ownership.AuthorizeOwner(ctx, caller, scope); err != nil {
		return nil, err
	}
	weekdays, err := normalizeWeekdays(req.Weekdays)
	if err != nil {
		return nil, err
	}
	clock, err := civil.ParseClock(req.StartTime)
	if err != nil {
		return nil, ErrInvalidInput.WithDetail("%v", err)
	}
	anchor, err := civil.ParseDate(req.AnchorDate)
	if err != nil {
		return nil, ErrInvalidInput.WithDetail("%v", err)
	}
	iterations := req.Iterations
	if iterations == 0 {
		iterations = s.cfg.SeriesIterations
	}
	if iterations < 0 {
		return nil, ErrInvalidHorizon
	}

	var learnerRef *string
	if req.LearnerID != "" {
		if _, err := s.ownership.ResolveLearnerScope(ctx, req.LearnerID, scope); err != nil {
			return nil, err
		}
		id := req.LearnerID
		learnerRef = &id
	}

	policy, err := s.settings.Policy(ctx, scope)
	if err != nil {
		return nil, err
	}
	end := seriesEnd(anchor, iterations)
	blocked, err := s.availability.BlockedDates(ctx, scope, anchor, end)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.Occurrence.ListRange(ctx, scope.Owner(), anchor, end)
	if err != nil {
		s.logger.Error("查询已有课程失败", zap.String("scope", scope.String()), zap.Error(err))
		return nil, err
	}
	dups := make(dupIndex)
	for i := range existing {
		dups.addOccurrence(&existing[i])
	}

	series := &model.ClassSeries{
		SeriesID:   uuid.NewString(),
		OwnerType:  scope.OwnerType,
		OwnerID:    scope.OwnerID,
		StaffID:    scope.StaffRef(),
		LearnerID:  learnerRef,
		Weekdays:   model.IntArray(weekdays),
		StartTime:  clock.String(),
		AnchorDate: anchor,
		Iterations: iterations,
		IsTrial:    req.IsTrial,
	}
	series.CreatedBy = &caller.UserID
	series.UpdatedBy = &caller.UserID

	now := s.now()
	var items []model.ClassOccurrence
	skipped := 0
	for _, wd := range weekdays {
		for i, d := range seriesDates(anchor, wd, iterations) {
			if !civil.Combine(d, clock, policy.Location).After(now) || blocked[d] || dups.has(d, clock, scope.StaffID, learnerRef) {
				skipped++
				continue
			}
			dups.add(d, clock, scope.StaffID, learnerRef)
			items = append(items, s.newMember(series, d, clock, i+1, caller.UserID))
		}
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Series.Create(ctx, series); err != nil {
			return err
		}
		return tx.Occurrence.BatchCreate(ctx, items)
	})
	if err != nil {
		s.logger.Error("生成循环课程失败", zap.String("scope", scope.String()), zap.Error(err))
		return nil, err
	}

	for i := range items {
		s.calendar.Created(&items[i])
	}
	return s.toSeriesResponse(series, items, seriesCounts{created: len(items), skipped: skipped}), nil
}

func (s *seriesService) newMember(series *model.ClassSeries, date time.Time, clock civil.Clock, iteration int, actorID string) model.ClassOccurrence {
	id := series.SeriesID
	o := model.ClassOccurrence{
		ClassID:    uuid.NewString(),
		OwnerType:  series.OwnerType,
		OwnerID:    series.OwnerID,
		StaffID:    series.StaffID,
		LearnerID:  series.LearnerID,
		ClassDate:  date,
		StartTime:  clock.String(),
		Status:     model.ClassReserved,
		Attendance: model.AttendancePending,
		SeriesID:   &id,
		Recurrence: model.EncodeRecurrence(model.RecurrenceMeta{
			Weekdays:  series.Weekdays,
			StartTime: clock.String(),
			Iteration: iteration,
		}),
		IsTrial: series.IsTrial,
	}
	o.CreatedBy = &actorID
	o.UpdatedBy = &actorID
	return o
}

// ═══════════════════════════════════════════════════════════
// Edit
// ═══════════════════════════════════════════════════════════
//
// 可编辑成员：未取消、出勤未登记，且（尚未开始 或 范围为 future_plus_unattended_past）。
// 可编辑成员的星期仍在新集合中 → 改到新时刻；否则软删除。
// 新增的星期按原锚点与次数补齐尚未开始的日期。已出勤与已取消的记录不动。

func (s *seriesService) Edit(ctx context.Context, seriesID string, req *dto.EditSeriesRequest, caller Caller) (*dto.SeriesResponse, error) {
	if req.Scope != dto.EditScopeFuture && req.Scope != dto.EditScopeFuturePlusUnattendedPast {
		return nil, ErrInvalidEdit.WithDetail("%s", req.Scope)
	}
	series, err := s.getSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	scope := series.Scope()
	if err := s.ownership.AuthorizeOwner(ctx, caller, scope); err != nil {
		return nil, err
	}
	weekdays, err := normalizeWeekdays(req.Weekdays)
	if err != nil {
		return nil, err
	}
	clock, err := civil.ParseClock(req.StartTime)
	if err != nil {
		return nil, ErrInvalidInput.WithDetail("%v", err)
	}

	policy, err := s.settings.Policy(ctx, scope)
	if err != nil {
		return nil, err
	}
	members, err := s.repo.Occurrence.ListBySeries(ctx, seriesID)
	if err != nil {
		s.logger.Error("查询系列成员失败", zap.String("series_id", seriesID), zap.Error(err))
		return nil, err
	}
	end := seriesEnd(series.AnchorDate, series.Iterations)
	blocked, err := s.availability.BlockedDates(ctx, scope, series.AnchorDate, end)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.Occurrence.ListRange(ctx, scope.Owner(), series.AnchorDate, end)
	if err != nil {
		s.logger.Error("查询已有课程失败", zap.String("scope", scope.String()), zap.Error(err))
		return nil, err
	}

	now := s.now()
	newSet := model.IntArray(weekdays)
	editable := func(m *model.ClassOccurrence) bool {
		if m.Status != model.ClassReserved || m.Attendance != model.AttendancePending {
			return false
		}
		c, err := civil.ParseClock(m.StartTime)
		if err != nil {
			return false
		}
		if civil.Combine(m.ClassDate, c, policy.Location).After(now) {
			return true
		}
		return req.Scope == dto.EditScopeFuturePlusUnattendedPast
	}

	// 系列外的课程与本系列不可编辑的成员参与去重
	dups := make(dupIndex)
	for i := range existing {
		if existing[i].SeriesID == nil || *existing[i].SeriesID != seriesID {
			dups.addOccurrence(&existing[i])
		}
	}
	occupiedDates := make(map[time.Time]bool)
	for i := range members {
		if !editable(&members[i]) {
			dups.addOccurrence(&members[i])
			if members[i].Status != model.ClassCancelled {
				occupiedDates[civil.DateOf(members[i].ClassDate)] = true
			}
		}
	}

	var updated, removed []*model.ClassOccurrence
	for i := range members {
		m := &members[i]
		if !editable(m) {
			continue
		}
		date := civil.DateOf(m.ClassDate)
		if !newSet.Contains(civil.Weekday(date)) || dups.has(date, clock, m.Scope().StaffID, m.LearnerID) {
			removed = append(removed, m)
			continue
		}
		dups.add(date, clock, m.Scope().StaffID, m.LearnerID)
		occupiedDates[date] = true

		meta, _ := m.DecodeRecurrence()
		meta.Weekdays = weekdays
		meta.StartTime = clock.String()
		m.StartTime = clock.String()
		m.Recurrence = model.EncodeRecurrence(meta)
		m.UpdatedBy = &caller.UserID
		updated = append(updated, m)
	}

	oldSet := series.Weekdays
	series.Weekdays = newSet
	series.StartTime = clock.String()
	series.UpdatedBy = &caller.UserID

	var added []model.ClassOccurrence
	for _, wd := range weekdays {
		if oldSet.Contains(wd) {
			continue
		}
		for i, d := range seriesDates(series.AnchorDate, wd, series.Iterations) {
			if occupiedDates[d] || blocked[d] || !civil.Combine(d, clock, policy.Location).After(now) {
				continue
			}
			if dups.has(d, clock, scope.StaffID, series.LearnerID) {
				continue
			}
			dups.add(d, clock, scope.StaffID, series.LearnerID)
			added = append(added, s.newMember(series, d, clock, i+1, caller.UserID))
		}
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		for _, m := range removed {
			if err := tx.Occurrence.SoftDelete(ctx, m.ClassID, caller.UserID); err != nil {
				return err
			}
		}
		for _, m := range updated {
			if err := tx.Occurrence.Update(ctx, m); err != nil {
				return err
			}
		}
		if err := tx.Occurrence.BatchCreate(ctx, added); err != nil {
			return err
		}
		return tx.Series.Update(ctx, series)
	})
	if err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("编辑循环课程失败", zap.String("series_id", seriesID), zap.Error(err))
		}
		return nil, err
	}

	for _, m := range removed {
		s.calendar.Cancelled(m)
	}
	for _, m := range updated {
		s.calendar.Created(m)
	}
	for i := range added {
		s.calendar.Created(&added[i])
	}

	current, err := s.repo.Occurrence.ListBySeries(ctx, seriesID)
	if err != nil {
		s.logger.Error("查询系列成员失败", zap.String("series_id", seriesID), zap.Error(err))
		return nil, err
	}
	return s.toSeriesResponse(series, current, seriesCounts{
		created: len(added),
		updated: len(updated),
		removed: len(removed),
	}), nil
}

// ═══════════════════════════════════════════════════════════
// Get
// ═══════════════════════════════════════════════════════════

func (s *seriesService) Get(ctx context.Context, seriesID string, caller Caller) (*dto.SeriesResponse, error) {
	series, err := s.getSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if err := s.ownership.AuthorizeOwner(ctx, caller, series.Scope()); err != nil {
		return nil, err
	}
	members, err := s.repo.Occurrence.ListBySeries(ctx, seriesID)
	if err != nil {
		s.logger.Error("查询系列成员失败", zap.String("series_id", seriesID), zap.Error(err))
		return nil, err
	}
	return s.toSeriesResponse(series, members, seriesCounts{}), nil
}

func (s *seriesService) getSeries(ctx context.Context, id string) (*model.ClassSeries, error) {
	series, err := s.repo.Series.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSeriesNotFound
		}
		s.logger.Error("查询系列失败", zap.String("series_id", id), zap.Error(err))
		return nil, err
	}
	return series, nil
}

type seriesCounts struct {
	created, skipped, updated, removed int
}

func (s *seriesService) toSeriesResponse(series *model.ClassSeries, members []model.ClassOccurrence, counts seriesCounts) *dto.SeriesResponse {
	return &dto.SeriesResponse{
		SeriesID:    series.SeriesID,
		Weekdays:    []int(series.Weekdays),
		StartTime:   civil.NormalizeClock(series.StartTime),
		Created:     counts.created,
		Skipped:     counts.skipped,
		Updated:     counts.updated,
		Removed:     counts.removed,
		Occurrences: toBookingResponses(members),
	}
}
