package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mxrcabrera/pilates-booking-sub001/config"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/dto"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/model"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/repository"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/civil"
	pkgerrors "github.com/mxrcabrera/pilates-booking-sub001/pkg/errors"
)

func sameOwner(ownerType, ownerID string, scope model.OwnerScope) bool {
	return ownerType == scope.OwnerType && ownerID == scope.OwnerID
}

func staffOf(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func inRange(d, from, to time.Time) bool {
	d = civil.DateOf(d)
	return !d.Before(civil.DateOf(from)) && !d.After(civil.DateOf(to))
}

// ── Mock OwnershipRepository ──

type mockOwnershipRepo struct {
	mu    sync.Mutex
	links []model.LearnerLink
	staff []model.StudioStaff
}

func newMockOwnershipRepo() *mockOwnershipRepo { return &mockOwnershipRepo{} }

func (m *mockOwnershipRepo) link(learnerID, ownerType, ownerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, model.LearnerLink{
		LinkID: uuid.NewString(), LearnerID: learnerID, OwnerType: ownerType, OwnerID: ownerID, IsActive: true,
	})
}

func (m *mockOwnershipRepo) addStaff(studioID, instructorID string, admin bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staff = append(m.staff, model.StudioStaff{StudioID: studioID, InstructorID: instructorID, IsAdmin: admin, IsActive: true})
}

func (m *mockOwnershipRepo) ListLearnerLinks(_ context.Context, learnerID string) ([]model.LearnerLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.LearnerLink
	for _, l := range m.links {
		if l.LearnerID == learnerID && l.IsActive {
			result = append(result, l)
		}
	}
	return result, nil
}

func (m *mockOwnershipRepo) GetStaff(_ context.Context, studioID, instructorID string) (*model.StudioStaff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.staff {
		if s.StudioID == studioID && s.InstructorID == instructorID && s.IsActive {
			cp := s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOwnershipRepo) ListStudioStaff(_ context.Context, studioID string) ([]model.StudioStaff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.StudioStaff
	for _, s := range m.staff {
		if s.StudioID == studioID && s.IsActive {
			result = append(result, s)
		}
	}
	return result, nil
}

// ── Mock OwnerSettingRepository ──

type mockOwnerSettingRepo struct {
	mu       sync.Mutex
	settings map[string]model.OwnerSetting
}

func newMockOwnerSettingRepo() *mockOwnerSettingRepo {
	return &mockOwnerSettingRepo{settings: make(map[string]model.OwnerSetting)}
}

func (m *mockOwnerSettingRepo) Get(_ context.Context, ownerType, ownerID string) (*model.OwnerSetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.settings[ownerType+":"+ownerID]; ok {
		return &s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOwnerSettingRepo) Create(_ context.Context, s *model.OwnerSetting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Version == 0 {
		s.Version = 1
	}
	m.settings[s.OwnerType+":"+s.OwnerID] = *s
	return nil
}

func (m *mockOwnerSettingRepo) Update(_ context.Context, s *model.OwnerSetting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := s.OwnerType + ":" + s.OwnerID
	cur, ok := m.settings[key]
	if !ok || cur.Version != s.Version {
		return pkgerrors.ErrOptimisticLock
	}
	s.Version++
	m.settings[key] = *s
	return nil
}

// ── Mock AvailabilityRepository ──

type mockAvailabilityRepo struct {
	mu      sync.Mutex
	windows []model.AvailabilityWindow
	blocked []model.BlockedDate
}

func newMockAvailabilityRepo() *mockAvailabilityRepo { return &mockAvailabilityRepo{} }

func (m *mockAvailabilityRepo) CreateWindow(_ context.Context, w *model.AvailabilityWindow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.WindowID == "" {
		w.WindowID = uuid.NewString()
	}
	m.windows = append(m.windows, *w)
	return nil
}

func (m *mockAvailabilityRepo) GetWindow(_ context.Context, id string) (*model.AvailabilityWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.windows {
		if w.WindowID == id && !w.DeletedAt.Valid {
			cp := w
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAvailabilityRepo) ListWindows(_ context.Context, scope model.OwnerScope, f repository.WindowFilter) ([]model.AvailabilityWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.AvailabilityWindow
	for _, w := range m.windows {
		if !sameOwner(w.OwnerType, w.OwnerID, scope) || !w.IsActive || w.DeletedAt.Valid {
			continue
		}
		if !f.AllStaff && w.StaffKey() != scope.StaffID {
			continue
		}
		if f.DayOfWeek != nil && w.DayOfWeek != *f.DayOfWeek {
			continue
		}
		result = append(result, w)
	}
	return result, nil
}

func (m *mockAvailabilityRepo) DeleteWindow(_ context.Context, id string, deletedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.windows {
		if m.windows[i].WindowID == id {
			m.windows[i].DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
			m.windows[i].DeletedBy = &deletedBy
		}
	}
	return nil
}

func (m *mockAvailabilityRepo) CreateBlockedDate(_ context.Context, b *model.BlockedDate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.BlockedDateID == "" {
		b.BlockedDateID = uuid.NewString()
	}
	m.blocked = append(m.blocked, *b)
	return nil
}

func (m *mockAvailabilityRepo) GetBlockedDate(_ context.Context, id string) (*model.BlockedDate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.blocked {
		if b.BlockedDateID == id && !b.DeletedAt.Valid {
			cp := b
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAvailabilityRepo) ListBlockedDates(_ context.Context, owner model.OwnerScope, from, to time.Time) ([]model.BlockedDate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.BlockedDate
	for _, b := range m.blocked {
		if sameOwner(b.OwnerType, b.OwnerID, owner) && !b.DeletedAt.Valid && inRange(b.BlockedOn, from, to) {
			result = append(result, b)
		}
	}
	return result, nil
}

func (m *mockAvailabilityRepo) DeleteBlockedDate(_ context.Context, id string, deletedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.blocked {
		if m.blocked[i].BlockedDateID == id {
			m.blocked[i].DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
			m.blocked[i].DeletedBy = &deletedBy
		}
	}
	return nil
}

// ── Mock OccurrenceRepository ──

type mockOccurrenceRepo struct {
	mu    sync.Mutex
	items []model.ClassOccurrence
	// serializationFailures 之后若干次 Create 返回 40001
	serializationFailures int
	creates               int
}

func newMockOccurrenceRepo() *mockOccurrenceRepo { return &mockOccurrenceRepo{} }

func (m *mockOccurrenceRepo) live() []model.ClassOccurrence {
	var result []model.ClassOccurrence
	for _, o := range m.items {
		if !o.DeletedAt.Valid {
			result = append(result, o)
		}
	}
	return result
}

func (m *mockOccurrenceRepo) Create(_ context.Context, o *model.ClassOccurrence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.serializationFailures > 0 {
		m.serializationFailures--
		return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	}
	if o.ClassID == "" {
		o.ClassID = uuid.NewString()
	}
	o.StartTime = civil.NormalizeClock(o.StartTime)
	o.CreatedAt = time.Now()
	m.items = append(m.items, *o)
	return nil
}

func (m *mockOccurrenceRepo) BatchCreate(ctx context.Context, items []model.ClassOccurrence) error {
	for i := range items {
		if err := m.Create(ctx, &items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockOccurrenceRepo) GetByID(_ context.Context, id string) (*model.ClassOccurrence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.live() {
		if o.ClassID == id {
			cp := o
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOccurrenceRepo) Update(_ context.Context, o *model.ClassOccurrence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ClassID == o.ClassID {
			m.items[i] = *o
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockOccurrenceRepo) SoftDelete(_ context.Context, id string, deletedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ClassID == id {
			m.items[i].DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
			m.items[i].DeletedBy = &deletedBy
		}
	}
	return nil
}

func (m *mockOccurrenceRepo) atSlot(o model.ClassOccurrence, key model.SlotKey) bool {
	return sameOwner(o.OwnerType, o.OwnerID, key.Scope) &&
		civil.DateOf(o.ClassDate).Equal(civil.DateOf(key.Date)) &&
		civil.NormalizeClock(o.StartTime) == civil.NormalizeClock(key.StartTime)
}

func (m *mockOccurrenceRepo) CountOccupied(_ context.Context, key model.SlotKey) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, o := range m.live() {
		if m.atSlot(o, key) && staffOf(o.StaffID) == key.Scope.StaffID && o.OccupiesSeat() {
			n++
		}
	}
	return n, nil
}

func (m *mockOccurrenceRepo) ListOccupancy(_ context.Context, owner model.OwnerScope, from, to time.Time) ([]repository.OccupancyRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	type cellKey struct {
		date  time.Time
		start string
		staff string
	}
	counts := make(map[cellKey]int64)
	for _, o := range m.live() {
		if sameOwner(o.OwnerType, o.OwnerID, owner) && o.OccupiesSeat() && inRange(o.ClassDate, from, to) {
			counts[cellKey{civil.DateOf(o.ClassDate), o.StartTime, staffOf(o.StaffID)}]++
		}
	}
	var rows []repository.OccupancyRow
	for k, n := range counts {
		row := repository.OccupancyRow{ClassDate: k.date, StartTime: k.start, Occupied: n}
		if k.staff != "" {
			staff := k.staff
			row.StaffID = &staff
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (m *mockOccurrenceRepo) FindLearnerBooking(_ context.Context, key model.SlotKey, learnerID string) (*model.ClassOccurrence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.live() {
		if m.atSlot(o, key) && o.HeldBy(learnerID) {
			cp := o
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOccurrenceRepo) ListLearnerBetween(_ context.Context, owner model.OwnerScope, learnerID string, from, to time.Time) ([]model.ClassOccurrence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.ClassOccurrence
	for _, o := range m.live() {
		if sameOwner(o.OwnerType, o.OwnerID, owner) && o.HeldBy(learnerID) && inRange(o.ClassDate, from, to) {
			result = append(result, o)
		}
	}
	return result, nil
}

func (m *mockOccurrenceRepo) CountLearnerBetween(ctx context.Context, owner model.OwnerScope, learnerID string, from, to time.Time) (int64, error) {
	items, err := m.ListLearnerBetween(ctx, owner, learnerID, from, to)
	return int64(len(items)), err
}

func (m *mockOccurrenceRepo) ListLearnerUpcoming(_ context.Context, learnerID string, from time.Time) ([]model.ClassOccurrence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.ClassOccurrence
	for _, o := range m.live() {
		if o.HeldBy(learnerID) && !civil.DateOf(o.ClassDate).Before(civil.DateOf(from)) {
			result = append(result, o)
		}
	}
	sortOccurrences(result)
	return result, nil
}

func (m *mockOccurrenceRepo) ListBySeries(_ context.Context, seriesID string) ([]model.ClassOccurrence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.ClassOccurrence
	for _, o := range m.live() {
		if o.SeriesID != nil && *o.SeriesID == seriesID {
			result = append(result, o)
		}
	}
	sortOccurrences(result)
	return result, nil
}

func (m *mockOccurrenceRepo) ListRange(_ context.Context, owner model.OwnerScope, from, to time.Time) ([]model.ClassOccurrence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.ClassOccurrence
	for _, o := range m.live() {
		if sameOwner(o.OwnerType, o.OwnerID, owner) && inRange(o.ClassDate, from, to) {
			result = append(result, o)
		}
	}
	sortOccurrences(result)
	return result, nil
}

// all 含软删除记录的快照
func (m *mockOccurrenceRepo) all() []model.ClassOccurrence {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ClassOccurrence(nil), m.items...)
}

func sortOccurrences(items []model.ClassOccurrence) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].ClassDate.Equal(items[j].ClassDate) {
			return items[i].ClassDate.Before(items[j].ClassDate)
		}
		return items[i].StartTime < items[j].StartTime
	})
}

// ── Mock SeriesRepository ──

type mockSeriesRepo struct {
	mu     sync.Mutex
	series map[string]model.ClassSeries
}

func newMockSeriesRepo() *mockSeriesRepo {
	return &mockSeriesRepo{series: make(map[string]model.ClassSeries)}
}

func (m *mockSeriesRepo) Create(_ context.Context, s *model.ClassSeries) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Version == 0 {
		s.Version = 1
	}
	m.series[s.SeriesID] = *s
	return nil
}

func (m *mockSeriesRepo) GetByID(_ context.Context, id string) (*model.ClassSeries, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.series[id]; ok {
		return &s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSeriesRepo) Update(_ context.Context, s *model.ClassSeries) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.series[s.SeriesID]
	if !ok || cur.Version != s.Version {
		return pkgerrors.ErrOptimisticLock
	}
	s.Version++
	m.series[s.SeriesID] = *s
	return nil
}

// ── Mock PackRepository ──

type mockPackRepo struct {
	mu    sync.Mutex
	packs []model.LearnerPack
}

func newMockPackRepo() *mockPackRepo { return &mockPackRepo{} }

func (m *mockPackRepo) add(learnerID string, owner model.OwnerScope, quota *int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packs = append(m.packs, model.LearnerPack{
		PackID: uuid.NewString(), LearnerID: learnerID, OwnerType: owner.OwnerType, OwnerID: owner.OwnerID,
		Name: "pack", WeeklyQuota: quota, IsActive: true,
	})
}

func (m *mockPackRepo) GetActive(_ context.Context, learnerID string, owner model.OwnerScope) (*model.LearnerPack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.packs) - 1; i >= 0; i-- {
		p := m.packs[i]
		if p.LearnerID == learnerID && sameOwner(p.OwnerType, p.OwnerID, owner) && p.IsActive {
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock WaitlistRepository ──

type mockWaitlistRepo struct {
	mu      sync.Mutex
	entries []model.WaitlistEntry
}

func newMockWaitlistRepo() *mockWaitlistRepo { return &mockWaitlistRepo{} }

func (m *mockWaitlistRepo) inQueue(e model.WaitlistEntry, key model.SlotKey) bool {
	return sameOwner(e.OwnerType, e.OwnerID, key.Scope) &&
		staffOf(e.StaffID) == key.Scope.StaffID &&
		civil.DateOf(e.ClassDate).Equal(civil.DateOf(key.Date)) &&
		civil.NormalizeClock(e.StartTime) == civil.NormalizeClock(key.StartTime)
}

func (m *mockWaitlistRepo) Create(_ context.Context, e *model.WaitlistEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.EntryID == "" {
		e.EntryID = uuid.NewString()
	}
	e.CreatedAt = time.Now()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *mockWaitlistRepo) GetByID(_ context.Context, id string) (*model.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.EntryID == id {
			cp := e
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWaitlistRepo) Update(_ context.Context, e *model.WaitlistEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].EntryID == e.EntryID {
			m.entries[i].Status = e.Status
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockWaitlistRepo) MaxPosition(_ context.Context, key model.SlotKey) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tail := 0
	for _, e := range m.entries {
		if m.inQueue(e, key) && e.Position > tail {
			tail = e.Position
		}
	}
	return tail, nil
}

func (m *mockWaitlistRepo) FindWaiting(_ context.Context, key model.SlotKey, learnerID string) (*model.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if m.inQueue(e, key) && e.LearnerID == learnerID && e.Status == model.WaitlistWaiting {
			cp := e
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWaitlistRepo) ListWaiting(_ context.Context, key model.SlotKey) ([]model.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.WaitlistEntry
	for _, e := range m.entries {
		if m.inQueue(e, key) && e.Status == model.WaitlistWaiting {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Position < result[j].Position })
	return result, nil
}

func (m *mockWaitlistRepo) ListByLearner(_ context.Context, learnerID string, status string) ([]model.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.WaitlistEntry
	for _, e := range m.entries {
		if e.LearnerID == learnerID && (status == "" || e.Status == status) {
			result = append(result, e)
		}
	}
	return result, nil
}

// ═══════════════════════════════════════════════════════════
// 测试环境
// ═══════════════════════════════════════════════════════════

const (
	instructorID = "inst-1"
	studioID     = "studio-1"
	coachA       = "coach-a"
	coachB       = "coach-b"
)

var (
	instructorScope = model.OwnerScope{OwnerType: model.OwnerInstructor, OwnerID: instructorID}
	studioScope     = model.OwnerScope{OwnerType: model.OwnerStudio, OwnerID: studioID}

	instructorCaller = Caller{UserID: instructorID, Role: "instructor"}
)

// testClock 可调的当前时间，异步通知也会读取
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	if channel != NotificationChannel {
		return nil
	}
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) ofType(typ string) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var result []Event
	for _, e := range p.events {
		if e.Type == typ {
			result = append(result, e)
		}
	}
	return result
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []SyncJob
}

func (q *recordingQueue) Enqueue(_ context.Context, queue string, payload []byte) error {
	if queue != CalendarSyncQueue {
		return nil
	}
	var job SyncJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) snapshot() []SyncJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]SyncJob(nil), q.jobs...)
}

type testEnv struct {
	svc       *Service
	repo      *repository.Repository
	cfg       *config.Config
	ownership *mockOwnershipRepo
	settings  *mockOwnerSettingRepo
	avail     *mockAvailabilityRepo
	occ       *mockOccurrenceRepo
	series    *mockSeriesRepo
	packs     *mockPackRepo
	waitlist  *mockWaitlistRepo
	pub       *recordingPublisher
	queue     *recordingQueue
	clock     *testClock
}

func testConfig() *config.Config {
	return &config.Config{
		Booking: config.BookingConfig{
			DefaultTimezone:            "America/Sao_Paulo",
			DefaultCapacity:            2,
			DefaultAnticipationMinutes: 60,
			SlotMinutes:                60,
			ProjectionWeeks:            2,
			SeriesIterations:           8,
			SerializationRetries:       1,
			NotificationTimeoutSeconds: 1,
		},
	}
}

// saoPaulo 场馆默认时区（UTC-3，无夏令时）
func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("加载时区失败: %v", err)
	}
	return loc
}

// newTestEnv 当前时间为 2025-12-22（周一）08:00 场馆本地时间
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		cfg:       testConfig(),
		ownership: newMockOwnershipRepo(),
		settings:  newMockOwnerSettingRepo(),
		avail:     newMockAvailabilityRepo(),
		occ:       newMockOccurrenceRepo(),
		series:    newMockSeriesRepo(),
		packs:     newMockPackRepo(),
		waitlist:  newMockWaitlistRepo(),
		pub:       &recordingPublisher{},
		queue:     &recordingQueue{},
		clock:     &testClock{now: time.Date(2025, 12, 22, 8, 0, 0, 0, saoPaulo(t))},
	}
	env.repo = &repository.Repository{
		Ownership:    env.ownership,
		OwnerSetting: env.settings,
		Availability: env.avail,
		Occurrence:   env.occ,
		Series:       env.series,
		Pack:         env.packs,
		Waitlist:     env.waitlist,
	}
	env.svc = NewService(env.cfg, env.repo, Options{Publisher: env.pub, Queue: env.queue, Now: env.clock.Now}, zap.NewNop())
	t.Cleanup(env.svc.Drain)
	return env
}

// window 添加每周窗口，scope.StaffID 为窗口所属教练
func (e *testEnv) window(scope model.OwnerScope, dow int, start, end string) {
	e.avail.CreateWindow(context.Background(), &model.AvailabilityWindow{
		OwnerType: scope.OwnerType,
		OwnerID:   scope.OwnerID,
		StaffID:   scope.StaffRef(),
		DayOfWeek: dow,
		StartTime: start,
		EndTime:   end,
		IsActive:  true,
	})
}

func (e *testEnv) block(owner model.OwnerScope, date string) {
	d, _ := civil.ParseDate(date)
	e.avail.CreateBlockedDate(context.Background(), &model.BlockedDate{
		OwnerType: owner.OwnerType, OwnerID: owner.OwnerID, BlockedOn: d, Reason: "holiday",
	})
}

func (e *testEnv) setting(owner model.OwnerScope, capacity, anticipation int) {
	e.settings.Create(context.Background(), &model.OwnerSetting{
		OwnerType: owner.OwnerType, OwnerID: owner.OwnerID,
		Timezone: "America/Sao_Paulo", SlotCapacity: capacity, AnticipationMinutes: anticipation,
	})
}

func scopeRequest(scope model.OwnerScope) dto.ScopeRequest {
	return dto.ScopeRequest{OwnerType: scope.OwnerType, OwnerID: scope.OwnerID, StaffID: scope.StaffID}
}

func (e *testEnv) book(learnerID string, scope model.OwnerScope, date, start string) (*dto.BookingResponse, error) {
	return e.svc.Booking.Book(context.Background(), &dto.BookRequest{
		ScopeRequest: scopeRequest(scope),
		Date:         date,
		StartTime:    start,
	}, learnerID)
}

func (e *testEnv) slots(learnerID string, scope model.OwnerScope) []dto.SlotResponse {
	result, err := e.svc.Slot.List(context.Background(), &dto.SlotListRequest{ScopeRequest: scopeRequest(scope)}, learnerID)
	if err != nil {
		panic(err)
	}
	return result
}

func findSlot(slots []dto.SlotResponse, date, start, staff string) *dto.SlotResponse {
	for i := range slots {
		if slots[i].Date == date && slots[i].StartTime == start && slots[i].StaffID == staff {
			return &slots[i]
		}
	}
	return nil
}
