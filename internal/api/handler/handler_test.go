package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/api/validation"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/dto"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/model"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/service"
	pkgerrors "github.com/mxrcabrera/pilates-booking-sub001/pkg/errors"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/jwt"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := validation.Register(); err != nil {
		panic(err)
	}
}

const (
	testLearnerID = "7f1c9a52-3b8e-4d6a-9e21-0c5b7a8d4f10"
	testStudioID  = "2d4e6f80-1a3b-4c5d-8e9f-0a1b2c3d4e5f"
	testClassID   = "b3a1c2d4-5e6f-4a7b-8c9d-0e1f2a3b4c5d"
)

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock BookingService ──

type mockBookingService struct {
	bookResult   *dto.BookingResponse
	bookErr      error
	lastBook     *dto.BookRequest
	lastLearner  string
	cancelResult *dto.BookingResponse
	cancelErr    error
	lastClassID  string
	lastCaller   service.Caller
	listResult   []dto.BookingResponse
	listErr      error
}

func (m *mockBookingService) Book(_ context.Context, req *dto.BookRequest, learnerID string) (*dto.BookingResponse, error) {
	m.lastBook, m.lastLearner = req, learnerID
	return m.bookResult, m.bookErr
}
func (m *mockBookingService) Cancel(_ context.Context, classID string, learnerID string) (*dto.BookingResponse, error) {
	m.lastClassID, m.lastLearner = classID, learnerID
	return m.cancelResult, m.cancelErr
}
func (m *mockBookingService) OwnerCancel(_ context.Context, classID string, caller service.Caller) (*dto.BookingResponse, error) {
	m.lastClassID, m.lastCaller = classID, caller
	return m.cancelResult, m.cancelErr
}
func (m *mockBookingService) MarkAttendance(_ context.Context, classID string, _ *dto.AttendanceRequest, caller service.Caller) (*dto.BookingResponse, error) {
	m.lastClassID, m.lastCaller = classID, caller
	return m.cancelResult, m.cancelErr
}
func (m *mockBookingService) ListMine(_ context.Context, _ string) ([]dto.BookingResponse, error) {
	return m.listResult, m.listErr
}

// ── Mock SlotService / OwnershipService ──

type mockSlotService struct {
	result  []dto.SlotResponse
	err     error
	lastReq *dto.SlotListRequest
}

func (m *mockSlotService) List(_ context.Context, req *dto.SlotListRequest, _ string) ([]dto.SlotResponse, error) {
	m.lastReq = req
	return m.result, m.err
}

type mockOwnershipService struct {
	scopes []model.OwnerScope
	err    error
}

func (m *mockOwnershipService) ListScopes(_ context.Context, _ string) ([]model.OwnerScope, error) {
	return m.scopes, m.err
}
func (m *mockOwnershipService) ResolveLearnerScope(_ context.Context, _ string, requested model.OwnerScope) (model.OwnerScope, error) {
	return requested, m.err
}
func (m *mockOwnershipService) AuthorizeOwner(_ context.Context, _ service.Caller, _ model.OwnerScope) error {
	return m.err
}

// ── Mock WaitlistService ──

type mockWaitlistService struct {
	joinResult *dto.WaitlistResponse
	joinErr    error
}

func (m *mockWaitlistService) Join(_ context.Context, _ *dto.JoinWaitlistRequest, _ string) (*dto.WaitlistResponse, error) {
	return m.joinResult, m.joinErr
}
func (m *mockWaitlistService) Leave(_ context.Context, _ string, _ string) (*dto.WaitlistResponse, error) {
	return m.joinResult, m.joinErr
}
func (m *mockWaitlistService) ListMine(_ context.Context, _ string) ([]dto.WaitlistResponse, error) {
	return nil, m.joinErr
}

// ── Mock OwnerSettingService ──

type mockSettingService struct {
	result    *dto.OwnerSettingResponse
	err       error
	lastScope model.OwnerScope
}

func (m *mockSettingService) Policy(_ context.Context, _ model.OwnerScope) (service.OwnerPolicy, error) {
	return service.OwnerPolicy{}, m.err
}
func (m *mockSettingService) Get(_ context.Context, scope model.OwnerScope, _ service.Caller) (*dto.OwnerSettingResponse, error) {
	m.lastScope = scope
	return m.result, m.err
}
func (m *mockSettingService) Update(_ context.Context, scope model.OwnerScope, _ *dto.UpdateOwnerSettingRequest, _ service.Caller) (*dto.OwnerSettingResponse, error) {
	m.lastScope = scope
	return m.result, m.err
}

// ── Mock AvailabilityService ──

type mockAvailabilityService struct {
	imported   []byte
	importErr  error
	lastScope  model.OwnerScope
	lastCaller service.Caller
}

func (m *mockAvailabilityService) ActiveWindows(_ context.Context, _ model.OwnerScope, _ *int, _ bool) ([]model.AvailabilityWindow, error) {
	return nil, nil
}
func (m *mockAvailabilityService) BlockedDates(_ context.Context, _ model.OwnerScope, _, _ time.Time) (map[time.Time]bool, error) {
	return nil, nil
}
func (m *mockAvailabilityService) CreateWindow(_ context.Context, _ *dto.CreateWindowRequest, _ service.Caller) (*dto.WindowResponse, error) {
	return &dto.WindowResponse{ID: "w-1"}, nil
}
func (m *mockAvailabilityService) ListWindows(_ context.Context, _ model.OwnerScope, _ service.Caller) ([]dto.WindowResponse, error) {
	return nil, nil
}
func (m *mockAvailabilityService) DeleteWindow(_ context.Context, _ string, _ service.Caller) error {
	return nil
}
func (m *mockAvailabilityService) CreateBlockedDate(_ context.Context, _ *dto.CreateBlockedDateRequest, _ service.Caller) (*dto.BlockedDateResponse, error) {
	return &dto.BlockedDateResponse{ID: "b-1"}, nil
}
func (m *mockAvailabilityService) ListBlockedDates(_ context.Context, _ model.OwnerScope, _, _ string, _ service.Caller) ([]dto.BlockedDateResponse, error) {
	return nil, nil
}
func (m *mockAvailabilityService) DeleteBlockedDate(_ context.Context, _ string, _ service.Caller) error {
	return nil
}
func (m *mockAvailabilityService) ImportBlockedDates(_ context.Context, scope model.OwnerScope, calendar io.Reader, caller service.Caller) ([]dto.BlockedDateResponse, error) {
	m.lastScope, m.lastCaller = scope, caller
	m.imported, _ = io.ReadAll(calendar)
	return []dto.BlockedDateResponse{{ID: "b-1", Date: "2025-12-25"}}, m.importErr
}

// ── Mock CalendarService / ExportService ──

type mockCalendarService struct {
	feed []byte
	err  error
}

func (m *mockCalendarService) Created(_ *model.ClassOccurrence) {}
func (m *mockCalendarService) Cancelled(_ *model.ClassOccurrence) {}
func (m *mockCalendarService) Wait() {}
func (m *mockCalendarService) Feed(_ context.Context, _ string) ([]byte, error) {
	return m.feed, m.err
}

type mockExportService struct {
	err error
}

func (m *mockExportService) ExportRoster(_ context.Context, _ model.OwnerScope, _, _ string, _ service.Caller) (*bytes.Buffer, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	return bytes.NewBufferString("xlsx"), "roster_2025-12-22_2025-12-28.xlsx", nil
}

// ── Mock TokenRevoker ──

type mockRevoker struct {
	jti string
	ttl time.Duration
	err error
}

func (m *mockRevoker) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	m.jti, m.ttl = jti, ttl
	return m.err
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

// withAuth 模拟 JWTAuth 注入的上下文
func withAuth(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("role", role)
		c.Set("token_jti", "test-jti")
		c.Set("token_exp", time.Now().Add(15*time.Minute))
		c.Next()
	}
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("响应不是合法 JSON: %v (%s)", err, w.Body.String())
	}
	return resp
}

func serve(r *gin.Engine, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func validBookRequest() dto.BookRequest {
	return dto.BookRequest{
		ScopeRequest: dto.ScopeRequest{OwnerType: model.OwnerStudio, OwnerID: testStudioID},
		Date:         "2025-12-23",
		StartTime:    "09:00",
	}
}

// ═══════════════════════════════════════════════════════════
// BookingHandler Tests
// ═══════════════════════════════════════════════════════════

func TestBookingHandler_Book_Success(t *testing.T) {
	mock := &mockBookingService{bookResult: &dto.BookingResponse{ID: testClassID, Status: "scheduled"}}
	h := NewBookingHandler(mock)

	r := gin.New()
	r.POST("/bookings", withAuth(testLearnerID, jwt.RoleLearner), h.Book)
	w := serve(r, "POST", "/bookings", jsonBody(validBookRequest()))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if mock.lastLearner != testLearnerID {
		t.Errorf("学员 ID 应来自 Token，实际 %q", mock.lastLearner)
	}
	if mock.lastBook.StartTime != "09:00" || mock.lastBook.OwnerID != testStudioID {
		t.Errorf("请求未正确绑定: %+v", mock.lastBook)
	}
}

func TestBookingHandler_Book_ValidationFailure(t *testing.T) {
	h := NewBookingHandler(&mockBookingService{})
	r := gin.New()
	r.POST("/bookings", withAuth(testLearnerID, jwt.RoleLearner), h.Book)

	req := validBookRequest()
	req.Date = "23/12/2025"
	req.StartTime = "9h"
	w := serve(r, "POST", "/bookings", jsonBody(req))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	resp := parseResponse(t, w)
	if resp.Code != 10001 {
		t.Errorf("expected code 10001, got %d", resp.Code)
	}
	if !strings.Contains(resp.Details, "Date:civildate") || !strings.Contains(resp.Details, "StartTime:clock") {
		t.Errorf("details 应列出失败字段: %q", resp.Details)
	}
}

func TestBookingHandler_Book_BadJSON(t *testing.T) {
	h := NewBookingHandler(&mockBookingService{})
	r := gin.New()
	r.POST("/bookings", withAuth(testLearnerID, jwt.RoleLearner), h.Book)

	req := httptest.NewRequest("POST", "/bookings", bytes.NewReader([]byte("invalid json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestBookingHandler_Book_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   int
		kind   string
	}{
		{"满员", service.ErrSlotFull, http.StatusConflict, 20102, "SlotFull"},
		{"重复预约", service.ErrAlreadyBooked, http.StatusConflict, 20101, "AlreadyBooked"},
		{"提前量不足", service.ErrInsufficientLeadTime, http.StatusUnprocessableEntity, 20201, "InsufficientLeadTime"},
		{"封锁日期", service.ErrDateBlocked, http.StatusUnprocessableEntity, 20202, "DateBlocked"},
		{"未开放", service.ErrSlotNotOffered, http.StatusUnprocessableEntity, 20203, "SlotNotOffered"},
		{"周配额", service.ErrWeeklyQuotaExceeded, http.StatusUnprocessableEntity, 20204, "WeeklyQuotaExceeded"},
		{"无权访问", service.ErrUnauthorized, http.StatusForbidden, 10003, "Unauthorized"},
		{"输入无效", service.ErrSlotInPast, http.StatusBadRequest, 10001, "InvalidInput"},
		{"并发冲突", pkgerrors.ErrTransientConflict, http.StatusServiceUnavailable, 50001, ""},
		{"未知错误", errors.New("db down"), http.StatusInternalServerError, 50000, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewBookingHandler(&mockBookingService{bookErr: tt.err})
			r := gin.New()
			r.POST("/bookings", withAuth(testLearnerID, jwt.RoleLearner), h.Book)
			w := serve(r, "POST", "/bookings", jsonBody(validBookRequest()))

			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, w.Code)
			}
			resp := parseResponse(t, w)
			if resp.Code != tt.code || resp.Kind != tt.kind {
				t.Errorf("expected code=%d kind=%q, got code=%d kind=%q", tt.code, tt.kind, resp.Code, resp.Kind)
			}
		})
	}
}

func TestBookingHandler_Book_DetailIsReturned(t *testing.T) {
	err := service.ErrSlotFull.WithDetail("2025-12-23 09:00 已有 %d 人", 4)
	h := NewBookingHandler(&mockBookingService{bookErr: err})
	r := gin.New()
	r.POST("/bookings", withAuth(testLearnerID, jwt.RoleLearner), h.Book)
	w := serve(r, "POST", "/bookings", jsonBody(validBookRequest()))

	resp := parseResponse(t, w)
	if resp.Message != "该时段已满" || resp.Details != "2025-12-23 09:00 已有 4 人" {
		t.Errorf("message/details 不符: %q / %q", resp.Message, resp.Details)
	}
}

func TestBookingHandler_Book_Unauthenticated(t *testing.T) {
	h := NewBookingHandler(&mockBookingService{})
	r := gin.New()
	r.POST("/bookings", h.Book)
	w := serve(r, "POST", "/bookings", jsonBody(validBookRequest()))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestBookingHandler_Cancel(t *testing.T) {
	mock := &mockBookingService{cancelResult: &dto.BookingResponse{ID: testClassID, Status: "cancelled"}}
	h := NewBookingHandler(mock)
	r := gin.New()
	r.DELETE("/bookings/:id", withAuth(testLearnerID, jwt.RoleLearner), h.Cancel)

	w := serve(r, "DELETE", "/bookings/"+testClassID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.lastClassID != testClassID || mock.lastLearner != testLearnerID {
		t.Errorf("参数未透传: class=%q learner=%q", mock.lastClassID, mock.lastLearner)
	}

	mock.cancelErr = service.ErrPastClass
	w = serve(r, "DELETE", "/bookings/"+testClassID, nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("课程已开始应返回 422，实际 %d", w.Code)
	}
}

func TestBookingHandler_MarkAttendance(t *testing.T) {
	mock := &mockBookingService{cancelResult: &dto.BookingResponse{ID: testClassID, Attendance: "present"}}
	h := NewBookingHandler(mock)
	r := gin.New()
	r.PUT("/classes/:id/attendance", withAuth("coach-1", jwt.RoleInstructor), h.MarkAttendance)

	w := serve(r, "PUT", "/classes/"+testClassID+"/attendance", jsonBody(dto.AttendanceRequest{Attendance: "late"}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("非法出勤值应返回 400，实际 %d", w.Code)
	}

	w = serve(r, "PUT", "/classes/"+testClassID+"/attendance", jsonBody(dto.AttendanceRequest{Attendance: "present"}))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.lastCaller.UserID != "coach-1" || mock.lastCaller.Role != jwt.RoleInstructor {
		t.Errorf("调用方未正确传递: %+v", mock.lastCaller)
	}
}

// ═══════════════════════════════════════════════════════════
// SlotHandler Tests
// ═══════════════════════════════════════════════════════════

func TestSlotHandler_ListSlots(t *testing.T) {
	mock := &mockSlotService{result: []dto.SlotResponse{{Date: "2025-12-23", StartTime: "09:00", Capacity: 4, Available: 3}}}
	h := NewSlotHandler(mock, &mockOwnershipService{})
	r := gin.New()
	r.GET("/slots", withAuth(testLearnerID, jwt.RoleLearner), h.ListSlots)

	w := serve(r, "GET", "/slots?owner_type=studio&owner_id="+testStudioID+"&all_staff=true&weeks=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !mock.lastReq.AllStaff || mock.lastReq.Weeks != 2 {
		t.Errorf("查询参数未绑定: %+v", mock.lastReq)
	}

	var body struct {
		Data dto.ListResponse[dto.SlotResponse] `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Data.Total != 1 || body.Data.Items[0].Available != 3 {
		t.Errorf("列表响应不符: %+v", body.Data)
	}
}

func TestSlotHandler_ListSlots_MissingScope(t *testing.T) {
	h := NewSlotHandler(&mockSlotService{}, &mockOwnershipService{})
	r := gin.New()
	r.GET("/slots", withAuth(testLearnerID, jwt.RoleLearner), h.ListSlots)

	w := serve(r, "GET", "/slots?owner_type=gym", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestSlotHandler_ListScopes_EmptyIsArray(t *testing.T) {
	h := NewSlotHandler(&mockSlotService{}, &mockOwnershipService{})
	r := gin.New()
	r.GET("/scopes", withAuth(testLearnerID, jwt.RoleLearner), h.ListScopes)

	w := serve(r, "GET", "/scopes", nil)
	if !strings.Contains(w.Body.String(), `"items":[]`) {
		t.Errorf("空列表应序列化为 []: %s", w.Body.String())
	}
}

// ═══════════════════════════════════════════════════════════
// Waitlist / Setting Tests
// ═══════════════════════════════════════════════════════════

func TestWaitlistHandler_Join_SlotNotFull(t *testing.T) {
	h := NewWaitlistHandler(&mockWaitlistService{joinErr: service.ErrSlotNotFull})
	r := gin.New()
	r.POST("/waitlist", withAuth(testLearnerID, jwt.RoleLearner), h.Join)

	w := serve(r, "POST", "/waitlist", jsonBody(dto.JoinWaitlistRequest{
		ScopeRequest: dto.ScopeRequest{OwnerType: model.OwnerStudio, OwnerID: testStudioID},
		Date:         "2025-12-23",
		StartTime:    "09:00",
	}))
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if resp := parseResponse(t, w); resp.Kind != "SlotNotFull" {
		t.Errorf("expected kind SlotNotFull, got %q", resp.Kind)
	}
}

func TestSettingHandler_Update_VersionConflict(t *testing.T) {
	mock := &mockSettingService{err: pkgerrors.ErrOptimisticLock}
	h := NewSettingHandler(mock)
	r := gin.New()
	r.PUT("/settings", withAuth("admin-1", jwt.RoleStudioAdmin), h.Update)

	capacity := 6
	w := serve(r, "PUT", "/settings?owner_type=studio&owner_id="+testStudioID,
		jsonBody(dto.UpdateOwnerSettingRequest{SlotCapacity: &capacity, Version: 1}))

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if resp := parseResponse(t, w); resp.Code != 20104 {
		t.Errorf("expected code 20104, got %d", resp.Code)
	}
	if mock.lastScope.OwnerID != testStudioID {
		t.Errorf("范围未绑定: %+v", mock.lastScope)
	}
}

// ═══════════════════════════════════════════════════════════
// Availability / Calendar / Export Tests
// ═══════════════════════════════════════════════════════════

func TestAvailabilityHandler_ImportBlockedDates(t *testing.T) {
	mock := &mockAvailabilityService{}
	h := NewAvailabilityHandler(mock)
	r := gin.New()
	r.POST("/blocked-dates/import", withAuth("admin-1", jwt.RoleStudioAdmin), h.ImportBlockedDates)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("owner_type", model.OwnerStudio)
	mw.WriteField("owner_id", testStudioID)
	fw, _ := mw.CreateFormFile("file", "holidays.ics")
	fw.Write([]byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
	mw.Close()

	req := httptest.NewRequest("POST", "/blocked-dates/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if mock.lastScope.OwnerID != testStudioID || mock.lastCaller.UserID != "admin-1" {
		t.Errorf("范围或调用方未透传: %+v %+v", mock.lastScope, mock.lastCaller)
	}
	if !strings.HasPrefix(string(mock.imported), "BEGIN:VCALENDAR") {
		t.Errorf("上传内容未透传: %q", mock.imported)
	}
}

func TestAvailabilityHandler_ImportBlockedDates_MissingFile(t *testing.T) {
	h := NewAvailabilityHandler(&mockAvailabilityService{})
	r := gin.New()
	r.POST("/blocked-dates/import", withAuth("admin-1", jwt.RoleStudioAdmin), h.ImportBlockedDates)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("owner_type", model.OwnerStudio)
	mw.WriteField("owner_id", testStudioID)
	mw.Close()

	req := httptest.NewRequest("POST", "/blocked-dates/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestCalendarHandler_Feed(t *testing.T) {
	h := NewCalendarHandler(&mockCalendarService{feed: []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")})
	r := gin.New()
	r.GET("/me/calendar.ics", withAuth(testLearnerID, jwt.RoleLearner), h.Feed)

	w := serve(r, "GET", "/me/calendar.ics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type 应为 text/calendar，实际 %q", ct)
	}
}

func TestExportHandler_ExportRoster(t *testing.T) {
	h := NewExportHandler(&mockExportService{})
	r := gin.New()
	r.GET("/export/roster", withAuth("admin-1", jwt.RoleStudioAdmin), h.ExportRoster)

	w := serve(r, "GET", "/export/roster?owner_type=studio&owner_id="+testStudioID+"&from=2025-12-22&to=2025-12-28", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "roster_2025-12-22_2025-12-28.xlsx") {
		t.Errorf("Content-Disposition 不符: %q", cd)
	}
	if w.Header().Get("Content-Type") != xlsxContentType {
		t.Errorf("Content-Type 不符: %q", w.Header().Get("Content-Type"))
	}
}

func TestExportHandler_ExportRoster_Errors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		err    error
		status int
	}{
		{"缺少区间", "owner_type=studio&owner_id=" + testStudioID, nil, http.StatusBadRequest},
		{"区间过长", "owner_type=studio&owner_id=" + testStudioID + "&from=2025-01-01&to=2025-12-31", service.ErrExportRange, http.StatusBadRequest},
		{"生成失败", "owner_type=studio&owner_id=" + testStudioID + "&from=2025-12-22&to=2025-12-28", service.ErrExportGenerateFail, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewExportHandler(&mockExportService{err: tt.err})
			r := gin.New()
			r.GET("/export/roster", withAuth("admin-1", jwt.RoleStudioAdmin), h.ExportRoster)
			if w := serve(r, "GET", "/export/roster?"+tt.query, nil); w.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, w.Code)
			}
		})
	}
}

// ═══════════════════════════════════════════════════════════
// SessionHandler Tests
// ═══════════════════════════════════════════════════════════

func TestSessionHandler_Logout(t *testing.T) {
	revoker := &mockRevoker{}
	h := NewSessionHandler(&mockOwnershipService{}, revoker)
	r := gin.New()
	r.POST("/auth/logout", withAuth(testLearnerID, jwt.RoleLearner), h.Logout)

	w := serve(r, "POST", "/auth/logout", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if revoker.jti != "test-jti" {
		t.Errorf("应吊销当前 Token，实际 jti=%q", revoker.jti)
	}
	if revoker.ttl <= 0 || revoker.ttl > 15*time.Minute {
		t.Errorf("TTL 应为 Token 剩余有效期，实际 %v", revoker.ttl)
	}
}

func TestSessionHandler_Logout_RevokerFailure(t *testing.T) {
	h := NewSessionHandler(&mockOwnershipService{}, &mockRevoker{err: errors.New("redis down")})
	r := gin.New()
	r.POST("/auth/logout", withAuth(testLearnerID, jwt.RoleLearner), h.Logout)

	if w := serve(r, "POST", "/auth/logout", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestSessionHandler_Me(t *testing.T) {
	h := NewSessionHandler(&mockOwnershipService{}, nil)
	r := gin.New()
	r.GET("/me", withAuth(testLearnerID, jwt.RoleLearner), h.Me)

	w := serve(r, "GET", "/me", nil)
	if !strings.Contains(w.Body.String(), testLearnerID) || !strings.Contains(w.Body.String(), `"role":"learner"`) {
		t.Errorf("响应不符: %s", w.Body.String())
	}
}
