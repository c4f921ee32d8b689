package dto

// ── 时段与预约模块 DTO ──

// SlotListRequest 时段查询参数
type SlotListRequest struct {
	ScopeRequest
	AllStaff bool `form:"all_staff"`
	Weeks    int  `form:"weeks" binding:"omitempty,min=1,max=12"`
}

// SlotResponse 可预约时段
type SlotResponse struct {
	Date      string `json:"date"`       // "2025-12-23"
	StartTime string `json:"start_time"` // "09:00"
	StaffID   string `json:"staff_id,omitempty"`
	Occupied  int    `json:"occupied"`
	Capacity  int    `json:"capacity"`
	Available int    `json:"available"`
	HeldByMe  bool   `json:"held_by_me"`
}

// BookRequest 预约请求
type BookRequest struct {
	ScopeRequest
	Date      string `json:"date"       binding:"required,civildate"`
	StartTime string `json:"start_time" binding:"required,clock"`
	IsTrial   bool   `json:"is_trial"`
}

// BookingResponse 预约记录
type BookingResponse struct {
	ID         string `json:"id"`
	OwnerType  string `json:"owner_type"`
	OwnerID    string `json:"owner_id"`
	StaffID    string `json:"staff_id,omitempty"`
	LearnerID  string `json:"learner_id,omitempty"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	Status     string `json:"status"`
	Attendance string `json:"attendance"`
	SeriesID   string `json:"series_id,omitempty"`
	IsTrial    bool   `json:"is_trial"`
	CreatedAt  string `json:"created_at"`
}

// AttendanceRequest 出勤登记
type AttendanceRequest struct {
	Attendance string `json:"attendance" binding:"required,oneof=present absent"`
}
