package dto

// ── 循环课程模块 DTO ──

// 系列编辑范围
const (
	EditScopeFuture                   = "future"
	EditScopeFuturePlusUnattendedPast = "future_plus_unattended_past"
)

// CreateSeriesRequest 生成循环课程
type CreateSeriesRequest struct {
	ScopeRequest
	LearnerID  string `json:"learner_id"  binding:"omitempty,uuid"`
	Weekdays   []int  `json:"weekdays"    binding:"required,min=1,max=7,dive,min=0,max=6"`
	StartTime  string `json:"start_time"  binding:"required,clock"`
	AnchorDate string `json:"anchor_date" binding:"required,civildate"`
	Iterations int    `json:"iterations"  binding:"omitempty,min=1,max=52"`
	IsTrial    bool   `json:"is_trial"`
}

// EditSeriesRequest 编辑循环课程
type EditSeriesRequest struct {
	Weekdays  []int  `json:"weekdays"   binding:"required,min=1,max=7,dive,min=0,max=6"`
	StartTime string `json:"start_time" binding:"required,clock"`
	Scope     string `json:"scope"      binding:"required,oneof=future future_plus_unattended_past"`
}

// SeriesResponse 系列生成/编辑结果
type SeriesResponse struct {
	SeriesID    string            `json:"series_id"`
	Weekdays    []int             `json:"weekdays"`
	StartTime   string            `json:"start_time"`
	Created     int               `json:"created"`
	Skipped     int               `json:"skipped"`
	Updated     int               `json:"updated"`
	Removed     int               `json:"removed"`
	Occurrences []BookingResponse `json:"occurrences"`
}
