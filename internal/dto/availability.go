package dto

// ── 场馆配置模块 DTO ──

// CreateWindowRequest 新增每周窗口
type CreateWindowRequest struct {
	ScopeRequest
	DayOfWeek int    `json:"day_of_week" binding:"min=0,max=6"` // 0=周日
	StartTime string `json:"start_time"  binding:"required,clock"`
	EndTime   string `json:"end_time"    binding:"required,clock"`
}

// WindowResponse 每周窗口
type WindowResponse struct {
	ID        string `json:"id"`
	StaffID   string `json:"staff_id,omitempty"`
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsActive  bool   `json:"is_active"`
}

// CreateBlockedDateRequest 新增封锁日期
type CreateBlockedDateRequest struct {
	ScopeRequest
	Date   string `json:"date"   binding:"required,civildate"`
	Reason string `json:"reason" binding:"omitempty,max=200"`
}

// BlockedDateResponse 封锁日期
type BlockedDateResponse struct {
	ID     string `json:"id"`
	Date   string `json:"date"`
	Reason string `json:"reason,omitempty"`
}

// OwnerSettingResponse 场馆预约参数
type OwnerSettingResponse struct {
	OwnerType           string `json:"owner_type"`
	OwnerID             string `json:"owner_id"`
	Timezone            string `json:"timezone"`
	SlotCapacity        int    `json:"slot_capacity"`
	AnticipationMinutes int    `json:"anticipation_minutes"`
	Version             int    `json:"version"`
}

// UpdateOwnerSettingRequest 更新场馆预约参数，Version 为读取时的版本号
type UpdateOwnerSettingRequest struct {
	Timezone            *string `json:"timezone"             binding:"omitempty,min=1,max=64"`
	SlotCapacity        *int    `json:"slot_capacity"        binding:"omitempty,min=1,max=200"`
	AnticipationMinutes *int    `json:"anticipation_minutes" binding:"omitempty,min=0,max=10080"`
	Version             int     `json:"version"              binding:"min=0"`
}
