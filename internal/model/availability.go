package model

import (
	"time"

	"gorm.io/gorm"

	"github.com/mxrcabrera/pilates-booking-sub001/pkg/civil"
)

// AvailabilityWindow 每周可预约窗口 — 对应 availability_windows
type AvailabilityWindow struct {
	WindowID  string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"window_id"`
	OwnerType string  `gorm:"type:varchar(16);not null"                      json:"owner_type"`
	OwnerID   string  `gorm:"type:uuid;not null"                             json:"owner_id"`
	StaffID   *string `gorm:"type:uuid"                                      json:"staff_id,omitempty"`
	DayOfWeek int     `gorm:"type:smallint;not null"                         json:"day_of_week"` // 0=周日 … 6=周六
	StartTime string  `gorm:"type:time;not null"                             json:"start_time"`
	EndTime   string  `gorm:"type:time;not null"                             json:"end_time"`
	IsActive  bool    `gorm:"not null;default:true"                          json:"is_active"`
	VersionedModel
}

// TableName 指定表名
func (AvailabilityWindow) TableName() string { return "availability_windows" }

// StaffKey 教练维度，空串表示不区分教练
func (w AvailabilityWindow) StaffKey() string {
	if w.StaffID == nil {
		return ""
	}
	return *w.StaffID
}

// AfterFind 统一数据库返回的时刻格式
func (w *AvailabilityWindow) AfterFind(*gorm.DB) error {
	w.StartTime = civil.NormalizeClock(w.StartTime)
	w.EndTime = civil.NormalizeClock(w.EndTime)
	return nil
}

// BlockedDate 封锁日期 — 对应 blocked_dates
type BlockedDate struct {
	BlockedDateID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"blocked_date_id"`
	OwnerType     string    `gorm:"type:varchar(16);not null"                      json:"owner_type"`
	OwnerID       string    `gorm:"type:uuid;not null"                             json:"owner_id"`
	BlockedOn     time.Time `gorm:"type:date;not null"                             json:"blocked_on"`
	Reason        string    `gorm:"type:varchar(200)"                              json:"reason,omitempty"`
	SoftDeleteModel
}

// TableName 指定表名
func (BlockedDate) TableName() string { return "blocked_dates" }
