package model

import (
	"time"

	"gorm.io/gorm"

	"github.com/mxrcabrera/pilates-booking-sub001/pkg/civil"
)

// 候补状态
const (
	WaitlistWaiting   = "waiting"
	WaitlistCancelled = "cancelled"
)

// WaitlistEntry 候补记录 — 对应 waitlist_entries
// Position 创建时分配，之后不再重排
type WaitlistEntry struct {
	EntryID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"entry_id"`
	OwnerType string    `gorm:"type:varchar(16);not null"                      json:"owner_type"`
	OwnerID   string    `gorm:"type:uuid;not null"                             json:"owner_id"`
	StaffID   *string   `gorm:"type:uuid"                                      json:"staff_id,omitempty"`
	LearnerID string    `gorm:"type:uuid;not null"                             json:"learner_id"`
	ClassDate time.Time `gorm:"type:date;not null"                             json:"class_date"`
	StartTime string    `gorm:"type:time;not null"                             json:"start_time"`
	Position  int       `gorm:"not null"                                       json:"position"`
	Status    string    `gorm:"type:varchar(16);not null;default:'waiting'"    json:"status"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
}

// TableName 指定表名
func (WaitlistEntry) TableName() string { return "waitlist_entries" }

// Scope 候补所属范围
func (e *WaitlistEntry) Scope() OwnerScope {
	s := OwnerScope{OwnerType: e.OwnerType, OwnerID: e.OwnerID}
	if e.StaffID != nil {
		s.StaffID = *e.StaffID
	}
	return s
}

// AfterFind 统一数据库返回的时刻格式
func (e *WaitlistEntry) AfterFind(*gorm.DB) error {
	e.StartTime = civil.NormalizeClock(e.StartTime)
	return nil
}

// Key 候补对应的时段
func (e *WaitlistEntry) Key() SlotKey {
	return SlotKey{Scope: e.Scope(), Date: e.ClassDate, StartTime: e.StartTime}
}
