package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mxrcabrera/pilates-booking-sub001/pkg/civil"
)

// 课程状态
const (
	ClassReserved  = "reserved"
	ClassCompleted = "completed"
	ClassCancelled = "cancelled"
)

// 出勤状态
const (
	AttendancePending = "pending"
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
)

// ClassOccurrence 课程记录（一次预约）— 对应 class_occurrences
// 只做软删除，保留出勤与支付关联
type ClassOccurrence struct {
	ClassID     string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"class_id"`
	OwnerType   string         `gorm:"type:varchar(16);not null"                      json:"owner_type"`
	OwnerID     string         `gorm:"type:uuid;not null"                             json:"owner_id"`
	StaffID     *string        `gorm:"type:uuid"                                      json:"staff_id,omitempty"`
	LearnerID   *string        `gorm:"type:uuid"                                      json:"learner_id,omitempty"`
	ClassDate   time.Time      `gorm:"type:date;not null"                             json:"class_date"`
	StartTime   string         `gorm:"type:time;not null"                             json:"start_time"`
	Status      string         `gorm:"type:varchar(16);not null;default:'reserved'"   json:"status"`
	Attendance  string         `gorm:"type:varchar(16);not null;default:'pending'"    json:"attendance"`
	SeriesID    *string        `gorm:"type:uuid"                                      json:"series_id,omitempty"`
	Recurrence  datatypes.JSON `gorm:"type:jsonb"                                     json:"recurrence,omitempty"`
	IsTrial     bool           `gorm:"not null;default:false"                         json:"is_trial"`
	CancelledAt *time.Time     `json:"cancelled_at,omitempty"`
	SoftDeleteModel
}

// TableName 指定表名
func (ClassOccurrence) TableName() string { return "class_occurrences" }

// OccupiesSeat 是否占用名额：有学员且未取消
// 与 repository 中的占用查询条件保持一致
func (o *ClassOccurrence) OccupiesSeat() bool {
	return o.LearnerID != nil && o.Status != ClassCancelled
}

// Scope 课程所属范围
func (o *ClassOccurrence) Scope() OwnerScope {
	s := OwnerScope{OwnerType: o.OwnerType, OwnerID: o.OwnerID}
	if o.StaffID != nil {
		s.StaffID = *o.StaffID
	}
	return s
}

// HeldBy 是否为指定学员的有效预约
func (o *ClassOccurrence) HeldBy(learnerID string) bool {
	return o.OccupiesSeat() && *o.LearnerID == learnerID
}

// RecurrenceMeta 系列课程的周期信息，冗余存储在每条记录上
type RecurrenceMeta struct {
	Weekdays  []int  `json:"weekdays"`
	StartTime string `json:"start_time"`
	Iteration int    `json:"iteration"`
}

// EncodeRecurrence 序列化周期信息
func EncodeRecurrence(meta RecurrenceMeta) datatypes.JSON {
	b, _ := json.Marshal(meta)
	return datatypes.JSON(b)
}

// DecodeRecurrence 反序列化周期信息，无数据时 ok=false
func (o *ClassOccurrence) DecodeRecurrence() (meta RecurrenceMeta, ok bool) {
	if len(o.Recurrence) == 0 {
		return meta, false
	}
	if err := json.Unmarshal(o.Recurrence, &meta); err != nil {
		return meta, false
	}
	return meta, true
}

// ClassSeries 循环课程系列 — 对应 class_series
// 系列只是共享 series_id 的一组 ClassOccurrence，这里记录生成参数
type ClassSeries struct {
	SeriesID   string    `gorm:"type:uuid;primaryKey"          json:"series_id"`
	OwnerType  string    `gorm:"type:varchar(16);not null"     json:"owner_type"`
	OwnerID    string    `gorm:"type:uuid;not null"            json:"owner_id"`
	StaffID    *string   `gorm:"type:uuid"                     json:"staff_id,omitempty"`
	LearnerID  *string   `gorm:"type:uuid"                     json:"learner_id,omitempty"`
	Weekdays   IntArray  `gorm:"type:int[];not null"           json:"weekdays"`
	StartTime  string    `gorm:"type:time;not null"            json:"start_time"`
	AnchorDate time.Time `gorm:"type:date;not null"            json:"anchor_date"`
	Iterations int       `gorm:"not null"                      json:"iterations"`
	IsTrial    bool      `gorm:"not null;default:false"        json:"is_trial"`
	VersionedModel
}

// TableName 指定表名
func (ClassSeries) TableName() string { return "class_series" }

// Scope 系列所属范围
func (s *ClassSeries) Scope() OwnerScope {
	scope := OwnerScope{OwnerType: s.OwnerType, OwnerID: s.OwnerID}
	if s.StaffID != nil {
		scope.StaffID = *s.StaffID
	}
	return scope
}

// SlotKey 时段键：场馆范围（含教练）+ 日期 + 开始时刻
type SlotKey struct {
	Scope     OwnerScope
	Date      time.Time
	StartTime string
}

// AfterFind 统一数据库返回的时刻格式
func (o *ClassOccurrence) AfterFind(*gorm.DB) error {
	o.StartTime = civil.NormalizeClock(o.StartTime)
	return nil
}

// AfterFind 统一数据库返回的时刻格式
func (s *ClassSeries) AfterFind(*gorm.DB) error {
	s.StartTime = civil.NormalizeClock(s.StartTime)
	return nil
}
