package model

import "time"

// 场馆类型
const (
	OwnerInstructor = "instructor"
	OwnerStudio     = "studio"
)

// OwnerScope 一次预约操作所属的场馆范围
// 工作室范围下可以指定具体教练（StaffID），教练范围下 StaffID 为空
type OwnerScope struct {
	OwnerType string `json:"owner_type"`
	OwnerID   string `json:"owner_id"`
	StaffID   string `json:"staff_id,omitempty"`
}

// Owner 去掉教练维度后的场馆范围
func (s OwnerScope) Owner() OwnerScope {
	return OwnerScope{OwnerType: s.OwnerType, OwnerID: s.OwnerID}
}

// WithStaff 返回指定教练的范围
func (s OwnerScope) WithStaff(staffID string) OwnerScope {
	s.StaffID = staffID
	return s
}

// StaffRef 转为可空列值
func (s OwnerScope) StaffRef() *string {
	if s.StaffID == "" {
		return nil
	}
	id := s.StaffID
	return &id
}

// Valid 结构性校验
func (s OwnerScope) Valid() bool {
	if s.OwnerID == "" {
		return false
	}
	if s.OwnerType == OwnerInstructor {
		return s.StaffID == ""
	}
	return s.OwnerType == OwnerStudio
}

func (s OwnerScope) String() string {
	if s.StaffID == "" {
		return s.OwnerType + ":" + s.OwnerID
	}
	return s.OwnerType + ":" + s.OwnerID + "/" + s.StaffID
}

// OwnerSetting 场馆预约参数 — 对应 owner_settings
type OwnerSetting struct {
	OwnerType           string    `gorm:"type:varchar(16);primaryKey"   json:"owner_type"`
	OwnerID             string    `gorm:"type:uuid;primaryKey"          json:"owner_id"`
	Timezone            string    `gorm:"type:varchar(64);not null"     json:"timezone"`
	SlotCapacity        int       `gorm:"not null"                      json:"slot_capacity"`
	AnticipationMinutes int       `gorm:"not null;default:0"            json:"anticipation_minutes"`
	Version             int       `gorm:"not null;default:1"            json:"version"`
	CreatedAt           time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	CreatedBy           *string   `gorm:"type:uuid"                     json:"created_by,omitempty"`
	UpdatedAt           time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	UpdatedBy           *string   `gorm:"type:uuid"                     json:"updated_by,omitempty"`
}

// TableName 指定表名
func (OwnerSetting) TableName() string { return "owner_settings" }

// StudioStaff 工作室教练成员 — 对应 studio_staff
type StudioStaff struct {
	StudioID     string    `gorm:"type:uuid;primaryKey"         json:"studio_id"`
	InstructorID string    `gorm:"type:uuid;primaryKey"         json:"instructor_id"`
	IsAdmin      bool      `gorm:"not null;default:false"       json:"is_admin"` // 可管理整个工作室
	IsActive     bool      `gorm:"not null;default:true"        json:"is_active"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (StudioStaff) TableName() string { return "studio_staff" }

// LearnerLink 学员与场馆的关联 — 对应 learner_links
type LearnerLink struct {
	LinkID    string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"link_id"`
	LearnerID string `gorm:"type:uuid;not null"                             json:"learner_id"`
	OwnerType string `gorm:"type:varchar(16);not null"                      json:"owner_type"`
	OwnerID   string `gorm:"type:uuid;not null"                             json:"owner_id"`
	IsActive  bool   `gorm:"not null;default:true"                          json:"is_active"`
	SoftDeleteModel
}

// TableName 指定表名
func (LearnerLink) TableName() string { return "learner_links" }

// Scope 关联对应的场馆范围
func (l LearnerLink) Scope() OwnerScope {
	return OwnerScope{OwnerType: l.OwnerType, OwnerID: l.OwnerID}
}
