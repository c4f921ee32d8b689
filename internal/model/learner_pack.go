package model

import "time"

// LearnerPack 学员课包 — 对应 learner_packs
// 由订阅服务维护，预约引擎只读
type LearnerPack struct {
	PackID      string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"pack_id"`
	LearnerID   string    `gorm:"type:uuid;not null"                             json:"learner_id"`
	OwnerType   string    `gorm:"type:varchar(16);not null"                      json:"owner_type"`
	OwnerID     string    `gorm:"type:uuid;not null"                             json:"owner_id"`
	Name        string    `gorm:"type:varchar(100);not null"                     json:"name"`
	WeeklyQuota *int      `json:"weekly_quota,omitempty"` // NULL 表示不限次数
	IsActive    bool      `gorm:"not null;default:true"                          json:"is_active"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
}

// TableName 指定表名
func (LearnerPack) TableName() string { return "learner_packs" }

// Unlimited 是否不限次数
func (p *LearnerPack) Unlimited() bool { return p.WeeklyQuota == nil }
