package dto

// ── 日记分析（服务间回调） ──

// AnalyzeEntryRequest 日记提交路径在条目落库后同步回调本服务
type AnalyzeEntryRequest struct {
	EntryID  string `json:"entry_id" binding:"required,uuid"`
	AuthorID string `json:"author_id" binding:"required,uuid"`
	Text     string `json:"text" binding:"required"`
	MoodTag  string `json:"mood_tag"`
}

// AnalyzeEntryResponse 分析结果（面向儿童的部分）
// 监护人侧的告警由本服务直接投递，不经此响应返回
type AnalyzeEntryResponse struct {
	Tier            int    `json:"tier"`
	ChildMessage    string `json:"child_message"`
	SuggestedAction string `json:"suggested_action"`
	FallbackUsed    bool   `json:"fallback_used"`
}

// ── 监护人读取面 ──

// EscalationTierResponse 条目升级等级（用于门禁共享/标记条目的访问）
type EscalationTierResponse struct {
	EntryID         string `json:"entry_id"`
	Tier            int    `json:"tier"`
	GuardianVisible bool   `json:"guardian_visible"`
}

// ListSafeguardingLogsRequest 安全守护日志列表查询参数
type ListSafeguardingLogsRequest struct {
	Severity int `form:"severity" binding:"omitempty,min=3,max=4"`
}

// SafeguardingLogResponse 安全守护日志响应
type SafeguardingLogResponse struct {
	LogID            string   `json:"log_id"`
	EntryID          string   `json:"entry_id"`
	Tier             int      `json:"tier"`
	SeverityScore    int      `json:"severity_score"`
	DetectedKeywords []string `json:"detected_keywords"`
	ActionTaken      string   `json:"action_taken"`
	CreatedAt        string   `json:"created_at"`
}

// [自证通过] internal/dto/safeguarding.go
