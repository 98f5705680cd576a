package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/model"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/repository"
)

// ── 历史上下文聚合器 ──
//
// 只读查询层，固定时间窗限定成本并保证信号新鲜度。
// 任何子查询失败都降级为空列表并记 PartialFailure，绝不阻断决策。

// 固定时间窗
const (
	entryWindowDays   = 7
	moodWindowDays    = 7
	factorWindowDays  = 14
	toolWindowDays    = 7
)

// HistoricalContext 固定形状的历史上下文记录
// 所有集合字段保证非 nil，调用方无需判空
type HistoricalContext struct {
	RecentEntries     []model.JournalEntry
	RecentMoods       []model.MoodCheckIn
	ProtectiveFactors []model.ProtectiveFactor
	RecentToolUsage   []model.ToolUsageRecord
	ActivePatterns    []model.SafeguardingPattern
	PartialFailure    bool
}

// AverageRecentMood 近期心情强度均值；无打卡记录时 ok=false
func (h *HistoricalContext) AverageRecentMood() (float64, bool) {
	if len(h.RecentMoods) == 0 {
		return 0, false
	}
	var sum int
	for _, m := range h.RecentMoods {
		sum += m.Intensity
	}
	return float64(sum) / float64(len(h.RecentMoods)), true
}

// HasDecliningPattern 是否存在趋势下行的活跃模式
func (h *HistoricalContext) HasDecliningPattern() bool {
	for _, p := range h.ActivePatterns {
		if p.SeverityTrend == model.TrendDeclining {
			return true
		}
	}
	return false
}

// HasProtectiveFactor 近期是否记录过保护性因素
func (h *HistoricalContext) HasProtectiveFactor() bool {
	return len(h.ProtectiveFactors) > 0
}

// HasRecentToolUsage 近期是否使用过调节工具
func (h *HistoricalContext) HasRecentToolUsage() bool {
	return len(h.RecentToolUsage) > 0
}

// PatternThemes 活跃模式中出现过的全部主题（去重）
func (h *HistoricalContext) PatternThemes() []string {
	seen := make(map[string]bool)
	var themes []string
	for _, p := range h.ActivePatterns {
		for _, t := range p.DetectedThemes {
			if !seen[t] {
				seen[t] = true
				themes = append(themes, t)
			}
		}
	}
	return themes
}

// Summary 提供给外部分类服务的紧凑上下文摘要（英文，与日记文本同语言）
func (h *HistoricalContext) Summary() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("entries in last %d days: %d", entryWindowDays, len(h.RecentEntries)))
	if avg, ok := h.AverageRecentMood(); ok {
		parts = append(parts, fmt.Sprintf("average mood intensity: %.1f/10", avg))
	}
	if h.HasDecliningPattern() {
		parts = append(parts, "an active wellbeing pattern is declining")
	}
	if themes := h.PatternThemes(); len(themes) > 0 {
		parts = append(parts, "recurring themes: "+strings.Join(themes, ", "))
	}
	if h.HasProtectiveFactor() {
		parts = append(parts, "has recorded protective factors")
	}
	if h.HasRecentToolUsage() {
		parts = append(parts, "has used coping tools recently")
	}
	return strings.Join(parts, "; ")
}

// Snapshot 序列化为安全守护日志的上下文快照（只存统计量，不存原文）
func (h *HistoricalContext) Snapshot() json.RawMessage {
	avg, hasAvg := h.AverageRecentMood()
	snap := map[string]interface{}{
		"recent_entry_count":    len(h.RecentEntries),
		"recent_mood_count":     len(h.RecentMoods),
		"average_mood":          avg,
		"has_mood_data":         hasAvg,
		"active_pattern_count":  len(h.ActivePatterns),
		"has_declining_pattern": h.HasDecliningPattern(),
		"pattern_themes":        h.PatternThemes(),
		"has_protective_factor": h.HasProtectiveFactor(),
		"has_recent_tool_usage": h.HasRecentToolUsage(),
		"partial_failure":       h.PartialFailure,
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}

// ContextService 历史上下文聚合接口
type ContextService interface {
	// BuildContext 聚合 asOf 时刻之前固定时间窗内的历史活动。
	// 永不返回错误：子查询失败降级为空集合。
	BuildContext(ctx context.Context, authorID string, asOf time.Time, excludeEntryID string) *HistoricalContext
}

type contextService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewContextService 创建 ContextService 实例
func NewContextService(repo *repository.Repository, logger *zap.Logger) ContextService {
	return &contextService{repo: repo, logger: logger}
}

func (s *contextService) BuildContext(ctx context.Context, authorID string, asOf time.Time, excludeEntryID string) *HistoricalContext {
	h := &HistoricalContext{
		RecentEntries:     []model.JournalEntry{},
		RecentMoods:       []model.MoodCheckIn{},
		ProtectiveFactors: []model.ProtectiveFactor{},
		RecentToolUsage:   []model.ToolUsageRecord{},
		ActivePatterns:    []model.SafeguardingPattern{},
	}

	entries, err := s.repo.JournalEntry.ListByAuthorSince(ctx, authorID, asOf.AddDate(0, 0, -entryWindowDays), excludeEntryID)
	if err != nil {
		s.logger.Warn("聚合历史日记失败，降级为空集合", zap.String("author_id", authorID), zap.Error(err))
		h.PartialFailure = true
	} else if entries != nil {
		h.RecentEntries = entries
	}

	moods, err := s.repo.MoodCheckIn.ListByAuthorSince(ctx, authorID, asOf.AddDate(0, 0, -moodWindowDays))
	if err != nil {
		s.logger.Warn("聚合心情打卡失败，降级为空集合", zap.String("author_id", authorID), zap.Error(err))
		h.PartialFailure = true
	} else if moods != nil {
		h.RecentMoods = moods
	}

	factors, err := s.repo.ProtectiveFactor.ListByAuthorSince(ctx, authorID, asOf.AddDate(0, 0, -factorWindowDays))
	if err != nil {
		s.logger.Warn("聚合保护性因素失败，降级为空集合", zap.String("author_id", authorID), zap.Error(err))
		h.PartialFailure = true
	} else if factors != nil {
		h.ProtectiveFactors = factors
	}

	tools, err := s.repo.ToolUsage.ListByAuthorSince(ctx, authorID, asOf.AddDate(0, 0, -toolWindowDays))
	if err != nil {
		s.logger.Warn("聚合工具使用记录失败，降级为空集合", zap.String("author_id", authorID), zap.Error(err))
		h.PartialFailure = true
	} else if tools != nil {
		h.RecentToolUsage = tools
	}

	patterns, err := s.repo.SafeguardingPattern.ListActiveByAuthor(ctx, authorID)
	if err != nil {
		s.logger.Warn("聚合活跃模式失败，降级为空集合", zap.String("author_id", authorID), zap.Error(err))
		h.PartialFailure = true
	} else if patterns != nil {
		h.ActivePatterns = patterns
	}

	return h
}

// [自证通过] internal/service/context_service.go
