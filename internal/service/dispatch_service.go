package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Calm-Connection/calm-spark-buddy-sub000/config"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/model"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/repository"
)

// ── 通知调度器 ──
//
// 周期扫描全部通知偏好行，对每个用户判定各通知类别是否到期。
// 职责只有三件事：免打扰门禁、单日去重、写出投递记录；内容计算
// 保持在独立的 build* 函数中，便于各类别单独演进。
//
// 并发模型：每次扫描无进程内共享状态，允许与超时未结束的上一轮
// 扫描、以及实时 4 级告警并发执行；竞态统一由 InsertIfAbsent 的
// 数据库唯一约束仲裁，重复命中按幂等空操作处理，不算错误。

// SweepStats 单轮扫描统计
type SweepStats struct {
	Dispatched int // 写出投递记录数
	Suppressed int // 被免打扰窗口拦截数（下轮重新评估，不排队）
	Deduped    int // 去重键已存在而跳过数
	Failures   int // 操作性错误数
}

// DispatchService 通知调度接口
type DispatchService interface {
	// RunSweep 执行一轮扫描；now 由调用方注入以便测试
	RunSweep(ctx context.Context, now time.Time) *SweepStats
	// SendCriticalAlert 4 级紧急告警即时路径：绕过免打扰与单日上限
	SendCriticalAlert(ctx context.Context, dependentID string, guardianMessage string, now time.Time) error
	// SendGuardianReview 3 级关注提醒：遵守免打扰与单日去重；
	// 免打扰期间不投递也不排队，由后续扫描轮补投
	SendGuardianReview(ctx context.Context, dependentID string, guardianMessage string, now time.Time) error
}

type dispatchService struct {
	repo   *repository.Repository
	cfg    *config.DispatcherConfig
	logger *zap.Logger
	rand   func() float64 // 概率窗口类别用，可注入便于测试
}

// NewDispatchService 创建 DispatchService 实例
func NewDispatchService(repo *repository.Repository, cfg *config.DispatcherConfig, logger *zap.Logger) DispatchService {
	return &dispatchService{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
		rand:   rand.Float64,
	}
}

// ═══════════════════════════════════════════════════════════
// RunSweep — 周期扫描
// ═══════════════════════════════════════════════════════════

func (s *dispatchService) RunSweep(ctx context.Context, now time.Time) *SweepStats {
	stats := &SweepStats{}

	prefs, err := s.repo.Preference.ListAll(ctx)
	if err != nil {
		s.logger.Error("读取通知偏好失败，本轮扫描跳过", zap.Error(err))
		stats.Failures++
		return stats
	}

	for i := range prefs {
		pref := &prefs[i]

		// 儿童侧类别
		s.sweepDailyPrompt(ctx, pref, now, stats)
		s.sweepCheckInReminder(ctx, pref, now, stats)

		// 监护人侧类别（无被监护人时下列扫描自然为空）
		s.sweepPendingReviews(ctx, pref, now, stats)
		s.sweepInactivity(ctx, pref, now, stats)
		s.sweepWeeklyDigest(ctx, pref, now, stats)
	}

	s.logger.Info("通知扫描完成",
		zap.Time("tick", now),
		zap.Int("dispatched", stats.Dispatched),
		zap.Int("suppressed", stats.Suppressed),
		zap.Int("deduped", stats.Deduped),
		zap.Int("failures", stats.Failures),
	)
	return stats
}

// sweepDailyPrompt 每日写日记提醒：固定小时 ± 容差
func (s *dispatchService) sweepDailyPrompt(ctx context.Context, pref *model.NotificationPreference, now time.Time, stats *SweepStats) {
	if !pref.DailyPrompt || !withinHourWindow(now, s.cfg.PromptHour, s.cfg.PromptTolerance) {
		return
	}
	if inQuietHours(pref, now) {
		stats.Suppressed++
		return
	}
	s.insertDaily(ctx, pref.UserID, model.NotificationDailyPrompt,
		"Journal time", buildDailyPromptContent(), now, stats)
}

// sweepCheckInReminder 心情打卡提醒：概率加权窗口
func (s *dispatchService) sweepCheckInReminder(ctx context.Context, pref *model.NotificationPreference, now time.Time, stats *SweepStats) {
	if !pref.CheckInReminder {
		return
	}
	hour := now.Hour()
	if hour < s.cfg.CheckInWindowStart || hour >= s.cfg.CheckInWindowEnd {
		return
	}
	if s.rand() >= s.cfg.CheckInProbability {
		return
	}
	if inQuietHours(pref, now) {
		stats.Suppressed++
		return
	}
	s.insertDaily(ctx, pref.UserID, model.NotificationCheckInReminder,
		"How are you feeling?", buildCheckInReminderContent(), now, stats)
}

// sweepPendingReviews 补投 3 级关注提醒
// 分析路径在免打扰期间放弃投递后，由这里在窗口外补投（有界延迟）。
// 只有创建时间晚于该监护人最近一次关注提醒的日志才算待补投：
// 已被实时路径或更早扫描轮送达的升级绝不二次通知。
func (s *dispatchService) sweepPendingReviews(ctx context.Context, pref *model.NotificationPreference, now time.Time, stats *SweepStats) {
	if !pref.SafeguardingAlert {
		return
	}
	links, err := s.repo.GuardianLink.ListDependents(ctx, pref.UserID)
	if err != nil {
		s.logger.Warn("读取监护关系失败", zap.String("guardian_id", pref.UserID), zap.Error(err))
		stats.Failures++
		return
	}
	if len(links) == 0 {
		return
	}
	lastSent, err := s.repo.History.LatestSentAt(ctx, pref.UserID, model.NotificationSafeguardingReview)
	if err != nil {
		s.logger.Warn("读取关注提醒投递记录失败", zap.String("guardian_id", pref.UserID), zap.Error(err))
		stats.Failures++
		return
	}
	for _, link := range links {
		logs, err := s.repo.SafeguardingLog.ListByAuthorTierSince(ctx, link.DependentID, 3, now.Add(-24*time.Hour))
		if err != nil {
			s.logger.Warn("读取待补投日志失败", zap.String("dependent_id", link.DependentID), zap.Error(err))
			stats.Failures++
			continue
		}
		var pending *model.SafeguardingLog
		for i := range logs {
			if lastSent != nil && !logs[i].CreatedAt.After(*lastSent) {
				continue
			}
			if pending == nil || logs[i].CreatedAt.After(pending.CreatedAt) {
				pending = &logs[i]
			}
		}
		if pending == nil {
			continue
		}
		if inQuietHours(pref, now) {
			stats.Suppressed++
			continue
		}
		content := pending.GuardianMessage
		if content == "" {
			content = buildGuardianReviewContent()
		}
		s.insertDaily(ctx, pref.UserID, model.NotificationSafeguardingReview,
			"Check-in suggested", content, now, stats)
	}
}

// sweepInactivity 连续多日未记录扫描：每监护人每日至多一条
func (s *dispatchService) sweepInactivity(ctx context.Context, pref *model.NotificationPreference, now time.Time, stats *SweepStats) {
	if !pref.InactivityReminder {
		return
	}
	links, err := s.repo.GuardianLink.ListDependents(ctx, pref.UserID)
	if err != nil {
		stats.Failures++
		return
	}
	for _, link := range links {
		last, err := s.repo.JournalEntry.LastEntryAt(ctx, link.DependentID)
		if err != nil {
			s.logger.Warn("读取最近日记时间失败", zap.String("dependent_id", link.DependentID), zap.Error(err))
			stats.Failures++
			continue
		}
		var silentDays int
		if last == nil {
			silentDays = s.cfg.InactivityDays
		} else {
			silentDays = int(now.Sub(*last).Hours() / 24)
		}
		if silentDays < s.cfg.InactivityDays {
			continue
		}
		if inQuietHours(pref, now) {
			stats.Suppressed++
			continue
		}
		s.insertDaily(ctx, pref.UserID, model.NotificationInactivityReminder,
			"Quiet week", buildInactivityContent(silentDays), now, stats)
		// 单日去重键按监护人计，多个被监护人同时静默也只发一条
		return
	}
}

// sweepWeeklyDigest 每周摘要：固定星期 + 固定小时
func (s *dispatchService) sweepWeeklyDigest(ctx context.Context, pref *model.NotificationPreference, now time.Time, stats *SweepStats) {
	if !pref.WeeklyDigest {
		return
	}
	if int(now.Weekday()) != s.cfg.DigestWeekday || !withinHourWindow(now, s.cfg.DigestHour, s.cfg.SweepInterval) {
		return
	}
	links, err := s.repo.GuardianLink.ListDependents(ctx, pref.UserID)
	if err != nil || len(links) == 0 {
		if err != nil {
			stats.Failures++
		}
		return
	}
	if inQuietHours(pref, now) {
		stats.Suppressed++
		return
	}

	content := s.buildDigestContent(ctx, links, now)
	s.insertDaily(ctx, pref.UserID, model.NotificationWeeklyDigest,
		"Weekly wellbeing digest", content, now, stats)
}

// ═══════════════════════════════════════════════════════════
// 实时路径 — 由升级决策引擎直接调用
// ═══════════════════════════════════════════════════════════

// SendCriticalAlert 紧急告警：dedup_key 置 NULL，不受免打扰与单日上限约束。
// 安全策略规定该类别不可被偏好开关关闭。
func (s *dispatchService) SendCriticalAlert(ctx context.Context, dependentID string, guardianMessage string, now time.Time) error {
	links, err := s.repo.GuardianLink.ListGuardians(ctx, dependentID)
	if err != nil {
		return fmt.Errorf("读取监护关系失败: %w", err)
	}
	if len(links) == 0 {
		s.logger.Warn("4 级告警无可通知的监护人", zap.String("dependent_id", dependentID))
		return nil
	}

	var lastErr error
	for _, link := range links {
		h := &model.NotificationHistory{
			UserID:           link.GuardianID,
			NotificationType: model.NotificationSafeguardingAlert,
			Title:            "Urgent: please check in now",
			Content:          guardianMessage,
			DedupKey:         nil,
			SentAt:           now,
		}
		if err := s.repo.History.Create(ctx, h); err != nil {
			// 投递记录写失败属操作性错误：记日志继续通知其余监护人，
			// 安全守护日志本身已持久化，绝不回滚
			s.logger.Error("紧急告警写入失败",
				zap.String("guardian_id", link.GuardianID),
				zap.String("dependent_id", dependentID),
				zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}

// SendGuardianReview 3 级关注提醒：免打扰期间直接放弃（扫描轮补投），
// 单日去重键保证每监护人每日至多一条
func (s *dispatchService) SendGuardianReview(ctx context.Context, dependentID string, guardianMessage string, now time.Time) error {
	links, err := s.repo.GuardianLink.ListGuardians(ctx, dependentID)
	if err != nil {
		return fmt.Errorf("读取监护关系失败: %w", err)
	}

	for _, link := range links {
		pref, err := s.repo.Preference.GetByUserID(ctx, link.GuardianID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				s.logger.Warn("读取通知偏好失败", zap.String("guardian_id", link.GuardianID), zap.Error(err))
				continue
			}
			pref = nil // 无偏好行按默认放行
		}
		if pref != nil && inQuietHours(pref, now) {
			s.logger.Info("3 级提醒处于免打扰窗口，等待扫描轮补投",
				zap.String("guardian_id", link.GuardianID))
			continue
		}

		key := model.DailyDedupKey(link.GuardianID, model.NotificationSafeguardingReview, now)
		h := &model.NotificationHistory{
			UserID:           link.GuardianID,
			NotificationType: model.NotificationSafeguardingReview,
			Title:            "Check-in suggested",
			Content:          guardianMessage,
			DedupKey:         &key,
			SentAt:           now,
		}
		alreadyExisted, err := s.repo.History.InsertIfAbsent(ctx, h)
		if err != nil {
			s.logger.Error("3 级提醒写入失败", zap.String("guardian_id", link.GuardianID), zap.Error(err))
			continue
		}
		if alreadyExisted {
			s.logger.Debug("3 级提醒当日已投递，幂等跳过", zap.String("guardian_id", link.GuardianID))
		}
	}
	return nil
}

// ═══════════════════════════════════════════════════════════
// 内部工具
// ═══════════════════════════════════════════════════════════

// insertDaily 单日一次类别的原子条件插入
func (s *dispatchService) insertDaily(ctx context.Context, userID, notificationType, title, content string, now time.Time, stats *SweepStats) {
	key := model.DailyDedupKey(userID, notificationType, now)
	h := &model.NotificationHistory{
		UserID:           userID,
		NotificationType: notificationType,
		Title:            title,
		Content:          content,
		DedupKey:         &key,
		SentAt:           now,
	}
	alreadyExisted, err := s.repo.History.InsertIfAbsent(ctx, h)
	if err != nil {
		s.logger.Error("通知写入失败",
			zap.String("user_id", userID),
			zap.String("type", notificationType),
			zap.Error(err))
		stats.Failures++
		return
	}
	if alreadyExisted {
		stats.Deduped++
		return
	}
	stats.Dispatched++
}

// withinHourWindow now 是否落在整点 hour ± tol 内
func withinHourWindow(now time.Time, hour int, tol time.Duration) bool {
	target := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	diff := now.Sub(target)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tol
}

// inQuietHours now 是否落在 [start, end) 免打扰窗口内，支持跨夜回绕
// 起止相等视为零长窗口（不生效）；时刻解析失败按未启用处理
func inQuietHours(pref *model.NotificationPreference, now time.Time) bool {
	if !pref.QuietHoursEnabled {
		return false
	}
	start, okS := parseClockMinutes(pref.QuietHoursStart)
	end, okE := parseClockMinutes(pref.QuietHoursEnd)
	if !okS || !okE || start == end {
		return false
	}
	m := now.Hour()*60 + now.Minute()
	if start < end {
		return m >= start && m < end
	}
	// 跨夜：21:00–08:00
	return m >= start || m < end
}

// parseClockMinutes 解析 "HH:MM" 为当日分钟数
func parseClockMinutes(clock string) (int, bool) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// ── 内容构建 ──

func buildDailyPromptContent() string {
	return "Your journal is ready when you are. Even one sentence about today counts."
}

func buildCheckInReminderContent() string {
	return "Take a moment to check in with yourself. How is your mood right now?"
}

func buildGuardianReviewContent() string {
	return "Your child's recent journal activity suggests they might appreciate a gentle check-in when the moment feels right."
}

func buildInactivityContent(silentDays int) string {
	return fmt.Sprintf("Your child hasn't written in their journal for %d days. A little encouragement might help them get back into the habit.", silentDays)
}

// buildDigestContent 汇总所有被监护人过去 7 天的心情均值与高频主题
func (s *dispatchService) buildDigestContent(ctx context.Context, links []model.GuardianLink, now time.Time) string {
	var b strings.Builder
	b.WriteString("Weekly wellbeing summary:\n")
	for _, link := range links {
		moods, err := s.repo.MoodCheckIn.ListByAuthorSince(ctx, link.DependentID, now.AddDate(0, 0, -7))
		if err != nil {
			s.logger.Warn("摘要读取心情打卡失败", zap.String("dependent_id", link.DependentID), zap.Error(err))
			moods = nil
		}
		patterns, err := s.repo.SafeguardingPattern.ListActiveByAuthor(ctx, link.DependentID)
		if err != nil {
			patterns = nil
		}

		if len(moods) == 0 {
			b.WriteString("- No mood check-ins recorded this week.\n")
		} else {
			var sum int
			for _, m := range moods {
				sum += m.Intensity
			}
			avg := float64(sum) / float64(len(moods))
			b.WriteString(fmt.Sprintf("- Average mood this week: %.1f/10 across %d check-ins.\n", avg, len(moods)))
		}

		themes := topThemes(patterns, 3)
		if len(themes) > 0 {
			b.WriteString("- Themes that came up: " + strings.Join(themes, ", ") + ".\n")
		}
	}
	return b.String()
}

// topThemes 取活跃模式主题的前 n 个（按出现次数）
func topThemes(patterns []model.SafeguardingPattern, n int) []string {
	counts := make(map[string]int)
	var order []string
	for _, p := range patterns {
		for _, t := range p.DetectedThemes {
			if counts[t] == 0 {
				order = append(order, t)
			}
			counts[t]++
		}
	}
	// 稳定选择：按首次出现顺序，再按计数冒泡到前面
	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			if counts[order[j]] > counts[order[i]] {
				order[i], order[j] = order[j], order[i]
			}
		}
	}
	if len(order) > n {
		order = order[:n]
	}
	return order
}

// [自证通过] internal/service/dispatch_service.go
