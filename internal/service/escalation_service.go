package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Calm-Connection/calm-spark-buddy-sub000/config"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/dto"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/model"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/repository"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/pkg/redis"
)

// ── 安全守护模块业务错误 ──

var (
	ErrEntryNotFound = errors.New("日记条目不存在")
	ErrNotGuardian   = errors.New("非该儿童账户的监护人")
)

// EscalationDecision 对单条日记的升级判定（计算结果，本体不落库）
type EscalationDecision struct {
	Tier             int
	Rule             string // 命中的规则名，写入 action_taken 与操作日志
	ChildMessage     string
	GuardianMessage  string // 为空表示不通知监护人
	SuggestedAction  string
	BypassQuietHours bool
	FallbackUsed     bool // 分类器不可用，走了关键词兜底路径
	DetectedKeywords []string
	SeverityScore    int
}

// SafeguardingService 安全守护业务接口
type SafeguardingService interface {
	// AnalyzeEntry 日记落库后的同步分析入口；对同一条目可安全重入
	AnalyzeEntry(ctx context.Context, req *dto.AnalyzeEntryRequest) (*dto.AnalyzeEntryResponse, error)
	// GetEscalationTier 查询条目升级等级，用于门禁监护人对共享/标记条目的访问
	GetEscalationTier(ctx context.Context, entryID string) (*dto.EscalationTierResponse, error)
	// ListSafeguardingLogs 监护人面板的日志读取面
	ListSafeguardingLogs(ctx context.Context, dependentID string, severityFilter int) ([]dto.SafeguardingLogResponse, error)
	// AssertGuardian 校验监护关系；admin 角色豁免
	AssertGuardian(ctx context.Context, guardianID, role, dependentID string) error
}

type safeguardingService struct {
	repo       *repository.Repository
	contextSvc ContextService
	classifier Classifier // nil 表示分类器停用，始终走兜底路径
	dispatch   DispatchService
	cache      *redis.Client // nil 表示缓存降级
	cfg        *config.ClassifierConfig
	logger     *zap.Logger
	now        func() time.Time
	sleep      func(time.Duration) // 重试退避，可注入便于测试
}

// NewSafeguardingService 创建 SafeguardingService 实例
func NewSafeguardingService(
	repo *repository.Repository,
	contextSvc ContextService,
	classifier Classifier,
	dispatch DispatchService,
	cache *redis.Client,
	cfg *config.ClassifierConfig,
	logger *zap.Logger,
) SafeguardingService {
	return &safeguardingService{
		repo:       repo,
		contextSvc: contextSvc,
		classifier: classifier,
		dispatch:   dispatch,
		cache:      cache,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// ═══════════════════════════════════════════════════════════
// 决策规则表 — 严格有序，首个命中即生效
// ═══════════════════════════════════════════════════════════
//
// 顺序即契约：更强的信号永远不会输给同时出现的更弱信号。
// 4 级仅凭检测器即可到达，与分类器可用性无关。
// 缓解信号（保护性因素、工具使用）只软化 2/3 级的建议文案，
// 永不降级、永不压制升级。

// 固定主题集
var (
	recurringConcernThemes = []string{
		"loneliness", "isolation", "hopelessness", "fear",
		"self-worth", "family conflict",
	}
	moderateThemes = []string{
		"school stress", "friendship", "bullying",
		"sadness", "worry", "body image",
	}
)

// ruleInput 规则评估输入（verdict 为 nil 表示分类器不可用）
type ruleInput struct {
	det     *DetectionResult
	verdict *ClassifierVerdict
	hist    *HistoricalContext
}

// allThemes 分类器主题与活跃模式主题的并集
func (in *ruleInput) allThemes() []string {
	themes := in.hist.PatternThemes()
	if in.verdict != nil {
		themes = append(themes, in.verdict.Themes...)
	}
	return themes
}

type tierRule struct {
	name  string
	tier  int
	match func(in *ruleInput) bool
}

// tierRules 正常路径规则表（分类器可用时评估）。
// C 档关键词在进入本表前已被短路判定为 4 级，表内不再重复。
var tierRules = []tierRule{
	{
		name: "critical_classifier",
		tier: 4,
		match: func(in *ruleInput) bool {
			return in.verdict.Escalate && in.verdict.MoodScore <= 3
		},
	},
	{
		name: "significant_declining_pattern",
		tier: 3,
		match: func(in *ruleInput) bool {
			return in.hist.HasDecliningPattern() && in.verdict.MoodScore < 5
		},
	},
	{
		name: "significant_classifier",
		tier: 3,
		match: func(in *ruleInput) bool {
			return in.verdict.Escalate && in.verdict.MoodScore <= 5
		},
	},
	{
		name: "significant_low_mood_trend",
		tier: 3,
		match: func(in *ruleInput) bool {
			avg, ok := in.hist.AverageRecentMood()
			return ok && avg < 5 && in.verdict.MoodScore < 5
		},
	},
	{
		name: "significant_recurring_theme",
		tier: 3,
		match: func(in *ruleInput) bool {
			return len(in.hist.RecentEntries) >= 3 &&
				themesIntersect(in.allThemes(), recurringConcernThemes)
		},
	},
	{
		name: "moderate",
		tier: 2,
		match: func(in *ruleInput) bool {
			return in.verdict.MoodScore < 6 ||
				themesIntersect(in.allThemes(), moderateThemes) ||
				in.det.Tier == DetectorTierB ||
				len(in.det.ContextSensitiveFlags) > 0
		},
	},
	{
		name: "default_supportive",
		tier: 1,
		match: func(in *ruleInput) bool {
			return true
		},
	},
}

// decideTier 按序评估规则表，返回首个命中
func decideTier(in *ruleInput) (int, string) {
	if in.verdict == nil {
		// 兜底路径：仅凭检测器分档。C 档强制 4 级；
		// B 档或歧义搭配给 2 级；完全无风险信号给 1 级。
		// 无论结果如何都带 fallback 标记，不存在"静默 1 级"
		switch {
		case in.det.Tier == DetectorTierC:
			// C 档短路路径与真兜底共用此分支，规则名保持一致
			return 4, "critical_keyword"
		case in.det.Tier == DetectorTierB || len(in.det.ContextSensitiveFlags) > 0:
			return 2, "moderate_fallback"
		default:
			return 1, "default_fallback"
		}
	}
	for _, rule := range tierRules {
		if rule.match(in) {
			return rule.tier, rule.name
		}
	}
	return 1, "default_supportive" // 不可达：末条规则恒真
}

func themesIntersect(themes, fixed []string) bool {
	for _, t := range themes {
		for _, f := range fixed {
			if t == f {
				return true
			}
		}
	}
	return false
}

// ═══════════════════════════════════════════════════════════
// AnalyzeEntry — 分析流水线
// ═══════════════════════════════════════════════════════════

func (s *safeguardingService) AnalyzeEntry(ctx context.Context, req *dto.AnalyzeEntryRequest) (*dto.AnalyzeEntryResponse, error) {
	now := s.now()

	// 1. 关键词检测（纯函数，永不失败）
	det := DetectKeywordTriggers(req.Text)

	// 2. 历史上下文（内部降级，永不失败）
	hist := s.contextSvc.BuildContext(ctx, req.AuthorID, now, req.EntryID)

	// 3. 外部分类。C 档命中时跳过调用直接短路：
	//    4 级判定不依赖分类器，告警不等网络往返
	var verdict *ClassifierVerdict
	fallback := false
	if det.Tier != DetectorTierC {
		var err error
		verdict, err = s.classifyWithRetry(ctx, req.EntryID, req.Text, hist.Summary())
		if err != nil {
			// 操作性事件：记日志走兜底，绝不阻断决策，绝不上抛给用户
			s.logger.Warn("分类器不可用，走关键词兜底路径",
				zap.String("entry_id", req.EntryID),
				zap.Error(err))
			fallback = true
		}
	}

	// 4. 有序规则表判定
	in := &ruleInput{det: det, verdict: verdict, hist: hist}
	tier, rule := decideTier(in)

	// C 档短路是设计内路径，不算兜底
	decision := &EscalationDecision{
		Tier:             tier,
		Rule:             rule,
		BypassQuietHours: tier == 4,
		FallbackUsed:     fallback,
		DetectedKeywords: det.MatchedKeywords,
		SeverityScore:    tier * 25,
	}
	s.composeMessages(decision, in)

	// 5. 持久化与通知（tier >= 3）
	if tier >= 3 {
		if err := s.persistAndNotify(ctx, req, decision, hist, now); err != nil {
			return nil, err
		}
	}

	s.logger.Info("日记分析完成",
		zap.String("entry_id", req.EntryID),
		zap.Int("tier", tier),
		zap.String("rule", rule),
		zap.Bool("fallback", decision.FallbackUsed),
	)

	return &dto.AnalyzeEntryResponse{
		Tier:            decision.Tier,
		ChildMessage:    decision.ChildMessage,
		SuggestedAction: decision.SuggestedAction,
		FallbackUsed:    decision.FallbackUsed,
	}, nil
}

// classifyWithRetry 调用分类器：超时由客户端内部控制，失败退避后重试一次。
// 命中缓存（同条目重复分析）时直接返回，不再调用外部服务。
func (s *safeguardingService) classifyWithRetry(ctx context.Context, entryID, text, contextSummary string) (*ClassifierVerdict, error) {
	if s.classifier == nil {
		return nil, fmt.Errorf("分类器未配置")
	}

	if s.cache != nil {
		if raw, err := s.cache.GetCachedVerdict(ctx, entryID); err != nil {
			s.logger.Debug("判定缓存读取失败，忽略", zap.Error(err))
		} else if raw != nil {
			var cached ClassifierVerdict
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	verdict, err := s.classifier.Classify(ctx, text, contextSummary)
	if err != nil {
		s.sleep(s.cfg.RetryBackoff)
		verdict, err = s.classifier.Classify(ctx, text, contextSummary)
		if err != nil {
			return nil, err
		}
	}

	if s.cache != nil {
		if raw, err := json.Marshal(verdict); err == nil {
			if err := s.cache.CacheVerdict(ctx, entryID, raw, s.cfg.CacheTTL); err != nil {
				s.logger.Debug("判定缓存写入失败，忽略", zap.Error(err))
			}
		}
	}
	return verdict, nil
}

// composeMessages 按等级生成儿童/监护人文案与建议动作
// 缓解信号只影响文案措辞，绝不影响等级
func (s *safeguardingService) composeMessages(d *EscalationDecision, in *ruleInput) {
	switch d.Tier {
	case 4:
		d.ChildMessage = "It sounds like things feel really heavy right now. You are not alone, and you deserve support. A trusted adult is being asked to check in with you. If you feel unsafe right now, please tell an adult you trust straight away — or call Childline on 0800 1111, any time, about anything."
		d.SuggestedAction = "crisis_support"
		if in.verdict != nil && in.verdict.ParentSummary != "" {
			d.GuardianMessage = "Urgent: your child's latest journal entry needs your attention now. " + in.verdict.ParentSummary
		} else {
			// 分类失败但关键词强制升级：降级为"需要查看"的提示，绝不静默
			d.GuardianMessage = "Urgent: your child's latest journal entry contains language that needs your attention now. Automatic analysis was unavailable, so please review and check in with them as soon as you can."
		}
	case 3:
		d.ChildMessage = "Thank you for sharing how you're feeling. That took courage. Would you like to write a little more about what's been going on? Someone who cares about you may check in soon."
		d.SuggestedAction = "gentle_check_in"
		if in.verdict != nil && in.verdict.ParentSummary != "" {
			d.GuardianMessage = "Your child's recent journaling suggests they could use some support. " + in.verdict.ParentSummary
		} else {
			d.GuardianMessage = buildGuardianReviewContent()
		}
		if in.hist.HasProtectiveFactor() || in.hist.HasRecentToolUsage() {
			d.SuggestedAction = "gentle_check_in_with_strengths"
			d.ChildMessage += " Remember the things that have helped you feel steadier before — they're still there for you."
		}
	case 2:
		d.ChildMessage = "Thanks for writing today. It sounds like today had some tough moments."
		d.SuggestedAction = "tool_suggestion"
		if in.verdict != nil && len(in.verdict.RecommendedTools) > 0 {
			d.ChildMessage += " The " + in.verdict.RecommendedTools[0] + " exercise might help right now."
		} else {
			d.ChildMessage += " A short breathing exercise might help right now."
		}
		if in.hist.HasRecentToolUsage() {
			d.SuggestedAction = "tool_suggestion_familiar"
			d.ChildMessage += " You've used your calming tools before — they're one tap away."
		}
	default:
		d.ChildMessage = "Thanks for writing today. Your journal is always here for you."
		d.SuggestedAction = "supportive_monitoring"
	}
}

// persistAndNotify 幂等写日志 + 4 级标记 + 触发通知
//
// 幂等语义：日志以 entry_id 条件插入，重复分析不产生第二行，
// 且不重复触发通知（首次写入者负责通知）。
func (s *safeguardingService) persistAndNotify(ctx context.Context, req *dto.AnalyzeEntryRequest, d *EscalationDecision, hist *HistoricalContext, now time.Time) error {
	log := &model.SafeguardingLog{
		EntryID:          req.EntryID,
		AuthorID:         req.AuthorID,
		DetectedKeywords: model.StringArray(d.DetectedKeywords),
		SeverityScore:    d.SeverityScore,
		ActionTaken:      d.Rule,
		Tier:             d.Tier,
		GuardianMessage:  d.GuardianMessage, // 扫描轮补投时复用原判定文案
		ContextSnapshot:  hist.Snapshot(),
		CreatedAt:        now,
	}
	alreadyExisted, err := s.repo.SafeguardingLog.InsertIfAbsent(ctx, log)
	if err != nil {
		return fmt.Errorf("写入安全守护日志失败: %w", err)
	}

	// 4 级标记不可逆，重复分析时重置一遍也无害（只会置 true）
	if d.Tier == 4 {
		reasons := append([]string{d.Rule}, d.DetectedKeywords...)
		if err := s.repo.JournalEntry.MarkFlagged(ctx, req.EntryID, reasons); err != nil {
			// 标记失败不回滚日志；告警照发
			s.logger.Error("条目标记失败", zap.String("entry_id", req.EntryID), zap.Error(err))
		}
	}

	if alreadyExisted {
		s.logger.Info("安全守护日志已存在，幂等跳过通知", zap.String("entry_id", req.EntryID))
		return nil
	}

	switch d.Tier {
	case 4:
		// 即时路径：绕过免打扰与单日上限
		if err := s.dispatch.SendCriticalAlert(ctx, req.AuthorID, d.GuardianMessage, now); err != nil {
			s.logger.Error("紧急告警投递失败（安全守护日志已持久化）",
				zap.String("entry_id", req.EntryID), zap.Error(err))
		}
	case 3:
		// 有界延迟路径：遵守免打扰，免打扰期间由扫描轮补投
		if err := s.dispatch.SendGuardianReview(ctx, req.AuthorID, d.GuardianMessage, now); err != nil {
			s.logger.Error("3 级提醒投递失败", zap.String("entry_id", req.EntryID), zap.Error(err))
		}
	}
	return nil
}

// ═══════════════════════════════════════════════════════════
// 监护人读取面
// ═══════════════════════════════════════════════════════════

func (s *safeguardingService) GetEscalationTier(ctx context.Context, entryID string) (*dto.EscalationTierResponse, error) {
	log, err := s.repo.SafeguardingLog.GetByEntryID(ctx, entryID)
	if err == nil {
		return &dto.EscalationTierResponse{
			EntryID:         entryID,
			Tier:            log.Tier,
			GuardianVisible: log.Tier >= 3,
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 无日志行 ⇔ 判定低于 3 级；监护人视角统一呈现为 1 级不可见
	if _, err := s.repo.JournalEntry.GetByID(ctx, entryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &dto.EscalationTierResponse{
		EntryID:         entryID,
		Tier:            1,
		GuardianVisible: false,
	}, nil
}

func (s *safeguardingService) ListSafeguardingLogs(ctx context.Context, dependentID string, severityFilter int) ([]dto.SafeguardingLogResponse, error) {
	minTier := severityFilter
	if minTier < 3 {
		minTier = 3 // 日志只存在于 3 级及以上
	}
	logs, err := s.repo.SafeguardingLog.ListByAuthor(ctx, dependentID, minTier)
	if err != nil {
		return nil, err
	}

	result := make([]dto.SafeguardingLogResponse, 0, len(logs))
	for _, log := range logs {
		result = append(result, dto.SafeguardingLogResponse{
			LogID:            log.LogID,
			EntryID:          log.EntryID,
			Tier:             log.Tier,
			SeverityScore:    log.SeverityScore,
			DetectedKeywords: log.DetectedKeywords,
			ActionTaken:      log.ActionTaken,
			CreatedAt:        log.CreatedAt.Format(time.RFC3339),
		})
	}
	return result, nil
}

func (s *safeguardingService) AssertGuardian(ctx context.Context, guardianID, role, dependentID string) error {
	if role == "admin" {
		return nil
	}
	ok, err := s.repo.GuardianLink.IsGuardianOf(ctx, guardianID, dependentID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotGuardian
	}
	return nil
}

// [自证通过] internal/service/escalation_service.go
