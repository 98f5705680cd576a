package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/model"
)

func setupTestExportService() (ExportService, *testRepos) {
	repos := newTestRepos()
	svc := NewExportService(repos.repository(), zap.NewNop())
	return svc, repos
}

func TestExportSafeguardingLogs_Success(t *testing.T) {
	svc, repos := setupTestExportService()
	repos.log.logs["e-1"] = &model.SafeguardingLog{
		LogID: "log-1", EntryID: "e-1", AuthorID: "child-001",
		Tier: 4, SeverityScore: 100, ActionTaken: "critical_keyword",
		DetectedKeywords: model.StringArray{"kill myself"},
		CreatedAt:        testNow,
	}
	repos.log.logs["e-2"] = &model.SafeguardingLog{
		LogID: "log-2", EntryID: "e-2", AuthorID: "child-001",
		Tier: 3, SeverityScore: 75, ActionTaken: "significant_declining_pattern",
		CreatedAt: testNow.Add(-time.Hour),
	}

	buf, filename, err := svc.ExportSafeguardingLogs(context.Background(), "child-001")
	if err != nil {
		t.Fatalf("ExportSafeguardingLogs 应成功: %v", err)
	}
	if buf == nil || buf.Len() == 0 {
		t.Fatal("导出内容不应为空")
	}
	if !strings.HasSuffix(filename, ".xlsx") {
		t.Errorf("期望 .xlsx 文件名，实际=%s", filename)
	}
}

func TestExportSafeguardingLogs_NoLogs(t *testing.T) {
	svc, _ := setupTestExportService()

	_, _, err := svc.ExportSafeguardingLogs(context.Background(), "child-empty")
	if !errors.Is(err, ErrExportNoLogs) {
		t.Errorf("期望 ErrExportNoLogs，实际: %v", err)
	}
}
