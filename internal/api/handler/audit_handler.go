package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nus-fire-evac/backend/internal/dto"
	"nus-fire-evac/backend/internal/service"
	"nus-fire-evac/backend/pkg/response"
)

// AuditHandler 审计日志 HTTP 处理器
type AuditHandler struct {
	auditSvc service.AuditService
	logger   *zap.Logger
}

// NewAuditHandler 创建 AuditHandler
func NewAuditHandler(auditSvc service.AuditService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{auditSvc: auditSvc, logger: logger}
}

// List 事件审计日志（按时间顺序分页）
// GET /api/v1/incidents/:id/audit-logs?page=1&page_size=50
func (h *AuditHandler) List(c *gin.Context) {
	var req dto.AuditLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	actor, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	list, total, err := h.auditSvc.ListByIncident(c.Request.Context(), c.Param("id"), actor, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrIncidentNotFound):
			response.NotFound(c, 13003, err.Error())
		case errors.Is(err, service.ErrResidenceForbidden):
			response.Forbidden(c, 13001, err.Error())
		default:
			h.logger.Error("查询审计日志失败", zap.Error(err))
			response.InternalError(c)
		}
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}
