package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nus-fire-evac/backend/internal/service"
	"nus-fire-evac/backend/pkg/response"
)

const xlsxMime = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
	logger    *zap.Logger
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc, logger: logger}
}

// ExportIncident 导出疏散报表（名单核对、求助、审计日志）
// GET /api/v1/incidents/:id/export
func (h *ExportHandler) ExportIncident(c *gin.Context) {
	actor, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportIncident(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, xlsxMime, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrIncidentNotFound):
		response.NotFound(c, 13003, err.Error())
	case errors.Is(err, service.ErrResidenceForbidden):
		response.Forbidden(c, 13001, err.Error())
	case errors.Is(err, service.ErrExportGenerateFail):
		h.logger.Error("生成报表失败", zap.Error(err))
		response.InternalError(c)
	default:
		h.logger.Error("导出请求失败", zap.Error(err))
		response.InternalError(c)
	}
}
