package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nus-fire-evac/backend/internal/realtime"
	"nus-fire-evac/backend/internal/service"
	"nus-fire-evac/backend/pkg/response"
)

// HelpHandler 求助 HTTP 处理器
type HelpHandler struct {
	helpSvc     service.HelpService
	incidentSvc service.IncidentService
	streamer    *Streamer
	logger      *zap.Logger
}

// NewHelpHandler 创建 HelpHandler
func NewHelpHandler(helpSvc service.HelpService, incidentSvc service.IncidentService, streamer *Streamer, logger *zap.Logger) *HelpHandler {
	return &HelpHandler{helpSvc: helpSvc, incidentSvc: incidentSvc, streamer: streamer, logger: logger}
}

// Request 发起求助（已有未解决求助时返回原记录）
// POST /api/v1/incidents/:id/help
func (h *HelpHandler) Request(c *gin.Context) {
	actor, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	result, err := h.helpSvc.RequestHelp(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		h.handleHelpError(c, err)
		return
	}
	response.OK(c, result)
}

// Resolve 本人撤销求助，重复撤销视为成功
// DELETE /api/v1/incidents/:id/help
func (h *HelpHandler) Resolve(c *gin.Context) {
	actor, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	result, err := h.helpSvc.ResolveHelp(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		h.handleHelpError(c, err)
		return
	}
	response.OK(c, result)
}

// GetMine 本人求助状态
// GET /api/v1/incidents/:id/help/me
func (h *HelpHandler) GetMine(c *gin.Context) {
	actor, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	result, err := h.helpSvc.GetMine(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		h.handleHelpError(c, err)
		return
	}
	response.OK(c, result)
}

// ListOpen 未解决的求助
// GET /api/v1/incidents/:id/help
func (h *HelpHandler) ListOpen(c *gin.Context) {
	actor, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	list, err := h.helpSvc.ListOpen(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		h.handleHelpError(c, err)
		return
	}
	response.OK(c, list)
}

// Watch 订阅求助变化，快照为当前未解决列表
// GET /api/v1/incidents/:id/help/watch
func (h *HelpHandler) Watch(c *gin.Context) {
	actor, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	incidentID := c.Param("id")

	incident, err := h.incidentSvc.Get(c.Request.Context(), incidentID)
	if err != nil {
		h.handleHelpError(c, err)
		return
	}
	if !actor.CanOversee(incident.ResidenceID) {
		h.handleHelpError(c, service.ErrResidenceForbidden)
		return
	}

	h.streamer.Stream(c,
		[]string{realtime.HelpTopic(incidentID)},
		func(ctx context.Context) (interface{}, error) {
			return h.helpSvc.ListOpen(ctx, incidentID, actor)
		},
		h.handleHelpError,
	)
}

func (h *HelpHandler) handleHelpError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoActiveIncident):
		response.Unprocessable(c, 14004, err.Error(), "")
	case errors.Is(err, service.ErrPersonNotInRoster):
		response.Unprocessable(c, 14008, err.Error(), "")
	case errors.Is(err, service.ErrHelpRequestNotFound):
		response.NotFound(c, 15001, err.Error())
	case errors.Is(err, service.ErrIncidentNotFound):
		response.NotFound(c, 13003, err.Error())
	case errors.Is(err, service.ErrResidenceForbidden):
		response.Forbidden(c, 13001, err.Error())
	default:
		h.logger.Error("求助请求失败", zap.Error(err))
		response.InternalError(c)
	}
}
