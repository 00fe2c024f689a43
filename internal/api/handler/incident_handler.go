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

// IncidentHandler 疏散事件 HTTP 处理器
type IncidentHandler struct {
	incidentSvc service.IncidentService
	streamer    *Streamer
	logger      *zap.Logger
}

// NewIncidentHandler 创建 IncidentHandler
func NewIncidentHandler(incidentSvc service.IncidentService, streamer *Streamer, logger *zap.Logger) *IncidentHandler {
	return &IncidentHandler{incidentSvc: incidentSvc, streamer: streamer, logger: logger}
}

// GetActive 舍堂当前进行中的事件，没有时 data 为空
// GET /api/v1/residences/:id/incident
func (h *IncidentHandler) GetActive(c *gin.Context) {
	result, err := h.incidentSvc.GetActive(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleIncidentError(c, err)
		return
	}
	if result == nil {
		response.OK(c, nil)
		return
	}
	response.OK(c, result)
}

// Watch 订阅舍堂事件状态
// GET /api/v1/residences/:id/incident/watch
func (h *IncidentHandler) Watch(c *gin.Context) {
	residenceID := c.Param("id")
	h.streamer.Stream(c,
		[]string{realtime.ResidenceIncidentTopic(residenceID)},
		func(ctx context.Context) (interface{}, error) {
			active, err := h.incidentSvc.GetActive(ctx, residenceID)
			if err != nil || active == nil {
				return nil, err
			}
			return active, nil
		},
		h.handleIncidentError,
	)
}

// ListHistory 舍堂事件历史
// GET /api/v1/residences/:id/incidents
func (h *IncidentHandler) ListHistory(c *gin.Context) {
	actor, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	list, err := h.incidentSvc.ListByResidence(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		h.handleIncidentError(c, err)
		return
	}
	response.OK(c, list)
}

// Start 开始疏散
// POST /api/v1/residences/:id/incidents
func (h *IncidentHandler) Start(c *gin.Context) {
	actor, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	result, err := h.incidentSvc.Start(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		h.handleIncidentError(c, err)
		return
	}
	response.Created(c, result)
}

// Get 事件详情
// GET /api/v1/incidents/:id
func (h *IncidentHandler) Get(c *gin.Context) {
	result, err := h.incidentSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleIncidentError(c, err)
		return
	}
	response.OK(c, result)
}

// End 结束疏散
// POST /api/v1/incidents/:id/end
func (h *IncidentHandler) End(c *gin.Context) {
	actor, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	result, err := h.incidentSvc.End(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		h.handleIncidentError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *IncidentHandler) handleIncidentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrResidenceForbidden):
		response.Forbidden(c, 13001, err.Error())
	case errors.Is(err, service.ErrResidenceNotFound):
		response.NotFound(c, 13002, err.Error())
	case errors.Is(err, service.ErrIncidentNotFound):
		response.NotFound(c, 13003, err.Error())
	case errors.Is(err, service.ErrIncidentAlreadyActive):
		response.Conflict(c, 13004, err.Error())
	case errors.Is(err, service.ErrIncidentNotActive):
		response.Conflict(c, 13005, err.Error())
	default:
		h.logger.Error("疏散事件请求失败", zap.Error(err))
		response.InternalError(c)
	}
}
