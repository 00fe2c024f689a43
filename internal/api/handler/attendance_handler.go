package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nus-fire-evac/backend/internal/dto"
	"nus-fire-evac/backend/internal/realtime"
	"nus-fire-evac/backend/internal/service"
	"nus-fire-evac/backend/pkg/geo"
	"nus-fire-evac/backend/pkg/response"
)

// AttendanceHandler 签到与名单核对 HTTP 处理器
type AttendanceHandler struct {
	attendanceSvc service.AttendanceService
	incidentSvc   service.IncidentService
	streamer      *Streamer
	logger        *zap.Logger
}

// NewAttendanceHandler 创建 AttendanceHandler
func NewAttendanceHandler(attendanceSvc service.AttendanceService, incidentSvc service.IncidentService, streamer *Streamer, logger *zap.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		attendanceSvc: attendanceSvc,
		incidentSvc:   incidentSvc,
		streamer:      streamer,
		logger:        logger,
	}
}

// GpsCheckin 住户 GPS 签到；重复签到返回原记录且 created=false
// POST /api/v1/incidents/:id/checkins/gps
func (h *AttendanceHandler) GpsCheckin(c *gin.Context) {
	var req dto.GpsCheckinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	actor, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	// 设备定位失败：只返回分类提示，不写任何状态
	if req.FixError != "" {
		err := geo.ParseFixError(req.FixError)
		response.Unprocessable(c, fixErrorCode(err), err.Error(), req.FixError)
		return
	}
	fix, ok := buildFix(&req)
	if !ok {
		response.BadRequest(c, 14001, "缺少定位坐标或精度")
		return
	}

	result, err := h.attendanceSvc.SubmitGpsCheckin(c.Request.Context(), c.Param("id"), actor, fix)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}
	if result.Created {
		response.Created(c, result)
		return
	}
	response.OK(c, result)
}

// ManualCheckin 监督员人工签到
// POST /api/v1/incidents/:id/checkins/manual
func (h *AttendanceHandler) ManualCheckin(c *gin.Context) {
	var req dto.ManualCheckinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	actor, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	result, err := h.attendanceSvc.SubmitManualCheckin(c.Request.Context(), c.Param("id"), req.UserID, actor, req.Reason)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}
	response.Created(c, result)
}

// GetMine 本人签到记录
// GET /api/v1/incidents/:id/checkins/me
func (h *AttendanceHandler) GetMine(c *gin.Context) {
	actor, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	result, err := h.attendanceSvc.GetMine(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}
	response.OK(c, result)
}

// Status 名单核对视图（汇总基于全量名单，筛选只影响列表）
// GET /api/v1/incidents/:id/status
func (h *AttendanceHandler) Status(c *gin.Context) {
	var q dto.StatusQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	actor, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	result, err := h.attendanceSvc.Status(c.Request.Context(), c.Param("id"), actor, &q)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}
	response.OK(c, result)
}

// WatchStatus 订阅名单核对变化：签到记录与名单成员变化
// GET /api/v1/incidents/:id/status/watch
func (h *AttendanceHandler) WatchStatus(c *gin.Context) {
	actor, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	incidentID := c.Param("id")

	incident, err := h.incidentSvc.Get(c.Request.Context(), incidentID)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}
	if !actor.CanOversee(incident.ResidenceID) {
		h.handleAttendanceError(c, service.ErrResidenceForbidden)
		return
	}

	h.streamer.Stream(c,
		[]string{
			realtime.AttendanceTopic(incidentID),
			realtime.RosterTopic(incident.ResidenceID),
			realtime.ResidenceIncidentTopic(incident.ResidenceID),
		},
		func(ctx context.Context) (interface{}, error) {
			return h.attendanceSvc.Status(ctx, incidentID, actor, &dto.StatusQuery{})
		},
		h.handleAttendanceError,
	)
}

func buildFix(req *dto.GpsCheckinRequest) (geo.Fix, bool) {
	if req.Latitude == nil || req.Longitude == nil || req.AccuracyMeters == nil {
		return geo.Fix{}, false
	}
	fix := geo.Fix{
		Point:          geo.Point{Latitude: *req.Latitude, Longitude: *req.Longitude},
		AccuracyMeters: *req.AccuracyMeters,
	}
	if req.FixTimestamp != nil {
		fix.Timestamp = time.UnixMilli(*req.FixTimestamp).UTC()
	}
	return fix, true
}

func fixErrorCode(err error) int {
	switch {
	case errors.Is(err, geo.ErrPermissionDenied):
		return 14101
	case errors.Is(err, geo.ErrLocateTimeout):
		return 14103
	default:
		return 14102
	}
}

func (h *AttendanceHandler) handleAttendanceError(c *gin.Context, err error) {
	var outside *service.OutsideGeofenceError
	switch {
	case errors.As(err, &outside):
		response.ErrorWithData(c, http.StatusUnprocessableEntity, 14003, err.Error(), gin.H{
			"distance_meters": outside.DistanceMeters,
			"radius_meters":   outside.RadiusMeters,
		})
	case errors.Is(err, service.ErrInvalidFix):
		response.BadRequest(c, 14002, err.Error())
	case errors.Is(err, service.ErrNoActiveIncident):
		response.Unprocessable(c, 14004, err.Error(), "")
	case errors.Is(err, service.ErrCheckpointNotConfigured):
		response.Unprocessable(c, 14005, err.Error(), "")
	case errors.Is(err, service.ErrAlreadyAccounted):
		response.Conflict(c, 14006, err.Error())
	case errors.Is(err, service.ErrEmptyReason):
		response.BadRequest(c, 14007, err.Error())
	case errors.Is(err, service.ErrPersonNotInRoster):
		response.Unprocessable(c, 14008, err.Error(), "")
	case errors.Is(err, service.ErrAttendanceNotFound):
		response.NotFound(c, 14009, err.Error())
	case errors.Is(err, service.ErrIncidentNotFound):
		response.NotFound(c, 13003, err.Error())
	case errors.Is(err, service.ErrResidenceForbidden):
		response.Forbidden(c, 13001, err.Error())
	default:
		h.logger.Error("签到请求失败", zap.Error(err))
		response.InternalError(c)
	}
}
