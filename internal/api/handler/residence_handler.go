package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nus-fire-evac/backend/internal/dto"
	"nus-fire-evac/backend/internal/service"
	"nus-fire-evac/backend/pkg/response"
)

// ResidenceHandler 舍堂与集合点 HTTP 处理器
type ResidenceHandler struct {
	residenceSvc service.ResidenceService
	logger       *zap.Logger
}

// NewResidenceHandler 创建 ResidenceHandler
func NewResidenceHandler(residenceSvc service.ResidenceService, logger *zap.Logger) *ResidenceHandler {
	return &ResidenceHandler{residenceSvc: residenceSvc, logger: logger}
}

// List 舍堂列表
// GET /api/v1/residences
func (h *ResidenceHandler) List(c *gin.Context) {
	list, err := h.residenceSvc.List(c.Request.Context())
	if err != nil {
		h.handleResidenceError(c, err)
		return
	}
	response.OK(c, list)
}

// Get 舍堂详情（含集合点）
// GET /api/v1/residences/:id
func (h *ResidenceHandler) Get(c *gin.Context) {
	result, err := h.residenceSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleResidenceError(c, err)
		return
	}
	response.OK(c, result)
}

// Create 创建舍堂
// POST /api/v1/residences
func (h *ResidenceHandler) Create(c *gin.Context) {
	var req dto.CreateResidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.residenceSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleResidenceError(c, err)
		return
	}
	response.Created(c, result)
}

// Rename 重命名舍堂
// PUT /api/v1/residences/:id
func (h *ResidenceHandler) Rename(c *gin.Context) {
	var req dto.RenameResidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.residenceSvc.Rename(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		h.handleResidenceError(c, err)
		return
	}
	response.OK(c, result)
}

// GetCheckpoint 集合点
// GET /api/v1/residences/:id/checkpoint
func (h *ResidenceHandler) GetCheckpoint(c *gin.Context) {
	result, err := h.residenceSvc.GetCheckpoint(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleResidenceError(c, err)
		return
	}
	response.OK(c, result)
}

// UpsertCheckpoint 设置集合点
// PUT /api/v1/residences/:id/checkpoint
func (h *ResidenceHandler) UpsertCheckpoint(c *gin.Context) {
	var req dto.UpsertCheckpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.residenceSvc.UpsertCheckpoint(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		h.handleResidenceError(c, err)
		return
	}
	response.OK(c, result)
}

// DeleteCheckpoint 删除集合点
// DELETE /api/v1/residences/:id/checkpoint
func (h *ResidenceHandler) DeleteCheckpoint(c *gin.Context) {
	if err := h.residenceSvc.DeleteCheckpoint(c.Request.Context(), c.Param("id")); err != nil {
		h.handleResidenceError(c, err)
		return
	}
	response.OK(c, nil)
}

func (h *ResidenceHandler) handleResidenceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrResidenceNotFound):
		response.NotFound(c, 12001, err.Error())
	case errors.Is(err, service.ErrInvalidResidenceName):
		response.BadRequest(c, 12002, err.Error())
	case errors.Is(err, service.ErrCheckpointNotFound):
		response.NotFound(c, 12003, err.Error())
	case errors.Is(err, service.ErrInvalidCheckpoint):
		response.BadRequest(c, 12004, err.Error())
	case errors.Is(err, service.ErrCheckpointConflict):
		response.Conflict(c, 12005, err.Error())
	default:
		h.logger.Error("舍堂请求失败", zap.Error(err))
		response.InternalError(c)
	}
}
