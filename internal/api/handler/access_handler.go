package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nus-fire-evac/backend/internal/dto"
	"nus-fire-evac/backend/internal/service"
	"nus-fire-evac/backend/pkg/response"
)

// AccessHandler 监督员授权与舍堂指派（仅 office）
type AccessHandler struct {
	roleSvc service.RoleService
	logger  *zap.Logger
}

// NewAccessHandler 创建 AccessHandler
func NewAccessHandler(roleSvc service.RoleService, logger *zap.Logger) *AccessHandler {
	return &AccessHandler{roleSvc: roleSvc, logger: logger}
}

// ListGrants 授权列表
// GET /api/v1/access-grants
func (h *AccessHandler) ListGrants(c *gin.Context) {
	list, err := h.roleSvc.ListGrants(c.Request.Context())
	if err != nil {
		h.handleAccessError(c, err)
		return
	}
	response.OK(c, list)
}

// Grant 授予监督员权限（重复授予幂等）
// POST /api/v1/access-grants
func (h *AccessHandler) Grant(c *gin.Context) {
	var req dto.GrantAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	actor, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	result, err := h.roleSvc.Grant(c.Request.Context(), req.StudentID, actor)
	if err != nil {
		h.handleAccessError(c, err)
		return
	}
	response.OK(c, result)
}

// Revoke 撤销授权，下一次请求即按住户解析
// DELETE /api/v1/access-grants/:student_id
func (h *AccessHandler) Revoke(c *gin.Context) {
	if err := h.roleSvc.Revoke(c.Request.Context(), c.Param("student_id")); err != nil {
		h.handleAccessError(c, err)
		return
	}
	response.OK(c, nil)
}

// AssignSupervisor 指定监督员负责的舍堂
// PUT /api/v1/supervisor-assignments/:student_id
func (h *AccessHandler) AssignSupervisor(c *gin.Context) {
	var req dto.AssignSupervisorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	actor, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	result, err := h.roleSvc.AssignSupervisor(c.Request.Context(), c.Param("student_id"), req.ResidenceID, actor)
	if err != nil {
		h.handleAccessError(c, err)
		return
	}
	response.OK(c, result)
}

// ClearAssignment 清除指派，回落到本人所在舍堂
// DELETE /api/v1/supervisor-assignments/:student_id
func (h *AccessHandler) ClearAssignment(c *gin.Context) {
	if err := h.roleSvc.ClearAssignment(c.Request.Context(), c.Param("student_id")); err != nil {
		h.handleAccessError(c, err)
		return
	}
	response.OK(c, nil)
}

func (h *AccessHandler) handleAccessError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidStudentID):
		response.BadRequest(c, 17001, err.Error())
	case errors.Is(err, service.ErrGrantNotFound):
		response.NotFound(c, 17002, err.Error())
	case errors.Is(err, service.ErrAssignmentNotFound):
		response.NotFound(c, 17003, err.Error())
	case errors.Is(err, service.ErrResidenceNotFound):
		response.NotFound(c, 17004, err.Error())
	default:
		h.logger.Error("授权请求失败", zap.Error(err))
		response.InternalError(c)
	}
}
