package service

import (
	"context"

	"go.uber.org/zap"

	"nus-fire-evac/backend/internal/dto"
	"nus-fire-evac/backend/internal/model"
	"nus-fire-evac/backend/internal/repository"
)

// AuditService 审计日志查询（写入由各业务在同一事务内完成）
type AuditService interface {
	ListByIncident(ctx context.Context, incidentID string, actor *Identity, req *dto.AuditLogListRequest) ([]dto.AuditLogResponse, int64, error)
}

type auditService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewAuditService 创建 AuditService 实例
func NewAuditService(repo *repository.Repository, logger *zap.Logger) AuditService {
	return &auditService{repo: repo, logger: logger}
}

func (s *auditService) ListByIncident(ctx context.Context, incidentID string, actor *Identity, req *dto.AuditLogListRequest) ([]dto.AuditLogResponse, int64, error) {
	inc, err := loadIncident(ctx, s.repo, s.logger, incidentID)
	if err != nil {
		return nil, 0, err
	}
	if !actor.CanOversee(inc.ResidenceID) {
		return nil, 0, ErrResidenceForbidden
	}

	entries, total, err := s.repo.AuditLog.ListByIncident(ctx, incidentID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询审计日志失败", zap.String("incident_id", incidentID), zap.Error(err))
		return nil, 0, err
	}
	result := make([]dto.AuditLogResponse, 0, len(entries))
	for i := range entries {
		result = append(result, toAuditResponse(&entries[i]))
	}
	return result, total, nil
}

func toAuditResponse(e *model.AuditLog) dto.AuditLogResponse {
	return dto.AuditLogResponse{
		ID:              e.AuditLogID,
		IncidentID:      e.IncidentID,
		ActorID:         e.ActorID,
		ActorStudentID:  e.ActorStudentID,
		Action:          string(e.Action),
		TargetUserID:    e.TargetUserID,
		TargetStudentID: e.TargetStudentID,
		Reason:          e.Reason,
		CreatedAt:       dto.FormatTime(e.CreatedAt),
	}
}
