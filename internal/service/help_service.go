package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"nus-fire-evac/backend/internal/dto"
	"nus-fire-evac/backend/internal/model"
	"nus-fire-evac/backend/internal/realtime"
	"nus-fire-evac/backend/internal/repository"
	"nus-fire-evac/backend/pkg/metrics"
)

var ErrHelpRequestNotFound = errors.New("求助记录不存在")

// HelpService 求助跟踪，每人每事件一条（可反复打开 / 解决）
type HelpService interface {
	RequestHelp(ctx context.Context, incidentID string, actor *Identity) (*dto.HelpRequestResponse, error)
	ResolveHelp(ctx context.Context, incidentID string, actor *Identity) (*dto.HelpRequestResponse, error)
	ListOpen(ctx context.Context, incidentID string, actor *Identity) ([]dto.HelpRequestResponse, error)
	GetMine(ctx context.Context, incidentID string, actor *Identity) (*dto.HelpRequestResponse, error)
}

type helpService struct {
	repo    *repository.Repository
	metrics *metrics.Metrics
	notifier
	logger *zap.Logger
	now    func() time.Time
}

// NewHelpService 创建 HelpService 实例
func NewHelpService(repo *repository.Repository, hub realtime.Hub, m *metrics.Metrics, logger *zap.Logger) HelpService {
	return &helpService{
		repo:     repo,
		metrics:  m,
		notifier: notifier{hub: hub, logger: logger},
		logger:   logger,
		now:      nowUTC,
	}
}

// ────────────────────── RequestHelp ──────────────────────

func (s *helpService) RequestHelp(ctx context.Context, incidentID string, actor *Identity) (*dto.HelpRequestResponse, error) {
	inc, err := loadIncident(ctx, s.repo, s.logger, incidentID)
	if err != nil {
		return nil, err
	}
	if !inc.IsActive() {
		return nil, ErrNoActiveIncident
	}
	if !actor.BelongsTo(inc.ResidenceID) {
		return nil, ErrPersonNotInRoster
	}

	now := s.now()
	req := &model.HelpRequest{
		IncidentID: incidentID,
		UserID:     actor.UserID(),
		StudentID:  actor.StudentID(),
		RoomLabel:  actor.User.RoomLabel,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var saved *model.HelpRequest
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := ensureActive(ctx, tx, incidentID); err != nil {
			return err
		}
		r, err := tx.HelpRequest.Open(ctx, req)
		if err != nil {
			return err
		}
		saved = r
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNoActiveIncident) {
			s.logger.Error("提交求助失败", zap.String("incident_id", incidentID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("住户求助",
		zap.String("incident_id", incidentID),
		zap.String("user_id", saved.UserID),
		zap.Int("version", saved.Version),
	)
	s.metrics.HelpRequest(string(model.HelpOpen))

	resp := toHelpResponse(saved)
	s.publish(ctx, realtime.HelpTopic(incidentID), realtime.TypeHelp, saved.UserID, saved.Version, resp)
	return resp, nil
}

// ────────────────────── ResolveHelp ──────────────────────

func (s *helpService) ResolveHelp(ctx context.Context, incidentID string, actor *Identity) (*dto.HelpRequestResponse, error) {
	resolved, err := s.repo.HelpRequest.Resolve(ctx, incidentID, actor.UserID(), s.now())
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("解决求助失败", zap.String("incident_id", incidentID), zap.Error(err))
			return nil, err
		}
		// 未命中：不存在，或已是 resolved（重复解决视为成功）
		existing, gerr := s.repo.HelpRequest.Get(ctx, incidentID, actor.UserID())
		if gerr != nil {
			if errors.Is(gerr, gorm.ErrRecordNotFound) {
				return nil, ErrHelpRequestNotFound
			}
			s.logger.Error("查询求助失败", zap.String("incident_id", incidentID), zap.Error(gerr))
			return nil, gerr
		}
		return toHelpResponse(existing), nil
	}

	s.metrics.HelpRequest(string(model.HelpResolved))

	resp := toHelpResponse(resolved)
	s.publish(ctx, realtime.HelpTopic(incidentID), realtime.TypeHelp, resolved.UserID, resolved.Version, resp)
	return resp, nil
}

// ────────────────────── Queries ──────────────────────

func (s *helpService) ListOpen(ctx context.Context, incidentID string, actor *Identity) ([]dto.HelpRequestResponse, error) {
	inc, err := loadIncident(ctx, s.repo, s.logger, incidentID)
	if err != nil {
		return nil, err
	}
	if !actor.CanOversee(inc.ResidenceID) {
		return nil, ErrResidenceForbidden
	}

	reqs, err := s.repo.HelpRequest.ListOpen(ctx, incidentID)
	if err != nil {
		s.logger.Error("查询求助列表失败", zap.String("incident_id", incidentID), zap.Error(err))
		return nil, err
	}
	result := make([]dto.HelpRequestResponse, 0, len(reqs))
	for i := range reqs {
		result = append(result, *toHelpResponse(&reqs[i]))
	}
	return result, nil
}

func (s *helpService) GetMine(ctx context.Context, incidentID string, actor *Identity) (*dto.HelpRequestResponse, error) {
	req, err := s.repo.HelpRequest.Get(ctx, incidentID, actor.UserID())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHelpRequestNotFound
		}
		s.logger.Error("查询求助失败", zap.String("incident_id", incidentID), zap.Error(err))
		return nil, err
	}
	return toHelpResponse(req), nil
}

func toHelpResponse(r *model.HelpRequest) *dto.HelpRequestResponse {
	return &dto.HelpRequestResponse{
		IncidentID: r.IncidentID,
		UserID:     r.UserID,
		StudentID:  r.StudentID,
		RoomLabel:  r.RoomLabel,
		Status:     string(r.Status),
		CreatedAt:  dto.FormatTime(r.CreatedAt),
		UpdatedAt:  dto.FormatTime(r.UpdatedAt),
		Version:    r.Version,
	}
}
