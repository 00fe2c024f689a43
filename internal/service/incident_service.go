package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"nus-fire-evac/backend/internal/dto"
	"nus-fire-evac/backend/internal/model"
	"nus-fire-evac/backend/internal/realtime"
	"nus-fire-evac/backend/internal/repository"
	"nus-fire-evac/backend/pkg/archive"
	"nus-fire-evac/backend/pkg/metrics"
)

// ── 疏散事件业务错误 ──

var (
	ErrIncidentNotFound      = errors.New("疏散事件不存在")
	ErrIncidentAlreadyActive = errors.New("该舍堂已有进行中的疏散事件")
	ErrIncidentNotActive     = errors.New("疏散事件已结束")
)

// archiveTimeout 结束后归档报表的超时
const archiveTimeout = 30 * time.Second

// IncidentService 疏散事件状态机：none → active → ended
type IncidentService interface {
	Start(ctx context.Context, residenceID string, actor *Identity) (*dto.IncidentResponse, error)
	End(ctx context.Context, incidentID string, actor *Identity) (*dto.IncidentResponse, error)
	// GetActive 无进行中事件时返回 (nil, nil)
	GetActive(ctx context.Context, residenceID string) (*dto.IncidentResponse, error)
	Get(ctx context.Context, incidentID string) (*dto.IncidentResponse, error)
	ListByResidence(ctx context.Context, residenceID string, actor *Identity) ([]dto.IncidentResponse, error)
}

type incidentService struct {
	repo     *repository.Repository
	metrics  *metrics.Metrics
	reporter ExportService
	archive  archive.Uploader
	notifier
	logger *zap.Logger
	now    func() time.Time
}

// NewIncidentService 创建 IncidentService 实例；uploader 为 nil 时不归档
func NewIncidentService(
	repo *repository.Repository,
	hub realtime.Hub,
	m *metrics.Metrics,
	reporter ExportService,
	uploader archive.Uploader,
	logger *zap.Logger,
) IncidentService {
	return &incidentService{
		repo:     repo,
		metrics:  m,
		reporter: reporter,
		archive:  uploader,
		notifier: notifier{hub: hub, logger: logger},
		logger:   logger,
		now:      nowUTC,
	}
}

// ────────────────────── Start ──────────────────────

func (s *incidentService) Start(ctx context.Context, residenceID string, actor *Identity) (*dto.IncidentResponse, error) {
	if !actor.CanOversee(residenceID) {
		return nil, ErrResidenceForbidden
	}

	now := s.now()
	incident := &model.Incident{
		ResidenceID: residenceID,
		Status:      model.IncidentActive,
		StartedAt:   now,
		StartedBy:   actor.UserID(),
	}

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		// 锁住舍堂行，同一舍堂的 Start 串行执行
		if _, err := tx.Residence.GetByIDForUpdate(ctx, residenceID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrResidenceNotFound
			}
			return err
		}

		if _, err := tx.Incident.GetActiveByResidence(ctx, residenceID); err == nil {
			return ErrIncidentAlreadyActive
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Incident.Create(ctx, incident); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrIncidentAlreadyActive
			}
			return err
		}

		return tx.AuditLog.Append(ctx, &model.AuditLog{
			IncidentID:     incident.IncidentID,
			ActorID:        actor.UserID(),
			ActorStudentID: actor.StudentID(),
			Action:         model.AuditStartIncident,
			CreatedAt:      now,
		})
	})
	if err != nil {
		if !errors.Is(err, ErrResidenceNotFound) && !errors.Is(err, ErrIncidentAlreadyActive) {
			s.logger.Error("开始疏散事件失败", zap.String("residence_id", residenceID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("疏散事件开始",
		zap.String("incident_id", incident.IncidentID),
		zap.String("residence_id", residenceID),
		zap.String("actor", actor.UserID()),
	)
	s.metrics.IncidentStarted()

	resp := toIncidentResponse(incident)
	s.publish(ctx, realtime.ResidenceIncidentTopic(residenceID), realtime.TypeIncident, incident.IncidentID, 1, resp)
	return resp, nil
}

// ────────────────────── End ──────────────────────

func (s *incidentService) End(ctx context.Context, incidentID string, actor *Identity) (*dto.IncidentResponse, error) {
	current, err := s.load(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if !actor.CanOversee(current.ResidenceID) {
		return nil, ErrResidenceForbidden
	}

	now := s.now()
	var ended *model.Incident
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		inc, err := tx.Incident.End(ctx, incidentID, actor.UserID(), now)
		if err != nil {
			if errors.Is(err, repository.ErrIncidentNotActive) {
				return ErrIncidentNotActive
			}
			return err
		}
		ended = inc

		return tx.AuditLog.Append(ctx, &model.AuditLog{
			IncidentID:     incidentID,
			ActorID:        actor.UserID(),
			ActorStudentID: actor.StudentID(),
			Action:         model.AuditEndIncident,
			CreatedAt:      now,
		})
	})
	if err != nil {
		if !errors.Is(err, ErrIncidentNotActive) {
			s.logger.Error("结束疏散事件失败", zap.String("incident_id", incidentID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("疏散事件结束",
		zap.String("incident_id", incidentID),
		zap.String("residence_id", ended.ResidenceID),
		zap.String("actor", actor.UserID()),
	)
	s.metrics.IncidentEnded()

	resp := toIncidentResponse(ended)
	s.publish(ctx, realtime.ResidenceIncidentTopic(ended.ResidenceID), realtime.TypeIncident, incidentID, 2, resp)

	if s.archive != nil && s.reporter != nil {
		go s.archiveReport(context.WithoutCancel(ctx), ended)
	}
	return resp, nil
}

// archiveReport 事件结束后把报表上传到对象存储，失败只记录日志
func (s *incidentService) archiveReport(ctx context.Context, inc *model.Incident) {
	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()

	buf, _, err := s.reporter.BuildReport(ctx, inc.IncidentID)
	if err != nil {
		s.logger.Error("生成归档报表失败", zap.String("incident_id", inc.IncidentID), zap.Error(err))
		return
	}
	name := fmt.Sprintf("%s/%s.xlsx", inc.ResidenceID, inc.IncidentID)
	key, err := s.archive.Put(ctx, name, buf.Bytes(), xlsxContentType)
	if err != nil {
		s.logger.Error("归档报表上传失败", zap.String("incident_id", inc.IncidentID), zap.Error(err))
		return
	}
	s.logger.Info("归档报表已上传", zap.String("incident_id", inc.IncidentID), zap.String("key", key))
}

// ────────────────────── Queries ──────────────────────

func (s *incidentService) GetActive(ctx context.Context, residenceID string) (*dto.IncidentResponse, error) {
	inc, err := s.repo.Incident.GetActiveByResidence(ctx, residenceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		s.logger.Error("查询进行中事件失败", zap.String("residence_id", residenceID), zap.Error(err))
		return nil, err
	}
	return toIncidentResponse(inc), nil
}

func (s *incidentService) Get(ctx context.Context, incidentID string) (*dto.IncidentResponse, error) {
	inc, err := s.load(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	return toIncidentResponse(inc), nil
}

func (s *incidentService) ListByResidence(ctx context.Context, residenceID string, actor *Identity) ([]dto.IncidentResponse, error) {
	if !actor.CanOversee(residenceID) {
		return nil, ErrResidenceForbidden
	}
	incidents, err := s.repo.Incident.ListByResidence(ctx, residenceID)
	if err != nil {
		s.logger.Error("查询事件历史失败", zap.String("residence_id", residenceID), zap.Error(err))
		return nil, err
	}
	result := make([]dto.IncidentResponse, 0, len(incidents))
	for i := range incidents {
		result = append(result, *toIncidentResponse(&incidents[i]))
	}
	return result, nil
}

func (s *incidentService) load(ctx context.Context, incidentID string) (*model.Incident, error) {
	return loadIncident(ctx, s.repo, s.logger, incidentID)
}

// loadIncident 按 id 读取事件，不存在映射为 ErrIncidentNotFound
func loadIncident(ctx context.Context, repo *repository.Repository, logger *zap.Logger, incidentID string) (*model.Incident, error) {
	inc, err := repo.Incident.GetByID(ctx, incidentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIncidentNotFound
		}
		logger.Error("查询疏散事件失败", zap.String("incident_id", incidentID), zap.Error(err))
		return nil, err
	}
	return inc, nil
}

func toIncidentResponse(inc *model.Incident) *dto.IncidentResponse {
	return &dto.IncidentResponse{
		ID:          inc.IncidentID,
		ResidenceID: inc.ResidenceID,
		Status:      string(inc.Status),
		StartedAt:   dto.FormatTime(inc.StartedAt),
		StartedBy:   inc.StartedBy,
		EndedAt:     dto.FormatTimePtr(inc.EndedAt),
		EndedBy:     inc.EndedBy,
	}
}
