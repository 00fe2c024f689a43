package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"nus-fire-evac/backend/internal/dto"
	"nus-fire-evac/backend/internal/model"
	"nus-fire-evac/backend/internal/repository"
	"nus-fire-evac/backend/pkg/geo"
)

// ── 舍堂模块业务错误 ──

var (
	ErrResidenceNotFound    = errors.New("舍堂不存在")
	ErrInvalidResidenceName = errors.New("舍堂名称不能为空")
	ErrCheckpointNotFound   = errors.New("该舍堂尚未设置集合点")
	ErrInvalidCheckpoint    = errors.New("集合点参数不合法")
	ErrCheckpointConflict   = errors.New("集合点已被他人修改，请刷新后重试")
)

// ResidenceService 舍堂与集合点
type ResidenceService interface {
	List(ctx context.Context) ([]dto.ResidenceResponse, error)
	Get(ctx context.Context, id string) (*dto.ResidenceResponse, error)
	Create(ctx context.Context, req *dto.CreateResidenceRequest, callerID string) (*dto.ResidenceResponse, error)
	Rename(ctx context.Context, id string, req *dto.RenameResidenceRequest, callerID string) (*dto.ResidenceResponse, error)

	GetCheckpoint(ctx context.Context, residenceID string) (*dto.CheckpointResponse, error)
	UpsertCheckpoint(ctx context.Context, residenceID string, req *dto.UpsertCheckpointRequest, callerID string) (*dto.CheckpointResponse, error)
	DeleteCheckpoint(ctx context.Context, residenceID string) error
}

type residenceService struct {
	repo          *repository.Repository
	defaultRadius float64
	logger        *zap.Logger
}

// NewResidenceService 创建 ResidenceService 实例；defaultRadius 为未填半径时的默认值（米）
func NewResidenceService(repo *repository.Repository, defaultRadius float64, logger *zap.Logger) ResidenceService {
	return &residenceService{repo: repo, defaultRadius: defaultRadius, logger: logger}
}

// ────────────────────── List / Get ──────────────────────

func (s *residenceService) List(ctx context.Context) ([]dto.ResidenceResponse, error) {
	residences, err := s.repo.Residence.List(ctx)
	if err != nil {
		s.logger.Error("列出舍堂失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.ResidenceResponse, 0, len(residences))
	for i := range residences {
		result = append(result, *toResidenceResponse(&residences[i]))
	}
	return result, nil
}

func (s *residenceService) Get(ctx context.Context, id string) (*dto.ResidenceResponse, error) {
	res, err := s.loadResidence(ctx, id)
	if err != nil {
		return nil, err
	}
	return toResidenceResponse(res), nil
}

// ────────────────────── Create / Rename ──────────────────────

func (s *residenceService) Create(ctx context.Context, req *dto.CreateResidenceRequest, callerID string) (*dto.ResidenceResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalidResidenceName
	}
	res := &model.Residence{Name: name}
	res.CreatedBy = &callerID
	res.UpdatedBy = &callerID

	if err := s.repo.Residence.Create(ctx, res); err != nil {
		s.logger.Error("创建舍堂失败", zap.Error(err))
		return nil, err
	}
	return toResidenceResponse(res), nil
}

func (s *residenceService) Rename(ctx context.Context, id string, req *dto.RenameResidenceRequest, callerID string) (*dto.ResidenceResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalidResidenceName
	}
	if err := s.repo.Residence.UpdateName(ctx, id, name, &callerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResidenceNotFound
		}
		s.logger.Error("重命名舍堂失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return s.Get(ctx, id)
}

// ────────────────────── Checkpoint ──────────────────────

func (s *residenceService) GetCheckpoint(ctx context.Context, residenceID string) (*dto.CheckpointResponse, error) {
	cp, err := s.repo.Checkpoint.GetByResidence(ctx, residenceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCheckpointNotFound
		}
		s.logger.Error("查询集合点失败", zap.String("residence_id", residenceID), zap.Error(err))
		return nil, err
	}
	return toCheckpointResponse(cp), nil
}

func (s *residenceService) UpsertCheckpoint(ctx context.Context, residenceID string, req *dto.UpsertCheckpointRequest, callerID string) (*dto.CheckpointResponse, error) {
	if _, err := s.loadResidence(ctx, residenceID); err != nil {
		return nil, err
	}

	radius := s.defaultRadius
	if req.RadiusMeters != nil {
		radius = *req.RadiusMeters
	}
	fence := geo.Fence{
		Center:       geo.Point{Latitude: *req.Latitude, Longitude: *req.Longitude},
		RadiusMeters: radius,
	}
	if err := fence.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCheckpoint, err)
	}

	existing, err := s.repo.Checkpoint.GetByResidence(ctx, residenceID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询集合点失败", zap.String("residence_id", residenceID), zap.Error(err))
		return nil, err
	}

	if existing == nil {
		cp := &model.Checkpoint{
			ResidenceID:  residenceID,
			Name:         strings.TrimSpace(req.Name),
			Latitude:     fence.Center.Latitude,
			Longitude:    fence.Center.Longitude,
			RadiusMeters: radius,
		}
		cp.CreatedBy = &callerID
		cp.UpdatedBy = &callerID
		if err := s.repo.Checkpoint.Create(ctx, cp); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil, ErrCheckpointConflict
			}
			s.logger.Error("创建集合点失败", zap.String("residence_id", residenceID), zap.Error(err))
			return nil, err
		}
		return toCheckpointResponse(cp), nil
	}

	if req.Version != nil {
		existing.Version = *req.Version
	}
	existing.Name = strings.TrimSpace(req.Name)
	existing.Latitude = fence.Center.Latitude
	existing.Longitude = fence.Center.Longitude
	existing.RadiusMeters = radius
	existing.UpdatedBy = &callerID

	if err := s.repo.Checkpoint.Update(ctx, existing); err != nil {
		if errors.Is(err, repository.ErrOptimisticLock) {
			return nil, ErrCheckpointConflict
		}
		s.logger.Error("更新集合点失败", zap.String("residence_id", residenceID), zap.Error(err))
		return nil, err
	}
	return toCheckpointResponse(existing), nil
}

func (s *residenceService) DeleteCheckpoint(ctx context.Context, residenceID string) error {
	if err := s.repo.Checkpoint.DeleteByResidence(ctx, residenceID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCheckpointNotFound
		}
		s.logger.Error("删除集合点失败", zap.String("residence_id", residenceID), zap.Error(err))
		return err
	}
	return nil
}

// ── 内部辅助方法 ──

func (s *residenceService) loadResidence(ctx context.Context, id string) (*model.Residence, error) {
	res, err := s.repo.Residence.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResidenceNotFound
		}
		s.logger.Error("查询舍堂失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return res, nil
}

func toResidenceResponse(res *model.Residence) *dto.ResidenceResponse {
	resp := &dto.ResidenceResponse{ID: res.ResidenceID, Name: res.Name}
	if res.Checkpoint != nil {
		resp.Checkpoint = toCheckpointResponse(res.Checkpoint)
	}
	return resp
}

func toCheckpointResponse(cp *model.Checkpoint) *dto.CheckpointResponse {
	return &dto.CheckpointResponse{
		ID:           cp.CheckpointID,
		ResidenceID:  cp.ResidenceID,
		Name:         cp.Name,
		Latitude:     cp.Latitude,
		Longitude:    cp.Longitude,
		RadiusMeters: cp.RadiusMeters,
		Version:      cp.Version,
	}
}
