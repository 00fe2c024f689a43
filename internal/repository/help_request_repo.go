package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nus-fire-evac/backend/internal/model"
)

// HelpRequestRepository 求助数据访问接口，主键 (incident_id, user_id)
type HelpRequestRepository interface {
	// Open 插入或重新打开，created_at 保留首次值，version 递增
	Open(ctx context.Context, req *model.HelpRequest) (*model.HelpRequest, error)
	// Resolve 仅当前为 open 时更新；未命中返回 gorm.ErrRecordNotFound
	Resolve(ctx context.Context, incidentID, userID string, at time.Time) (*model.HelpRequest, error)
	Get(ctx context.Context, incidentID, userID string) (*model.HelpRequest, error)
	// ListOpen 命中 (incident_id, status) 复合索引
	ListOpen(ctx context.Context, incidentID string) ([]model.HelpRequest, error)
}

type helpRequestRepo struct {
	db *gorm.DB
}

// NewHelpRequestRepo 创建 HelpRequestRepository 实例
func NewHelpRequestRepo(db *gorm.DB) HelpRequestRepository {
	return &helpRequestRepo{db: db}
}

func (r *helpRequestRepo) Open(ctx context.Context, req *model.HelpRequest) (*model.HelpRequest, error) {
	req.Status = model.HelpOpen
	if req.Version == 0 {
		req.Version = 1
	}
	err := r.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns: []clause.Column{{Name: "incident_id"}, {Name: "user_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"status":     model.HelpOpen,
					"updated_at": req.UpdatedAt,
					"room_label": req.RoomLabel,
					"version":    gorm.Expr(`"help_requests"."version" + 1`),
				}),
			},
			clause.Returning{},
		).
		Create(req).Error
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (r *helpRequestRepo) Resolve(ctx context.Context, incidentID, userID string, at time.Time) (*model.HelpRequest, error) {
	var req model.HelpRequest
	result := r.db.WithContext(ctx).
		Model(&req).
		Clauses(clause.Returning{}).
		Where("incident_id = ? AND user_id = ? AND status = ?", incidentID, userID, model.HelpOpen).
		Updates(map[string]interface{}{
			"status":     model.HelpResolved,
			"updated_at": at,
			"version":    gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &req, nil
}

func (r *helpRequestRepo) Get(ctx context.Context, incidentID, userID string) (*model.HelpRequest, error) {
	var req model.HelpRequest
	err := r.db.WithContext(ctx).
		Where("incident_id = ? AND user_id = ?", incidentID, userID).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *helpRequestRepo) ListOpen(ctx context.Context, incidentID string) ([]model.HelpRequest, error) {
	var reqs []model.HelpRequest
	err := r.db.WithContext(ctx).
		Where("incident_id = ? AND status = ?", incidentID, model.HelpOpen).
		Order("updated_at ASC").
		Find(&reqs).Error
	return reqs, err
}
