package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nus-fire-evac/backend/internal/model"
)

// activeIncidentConstraint 部分唯一索引：每个舍堂至多一个 active 事件
const activeIncidentConstraint = "uq_incidents_active_residence"

// IncidentRepository 疏散事件数据访问接口
type IncidentRepository interface {
	// Create 违反部分唯一索引时返回 ErrDuplicate
	Create(ctx context.Context, incident *model.Incident) error
	GetByID(ctx context.Context, id string) (*model.Incident, error)
	// GetByIDForShare 共享行锁读取，与 End 的 UPDATE 互斥；必须在事务内调用
	GetByIDForShare(ctx context.Context, id string) (*model.Incident, error)
	// GetActiveByResidence 无进行中事件时返回 gorm.ErrRecordNotFound
	GetActiveByResidence(ctx context.Context, residenceID string) (*model.Incident, error)
	ListByResidence(ctx context.Context, residenceID string) ([]model.Incident, error)
	// End 条件更新 active → ended；未命中返回 ErrIncidentNotActive
	End(ctx context.Context, id, actorID string, endedAt time.Time) (*model.Incident, error)
	CountActive(ctx context.Context) (int64, error)
}

type incidentRepo struct {
	db *gorm.DB
}

// NewIncidentRepo 创建 IncidentRepository 实例
func NewIncidentRepo(db *gorm.DB) IncidentRepository {
	return &incidentRepo{db: db}
}

func (r *incidentRepo) Create(ctx context.Context, incident *model.Incident) error {
	if incident.IncidentID == "" {
		incident.IncidentID = uuid.NewString()
	}
	err := r.db.WithContext(ctx).Create(incident).Error
	if IsUniqueViolation(err, activeIncidentConstraint) {
		return ErrDuplicate
	}
	return err
}

func (r *incidentRepo) GetByID(ctx context.Context, id string) (*model.Incident, error) {
	var incident model.Incident
	err := r.db.WithContext(ctx).
		Where("incident_id = ?", id).
		First(&incident).Error
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

func (r *incidentRepo) GetByIDForShare(ctx context.Context, id string) (*model.Incident, error) {
	var incident model.Incident
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Where("incident_id = ?", id).
		First(&incident).Error
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

func (r *incidentRepo) GetActiveByResidence(ctx context.Context, residenceID string) (*model.Incident, error) {
	var incident model.Incident
	err := r.db.WithContext(ctx).
		Where("residence_id = ? AND status = ?", residenceID, model.IncidentActive).
		First(&incident).Error
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

func (r *incidentRepo) ListByResidence(ctx context.Context, residenceID string) ([]model.Incident, error) {
	var incidents []model.Incident
	err := r.db.WithContext(ctx).
		Where("residence_id = ?", residenceID).
		Order("started_at DESC").
		Find(&incidents).Error
	return incidents, err
}

func (r *incidentRepo) End(ctx context.Context, id, actorID string, endedAt time.Time) (*model.Incident, error) {
	var incident model.Incident
	result := r.db.WithContext(ctx).
		Model(&incident).
		Clauses(clause.Returning{}).
		Where("incident_id = ? AND status = ?", id, model.IncidentActive).
		Updates(map[string]interface{}{
			"status":   model.IncidentEnded,
			"ended_at": endedAt,
			"ended_by": actorID,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrIncidentNotActive
	}
	return &incident, nil
}

func (r *incidentRepo) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Incident{}).
		Where("status = ?", model.IncidentActive).
		Count(&count).Error
	return count, err
}
