package repository

import (
	"context"

	"gorm.io/gorm"

	"nus-fire-evac/backend/internal/model"
)

// AuditLogRepository 审计日志数据访问接口（只追加，无更新、删除）
type AuditLogRepository interface {
	Append(ctx context.Context, entry *model.AuditLog) error
	// ListByIncident 按 created_at、自增主键升序
	ListByIncident(ctx context.Context, incidentID string, offset, limit int) ([]model.AuditLog, int64, error)
}

type auditLogRepo struct {
	db *gorm.DB
}

// NewAuditLogRepo 创建 AuditLogRepository 实例
func NewAuditLogRepo(db *gorm.DB) AuditLogRepository {
	return &auditLogRepo{db: db}
}

func (r *auditLogRepo) Append(ctx context.Context, entry *model.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditLogRepo) ListByIncident(ctx context.Context, incidentID string, offset, limit int) ([]model.AuditLog, int64, error) {
	var logs []model.AuditLog
	var total int64

	db := r.db.WithContext(ctx).Model(&model.AuditLog{}).Where("incident_id = ?", incidentID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Order("created_at ASC").Order("audit_log_id ASC").
		Offset(offset).Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
