package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nus-fire-evac/backend/internal/model"
)

// AttendanceRepository 签到记录数据访问接口（无更新、删除）
type AttendanceRepository interface {
	// CreateIfAbsent 以 (incident_id, user_id) 为键的条件写入
	// 已存在时不写入，返回既有记录与 created=false
	CreateIfAbsent(ctx context.Context, record *model.AttendanceRecord) (*model.AttendanceRecord, bool, error)
	GetByIncidentAndUser(ctx context.Context, incidentID, userID string) (*model.AttendanceRecord, error)
	ListByIncident(ctx context.Context, incidentID string) ([]model.AttendanceRecord, error)
}

type attendanceRepo struct {
	db *gorm.DB
}

// NewAttendanceRepo 创建 AttendanceRepository 实例
func NewAttendanceRepo(db *gorm.DB) AttendanceRepository {
	return &attendanceRepo{db: db}
}

func (r *attendanceRepo) CreateIfAbsent(ctx context.Context, record *model.AttendanceRecord) (*model.AttendanceRecord, bool, error) {
	if record.RecordID == "" {
		record.RecordID = uuid.NewString()
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "incident_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(record)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected > 0 {
		return record, true, nil
	}

	existing, err := r.GetByIncidentAndUser(ctx, record.IncidentID, record.UserID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *attendanceRepo) GetByIncidentAndUser(ctx context.Context, incidentID, userID string) (*model.AttendanceRecord, error) {
	var record model.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("incident_id = ? AND user_id = ?", incidentID, userID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *attendanceRepo) ListByIncident(ctx context.Context, incidentID string) ([]model.AttendanceRecord, error) {
	var records []model.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("incident_id = ?", incidentID).
		Order("accounted_at ASC").
		Find(&records).Error
	return records, err
}
