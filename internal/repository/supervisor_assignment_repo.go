package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nus-fire-evac/backend/internal/model"
)

// SupervisorAssignmentRepository 监督员负责舍堂数据访问接口
type SupervisorAssignmentRepository interface {
	GetByStudentID(ctx context.Context, studentID string) (*model.SupervisorAssignment, error)
	Upsert(ctx context.Context, a *model.SupervisorAssignment) error
	Delete(ctx context.Context, studentID string) (bool, error)
}

type supervisorAssignmentRepo struct {
	db *gorm.DB
}

// NewSupervisorAssignmentRepo 创建实例
func NewSupervisorAssignmentRepo(db *gorm.DB) SupervisorAssignmentRepository {
	return &supervisorAssignmentRepo{db: db}
}

func (r *supervisorAssignmentRepo) GetByStudentID(ctx context.Context, studentID string) (*model.SupervisorAssignment, error) {
	var a model.SupervisorAssignment
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *supervisorAssignmentRepo) Upsert(ctx context.Context, a *model.SupervisorAssignment) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "student_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"residence_id": a.ResidenceID,
				"updated_by":   a.UpdatedBy,
				"updated_at":   gorm.Expr("CURRENT_TIMESTAMP"),
			}),
		}).
		Create(a).Error
}

func (r *supervisorAssignmentRepo) Delete(ctx context.Context, studentID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Delete(&model.SupervisorAssignment{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
