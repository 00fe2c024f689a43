package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nus-fire-evac/backend/internal/model"
)

// AccessGrantRepository 监督员授权数据访问接口
type AccessGrantRepository interface {
	Exists(ctx context.Context, studentID string) (bool, error)
	// FilterGranted 返回 studentIDs 中持有授权的子集
	FilterGranted(ctx context.Context, studentIDs []string) (map[string]bool, error)
	// Create 已存在时不报错，返回 false
	Create(ctx context.Context, grant *model.AccessGrant) (bool, error)
	// Delete 不存在时返回 false
	Delete(ctx context.Context, studentID string) (bool, error)
	List(ctx context.Context) ([]model.AccessGrant, error)
}

type accessGrantRepo struct {
	db *gorm.DB
}

// NewAccessGrantRepo 创建 AccessGrantRepository 实例
func NewAccessGrantRepo(db *gorm.DB) AccessGrantRepository {
	return &accessGrantRepo{db: db}
}

func (r *accessGrantRepo) Exists(ctx context.Context, studentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.AccessGrant{}).
		Where("student_id = ?", studentID).
		Count(&count).Error
	return count > 0, err
}

func (r *accessGrantRepo) FilterGranted(ctx context.Context, studentIDs []string) (map[string]bool, error) {
	granted := make(map[string]bool)
	if len(studentIDs) == 0 {
		return granted, nil
	}
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.AccessGrant{}).
		Where("student_id IN ?", studentIDs).
		Pluck("student_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		granted[id] = true
	}
	return granted, nil
}

func (r *accessGrantRepo) Create(ctx context.Context, grant *model.AccessGrant) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "student_id"}}, DoNothing: true}).
		Create(grant)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *accessGrantRepo) Delete(ctx context.Context, studentID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Delete(&model.AccessGrant{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *accessGrantRepo) List(ctx context.Context) ([]model.AccessGrant, error) {
	var grants []model.AccessGrant
	err := r.db.WithContext(ctx).Order("student_id ASC").Find(&grants).Error
	return grants, err
}
