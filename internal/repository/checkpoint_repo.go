package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"nus-fire-evac/backend/internal/model"
)

// CheckpointRepository 集合点数据访问接口
type CheckpointRepository interface {
	GetByResidence(ctx context.Context, residenceID string) (*model.Checkpoint, error)
	Create(ctx context.Context, cp *model.Checkpoint) error
	// Update 乐观锁更新，version 不匹配返回 ErrOptimisticLock
	Update(ctx context.Context, cp *model.Checkpoint) error
	DeleteByResidence(ctx context.Context, residenceID string) error
}

type checkpointRepo struct {
	db *gorm.DB
}

// NewCheckpointRepo 创建 CheckpointRepository 实例
func NewCheckpointRepo(db *gorm.DB) CheckpointRepository {
	return &checkpointRepo{db: db}
}

func (r *checkpointRepo) GetByResidence(ctx context.Context, residenceID string) (*model.Checkpoint, error) {
	var cp model.Checkpoint
	err := r.db.WithContext(ctx).
		Where("residence_id = ?", residenceID).
		First(&cp).Error
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func (r *checkpointRepo) Create(ctx context.Context, cp *model.Checkpoint) error {
	if cp.CheckpointID == "" {
		cp.CheckpointID = uuid.NewString()
	}
	if cp.Version == 0 {
		cp.Version = 1
	}
	err := r.db.WithContext(ctx).Create(cp).Error
	if IsUniqueViolation(err, "") {
		return ErrDuplicate
	}
	return err
}

func (r *checkpointRepo) Update(ctx context.Context, cp *model.Checkpoint) error {
	oldVersion := cp.Version
	result := r.db.WithContext(ctx).
		Model(&model.Checkpoint{}).
		Where("checkpoint_id = ? AND version = ?", cp.CheckpointID, oldVersion).
		Updates(map[string]interface{}{
			"name":          cp.Name,
			"latitude":      cp.Latitude,
			"longitude":     cp.Longitude,
			"radius_meters": cp.RadiusMeters,
			"updated_by":    cp.UpdatedBy,
			"updated_at":    gorm.Expr("CURRENT_TIMESTAMP"),
			"version":       oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	cp.Version = oldVersion + 1
	return nil
}

func (r *checkpointRepo) DeleteByResidence(ctx context.Context, residenceID string) error {
	result := r.db.WithContext(ctx).
		Where("residence_id = ?", residenceID).
		Delete(&model.Checkpoint{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
