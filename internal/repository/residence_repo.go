package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nus-fire-evac/backend/internal/model"
)

// ResidenceRepository 舍堂数据访问接口
type ResidenceRepository interface {
	Create(ctx context.Context, residence *model.Residence) error
	GetByID(ctx context.Context, id string) (*model.Residence, error)
	// GetByIDForUpdate 行级锁读取，必须在事务内调用（Repository.Transaction）
	GetByIDForUpdate(ctx context.Context, id string) (*model.Residence, error)
	List(ctx context.Context) ([]model.Residence, error)
	UpdateName(ctx context.Context, id, name string, updatedBy *string) error
}

type residenceRepo struct {
	db *gorm.DB
}

// NewResidenceRepo 创建 ResidenceRepository 实例
func NewResidenceRepo(db *gorm.DB) ResidenceRepository {
	return &residenceRepo{db: db}
}

func (r *residenceRepo) Create(ctx context.Context, residence *model.Residence) error {
	if residence.ResidenceID == "" {
		residence.ResidenceID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Omit("Checkpoint").Create(residence).Error
}

func (r *residenceRepo) GetByID(ctx context.Context, id string) (*model.Residence, error) {
	var residence model.Residence
	err := r.db.WithContext(ctx).
		Preload("Checkpoint").
		Where("residence_id = ?", id).
		First(&residence).Error
	if err != nil {
		return nil, err
	}
	return &residence, nil
}

func (r *residenceRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Residence, error) {
	var residence model.Residence
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("residence_id = ?", id).
		First(&residence).Error
	if err != nil {
		return nil, err
	}
	return &residence, nil
}

func (r *residenceRepo) List(ctx context.Context) ([]model.Residence, error) {
	var residences []model.Residence
	err := r.db.WithContext(ctx).
		Preload("Checkpoint").
		Order("name ASC").
		Find(&residences).Error
	return residences, err
}

func (r *residenceRepo) UpdateName(ctx context.Context, id, name string, updatedBy *string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Residence{}).
		Where("residence_id = ?", id).
		Updates(map[string]interface{}{
			"name":       name,
			"updated_by": updatedBy,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
