package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"nus-fire-evac/backend/internal/dto"
	"nus-fire-evac/backend/internal/model"
	"nus-fire-evac/backend/internal/realtime"
	"nus-fire-evac/backend/internal/repository"
)

// ── 角色模块业务错误 ──

var (
	ErrUserNotFound       = errors.New("用户档案不存在")
	ErrGrantNotFound      = errors.New("该学号未被授权")
	ErrResidenceForbidden = errors.New("无权管理该舍堂")
	ErrInvalidStudentID   = errors.New("学号不能为空")
	ErrAssignmentNotFound = errors.New("该学号没有舍堂指派")
)

// EffectiveRole 由存储标签与授权集合计算有效角色
// office 原样返回；其余标签一律由授权决定
func EffectiveRole(stored model.Role, granted bool) model.Role {
	if stored == model.RoleOffice {
		return model.RoleOffice
	}
	if granted {
		return model.RoleSupervisor
	}
	return model.RoleResident
}

// RoleService 角色解析与授权管理
type RoleService interface {
	// Resolve 每次调用都读取当前授权集合
	Resolve(ctx context.Context, user *model.User) (model.Role, error)
	// ResolveByUserID 加载档案并解析有效角色与负责舍堂
	ResolveByUserID(ctx context.Context, userID string) (*Identity, error)

	Grant(ctx context.Context, studentID string, actor *Identity) (*dto.AccessGrantResponse, error)
	Revoke(ctx context.Context, studentID string) error
	ListGrants(ctx context.Context) ([]dto.AccessGrantResponse, error)

	AssignSupervisor(ctx context.Context, studentID, residenceID string, actor *Identity) (*dto.SupervisorAssignmentResponse, error)
	ClearAssignment(ctx context.Context, studentID string) error
}

type roleService struct {
	repo *repository.Repository
	notifier
	logger *zap.Logger
}

// NewRoleService 创建 RoleService 实例
func NewRoleService(repo *repository.Repository, hub realtime.Hub, logger *zap.Logger) RoleService {
	return &roleService{repo: repo, notifier: notifier{hub: hub, logger: logger}, logger: logger}
}

// ────────────────────── Resolve ──────────────────────

func (s *roleService) Resolve(ctx context.Context, user *model.User) (model.Role, error) {
	if user.Role == model.RoleOffice {
		return model.RoleOffice, nil
	}
	granted, err := s.repo.AccessGrant.Exists(ctx, user.StudentID)
	if err != nil {
		s.logger.Error("查询授权失败", zap.String("student_id", user.StudentID), zap.Error(err))
		return "", err
	}
	return EffectiveRole(user.Role, granted), nil
}

func (s *roleService) ResolveByUserID(ctx context.Context, userID string) (*Identity, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	role, err := s.Resolve(ctx, user)
	if err != nil {
		return nil, err
	}

	id := &Identity{User: user, Role: role}
	if role == model.RoleSupervisor {
		id.SupervisedResidenceID = user.ResidenceID
		a, err := s.repo.SupervisorAssignment.GetByStudentID(ctx, user.StudentID)
		switch {
		case err == nil:
			id.SupervisedResidenceID = a.ResidenceID
		case !errors.Is(err, gorm.ErrRecordNotFound):
			s.logger.Error("查询监督员指派失败", zap.String("student_id", user.StudentID), zap.Error(err))
			return nil, err
		}
	}
	return id, nil
}

// ────────────────────── Grant / Revoke ──────────────────────

func (s *roleService) Grant(ctx context.Context, studentID string, actor *Identity) (*dto.AccessGrantResponse, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, ErrInvalidStudentID
	}
	grant := &model.AccessGrant{StudentID: studentID, GrantedBy: actor.UserID()}
	grant.CreatedAt = nowUTC()

	created, err := s.repo.AccessGrant.Create(ctx, grant)
	if err != nil {
		s.logger.Error("写入授权失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}
	if created {
		s.logger.Info("授予监督员权限",
			zap.String("student_id", studentID),
			zap.String("actor", actor.UserID()),
		)
		s.publishRoleChange(ctx, studentID, model.RoleSupervisor)
	}

	return &dto.AccessGrantResponse{
		StudentID: grant.StudentID,
		GrantedBy: grant.GrantedBy,
		CreatedAt: dto.FormatTime(grant.CreatedAt),
	}, nil
}

func (s *roleService) Revoke(ctx context.Context, studentID string) error {
	deleted, err := s.repo.AccessGrant.Delete(ctx, studentID)
	if err != nil {
		s.logger.Error("撤销授权失败", zap.String("student_id", studentID), zap.Error(err))
		return err
	}
	if !deleted {
		return ErrGrantNotFound
	}
	s.logger.Info("撤销监督员权限", zap.String("student_id", studentID))
	s.publishRoleChange(ctx, studentID, model.RoleResident)
	return nil
}

func (s *roleService) ListGrants(ctx context.Context) ([]dto.AccessGrantResponse, error) {
	grants, err := s.repo.AccessGrant.List(ctx)
	if err != nil {
		s.logger.Error("列出授权失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.AccessGrantResponse, 0, len(grants))
	for _, g := range grants {
		result = append(result, dto.AccessGrantResponse{
			StudentID: g.StudentID,
			GrantedBy: g.GrantedBy,
			CreatedAt: dto.FormatTime(g.CreatedAt),
		})
	}
	return result, nil
}

// publishRoleChange 授权变化影响有效角色，进而影响所在舍堂名单
func (s *roleService) publishRoleChange(ctx context.Context, studentID string, role model.Role) {
	payload := map[string]string{"student_id": studentID, "role": string(role)}
	s.publish(ctx, realtime.RoleTopic(studentID), realtime.TypeRole, studentID, 0, payload)

	user, err := s.repo.User.GetByStudentID(ctx, studentID)
	if err != nil {
		// 尚未注册的学号也可被授权
		return
	}
	if user.ResidenceID != "" {
		s.publish(ctx, realtime.RosterTopic(user.ResidenceID), realtime.TypeRoster, user.UserID, 0, payload)
	}
}

// ────────────────────── Supervisor assignment ──────────────────────

func (s *roleService) AssignSupervisor(ctx context.Context, studentID, residenceID string, actor *Identity) (*dto.SupervisorAssignmentResponse, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, ErrInvalidStudentID
	}
	if _, err := s.repo.Residence.GetByID(ctx, residenceID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResidenceNotFound
		}
		s.logger.Error("查询舍堂失败", zap.String("residence_id", residenceID), zap.Error(err))
		return nil, err
	}

	a := &model.SupervisorAssignment{StudentID: studentID, ResidenceID: residenceID}
	callerID := actor.UserID()
	a.CreatedBy = &callerID
	a.UpdatedBy = &callerID
	if err := s.repo.SupervisorAssignment.Upsert(ctx, a); err != nil {
		s.logger.Error("写入监督员指派失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}
	return &dto.SupervisorAssignmentResponse{StudentID: studentID, ResidenceID: residenceID}, nil
}

func (s *roleService) ClearAssignment(ctx context.Context, studentID string) error {
	deleted, err := s.repo.SupervisorAssignment.Delete(ctx, studentID)
	if err != nil {
		s.logger.Error("删除监督员指派失败", zap.String("student_id", studentID), zap.Error(err))
		return err
	}
	if !deleted {
		return ErrAssignmentNotFound
	}
	return nil
}
