package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"nus-fire-evac/backend/internal/dto"
	"nus-fire-evac/backend/internal/model"
	"nus-fire-evac/backend/internal/repository"
	"nus-fire-evac/backend/pkg/identity"
	"nus-fire-evac/backend/pkg/jwt"
)

// ── 认证模块业务错误 ──

var (
	ErrInvalidCredentials  = errors.New("邮箱或密码错误")
	ErrEmailExists         = errors.New("该邮箱已注册")
	ErrWeakPassword        = errors.New("密码强度不足")
	ErrIdentityUnavailable = errors.New("身份服务暂不可用，请稍后重试")
	ErrStudentIDTaken      = errors.New("该学号已注册")
	ErrProfileMissing      = errors.New("账号未完成注册，请先注册档案")
)

// TokenBlacklist 注销 Token 的存储（Redis 实现）
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
}

// AuthService 认证业务接口
// 密码只交给身份提供方校验，本服务签发的 Token 只携带 uid
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.IdentityResponse, error)
	Session(ctx context.Context, req *dto.SessionRequest) (*dto.SessionResponse, error)
	Logout(ctx context.Context, jti string, expiresAt time.Time) error
	Me(id *Identity) *dto.IdentityResponse
}

type authService struct {
	repo      *repository.Repository
	roles     RoleService
	provider  identity.Provider
	jwtMgr    *jwt.Manager
	blacklist TokenBlacklist
	logger    *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	repo *repository.Repository,
	roles RoleService,
	provider identity.Provider,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	logger *zap.Logger,
) AuthService {
	return &authService{
		repo:      repo,
		roles:     roles,
		provider:  provider,
		jwtMgr:    jwtMgr,
		blacklist: blacklist,
		logger:    logger,
	}
}

// ────────────────────── Register ──────────────────────

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.IdentityResponse, error) {
	studentID := strings.TrimSpace(req.StudentID)
	if studentID == "" {
		return nil, ErrInvalidStudentID
	}

	// 1. 舍堂必须存在
	if _, err := s.repo.Residence.GetByID(ctx, req.ResidenceID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResidenceNotFound
		}
		s.logger.Error("查询舍堂失败", zap.Error(err))
		return nil, err
	}

	// 2. 学号唯一（先查一次，避免在提供方创建孤立账号）
	if _, err := s.repo.User.GetByStudentID(ctx, studentID); err == nil {
		return nil, ErrStudentIDTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询学号失败", zap.Error(err))
		return nil, err
	}

	// 3. 提供方创建账号
	account, err := s.provider.Register(ctx, strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return nil, s.mapProviderError(err)
	}

	// 4. 保存档案，注册者一律为 resident 标签
	var room *string
	if req.RoomLabel != nil {
		if r := strings.TrimSpace(*req.RoomLabel); r != "" {
			room = &r
		}
	}
	user := &model.User{
		UserID:      account.UID,
		StudentID:   studentID,
		Email:       account.Email,
		ResidenceID: req.ResidenceID,
		RoomLabel:   room,
		Role:        model.RoleResident,
	}
	if user.Email == "" {
		user.Email = strings.TrimSpace(req.Email)
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrStudentIDTaken
		}
		s.logger.Error("保存用户档案失败", zap.String("uid", account.UID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("用户注册成功",
		zap.String("user_id", user.UserID),
		zap.String("student_id", user.StudentID),
		zap.String("residence_id", user.ResidenceID),
	)

	id, err := s.roles.ResolveByUserID(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	return s.Me(id), nil
}

// ────────────────────── Session ──────────────────────

func (s *authService) Session(ctx context.Context, req *dto.SessionRequest) (*dto.SessionResponse, error) {
	account, err := s.provider.Authenticate(ctx, strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return nil, s.mapProviderError(err)
	}

	id, err := s.roles.ResolveByUserID(ctx, account.UID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrProfileMissing
		}
		return nil, err
	}

	token, err := s.jwtMgr.GenerateAccessToken(id.UserID())
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}

	return &dto.SessionResponse{
		AccessToken: token,
		ExpiresIn:   int(s.jwtMgr.AccessTokenTTL().Seconds()),
		Identity:    *s.Me(id),
	}, nil
}

// ────────────────────── Logout ──────────────────────

func (s *authService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if s.blacklist == nil || jti == "" {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.blacklist.BlacklistToken(ctx, jti, ttl); err != nil {
		s.logger.Error("加入 Token 黑名单失败", zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── Me ──────────────────────

func (s *authService) Me(id *Identity) *dto.IdentityResponse {
	return &dto.IdentityResponse{
		UserID:                id.User.UserID,
		StudentID:             id.User.StudentID,
		Email:                 id.User.Email,
		ResidenceID:           id.User.ResidenceID,
		RoomLabel:             id.User.RoomLabel,
		StoredRole:            string(id.User.Role),
		Role:                  string(id.Role),
		SupervisedResidenceID: id.SupervisedResidenceID,
	}
}

func (s *authService) mapProviderError(err error) error {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		return ErrInvalidCredentials
	case errors.Is(err, identity.ErrEmailExists):
		return ErrEmailExists
	case errors.Is(err, identity.ErrWeakPassword):
		return ErrWeakPassword
	default:
		s.logger.Warn("身份服务调用失败", zap.Error(err))
		return ErrIdentityUnavailable
	}
}
