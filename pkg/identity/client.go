package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"nus-fire-evac/backend/config"
)

var (
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrEmailExists        = errors.New("该邮箱已注册")
	ErrWeakPassword       = errors.New("密码强度不足")
	ErrUnavailable        = errors.New("身份服务暂不可用")
)

// Account 身份提供方返回的账号
type Account struct {
	UID   string
	Email string
}

// Provider 外部身份提供方
// 密码的存储与校验全部由提供方负责，本服务只保存 uid
type Provider interface {
	Authenticate(ctx context.Context, email, password string) (*Account, error)
	Register(ctx context.Context, email, password string) (*Account, error)
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type accountResponse struct {
	LocalID string `json:"localId"`
	Email   string `json:"email"`
	IDToken string `json:"idToken"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client Identity Toolkit 兼容 REST 客户端
type Client struct {
	httpClient *resty.Client
	apiKey     string
	logger     *zap.Logger
}

// NewClient 创建身份服务客户端
func NewClient(cfg *config.IdentityConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(300 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{httpClient: client, apiKey: cfg.APIKey, logger: logger}
}

// Authenticate 邮箱密码登录
func (c *Client) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	return c.call(ctx, "/accounts:signInWithPassword", email, password)
}

// Register 创建账号
func (c *Client) Register(ctx context.Context, email, password string) (*Account, error) {
	return c.call(ctx, "/accounts:signUp", email, password)
}

func (c *Client) call(ctx context.Context, path, email, password string) (*Account, error) {
	var result accountResponse
	var apiErr errorResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetBody(passwordRequest{Email: email, Password: password, ReturnSecureToken: true}).
		SetResult(&result).
		SetError(&apiErr).
		Post(path)
	if err != nil {
		c.logger.Error("身份服务调用失败", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.IsError() {
		mapped := mapProviderError(apiErr.Error.Message)
		if errors.Is(mapped, ErrUnavailable) {
			c.logger.Error("身份服务返回错误",
				zap.String("path", path),
				zap.Int("status_code", resp.StatusCode()),
				zap.String("msg", apiErr.Error.Message),
			)
		}
		return nil, mapped
	}

	if result.LocalID == "" {
		return nil, fmt.Errorf("%w: 响应缺少 localId", ErrUnavailable)
	}

	return &Account{UID: result.LocalID, Email: result.Email}, nil
}

// mapProviderError 将提供方错误码映射为本地错误
// 错误消息形如 "WEAK_PASSWORD : Password should be at least 6 characters"
func mapProviderError(message string) error {
	code := strings.TrimSpace(strings.SplitN(message, ":", 2)[0])
	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "INVALID_EMAIL", "USER_DISABLED":
		return ErrInvalidCredentials
	case "EMAIL_EXISTS":
		return ErrEmailExists
	case "WEAK_PASSWORD":
		return ErrWeakPassword
	default:
		return fmt.Errorf("%w: %s", ErrUnavailable, message)
	}
}
