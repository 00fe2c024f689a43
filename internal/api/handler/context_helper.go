package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"nus-fire-evac/backend/internal/service"
	"nus-fire-evac/backend/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetIdentity 提取本次请求解析出的身份（含实时有效角色）
func MustGetIdentity(c *gin.Context) (*service.Identity, bool) {
	v, exists := c.Get("identity")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	id, ok := v.(*service.Identity)
	if !ok || id == nil || id.User == nil {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	return id, true
}

// GetTokenMeta 当前 Token 的 jti 与过期时间，缺失时返回零值
func GetTokenMeta(c *gin.Context) (string, time.Time) {
	jti := c.GetString("token_jti")
	exp, _ := c.Get("token_exp")
	t, _ := exp.(time.Time)
	return jti, t
}
