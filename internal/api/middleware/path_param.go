package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"nus-fire-evac/backend/pkg/response"
)

// UUIDParam 校验路径参数为 UUID，格式错误直接 400，不进入业务层
// 路由中不存在该参数时放行
func UUIDParam(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v := c.Param(name)
		if v == "" {
			c.Next()
			return
		}
		if _, err := uuid.Parse(v); err != nil {
			response.AbortBadRequest(c, 10001, "路径参数 "+name+" 格式错误")
			return
		}
		c.Next()
	}
}
