package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"nus-fire-evac/backend/config"
	"nus-fire-evac/backend/internal/api/handler"
	"nus-fire-evac/backend/internal/api/router"
	"nus-fire-evac/backend/internal/realtime"
	"nus-fire-evac/backend/internal/repository"
	"nus-fire-evac/backend/internal/service"
	"nus-fire-evac/backend/pkg/archive"
	"nus-fire-evac/backend/pkg/database"
	"nus-fire-evac/backend/pkg/identity"
	"nus-fire-evac/backend/pkg/jwt"
	applogger "nus-fire-evac/backend/pkg/logger"
	"nus-fire-evac/backend/pkg/metrics"
	"nus-fire-evac/backend/pkg/redis"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("realtime", cfg.Realtime.Backend),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（黑名单与限流可降级；redis 推送后端则必须可用）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		if cfg.Realtime.Backend == "redis" {
			logger.Fatal("Redis 连接失败，实时推送后端不可用", zap.Error(err))
		}
		logger.Warn("Redis 连接失败，Token 黑名单与限流将降级", zap.Error(err))
		rdb = nil
	}

	// 5. 实时推送
	var hub realtime.Hub
	if cfg.Realtime.Backend == "redis" {
		hub = realtime.NewRedisHub(rdb, cfg.Realtime.ChannelPrefix, cfg.Realtime.SubscriberBuffer, logger)
	} else {
		hub = realtime.NewMemoryHub(cfg.Realtime.SubscriberBuffer)
	}

	// 6. 指标
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	repo := repository.NewRepository(db)
	if m != nil {
		if n, err := repo.Incident.CountActive(context.Background()); err != nil {
			logger.Warn("统计进行中事件失败", zap.Error(err))
		} else {
			m.SetActiveIncidents(int(n))
		}
	}

	// 7. 报表归档（可选）
	var uploader archive.Uploader
	if cfg.Archive.Enabled {
		store, err := archive.NewS3Store(context.Background(), &cfg.Archive)
		if err != nil {
			logger.Fatal("初始化报表归档失败", zap.Error(err))
		}
		uploader = store
	}

	// 8. 依赖注入: Repository → Service → Handler
	jwtMgr := jwt.NewManager(&cfg.Auth)
	deps := service.Deps{
		Config:   cfg,
		Repo:     repo,
		JWT:      jwtMgr,
		Identity: identity.NewClient(&cfg.Identity, logger),
		Hub:      hub,
		Metrics:  m,
		Archive:  uploader,
		Logger:   logger,
	}
	routes := router.Deps{
		JWT:     jwtMgr,
		Metrics: m,
		Health:  healthCheck(db),
	}
	if rdb != nil {
		deps.Blacklist = rdb
		routes.Tokens = rdb
		routes.Limiter = rdb
	}
	svc := service.NewService(deps)
	routes.Resolver = svc.Role

	streamer := handler.NewStreamer(hub, cfg.Realtime.Heartbeat, m, logger)
	h := handler.NewHandler(svc, streamer, logger)

	// 9. 初始化路由
	engine := router.Setup(cfg, h, routes, logger)

	// 10. 启动 HTTP 服务器（优雅关闭）
	// 事件流为长连接，不设 WriteTimeout
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 11. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	// 先关闭推送，让事件流连接尽快返回
	if err := hub.Close(); err != nil {
		logger.Warn("关闭实时推送异常", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 关闭数据库连接
	if closeDB, _ := db.DB(); closeDB != nil {
		closeDB.Close()
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}

// healthCheck 只探测数据库；Redis 不可用时服务降级运行
func healthCheck(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("数据库不可用: %w", err)
		}
		return nil
	}
}
