package bootstrap

import (
	"log"

	"github.com/beego/beego/v2/server/web"
	"github.com/joho/godotenv"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/aihub/rag-gateway/app/router"
	"github.com/aihub/rag-gateway/internal/config"
	"github.com/aihub/rag-gateway/internal/database"
	"github.com/aihub/rag-gateway/internal/di"
	"github.com/aihub/rag-gateway/internal/kafka"
	"github.com/aihub/rag-gateway/internal/logger"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	Config    *config.Config
	Container *dig.Container

	cleanupTasks []func() error
}

// Init bootstraps configuration, logger, redis and the service container
// required by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	if err := logger.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		return nil, err
	}

	app := &App{Config: cfg}
	app.cleanupTasks = append(app.cleanupTasks, func() error {
		logger.Sync()
		return nil
	})

	redisClient, err := database.InitRedis(cfg)
	if err != nil {
		return nil, err
	}
	app.cleanupTasks = append(app.cleanupTasks, redisClient.Close)

	container := di.InitContainer()
	if err := di.RegisterProviders(container, cfg, redisClient); err != nil {
		return nil, err
	}
	app.Container = container

	// 审计生产者在关闭时需要flush
	if err := container.Invoke(func(audit *kafka.AuditProducer) {
		app.cleanupTasks = append(app.cleanupTasks, audit.Close)
	}); err != nil {
		return nil, err
	}

	router.Init()

	configureWeb(cfg)

	logger.Info("application bootstrapped",
		zap.String("port", cfg.Server.Port),
		zap.String("env", cfg.Server.Env))

	return app, nil
}

// configureWeb 设置beego运行参数
// CopyRequestBody必须开启，控制器才能读到原始请求体
func configureWeb(cfg *config.Config) {
	web.BConfig.CopyRequestBody = true
	web.BConfig.RunMode = web.DEV
	if cfg.Server.Env == "production" {
		web.BConfig.RunMode = web.PROD
	}
}

// Cleanup releases all resources acquired during Init, in reverse order.
func (a *App) Cleanup() {
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			log.Printf("cleanup task failed: %v", err)
		}
	}
}
