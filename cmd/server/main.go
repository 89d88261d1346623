package main

import (
	"log"
	"strconv"

	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"

	"github.com/aihub/rag-gateway/app/bootstrap"
	"github.com/aihub/rag-gateway/internal/logger"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Cleanup()

	web.BConfig.AppName = "RAG Gateway"
	if port, err := strconv.Atoi(app.Config.Server.Port); err == nil {
		web.BConfig.Listen.HTTPPort = port
	}

	logger.Info("🚀 Starting RAG Gateway", zap.Int("port", web.BConfig.Listen.HTTPPort))
	web.Run()
}
