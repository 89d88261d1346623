package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/aihub/rag-gateway/internal/config"
	"github.com/aihub/rag-gateway/internal/database"
	"github.com/aihub/rag-gateway/internal/ingest"
	"github.com/aihub/rag-gateway/internal/knowledge"
	"github.com/aihub/rag-gateway/internal/logger"
	"github.com/aihub/rag-gateway/internal/store"
)

func main() {
	var (
		dir      = flag.String("dir", "", "本地文档目录（覆盖配置中的来源）")
		docFile  = flag.String("file", "", "入库单个文件")
		purgeDoc = flag.String("purge", "", "删除指定文档的全部分块")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := logger.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	redisClient, err := database.InitRedis(cfg)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	ttl := time.Duration(cfg.Knowledge.ChunkTTL) * time.Second
	chunkStore := store.NewRedisChunkStore(redisClient, cfg.Retrieval.PageSize, ttl)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *purgeDoc != "" {
		deleted, err := chunkStore.DeleteDocument(ctx, *purgeDoc)
		if err != nil {
			log.Fatalf("failed to purge document: %v", err)
		}
		fmt.Printf("已删除文档 %s 的 %d 个分块\n", *purgeDoc, deleted)
		return
	}

	embedder := knowledge.NewEmbedder(cfg.AI)
	pipeline := ingest.NewPipeline(cfg.Knowledge, embedder, chunkStore, logger.GetLogger())

	source, err := resolveSource(cfg, *dir, *docFile)
	if err != nil {
		log.Fatalf("failed to resolve document source: %v", err)
	}

	stats, err := pipeline.Run(ctx, source)
	if err != nil {
		logger.Error("ingestion aborted", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("ingestion finished",
		zap.Int("documents", stats.Documents),
		zap.Int("chunks", stats.Chunks),
		zap.Int("failed", stats.Failed))
	fmt.Printf("入库完成: %d 个文档, %d 个分块, %d 个失败\n",
		stats.Documents, stats.Chunks, stats.Failed)
}

// resolveSource 按命令行参数和配置选择文档来源
func resolveSource(cfg *config.Config, dir, file string) (ingest.DocumentSource, error) {
	if file != "" {
		return ingest.NewSingleFileSource(file), nil
	}
	if dir != "" {
		return ingest.NewLocalDirSource(dir), nil
	}
	return ingest.NewSource(cfg.Knowledge.Storage)
}
