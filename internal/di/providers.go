package di

import (
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/aihub/rag-gateway/internal/config"
	"github.com/aihub/rag-gateway/internal/kafka"
	"github.com/aihub/rag-gateway/internal/knowledge"
	"github.com/aihub/rag-gateway/internal/llm"
	"github.com/aihub/rag-gateway/internal/logger"
	"github.com/aihub/rag-gateway/internal/prompt"
	"github.com/aihub/rag-gateway/internal/retrieval"
	"github.com/aihub/rag-gateway/internal/services"
	"github.com/aihub/rag-gateway/internal/store"
)

// RegisterProviders 注册所有依赖提供者
// 配置和redis客户端由启动流程创建后传入，容器只负责组装问答链路
func RegisterProviders(container *dig.Container, cfg *config.Config, redisClient *redis.Client) error {
	providers := []interface{}{
		func() *config.Config { return cfg },
		func() *redis.Client { return redisClient },
		func() *zap.Logger { return logger.GetLogger() },

		func(client *redis.Client, cfg *config.Config) store.ChunkStore {
			ttl := time.Duration(cfg.Knowledge.ChunkTTL) * time.Second
			return store.NewRedisChunkStore(client, cfg.Retrieval.PageSize, ttl)
		},
		func(cfg *config.Config) knowledge.Embedder {
			return knowledge.NewEmbedder(cfg.AI)
		},
		func(chunks store.ChunkStore, cfg *config.Config, log *zap.Logger) *retrieval.Retriever {
			return retrieval.NewRetriever(chunks, cfg.Retrieval, log)
		},
		prompt.NewAssembler,
		func(cfg *config.Config, log *zap.Logger) *llm.Client {
			return llm.NewClient(
				cfg.AI.LLMAPIKey,
				cfg.AI.LLMBaseURL,
				cfg.AI.LLMModel,
				time.Duration(cfg.AI.LLMTimeoutSeconds)*time.Second,
				log,
			)
		},
		func(cfg *config.Config) (*kafka.AuditProducer, error) {
			return kafka.NewAuditProducer(cfg.Kafka)
		},
		services.NewMetricsService,
		services.NewChatService,
	}

	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return err
		}
	}
	return nil
}
