package database

import (
	"context"
	"fmt"

	"github.com/aihub/rag-gateway/internal/config"
	"github.com/redis/go-redis/v9"
)

// InitRedis 建立Redis连接并验证可达性
func InitRedis(cfg *config.Config) (*redis.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		DB:       cfg.Redis.DB,
		Password: cfg.Redis.Password,
	})

	// 测试连接
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return rdb, nil
}
