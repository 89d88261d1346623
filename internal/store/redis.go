package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisChunkStore 基于Redis的分块存储
// List由SCAN实现：游标即SCAN游标的十进制字符串，对调用方不透明
type RedisChunkStore struct {
	client   *redis.Client
	pageSize int64
	ttl      time.Duration
}

// NewRedisChunkStore 创建Redis分块存储
// pageSize作为SCAN COUNT提示；ttl为写入分块的过期时间，0表示不过期
func NewRedisChunkStore(client *redis.Client, pageSize int, ttl time.Duration) *RedisChunkStore {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &RedisChunkStore{
		client:   client,
		pageSize: int64(pageSize),
		ttl:      ttl,
	}
}

// List 按前缀分页列举键
// SCAN在遍历完成前可能返回空页（keys为空但游标非零），
// 调用方依靠maxPages上界保证终止，这里不做额外循环
func (s *RedisChunkStore) List(ctx context.Context, prefix, cursor string) ([]string, string, error) {
	if s.client == nil {
		return nil, "", fmt.Errorf("redis client not initialized")
	}

	var scanCursor uint64
	if cursor != "" {
		parsed, err := strconv.ParseUint(cursor, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("invalid list cursor %q: %w", cursor, err)
		}
		scanCursor = parsed
	}

	match := prefix + "*"
	keys, next, err := s.client.Scan(ctx, scanCursor, match, s.pageSize).Result()
	if err != nil {
		return nil, "", fmt.Errorf("scan keys with prefix %q: %w", prefix, err)
	}

	if next == 0 {
		return keys, "", nil
	}
	return keys, strconv.FormatUint(next, 10), nil
}

// Get 单键读取，redis.Nil表示键不存在，按正常缺失处理
func (s *RedisChunkStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.client == nil {
		return nil, false, fmt.Errorf("redis client not initialized")
	}

	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get chunk %q: %w", key, err)
	}
	return raw, true, nil
}

// Put 写入分块记录（入库管道使用）
func (s *RedisChunkStore) Put(ctx context.Context, key string, record *ChunkRecord) error {
	if s.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal chunk record: %w", err)
	}

	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store chunk %q: %w", key, err)
	}
	return nil
}

// DeleteDocument 删除文档的全部分块（文档管理操作）
func (s *RedisChunkStore) DeleteDocument(ctx context.Context, docID string) (int, error) {
	if s.client == nil {
		return 0, fmt.Errorf("redis client not initialized")
	}

	deleted := 0
	cursor := ""
	for {
		keys, next, err := s.List(ctx, DocPrefix(docID), cursor)
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return deleted, fmt.Errorf("delete document chunks: %w", err)
			}
			deleted += len(keys)
		}
		if next == "" {
			return deleted, nil
		}
		cursor = next
	}
}

// Ready 检查存储是否可用
func (s *RedisChunkStore) Ready() bool {
	return s != nil && s.client != nil
}
