package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// MemoryChunkStore 内存分块存储，供测试和本地开发使用
// 分页行为确定：按键名排序，游标是下一页的起始下标
type MemoryChunkStore struct {
	mu       sync.RWMutex
	data     map[string][]byte
	pageSize int
}

// NewMemoryChunkStore 创建内存分块存储
func NewMemoryChunkStore(pageSize int) *MemoryChunkStore {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &MemoryChunkStore{
		data:     make(map[string][]byte),
		pageSize: pageSize,
	}
}

func (s *MemoryChunkStore) List(ctx context.Context, prefix, cursor string) ([]string, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	s.mu.RLock()
	matched := make([]string, 0, len(s.data))
	for key := range s.data {
		if HasPrefix(key, prefix) {
			matched = append(matched, key)
		}
	}
	s.mu.RUnlock()
	sort.Strings(matched)

	start := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil || parsed < 0 {
			return nil, "", fmt.Errorf("invalid list cursor %q", cursor)
		}
		start = parsed
	}
	if start >= len(matched) {
		return nil, "", nil
	}

	end := start + s.pageSize
	if end >= len(matched) {
		return matched[start:], "", nil
	}
	return matched[start:end], strconv.Itoa(end), nil
}

func (s *MemoryChunkStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return raw, true, nil
}

func (s *MemoryChunkStore) Put(ctx context.Context, key string, record *ChunkRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal chunk record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = raw
	return nil
}

// PutRaw 直接写入原始字节，用于在测试中构造坏数据
func (s *MemoryChunkStore) PutRaw(key string, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = raw
}

func (s *MemoryChunkStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *MemoryChunkStore) Ready() bool {
	return s != nil
}
