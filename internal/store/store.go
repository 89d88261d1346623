package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ChunkStore 分块存储抽象：按前缀分页列举键 + 单键读取
// 检索核心只依赖这两个只读操作，写入由离线入库管道完成
type ChunkStore interface {
	// List 按前缀分页列举键名
	// cursor为空表示从头开始；返回的nextCursor为空表示遍历结束
	// 单页返回的键数量由实现决定，不保证一次返回全部匹配键
	List(ctx context.Context, prefix, cursor string) (keys []string, nextCursor string, err error)

	// Get 单键读取，键不存在是正常结果（found=false），不是错误
	// 分块可能已过期或被并发删除
	Get(ctx context.Context, key string) (raw []byte, found bool, err error)

	// Ready 检查存储是否可用
	Ready() bool
}

// ChunkWriter 入库管道使用的写入接口
type ChunkWriter interface {
	Put(ctx context.Context, key string, record *ChunkRecord) error
}

// ChunkRecord 持久化的分块记录，入库时创建一次，之后不再修改
// 消费方容忍未知的额外字段
type ChunkRecord struct {
	ID        string    `json:"id"`
	DocID     string    `json:"doc_id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

// ErrInvalidRecord 记录缺少必要字段
var ErrInvalidRecord = errors.New("invalid chunk record")

// ParseChunkRecord 解析分块记录的唯一校验边界
// 只在这里拒绝非法形态，不在业务逻辑中散布可选字段检查
func ParseChunkRecord(raw []byte) (*ChunkRecord, error) {
	var record ChunkRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("unmarshal chunk record: %w", err)
	}
	if record.ID == "" || record.Text == "" {
		return nil, ErrInvalidRecord
	}
	if len(record.Embedding) == 0 {
		return nil, fmt.Errorf("%w: missing embedding", ErrInvalidRecord)
	}
	return &record, nil
}

// ChunkKey 生成分块存储键，格式 doc:<docId>:chunk:<index>
func ChunkKey(docID string, index int) string {
	return fmt.Sprintf("doc:%s:chunk:%d", docID, index)
}

// DocPrefix 生成单个文档的键前缀，用于限定扫描范围
func DocPrefix(docID string) string {
	return fmt.Sprintf("doc:%s:", docID)
}

// HasPrefix 判断键是否在指定命名空间内，空前缀匹配所有键
func HasPrefix(key, prefix string) bool {
	return prefix == "" || strings.HasPrefix(key, prefix)
}
