package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aihub/rag-gateway/internal/config"
	"github.com/aihub/rag-gateway/internal/store"
	"github.com/aihub/rag-gateway/internal/vector"
	"go.uber.org/zap"
)

// ErrStoreUnavailable 存储列举或读取失败
// 必须与"没有命中任何内容"区分：前者是服务故障，后者是正常的空结果
var ErrStoreUnavailable = errors.New("chunk store unavailable")

// ScoredCandidate 单次检索过程中的打分候选，请求结束即丢弃
type ScoredCandidate struct {
	Text  string
	DocID string
	Score float64
}

// Result 检索结果，按得分降序，长度不超过TopK，可以为空
type Result struct {
	Candidates []ScoredCandidate
	// PagesScanned / ChunksFetched 供监控用
	PagesScanned  int
	ChunksFetched int
}

// Empty 判断是否没有命中任何内容
func (r *Result) Empty() bool {
	return len(r.Candidates) == 0
}

// Retriever 有界分页检索器
// 对分块命名空间做分页扫描，逐条打分，返回超过阈值的TopK
type Retriever struct {
	chunks store.ChunkStore
	cfg    config.RetrievalConfig
	logger *zap.Logger
}

// NewRetriever 创建检索器
func NewRetriever(chunks store.ChunkStore, cfg config.RetrievalConfig, logger *zap.Logger) *Retriever {
	return &Retriever{
		chunks: chunks,
		cfg:    cfg,
		logger: logger,
	}
}

// Retrieve 用查询向量执行一次有界检索
// 扫描终止条件：游标耗尽 / 达到MaxPages / 达到MaxCandidates，先到先停
// 解析失败或缺失embedding的记录按数据噪声跳过，单条坏记录不使整个请求失败
// 存储故障返回包装了ErrStoreUnavailable的错误，绝不伪装成空结果
func (r *Retriever) Retrieve(ctx context.Context, queryVector []float32) (*Result, error) {
	if r.chunks == nil || !r.chunks.Ready() {
		return nil, fmt.Errorf("%w: store not configured", ErrStoreUnavailable)
	}
	if len(queryVector) == 0 {
		return nil, errors.New("query vector is empty")
	}

	var (
		collected []ScoredCandidate
		fetched   int
		pages     int
		cursor    string
	)

	for pages < r.cfg.MaxPages {
		remaining := r.cfg.MaxCandidates - fetched
		if remaining <= 0 {
			break
		}

		keys, next, err := r.chunks.List(ctx, r.cfg.KeyPrefix, cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		pages++

		if len(keys) > remaining {
			keys = keys[:remaining]
		}

		pageCandidates, err := r.fetchAndScore(ctx, keys, queryVector)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		fetched += len(keys)
		collected = append(collected, pageCandidates...)

		if next == "" {
			break
		}
		cursor = next
	}

	// 稳定排序：得分降序，同分保持发现顺序
	sort.SliceStable(collected, func(i, j int) bool {
		return collected[i].Score > collected[j].Score
	})

	// 阈值过滤后截取TopK
	ranked := make([]ScoredCandidate, 0, r.cfg.TopK)
	for _, c := range collected {
		if c.Score < r.cfg.MinScore {
			continue
		}
		ranked = append(ranked, c)
		if len(ranked) == r.cfg.TopK {
			break
		}
	}

	r.logger.Debug("retrieval pass finished",
		zap.Int("pages_scanned", pages),
		zap.Int("chunks_fetched", fetched),
		zap.Int("results", len(ranked)))

	return &Result{
		Candidates:    ranked,
		PagesScanned:  pages,
		ChunksFetched: fetched,
	}, nil
}

// fetchAndScore 并发读取一页的键并打分
// 并发度由页大小自然限定（平台返回的页都很小），不需要显式协程池
func (r *Retriever) fetchAndScore(ctx context.Context, keys []string, queryVector []float32) ([]ScoredCandidate, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	type slot struct {
		candidate ScoredCandidate
		valid     bool
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	slots := make([]slot, len(keys))

	for i, key := range keys {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()

			raw, found, err := r.chunks.Get(ctx, key)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			if !found {
				// 分块可能已过期或被并发删除，正常跳过
				return
			}

			record, err := store.ParseChunkRecord(raw)
			if err != nil {
				r.logger.Debug("skipping malformed chunk record",
					zap.String("key", key), zap.Error(err))
				return
			}

			score := vector.CosineSimilarity(queryVector, record.Embedding)
			if score == vector.MinScore {
				// 缺失或维度不匹配的embedding不参与排名，
				// 不能给默认分让它排到真实结果前面
				r.logger.Debug("skipping chunk with incomparable embedding",
					zap.String("key", key),
					zap.Int("dimensions", len(record.Embedding)))
				return
			}

			slots[i] = slot{
				candidate: ScoredCandidate{
					Text:  record.Text,
					DocID: record.DocID,
					Score: score,
				},
				valid: true,
			}
		}(i, key)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	// 按键的原始顺序收集，保证发现顺序确定
	candidates := make([]ScoredCandidate, 0, len(keys))
	for _, s := range slots {
		if s.valid {
			candidates = append(candidates, s.candidate)
		}
	}
	return candidates, nil
}
