package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/aihub/rag-gateway/internal/config"
	"github.com/aihub/rag-gateway/internal/knowledge"
	"github.com/aihub/rag-gateway/internal/store"
)

// Stats 入库统计
type Stats struct {
	Documents int
	Chunks    int
	Failed    int
}

// Pipeline 文档入库管道：解析 -> 分块 -> 向量化 -> 写入分块存储
type Pipeline struct {
	parsers  *knowledge.ParserRegistry
	chunker  *knowledge.Chunker
	embedder knowledge.Embedder
	writer   store.ChunkWriter
	parallel int
	logger   *zap.Logger
}

// NewPipeline 创建入库管道
func NewPipeline(cfg config.KnowledgeConfig, embedder knowledge.Embedder, writer store.ChunkWriter, logger *zap.Logger) *Pipeline {
	parallel := cfg.MaxParallel
	if parallel <= 0 {
		parallel = 1
	}
	return &Pipeline{
		parsers:  knowledge.NewParserRegistry(),
		chunker:  knowledge.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder: embedder,
		writer:   writer,
		parallel: parallel,
		logger:   logger,
	}
}

// Run 遍历来源并入库全部文档
// 单个文档失败记入统计并继续，不中断整体入库
func (p *Pipeline) Run(ctx context.Context, source DocumentSource) (*Stats, error) {
	if !p.embedder.Ready() {
		return nil, fmt.Errorf("embedding provider not ready")
	}

	stats := &Stats{}
	err := source.Walk(ctx, func(doc Document) error {
		defer doc.Reader.Close()

		if !p.parsers.Supports(doc.Name) {
			p.logger.Debug("skipping unsupported file", zap.String("file", doc.Name))
			return nil
		}

		chunks, err := p.IngestDocument(ctx, doc)
		if err != nil {
			stats.Failed++
			p.logger.Error("failed to ingest document",
				zap.String("file", doc.Name),
				zap.Error(err))
			// 上下文取消时停止整个遍历
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		}

		stats.Documents++
		stats.Chunks += chunks
		p.logger.Info("document ingested",
			zap.String("file", doc.Name),
			zap.Int("chunks", chunks))
		return nil
	})
	if err != nil {
		return stats, err
	}
	return stats, nil
}

// IngestDocument 入库单个文档，返回写入的分块数量
func (p *Pipeline) IngestDocument(ctx context.Context, doc Document) (int, error) {
	text, err := p.parsers.Parse(doc.Reader, doc.Name)
	if err != nil {
		return 0, fmt.Errorf("解析文档失败: %w", err)
	}

	chunks := p.chunker.Split(text)
	if len(chunks) == 0 {
		return 0, nil
	}

	docID := DocIDFromName(doc.Name)

	// 并发向量化，信号量限制并发度
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, p.parallel)

	for _, chunk := range chunks {
		wg.Add(1)
		sem <- struct{}{}
		go func(chunk knowledge.Chunk) {
			defer wg.Done()
			defer func() { <-sem }()

			mu.Lock()
			failed := firstErr != nil
			mu.Unlock()
			if failed || ctx.Err() != nil {
				return
			}

			embedding, err := p.embedder.Embed(ctx, chunk.Text)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("向量化失败: %w", err)
				}
				mu.Unlock()
				return
			}

			key := store.ChunkKey(docID, chunk.Index)
			record := &store.ChunkRecord{
				ID:        key,
				DocID:     docID,
				Text:      chunk.Text,
				Embedding: embedding,
			}
			if err := p.writer.Put(ctx, key, record); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("写入分块失败: %w", err)
				}
				mu.Unlock()
			}
		}(chunk)
	}
	wg.Wait()

	if firstErr != nil {
		return 0, firstErr
	}
	return len(chunks), nil
}

var docIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_\p{Han}-]+`)

// DocIDFromName 从文件名生成文档ID：去扩展名并替换非法字符
func DocIDFromName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	id := docIDSanitizer.ReplaceAllString(base, "-")
	id = strings.Trim(id, "-")
	if id == "" {
		id = "document"
	}
	return id
}
