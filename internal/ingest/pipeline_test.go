package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aihub/rag-gateway/internal/config"
	"github.com/aihub/rag-gateway/internal/store"
)

// fixedEmbedder 返回固定向量的测试用embedder
type fixedEmbedder struct{}

func (e *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (e *fixedEmbedder) Dimensions() int { return 3 }
func (e *fixedEmbedder) Ready() bool     { return true }

func testKnowledgeConfig() config.KnowledgeConfig {
	return config.KnowledgeConfig{
		ChunkSize:    50,
		ChunkOverlap: 10,
		MaxParallel:  2,
	}
}

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestPipelineIngestsLocalDirectory(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "guide.txt", strings.Repeat("知识库内容 ", 30))
	writeTestFile(t, dir, "notes.md", "一段简短笔记")
	writeTestFile(t, dir, "image.png", "binary stuff")

	s := store.NewMemoryChunkStore(100)
	p := NewPipeline(testKnowledgeConfig(), &fixedEmbedder{}, s, zap.NewNop())

	stats, err := p.Run(context.Background(), NewLocalDirSource(dir))
	require.NoError(t, err)

	// png被跳过，两个文本文件入库
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 0, stats.Failed)
	assert.Greater(t, stats.Chunks, 1)
	assert.Equal(t, stats.Chunks, s.Len())
}

func TestPipelineWritesParsableRecords(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "doc.txt", "入库后的记录必须能被检索端解析")

	s := store.NewMemoryChunkStore(100)
	p := NewPipeline(testKnowledgeConfig(), &fixedEmbedder{}, s, zap.NewNop())

	_, err := p.Run(context.Background(), NewLocalDirSource(dir))
	require.NoError(t, err)

	raw, found, err := s.Get(context.Background(), store.ChunkKey("doc", 0))
	require.NoError(t, err)
	require.True(t, found)

	record, err := store.ParseChunkRecord(raw)
	require.NoError(t, err)
	assert.Equal(t, "doc", record.DocID)
	assert.Equal(t, store.ChunkKey("doc", 0), record.ID)
	assert.Len(t, record.Embedding, 3)
}

func TestPipelineSingleFileSource(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "single.txt", "单文件入库")

	s := store.NewMemoryChunkStore(100)
	p := NewPipeline(testKnowledgeConfig(), &fixedEmbedder{}, s, zap.NewNop())

	stats, err := p.Run(context.Background(), NewSingleFileSource(filepath.Join(dir, "single.txt")))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
}

func TestPipelineRequiresReadyEmbedder(t *testing.T) {
	s := store.NewMemoryChunkStore(100)
	p := NewPipeline(testKnowledgeConfig(), &notReadyEmbedder{}, s, zap.NewNop())

	_, err := p.Run(context.Background(), NewLocalDirSource(t.TempDir()))
	require.Error(t, err)
}

type notReadyEmbedder struct{ fixedEmbedder }

func (e *notReadyEmbedder) Ready() bool { return false }

func TestDocIDFromName(t *testing.T) {
	assert.Equal(t, "user-guide", DocIDFromName("user guide.pdf"))
	assert.Equal(t, "说明文档", DocIDFromName("说明文档.docx"))
	assert.Equal(t, "a_b-c", DocIDFromName("a_b-c.txt"))
	assert.Equal(t, "document", DocIDFromName("???.txt"))
}
