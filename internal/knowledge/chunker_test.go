package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerEmptyText(t *testing.T) {
	c := NewChunker(100, 20)
	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n\t  "))
}

func TestChunkerShortTextSingleChunk(t *testing.T) {
	c := NewChunker(100, 20)
	chunks := c.Split("短文本")

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "短文本", chunks[0].Text)
}

func TestChunkerOverlapWindow(t *testing.T) {
	c := NewChunker(10, 4)
	text := strings.Repeat("a", 10) + strings.Repeat("b", 10)
	chunks := c.Split(text)

	require.GreaterOrEqual(t, len(chunks), 2)
	// 相邻chunk共享overlap区
	first := chunks[0].Text
	second := chunks[1].Text
	assert.Equal(t, first[len(first)-4:], second[:4])
}

func TestChunkerCutsAtSentenceBoundary(t *testing.T) {
	c := NewChunker(20, 0)
	text := strings.Repeat("甲", 17) + "。" + strings.Repeat("乙", 10)
	chunks := c.Split(text)

	require.Len(t, chunks, 2)
	// 句末标点落在窗口尾部回看范围内，切分点提前到它之后
	assert.Equal(t, strings.Repeat("甲", 17)+"。", chunks[0].Text)
	assert.Equal(t, strings.Repeat("乙", 10), chunks[1].Text)
}

func TestChunkerKeepsFullWindowWithoutPunctuation(t *testing.T) {
	c := NewChunker(10, 0)
	chunks := c.Split(strings.Repeat("x", 25))

	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("x", 10), chunks[0].Text)
	assert.Equal(t, strings.Repeat("x", 10), chunks[1].Text)
	assert.Equal(t, strings.Repeat("x", 5), chunks[2].Text)
}

func TestChunkerIndicesSequential(t *testing.T) {
	c := NewChunker(50, 10)
	chunks := c.Split(strings.Repeat("测试文本内容 ", 100))

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
	}
}

func TestChunkerNormalizesWhitespace(t *testing.T) {
	c := NewChunker(100, 0)
	chunks := c.Split("多个   空白\n\n字符\t归一")

	require.Len(t, chunks, 1)
	assert.Equal(t, "多个 空白 字符 归一", chunks[0].Text)
}

func TestChunkerRuneBoundaries(t *testing.T) {
	c := NewChunker(5, 1)
	chunks := c.Split("中文字符不能被切成半个字节序列")

	for _, chunk := range chunks {
		// 每个chunk必须是合法的UTF-8
		assert.True(t, strings.ToValidUTF8(chunk.Text, "") == chunk.Text)
	}
}

func TestChunkerDefaultsOnBadParams(t *testing.T) {
	c := NewChunker(0, -5)
	chunks := c.Split("文本")
	require.Len(t, chunks, 1)

	// overlap大于size时自动回退，避免死循环
	c = NewChunker(10, 100)
	chunks = c.Split(strings.Repeat("x", 50))
	assert.NotEmpty(t, chunks)
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", normalizeWhitespace("  a\n b\t\tc  "))
	assert.Equal(t, "", normalizeWhitespace("\r\n\t "))
}
