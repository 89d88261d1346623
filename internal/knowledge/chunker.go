package knowledge

import (
	"strings"
	"unicode"
)

// Chunk 表示切分后的一段文本
type Chunk struct {
	Index int
	Text  string
}

const defaultChunkSize = 800

// 句末标点。窗口尾部回看时优先在这些字符之后切分，
// 避免把一句话硬切成前后两块
var sentenceEnders = map[rune]bool{
	'。': true, '！': true, '？': true, '；': true,
	'.': true, '!': true, '?': true, ';': true,
}

// Chunker 文本分块器
// 按rune滑动窗口切分，窗口尾部回看句末标点取更自然的边界，相邻块保留重叠区
type Chunker struct {
	size    int
	overlap int
}

// NewChunker 创建分块器
// 参数由配置校验保证合法，这里只兜底防止死循环
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split 将文本切分为多个chunk，空白折叠后为空则返回nil
func (c *Chunker) Split(text string) []Chunk {
	runes := []rune(normalizeWhitespace(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.cutPoint(runes, start, end)
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, Chunk{
				Index: len(chunks),
				Text:  piece,
			})
		}

		if end == len(runes) {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// cutPoint 从窗口末尾向前找句末标点，找到则在其后切分
// 回看范围限制在窗口后1/4，找不到就保持整窗切分
func (c *Chunker) cutPoint(runes []rune, start, end int) int {
	limit := end - c.size/4
	if limit <= start {
		limit = start + 1
	}
	for i := end - 1; i >= limit; i-- {
		if sentenceEnders[runes[i]] {
			return i + 1
		}
	}
	return end
}

func normalizeWhitespace(s string) string {
	var builder strings.Builder
	builder.Grow(len(s))

	var prevSpace bool
	for _, r := range s {
		if unicode.IsSpace(r) {
			if prevSpace {
				continue
			}
			builder.WriteRune(' ')
			prevSpace = true
			continue
		}
		builder.WriteRune(r)
		prevSpace = false
	}

	return strings.TrimSpace(builder.String())
}
