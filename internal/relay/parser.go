package relay

import (
	"bytes"
	"strings"
)

// UpstreamEvent 从上游字节流还原出的单个事件
// 只在一次转发过程内存在
type UpstreamEvent struct {
	Name string
	Data string
}

// Parser 事件流解析器
// 状态只有一个累积缓冲区：每次Feed把字节追加进来，
// 反复提取空行分隔的完整段落，残留的半截段落留待后续字节补全
// 事件边界可以被任意多次读取切开（包括切在分隔符中间），
// 解析器保证不会发出半个或错切的事件
type Parser struct {
	buf []byte
}

// NewParser 创建解析器
func NewParser() *Parser {
	return &Parser{}
}

// Feed 追加一段字节，返回其中所有完整事件
func (p *Parser) Feed(data []byte) []UpstreamEvent {
	p.buf = append(p.buf, data...)

	var events []UpstreamEvent
	for {
		segment, rest, ok := splitEvent(p.buf)
		if !ok {
			break
		}
		p.buf = rest
		if event, ok := parseSegment(segment); ok {
			events = append(events, event)
		}
	}
	return events
}

// Flush 流结束时解析残留的未终结段落
// 部分上游实现省略最后一个分隔符
func (p *Parser) Flush() []UpstreamEvent {
	segment := p.buf
	p.buf = nil
	if len(bytes.TrimSpace(segment)) == 0 {
		return nil
	}
	if event, ok := parseSegment(segment); ok {
		return []UpstreamEvent{event}
	}
	return nil
}

// splitEvent 在缓冲区中找第一个事件分隔符（两个连续换行，容忍\r\n）
// 返回分隔符之前的段落和之后的剩余字节
func splitEvent(buf []byte) (segment, rest []byte, ok bool) {
	i := 0
	for i < len(buf) {
		first := newlineLen(buf[i:])
		if first == 0 {
			i++
			continue
		}
		second := newlineLen(buf[i+first:])
		if second == 0 {
			i += first
			continue
		}
		return buf[:i], buf[i+first+second:], true
	}
	return nil, buf, false
}

// newlineLen 返回起始位置换行符的长度：\r\n为2，\n为1，否则0
// 单独的\r不算换行：可能是被切开的\r\n前半截
func newlineLen(buf []byte) int {
	if len(buf) == 0 {
		return 0
	}
	if buf[0] == '\n' {
		return 1
	}
	if buf[0] == '\r' && len(buf) > 1 && buf[1] == '\n' {
		return 2
	}
	return 0
}

// parseSegment 把一个完整段落解析为事件
// 扫描event:行和一个或多个data:行，多行data用换行拼接（保留协议的多行载荷约定）
// 其余字段（id、retry、注释行）忽略
func parseSegment(segment []byte) (UpstreamEvent, bool) {
	var (
		name      string
		dataLines []string
	)

	for _, line := range strings.Split(string(segment), "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			payload := strings.TrimPrefix(line, "data:")
			payload = strings.TrimPrefix(payload, " ")
			dataLines = append(dataLines, payload)
		}
	}

	if name == "" && len(dataLines) == 0 {
		return UpstreamEvent{}, false
	}
	return UpstreamEvent{
		Name: name,
		Data: strings.Join(dataLines, "\n"),
	}, true
}
