package relay

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SSEWriter 把客户端事件以SSE格式写入HTTP响应
// 每个事件一行 data: 前缀的JSON，空行分隔，逐事件flush
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

// NewSSEWriter 设置SSE响应头并创建写入器
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flusher interface")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // 禁用nginx缓冲

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// Send 写出一个客户端事件
func (s *SSEWriter) Send(event ClientEvent) error {
	if s.closed {
		return fmt.Errorf("sse writer already closed")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal client event: %w", err)
	}

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	s.flusher.Flush()
	return nil
}

// Close 结束事件流
// HTTP响应体随handler返回而关闭，这里做最后一次flush并拒绝后续写入
func (s *SSEWriter) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.flusher.Flush()
	return nil
}
