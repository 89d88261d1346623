package relay

import (
	"context"
	"encoding/json"
	"io"

	"go.uber.org/zap"
)

// 上游事件名：只转发这三种，其余一律丢弃
// 客户端协议有意保持最小词汇表
const (
	upstreamEventTextDelta = "response.output_text.delta"
	upstreamEventCompleted = "response.completed"
	upstreamEventError     = "error"
)

// 客户端事件类型
const (
	ClientEventDelta = "delta"
	ClientEventDone  = "done"
	ClientEventError = "error"
)

// ClientEvent 客户端协议事件：delta / done / error
type ClientEvent struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
}

// EventSink 转发器的输出端
// Close保证恰好被调用一次，任何路径都不允许让输出保持打开
type EventSink interface {
	Send(event ClientEvent) error
	Close() error
}

// deltaPayload 增量文本事件的载荷
type deltaPayload struct {
	Delta string `json:"delta"`
}

// errorPayload 上游错误事件的载荷
type errorPayload struct {
	Message string `json:"message"`
}

// Relay 流转发器
// 消费上游事件流，过滤映射为客户端词汇表后写入输出端，
// 保证任何有限输入下恰好发出一个终结事件（done或error）并关闭输出一次
type Relay struct {
	sink     EventSink
	logger   *zap.Logger
	terminal bool
	closed   bool
}

// NewRelay 创建转发器，输出端所有权移交给转发器
func NewRelay(sink EventSink, logger *zap.Logger) *Relay {
	return &Relay{sink: sink, logger: logger}
}

// Run 读取上游字节流并转发，结束时关闭输出
// 上游读取中途出错时发出恰好一个合成error终结事件；
// 正常走到流尾但上游没有给出终结事件时补发done
func (r *Relay) Run(ctx context.Context, upstream io.Reader) {
	defer r.close()

	parser := NewParser()
	buf := make([]byte, 4096)

	for !r.terminal {
		if err := ctx.Err(); err != nil {
			// 调用方断开：放弃转发，上游连接由调用方关闭
			r.logger.Debug("relay canceled", zap.Error(err))
			return
		}

		n, err := upstream.Read(buf)
		if n > 0 {
			r.dispatch(parser.Feed(buf[:n]))
		}
		if err == io.EOF {
			r.dispatch(parser.Flush())
			if !r.terminal {
				r.emit(ClientEvent{Type: ClientEventDone})
			}
			return
		}
		if err != nil {
			if !r.terminal {
				r.emit(ClientEvent{Type: ClientEventError, Message: err.Error()})
			}
			return
		}
	}
}

// RunSynthetic 合成模式：没有任何上游流可用时（严格模式拒答、生成服务不可用），
// 用固定消息走与真实回答完全相同的客户端协议，不接触任何外部服务
func (r *Relay) RunSynthetic(message string) {
	defer r.close()

	r.send(ClientEvent{Type: ClientEventDelta, Text: message})
	r.emit(ClientEvent{Type: ClientEventDone})
}

// RunSyntheticError 合成错误模式：流已经开始后发生的故障
// 只发出一个error终结事件
func (r *Relay) RunSyntheticError(message string) {
	defer r.close()
	r.emit(ClientEvent{Type: ClientEventError, Message: message})
}

// dispatch 把上游事件映射为客户端事件
// 载荷解析失败的事件按噪声丢弃，不向客户端传播为错误
func (r *Relay) dispatch(events []UpstreamEvent) {
	for _, event := range events {
		if r.terminal {
			return
		}
		switch event.Name {
		case upstreamEventTextDelta:
			var payload deltaPayload
			if err := json.Unmarshal([]byte(event.Data), &payload); err != nil {
				r.logger.Debug("dropping malformed delta frame", zap.Error(err))
				continue
			}
			if payload.Delta == "" {
				continue
			}
			r.send(ClientEvent{Type: ClientEventDelta, Text: payload.Delta})
		case upstreamEventCompleted:
			r.emit(ClientEvent{Type: ClientEventDone})
		case upstreamEventError:
			var payload errorPayload
			message := "generation failed"
			if err := json.Unmarshal([]byte(event.Data), &payload); err == nil && payload.Message != "" {
				message = payload.Message
			}
			r.emit(ClientEvent{Type: ClientEventError, Message: message})
		default:
			// 状态、工具调用、元数据等事件种类全部丢弃
		}
	}
}

// send 发送非终结事件
func (r *Relay) send(event ClientEvent) {
	if err := r.sink.Send(event); err != nil {
		// 客户端写失败（通常是断开），停止继续转发
		r.logger.Debug("relay send failed", zap.Error(err))
		r.terminal = true
	}
}

// emit 发送终结事件，保证至多一次
func (r *Relay) emit(event ClientEvent) {
	if r.terminal {
		return
	}
	r.terminal = true
	if err := r.sink.Send(event); err != nil {
		r.logger.Debug("relay send failed", zap.Error(err))
	}
}

// close 关闭输出端，保证恰好一次
func (r *Relay) close() {
	if r.closed {
		return
	}
	r.closed = true
	if err := r.sink.Close(); err != nil {
		r.logger.Debug("relay close failed", zap.Error(err))
	}
}
