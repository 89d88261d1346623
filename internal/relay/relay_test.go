package relay

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingSink 记录所有发出的事件和关闭次数
type recordingSink struct {
	events     []ClientEvent
	closeCount int
	sendErr    error
}

func (s *recordingSink) Send(event ClientEvent) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Close() error {
	s.closeCount++
	return nil
}

func (s *recordingSink) terminalEvents() []ClientEvent {
	var terminal []ClientEvent
	for _, e := range s.events {
		if e.Type == ClientEventDone || e.Type == ClientEventError {
			terminal = append(terminal, e)
		}
	}
	return terminal
}

// errorReader 返回部分数据后报错
type errorReader struct {
	data string
	err  error
	read bool
}

func (r *errorReader) Read(p []byte) (int, error) {
	if !r.read {
		r.read = true
		n := copy(p, r.data)
		return n, nil
	}
	return 0, r.err
}

func runRelay(t *testing.T, input string) *recordingSink {
	t.Helper()
	sink := &recordingSink{}
	r := NewRelay(sink, zap.NewNop())
	r.Run(context.Background(), strings.NewReader(input))
	return sink
}

func TestRelayHappyPath(t *testing.T) {
	input := "event: response.output_text.delta\ndata: {\"delta\":\"你\"}\n\n" +
		"event: response.output_text.delta\ndata: {\"delta\":\"好\"}\n\n" +
		"event: response.completed\ndata: {}\n\n"

	sink := runRelay(t, input)

	require.Len(t, sink.events, 3)
	assert.Equal(t, ClientEvent{Type: ClientEventDelta, Text: "你"}, sink.events[0])
	assert.Equal(t, ClientEvent{Type: ClientEventDelta, Text: "好"}, sink.events[1])
	assert.Equal(t, ClientEvent{Type: ClientEventDone}, sink.events[2])
	assert.Equal(t, 1, sink.closeCount)
}

func TestRelayExactlyOneTerminalEvent(t *testing.T) {
	// 上游在completed之后还发了事件：终结后必须全部丢弃
	input := "event: response.completed\ndata: {}\n\n" +
		"event: response.output_text.delta\ndata: {\"delta\":\"late\"}\n\n" +
		"event: response.completed\ndata: {}\n\n"

	sink := runRelay(t, input)

	require.Len(t, sink.terminalEvents(), 1)
	require.Len(t, sink.events, 1)
	assert.Equal(t, ClientEventDone, sink.events[0].Type)
}

func TestRelayDropsUnknownEventKinds(t *testing.T) {
	input := "event: response.created\ndata: {}\n\n" +
		"event: response.in_progress\ndata: {}\n\n" +
		"event: response.output_text.delta\ndata: {\"delta\":\"hi\"}\n\n" +
		"event: response.output_item.done\ndata: {}\n\n" +
		"event: response.completed\ndata: {}\n\n"

	sink := runRelay(t, input)

	require.Len(t, sink.events, 2)
	assert.Equal(t, ClientEventDelta, sink.events[0].Type)
	assert.Equal(t, ClientEventDone, sink.events[1].Type)
}

func TestRelayDropsMalformedDeltaPayload(t *testing.T) {
	input := "event: response.output_text.delta\ndata: not-json\n\n" +
		"event: response.output_text.delta\ndata: {\"delta\":\"ok\"}\n\n" +
		"event: response.completed\ndata: {}\n\n"

	sink := runRelay(t, input)

	require.Len(t, sink.events, 2)
	assert.Equal(t, "ok", sink.events[0].Text)
	assert.Equal(t, ClientEventDone, sink.events[1].Type)
}

func TestRelayUpstreamErrorEvent(t *testing.T) {
	input := "event: response.output_text.delta\ndata: {\"delta\":\"partial\"}\n\n" +
		"event: error\ndata: {\"message\":\"rate limited\"}\n\n"

	sink := runRelay(t, input)

	require.Len(t, sink.events, 2)
	assert.Equal(t, ClientEventError, sink.events[1].Type)
	assert.Equal(t, "rate limited", sink.events[1].Message)
	assert.Equal(t, 1, sink.closeCount)
}

func TestRelayErrorEventWithMalformedPayload(t *testing.T) {
	input := "event: error\ndata: garbage\n\n"

	sink := runRelay(t, input)

	require.Len(t, sink.events, 1)
	assert.Equal(t, ClientEventError, sink.events[0].Type)
	assert.NotEmpty(t, sink.events[0].Message)
}

func TestRelayEOFWithoutTerminalEmitsDone(t *testing.T) {
	input := "event: response.output_text.delta\ndata: {\"delta\":\"cut off\"}\n\n"

	sink := runRelay(t, input)

	terminal := sink.terminalEvents()
	require.Len(t, terminal, 1)
	assert.Equal(t, ClientEventDone, terminal[0].Type)
}

func TestRelayFlushesResidualEventAtEOF(t *testing.T) {
	// 最后一个事件缺分隔符
	input := "event: response.completed\ndata: {}"

	sink := runRelay(t, input)

	require.Len(t, sink.events, 1)
	assert.Equal(t, ClientEventDone, sink.events[0].Type)
}

func TestRelayReadErrorEmitsSingleError(t *testing.T) {
	sink := &recordingSink{}
	r := NewRelay(sink, zap.NewNop())
	upstream := &errorReader{
		data: "event: response.output_text.delta\ndata: {\"delta\":\"a\"}\n\n",
		err:  errors.New("connection reset"),
	}

	r.Run(context.Background(), upstream)

	require.Len(t, sink.events, 2)
	assert.Equal(t, ClientEventDelta, sink.events[0].Type)
	assert.Equal(t, ClientEventError, sink.events[1].Type)
	assert.Contains(t, sink.events[1].Message, "connection reset")
	assert.Equal(t, 1, sink.closeCount)
}

func TestRelayContextCancelAbandonsStream(t *testing.T) {
	sink := &recordingSink{}
	r := NewRelay(sink, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Run(ctx, strings.NewReader("event: response.completed\ndata: {}\n\n"))

	// 客户端已断开：不再发任何事件，但输出仍然关闭一次
	assert.Empty(t, sink.events)
	assert.Equal(t, 1, sink.closeCount)
}

func TestRelaySinkFailureStopsForwarding(t *testing.T) {
	sink := &recordingSink{sendErr: io.ErrClosedPipe}
	r := NewRelay(sink, zap.NewNop())

	input := "event: response.output_text.delta\ndata: {\"delta\":\"a\"}\n\n" +
		"event: response.completed\ndata: {}\n\n"
	r.Run(context.Background(), strings.NewReader(input))

	assert.Empty(t, sink.events)
	assert.Equal(t, 1, sink.closeCount)
}

func TestRelaySyntheticMode(t *testing.T) {
	sink := &recordingSink{}
	r := NewRelay(sink, zap.NewNop())

	r.RunSynthetic("没有找到相关内容")

	require.Len(t, sink.events, 2)
	assert.Equal(t, ClientEvent{Type: ClientEventDelta, Text: "没有找到相关内容"}, sink.events[0])
	assert.Equal(t, ClientEvent{Type: ClientEventDone}, sink.events[1])
	assert.Equal(t, 1, sink.closeCount)
}

func TestRelaySyntheticErrorMode(t *testing.T) {
	sink := &recordingSink{}
	r := NewRelay(sink, zap.NewNop())

	r.RunSyntheticError("生成服务暂时不可用")

	require.Len(t, sink.events, 1)
	assert.Equal(t, ClientEventError, sink.events[0].Type)
	assert.Equal(t, 1, sink.closeCount)
}

func TestRelayEmptyUpstream(t *testing.T) {
	sink := runRelay(t, "")

	require.Len(t, sink.events, 1)
	assert.Equal(t, ClientEventDone, sink.events[0].Type)
	assert.Equal(t, 1, sink.closeCount)
}

func TestRelayEmptyDeltaSkipped(t *testing.T) {
	input := "event: response.output_text.delta\ndata: {\"delta\":\"\"}\n\n" +
		"event: response.completed\ndata: {}\n\n"

	sink := runRelay(t, input)

	require.Len(t, sink.events, 1)
	assert.Equal(t, ClientEventDone, sink.events[0].Type)
}
