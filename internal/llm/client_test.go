package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/aihub/rag-gateway/internal/errors"
	"github.com/aihub/rag-gateway/internal/prompt"
)

func testRequest() *prompt.GroundedRequest {
	return &prompt.GroundedRequest{System: "system", User: "question"}
}

func TestClientReady(t *testing.T) {
	c := NewClient("key", "https://api.example.com", "model", time.Minute, zap.NewNop())
	assert.True(t, c.Ready())

	c = NewClient("", "https://api.example.com", "model", time.Minute, zap.NewNop())
	assert.False(t, c.Ready())

	c = NewClient("key", "", "model", time.Minute, zap.NewNop())
	assert.False(t, c.Ready())
}

func TestStreamResponseSendsExpectedRequest(t *testing.T) {
	var captured StreamRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/responses", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("event: response.completed\ndata: {}\n\n"))
	}))
	defer server.Close()

	c := NewClient("test-key", server.URL, "test-model", time.Minute, zap.NewNop())
	body, err := c.StreamResponse(context.Background(), testRequest())
	require.NoError(t, err)
	defer body.Close()

	assert.Equal(t, "test-model", captured.Model)
	assert.True(t, captured.Stream)
	require.Len(t, captured.Input, 2)
	assert.Equal(t, "system", captured.Input[0].Role)
	assert.Equal(t, "user", captured.Input[1].Role)

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "response.completed")
}

func TestStreamResponseParsesErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit exceeded","type":"rate_limit","code":"429"}}`))
	}))
	defer server.Close()

	c := NewClient("key", server.URL, "model", time.Minute, zap.NewNop())
	_, err := c.StreamResponse(context.Background(), testRequest())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
}

func TestStreamResponseNonJSONErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream gone"))
	}))
	defer server.Close()

	c := NewClient("key", server.URL, "model", time.Minute, zap.NewNop())
	_, err := c.StreamResponse(context.Background(), testRequest())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestStreamResponseNotConfigured(t *testing.T) {
	c := NewClient("", "", "model", time.Minute, zap.NewNop())
	_, err := c.StreamResponse(context.Background(), testRequest())

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigFault))
}

func TestStreamResponseContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	c := NewClient("key", server.URL, "model", time.Minute, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.StreamResponse(ctx, testRequest())
	require.Error(t, err)
}
