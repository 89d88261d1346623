package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/aihub/rag-gateway/internal/errors"
	"github.com/aihub/rag-gateway/internal/prompt"
	"go.uber.org/zap"
)

// Client 生成服务客户端（OpenAI兼容 /v1/responses 流式接口）
// 直接持有原始响应字节流交给转发器解析，不使用SDK自带的流解码
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

// StreamRequest 流式生成请求
type StreamRequest struct {
	Model  string           `json:"model"`
	Input  []prompt.Message `json:"input"`
	Stream bool             `json:"stream"`
}

// Error 生成服务API错误
type Error struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

type errorResponse struct {
	Error Error `json:"error"`
}

// NewClient 创建生成服务客户端
// timeout覆盖整个调用（含流式读取），作为生成调用的硬截止时间
func NewClient(apiKey, baseURL, model string, timeout time.Duration, logger *zap.Logger) *Client {
	apiKey = strings.TrimSpace(apiKey)
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// StreamResponse 发起流式生成调用，返回上游事件流的原始字节流
// 调用方负责关闭返回的Body；ctx取消会中断传输层读取
func (c *Client) StreamResponse(ctx context.Context, req *prompt.GroundedRequest) (io.ReadCloser, error) {
	if !c.Ready() {
		return nil, apperrors.NewConfigFault("generation service not configured")
	}

	payload := StreamRequest{
		Model:  c.model,
		Input:  req.Messages(),
		Stream: true,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	url := fmt.Sprintf("%s/v1/responses", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("API调用失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr == nil {
			var errResp errorResponse
			if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
				return nil, fmt.Errorf("生成服务错误: %s (type: %s, code: %s)",
					errResp.Error.Message, errResp.Error.Type, errResp.Error.Code)
			}
		}
		return nil, fmt.Errorf("生成服务错误: HTTP %d - %s", resp.StatusCode, string(body))
	}

	c.logger.Debug("generation stream opened", zap.String("model", c.model))
	return resp.Body, nil
}

// Ready 检查客户端是否就绪
func (c *Client) Ready() bool {
	return c != nil && c.client != nil && c.apiKey != "" && c.baseURL != ""
}
