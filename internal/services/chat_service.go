package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/aihub/rag-gateway/internal/errors"
	"github.com/aihub/rag-gateway/internal/kafka"
	"github.com/aihub/rag-gateway/internal/knowledge"
	"github.com/aihub/rag-gateway/internal/llm"
	"github.com/aihub/rag-gateway/internal/prompt"
	"github.com/aihub/rag-gateway/internal/relay"
	"github.com/aihub/rag-gateway/internal/retrieval"
)

// 审计outcome取值
const (
	outcomeAnswered             = "answered"
	outcomeRefused              = "refused"
	outcomeEmptyQuestion        = "empty_question"
	outcomeConfigFault          = "config_fault"
	outcomeRetrievalUnavailable = "retrieval_unavailable"
	outcomeUpstreamError        = "upstream_error"
)

// ChatRequest 客户端请求体
// 只认messages数组里最后一条user消息，其余历史轮次由客户端自己维护
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PreparedChat 流开始前完成的准备结果
// 准备阶段的失败以普通HTTP错误返回，不进入流式协议
type PreparedChat struct {
	RequestID string
	Question  string
	Result    *retrieval.Result
	Request   *prompt.GroundedRequest
	Refused   bool
}

// ChatService 问答编排服务
// 准备阶段（解析、向量化、检索、组装）与流阶段（生成、转发）分离：
// 准备阶段出错还能返回带状态码的JSON错误，流一旦开始只能走事件协议
type ChatService struct {
	embedder  knowledge.Embedder
	retriever *retrieval.Retriever
	assembler *prompt.Assembler
	generator *llm.Client
	audit     *kafka.AuditProducer
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewChatService 创建问答服务
func NewChatService(
	embedder knowledge.Embedder,
	retriever *retrieval.Retriever,
	assembler *prompt.Assembler,
	generator *llm.Client,
	audit *kafka.AuditProducer,
	metrics *MetricsService,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		embedder:  embedder,
		retriever: retriever,
		assembler: assembler,
		generator: generator,
		audit:     audit,
		metrics:   metrics,
		logger:    logger,
	}
}

// ExtractQuestion 从请求体提取问题：最后一条user消息，前后空白裁剪
// 请求体畸形时返回空串，与缺少user消息同样按空问题处理
func ExtractQuestion(body []byte) string {
	var req ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return ""
	}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return strings.TrimSpace(req.Messages[i].Content)
		}
	}
	return ""
}

// Prepare 执行流开始前的全部工作：校验问题、向量化、检索、组装
// 空问题在触达任何外部服务之前拒绝
func (s *ChatService) Prepare(ctx context.Context, body []byte) (*PreparedChat, error) {
	requestID := uuid.NewString()

	question := ExtractQuestion(body)
	if question == "" {
		s.metrics.RecordOutcome(outcomeEmptyQuestion)
		return nil, apperrors.NewEmptyQuestionError()
	}

	queryVector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		// 缺少凭证等配置错误原样透传：这是部署问题，不是上游抖动
		if apperrors.IsCode(err, apperrors.ErrCodeConfigFault) {
			s.metrics.RecordOutcome(outcomeConfigFault)
			return nil, err
		}
		s.metrics.RecordOutcome(outcomeUpstreamError)
		return nil, apperrors.NewUpstreamError("向量化服务调用失败", err)
	}

	start := time.Now()
	result, err := s.retriever.Retrieve(ctx, queryVector)
	if err != nil {
		if errors.Is(err, retrieval.ErrStoreUnavailable) {
			s.metrics.RecordOutcome(outcomeRetrievalUnavailable)
			return nil, apperrors.NewRetrievalUnavailableError(err)
		}
		s.metrics.RecordOutcome(outcomeUpstreamError)
		return nil, apperrors.NewUpstreamError("检索失败", err)
	}
	s.metrics.RecordRetrieval(time.Since(start),
		result.PagesScanned, result.ChunksFetched, len(result.Candidates))

	request, ok := s.assembler.Assemble(question, result)

	prepared := &PreparedChat{
		RequestID: requestID,
		Question:  question,
		Result:    result,
		Request:   request,
		Refused:   !ok,
	}

	s.logger.Info("chat request prepared",
		zap.String("request_id", requestID),
		zap.Int("pages_scanned", result.PagesScanned),
		zap.Int("chunks_fetched", result.ChunksFetched),
		zap.Int("candidates", len(result.Candidates)),
		zap.Bool("refused", prepared.Refused))

	return prepared, nil
}

// Stream 执行流阶段：拒答走合成模式，否则调用生成服务并转发
// 无论哪条路径，sink都恰好收到一个终结事件并被关闭一次
func (s *ChatService) Stream(ctx context.Context, prepared *PreparedChat, sink relay.EventSink) {
	r := relay.NewRelay(s.instrument(sink), s.logger)

	if prepared.Refused {
		r.RunSynthetic(prompt.RefusalMessage)
		s.finish(prepared, outcomeRefused)
		return
	}

	start := time.Now()
	upstream, err := s.generator.StreamResponse(ctx, prepared.Request)
	if err != nil {
		s.logger.Error("generation call failed",
			zap.String("request_id", prepared.RequestID),
			zap.Error(err))
		r.RunSyntheticError("生成服务暂时不可用，请稍后重试")
		s.finish(prepared, outcomeUpstreamError)
		return
	}
	defer upstream.Close()

	r.Run(ctx, upstream)
	s.metrics.RecordGeneration(time.Since(start))
	s.finish(prepared, outcomeAnswered)
}

// finish 记录结果指标并异步发送审计消息
func (s *ChatService) finish(prepared *PreparedChat, outcome string) {
	s.metrics.RecordOutcome(outcome)

	msg := &kafka.ChatAuditMessage{
		RequestID: prepared.RequestID,
		Question:  prepared.Question,
		Refused:   prepared.Refused,
		Outcome:   outcome,
		Timestamp: time.Now(),
	}
	if prepared.Result != nil {
		msg.ChunksFetched = prepared.Result.ChunksFetched
		msg.PagesScanned = prepared.Result.PagesScanned
		if len(prepared.Result.Candidates) > 0 {
			msg.TopScore = prepared.Result.Candidates[0].Score
		}
	}

	// 审计失败不影响问答链路
	go func() {
		if err := s.audit.Send(msg); err != nil {
			s.logger.Warn("audit message send failed",
				zap.String("request_id", prepared.RequestID),
				zap.Error(err))
		}
	}()
}

// instrument 包装sink以统计发出的客户端事件
func (s *ChatService) instrument(sink relay.EventSink) relay.EventSink {
	return &countingSink{inner: sink, metrics: s.metrics}
}

type countingSink struct {
	inner   relay.EventSink
	metrics *MetricsService
}

func (c *countingSink) Send(event relay.ClientEvent) error {
	c.metrics.RecordClientEvent(event.Type)
	return c.inner.Send(event)
}

func (c *countingSink) Close() error {
	return c.inner.Close()
}
