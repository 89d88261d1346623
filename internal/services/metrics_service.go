package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsService 问答链路指标收集
type MetricsService struct {
	chatRequests     *prometheus.CounterVec
	clientEvents     *prometheus.CounterVec
	retrievalTime    prometheus.Histogram
	generationTime   prometheus.Histogram
	pagesScanned     prometheus.Histogram
	chunksFetched    prometheus.Histogram
	candidatesRanked prometheus.Histogram
}

// NewMetricsService 创建指标收集服务并注册指标
func NewMetricsService() *MetricsService {
	return &MetricsService{
		chatRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_requests_total",
				Help: "Total number of chat requests by outcome",
			},
			[]string{"outcome"}, // answered, refused, empty_question, config_fault, retrieval_unavailable, upstream_error
		),
		clientEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_client_events_total",
				Help: "Total number of client protocol events sent",
			},
			[]string{"type"},
		),
		retrievalTime: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "retrieval_duration_seconds",
				Help:    "Duration of a bounded retrieval pass",
				Buckets: prometheus.DefBuckets,
			},
		),
		generationTime: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "generation_duration_seconds",
				Help:    "Duration of the upstream generation stream",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		pagesScanned: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "retrieval_pages_scanned",
				Help:    "Pages scanned per retrieval pass",
				Buckets: []float64{1, 2, 5, 10, 20, 50},
			},
		),
		chunksFetched: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "retrieval_chunks_fetched",
				Help:    "Chunks fetched per retrieval pass",
				Buckets: []float64{10, 50, 100, 250, 500, 1000},
			},
		),
		candidatesRanked: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "retrieval_candidates_ranked",
				Help:    "Candidates surviving threshold and TopK cut",
				Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
			},
		),
	}
}

// RecordOutcome 记录一次请求的最终结果
func (m *MetricsService) RecordOutcome(outcome string) {
	m.chatRequests.WithLabelValues(outcome).Inc()
}

// RecordClientEvent 记录发出的客户端事件
func (m *MetricsService) RecordClientEvent(eventType string) {
	m.clientEvents.WithLabelValues(eventType).Inc()
}

// RecordRetrieval 记录一次检索的耗时与扫描量
func (m *MetricsService) RecordRetrieval(duration time.Duration, pages, fetched, ranked int) {
	m.retrievalTime.Observe(duration.Seconds())
	m.pagesScanned.Observe(float64(pages))
	m.chunksFetched.Observe(float64(fetched))
	m.candidatesRanked.Observe(float64(ranked))
}

// RecordGeneration 记录生成流的耗时
func (m *MetricsService) RecordGeneration(duration time.Duration) {
	m.generationTime.Observe(duration.Seconds())
}
