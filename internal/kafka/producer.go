package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/aihub/rag-gateway/internal/config"
	"github.com/aihub/rag-gateway/internal/logger"
)

// AuditProducer 问答审计消息生产者
// 未启用Kafka时为nil安全实现，发送调用直接返回
type AuditProducer struct {
	producer sarama.SyncProducer
	topic    string
}

// ChatAuditMessage 一次问答的审计记录
type ChatAuditMessage struct {
	RequestID     string    `json:"request_id"`
	Question      string    `json:"question"`
	Refused       bool      `json:"refused"`
	ChunksFetched int       `json:"chunks_fetched"`
	PagesScanned  int       `json:"pages_scanned"`
	TopScore      float64   `json:"top_score"`
	Outcome       string    `json:"outcome"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewAuditProducer 创建审计生产者，未启用时返回nil（调用方按nil安全使用）
func NewAuditProducer(cfg config.KafkaConfig) (*AuditProducer, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 5
	saramaCfg.Producer.Timeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("创建Kafka生产者失败: %w", err)
	}

	logger.Info("Kafka audit producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))

	return &AuditProducer{
		producer: producer,
		topic:    cfg.Topic,
	}, nil
}

// Send 发送审计消息
func (p *AuditProducer) Send(msg *ChatAuditMessage) error {
	if p == nil || p.producer == nil {
		return nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	kafkaMsg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(msg.RequestID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("outcome"),
				Value: []byte(msg.Outcome),
			},
		},
	}

	partition, offset, err := p.producer.SendMessage(kafkaMsg)
	if err != nil {
		logger.Error("发送Kafka消息失败", zap.Error(err))
		return fmt.Errorf("发送消息失败: %w", err)
	}

	logger.Debug("Kafka消息发送成功",
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("request_id", msg.RequestID))

	return nil
}

// Close 关闭生产者
func (p *AuditProducer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
