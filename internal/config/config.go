package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config 全局配置结构
// 在进程启动时构建一次，之后以指针形式注入各组件构造函数，
// 组件不再访问任何全局配置状态
type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	AI         AIConfig
	Retrieval  RetrievalConfig
	Knowledge  KnowledgeConfig
	Kafka      KafkaConfig
	Prometheus PrometheusConfig
}

type ServerConfig struct {
	Port     string `validate:"required"`
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Host     string `validate:"required"`
	Port     string `validate:"required"`
	Password string
	DB       int
}

// AIConfig 外部模型服务配置
type AIConfig struct {
	// OpenAI兼容的Embedding服务
	OpenAIAPIKey   string
	EmbeddingModel string `validate:"required"`

	// 生成服务（OpenAI兼容 /v1/responses 流式接口）
	LLMBaseURL        string `validate:"required,url"`
	LLMAPIKey         string
	LLMModel          string `validate:"required"`
	LLMTimeoutSeconds int    `validate:"gt=0"`
}

// RetrievalConfig 检索参数，按部署配置而非按请求配置
type RetrievalConfig struct {
	KeyPrefix     string
	PageSize      int     `validate:"gt=0"`
	MaxPages      int     `validate:"gt=0"`
	MaxCandidates int     `validate:"gt=0"`
	TopK          int     `validate:"gt=0"`
	MinScore      float64 `validate:"gte=-1,lte=1"`
}

// KnowledgeConfig 文档入库配置
type KnowledgeConfig struct {
	ChunkSize    int `validate:"gt=0"`
	ChunkOverlap int `validate:"gte=0"`
	MaxParallel  int `validate:"gt=0"`
	ChunkTTL     int // 秒，0表示不过期
	Storage      ObjectStorageConfig
}

type ObjectStorageConfig struct {
	Provider  string // local | minio
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	BasePath  string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	Enabled bool
}

type PrometheusConfig struct {
	Enabled bool
}

// LoadConfig 加载配置：默认值 -> 环境变量覆盖 -> 校验
func LoadConfig() (*Config, error) {
	// 设置默认值
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.db", 0)

	// AI配置默认值
	viper.SetDefault("ai.embedding_model", "text-embedding-3-small")
	viper.SetDefault("ai.llm_base_url", "https://api.openai.com")
	viper.SetDefault("ai.llm_model", "gpt-4o-mini")
	viper.SetDefault("ai.llm_timeout_seconds", 120)

	// 检索配置默认值
	viper.SetDefault("retrieval.key_prefix", "doc:")
	viper.SetDefault("retrieval.page_size", 100)
	viper.SetDefault("retrieval.max_pages", 20)
	viper.SetDefault("retrieval.max_candidates", 500)
	viper.SetDefault("retrieval.top_k", 5)
	viper.SetDefault("retrieval.min_score", 0.2)

	// 知识库入库默认值
	viper.SetDefault("knowledge.chunk_size", 800)
	viper.SetDefault("knowledge.chunk_overlap", 120)
	viper.SetDefault("knowledge.max_parallel", 4)
	viper.SetDefault("knowledge.chunk_ttl", 0)
	viper.SetDefault("knowledge.storage.provider", "local")
	viper.SetDefault("knowledge.storage.bucket", "knowledge-files")
	viper.SetDefault("knowledge.storage.base_path", "./documents")
	viper.SetDefault("knowledge.storage.use_ssl", false)

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topic", "chat-audit")
	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("prometheus.enabled", false)

	// 读取环境变量
	viper.SetEnvPrefix("RAGGW")
	viper.AutomaticEnv()

	if port := os.Getenv("PORT"); port != "" {
		viper.Set("server.port", port)
	}
	if env := os.Getenv("ENV"); env != "" {
		viper.Set("server.env", env)
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		viper.Set("server.log_level", level)
	}
	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		viper.Set("redis.host", redisHost)
	}
	if redisPort := os.Getenv("REDIS_PORT"); redisPort != "" {
		viper.Set("redis.port", redisPort)
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		viper.Set("redis.password", redisPassword)
	}

	// AI配置环境变量
	if openaiKey := os.Getenv("OPENAI_API_KEY"); openaiKey != "" {
		viper.Set("ai.openai_api_key", openaiKey)
	}
	if embeddingModel := os.Getenv("EMBEDDING_MODEL"); embeddingModel != "" {
		viper.Set("ai.embedding_model", embeddingModel)
	}
	if llmBaseURL := os.Getenv("LLM_BASE_URL"); llmBaseURL != "" {
		viper.Set("ai.llm_base_url", llmBaseURL)
	}
	if llmKey := os.Getenv("LLM_API_KEY"); llmKey != "" {
		viper.Set("ai.llm_api_key", llmKey)
	} else if openaiKey := os.Getenv("OPENAI_API_KEY"); openaiKey != "" {
		// 未单独配置时复用OpenAI key
		viper.Set("ai.llm_api_key", openaiKey)
	}
	if llmModel := os.Getenv("LLM_MODEL"); llmModel != "" {
		viper.Set("ai.llm_model", llmModel)
	}

	// MinIO配置从环境变量读取
	if minioEndpoint := os.Getenv("MINIO_ENDPOINT"); minioEndpoint != "" {
		viper.Set("knowledge.storage.endpoint", minioEndpoint)
		viper.Set("knowledge.storage.provider", "minio")
	}
	if minioAccessKey := os.Getenv("MINIO_ACCESS_KEY"); minioAccessKey != "" {
		viper.Set("knowledge.storage.access_key", minioAccessKey)
	}
	if minioSecretKey := os.Getenv("MINIO_SECRET_KEY"); minioSecretKey != "" {
		viper.Set("knowledge.storage.secret_key", minioSecretKey)
	}
	if minioBucket := os.Getenv("MINIO_BUCKET"); minioBucket != "" {
		viper.Set("knowledge.storage.bucket", minioBucket)
	}

	if kafkaBrokers := os.Getenv("KAFKA_BROKERS"); kafkaBrokers != "" {
		// 支持逗号分隔的broker列表
		brokers := strings.Split(kafkaBrokers, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		viper.Set("kafka.brokers", brokers)
	}
	if kafkaTopic := os.Getenv("KAFKA_TOPIC"); kafkaTopic != "" {
		viper.Set("kafka.topic", kafkaTopic)
	}
	if kafkaEnabled := os.Getenv("KAFKA_ENABLED"); kafkaEnabled == "true" {
		viper.Set("kafka.enabled", true)
	}
	if prometheusEnabled := os.Getenv("PROMETHEUS_ENABLED"); prometheusEnabled == "true" {
		viper.Set("prometheus.enabled", true)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("redis.host"),
			Port:     viper.GetString("redis.port"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		AI: AIConfig{
			OpenAIAPIKey:      viper.GetString("ai.openai_api_key"),
			EmbeddingModel:    viper.GetString("ai.embedding_model"),
			LLMBaseURL:        viper.GetString("ai.llm_base_url"),
			LLMAPIKey:         viper.GetString("ai.llm_api_key"),
			LLMModel:          viper.GetString("ai.llm_model"),
			LLMTimeoutSeconds: viper.GetInt("ai.llm_timeout_seconds"),
		},
		Retrieval: RetrievalConfig{
			KeyPrefix:     viper.GetString("retrieval.key_prefix"),
			PageSize:      viper.GetInt("retrieval.page_size"),
			MaxPages:      viper.GetInt("retrieval.max_pages"),
			MaxCandidates: viper.GetInt("retrieval.max_candidates"),
			TopK:          viper.GetInt("retrieval.top_k"),
			MinScore:      viper.GetFloat64("retrieval.min_score"),
		},
		Knowledge: KnowledgeConfig{
			ChunkSize:    viper.GetInt("knowledge.chunk_size"),
			ChunkOverlap: viper.GetInt("knowledge.chunk_overlap"),
			MaxParallel:  viper.GetInt("knowledge.max_parallel"),
			ChunkTTL:     viper.GetInt("knowledge.chunk_ttl"),
			Storage: ObjectStorageConfig{
				Provider:  viper.GetString("knowledge.storage.provider"),
				Endpoint:  viper.GetString("knowledge.storage.endpoint"),
				AccessKey: viper.GetString("knowledge.storage.access_key"),
				SecretKey: viper.GetString("knowledge.storage.secret_key"),
				Bucket:    viper.GetString("knowledge.storage.bucket"),
				UseSSL:    viper.GetBool("knowledge.storage.use_ssl"),
				BasePath:  viper.GetString("knowledge.storage.base_path"),
			},
		},
		Kafka: KafkaConfig{
			Brokers: viper.GetStringSlice("kafka.brokers"),
			Topic:   viper.GetString("kafka.topic"),
			Enabled: viper.GetBool("kafka.enabled"),
		},
		Prometheus: PrometheusConfig{
			Enabled: viper.GetBool("prometheus.enabled"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate 校验配置合法性
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	if c.Retrieval.TopK > c.Retrieval.MaxCandidates {
		return fmt.Errorf("配置校验失败: top_k(%d)不能大于max_candidates(%d)",
			c.Retrieval.TopK, c.Retrieval.MaxCandidates)
	}
	if c.Knowledge.ChunkOverlap >= c.Knowledge.ChunkSize {
		return fmt.Errorf("配置校验失败: chunk_overlap(%d)必须小于chunk_size(%d)",
			c.Knowledge.ChunkOverlap, c.Knowledge.ChunkSize)
	}
	return nil
}

// RedisAddr 返回redis连接地址
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}
