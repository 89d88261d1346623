package controllers

import (
	"net/http"

	"github.com/aihub/rag-gateway/internal/di"
	"github.com/aihub/rag-gateway/internal/knowledge"
	"github.com/aihub/rag-gateway/internal/llm"
	"github.com/aihub/rag-gateway/internal/store"
)

// RootController 根控制器
type RootController struct {
	BaseController
}

func (c *RootController) Index() {
	c.JSONSuccess(map[string]string{"message": "RAG Gateway API"})
}

// HealthController 健康检查控制器
type HealthController struct {
	BaseController
	chunks    store.ChunkStore
	embedder  knowledge.Embedder
	generator *llm.Client
}

func (c *HealthController) Prepare() {
	if c.chunks != nil {
		return
	}
	_ = di.Invoke(func(chunks store.ChunkStore, embedder knowledge.Embedder, generator *llm.Client) {
		c.chunks = chunks
		c.embedder = embedder
		c.generator = generator
	})
}

// Health 返回各组件就绪状态，分块存储不可用时报503
// embedder/generator未配置只降级上报，不拦截健康检查
func (c *HealthController) Health() {
	storeReady := c.chunks != nil && c.chunks.Ready()
	components := map[string]bool{
		"store":     storeReady,
		"embedder":  c.embedder != nil && c.embedder.Ready(),
		"generator": c.generator.Ready(),
	}

	if !storeReady {
		c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"status":     "degraded",
			"components": components,
		})
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"status":     "healthy",
		"components": components,
	})
}
