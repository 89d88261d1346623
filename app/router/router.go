package router

import (
	"github.com/beego/beego/v2/server/web"

	"github.com/aihub/rag-gateway/app/controllers"
	"github.com/aihub/rag-gateway/app/middleware"
)

// Init registers all routes. Must be called after the container is built.
func Init() {
	web.InsertFilter("/*", web.BeforeRouter, middleware.CORSMiddleware)

	web.Router("/", &controllers.RootController{}, "get:Index")
	web.Router("/health", &controllers.HealthController{}, "get:Health")
	web.Router("/metrics", &controllers.MetricsController{}, "get:Metrics")
	web.Router("/api/chat/stream", &controllers.ChatController{}, "post:Stream")
}
