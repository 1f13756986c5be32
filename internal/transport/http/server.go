package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"uistudio/internal/bootstrap"
	"uistudio/internal/preview"
	"uistudio/internal/transport/http/handler"
	"uistudio/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(registry)

	router.Use(
		middleware.Recovery(app.Log),
		middleware.RequestLogger(app.Log.Named("http")),
		metrics.Middleware(),
	)

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	renderer := preview.NewRenderer(preview.Options{
		ReactURL:    app.Config.Preview.ReactURL,
		ReactDOMURL: app.Config.Preview.ReactDOMURL,
	})
	authHandler := handler.NewAuthHandler(app.Auth)
	sessionHandler := handler.NewSessionHandler(app.Sessions)
	previewHandler := handler.NewPreviewHandler(
		app.Sessions,
		renderer,
		time.Duration(app.Config.Preview.CacheTTLSeconds)*time.Second,
	)
	generateHandler := handler.NewGenerateHandler(
		app.Generation,
		metrics,
		time.Duration(app.Config.Generation.TimeoutSeconds)*time.Second,
	)
	limiter := middleware.NewLimiterPool(app.Config.Generation.RateLimitRPS, app.Config.Generation.RateLimitBurst)
	auth := middleware.AuthJWT(app.Config.Auth.JWTSecret)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", auth, authHandler.Me)

	sessionGroup := v1.Group("/sessions")
	sessionGroup.Use(auth)
	sessionGroup.GET("", sessionHandler.List)
	sessionGroup.POST("", sessionHandler.Create)
	sessionGroup.GET("/:id", sessionHandler.Get)
	sessionGroup.PUT("/:id", sessionHandler.Update)
	sessionGroup.DELETE("/:id", sessionHandler.Delete)
	sessionGroup.POST("/:id/chat", sessionHandler.AddMessage)
	sessionGroup.GET("/:id/preview", previewHandler.Preview)
	sessionGroup.GET("/:id/export", previewHandler.Export)

	aiGroup := v1.Group("/ai")
	aiGroup.Use(auth, middleware.RateLimitPerUser(limiter))
	aiGroup.POST("/generate", generateHandler.Generate)

	return router
}
