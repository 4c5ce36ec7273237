package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/pdfchat/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(handler.logger),
		corsMiddleware(),
		errorHandlingMiddleware(handler.logger),
	)

	router.POST("/presign", handler.Presign)
	router.POST("/webhook/ingest", handler.IngestWebhook)
	router.GET("/files", handler.ListFiles)
	router.GET("/files/:id", handler.GetFile)
	router.DELETE("/files/:id", handler.DeleteFile)
	router.POST("/chat", handler.Chat)
	router.GET("/chats", handler.ListChats)
	router.GET("/chats/:id", handler.GetChat)
	router.DELETE("/chats/:id", handler.DeleteChat)
	router.POST("/retrieve", handler.Retrieve)

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        router,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "latency_ms", latency.Milliseconds())
	}
}
