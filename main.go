package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/handlers"
	"messaging-service/internal/identity"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/services"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
	"messaging-service/pkg/logger"
)

func main() {
	cfg := config.Load()

	zlog := logger.New(cfg.Environment)
	defer zlog.Sync()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := telemetry.InitTracing(context.Background(), cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		zlog.Fatal("tracing init failed", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			zlog.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		zlog.Fatal("database connect failed", zap.Error(err))
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	zlog.Info("event publisher ready", zap.String("mode", rabbitmq.PublisherMode(publisher)))

	auditEmitter := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.Environment, zlog)

	convRepo := repositories.NewConversationRepo(database)
	msgRepo := repositories.NewMessageRepo(database)
	directoryRepo := repositories.NewDirectoryRepo(database)

	verifier := identity.NewVerifier(cfg.JWTSecret, directoryRepo)
	hub := ws.NewHub(publisher, zlog)

	conversationService := services.NewConversationService(convRepo, msgRepo, directoryRepo, hub, publisher, zlog)

	messagingHandler := handlers.NewMessagingHandler(conversationService)
	gateway := ws.NewGatewayHandler(hub, verifier, convRepo, publisher, zlog)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("messaging-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.POST("/conversations/applications/:application_id", authMiddleware, messagingHandler.StartApplicationConversation)
	router.POST("/conversations/competitions/:competition_id", authMiddleware, messagingHandler.StartCompetitionConversation)
	router.GET("/conversations", authMiddleware, messagingHandler.ListConversations)
	router.GET("/conversations/:conversation_id/messages", authMiddleware, messagingHandler.GetMessages)
	router.POST("/conversations/:conversation_id/messages", authMiddleware, messagingHandler.PostMessage)
	router.POST("/conversations/:conversation_id/read", authMiddleware, messagingHandler.MarkRead)
	router.GET("/unread-count", authMiddleware, messagingHandler.UnreadCount)

	router.GET("/ws", gateway.Handle)

	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.DebugEndpoints)

	zlog.Info("messaging service listening", zap.String("port", cfg.Port))
	if err := router.Run(":" + cfg.Port); err != nil {
		zlog.Fatal("server error", zap.Error(err))
	}
}
