package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"messaging-service/internal/blob"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/handlers"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/token"
	"messaging-service/internal/wallet"
	"messaging-service/internal/ws"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	database, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	userRepo := repositories.NewUserRepo(database)
	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	tokens := token.NewManager(cfg.JWTSecret, cfg.TokenTTL)
	verifier := wallet.NewEd25519Verifier(cfg.ServiceName)

	var blobStore blob.Store
	if cfg.S3.AccessKeyID != "" && cfg.S3.SecretAccessKey != "" {
		blobStore = blob.NewS3Store(cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, cfg.S3.Endpoint, cfg.S3.Bucket, cfg.S3.Region)
	} else {
		log.Printf("no S3 credentials configured, using in-memory blob store")
		blobStore = blob.NewMemoryStore()
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()

	audit := telemetry.NewAuditEmitter(publisher, "audit.log", cfg.ServiceName, cfg.Environment)

	if cfg.AMQPURL != "" {
		obsPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Printf("ws event publisher unavailable: %v", err)
		} else {
			observability.SetPublisher(obsPublisher)
			defer obsPublisher.Close()
		}
	}

	hub := ws.NewHub()

	authHandler := handlers.NewAuthHandler(userRepo, verifier, tokens, audit)
	userHandler := handlers.NewUserHandler(userRepo)
	chatHandler := handlers.NewChatHandler(chatRepo, userRepo, audit)
	messageHandler := handlers.NewMessageHandler(chatRepo, messageRepo, hub, audit)
	blobHandler := handlers.NewBlobHandler(blobStore)
	channelWS := ws.NewChannelHandler(hub, tokens)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	handlers.RegisterSystemRoutes(router)
	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/api/auth/register", authHandler.Register)
	router.POST("/api/auth/login", authHandler.Login)

	authRequired := middleware.AuthMiddleware(tokens, userRepo)
	api := router.Group("/api", authRequired)
	api.GET("/users", userHandler.ListUsers)
	api.GET("/users/:user_id", userHandler.GetUser)
	api.GET("/chats", chatHandler.ListChats)
	api.POST("/chats", chatHandler.CreateChat)
	api.GET("/chats/:chat_id/messages", messageHandler.GetMessages)
	api.POST("/chats/:chat_id/messages", messageHandler.SendMessage)
	api.POST("/messages/:message_id/read", messageHandler.MarkRead)
	api.POST("/blobs", blobHandler.Upload)
	api.GET("/blobs/:hash", blobHandler.Download)

	router.GET("/ws", channelWS.Handle)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(router)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: corsHandler,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
