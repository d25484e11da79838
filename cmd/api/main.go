package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/draftforge/template-studio/remap-orchestrator/internal/auth"
	"github.com/draftforge/template-studio/remap-orchestrator/internal/config"
	"github.com/draftforge/template-studio/remap-orchestrator/internal/events"
	"github.com/draftforge/template-studio/remap-orchestrator/internal/gateway"
	"github.com/draftforge/template-studio/remap-orchestrator/internal/logging"
	"github.com/draftforge/template-studio/remap-orchestrator/internal/metrics"
	"github.com/draftforge/template-studio/remap-orchestrator/internal/orchestration"
	"github.com/draftforge/template-studio/remap-orchestrator/internal/reconcile"

	_ "github.com/draftforge/template-studio/remap-orchestrator/docs" // swagger docs
)

// @title Remap Orchestrator API
// @version 1.0
// @description Payload reconciliation backend for the template studio.
// @description
// @description Remaps layered design-document content into template slots, with optional
// @description AI-generated fill managed through a confirmation and history workflow.

// @contact.name API Support
// @contact.email support@draftforge.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT token.

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Production())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := initTracer(); err != nil {
		logger.Fatal("failed to initialize tracer", zap.Error(err))
	}

	logger.Info("connecting to PostgreSQL")
	var pool *pgxpool.Pool
	for i := 0; i < 10; i++ {
		pool, err = pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err == nil {
			err = pool.Ping(context.Background())
			if err == nil {
				break
			}
		}
		logger.Warn("waiting for database", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(3 * time.Second)
	}
	if err != nil {
		logger.Fatal("failed to connect to database after retries", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("connected to PostgreSQL")

	generationMetrics, err := metrics.NewGenerationMetrics()
	if err != nil {
		logger.Fatal("failed to initialize generation metrics", zap.Error(err))
	}

	bus := events.NewBus(logger)
	defer bus.Close()

	registry := reconcile.NewRegistry(bus, logger)
	generationClient := orchestration.NewGenerationClient(cfg.GenerationServiceURL, logger)
	orchestrator := orchestration.NewOrchestrator(registry, generationClient, generationMetrics, logger)
	service := orchestration.NewService(pool, registry, orchestrator, logger)

	if err := service.EnsureSchema(context.Background()); err != nil {
		logger.Fatal("failed to ensure database schema", zap.Error(err))
	}
	if restored, err := service.RestoreSnapshots(context.Background()); err != nil {
		logger.Warn("failed to restore slot snapshots", zap.Error(err))
	} else if restored > 0 {
		logger.Info("restored slot snapshots", zap.Int("count", restored))
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWTSecret)
	if err != nil {
		logger.Fatal("failed to initialize JWT manager", zap.Error(err))
	}

	gatewayHandler := gateway.NewHandler(service, jwtManager, pool, logger)
	eventStream := gateway.NewEventStream(bus, logger)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLoggingMiddleware(logger))

	// Health checks MUST be at the root for the WebService standard
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/ready", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"error":  "database connection failed",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/api")
	api.POST("/auth/login", gatewayHandler.Login)

	protected := api.Group("")
	protected.Use(auth.RequireAuth(jwtManager, logger))

	protected.POST("/auth/refresh", gatewayHandler.RefreshToken)

	// Document routes
	protected.POST("/documents", gatewayHandler.RegisterDocument)
	protected.GET("/documents", gatewayHandler.ListDocuments)
	protected.POST("/documents/:id/resolve", gatewayHandler.ResolveContainer)

	// Slot routes
	protected.POST("/slots/:nodeId/:slotId/layout", gatewayHandler.ApplyLayout)
	protected.GET("/slots/:nodeId/:slotId", gatewayHandler.GetSlot)
	protected.POST("/slots/:nodeId/:slotId/seek", gatewayHandler.SeekHistory)
	protected.POST("/slots/:nodeId/:slotId/confirm", gatewayHandler.ConfirmSlot)
	protected.POST("/slots/:nodeId/:slotId/generation", gatewayHandler.SetSlotGeneration)

	// Generation and node routes
	protected.POST("/generation", gatewayHandler.SetGlobalGeneration)
	protected.DELETE("/nodes/:nodeId", gatewayHandler.DeleteNode)

	// WebSocket routes (authenticated)
	protected.GET("/ws/events", eventStream.Stream)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("starting remap orchestrator API server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

// initTracer initializes OpenTelemetry tracing
func initTracer() error {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)

	return nil
}

// requestLoggingMiddleware logs every request with zap
func requestLoggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			zap.String("client_ip", c.ClientIP()),
		}
		if userID, ok := c.Get("user_id"); ok {
			fields = append(fields, zap.Any("user_id", userID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		logger.Info("request", fields...)
	}
}
