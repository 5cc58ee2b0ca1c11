package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/cache"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/classifier"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/database"
	middleware "github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/middlewares"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/repositories"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/utils"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/services/scoring-api/configs"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/services/scoring-api/internal/handlers"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/services/scoring-api/internal/services"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	batchRateKey       = "scoring:batch_rate"
	batchRateWindow    = time.Minute
	analyticsKeyPrefix = "scoring:analytics:"
)

// Components are the wired services shared by the HTTP server and the operator CLI.
type Components struct {
	Config       *configs.Config
	DB           *database.DB
	Classifier   *classifier.Forest
	Pipeline     services.Pipeline
	Reviews      services.ReviewService
	Transactions services.TransactionService
	Limiter      *pkg.DistributedLimiter
}

// NewComponents connects to every backing store, runs migrations, loads the model and wires the
// services. Redis and Kafka are optional and skipped when their address is empty.
func NewComponents(ctx context.Context, logger *zap.Logger, cfg *configs.Config) (*Components, func(), error) {
	// Model first: a bad artifact must fail before any connection is opened
	forest, err := classifier.Load(cfg.ModelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load model %s: %w", cfg.ModelPath, err)
	}
	logger.Info("model_loaded",
		zap.String("path", cfg.ModelPath),
		zap.String("version", forest.Version()),
		zap.Int("trees", forest.TreeCount()))

	// Initialize postgres db
	dbConfig := database.Config{
		PrimaryDSN: cfg.PrimaryDbAddr,
		MaxConns:   cfg.MaxDbCons,
		MinConns:   cfg.MinDbCons,
	}
	if !utils.IsEmpty(cfg.ReplicaDbAddr) {
		dbConfig.ReplicaDSNs = []string{cfg.ReplicaDbAddr}
	}
	db, disconnect, err := database.New(ctx, logger, dbConfig)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){disconnect}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// Run migrations on primary
	if err = database.RunMigrations(logger, cfg.PrimaryDbAddr); err != nil {
		cleanup()
		return nil, nil, err
	}

	// Optional redis: shared batch rate limit and analytics cache
	var redisClient *redis.Client
	var analyticsCache services.AnalyticsCache
	if !utils.IsEmpty(cfg.RedisAddr) {
		client, closeRedis, err := cache.New(ctx, cache.Config{Addr: cfg.RedisAddr})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		closers = append(closers, closeRedis)
		redisClient = client
		if cfg.AnalyticsCacheTTL > 0 {
			analyticsCache = cache.NewJSONCache(client, analyticsKeyPrefix, cfg.AnalyticsCacheTTL)
		}
	} else {
		logger.Warn("redis_not_configured", zap.String("effect", "local rate limit, uncached analytics"))
	}

	// Optional kafka: manual-review notifications
	publisher := services.NewNoopReviewPublisher()
	if !utils.IsEmpty(cfg.KafkaBrokers) {
		kp, err := services.NewKafkaReviewPublisher(ctx, logger, cfg)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		publisher = kp
	} else {
		logger.Warn("kafka_not_configured", zap.String("effect", "manual review events dropped"))
	}
	closers = append(closers, publisher.Close)

	// Setup dependencies
	txnRepo := repositories.NewTransactionRepository()
	predRepo := repositories.NewPredictionRepository()

	txnService := services.NewTransactionService(services.TransactionServiceConfig{
		Logger:          logger,
		DB:              db,
		TransactionRepo: txnRepo,
		Cache:           analyticsCache,
	})
	scorer := services.NewChunkScorer(services.ChunkScorerConfig{
		Logger:          logger,
		DB:              db,
		Classifier:      forest,
		TransactionRepo: txnRepo,
		PredictionRepo:  predRepo,
		Publisher:       publisher,
	})
	pipeline := services.NewPipeline(services.PipelineConfig{
		Logger:              logger,
		Scorer:              scorer,
		ChunkSize:           cfg.ChunkSize,
		MaxConcurrentChunks: cfg.MaxConcurrentChunks,
		Limits:              services.UploadLimits{MaxBytes: cfg.MaxUploadBytes, MaxRows: cfg.MaxRows},
		Invalidator:         txnService,
	})
	reviewService := services.NewReviewService(services.ReviewServiceConfig{
		Logger:         logger,
		DB:             db,
		PredictionRepo: predRepo,
	})
	limiter := pkg.NewDistributedLimiter(redisClient, batchRateKey, cfg.BatchRateLimitPerSec, cfg.BatchRateBurst, batchRateWindow, logger)

	return &Components{
		Config:       cfg,
		DB:           db,
		Classifier:   forest,
		Pipeline:     pipeline,
		Reviews:      reviewService,
		Transactions: txnService,
		Limiter:      limiter,
	}, cleanup, nil
}

// NewRouter builds the Gin engine serving the scoring API.
func NewRouter(logger *zap.Logger, c *Components) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.TraceID(logger))
	r.Use(middleware.Metrics())

	handlers.NewBaseHandler(logger, c.DB).RegisterRoutes(r)
	handlers.NewPredictionHandler(logger, c.Pipeline, c.Reviews, c.Limiter, c.Config.MaxUploadBytes).RegisterRoutes(r)
	handlers.NewTransactionHandler(logger, c.Transactions).RegisterRoutes(r)
	return r
}

// NewApp wires dependencies, builds the Gin engine, and returns an *http.Server and a cleanup func.
// It reads configuration from environment variables via configs.Load.
func NewApp(ctx context.Context, logger *zap.Logger) (*http.Server, func(), error) {
	// Load config
	cfg, err := configs.Load(logger)
	if err != nil {
		return nil, nil, err
	}

	components, cleanup, err := NewComponents(ctx, logger, cfg)
	if err != nil {
		return nil, nil, err
	}

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(logger, components),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv, cleanup, nil
}
