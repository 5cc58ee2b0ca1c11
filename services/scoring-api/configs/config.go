package configs

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/utils"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds application configuration for scoring-api.
type Config struct {
	Port                 string        `mapstructure:"PORT" validate:"required"`
	PrimaryDbAddr        string        `mapstructure:"PRIMARY_DB_ADDR" validate:"required"`
	ReplicaDbAddr        string        `mapstructure:"REPLICA_DB_ADDR"`
	MaxDbCons            int32         `mapstructure:"MAX_DB_CONNECTIONS" validate:"min=1"`
	MinDbCons            int32         `mapstructure:"MIN_DB_CONNECTIONS" validate:"min=1,ltefield=MaxDbCons"`
	ModelPath            string        `mapstructure:"MODEL_PATH" validate:"required"`
	MaxUploadBytes       int64         `mapstructure:"MAX_UPLOAD_BYTES" validate:"min=1"`
	MaxRows              int           `mapstructure:"MAX_ROWS" validate:"min=1"`
	ChunkSize            int           `mapstructure:"CHUNK_SIZE" validate:"min=1"`
	MaxConcurrentChunks  int           `mapstructure:"MAX_CONCURRENT_CHUNKS" validate:"min=1"`
	RedisAddr            string        `mapstructure:"REDIS_ADDR"` // optional: rate limit stays local and analytics uncached when empty
	BatchRateLimitPerSec int           `mapstructure:"BATCH_RATE_LIMIT_PER_SEC" validate:"min=0"`
	BatchRateBurst       int           `mapstructure:"BATCH_RATE_BURST" validate:"min=1"`
	AnalyticsCacheTTL    time.Duration `mapstructure:"ANALYTICS_CACHE_TTL" validate:"min=0"`
	KafkaBrokers         string        `mapstructure:"KAFKA_BROKERS"` // optional: review events are dropped when empty
	KafkaReviewTopic     string        `mapstructure:"KAFKA_REVIEW_TOPIC" validate:"required_with=KafkaBrokers"`
	KafkaPartition       uint32        `mapstructure:"KAFKA_PARTITION" validate:"min=1"`
	KafkaReviewRetention time.Duration `mapstructure:"KAFKA_REVIEW_RETENTION" validate:"required_with=KafkaBrokers"`
}

func Load(logger *zap.Logger) (*Config, error) {
	viper.SetEnvPrefix("app") // Prefix for env vars
	viper.AutomaticEnv()

	// Default values
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("MAX_DB_CONNECTIONS", "10")
	viper.SetDefault("MIN_DB_CONNECTIONS", "2")
	viper.SetDefault("MODEL_PATH", "models/fraud_model.json")
	viper.SetDefault("MAX_UPLOAD_BYTES", 100*1024*1024)
	viper.SetDefault("MAX_ROWS", 100000)
	viper.SetDefault("CHUNK_SIZE", 1000)
	viper.SetDefault("MAX_CONCURRENT_CHUNKS", 4)
	viper.SetDefault("BATCH_RATE_LIMIT_PER_SEC", 0)
	viper.SetDefault("BATCH_RATE_BURST", 5)
	viper.SetDefault("ANALYTICS_CACHE_TTL", "30s")
	viper.SetDefault("KAFKA_REVIEW_TOPIC", "transactions.manual-review")
	viper.SetDefault("KAFKA_PARTITION", "4")
	viper.SetDefault("KAFKA_REVIEW_RETENTION", "168h")

	// Optional: Read from config.yaml if exists
	if gin.ReleaseMode == gin.Mode() {
		viper.SetConfigName("config.prod")
	} else if gin.TestMode == gin.Mode() {
		logger.Warn("running_in_test_mode")
		viper.SetConfigName("config.test")
	} else {
		logger.Warn("running_in_development_mode")
		viper.SetConfigName("config.dev")
	}
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./services/scoring-api/configs")
	_ = viper.ReadInConfig() // Ignore if no file

	var cfg Config
	if err := utils.ParseStructEnv(&cfg); err != nil {
		return nil, err
	}

	// Validate after unmarshal
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, utils.FormatConfigErrors(logger, err, cfg)
	}
	return &cfg, nil
}
