package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg"
	kafkautils "github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/kafka"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/views"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/services/scoring-api/configs"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/services/scoring-api/internal/observability"
	"go.uber.org/zap"
)

type KafkaReviewPublisher struct {
	logger     *zap.Logger
	producer   *kafka.Producer
	topic      string
	partitions uint32
}

// NewKafkaReviewPublisher bootstraps the review topic and returns a producer-backed publisher.
func NewKafkaReviewPublisher(ctx context.Context, logger *zap.Logger, cnf *configs.Config) (*KafkaReviewPublisher, error) {
	err := kafkautils.InitKafkaTopics(ctx, logger, kafkautils.KafkaConfig{
		BootstrapServers: cnf.KafkaBrokers,
		Topics: []kafkautils.TopicConfig{
			kafkautils.RetentionTopic(cnf.KafkaReviewTopic, int(cnf.KafkaPartition), cnf.KafkaReviewRetention),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize kafka topics: %w", err)
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cnf.KafkaBrokers,
		"acks":               "all",  // Wait for all replicas
		"enable.idempotence": "true", // Ensure messages are not sent twice
		"linger.ms":          "20",   // Events arrive in bursts of one chunk
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	logger.Info("kafka_producer_created", zap.String("brokers", cnf.KafkaBrokers), zap.String("topic", cnf.KafkaReviewTopic))
	go handleDeliveryReports(logger, p)

	return &KafkaReviewPublisher{
		logger:     logger,
		producer:   p,
		topic:      cnf.KafkaReviewTopic,
		partitions: cnf.KafkaPartition,
	}, nil
}

// PublishReviews enqueues one message per event; delivery results are handled asynchronously.
func (k *KafkaReviewPublisher) PublishReviews(ctx context.Context, events []views.ReviewEvent) error {
	var errs []error
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		msgBytes, err := json.Marshal(event)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		// Same transaction id always lands on the same partition.
		partition := int32(uint32(event.TransactionID) % k.partitions)
		err = k.producer.Produce(&kafka.Message{
			TopicPartition: kafka.TopicPartition{Topic: &k.topic, Partition: partition},
			Key:            []byte(strconv.FormatInt(event.TransactionID, 10)),
			Value:          msgBytes,
			Headers:        []kafka.Header{{Key: pkg.HeaderTraceId, Value: []byte(event.TraceID)}},
		}, nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("produce review event for transaction %d: %w", event.TransactionID, err))
		}
	}
	return errors.Join(errs...)
}

// Close flushes outstanding messages before closing the producer.
func (k *KafkaReviewPublisher) Close() {
	if remaining := k.producer.Flush(5000); remaining > 0 {
		k.logger.Warn("kafka_producer_unflushed_messages", zap.Int("remaining", remaining))
	}
	k.producer.Close()
}

func handleDeliveryReports(logger *zap.Logger, p *kafka.Producer) {
	for e := range p.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				observability.ReviewEventsFailed.Inc()
				logger.Error("failed_to_publish_review_event", zap.Error(ev.TopicPartition.Error))
			}
		}
	}
}
