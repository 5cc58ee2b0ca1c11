package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg"
	kafkautils "github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/kafka"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/utils"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/views"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/services/scoring-api/configs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func reviewsCmd(logger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reviews",
		Short: "Follow the manual-review topic and print each event as a JSON line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			group, _ := cmd.Flags().GetString("group")
			return runReviews(cmd, logger, group)
		},
	}

	cmd.Flags().StringP("group", "g", "fraudctl-reviewers", "Kafka consumer group")

	return cmd
}

func runReviews(cmd *cobra.Command, logger *zap.Logger, group string) error {
	cfg, err := configs.Load(logger)
	if err != nil {
		return err
	}
	if utils.IsEmpty(cfg.KafkaBrokers) {
		return errors.New("APP_KAFKA_BROKERS is not set")
	}

	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.KafkaBrokers,
		"group.id":           group,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false, // committed through the CommitManager
	})
	if err != nil {
		return fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Error("failed_to_close_kafka_consumer", zap.Error(err))
		}
	}()
	if err = consumer.SubscribeTopics([]string{cfg.KafkaReviewTopic}, nil); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", cfg.KafkaReviewTopic, err)
	}
	logger.Info("listening_to_topic", zap.String("topic", cfg.KafkaReviewTopic), zap.String("consumer_group", group))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	commits := kafkautils.NewCommitManager(consumer, logger)
	enc := json.NewEncoder(cmd.OutOrStdout())
	for {
		if ctx.Err() != nil {
			return nil
		}
		msg, err := consumer.ReadMessage(500 * time.Millisecond)
		if err != nil {
			var kErr kafka.Error
			if errors.As(err, &kErr) && kErr.IsTimeout() {
				continue
			}
			logger.Error("kafka_read_failed", zap.Error(err))
			continue
		}
		commits.Track(msg)
		handleReviewMessage(logger, enc, msg)
		commits.Ack(msg)
	}
}

// handleReviewMessage prints one event. Undecodable messages are logged and skipped.
func handleReviewMessage(logger *zap.Logger, enc *json.Encoder, msg *kafka.Message) {
	var event views.ReviewEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		logger.Error("failed_to_decode_review_event",
			zap.Int32("partition", msg.TopicPartition.Partition),
			zap.Int64("offset", int64(msg.TopicPartition.Offset)),
			zap.Error(err))
		return
	}
	if err := enc.Encode(event); err != nil {
		logger.Error("failed_to_write_review_event", zap.String(pkg.TraceId, event.TraceID), zap.Error(err))
	}
}
