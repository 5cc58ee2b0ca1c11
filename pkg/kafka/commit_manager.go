package kafkautils

import (
	"sync"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

type tp struct {
	topic     string
	partition int32
}

// OffsetCommitter is the subset of *kafka.Consumer the CommitManager needs.
type OffsetCommitter interface {
	CommitOffsets(offsets []kafka.TopicPartition) ([]kafka.TopicPartition, error)
}

// CommitManager commits offsets only once every earlier offset of the partition has been
// acknowledged, so out-of-order handling never skips an unprocessed message.
type CommitManager struct {
	mu        sync.Mutex
	high      map[tp]int64              // highest contiguous acknowledged offset per partition
	done      map[tp]map[int64]struct{} // acknowledged offsets above high
	committer OffsetCommitter
	log       *zap.Logger
}

func NewCommitManager(c OffsetCommitter, l *zap.Logger) *CommitManager {
	return &CommitManager{
		high:      make(map[tp]int64),
		done:      make(map[tp]map[int64]struct{}),
		committer: c,
		log:       l,
	}
}

// Track registers the first offset seen on a partition. Offsets below it are treated as already committed.
func (m *CommitManager) Track(msg *kafka.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tp{topic: *msg.TopicPartition.Topic, partition: msg.TopicPartition.Partition}
	if _, ok := m.high[key]; !ok {
		m.high[key] = int64(msg.TopicPartition.Offset) - 1
	}
}

// Ack marks msg processed and commits the contiguous prefix when it advances.
func (m *CommitManager) Ack(msg *kafka.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := tp{topic: *msg.TopicPartition.Topic, partition: msg.TopicPartition.Partition}
	off := int64(msg.TopicPartition.Offset)
	high, tracked := m.high[key]
	if !tracked {
		high = off - 1
		m.high[key] = high
	}
	if off <= high {
		return
	}

	if m.done[key] == nil {
		m.done[key] = map[int64]struct{}{}
	}
	m.done[key][off] = struct{}{}

	next := high
	for {
		if _, ok := m.done[key][next+1]; !ok {
			break
		}
		next++
		delete(m.done[key], next)
	}
	if next == high {
		return
	}

	toCommit := kafka.TopicPartition{Topic: &key.topic, Partition: key.partition, Offset: kafka.Offset(next + 1)}
	if _, err := m.committer.CommitOffsets([]kafka.TopicPartition{toCommit}); err != nil {
		// Leave high untouched; the acknowledged offsets are retried with the next Ack.
		for o := high + 1; o <= next; o++ {
			m.done[key][o] = struct{}{}
		}
		m.log.Error("offset_commit_failed",
			zap.String("topic", key.topic),
			zap.Int32("partition", key.partition),
			zap.Int64("attempted_offset", next), zap.Error(err))
		return
	}
	m.high[key] = next
	m.log.Debug("offset_committed",
		zap.String("topic", key.topic),
		zap.Int32("partition", key.partition),
		zap.Int64("offset", next))
}

// Committed returns the highest committed offset for a partition, or -1 if none.
func (m *CommitManager) Committed(topic string, partition int32) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	high, ok := m.high[tp{topic: topic, partition: partition}]
	if !ok {
		return -1
	}
	return high
}
