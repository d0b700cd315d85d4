package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaNotifier publishes status messages to a Kafka topic so other
// systems (dashboards, audit) can fan them out. Delivery failures are
// logged and dropped; the lifecycle never blocks on notification.
type KafkaNotifier struct {
	writer *kafka.Writer
	log    *slog.Logger
}

type statusMessage struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewKafkaNotifier creates a notifier publishing to topic on brokers
func NewKafkaNotifier(brokers []string, topic string, log *slog.Logger) *KafkaNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
		log: log,
	}
}

// Notify publishes the message; errors are logged, never returned
func (n *KafkaNotifier) Notify(ctx context.Context, message string) {
	b, err := json.Marshal(statusMessage{Message: message, Timestamp: time.Now().UTC()})
	if err != nil {
		n.log.Error("marshal failed", "err", err)
		return
	}
	if err := n.writer.WriteMessages(ctx, kafka.Message{Value: b}); err != nil {
		n.log.Error("kafka write failed", "err", err)
	}
}

// Close flushes and closes the underlying writer
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
