package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/XLuisDX/dani-candles-sub001/pkg/circuitbreaker"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
)

const EventTypeNotification = "notification"

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

type KafkaNotifier struct {
	writer  MessageWriter
	breaker *gobreaker.CircuitBreaker[struct{}]
	from    string
	log     *slog.Logger
	now     func() time.Time
}

// NewKafkaNotifier publishes through writer. from is used for messages that
// do not set their own sender.
func NewKafkaNotifier(writer MessageWriter, from string, log *slog.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		writer:  writer,
		breaker: circuitbreaker.New[struct{}]("notify-kafka", circuitbreaker.DefaultOptions(), log),
		from:    from,
		log:     log,
		now:     time.Now,
	}
}

func (n *KafkaNotifier) Send(ctx context.Context, msg Message) (string, error) {
	if msg.From == "" {
		msg.From = n.from
	}
	if err := msg.Validate(); err != nil {
		return "", err
	}

	msg.ID = uuid.NewString()
	msg.CreatedAt = n.now().UTC()

	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	_, err = n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(msg.To),
			Value: payload,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(EventTypeNotification)},
			},
		})
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err != nil {
		n.log.ErrorContext(ctx, "failed to publish notification", "message_id", msg.ID, "error", err)
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	n.log.DebugContext(ctx, "notification queued", "message_id", msg.ID)
	return msg.ID, nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
