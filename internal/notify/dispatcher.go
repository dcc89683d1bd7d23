package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const readErrorBackoff = time.Second

// Mailer hands a message to the outside world.
type Mailer interface {
	Deliver(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	log *slog.Logger
}

func NewLogMailer(log *slog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Deliver(ctx context.Context, msg Message) error {
	m.log.InfoContext(ctx, "mail delivered",
		"message_id", msg.ID,
		"from", msg.From,
		"to", msg.To,
		"subject", msg.Subject,
		"body_bytes", len(msg.Body),
	)
	return nil
}

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

func NewKafkaReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

// Dispatcher consumes queued messages and delivers each through a Mailer.
type Dispatcher struct {
	reader MessageReader
	mailer Mailer
	log    *slog.Logger
}

func NewDispatcher(reader MessageReader, mailer Mailer, log *slog.Logger) *Dispatcher {
	return &Dispatcher{reader: reader, mailer: mailer, log: log}
}

// Run delivers messages until ctx is done. Broken payloads and failed
// deliveries are logged and skipped.
func (d *Dispatcher) Run(ctx context.Context) error {
	return Consume(ctx, d.reader, d.log.With("consumer", "dispatcher"), d.handle)
}

// Consume reads from reader and hands every message to handle until ctx is
// done. Read errors are logged and retried after a short pause; a cancelled
// context ends the loop with a nil error.
func Consume(ctx context.Context, reader MessageReader, log *slog.Logger, handle func(context.Context, kafka.Message)) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error("error reading message", "error", err)
			select {
			case <-time.After(readErrorBackoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		handle(ctx, m)
	}
}

func (d *Dispatcher) handle(ctx context.Context, m kafka.Message) {
	var msg Message
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		d.log.Error("error parsing notification", "offset", m.Offset, "error", err)
		return
	}
	if err := msg.Validate(); err != nil {
		d.log.Error("dropping invalid notification", "message_id", msg.ID, "error", err)
		return
	}

	if err := d.mailer.Deliver(ctx, msg); err != nil {
		d.log.Error("failed to deliver notification", "message_id", msg.ID, "error", err)
	}
}

func (d *Dispatcher) Close() error {
	return d.reader.Close()
}
