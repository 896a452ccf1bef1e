package events

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const SubjectPrefix = "consenthub.events."

// Bus publishes already-encoded domain events.
type Bus interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close()
}

type natsBus struct {
	conn   *nats.Conn
	logger *zap.Logger
}

func NewNATSBus(url string, logger *zap.Logger) (Bus, error) {
	conn, err := nats.Connect(url,
		nats.Name("consenthub"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("connected to NATS", zap.String("url", url))
	return &natsBus{conn: conn, logger: logger}, nil
}

func (b *natsBus) Publish(_ context.Context, subject string, data []byte) error {
	if err := b.conn.Publish(subject, data); err != nil {
		b.logger.Error("failed to publish event", zap.Error(err), zap.String("subject", subject))
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (b *natsBus) Close() {
	if err := b.conn.Drain(); err != nil {
		b.logger.Warn("nats drain failed", zap.Error(err))
	}
}

type noopBus struct{}

// NewNoop returns a bus that discards everything.
func NewNoop() Bus { return noopBus{} }

func (noopBus) Publish(context.Context, string, []byte) error { return nil }
func (noopBus) Close()                                        {}

func Subject(eventType string) string {
	return SubjectPrefix + eventType
}
