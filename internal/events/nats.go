package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSBridge republishes dispatcher events to NATS subjects so external
// consumers (notification transports, dashboards) can react without the
// engine knowing about them. Delivery is best-effort.
type NATSBridge struct {
	conn          *nats.Conn
	subjectPrefix string
	logger        *zap.Logger
}

// NewNATSBridge connects to the given NATS URL. An empty URL returns a nil
// bridge, which is safe to register.
func NewNATSBridge(url, subjectPrefix string, logger *zap.Logger) (*NATSBridge, error) {
	if url == "" {
		return nil, nil
	}
	conn, err := nats.Connect(url,
		nats.Name("servicedesk-events"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	logger.Info("connected to nats", zap.String("url", url))
	return &NATSBridge{conn: conn, subjectPrefix: subjectPrefix, logger: logger}, nil
}

// Register subscribes the bridge to every event type on the dispatcher.
func (b *NATSBridge) Register(dispatcher Dispatcher) {
	if b == nil || dispatcher == nil {
		return
	}
	for _, eventType := range AllEventTypes {
		dispatcher.Subscribe(eventType, b.publish)
	}
}

func (b *NATSBridge) publish(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Warn("marshal event for nats", zap.Error(err))
		return nil
	}
	subject := fmt.Sprintf("%s.%s", b.subjectPrefix, event.Type)
	if err := b.conn.Publish(subject, data); err != nil {
		b.logger.Warn("publish event to nats",
			zap.String("subject", subject),
			zap.Int64("ticket_id", event.TicketID),
			zap.Error(err))
	}
	return nil
}

// Close drains the connection.
func (b *NATSBridge) Close() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}
