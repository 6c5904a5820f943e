package kitchen

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const DefaultSubject = "waiter.tickets"

type NATSConfig struct {
	URL           string
	Subject       string
	ReconnectWait time.Duration
	MaxReconnects int
	// RetryOnFailedConnect keeps the publisher usable while the server is down.
	RetryOnFailedConnect bool
}

type NATS struct {
	conn    *nats.Conn
	subject string
	logger  *log.Logger
}

func NewNATS(cfg NATSConfig, logger *log.Logger) (*NATS, error) {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = 60
	}

	conn, err := nats.Connect(
		cfg.URL,
		nats.Name("waiter"),
		nats.Timeout(2*time.Second),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.RetryOnFailedConnect(cfg.RetryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("Kitchen NATS disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Kitchen NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	return &NATS{conn: conn, subject: cfg.Subject, logger: logger}, nil
}

func (n *NATS) Publish(ctx context.Context, t Ticket) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode ticket: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	n.logger.Info("Ticket published", "order", t.OrderID, "subject", n.subject)
	return nil
}

func (n *NATS) Close() error {
	n.conn.Close()
	return nil
}
