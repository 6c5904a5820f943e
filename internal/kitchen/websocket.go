package kitchen

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

// Envelope is the message shape on the kitchen bus.
type Envelope struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Kind   string `json:"kind"`
	Ticket Ticket `json:"ticket"`
}

// WebSocket publishes tickets to a kitchen hub, redialing a dropped connection.
type WebSocket struct {
	mu      sync.Mutex
	conn    *ws.Conn
	url     string
	from    string
	retries int
	wait    time.Duration
	logger  *log.Logger
}

type WebSocketConfig struct {
	URL     string
	From    string
	Retries int
	Wait    time.Duration
}

// NewWebSocket does not dial; the first Publish does.
func NewWebSocket(cfg WebSocketConfig, logger *log.Logger) *WebSocket {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.From == "" {
		cfg.From = "waiter"
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.Wait <= 0 {
		cfg.Wait = time.Second
	}
	return &WebSocket{url: cfg.URL, from: cfg.From, retries: cfg.Retries, wait: cfg.Wait, logger: logger}
}

func (w *WebSocket) Publish(ctx context.Context, t Ticket) error {
	payload, err := json.Marshal(Envelope{From: w.from, To: "kitchen", Kind: "ticket", Ticket: t})
	if err != nil {
		return fmt.Errorf("encode ticket: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < w.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.wait):
			}
		}

		if w.conn == nil {
			if lastErr = w.dial(ctx); lastErr != nil {
				w.logger.Warn("Kitchen dial failed", "url", w.url, "attempt", attempt+1, "err", lastErr)
				continue
			}
		}

		if lastErr = w.write(ctx, payload); lastErr == nil {
			w.logger.Info("Ticket sent", "order", t.OrderID)
			return nil
		}

		w.logger.Warn("Kitchen write failed, reconnecting", "err", lastErr)
		w.conn.Close()
		w.conn = nil
	}

	return fmt.Errorf("publish ticket %s: %w", t.OrderID, lastErr)
}

func (w *WebSocket) dial(ctx context.Context) error {
	conn, _, err := ws.DefaultDialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return err
	}
	w.conn = conn
	w.logger.Debug("Connected to kitchen", "url", w.url)
	return nil
}

func (w *WebSocket) write(ctx context.Context, payload []byte) error {
	deadline := time.Now().Add(5 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = w.conn.SetWriteDeadline(deadline)
	if err := w.conn.WriteMessage(ws.TextMessage, payload); err != nil {
		return err
	}

	// The hub acknowledges each ticket so a dead peer is noticed here.
	_ = w.conn.SetReadDeadline(deadline)
	_, _, err := w.conn.ReadMessage()
	return err
}

func (w *WebSocket) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return nil
	}
	_ = w.conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
	err := w.conn.Close()
	w.conn = nil
	return err
}
