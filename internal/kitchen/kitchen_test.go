package kitchen

import (
	"context"
	"encoding/json"
	"io"
	log "log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"

	"waiter/internal/order"
)

func sampleTicket() Ticket {
	table := 4
	o := &order.Order{
		ID:    "ORD-20250101120000-abcdef",
		Table: &table,
		Lines: []order.Line{
			{Name: "Cheeseburger", Quantity: 2, UnitPrice: order.Dollars(5), Modifiers: []string{"no onions"}},
			{Name: "Cola", Quantity: 1, UnitPrice: order.Dollars(1.5)},
		},
	}
	return NewTicket(o, "/orders/x.json", time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
}

func TestNewTicket(t *testing.T) {
	tk := sampleTicket()
	if tk.Total != order.Dollars(11.5) || len(tk.Lines) != 2 || *tk.Table != 4 {
		t.Fatalf("unexpected ticket %+v", tk)
	}

	data, err := json.Marshal(tk)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"total_price":11.50`) {
		t.Fatalf("unexpected encoding %s", data)
	}
}

// hub acknowledges every ticket; it drops the first connection after one
// message when flaky is set.
func hub(t *testing.T, got chan<- Envelope, flaky bool) *httptest.Server {
	t.Helper()

	var conns atomic.Int32
	up := ws.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		first := conns.Add(1) == 1
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			if flaky && first {
				return
			}
			var env Envelope
			if err := json.Unmarshal(msg, &env); err == nil {
				got <- env
			}
			if err := c.WriteMessage(ws.TextMessage, []byte(`{"ok":true}`)); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func quiet() *log.Logger {
	return log.New(log.NewTextHandler(io.Discard, nil))
}

func TestWebSocketPublish(t *testing.T) {
	got := make(chan Envelope, 4)
	srv := hub(t, got, false)
	defer srv.Close()

	pub := NewWebSocket(WebSocketConfig{URL: wsURL(srv), Wait: 10 * time.Millisecond}, quiet())
	defer pub.Close()

	if err := pub.Publish(context.Background(), sampleTicket()); err != nil {
		t.Fatal(err)
	}

	env := <-got
	if env.Kind != "ticket" || env.From != "waiter" || env.Ticket.OrderID != "ORD-20250101120000-abcdef" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestWebSocketReconnects(t *testing.T) {
	got := make(chan Envelope, 4)
	srv := hub(t, got, true)
	defer srv.Close()

	pub := NewWebSocket(WebSocketConfig{URL: wsURL(srv), Retries: 3, Wait: 10 * time.Millisecond}, quiet())
	defer pub.Close()

	if err := pub.Publish(context.Background(), sampleTicket()); err != nil {
		t.Fatalf("expected publish to succeed after reconnect: %v", err)
	}
	if env := <-got; env.Ticket.Total != order.Dollars(11.5) {
		t.Fatalf("unexpected ticket %+v", env.Ticket)
	}
}

func TestWebSocketGivesUp(t *testing.T) {
	pub := NewWebSocket(WebSocketConfig{URL: "ws://127.0.0.1:1/none", Retries: 2, Wait: time.Millisecond}, quiet())
	if err := pub.Publish(context.Background(), sampleTicket()); err == nil {
		t.Fatal("expected error without a hub")
	}
}

func TestNATSConnectFails(t *testing.T) {
	if _, err := NewNATS(NATSConfig{URL: "nats://127.0.0.1:1"}, quiet()); err == nil {
		t.Fatal("expected connect error")
	}
}
