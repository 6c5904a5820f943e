package order

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"time"
)

type OrderOption func(*Order)

func WithCustomer(name string) OrderOption {
	return func(o *Order) { o.Customer = name }
}

func WithTable(n int) OrderOption {
	return func(o *Order) { o.Table = &n }
}

// Ledger owns the single active order.
type Ledger struct {
	mu     sync.Mutex
	cur    *Order
	store  *Store
	now    func() time.Time
	logger *log.Logger
}

type LedgerOption func(*Ledger)

func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(store *Store, logger *log.Logger, opts ...LedgerOption) *Ledger {
	if logger == nil {
		logger = log.Default()
	}
	l := &Ledger{store: store, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start discards any active order and opens a new one.
func (l *Ledger) Start(opts ...OrderOption) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	o := &Order{ID: NewOrderID(now), CreatedAt: now, Lines: []Line{}}
	for _, opt := range opts {
		opt(o)
	}
	l.cur = o

	l.logger.Info("New order started", "id", o.ID)
	return o.ID
}

func (l *Ledger) Add(name string, qty int, price Money, category string, modifiers []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cur == nil {
		l.logger.Error("Add without active order", "item", name)
		return ErrNoActiveOrder
	}
	if name == "" || qty < 1 || price < 0 {
		return fmt.Errorf("%w: %q x%d @ %s", ErrInvalidLine, name, qty, price)
	}

	l.cur.Lines = append(l.cur.Lines, Line{
		Name:      name,
		Quantity:  qty,
		UnitPrice: price,
		Category:  category,
		Modifiers: append([]string{}, modifiers...),
	})

	l.logger.Info("Added to order", "item", name, "qty", qty, "price", price.String())
	return nil
}

// Remove drops the first line with a matching name, ignoring case.
func (l *Ledger) Remove(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cur == nil {
		l.logger.Error("Remove without active order", "item", name)
		return false
	}

	i := l.find(name)
	if i < 0 {
		l.logger.Warn("Item not found in order", "item", name)
		return false
	}
	l.cur.Lines = append(l.cur.Lines[:i], l.cur.Lines[i+1:]...)

	l.logger.Info("Removed from order", "item", name)
	return true
}

// SetQuantity replaces the quantity of an existing line.
func (l *Ledger) SetQuantity(name string, qty int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cur == nil {
		return ErrNoActiveOrder
	}
	if qty < 1 {
		return fmt.Errorf("%w: quantity %d", ErrInvalidLine, qty)
	}

	i := l.find(name)
	if i < 0 {
		return fmt.Errorf("%w: %q not in order", ErrInvalidLine, name)
	}
	l.cur.Lines[i].Quantity = qty
	return nil
}

func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cur != nil {
		l.cur.Lines = l.cur.Lines[:0]
		l.logger.Info("Order cleared", "id", l.cur.ID)
	}
}

// Current returns a snapshot of the active order or nil.
func (l *Ledger) Current() *Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cur == nil {
		return nil
	}
	return l.cur.Clone()
}

func (l *Ledger) Total() Money {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cur == nil {
		return 0
	}
	return l.cur.Total()
}

func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cur == nil {
		return 0
	}
	return l.cur.Count()
}

func (l *Ledger) Summary() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cur == nil {
		return "No items in order"
	}
	return l.cur.Summary()
}

// Save persists a nonempty active order and returns its location. The order
// stays active; callers Start a new one when the customer is finished.
func (l *Ledger) Save(ctx context.Context, notes string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cur == nil {
		l.logger.Error("No active order to save")
		return "", ErrNoActiveOrder
	}
	if l.cur.Empty() {
		l.logger.Warn("Cannot save empty order", "id", l.cur.ID)
		return "", ErrEmptyOrder
	}
	if notes != "" {
		l.cur.Notes = notes
	}

	path, err := l.store.Save(ctx, l.cur, l.now())
	if err != nil {
		l.logger.Error("Failed to save order", "id", l.cur.ID, "err", err)
		return "", fmt.Errorf("save order %s: %w", l.cur.ID, err)
	}

	l.logger.Info("Order saved", "id", l.cur.ID, "path", path)
	return path, nil
}

func (l *Ledger) Load(ctx context.Context, path string) (*Order, error) {
	o, err := l.store.Load(ctx, path)
	if err != nil {
		l.logger.Error("Failed to load order", "path", path, "err", err)
		return nil, err
	}
	return o, nil
}

func (l *Ledger) find(name string) int {
	for i, line := range l.cur.Lines {
		if strings.EqualFold(line.Name, name) {
			return i
		}
	}
	return -1
}
