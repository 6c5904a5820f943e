// Package order keeps the active customer order and persists finished ones.
package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoActiveOrder     = errors.New("no active order")
	ErrEmptyOrder        = errors.New("order has no items")
	ErrInvalidLine       = errors.New("invalid order line")
	ErrUnsupportedFormat = errors.New("unsupported order format")
)

type Line struct {
	Name      string   `json:"name" yaml:"name"`
	Quantity  int      `json:"quantity" yaml:"quantity"`
	UnitPrice Money    `json:"price" yaml:"price"`
	Modifiers []string `json:"modifiers" yaml:"modifiers"`
	Category  string   `json:"category" yaml:"category"`
}

func (l Line) Total() Money {
	return l.UnitPrice * Money(l.Quantity)
}

type Order struct {
	ID        string    `json:"order_id" yaml:"order_id"`
	CreatedAt time.Time `json:"timestamp" yaml:"timestamp"`
	Customer  string    `json:"customer_name,omitempty" yaml:"customer_name,omitempty"`
	Table     *int      `json:"table_number,omitempty" yaml:"table_number,omitempty"`
	Notes     string    `json:"notes" yaml:"notes"`
	Lines     []Line    `json:"items" yaml:"items"`
}

func (o *Order) Total() Money {
	var sum Money
	for _, l := range o.Lines {
		sum += l.Total()
	}
	return sum
}

func (o *Order) Count() int {
	n := 0
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}

func (o *Order) Empty() bool {
	return len(o.Lines) == 0
}

// Clone returns a deep copy safe to hand to other goroutines.
func (o *Order) Clone() *Order {
	c := *o
	c.Lines = make([]Line, len(o.Lines))
	for i, l := range o.Lines {
		l.Modifiers = append([]string(nil), l.Modifiers...)
		c.Lines[i] = l
	}
	if o.Table != nil {
		t := *o.Table
		c.Table = &t
	}
	return &c
}

// Summary renders the order for logs and the control client.
func (o *Order) Summary() string {
	if o.Empty() {
		return "No items in order"
	}

	var b strings.Builder
	rule := strings.Repeat("-", 40)
	fmt.Fprintf(&b, "Order %s\n%s\n", o.ID, rule)
	for _, l := range o.Lines {
		fmt.Fprintf(&b, "%dx %s - $%s", l.Quantity, l.Name, l.Total())
		if len(l.Modifiers) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(l.Modifiers, ", "))
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%s\nTotal: $%s\nItems: %d", rule, o.Total(), o.Count())
	return b.String()
}

// NewOrderID derives a sortable id from the clock plus a random suffix.
func NewOrderID(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102150405"), uuid.NewString()[:6])
}
