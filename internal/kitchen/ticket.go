// Package kitchen forwards saved orders to the kitchen display.
package kitchen

import (
	"context"
	"time"

	"waiter/internal/order"
)

type TicketLine struct {
	Name      string   `json:"name"`
	Quantity  int      `json:"quantity"`
	Category  string   `json:"category,omitempty"`
	Modifiers []string `json:"modifiers,omitempty"`
}

type Ticket struct {
	OrderID  string       `json:"order_id"`
	SavedAt  time.Time    `json:"saved_at"`
	Customer string       `json:"customer_name,omitempty"`
	Table    *int         `json:"table_number,omitempty"`
	Notes    string       `json:"notes,omitempty"`
	Lines    []TicketLine `json:"items"`
	Total    order.Money  `json:"total_price"`
	Location string       `json:"location"`
}

func NewTicket(o *order.Order, location string, at time.Time) Ticket {
	t := Ticket{
		OrderID:  o.ID,
		SavedAt:  at,
		Customer: o.Customer,
		Table:    o.Table,
		Notes:    o.Notes,
		Total:    o.Total(),
		Location: location,
		Lines:    make([]TicketLine, len(o.Lines)),
	}
	for i, l := range o.Lines {
		t.Lines[i] = TicketLine{Name: l.Name, Quantity: l.Quantity, Category: l.Category, Modifiers: l.Modifiers}
	}
	return t
}

type Publisher interface {
	Publish(ctx context.Context, t Ticket) error
	Close() error
}
