package catalog

import (
	"context"
	"errors"
	"io"
	log "log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"waiter/internal/order"
)

const menuYAML = `
categories:
  - name: Burgers
    items:
      - name: Cheeseburger
        price: 5.00
        description: Beef patty with cheddar
        popular: true
      - name: Veggie Burger
        price: 6.50
        dietary: [vegetarian]
  - name: Sides
    items:
      - name: French Fries
        price: 2.49
        popular: true
        dietary: [vegan, Gluten-Free]
      - name: Onion Rings
        price: 3.00
  - name: Drinks
    items:
      - name: Iced Coffee
        price: 3.25
        popular: true
      - name: Cola
        price: 1.50
        popular: true
`

func mustParse(t *testing.T) *Catalog {
	t.Helper()
	c, err := Parse([]byte(menuYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return c
}

func TestParse(t *testing.T) {
	c := mustParse(t)

	if c.Len() != 6 {
		t.Fatalf("expected 6 items, got %d", c.Len())
	}
	if got := strings.Join(c.Categories(), ","); got != "Burgers,Sides,Drinks" {
		t.Fatalf("unexpected categories %s", got)
	}

	it, err := c.Search("cheeseburger")
	if err != nil {
		t.Fatal(err)
	}
	if it.Price != order.Dollars(5) || it.Category != "Burgers" {
		t.Fatalf("unexpected item %+v", it)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := map[string]string{
		"empty":     `categories: []`,
		"unnamed":   "categories:\n  - name: A\n    items:\n      - price: 1\n",
		"duplicate": "categories:\n  - name: A\n    items:\n      - name: X\n        price: 1\n      - name: x\n        price: 2\n",
		"negative":  "categories:\n  - name: A\n    items:\n      - name: X\n        price: -1\n",
		"unknown":   "categories:\n  - name: A\n    items:\n      - name: X\n        cost: 1\n",
		"garbage":   "categories: [",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(data)); !errors.Is(err, ErrInvalidCatalog) {
				t.Fatalf("expected ErrInvalidCatalog, got %v", err)
			}
		})
	}
}

func TestSearchPriority(t *testing.T) {
	c := mustParse(t)

	tests := []struct {
		query string
		want  string
	}{
		{"Cheeseburger", "Cheeseburger"},
		{"burger", "Cheeseburger"},
		{"veggie", "Veggie Burger"},
		{"fries french", "French Fries"},
		{"rings onion", "Onion Rings"},
	}
	for _, tt := range tests {
		it, err := c.Search(tt.query)
		if err != nil {
			t.Fatalf("%q: %v", tt.query, err)
		}
		if it.Name != tt.want {
			t.Errorf("%q: expected %s, got %s", tt.query, tt.want, it.Name)
		}
	}

	for _, q := range []string{"", "pizza", "fries pizza"} {
		if _, err := c.Search(q); !errors.Is(err, ErrItemNotFound) {
			t.Errorf("%q: expected ErrItemNotFound, got %v", q, err)
		}
	}
}

func TestSearchAll(t *testing.T) {
	c := mustParse(t)

	got := c.SearchAll("burger", 5)
	if len(got) != 2 || got[0].Name != "Cheeseburger" || got[1].Name != "Veggie Burger" {
		t.Fatalf("unexpected results %+v", got)
	}
	if got := c.SearchAll("burger", 1); len(got) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(got))
	}
}

func TestQueries(t *testing.T) {
	c := mustParse(t)

	popular := c.Popular(3)
	if len(popular) != 3 || popular[0].Name != "Cheeseburger" || popular[2].Name != "Iced Coffee" {
		t.Fatalf("unexpected popular %+v", popular)
	}
	if got := c.ByDietary("gluten-free"); len(got) != 1 || got[0].Name != "French Fries" {
		t.Fatalf("unexpected dietary %+v", got)
	}
	if got := c.ByCategory("drinks"); len(got) != 2 {
		t.Fatalf("unexpected category items %+v", got)
	}

	info := Info(popular[1])
	for _, want := range []string{"French Fries - $2.49", "Category: Sides", "Dietary: vegan, Gluten-Free"} {
		if !strings.Contains(info, want) {
			t.Errorf("info missing %q:\n%s", want, info)
		}
	}
}

func quietLogger() *log.Logger {
	return log.New(log.NewTextHandler(io.Discard, nil))
}

func TestStoreReloadKeepsPreviousOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu.yaml")
	if err := os.WriteFile(path, []byte(menuYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path, quietLogger())
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("categories: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if s.Get().Len() != 6 {
		t.Fatal("previous catalog must survive a failed reload")
	}

	small := "categories:\n  - name: A\n    items:\n      - name: Tea\n        price: 1\n"
	if err := os.WriteFile(path, []byte(small), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(); err != nil {
		t.Fatal(err)
	}
	if s.Get().Len() != 1 {
		t.Fatalf("expected reloaded catalog, got %d items", s.Get().Len())
	}
}

func TestWatcherReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu.yaml")
	if err := os.WriteFile(path, []byte(menuYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher(s, quietLogger())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	small := "categories:\n  - name: A\n    items:\n      - name: Tea\n        price: 1\n"
	if err := os.WriteFile(path, []byte(small), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s.Get().Len() == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("watcher did not reload the menu")
}
