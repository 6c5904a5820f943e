// Package catalog loads the restaurant menu and answers item queries.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"waiter/internal/order"
)

var (
	ErrInvalidCatalog = errors.New("invalid catalog")
	ErrItemNotFound   = errors.New("item not found")
)

type Item struct {
	Name        string      `yaml:"name"`
	Price       order.Money `yaml:"price"`
	Description string      `yaml:"description"`
	Dietary     []string    `yaml:"dietary"`
	Popular     bool        `yaml:"popular"`
	Category    string      `yaml:"-"`
}

type category struct {
	Name  string `yaml:"name"`
	Items []Item `yaml:"items"`
}

type file struct {
	Categories []category `yaml:"categories"`
}

// Catalog is immutable once built.
type Catalog struct {
	items      []Item
	categories []string
}

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read menu: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	c := &Catalog{}
	seen := make(map[string]struct{})
	for _, cat := range f.Categories {
		if cat.Name == "" {
			cat.Name = "Unknown"
		}
		c.categories = append(c.categories, cat.Name)

		for _, it := range cat.Items {
			key := strings.ToLower(strings.TrimSpace(it.Name))
			if key == "" {
				return nil, fmt.Errorf("%w: unnamed item in %q", ErrInvalidCatalog, cat.Name)
			}
			if _, dup := seen[key]; dup {
				return nil, fmt.Errorf("%w: duplicate item %q", ErrInvalidCatalog, it.Name)
			}
			if it.Price < 0 {
				return nil, fmt.Errorf("%w: negative price for %q", ErrInvalidCatalog, it.Name)
			}
			seen[key] = struct{}{}

			it.Category = cat.Name
			c.items = append(c.items, it)
		}
	}

	if len(c.items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalidCatalog)
	}
	return c, nil
}

func (c *Catalog) Len() int { return len(c.items) }

func (c *Catalog) Items() []Item {
	return append([]Item(nil), c.items...)
}

func (c *Catalog) Names() []string {
	out := make([]string, len(c.items))
	for i, it := range c.items {
		out[i] = it.Name
	}
	return out
}

func (c *Catalog) Categories() []string {
	return append([]string(nil), c.categories...)
}

func (c *Catalog) ByCategory(name string) []Item {
	return c.filter(func(it Item) bool { return strings.EqualFold(it.Category, name) })
}

func (c *Catalog) ByDietary(tag string) []Item {
	return c.filter(func(it Item) bool {
		for _, d := range it.Dietary {
			if strings.EqualFold(d, tag) {
				return true
			}
		}
		return false
	})
}

// Popular returns up to limit flagged items in menu order.
func (c *Catalog) Popular(limit int) []Item {
	out := c.filter(func(it Item) bool { return it.Popular })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Search finds the best item for query: exact name, then name containing
// the query, then name containing every query word.
func (c *Catalog) Search(query string) (Item, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Item{}, ErrItemNotFound
	}

	for _, it := range c.items {
		if strings.ToLower(it.Name) == q {
			return it, nil
		}
	}
	for _, it := range c.items {
		if strings.Contains(strings.ToLower(it.Name), q) {
			return it, nil
		}
	}

	words := strings.Fields(q)
	for _, it := range c.items {
		name := strings.ToLower(it.Name)
		if all(words, func(w string) bool { return strings.Contains(name, w) }) {
			return it, nil
		}
	}

	return Item{}, fmt.Errorf("%w: %q", ErrItemNotFound, query)
}

// SearchAll lists exact matches first, then partial ones, up to limit.
func (c *Catalog) SearchAll(query string, limit int) []Item {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return nil
	}

	var out []Item
	for _, it := range c.items {
		if strings.ToLower(it.Name) == q {
			out = append(out, it)
		}
	}
	for _, it := range c.items {
		name := strings.ToLower(it.Name)
		if name != q && strings.Contains(name, q) {
			out = append(out, it)
		}
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Info renders a multi-line description of it.
func Info(it Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s - $%s", it.Name, it.Price)
	if it.Description != "" {
		fmt.Fprintf(&b, "\n  %s", it.Description)
	}
	fmt.Fprintf(&b, "\n  Category: %s", it.Category)
	if len(it.Dietary) > 0 {
		fmt.Fprintf(&b, "\n  Dietary: %s", strings.Join(it.Dietary, ", "))
	}
	return b.String()
}

func (c *Catalog) filter(keep func(Item) bool) []Item {
	var out []Item
	for _, it := range c.items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

func all(words []string, ok func(string) bool) bool {
	for _, w := range words {
		if !ok(w) {
			return false
		}
	}
	return true
}
