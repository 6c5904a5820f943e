package order

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// FormatOf picks the codec from a file extension.
func FormatOf(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// record is the persisted shape; derived totals are written for humans and
// ignored on load.
type record struct {
	Order      `yaml:",inline"`
	TotalPrice Money `json:"total_price" yaml:"total_price"`
	ItemCount  int   `json:"item_count" yaml:"item_count"`
}

func Encode(o *Order, f Format) ([]byte, error) {
	rec := record{Order: *o, TotalPrice: o.Total(), ItemCount: o.Count()}
	if rec.Lines == nil {
		rec.Lines = []Line{}
	}

	switch f {
	case FormatJSON:
		return json.MarshalIndent(rec, "", "  ")
	case FormatYAML:
		return yaml.Marshal(rec)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
}

func Decode(data []byte, f Format) (*Order, error) {
	var rec record

	var err error
	switch f {
	case FormatJSON:
		err = json.Unmarshal(data, &rec)
	case FormatYAML:
		err = yaml.Unmarshal(data, &rec)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s order: %w", f, err)
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("decode %s order: missing order_id", f)
	}

	o := rec.Order
	for i, l := range o.Lines {
		if l.Name == "" || l.Quantity < 1 || l.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: item %d", ErrInvalidLine, i)
		}
	}
	return &o, nil
}
