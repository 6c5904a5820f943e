package order

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Store persists encoded orders as files under one directory.
type Store struct {
	dir    string
	format Format
}

func NewStore(dir string, format Format) (*Store, error) {
	if dir == "" {
		dir = "./orders"
	}
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create orders dir: %w", err)
	}
	return &Store{dir: dir, format: format}, nil
}

func (s *Store) Dir() string { return s.dir }

// FileName is unique per order and save instant.
func (s *Store) FileName(o *Order, at time.Time) string {
	return fmt.Sprintf("order_%s_%s_%03d.%s", o.ID, at.Format("20060102_150405"), at.Nanosecond()/1e6, s.format)
}

// Save writes the order and returns its path. The file appears atomically.
func (s *Store) Save(ctx context.Context, o *Order, at time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := Encode(o, s.format)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, s.FileName(o, at))
	tmp, err := os.CreateTemp(s.dir, ".order-*")
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename file: %w", err)
	}
	return path, nil
}

func (s *Store) Load(ctx context.Context, path string) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer fh.Close()

	data, err := io.ReadAll(fh)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Decode(data, f)
}
