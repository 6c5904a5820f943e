package catalog

import (
	log "log/slog"
	"sync/atomic"
)

// Store serves the current catalog and swaps it on reload.
type Store struct {
	path   string
	cur    atomic.Pointer[Catalog]
	logger *log.Logger
}

func Open(path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default()
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	s := &Store{path: path, logger: logger}
	s.cur.Store(c)

	logger.Info("Menu loaded", "items", c.Len(), "categories", len(c.categories), "path", path)
	return s, nil
}

// NewStatic wraps an already built catalog; Reload is a no-op.
func NewStatic(c *Catalog) *Store {
	s := &Store{logger: log.Default()}
	s.cur.Store(c)
	return s
}

func (s *Store) Path() string { return s.path }

func (s *Store) Get() *Catalog { return s.cur.Load() }

// Reload re-reads the menu file. On failure the previous catalog stays.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}

	c, err := Load(s.path)
	if err != nil {
		s.logger.Error("Menu reload failed, keeping previous", "path", s.path, "err", err)
		return err
	}

	s.cur.Store(c)
	s.logger.Info("Menu reloaded", "items", c.Len())
	return nil
}
