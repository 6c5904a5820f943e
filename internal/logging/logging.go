// Package logging builds the daemon's slog logger.
package logging

import (
	"fmt"
	"io"
	log "log/slog"
	"time"

	"github.com/lmittmann/tint"
)

var levels = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func ParseLevel(s string) (log.Level, error) {
	lvl, ok := levels[s]
	if !ok {
		return log.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}

// New returns a colored tint logger; unknown levels fall back to info.
func New(w io.Writer, level string) *log.Logger {
	lvl, _ := ParseLevel(level)
	return log.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.TimeOnly,
	}))
}
