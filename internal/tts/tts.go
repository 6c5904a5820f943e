// Package tts turns response text into speech.
package tts

import (
	"context"
	"fmt"
	"io"
	log "log/slog"
	"time"
)

type Engine interface {
	Speak(ctx context.Context, text string) error
}

// Console prints speech instead of playing it.
type Console struct {
	w      io.Writer
	prefix string
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w, prefix: "Robot: "}
}

func (c *Console) Speak(_ context.Context, text string) error {
	if text == "" {
		return nil
	}
	_, err := fmt.Fprintf(c.w, "%s%s\n", c.prefix, text)
	return err
}

type Ducker interface {
	DuckOthers(ctx context.Context, factor float64, duration time.Duration) error
	UnduckOthers(ctx context.Context, duration time.Duration) error
}

type DuckConfig struct {
	Factor float64
	FadeIn time.Duration
	// FadeOut restores other streams after speech.
	FadeOut time.Duration
}

// Ducked lowers other audio streams while the wrapped engine speaks.
type Ducked struct {
	next   Engine
	ducker Ducker
	cfg    DuckConfig
	logger *log.Logger
}

func NewDucked(next Engine, ducker Ducker, cfg DuckConfig, logger *log.Logger) *Ducked {
	if logger == nil {
		logger = log.Default()
	}
	return &Ducked{next: next, ducker: ducker, cfg: cfg, logger: logger}
}

func (d *Ducked) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	// Ducking failures never block speech.
	if err := d.ducker.DuckOthers(ctx, d.cfg.Factor, d.cfg.FadeIn); err != nil {
		d.logger.Warn("Failed to duck streams", "err", err)
	}
	defer func() {
		if err := d.ducker.UnduckOthers(context.WithoutCancel(ctx), d.cfg.FadeOut); err != nil {
			d.logger.Warn("Failed to restore streams", "err", err)
		}
	}()

	return d.next.Speak(ctx, text)
}
