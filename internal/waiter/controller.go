// Package waiter runs the conversation loop: wait for the wake word, capture
// an utterance, transcribe it, classify it and answer.
package waiter

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"time"

	"waiter/internal/audio"
	"waiter/internal/catalog"
	"waiter/internal/kitchen"
	"waiter/internal/nlu"
	"waiter/internal/order"
	"waiter/internal/wake"
)

type Gate interface {
	Wait(ctx context.Context, src audio.Source) (wake.Detection, error)
}

type Capturer interface {
	Capture(ctx context.Context, src audio.Source) (*audio.Utterance, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error)
}

type Classifier interface {
	Classify(text string, names []string) nlu.Result
}

type Speaker interface {
	Speak(ctx context.Context, text string) error
}

type Chime interface {
	Play(ctx context.Context) error
}

type Menu interface {
	Get() *catalog.Catalog
}

type Ledger interface {
	Start(opts ...order.OrderOption) string
	Add(name string, qty int, price order.Money, category string, modifiers []string) error
	Current() *order.Order
	Save(ctx context.Context, notes string) (string, error)
}

type Metrics interface {
	ObserveTurn(intent, outcome string)
	ObserveStage(stage string, d time.Duration)
	SetConsecutiveErrors(n int)
	OrderSaved(err error)
	WakeDetected(model string)
}

type Config struct {
	Greeting             string
	MaxConsecutiveErrors int
	RetryPause           time.Duration
	SaveOnConfirm        bool
	// SilenceThreshold is the segmenter's speech level. A capture that hit
	// its time limit is still transcribed when its peak reached it.
	SilenceThreshold float64
	// DebugDir receives a WAV copy of every captured utterance when set.
	DebugDir string
}

// Deps are the collaborators of a Controller. Gate, Chime, Kitchen and
// Metrics are optional.
type Deps struct {
	Source      audio.Source
	Gate        Gate
	Capturer    Capturer
	Transcriber Transcriber
	Classifier  Classifier
	Speaker     Speaker
	Chime       Chime
	Menu        Menu
	Ledger      Ledger
	Kitchen     kitchen.Publisher
	Metrics     Metrics
}

type Controller struct {
	cfg Config
	Deps
	handlers map[nlu.Intent]handler
	now      func() time.Time
	logger   *log.Logger
}

func New(cfg Config, deps Deps, logger *log.Logger) (*Controller, error) {
	var errs []error
	if deps.Source == nil {
		errs = append(errs, errors.New("audio source is required"))
	}
	if deps.Capturer == nil {
		errs = append(errs, errors.New("capturer is required"))
	}
	if deps.Transcriber == nil {
		errs = append(errs, errors.New("transcriber is required"))
	}
	if deps.Classifier == nil {
		errs = append(errs, errors.New("classifier is required"))
	}
	if deps.Speaker == nil {
		errs = append(errs, errors.New("speaker is required"))
	}
	if deps.Menu == nil || deps.Menu.Get() == nil {
		errs = append(errs, errors.New("menu is required"))
	}
	if deps.Ledger == nil {
		errs = append(errs, errors.New("ledger is required"))
	}
	if cfg.MaxConsecutiveErrors < 1 {
		errs = append(errs, fmt.Errorf("max consecutive errors must be positive, got %d", cfg.MaxConsecutiveErrors))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if logger == nil {
		logger = log.Default()
	}

	c := &Controller{cfg: cfg, Deps: deps, now: time.Now, logger: logger}
	c.handlers = c.dispatchTable()
	return c, nil
}

// Run greets the customer and serves turns until ctx is cancelled, the
// audio stream closes or the error breaker trips. A nonempty order is saved
// on the way out. Only a tripped breaker produces an error.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Source.Start(); err != nil {
		return fmt.Errorf("start audio: %w", err)
	}
	defer func() {
		if err := c.Source.Stop(); err != nil {
			c.logger.Warn("Failed to stop audio", "err", err)
		}
	}()

	if c.cfg.Greeting != "" {
		if err := c.say(ctx, c.cfg.Greeting); err != nil {
			c.logger.Warn("Greeting failed", "err", err)
		}
	}
	c.Ledger.Start()

	breaker := newErrorBreaker(c.cfg.MaxConsecutiveErrors, c.logger)
	var runErr error

loop:
	for ctx.Err() == nil {
		outcome, err := c.turn(ctx)

		switch {
		case errors.Is(err, audio.ErrStreamClosed):
			c.logger.Info("Audio stream closed")
			break loop
		case ctx.Err() != nil:
			break loop
		}

		open := breaker.record(outcome, err)
		c.Metrics.SetConsecutiveErrors(breaker.consecutive())

		switch {
		case open:
			c.logger.Error("Too many consecutive errors", "last", err)
			c.sayBestEffort(ctx, msgFatal)
			runErr = fmt.Errorf("%w: %v", ErrTooManyErrors, err)
			break loop
		case err != nil:
			c.logger.Error("Turn failed", "err", err, "consecutive", breaker.consecutive())
			c.sayBestEffort(ctx, msgRetry)
			c.pause(ctx)
		case outcome == Success:
			c.sayBestEffort(ctx, msgAnythingElse)
		}
	}

	c.finish(context.WithoutCancel(ctx))
	return runErr
}

// finish saves a nonempty order at shutdown.
func (c *Controller) finish(ctx context.Context) {
	o := c.Ledger.Current()
	if o == nil || o.Empty() {
		return
	}
	if _, err := c.saveOrder(ctx); err != nil {
		return
	}
	c.sayBestEffort(ctx, msgSaved)
}

func (c *Controller) saveOrder(ctx context.Context) (string, error) {
	path, err := c.Ledger.Save(ctx, "")
	c.Metrics.OrderSaved(err)
	if err != nil {
		return "", err
	}

	if c.Kitchen != nil {
		t := kitchen.NewTicket(c.Ledger.Current(), path, c.now())
		if err := c.Kitchen.Publish(ctx, t); err != nil {
			c.logger.Warn("Failed to publish kitchen ticket", "id", t.OrderID, "err", err)
		}
	}
	return path, nil
}

func (c *Controller) say(ctx context.Context, text string) error {
	c.logger.Info("Robot", "text", text)
	start := time.Now()
	err := c.Speaker.Speak(ctx, text)
	c.Metrics.ObserveStage(stageSpeak, time.Since(start))
	if err != nil {
		return fmt.Errorf("speak: %w", err)
	}
	return nil
}

func (c *Controller) sayBestEffort(ctx context.Context, text string) {
	if err := c.say(ctx, text); err != nil {
		c.logger.Warn("Failed to speak", "err", err)
	}
}

func (c *Controller) pause(ctx context.Context) {
	if c.cfg.RetryPause <= 0 {
		return
	}
	t := time.NewTimer(c.cfg.RetryPause)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

type nopMetrics struct{}

func (nopMetrics) ObserveTurn(string, string)         {}
func (nopMetrics) ObserveStage(string, time.Duration) {}
func (nopMetrics) SetConsecutiveErrors(int)           {}
func (nopMetrics) OrderSaved(error)                   {}
func (nopMetrics) WakeDetected(string)                {}
