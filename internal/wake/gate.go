// Package wake blocks until a wake word is heard or a manual trigger arrives.
package wake

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"

	"waiter/internal/audio"
)

const ManualModel = "manual"

// Scorer returns per-model wake scores for one frame.
type Scorer interface {
	Score(ctx context.Context, frame []byte) (map[string]float64, error)
}

// Resetter is implemented by scorers that keep state between detections.
type Resetter interface {
	Reset() error
}

type Detection struct {
	Model string
	Score float64
}

type Gate struct {
	scorer    Scorer
	model     string
	threshold float64
	manual    chan struct{}
	logger    *log.Logger
}

type GateConfig struct {
	// Model restricts detection to one model when the scorer reports it.
	Model     string
	Threshold float64
}

// NewGate builds a gate. A nil scorer makes the gate manual-only.
func NewGate(scorer Scorer, cfg GateConfig, logger *log.Logger) (*Gate, error) {
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("wake threshold must be in (0, 1], got %v", cfg.Threshold)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Gate{
		scorer:    scorer,
		model:     cfg.Model,
		threshold: cfg.Threshold,
		manual:    make(chan struct{}, 1),
		logger:    logger,
	}, nil
}

// Trigger satisfies the next Wait. Extra triggers while one is pending are dropped.
func (g *Gate) Trigger() {
	select {
	case g.manual <- struct{}{}:
	default:
	}
}

// Wait reads frames from src until a detection, a manual trigger or ctx end.
func (g *Gate) Wait(ctx context.Context, src audio.Source) (Detection, error) {
	if g.scorer == nil {
		select {
		case <-ctx.Done():
			return Detection{}, ctx.Err()
		case <-g.manual:
			return Detection{Model: ManualModel, Score: 1}, nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return Detection{}, ctx.Err()
		case <-g.manual:
			g.logger.Info("Manual trigger")
			return Detection{Model: ManualModel, Score: 1}, nil
		default:
		}

		frame, err := src.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, audio.ErrStreamClosed) {
				return Detection{}, err
			}
			return Detection{}, fmt.Errorf("read frame: %w", err)
		}

		scores, err := g.scorer.Score(ctx, frame)
		if err != nil {
			return Detection{}, fmt.Errorf("score frame: %w", err)
		}

		if d, ok := g.pick(scores); ok {
			g.logger.Info("Wake word detected", "model", d.Model, "score", d.Score)
			if r, ok := g.scorer.(Resetter); ok {
				if err := r.Reset(); err != nil {
					g.logger.Warn("Wake scorer reset failed", "err", err)
				}
			}
			return d, nil
		}
	}
}

func (g *Gate) pick(scores map[string]float64) (Detection, bool) {
	if s, ok := scores[g.model]; ok && g.model != "" {
		return Detection{Model: g.model, Score: s}, s >= g.threshold
	}

	var best Detection
	for model, s := range scores {
		if s > best.Score || (s == best.Score && model < best.Model) {
			best = Detection{Model: model, Score: s}
		}
	}
	if best.Score > 0.1 {
		g.logger.Debug("Best wake score", "model", best.Model, "score", best.Score, "threshold", g.threshold)
	}
	return best, best.Model != "" && best.Score >= g.threshold
}
