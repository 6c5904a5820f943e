package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// EndReason tells why a capture stopped.
type EndReason int

const (
	// EndSilence means the trailing-silence window elapsed.
	EndSilence EndReason = iota
	// EndTimeout means the frame cap was reached first.
	EndTimeout
)

func (r EndReason) String() string {
	switch r {
	case EndSilence:
		return "silence"
	case EndTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Utterance is one bounded capture, trailing silence included.
type Utterance struct {
	PCM        []byte
	SampleRate int
	Frames     int
	Duration   time.Duration
	End        EndReason
	// Peak is the loudest frame amplitude seen during the capture.
	Peak float64
}

// TimedOut reports whether the capture hit the max-duration cap.
func (u *Utterance) TimedOut() bool {
	return u.End == EndTimeout
}

// Empty reports whether no audio was captured at all.
func (u *Utterance) Empty() bool {
	return u == nil || len(u.PCM) == 0
}

type SegmenterConfig struct {
	SampleRate int // Hz
	FrameSize  int // samples per frame

	// SilenceThreshold is compared with the mean absolute sample value
	// of each frame (not RMS).
	SilenceThreshold float64
	SilenceDuration  time.Duration
	MaxDuration      time.Duration
}

// Segmenter turns a frame stream into a single utterance using an
// amplitude silence gate.
type Segmenter struct {
	cfg           SegmenterConfig
	silenceFrames int
	maxFrames     int
	log           *slog.Logger
}

func NewSegmenter(cfg SegmenterConfig, logger *slog.Logger) (*Segmenter, error) {
	if cfg.SampleRate <= 0 || cfg.FrameSize <= 0 {
		return nil, errors.New("audio: sample rate and frame size must be positive")
	}
	if cfg.SilenceDuration <= 0 || cfg.MaxDuration <= 0 {
		return nil, errors.New("audio: silence and max durations must be positive")
	}
	if cfg.SilenceThreshold < 0 {
		return nil, errors.New("audio: silence threshold must not be negative")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Segmenter{
		cfg:           cfg,
		silenceFrames: framesFor(cfg.SampleRate, cfg.FrameSize, cfg.SilenceDuration),
		maxFrames:     framesFor(cfg.SampleRate, cfg.FrameSize, cfg.MaxDuration),
		log:           logger,
	}, nil
}

// framesFor returns ceil(rate/frame * d) and at least one frame.
func framesFor(rate, frame int, d time.Duration) int {
	x := float64(rate) / float64(frame) * d.Seconds()
	n := int(math.Ceil(x - 1e-9))
	if n < 1 {
		n = 1
	}
	return n
}

// SilenceFrames is the number of consecutive quiet frames that ends a capture.
func (s *Segmenter) SilenceFrames() int { return s.silenceFrames }

// MaxFrames is the hard cap on frames per capture.
func (s *Segmenter) MaxFrames() int { return s.maxFrames }

// Capture reads frames until the trailing-silence window elapses or the
// frame cap is hit. Hitting the cap is reported through Utterance.End, not
// as an error. Read failures are returned wrapped.
func (s *Segmenter) Capture(ctx context.Context, src Source) (*Utterance, error) {
	frameBytes := s.cfg.FrameSize * 2
	out := make([]byte, 0, frameBytes*min(s.maxFrames, 4*s.silenceFrames))

	var (
		frames int
		silent int
		peak   float64
		start  = time.Now()
	)

	end := EndTimeout
	for frames < s.maxFrames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame, err := src.ReadFrame(ctx)
		if err != nil {
			return nil, fmt.Errorf("read frame: %w", err)
		}
		out = append(out, frame...)
		frames++

		a := MeanAbs(frame)
		if a > peak {
			peak = a
		}

		if a >= s.cfg.SilenceThreshold {
			silent = 0
			continue
		}

		silent++
		if silent >= s.silenceFrames {
			end = EndSilence
			break
		}
	}

	u := &Utterance{
		PCM:        out,
		SampleRate: s.cfg.SampleRate,
		Frames:     frames,
		Duration:   time.Duration(len(out)/2) * time.Second / time.Duration(s.cfg.SampleRate),
		End:        end,
		Peak:       peak,
	}

	s.log.Info("Capture finished",
		"end", end.String(),
		"frames", frames,
		"audio", u.Duration,
		"elapsed", time.Since(start).Round(time.Millisecond),
		"peak", peak,
	)

	return u, nil
}
