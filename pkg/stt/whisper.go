// Package stt turns captured PCM16 utterances into text.
package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"waiter/pkg/audioconv"
)

type WhisperOptions struct {
	Language      string // "auto", "en", ...
	Threads       int    // <=0 => NumCPU()
	InitialPrompt string // biases decoding, e.g. menu item names
	BeamSize      int    // 0 = greedy
	SplitOnWord   bool
}

// Whisper runs a local whisper.cpp model.
type Whisper struct {
	mu    sync.Mutex
	model whisper.Model
	opts  WhisperOptions
}

func NewWhisper(modelPath string, opts WhisperOptions) (*Whisper, error) {
	if modelPath == "" {
		return nil, errors.New("empty model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	if opts.Language == "" {
		opts.Language = "auto"
	}
	return &Whisper{model: m, opts: opts}, nil
}

func (w *Whisper) Close() error {
	if w.model == nil {
		return nil
	}
	return w.model.Close()
}

// Transcribe accepts mono PCM16 at any rate and returns the joined segment text.
func (w *Whisper) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	samples := audioconv.PCM16ToFloat32(pcm)
	if sampleRate != audioconv.TargetRate {
		samples = audioconv.Resample(samples, sampleRate, audioconv.TargetRate)
	}
	return w.transcribe(ctx, samples)
}

// samples must be mono @ 16 kHz, float32 in [-1, 1]
func (w *Whisper) transcribe(ctx context.Context, samples []float32) (string, error) {
	if w.model == nil {
		return "", errors.New("nil model")
	}
	if len(samples) == 0 {
		return "", errors.New("no audio samples provided")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	wctx, err := w.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("new context: %w", err)
	}

	if err := wctx.SetLanguage(w.opts.Language); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}

	threads := w.opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	if w.opts.SplitOnWord {
		wctx.SetSplitOnWord(true)
	}
	if w.opts.BeamSize > 0 {
		wctx.SetBeamSize(w.opts.BeamSize)
	}
	if w.opts.InitialPrompt != "" {
		wctx.SetInitialPrompt(w.opts.InitialPrompt)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("process: %w", err)
	}

	var parts []string
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("next segment: %w", err)
		}
		if t := strings.TrimSpace(s.Text); t != "" && !isNoiseMarker(t) {
			parts = append(parts, t)
		}
	}

	return strings.Join(parts, " "), nil
}

// isNoiseMarker drops whisper annotations such as "[BLANK_AUDIO]" or "(wind)".
func isNoiseMarker(s string) bool {
	return (strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")) ||
		(strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"))
}
