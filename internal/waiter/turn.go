package waiter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"waiter/internal/nlu"
	"waiter/pkg/audioconv"
)

type Outcome int

const (
	// Miss is a recognition dead end. It neither counts as an error nor
	// resets the error streak.
	Miss Outcome = iota
	Success
	Failure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "miss"
	}
}

type State int

const (
	Idle State = iota
	AwaitingTrigger
	Capturing
	Transcribing
	Classifying
	Responding
)

var stateNames = [...]string{"idle", "awaiting_trigger", "capturing", "transcribing", "classifying", "responding"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

const (
	stageWake       = "wake"
	stageCapture    = "capture"
	stageTranscribe = "transcribe"
	stageClassify   = "classify"
	stageSpeak      = "speak"
)

// turn runs one trigger, capture, transcribe, classify, respond cycle.
func (c *Controller) turn(ctx context.Context) (out Outcome, err error) {
	intent := nlu.Unknown
	defer func() {
		if err != nil {
			out = Failure
		}
		c.Metrics.ObserveTurn(intent.String(), out.String())
		c.enter(Idle)
	}()

	if c.Gate != nil {
		c.enter(AwaitingTrigger)
		start := time.Now()
		det, err := c.Gate.Wait(ctx, c.Source)
		c.Metrics.ObserveStage(stageWake, time.Since(start))
		if err != nil {
			return Failure, err
		}
		c.logger.Debug("Triggered", "model", det.Model, "score", det.Score)
		c.Metrics.WakeDetected(det.Model)

		if c.Chime != nil {
			if err := c.Chime.Play(ctx); err != nil {
				c.logger.Warn("Chime failed", "err", err)
			}
		}
		if err := c.say(ctx, msgWakeAck); err != nil {
			return Failure, err
		}
	}

	if err := c.say(ctx, msgListening); err != nil {
		return Failure, err
	}

	c.enter(Capturing)
	start := time.Now()
	utt, err := c.Capturer.Capture(ctx, c.Source)
	c.Metrics.ObserveStage(stageCapture, time.Since(start))
	if err != nil {
		return Failure, fmt.Errorf("capture: %w", err)
	}
	if utt.Empty() {
		c.logger.Info("No audio captured")
		c.enter(Responding)
		return Miss, c.say(ctx, msgNoAudio)
	}
	c.dump(utt.PCM, utt.SampleRate)

	if utt.TimedOut() && utt.Peak < c.cfg.SilenceThreshold {
		c.logger.Info("Capture timed out", "frames", utt.Frames, "peak", utt.Peak)
		c.enter(Responding)
		return Miss, c.say(ctx, msgNoAudio)
	}

	c.enter(Transcribing)
	start = time.Now()
	text, err := c.Transcriber.Transcribe(ctx, utt.PCM, utt.SampleRate)
	c.Metrics.ObserveStage(stageTranscribe, time.Since(start))
	if err != nil {
		return Failure, fmt.Errorf("transcribe: %w", err)
	}
	text = strings.TrimSpace(text)
	c.logger.Info("Customer", "text", text)
	if text == "" {
		c.enter(Responding)
		return Miss, c.say(ctx, msgNoText)
	}

	c.enter(Classifying)
	menu := c.Menu.Get()
	start = time.Now()
	res := c.Classifier.Classify(text, menu.Names())
	c.Metrics.ObserveStage(stageClassify, time.Since(start))
	intent = res.Intent
	c.logger.Info("Classified", "intent", res.Intent, "items", res.Entities.ItemNames(),
		"quantity", res.Entities.Quantity, "confidence", res.Confidence)
	if len(res.Alternatives) > 0 {
		c.logger.Debug("Alternatives", "alternatives", res.Alternatives)
	}

	c.enter(Responding)
	h, ok := c.handlers[res.Intent]
	if !ok {
		h = (*Controller).handleUnknown
	}
	return h(c, ctx, res, menu)
}

func (c *Controller) enter(s State) {
	c.logger.Debug("State", "state", s)
}

func (c *Controller) dump(pcm []byte, rate int) {
	if c.cfg.DebugDir == "" || len(pcm) == 0 {
		return
	}
	name := fmt.Sprintf("utterance_%s.wav", c.now().Format("20060102_150405.000"))
	path := filepath.Join(c.cfg.DebugDir, name)
	if err := audioconv.WriteWAV(path, pcm, rate); err != nil {
		c.logger.Warn("Failed to write debug utterance", "path", path, "err", err)
		return
	}
	c.logger.Debug("Utterance saved", "path", path)
}
