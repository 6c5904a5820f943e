package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cli "github.com/spf13/pflag"

	log "log/slog"

	"waiter/internal/audio"
	"waiter/internal/catalog"
	"waiter/internal/config"
	"waiter/internal/ipc"
	"waiter/internal/kitchen"
	"waiter/internal/logging"
	"waiter/internal/match"
	"waiter/internal/metrics"
	"waiter/internal/nlu"
	"waiter/internal/notify"
	"waiter/internal/order"
	"waiter/internal/proxy"
	"waiter/internal/tts"
	"waiter/internal/waiter"
	"waiter/internal/wake"
	"waiter/pkg/stt"
)

type flags struct {
	config  string
	env     string
	level   string
	proxy   string
	noWake  bool
	replay  string
	changed func(string) bool
}

func main() {
	var f flags
	cli.StringVarP(&f.config, "config", "c", "config/settings.yaml", "Settings file path")
	cli.StringVarP(&f.env, "env", "e", ".env", "Env file path")
	cli.StringVarP(&f.level, "log", "l", "info", "Log level")
	cli.StringVarP(&f.proxy, "proxy", "p", "", "Socks proxy address for the remote ASR engine")
	cli.BoolVar(&f.noWake, "no-wake", false, "Listen without waiting for the wake word")
	cli.StringVar(&f.replay, "replay", "", "Feed a wav/mp3/ogg file instead of the microphone")
	cli.Parse()
	f.changed = cli.CommandLine.Changed

	log.SetDefault(logging.New(os.Stdout, f.level))

	cfg, err := config.Load(f.config, f.env)
	if err != nil {
		log.Error("Failed to load config", "path", f.config, "err", err)
		os.Exit(1)
	}
	f.apply(&cfg)

	logger := logging.New(os.Stdout, cfg.Logging.Level)
	log.SetDefault(logger)

	if err := run(cfg, f.replay, logger); err != nil {
		logger.Error("Waiter stopped", "err", err)
		os.Exit(1)
	}
}

func (f flags) apply(cfg *config.Config) {
	if f.changed("log") {
		cfg.Logging.Level = f.level
	}
	if f.changed("proxy") {
		cfg.ASR.Proxy = f.proxy
	}
	if f.noWake {
		cfg.WakeWord.Enabled = false
	}
}

func run(cfg config.Config, replay string, logger *log.Logger) error {
	logger.Info("Booting up", "restaurant", cfg.Restaurant.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	menu, err := catalog.Open(cfg.Menu.File, logger)
	if err != nil {
		return err
	}
	logger.Debug("Loaded menu", "items", menu.Get().Len())

	format, err := order.ParseFormat(cfg.Orders.Format)
	if err != nil {
		return err
	}
	store, err := order.NewStore(cfg.Orders.Dir, format)
	if err != nil {
		return err
	}
	ledger := order.NewLedger(store, logger)

	seg, err := audio.NewSegmenter(audio.SegmenterConfig{
		SampleRate:       cfg.Audio.SampleRate,
		FrameSize:        cfg.Audio.FrameSize,
		SilenceThreshold: cfg.Audio.SilenceThreshold,
		SilenceDuration:  cfg.Audio.SilenceDuration,
		MaxDuration:      cfg.Audio.MaxDuration,
	}, logger)
	if err != nil {
		return err
	}

	var src audio.Source
	if replay != "" {
		fs, err := audio.NewFileSource(ctx, replay, cfg.Audio.SampleRate, cfg.Audio.FrameSize, seg.SilenceFrames())
		if err != nil {
			return err
		}
		src = fs
		logger.Info("Replaying", "file", replay)
	} else {
		mic := audio.NewMicrophone(audio.MicrophoneConfig{
			SampleRate: cfg.Audio.SampleRate,
			FrameSize:  cfg.Audio.FrameSize,
			DeviceName: cfg.Audio.Device,
		}, logger)
		if err := mic.Init(); err != nil {
			return fmt.Errorf("init audio: %w", err)
		}
		defer mic.Close()
		src = mic
	}
	logger.Debug("Loaded audio source")

	transcriber, closeASR, err := newTranscriber(cfg.ASR, menu.Get().Names())
	if err != nil {
		return err
	}
	defer closeASR()
	logger.Debug("Loaded ASR", "engine", cfg.ASR.Engine)

	speaker := newSpeaker(cfg.TTS, logger)

	deps := waiter.Deps{
		Source:      src,
		Capturer:    seg,
		Transcriber: transcriber,
		Classifier:  nlu.NewClassifier(match.NewResolver(cfg.Controller.FuzzyThreshold), logger),
		Speaker:     speaker,
		Menu:        menu,
		Ledger:      ledger,
	}

	gate, err := newGate(ctx, cfg.WakeWord, replay != "", logger)
	if err != nil {
		return err
	}
	if gate != nil {
		deps.Gate = gate
		if cfg.WakeWord.Chime != "" {
			deps.Chime = notify.NewChime(cfg.WakeWord.Chime)
		}
	}

	pub, err := newPublisher(cfg.Kitchen, logger)
	if err != nil {
		return err
	}
	if pub != nil {
		deps.Kitchen = pub
		defer pub.Close()
	}

	m := metrics.NewTurnMetrics()
	deps.Metrics = m
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, m.Handler()); err != nil {
				logger.Error("Metrics server failed", "addr", cfg.Metrics.Addr, "err", err)
			}
		}()
	}

	if cfg.Menu.Watch {
		w, err := catalog.NewWatcher(menu, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Warn("Menu watcher stopped", "err", err)
			}
		}()
	}

	srv, err := ipc.Listen(cfg.Control.Socket, control(gate, menu, ledger, cancel), logger)
	if err != nil {
		return fmt.Errorf("control socket: %w", err)
	}
	go func() {
		if err := srv.Serve(ctx); err != nil {
			logger.Warn("Control socket stopped", "err", err)
		}
	}()

	ctrl, err := waiter.New(waiter.Config{
		Greeting:             cfg.Restaurant.Greeting,
		MaxConsecutiveErrors: cfg.Controller.MaxConsecutiveErrors,
		RetryPause:           cfg.Controller.RetryPause,
		SaveOnConfirm:        cfg.Orders.SaveOnConfirm,
		SilenceThreshold:     cfg.Audio.SilenceThreshold,
		DebugDir:             cfg.Audio.DebugDir,
	}, deps, logger)
	if err != nil {
		return err
	}

	logger.Info("Boot up - successful")
	err = ctrl.Run(ctx)
	logger.Info("Shutting down")
	return err
}

func newTranscriber(cfg config.ASRConfig, names []string) (waiter.Transcriber, func(), error) {
	switch cfg.Engine {
	case "openai":
		oc := stt.OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model, Language: cfg.Language}
		if cfg.Proxy != "" {
			hc, err := proxy.NewSocksClient(cfg.Proxy, 60*time.Second)
			if err != nil {
				return nil, nil, fmt.Errorf("socks proxy %s: %w", cfg.Proxy, err)
			}
			oc.HTTPClient = hc
		}
		return stt.NewOpenAI(oc), func() {}, nil
	default:
		w, err := stt.NewWhisper(cfg.ModelPath, stt.WhisperOptions{
			Language:      cfg.Language,
			Threads:       cfg.Threads,
			InitialPrompt: strings.Join(names, ", "),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init whisper: %w", err)
		}
		return w, func() { _ = w.Close() }, nil
	}
}

func newSpeaker(cfg config.TTSConfig, logger *log.Logger) tts.Engine {
	var engine tts.Engine
	switch cfg.Engine {
	case "console":
		engine = tts.NewConsole(os.Stdout)
	default:
		engine = tts.NewEspeak(cfg.Language, cfg.Rate)
	}
	if !cfg.Duck {
		return engine
	}
	ducker := audio.NewDucker([]string{"espeak", "waiter"}, 5)
	return tts.NewDucked(engine, ducker, tts.DuckConfig{
		Factor:  cfg.DuckFactor,
		FadeIn:  150 * time.Millisecond,
		FadeOut: 300 * time.Millisecond,
	}, logger)
}

// newGate returns nil when listening is not wake-gated. A manual gate cannot
// be satisfied during replay, so replay skips it.
func newGate(ctx context.Context, cfg config.WakeWordConfig, replay bool, logger *log.Logger) (*wake.Gate, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var scorer wake.Scorer
	switch cfg.Engine {
	case "process":
		p, err := wake.StartProcess(ctx, cfg.Command, cfg.Args, logger)
		if err != nil {
			return nil, fmt.Errorf("start wake detector: %w", err)
		}
		context.AfterFunc(ctx, func() { _ = p.Close() })
		scorer = p
	default:
		if replay {
			logger.Info("Manual wake gate disabled during replay")
			return nil, nil
		}
	}

	return wake.NewGate(scorer, wake.GateConfig{Model: cfg.Model, Threshold: cfg.Threshold}, logger)
}

func newPublisher(cfg config.KitchenConfig, logger *log.Logger) (kitchen.Publisher, error) {
	switch cfg.Transport {
	case "ws":
		return kitchen.NewWebSocket(kitchen.WebSocketConfig{URL: cfg.URL}, logger), nil
	case "nats":
		n, err := kitchen.NewNATS(kitchen.NATSConfig{
			URL:                  cfg.URL,
			Subject:              cfg.Subject,
			RetryOnFailedConnect: true,
		}, logger)
		if err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, nil
	}
}

func control(gate *wake.Gate, menu *catalog.Store, ledger *order.Ledger, stop context.CancelFunc) ipc.Handler {
	return func(msg ipc.ControlMessage) ipc.Reply {
		switch msg.Cmd {
		case ipc.CmdTrigger:
			if gate == nil {
				return ipc.Reply{Error: "wake gate disabled"}
			}
			gate.Trigger()
			return ipc.Reply{OK: true}
		case ipc.CmdReload:
			if err := menu.Reload(); err != nil {
				return ipc.Reply{Error: err.Error()}
			}
			return ipc.Reply{OK: true, Text: fmt.Sprintf("%d items", menu.Get().Len())}
		case ipc.CmdStatus:
			return ipc.Reply{OK: true, Text: ledger.Summary()}
		case ipc.CmdStop:
			stop()
			return ipc.Reply{OK: true}
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
			return ipc.Reply{Error: fmt.Sprintf("unknown command %q", msg.Cmd)}
		}
	}
}
