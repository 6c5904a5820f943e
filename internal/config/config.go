// Package config loads daemon settings from YAML, an env file and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Restaurant RestaurantConfig `yaml:"restaurant"`
	Audio      AudioConfig      `yaml:"audio"`
	WakeWord   WakeWordConfig   `yaml:"wake_word"`
	ASR        ASRConfig        `yaml:"asr"`
	TTS        TTSConfig        `yaml:"tts"`
	Menu       MenuConfig       `yaml:"menu"`
	Orders     OrdersConfig     `yaml:"orders"`
	Controller ControllerConfig `yaml:"controller"`
	Control    ControlConfig    `yaml:"control"`
	Kitchen    KitchenConfig    `yaml:"kitchen"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type RestaurantConfig struct {
	Name     string `yaml:"name"`
	Greeting string `yaml:"greeting"`
}

type AudioConfig struct {
	SampleRate       int           `yaml:"sample_rate"`
	FrameSize        int           `yaml:"frame_size"`
	Device           string        `yaml:"device"`
	SilenceThreshold float64       `yaml:"silence_threshold"`
	SilenceDuration  time.Duration `yaml:"silence_duration"`
	MaxDuration      time.Duration `yaml:"max_duration"`
	// DebugDir receives a WAV of every captured utterance when set.
	DebugDir string `yaml:"debug_dir"`
}

type WakeWordConfig struct {
	Enabled bool `yaml:"enabled"`
	// Engine is "process" (external detector) or "manual" (waiter-ctl trigger only).
	Engine    string   `yaml:"engine"`
	Command   string   `yaml:"command"`
	Args      []string `yaml:"args"`
	Model     string   `yaml:"model"`
	Threshold float64  `yaml:"threshold"`
	Chime     string   `yaml:"chime"`
}

type ASRConfig struct {
	// Engine is "whisper" (local model) or "openai".
	Engine    string `yaml:"engine"`
	ModelPath string `yaml:"model_path"`
	Language  string `yaml:"language"`
	Threads   int    `yaml:"threads"`
	Model     string `yaml:"model"`
	Proxy     string `yaml:"proxy"`
	APIKey    string `yaml:"-"`
}

type TTSConfig struct {
	// Engine is "espeak" or "console".
	Engine     string  `yaml:"engine"`
	Language   string  `yaml:"language"`
	Rate       int     `yaml:"rate"`
	Duck       bool    `yaml:"duck"`
	DuckFactor float64 `yaml:"duck_factor"`
}

type MenuConfig struct {
	File  string `yaml:"file"`
	Watch bool   `yaml:"watch"`
}

type OrdersConfig struct {
	Dir           string `yaml:"dir"`
	Format        string `yaml:"format"`
	SaveOnConfirm bool   `yaml:"save_on_confirm"`
}

type ControllerConfig struct {
	MaxConsecutiveErrors int           `yaml:"max_consecutive_errors"`
	RetryPause           time.Duration `yaml:"retry_pause"`
	FuzzyThreshold       float64       `yaml:"fuzzy_threshold"`
}

type ControlConfig struct {
	Socket string `yaml:"socket"`
}

type KitchenConfig struct {
	// Transport is "none", "ws" or "nats".
	Transport string `yaml:"transport"`
	URL       string `yaml:"url"`
	Subject   string `yaml:"subject"`
}

type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. ":9102".
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Default() Config {
	return Config{
		Restaurant: RestaurantConfig{
			Name:     "Digital Waiter",
			Greeting: "Welcome! Say 'Hey Jarvis' to start ordering.",
		},
		Audio: AudioConfig{
			SampleRate:       16000,
			FrameSize:        1024,
			SilenceThreshold: 500,
			SilenceDuration:  1500 * time.Millisecond,
			MaxDuration:      10 * time.Second,
		},
		WakeWord: WakeWordConfig{
			Enabled:   true,
			Engine:    "manual",
			Model:     "hey_jarvis",
			Threshold: 0.5,
		},
		ASR: ASRConfig{
			Engine:    "whisper",
			ModelPath: "models/ggml-base.en.bin",
			Language:  "en",
			Model:     "whisper-1",
		},
		TTS: TTSConfig{
			Engine:     "espeak",
			Language:   "en",
			Rate:       150,
			DuckFactor: 0.3,
		},
		Menu:   MenuConfig{File: "config/menu.yaml"},
		Orders: OrdersConfig{Dir: "orders", Format: "json"},
		Controller: ControllerConfig{
			MaxConsecutiveErrors: 5,
			RetryPause:           time.Second,
			FuzzyThreshold:       0.6,
		},
		Control: ControlConfig{Socket: "/tmp/waiter.sock"},
		Kitchen: KitchenConfig{Transport: "none", Subject: "waiter.tickets"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults, then applies envFile and environment
// overrides. An empty path keeps the defaults; a missing env file is ignored.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}

		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	if envFile != "" {
		_ = godotenv.Load(envFile)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.ASR.APIKey = v
	}
	if v := os.Getenv("WAITER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("WAITER_MENU_FILE"); v != "" {
		c.Menu.File = v
	}
	if v := os.Getenv("WAITER_ORDERS_DIR"); v != "" {
		c.Orders.Dir = v
	}
	if v := os.Getenv("WAITER_KITCHEN_URL"); v != "" {
		c.Kitchen.URL = v
	}
}

func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	a := c.Audio
	if a.SampleRate <= 0 || a.FrameSize <= 0 {
		bad("audio: sample_rate and frame_size must be positive")
	}
	if a.SilenceThreshold < 0 {
		bad("audio: silence_threshold must not be negative")
	}
	if a.SilenceDuration <= 0 || a.MaxDuration <= 0 {
		bad("audio: silence_duration and max_duration must be positive")
	}

	if w := c.WakeWord; w.Enabled {
		if w.Threshold <= 0 || w.Threshold > 1 {
			bad("wake_word: threshold must be in (0, 1]")
		}
		switch w.Engine {
		case "process":
			if w.Command == "" {
				bad("wake_word: process engine needs a command")
			}
		case "manual":
		default:
			bad("wake_word: unknown engine %q", w.Engine)
		}
	}

	switch c.ASR.Engine {
	case "whisper":
		if c.ASR.ModelPath == "" {
			bad("asr: whisper needs model_path")
		}
	case "openai":
		if c.ASR.APIKey == "" {
			bad("asr: OPENAI_API_KEY not set")
		}
	default:
		bad("asr: unknown engine %q", c.ASR.Engine)
	}

	switch c.TTS.Engine {
	case "espeak", "console":
	default:
		bad("tts: unknown engine %q", c.TTS.Engine)
	}
	if c.TTS.Duck && (c.TTS.DuckFactor < 0 || c.TTS.DuckFactor > 1) {
		bad("tts: duck_factor must be in [0, 1]")
	}

	if c.Menu.File == "" {
		bad("menu: file is required")
	}
	switch c.Orders.Format {
	case "json", "yaml", "yml":
	default:
		bad("orders: unknown format %q", c.Orders.Format)
	}

	ctl := c.Controller
	if ctl.MaxConsecutiveErrors < 1 {
		bad("controller: max_consecutive_errors must be at least 1")
	}
	if ctl.RetryPause < 0 {
		bad("controller: retry_pause must not be negative")
	}
	if ctl.FuzzyThreshold <= 0 || ctl.FuzzyThreshold > 1 {
		bad("controller: fuzzy_threshold must be in (0, 1]")
	}

	switch c.Kitchen.Transport {
	case "", "none":
	case "ws", "nats":
		if c.Kitchen.URL == "" {
			bad("kitchen: %s transport needs a url", c.Kitchen.Transport)
		}
	default:
		bad("kitchen: unknown transport %q", c.Kitchen.Transport)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		bad("logging: unknown level %q", c.Logging.Level)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
