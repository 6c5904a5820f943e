package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

type MicrophoneConfig struct {
	SampleRate int
	FrameSize  int
	// DeviceName selects the first input device whose name contains it
	// (case-insensitive). Empty means the system default input.
	DeviceName string
}

// Microphone is a portaudio input stream producing PCM16 frames.
type Microphone struct {
	cfg MicrophoneConfig
	log *slog.Logger

	mu     sync.Mutex
	buf    []int16
	stream *portaudio.Stream
}

func NewMicrophone(cfg MicrophoneConfig, logger *slog.Logger) *Microphone {
	if logger == nil {
		logger = slog.Default()
	}
	return &Microphone{
		cfg: cfg,
		log: logger,
		buf: make([]int16, cfg.FrameSize),
	}
}

func (m *Microphone) Init() error {
	return portaudio.Initialize()
}

// Close stops the stream and releases portaudio.
func (m *Microphone) Close() {
	if err := m.Stop(); err != nil {
		m.log.Warn("Failed to stop microphone", "err", err)
	}
	portaudio.Terminate()
}

func (m *Microphone) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		return nil
	}

	dev, err := m.findDevice()
	if err != nil {
		return err
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(m.cfg.SampleRate),
		FramesPerBuffer: m.cfg.FrameSize,
	}

	stream, err := portaudio.OpenStream(params, m.buf)
	if err != nil {
		return fmt.Errorf("open stream on %q: %w", dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start stream: %w", err)
	}

	m.stream = stream
	m.log.Info("Microphone started", "device", dev.Name, "rate", m.cfg.SampleRate, "frame", m.cfg.FrameSize)

	return nil
}

func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil
	}

	stopErr := m.stream.Stop()
	closeErr := m.stream.Close()
	m.stream = nil
	m.log.Info("Microphone stopped")

	return errors.Join(stopErr, closeErr)
}

// ReadFrame blocks until one frame is available. Input overflows are
// ignored; the frame is still returned.
func (m *Microphone) ReadFrame(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil, ErrStreamNotStarted
	}

	if err := m.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return nil, fmt.Errorf("microphone read: %w", err)
	}

	out := make([]byte, 2*len(m.buf))
	for i, s := range m.buf {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}

	return out, nil
}

func (m *Microphone) findDevice() (*portaudio.DeviceInfo, error) {
	if m.cfg.DeviceName == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	want := strings.ToLower(m.cfg.DeviceName)
	for _, d := range devices {
		if d.MaxInputChannels < 1 {
			continue
		}
		m.log.Debug("Input device", "name", d.Name, "channels", d.MaxInputChannels)
		if strings.Contains(strings.ToLower(d.Name), want) {
			return d, nil
		}
	}

	m.log.Warn("Input device not found, using default", "want", m.cfg.DeviceName)

	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, fmt.Errorf("default input device: %w", err)
	}
	return dev, nil
}
