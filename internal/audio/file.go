package audio

import (
	"context"
	"fmt"

	"waiter/pkg/audioconv"
)

// FileSource replays PCM16 audio as fixed-size frames. After the audio it
// emits a run of silent frames so a capture can end on silence, then
// reports ErrStreamClosed.
type FileSource struct {
	pcm        []byte
	frameBytes int
	tail       int

	pos     int
	emitted int
	started bool
}

// NewFileSource decodes a wav/mp3/ogg file to mono PCM16 at sampleRate.
func NewFileSource(ctx context.Context, path string, sampleRate, frameSize, tailFrames int) (*FileSource, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	samples, err := audioconv.ConvertFileToPCM16k(ctx, path, audioconv.Options{})
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if sampleRate != audioconv.TargetRate {
		samples = audioconv.Resample(samples, audioconv.TargetRate, sampleRate)
	}
	return NewPCMSource(audioconv.Float32ToPCM16(samples), frameSize, tailFrames), nil
}

func NewPCMSource(pcm []byte, frameSize, tailFrames int) *FileSource {
	return &FileSource{
		pcm:        pcm,
		frameBytes: 2 * frameSize,
		tail:       tailFrames,
	}
}

func (f *FileSource) Start() error {
	f.started = true
	return nil
}

func (f *FileSource) Stop() error {
	f.started = false
	return nil
}

func (f *FileSource) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !f.started {
		return nil, ErrStreamNotStarted
	}

	frame := make([]byte, f.frameBytes)

	if f.pos < len(f.pcm) {
		n := copy(frame, f.pcm[f.pos:])
		f.pos += n
		return frame, nil
	}

	if f.emitted < f.tail {
		f.emitted++
		return frame, nil
	}

	return nil, ErrStreamClosed
}
