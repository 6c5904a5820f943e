package audio

import (
	"context"
	"encoding/binary"
	"errors"
)

var (
	// ErrStreamClosed is returned by a Source whose underlying stream ended.
	ErrStreamClosed = errors.New("audio: stream closed")

	// ErrStreamNotStarted is returned when reading before Start.
	ErrStreamNotStarted = errors.New("audio: stream not started")
)

// Source delivers fixed-size frames of signed 16-bit little-endian mono PCM.
// Start and Stop are idempotent. ReadFrame blocks for about one frame.
type Source interface {
	Start() error
	Stop() error
	ReadFrame(ctx context.Context) ([]byte, error)
}

// MeanAbs returns the mean absolute sample value of a PCM16 frame.
// A trailing odd byte is ignored.
func MeanAbs(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}

	var sum int64
	for i := 0; i < n; i++ {
		v := int64(int16(binary.LittleEndian.Uint16(frame[2*i:])))
		if v < 0 {
			v = -v
		}
		sum += v
	}

	return float64(sum) / float64(n)
}
