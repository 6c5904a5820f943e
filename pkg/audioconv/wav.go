package audioconv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV stores mono PCM16 as a 16-bit WAV file.
func WriteWAV(path string, pcm []byte, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	if err := encodeWAV(f, pcm, sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodeWAV returns mono PCM16 wrapped in a WAV container.
func EncodeWAV(pcm []byte, sampleRate int) ([]byte, error) {
	var m memFile
	if err := encodeWAV(&m, pcm, sampleRate); err != nil {
		return nil, err
	}
	return m.buf, nil
}

func encodeWAV(w io.WriteSeeker, pcm []byte, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)

	data := make([]int, len(pcm)/2)
	for i := range data {
		data[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// memFile is an in-memory io.WriteSeeker; the WAV encoder patches the header
// sizes after writing samples.
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	if end := m.pos + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	n := copy(m.buf[m.pos:], p)
	m.pos += n
	return n, nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	m.pos = int(abs)
	return abs, nil
}
