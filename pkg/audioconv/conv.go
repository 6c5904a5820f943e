package audioconv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

// TargetRate is the sample rate every decoder normalizes to.
const TargetRate = 16000

type Options struct {
	MaxSamples int
}

// decoded is interleaved float PCM before normalization.
type decoded struct {
	samples  []float32
	rate     int
	channels int
}

// ConvertFileToPCM16k decodes a wav/mp3/ogg file into mono float32 samples
// in [-1, 1] at 16 kHz.
func ConvertFileToPCM16k(ctx context.Context, path string, opt Options) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var d decoded
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		d, err = decodeWAV(f)
	case ".mp3":
		d, err = decodeMP3(f)
	case ".ogg", ".oga":
		d, err = decodeOgg(f)
	default:
		d, err = sniff(f)
	}
	if err != nil {
		return nil, err
	}

	return d.normalize(opt), nil
}

func sniff(f *os.File) (decoded, error) {
	magic, _ := bufio.NewReader(f).Peek(4)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return decoded{}, err
	}

	switch string(magic) {
	case "RIFF":
		return decodeWAV(f)
	case "OggS":
		return decodeOgg(f)
	default:
		return decoded{}, errors.New("unsupported format (supported: wav/mp3/ogg-vorbis/ogg-opus)")
	}
}

func (d decoded) normalize(opt Options) []float32 {
	x := downmixInterleaved(d.samples, d.channels)
	x = Resample(x, d.rate, TargetRate)
	if opt.MaxSamples > 0 && len(x) > opt.MaxSamples {
		x = x[:opt.MaxSamples]
	}
	return x
}

func decodeWAV(r io.ReadSeeker) (decoded, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return decoded{}, errors.New("invalid wav")
	}

	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return decoded{}, fmt.Errorf("read wav: %w", err)
	}
	if pb == nil || len(pb.Data) == 0 {
		return decoded{}, errors.New("empty wav")
	}

	bd := int(dec.BitDepth)
	if bd == 0 {
		bd = 16
	}

	d := decoded{samples: intSliceToFloat32(pb.Data, bd), rate: 44100, channels: 1}
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			d.channels = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			d.rate = pb.Format.SampleRate
		}
	}
	return d, nil
}

func decodeMP3(r io.Reader) (decoded, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return decoded{}, err
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return decoded{}, err
	}

	rate := dec.SampleRate()
	if rate <= 0 {
		rate = 44100
	}

	// go-mp3 always emits 16-bit stereo.
	return decoded{samples: PCM16ToFloat32(raw), rate: rate, channels: 2}, nil
}

// decodeOgg tries Vorbis first, then Opus.
func decodeOgg(f io.ReadSeeker) (decoded, error) {
	d, vorbisErr := decodeOggVorbis(f)
	if vorbisErr == nil {
		return d, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return decoded{}, err
	}

	d, opusErr := decodeOggOpus(f)
	if opusErr != nil {
		return decoded{}, fmt.Errorf("cannot decode ogg: vorbis: %v; opus: %w", vorbisErr, opusErr)
	}
	return d, nil
}

func decodeOggVorbis(r io.Reader) (decoded, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return decoded{}, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return decoded{}, errors.New("invalid ogg/vorbis stream")
	}
	return decoded{samples: pcm, rate: format.SampleRate, channels: format.Channels}, nil
}

func decodeOggOpus(rs io.ReadSeeker) (decoded, error) {
	dec, err := popus.NewDecoder(rs)
	if err != nil {
		return decoded{}, err
	}
	defer dec.Destroy()

	ch := max(dec.ChannelCount(), 1)

	var (
		pcm []float32
		buf = make([]int16, 48_000*ch/2)
	)
	for {
		n, err := dec.Read(buf) // samples per channel
		if n > 0 {
			for _, v := range buf[:n*ch] {
				pcm = append(pcm, float32(v)/32768)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return decoded{}, err
		}
	}

	if len(pcm) == 0 {
		return decoded{}, errors.New("empty ogg/opus stream")
	}

	// Opus always decodes at 48 kHz.
	return decoded{samples: pcm, rate: 48000, channels: ch}, nil
}

func intSliceToFloat32(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(clamp(float64(v)*scale, -1.0, 1.0))
	}
	return out
}

func downmixInterleaved(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	nFrames := len(in) / channels
	out := make([]float32, nFrames)
	for i := 0; i < nFrames; i++ {
		var sum float64
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += float64(in[base+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

// Resample converts mono samples between rates by linear interpolation.
func Resample(in []float32, inSR, outSR int) []float32 {
	if inSR == outSR || len(in) == 0 {
		return in
	}
	ratio := float64(outSR) / float64(inSR)
	outN := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, outN)
	for i := 0; i < outN; i++ {
		src := float64(i) / ratio
		i0 := int(math.Floor(src))
		i1 := i0 + 1
		switch {
		case i0 >= len(in):
			out[i] = in[len(in)-1]
		case i1 >= len(in):
			out[i] = in[i0]
		default:
			a := float32(src - float64(i0))
			out[i] = in[i0]*(1-a) + in[i1]*a
		}
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	return math.Min(math.Max(x, lo), hi)
}

// PCM16ToFloat32 converts little-endian signed 16-bit PCM to [-1, 1).
func PCM16ToFloat32(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768
	}
	return out
}

// Float32ToPCM16 converts [-1, 1] samples to little-endian PCM16, clipping.
func Float32ToPCM16(x []float32) []byte {
	var buf bytes.Buffer
	buf.Grow(2 * len(x))
	for _, v := range x {
		s := int16(clamp(float64(v)*32767, -32768, 32767))
		_ = binary.Write(&buf, binary.LittleEndian, s)
	}
	return buf.Bytes()
}
