package audioconv

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestPCM16RoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 0.999, -1}
	out := PCM16ToFloat32(Float32ToPCM16(in))
	if len(out) != len(in) {
		t.Fatalf("expected %d samples, got %d", len(in), len(out))
	}
	for i := range in {
		if math.Abs(float64(in[i]-out[i])) > 1e-3 {
			t.Errorf("sample %d: expected %f, got %f", i, in[i], out[i])
		}
	}
}

func TestFloat32ToPCM16Clips(t *testing.T) {
	out := PCM16ToFloat32(Float32ToPCM16([]float32{4, -4}))
	if out[0] < 0.99 || out[1] > -0.99 {
		t.Fatalf("expected clipped samples, got %v", out)
	}
}

func TestWAVRoundTripResamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")

	// 0.1s at 8 kHz.
	src := make([]float32, 800)
	for i := range src {
		src[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/8000))
	}
	if err := WriteWAV(path, Float32ToPCM16(src), 8000); err != nil {
		t.Fatalf("write wav: %v", err)
	}

	got, err := ConvertFileToPCM16k(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(got) != 1600 {
		t.Fatalf("expected 1600 samples at 16 kHz, got %d", len(got))
	}

	limited, err := ConvertFileToPCM16k(context.Background(), path, Options{MaxSamples: 100})
	if err != nil {
		t.Fatalf("convert limited: %v", err)
	}
	if len(limited) != 100 {
		t.Fatalf("expected 100 samples, got %d", len(limited))
	}
}

func TestConvertSniffsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	wavPath := filepath.Join(dir, "a.wav")
	if err := WriteWAV(wavPath, Float32ToPCM16(make([]float32, 160)), 16000); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	raw, err := os.ReadFile(wavPath)
	if err != nil {
		t.Fatal(err)
	}
	other := filepath.Join(dir, "a.bin")
	if err := os.WriteFile(other, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ConvertFileToPCM16k(context.Background(), other, Options{})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(got) != 160 {
		t.Fatalf("expected 160 samples, got %d", len(got))
	}

	junk := filepath.Join(dir, "junk.bin")
	if err := os.WriteFile(junk, []byte("nope nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ConvertFileToPCM16k(context.Background(), junk, Options{}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestDownmixAndResample(t *testing.T) {
	mono := downmixInterleaved([]float32{1, 0, 0.5, 0.5}, 2)
	if len(mono) != 2 || mono[0] != 0.5 || mono[1] != 0.5 {
		t.Fatalf("unexpected downmix %v", mono)
	}
	if out := Resample([]float32{1, 2}, 16000, 16000); len(out) != 2 {
		t.Fatalf("expected passthrough, got %v", out)
	}
}

func TestEncodeWAVMatchesFile(t *testing.T) {
	pcm := Float32ToPCM16([]float32{0.1, -0.2, 0.3, -0.4})

	mem, err := EncodeWAV(pcm, 16000)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "a.wav")
	if err := WriteWAV(path, pcm, 16000); err != nil {
		t.Fatal(err)
	}
	disk, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if string(mem) != string(disk) {
		t.Fatalf("in-memory wav differs from file: %d vs %d bytes", len(mem), len(disk))
	}
	if len(mem) != 44+len(pcm) {
		t.Fatalf("expected %d bytes, got %d", 44+len(pcm), len(mem))
	}
}
