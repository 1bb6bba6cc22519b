package server

import (
	"io"
	"os"
	"testing"

	"github.com/airwave-audio/airwave-go/pkg/audio"
)

func TestNewFileSourceEmptyPathYieldsTone(t *testing.T) {
	format := audio.SampleFormat{Rate: 44100, Bits: 16, Channels: 2}
	src, err := NewFileSource("", format)
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}
	if _, ok := src.(*ToneSource); !ok {
		t.Fatalf("expected *ToneSource, got %T", src)
	}
}

func TestNewFileSourceMissingFile(t *testing.T) {
	format := audio.SampleFormat{Rate: 44100, Bits: 16, Channels: 2}
	if _, err := NewFileSource("/nonexistent/track.mp3", format); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestNewFileSourceUnsupportedExtension(t *testing.T) {
	format := audio.SampleFormat{Rate: 44100, Bits: 16, Channels: 2}
	dir := t.TempDir()
	path := dir + "/track.wav"
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("os.Create: %v", err)
	}
	f.Close()
	if _, err := NewFileSource(path, format); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

// fakeSource produces a constant ramp so ResampledSource can be
// exercised without decoding a real file.
type fakeSource struct {
	format audio.SampleFormat
	next   int32
}

func (f *fakeSource) Read(samples []int32) (int, error) {
	for i := range samples {
		samples[i] = f.next
		f.next++
	}
	return len(samples), nil
}

func (f *fakeSource) Format() audio.SampleFormat { return f.format }
func (f *fakeSource) Close() error               { return nil }

func TestResampledSourceChangesRate(t *testing.T) {
	inner := &fakeSource{format: audio.SampleFormat{Rate: 44100, Bits: 16, Channels: 2}}
	rs := NewResampledSource(inner, 48000)

	if rs.Format().Rate != 48000 {
		t.Fatalf("expected resampled rate 48000, got %d", rs.Format().Rate)
	}
	if rs.Format().Channels != 2 {
		t.Fatalf("expected channels preserved, got %d", rs.Format().Channels)
	}

	out := make([]int32, 200)
	n, err := rs.Read(out)
	if err != nil && err != io.EOF {
		t.Fatalf("Read: %v", err)
	}
	if n == 0 {
		t.Fatal("expected resampled output")
	}
}
