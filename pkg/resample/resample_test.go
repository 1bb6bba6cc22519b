package resample

import "testing"

func TestNoOpSameRate(t *testing.T) {
	r := New(48000, 48000, 2)
	if !r.NoOp() {
		t.Error("expected NoOp for identical rates")
	}
}

func TestResampleUpsample(t *testing.T) {
	r := New(24000, 48000, 1)
	input := []int32{0, 1000, 2000, 3000}
	output := make([]int32, 8)

	n := r.Resample(input, output)
	if n == 0 {
		t.Fatal("expected some output samples")
	}
	// first output sample should equal first input sample
	if output[0] != 0 {
		t.Errorf("expected first sample 0, got %d", output[0])
	}
}

func TestResampleDownsample(t *testing.T) {
	r := New(48000, 24000, 1)
	input := make([]int32, 100)
	for i := range input {
		input[i] = int32(i)
	}
	output := make([]int32, 50)

	n := r.Resample(input, output)
	if n == 0 || n > 50 {
		t.Fatalf("unexpected output length %d", n)
	}
}

func TestOutputSamplesNeeded(t *testing.T) {
	r := New(48000, 48000, 2)
	if got := r.OutputSamplesNeeded(100); got != 100 {
		t.Errorf("expected 100, got %d", got)
	}
}

func TestResampleEmptyInput(t *testing.T) {
	r := New(48000, 44100, 2)
	output := make([]int32, 10)
	if n := r.Resample(nil, output); n != 0 {
		t.Errorf("expected 0 for empty input, got %d", n)
	}
}
