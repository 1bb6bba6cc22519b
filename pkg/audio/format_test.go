package audio

import "testing"

func TestFrameSize(t *testing.T) {
	cases := []struct {
		format   SampleFormat
		expected int
	}{
		{SampleFormat{Rate: 48000, Bits: 16, Channels: 2}, 4},
		{SampleFormat{Rate: 44100, Bits: 24, Channels: 2}, 6},
		{SampleFormat{Rate: 48000, Bits: 16, Channels: 1}, 2},
	}
	for _, tc := range cases {
		if got := tc.format.FrameSize(); got != tc.expected {
			t.Errorf("FrameSize(%+v) = %d, want %d", tc.format, got, tc.expected)
		}
	}
}

func TestInitialized(t *testing.T) {
	if (SampleFormat{}).Initialized() {
		t.Error("zero-value format should not be initialized")
	}
	if !DefaultSampleFormat.Initialized() {
		t.Error("default format should be initialized")
	}
}

func TestSampleInt16RoundTrip(t *testing.T) {
	for _, s := range []int16{0, 1, -1, 32767, -32768} {
		wide := SampleFromInt16(s)
		if back := SampleToInt16(wide); back != s {
			t.Errorf("round trip failed: %d -> %d -> %d", s, wide, back)
		}
	}
}

func TestSample24BitRoundTrip(t *testing.T) {
	for _, s := range []int32{0, 1, -1, Max24Bit, Min24Bit} {
		packed := SampleTo24Bit(s)
		if back := SampleFrom24Bit(packed); back != s {
			t.Errorf("round trip failed: %d -> %v -> %d", s, packed, back)
		}
	}
}
