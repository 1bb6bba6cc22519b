package wire

import "testing"

func TestHelloUniqueID(t *testing.T) {
	cases := []struct {
		name     string
		hello    Hello
		expected string
	}{
		{"single instance", Hello{ID: "00:11:22:33:44:55", Instance: 1}, "00:11:22:33:44:55"},
		{"second instance", Hello{ID: "00:11:22:33:44:55", Instance: 2}, "00:11:22:33:44:55#2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.hello.UniqueID(); got != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestServerSettingsJSONRoundTrip(t *testing.T) {
	settings := ServerSettings{BufferMs: 1000, Latency: 0, Volume: 100, Muted: false}
	payload, err := EncodeJSONPayload(settings)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	var decoded ServerSettings
	if err := DecodeJSONPayload(payload, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != settings {
		t.Errorf("expected %+v, got %+v", settings, decoded)
	}
}

func TestCodecHeaderRoundTrip(t *testing.T) {
	ch := CodecHeader{CodecName: "opus", Payload: []byte{0xde, 0xad, 0xbe, 0xef}}
	buf := ch.Encode()
	decoded, err := DecodeCodecHeader(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.CodecName != ch.CodecName {
		t.Errorf("expected codec %q, got %q", ch.CodecName, decoded.CodecName)
	}
	if string(decoded.Payload) != string(ch.Payload) {
		t.Errorf("expected payload %v, got %v", ch.Payload, decoded.Payload)
	}
}

func TestPcmChunkWireRoundTrip(t *testing.T) {
	chunk := PcmChunkWire{Timestamp: TV{Sec: 5, USec: 123}, Payload: []byte{1, 2, 3, 4}}
	buf := chunk.Encode()
	decoded, err := DecodePcmChunkWire(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Timestamp != chunk.Timestamp {
		t.Errorf("expected timestamp %+v, got %+v", chunk.Timestamp, decoded.Timestamp)
	}
	if string(decoded.Payload) != string(chunk.Payload) {
		t.Errorf("expected payload %v, got %v", chunk.Payload, decoded.Payload)
	}
}

func TestDecodePcmChunkWireTruncated(t *testing.T) {
	_, err := DecodePcmChunkWire([]byte{1, 2, 3})
	if err != ErrTruncated {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
}
