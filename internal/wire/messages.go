package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Hello is sent by a client immediately after connecting (§3, §6.3).
type Hello struct {
	MAC                       string `json:"MAC"`
	HostName                  string `json:"HostName"`
	Version                   string `json:"Version"`
	OS                        string `json:"OS"`
	Arch                      string `json:"Arch"`
	Instance                  int    `json:"Instance"`
	ID                        string `json:"ID"`
	SnapStreamProtocolVersion int    `json:"SnapStreamProtocolVersion"`
	Username                  string `json:"Username,omitempty"`
	Password                  string `json:"Password,omitempty"`
}

// UniqueID returns ID, suffixed with "#<instance>" when Instance != 1, per
// the original_source unique-id convention (stable id across reconnects
// from the same host running multiple client instances).
func (h Hello) UniqueID() string {
	if h.Instance == 1 {
		return h.ID
	}
	return fmt.Sprintf("%s#%d", h.ID, h.Instance)
}

// ServerSettings is pushed by the server to set per-client playback
// parameters (§3).
type ServerSettings struct {
	BufferMs int  `json:"bufferMs"`
	Latency  int  `json:"latency"`
	Volume   int  `json:"volume"`
	Muted    bool `json:"muted"`
}

// ClientInfo is sent by a client whenever local volume/mute changes.
type ClientInfo struct {
	Volume int  `json:"volume"`
	Muted  bool `json:"muted"`
}

// EncodeJSONPayload wraps a value as a single-field JSON-document payload,
// per §6.1: "a single string field with the JSON document as UTF-8".
func EncodeJSONPayload(v interface{}) ([]byte, error) {
	doc, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return PutString(nil, string(doc)), nil
}

// DecodeJSONPayload unwraps a single-field JSON-document payload into v.
func DecodeJSONPayload(payload []byte, v interface{}) error {
	doc, _, err := GetString(payload, 0)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(doc), v)
}

// CodecHeader describes the codec-specific bytes needed to initialize a
// decoder, sent once per stream assignment (§3, §4.4).
type CodecHeader struct {
	CodecName string
	Payload   []byte
}

// Encode serializes a CodecHeader payload: codec_name string, then
// payload_size u32 and payload bytes (§6.1).
func (c CodecHeader) Encode() []byte {
	buf := PutString(nil, c.CodecName)
	sizeBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(sizeBuf, uint32(len(c.Payload)))
	buf = append(buf, sizeBuf...)
	buf = append(buf, c.Payload...)
	return buf
}

// DecodeCodecHeader parses a CodecHeader payload.
func DecodeCodecHeader(buf []byte) (CodecHeader, error) {
	name, off, err := GetString(buf, 0)
	if err != nil {
		return CodecHeader{}, err
	}
	if off+4 > len(buf) {
		return CodecHeader{}, ErrTruncated
	}
	size := int(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	if off+size > len(buf) {
		return CodecHeader{}, ErrTruncated
	}
	payload := make([]byte, size)
	copy(payload, buf[off:off+size])
	return CodecHeader{CodecName: name, Payload: payload}, nil
}

// PcmChunkWire is the wire representation of an audio chunk: a recording
// timestamp plus the raw encoded payload (§3, §6.1). The frame-aware
// cursor and SampleFormat live in pkg/audio.Chunk, constructed from this
// after decode.
type PcmChunkWire struct {
	Timestamp TV
	Payload   []byte
}

// Encode serializes a PcmChunk payload: timestamp.sec, timestamp.usec,
// payload_size, bytes (§6.1).
func (c PcmChunkWire) Encode() []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(c.Timestamp.Sec))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(c.Timestamp.USec))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(c.Payload)))
	buf = append(buf, c.Payload...)
	return buf
}

// DecodePcmChunkWire parses a PcmChunk payload.
func DecodePcmChunkWire(buf []byte) (PcmChunkWire, error) {
	if len(buf) < 12 {
		return PcmChunkWire{}, ErrTruncated
	}
	sec := int32(binary.LittleEndian.Uint32(buf[0:4]))
	usec := int32(binary.LittleEndian.Uint32(buf[4:8]))
	size := int(binary.LittleEndian.Uint32(buf[8:12]))
	if 12+size > len(buf) {
		return PcmChunkWire{}, ErrTruncated
	}
	payload := make([]byte, size)
	copy(payload, buf[12:12+size])
	return PcmChunkWire{Timestamp: TV{Sec: sec, USec: usec}, Payload: payload}, nil
}

// TimeMessage carries the NTP-style round-trip exchange payload (§4.3). It
// has no dedicated binary payload layout in the original design beyond the
// header's own Sent/Received/RefersTo fields — Latency is derived by the
// time provider from those, not serialized separately. Nothing in this
// module uses the type: internal/client passes the header's Sent and
// Received timestamps to internal/timesync directly.
type TimeMessage struct {
	Latency TV
}
