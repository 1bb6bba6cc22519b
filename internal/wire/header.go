// Package wire implements the Airwave binary message framing used on every
// transport variant: a fixed 26-byte header followed by a type-specific
// payload.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// Type identifies the payload carried after a Header.
type Type uint16

const (
	TypeBase             Type = 0
	TypeCodecHeader      Type = 1
	TypeWireChunk        Type = 2
	TypeServerSettings   Type = 3
	TypeTime             Type = 4
	TypeHello            Type = 5
	TypeStreamTags       Type = 6 // legacy, decoded and ignored
	TypeClientInfo       Type = 7
	TypeClientSystemInfo Type = 8
)

func (t Type) String() string {
	switch t {
	case TypeBase:
		return "Base"
	case TypeCodecHeader:
		return "CodecHeader"
	case TypeWireChunk:
		return "WireChunk"
	case TypeServerSettings:
		return "ServerSettings"
	case TypeTime:
		return "Time"
	case TypeHello:
		return "Hello"
	case TypeStreamTags:
		return "StreamTags"
	case TypeClientInfo:
		return "ClientInfo"
	case TypeClientSystemInfo:
		return "ClientSystemInfo"
	default:
		return fmt.Sprintf("Type(%d)", uint16(t))
	}
}

// HeaderSize is the fixed wire size of a Header in bytes.
const HeaderSize = 26

// MaxRequestID is the wrap boundary for per-sender request ids (§6.4).
const MaxRequestID = 10000

// TV is a (seconds, microseconds) timestamp as carried on the wire,
// interpreted in the sender's monotonic clock domain.
type TV struct {
	Sec  int32
	USec int32
}

// TVFromDuration converts a duration since the caller's own clock epoch
// into a TV, truncated to whole microseconds.
func TVFromDuration(d time.Duration) TV {
	return TV{
		Sec:  int32(d / time.Second),
		USec: int32((d % time.Second) / time.Microsecond),
	}
}

// Duration converts the TV back into a time.Duration offset from its epoch.
func (tv TV) Duration() time.Duration {
	return time.Duration(tv.Sec)*time.Second + time.Duration(tv.USec)*time.Microsecond
}

// Sub returns tv - other as a signed duration.
func (tv TV) Sub(other TV) time.Duration {
	return tv.Duration() - other.Duration()
}

// Header is the fixed 26-byte prefix of every wire message.
type Header struct {
	Type      Type
	ID        uint16
	RefersTo  uint16
	Sent      TV
	Received  TV
	Size      uint32 // payload length in bytes, excluding the header
}

// ErrBadHeader is returned when fewer than HeaderSize bytes are available.
var ErrBadHeader = errors.New("wire: bad header")

// ErrTruncated is returned when the payload is shorter than Header.Size.
var ErrTruncated = errors.New("wire: truncated payload")

// ErrRequestTimeout is surfaced when a pending request (§3 "Pending
// requests") expires before a matching reply arrives.
var ErrRequestTimeout = errors.New("wire: request timed out")

// ErrRequestCancelled is surfaced to any pending request still
// outstanding when the owning session shuts down.
var ErrRequestCancelled = errors.New("wire: request cancelled")

// EncodeHeader writes h into a HeaderSize-byte buffer.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(h.Type))
	binary.LittleEndian.PutUint16(buf[2:4], h.ID)
	binary.LittleEndian.PutUint16(buf[4:6], h.RefersTo)
	binary.LittleEndian.PutUint32(buf[6:10], uint32(h.Sent.Sec))
	binary.LittleEndian.PutUint32(buf[10:14], uint32(h.Sent.USec))
	binary.LittleEndian.PutUint32(buf[14:18], uint32(h.Received.Sec))
	binary.LittleEndian.PutUint32(buf[18:22], uint32(h.Received.USec))
	binary.LittleEndian.PutUint32(buf[22:26], h.Size)
	return buf
}

// DecodeHeader parses the fixed header from buf, which must be at least
// HeaderSize bytes.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrBadHeader
	}
	return Header{
		Type:     Type(binary.LittleEndian.Uint16(buf[0:2])),
		ID:       binary.LittleEndian.Uint16(buf[2:4]),
		RefersTo: binary.LittleEndian.Uint16(buf[4:6]),
		Sent: TV{
			Sec:  int32(binary.LittleEndian.Uint32(buf[6:10])),
			USec: int32(binary.LittleEndian.Uint32(buf[10:14])),
		},
		Received: TV{
			Sec:  int32(binary.LittleEndian.Uint32(buf[14:18])),
			USec: int32(binary.LittleEndian.Uint32(buf[18:22])),
		},
		Size: binary.LittleEndian.Uint32(buf[22:26]),
	}, nil
}

// Message is a decoded wire message: header plus the raw payload bytes.
// Higher layers (internal/client and internal/server dispatch) interpret
// Payload per Type.
type Message struct {
	Header  Header
	Payload []byte
}

// Encode serializes a full message (header + payload) into a single buffer.
func Encode(h Header, payload []byte) []byte {
	h.Size = uint32(len(payload))
	buf := make([]byte, 0, HeaderSize+len(payload))
	buf = append(buf, EncodeHeader(h)...)
	buf = append(buf, payload...)
	return buf
}

// ReadMessage reads exactly one framed message from r. It is the
// stream-oriented counterpart to Encode, used by transports whose
// underlying read does not already deliver frame boundaries (TCP, TLS).
func ReadMessage(r io.Reader) (Message, error) {
	hdrBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, hdrBuf); err != nil {
		if err == io.EOF {
			return Message{}, err
		}
		return Message{}, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	h, err := DecodeHeader(hdrBuf)
	if err != nil {
		return Message{}, err
	}
	payload := make([]byte, h.Size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return Message{Header: h, Payload: payload}, nil
}

// WriteMessage writes a full framed message to w.
func WriteMessage(w io.Writer, h Header, payload []byte) error {
	_, err := w.Write(Encode(h, payload))
	return err
}

// PutString appends a length-prefixed UTF-8 string to buf per §6.1 string
// encoding (u32 little-endian length, then raw bytes, no terminator).
func PutString(buf []byte, s string) []byte {
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(s)))
	buf = append(buf, lenBuf...)
	buf = append(buf, s...)
	return buf
}

// GetString reads a length-prefixed string from buf starting at offset off,
// returning the string and the offset of the next field.
func GetString(buf []byte, off int) (string, int, error) {
	if off+4 > len(buf) {
		return "", off, ErrTruncated
	}
	n := int(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	if off+n > len(buf) {
		return "", off, ErrTruncated
	}
	return string(buf[off : off+n]), off + n, nil
}
