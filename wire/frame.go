package wire

import (
	"encoding/binary"
	"fmt"
)

// FrameHeader is the common header prefixing every request and response
// frame (spec §4.1).
type FrameHeader struct {
	Size            uint32
	ProtocolVersion uint16
	RequestKind     uint16
}

// Frame is a decoded frame: its header plus the raw payload bytes that
// follow the header (Size bytes total including the header itself).
type Frame struct {
	Header  FrameHeader
	Payload []byte
}

// EncodeFrame serializes kind with payload into a full wire frame.
func EncodeFrame(kind uint16, payload []byte) []byte {
	size := uint32(FrameHeaderSize + len(payload))
	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:4], size)
	binary.LittleEndian.PutUint16(buf[4:6], ProtocolVersion)
	binary.LittleEndian.PutUint16(buf[6:8], kind)
	copy(buf[FrameHeaderSize:], payload)
	return buf
}

// FrameReader iterates the frames concatenated within a single inbound
// message, as required by spec §4.1 ("a single inbound message may
// concatenate multiple frames and must be iterated").
type FrameReader struct {
	buf []byte
}

// NewFrameReader wraps buf for iteration. buf is not copied; callers must
// not mutate it while iterating.
func NewFrameReader(buf []byte) *FrameReader {
	return &FrameReader{buf: buf}
}

// Next returns the next frame, or ok=false when the buffer is exhausted.
func (r *FrameReader) Next() (Frame, bool, error) {
	if len(r.buf) == 0 {
		return Frame{}, false, nil
	}
	if len(r.buf) < FrameHeaderSize {
		return Frame{}, false, fmt.Errorf("wire: truncated frame header (%d bytes left)", len(r.buf))
	}
	size := binary.LittleEndian.Uint32(r.buf[0:4])
	if size < FrameHeaderSize {
		return Frame{}, false, fmt.Errorf("wire: frame size %d smaller than header", size)
	}
	if int(size) > len(r.buf) {
		return Frame{}, false, fmt.Errorf("wire: frame size %d exceeds remaining buffer %d", size, len(r.buf))
	}
	f := Frame{
		Header: FrameHeader{
			Size:            size,
			ProtocolVersion: binary.LittleEndian.Uint16(r.buf[4:6]),
			RequestKind:     binary.LittleEndian.Uint16(r.buf[6:8]),
		},
		Payload: r.buf[FrameHeaderSize:size],
	}
	r.buf = r.buf[size:]
	return f, true, nil
}

// SubTypedPayload packs the inner sub-kind (1 byte) + 7 bytes padding used
// by RequestKindSubTyped requests, optionally followed by extra bytes
// (e.g. the u16 computor index carried by a transfer-status request).
func SubTypedPayload(subKind byte, extra []byte) []byte {
	buf := make([]byte, 8+len(extra))
	buf[0] = subKind
	copy(buf[8:], extra)
	return buf
}
