// Package gestureframe implements the binary frame layout used on the
// gesture frame-ingestion path:
//
//	[4-byte id length][4-byte timestamp][4-byte payload length][id bytes][payload bytes]
//
// all little-endian. A binary layout keeps per-frame overhead at streaming
// rates far below a base64 text encoding.
package gestureframe

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HeaderSize is the fixed header length in bytes.
	HeaderSize = 12

	// MaxIDLength bounds the frame id field.
	MaxIDLength = 256
	// MaxPayloadLength bounds the image payload field.
	MaxPayloadLength = 8 << 20
)

var (
	errEmptyID      = errors.New("gestureframe: empty frame id")
	errShortFrame   = errors.New("gestureframe: frame shorter than header")
	errTruncated    = errors.New("gestureframe: frame truncated")
	errOversizedID  = fmt.Errorf("gestureframe: id exceeds %d bytes", MaxIDLength)
	errOversizedPay = fmt.Errorf("gestureframe: payload exceeds %d bytes", MaxPayloadLength)
)

// Encode packs one outgoing frame. Oversized fields are rejected rather than
// silently truncated.
func Encode(frameID string, timestampMs uint32, payload []byte) ([]byte, error) {
	if len(frameID) == 0 {
		return nil, errEmptyID
	}
	if len(frameID) > MaxIDLength {
		return nil, errOversizedID
	}
	if len(payload) > MaxPayloadLength {
		return nil, errOversizedPay
	}

	frame := make([]byte, HeaderSize+len(frameID)+len(payload))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(len(frameID)))
	binary.LittleEndian.PutUint32(frame[4:8], timestampMs)
	binary.LittleEndian.PutUint32(frame[8:12], uint32(len(payload)))
	copy(frame[HeaderSize:], frameID)
	copy(frame[HeaderSize+len(frameID):], payload)
	return frame, nil
}

// Decode unpacks one frame, validating every header field against the actual
// frame length.
func Decode(frame []byte) (frameID string, timestampMs uint32, payload []byte, err error) {
	if len(frame) < HeaderSize {
		return "", 0, nil, errShortFrame
	}

	idLen := binary.LittleEndian.Uint32(frame[0:4])
	timestampMs = binary.LittleEndian.Uint32(frame[4:8])
	payloadLen := binary.LittleEndian.Uint32(frame[8:12])

	if idLen == 0 {
		return "", 0, nil, errEmptyID
	}
	if idLen > MaxIDLength {
		return "", 0, nil, errOversizedID
	}
	if payloadLen > MaxPayloadLength {
		return "", 0, nil, errOversizedPay
	}
	total := HeaderSize + int(idLen) + int(payloadLen)
	if len(frame) < total {
		return "", 0, nil, errTruncated
	}

	frameID = string(frame[HeaderSize : HeaderSize+idLen])
	payload = frame[HeaderSize+idLen : total]
	return frameID, timestampMs, payload, nil
}
