// Package envelope frames binary websocket messages.
//
// Wire layout (big-endian):
//
//	0..8   uint64 client timestamp, milliseconds
//	8..24  correlation id, 16 raw UUID bytes
//	24..   image payload, possibly empty
package envelope

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"

	platformerrors "pose-stream-server-go/internal/platform/errors"
)

const (
	timestampSize = 8
	idSize        = 16
	// HeaderSize is the fixed prefix preceding every payload.
	HeaderSize = timestampSize + idSize
)

// ErrMalformedEnvelope is returned for buffers shorter than HeaderSize.
var ErrMalformedEnvelope = errors.New("malformed frame envelope")

// Envelope is one decoded client frame.
type Envelope struct {
	Timestamp     uint64
	CorrelationID uuid.UUID
	// Payload aliases the decoded buffer.
	Payload []byte
}

// Meta is the header part of an envelope.
type Meta struct {
	Timestamp     uint64
	CorrelationID uuid.UUID
}

// Decode splits buf into header fields and payload without copying.
func Decode(buf []byte) (Envelope, error) {
	meta, ok := Peek(buf)
	if !ok {
		return Envelope{}, platformerrors.Wrap(
			platformerrors.KindEnvelope,
			"envelope.decode",
			fmt.Sprintf("need %d header bytes, got %d", HeaderSize, len(buf)),
			ErrMalformedEnvelope,
		)
	}
	return Envelope{
		Timestamp:     meta.Timestamp,
		CorrelationID: meta.CorrelationID,
		Payload:       buf[HeaderSize:],
	}, nil
}

// Peek parses only the header. ok is false when buf is too short.
func Peek(buf []byte) (Meta, bool) {
	if len(buf) < HeaderSize {
		return Meta{}, false
	}
	// FromBytes only fails on a length mismatch.
	id, _ := uuid.FromBytes(buf[timestampSize:HeaderSize])
	return Meta{
		Timestamp:     binary.BigEndian.Uint64(buf[:timestampSize]),
		CorrelationID: id,
	}, true
}

// Encode is the inverse of Decode.
func Encode(ts uint64, id uuid.UUID, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint64(buf[:timestampSize], ts)
	copy(buf[timestampSize:HeaderSize], id[:])
	copy(buf[HeaderSize:], payload)
	return buf
}
