package transaction

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Wire layout, fixed and version-free. All integers big-endian:
//
//	uint16 signature length | signature bytes
//	uint16 sender length    | sender bytes
//	uint64 timestamp
//	uint32 payload length   | payload bytes
//
// The format is not self-describing; the decoder must know this exact order.

var (
	// ErrTruncated reports bytes shorter than the declared field lengths.
	ErrTruncated = errors.New("transaction bytes truncated")
	// ErrMalformed reports structurally invalid bytes, such as trailing data.
	ErrMalformed = errors.New("malformed transaction bytes")
	// ErrUnencodable reports a record whose fields exceed the wire limits.
	ErrUnencodable = errors.New("record not representable on the wire")
)

// Encode serializes a record into the compact binary wire format.
func Encode(r *Record) ([]byte, error) {
	if len(r.Signature) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: signature is %d bytes", ErrUnencodable, len(r.Signature))
	}
	if len(r.Sender) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: sender is %d bytes", ErrUnencodable, len(r.Sender))
	}
	if len(r.Payload) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: payload is %d bytes", ErrUnencodable, len(r.Payload))
	}

	buf := make([]byte, 0, 2+len(r.Signature)+2+len(r.Sender)+8+4+len(r.Payload))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(r.Signature)))
	buf = append(buf, r.Signature...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(r.Sender)))
	buf = append(buf, r.Sender...)
	buf = binary.BigEndian.AppendUint64(buf, r.Timestamp)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(r.Payload)))
	buf = append(buf, r.Payload...)
	return buf, nil
}

// Decode is the exact inverse of Encode for all valid records. It fails on
// truncated input, length prefixes pointing past the end, and trailing bytes.
func Decode(data []byte) (*Record, error) {
	rd := wireReader{buf: data}

	sig, err := rd.lengthPrefixed16()
	if err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	sender, err := rd.lengthPrefixed16()
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	ts, err := rd.uint64()
	if err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}
	payload, err := rd.lengthPrefixed32()
	if err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	if rd.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, rd.remaining())
	}

	return &Record{
		Signature: string(sig),
		Sender:    string(sender),
		Timestamp: ts,
		Payload:   payload,
	}, nil
}

type wireReader struct {
	buf []byte
	off int
}

func (r *wireReader) remaining() int { return len(r.buf) - r.off }

func (r *wireReader) take(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, n, r.remaining())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *wireReader) uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *wireReader) lengthPrefixed16() ([]byte, error) {
	b, err := r.take(2)
	if err != nil {
		return nil, err
	}
	return r.takeCopy(int(binary.BigEndian.Uint16(b)))
}

func (r *wireReader) lengthPrefixed32() ([]byte, error) {
	b, err := r.take(4)
	if err != nil {
		return nil, err
	}
	return r.takeCopy(int(binary.BigEndian.Uint32(b)))
}

func (r *wireReader) takeCopy(n int) ([]byte, error) {
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}
