// File: protocol/frame_codec.go
// Package protocol implements the length-prefixed wire format.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Frame layout: [header: width-byte unsigned big-endian body length][body].
// The same byte order is used by PutHeader and by the Framer on decode.

package protocol

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/momentics/hioload-net/api"
)

// MaxFramePayload caps the body size accepted by default regardless of header
// width, so a 4-byte header does not imply 4 GiB working buffers.
const MaxFramePayload = 1 << 20 // 1 MiB

// HeaderWidth is the fixed size in bytes of the length prefix. It is a
// deployment constant shared by both peers.
type HeaderWidth int

const (
	Width1 HeaderWidth = 1
	Width2 HeaderWidth = 2
	Width4 HeaderWidth = 4

	DefaultHeaderWidth = Width2
)

// Valid reports whether w is a supported width.
func (w HeaderWidth) Valid() bool {
	return w == Width1 || w == Width2 || w == Width4
}

// MaxBodyLen is the largest body length the header can encode.
func (w HeaderWidth) MaxBodyLen() int {
	switch w {
	case Width1:
		return math.MaxUint8
	case Width2:
		return math.MaxUint16
	case Width4:
		// Kept below MaxInt on 32-bit platforms.
		limit := uint64(math.MaxUint32)
		if limit > uint64(math.MaxInt) {
			return math.MaxInt
		}
		return int(limit)
	}
	return 0
}

// DefaultMaxBody is the body limit used when none is configured.
func (w HeaderWidth) DefaultMaxBody() int {
	return min(w.MaxBodyLen(), MaxFramePayload)
}

func (w HeaderWidth) String() string {
	return fmt.Sprintf("%d-byte", int(w))
}

// PutHeader writes body length n into dst[:w].
func PutHeader(dst []byte, w HeaderWidth, n int) error {
	if !w.Valid() {
		return fmt.Errorf("put header: width %d: %w", int(w), api.ErrInvalidArgument)
	}
	if len(dst) < int(w) {
		return fmt.Errorf("put header: short buffer %d < %d: %w", len(dst), int(w), api.ErrInvalidArgument)
	}
	if n < 0 || n > w.MaxBodyLen() {
		return fmt.Errorf("put header: length %d exceeds %s header: %w", n, w, api.ErrMessageTooLarge)
	}
	switch w {
	case Width1:
		dst[0] = byte(n)
	case Width2:
		binary.BigEndian.PutUint16(dst, uint16(n))
	case Width4:
		binary.BigEndian.PutUint32(dst, uint32(n))
	}
	return nil
}

// BodyLen decodes the body length from hdr[:w]. hdr must hold w bytes.
func BodyLen(hdr []byte, w HeaderWidth) int {
	switch w {
	case Width1:
		return int(hdr[0])
	case Width2:
		return int(binary.BigEndian.Uint16(hdr))
	case Width4:
		v := binary.BigEndian.Uint32(hdr)
		if uint64(v) > uint64(math.MaxInt) {
			return math.MaxInt
		}
		return int(v)
	}
	return 0
}

// AppendFrame appends header and body to dst.
func AppendFrame(dst []byte, w HeaderWidth, body []byte) ([]byte, error) {
	var hdr [4]byte
	if err := PutHeader(hdr[:], w, len(body)); err != nil {
		return dst, err
	}
	dst = append(dst, hdr[:w]...)
	return append(dst, body...), nil
}

// EncodeFrame returns a freshly allocated frame for body.
func EncodeFrame(w HeaderWidth, body []byte) ([]byte, error) {
	return AppendFrame(make([]byte, 0, int(w)+len(body)), w, body)
}
