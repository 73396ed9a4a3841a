package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/momentics/hioload-net/api"
)

func TestPutHeaderBigEndian(t *testing.T) {
	tests := []struct {
		w    HeaderWidth
		n    int
		want []byte
	}{
		{Width1, 0xAB, []byte{0xAB}},
		{Width2, 0x0102, []byte{0x01, 0x02}},
		{Width4, 0x01020304, []byte{0x01, 0x02, 0x03, 0x04}},
	}
	for _, tt := range tests {
		t.Run(tt.w.String(), func(t *testing.T) {
			dst := make([]byte, int(tt.w))
			if err := PutHeader(dst, tt.w, tt.n); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(dst, tt.want) {
				t.Errorf("got % x, want % x", dst, tt.want)
			}
			if got := BodyLen(dst, tt.w); got != tt.n {
				t.Errorf("BodyLen = %d, want %d", got, tt.n)
			}
		})
	}
}

func TestPutHeaderErrors(t *testing.T) {
	if err := PutHeader(make([]byte, 2), Width2, 65536); !errors.Is(err, api.ErrMessageTooLarge) {
		t.Errorf("overflow: got %v", err)
	}
	if err := PutHeader(make([]byte, 1), Width2, 1); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("short dst: got %v", err)
	}
	if err := PutHeader(make([]byte, 8), HeaderWidth(8), 1); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("bad width: got %v", err)
	}
}

func TestEncodeFramePing(t *testing.T) {
	got, err := EncodeFrame(DefaultHeaderWidth, []byte("PING"))
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x00, 0x04, 'P', 'I', 'N', 'G'}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, w := range []HeaderWidth{Width1, Width2, Width4} {
		bodies := [][]byte{nil, []byte("a"), bytes.Repeat([]byte("xy"), 100)}
		f := mustFramer(t, w, 0)
		var c collector
		for _, b := range bodies {
			if len(b) > w.MaxBodyLen() {
				continue
			}
			wire, err := EncodeFrame(w, b)
			if err != nil {
				t.Fatal(err)
			}
			before := len(c.frames)
			feed(t, f, &c, wire)
			if len(c.frames) != before+1 || !bytes.Equal(c.frames[before], b) {
				t.Errorf("%s: body of %d bytes not round-tripped", w, len(b))
			}
		}
	}
}

func TestMaxBodyLen(t *testing.T) {
	if Width1.MaxBodyLen() != 255 || Width2.MaxBodyLen() != 65535 {
		t.Error("unexpected small-width limits")
	}
	if Width4.MaxBodyLen() <= 65535 {
		t.Error("4-byte limit too small")
	}
	if Width4.DefaultMaxBody() != MaxFramePayload {
		t.Errorf("DefaultMaxBody(4) = %d", Width4.DefaultMaxBody())
	}
	if HeaderWidth(3).Valid() || HeaderWidth(3).MaxBodyLen() != 0 {
		t.Error("width 3 must be invalid")
	}
}
