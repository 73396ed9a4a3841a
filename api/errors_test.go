package api_test

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/momentics/hioload-net/api"
)

func TestErrorMatchesKindAndCause(t *testing.T) {
	err := api.NewError(api.KindConnectionIO, "receive", io.EOF)

	if !errors.Is(err, api.ErrConnectionIO) {
		t.Error("expected error to match ErrConnectionIO")
	}
	if !errors.Is(err, io.EOF) {
		t.Error("expected error to match wrapped io.EOF")
	}
	if errors.Is(err, api.ErrProtocolViolation) {
		t.Error("error must not match an unrelated kind")
	}
	if got := err.Error(); got != "receive: connection_io: EOF" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestErrorWithContext(t *testing.T) {
	err := api.NewError(api.KindStartup, "listen", io.ErrUnexpectedEOF).WithContext("addr", ":1")
	if !strings.Contains(err.Error(), "addr") {
		t.Errorf("context missing from %q", err.Error())
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want api.ErrorKind
	}{
		{"nil", nil, api.KindUnknown},
		{"plain", io.EOF, api.KindUnknown},
		{"structured", api.NewError(api.KindResourceExhausted, "acquire", nil), api.KindResourceExhausted},
		{"wrapped sentinel", fmt.Errorf("frame: %w", api.ErrProtocolViolation), api.KindProtocolViolation},
		{"nested structured", fmt.Errorf("outer: %w", api.NewError(api.KindStartup, "bind", io.EOF)), api.KindStartup},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := api.Classify(tc.err); got != tc.want {
				t.Errorf("Classify() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHandlerFuncsSkipsNil(t *testing.T) {
	var frames int
	h := api.HandlerFuncs{Frame: func(api.Conn, []byte) { frames++ }}
	h.OnNewConnection(nil)
	h.OnFrame(nil, []byte("x"))
	h.OnDisconnect(nil, nil)
	if frames != 1 {
		t.Errorf("expected one frame callback, got %d", frames)
	}
}
