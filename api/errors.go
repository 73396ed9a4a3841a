// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-net.

package api

import (
	"errors"
	"fmt"
)

// Error taxonomy of the connection core. Only ErrStartup is fatal to a
// service; every other failure is contained to one connection or one accept.
var (
	ErrStartup           = errors.New("startup failure")
	ErrTransientAccept   = errors.New("transient accept error")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrConnectionIO      = errors.New("connection i/o error")
	ErrProtocolViolation = errors.New("protocol violation")
)

// Common errors used across the library.
var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrMessageTooLarge  = errors.New("message too large")
	ErrSendQueueFull    = errors.New("send queue is full")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrNotRunning       = errors.New("service is not running")
	ErrAlreadyRunning   = errors.New("service already running")
)

// ErrorKind classifies failures for logging and metric labels.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindStartup
	KindTransientAccept
	KindResourceExhausted
	KindConnectionIO
	KindProtocolViolation
)

func (k ErrorKind) String() string {
	switch k {
	case KindStartup:
		return "startup"
	case KindTransientAccept:
		return "transient_accept"
	case KindResourceExhausted:
		return "resource_exhausted"
	case KindConnectionIO:
		return "connection_io"
	case KindProtocolViolation:
		return "protocol_violation"
	default:
		return "unknown"
	}
}

// Sentinel returns the sentinel error matching the kind, or nil for KindUnknown.
func (k ErrorKind) Sentinel() error {
	switch k {
	case KindStartup:
		return ErrStartup
	case KindTransientAccept:
		return ErrTransientAccept
	case KindResourceExhausted:
		return ErrResourceExhausted
	case KindConnectionIO:
		return ErrConnectionIO
	case KindProtocolViolation:
		return ErrProtocolViolation
	default:
		return nil
	}
}

// Error represents a structured error with kind, failing operation and context.
// It matches both its kind sentinel and the wrapped cause under errors.Is.
type Error struct {
	Kind    ErrorKind
	Op      string
	Err     error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.Sentinel()
	return s != nil && target == s
}

// NewError creates a new structured error.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{
		Kind: kind,
		Op:   op,
		Err:  err,
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Classify maps any error onto its ErrorKind. A nil error is KindUnknown.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != KindUnknown {
		return e.Kind
	}
	for _, k := range []ErrorKind{
		KindStartup,
		KindTransientAccept,
		KindResourceExhausted,
		KindProtocolViolation,
		KindConnectionIO,
	} {
		if errors.Is(err, k.Sentinel()) {
			return k
		}
	}
	return KindUnknown
}
