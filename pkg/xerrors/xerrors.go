package xerrors

import (
	"context"
	"errors"
	iofs "io/fs"
	"os"
)

// Kind classifies xgsum errors.
type Kind int

const (
	KindInvalid Kind = iota
	KindOpen
	KindRead
	KindMetadata
	KindCanceled
	KindInternal
)

// Error wraps an underlying error with additional metadata.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := e.Kind.String()
	if e.Op != "" {
		base = e.Op + ": " + base
	}
	if e.Path != "" {
		base += " " + e.Path
	}
	if e.Err != nil {
		return base + ": " + e.Err.Error()
	}
	return base
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "open failed"
	case KindRead:
		return "read failed"
	case KindMetadata:
		return "metadata unavailable"
	case KindCanceled:
		return "canceled"
	case KindInternal:
		return "internal error"
	default:
		return "invalid"
	}
}

// Wrap annotates err with the given metadata. If err is nil, Wrap returns nil.
func Wrap(kind Kind, op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// E creates a new error with the provided metadata (no underlying error).
func E(kind Kind, op, path string) error {
	return &Error{Kind: kind, Op: op, Path: path}
}

// KindOf extracts the Kind from err, walking wrapped errors as needed.
func KindOf(err error) Kind {
	if err == nil {
		return KindInvalid
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, iofs.ErrNotExist),
		errors.Is(err, os.ErrNotExist),
		errors.Is(err, iofs.ErrPermission):
		return KindOpen
	case errors.Is(err, iofs.ErrInvalid):
		return KindInvalid
	default:
		return KindInternal
	}
}

// IsOpen reports whether err is an open failure.
func IsOpen(err error) bool { return err != nil && KindOf(err) == KindOpen }

// IsRead reports whether err is a mid-stream read failure.
func IsRead(err error) bool { return err != nil && KindOf(err) == KindRead }
