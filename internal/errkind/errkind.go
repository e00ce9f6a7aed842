// Package errkind wraps errors with the client-facing error kind tags the
// wire protocol requires: FileError, SyntaxError, DatabaseError, PlaybackError.
package errkind

import (
	"errors"
	"fmt"
)

// Kind is a client-facing error category. The wire reply's "reason" string
// always begins with one of these tags.
type Kind string

const (
	File     Kind = "FileError"
	Syntax   Kind = "SyntaxError"
	Database Kind = "DatabaseError"
	Playback Kind = "PlaybackError"
)

// wrapped pairs a Kind with an underlying error so callers can still use
// errors.Is/errors.As against the original cause.
type wrapped struct {
	kind Kind
	err  error
}

func (w *wrapped) Error() string {
	return fmt.Sprintf("%s: %s", w.kind, w.err.Error())
}

func (w *wrapped) Unwrap() error {
	return w.err
}

// Wrap annotates err with kind. Wrap(kind, nil) returns nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{kind: kind, err: err}
}

// Newf builds a new error already tagged with kind.
func Newf(kind Kind, format string, args ...any) error {
	return Wrap(kind, fmt.Errorf(format, args...))
}

// KindOf extracts the Kind from err, if any was attached via Wrap.
func KindOf(err error) (Kind, bool) {
	var w *wrapped
	if errors.As(err, &w) {
		return w.kind, true
	}
	return "", false
}
