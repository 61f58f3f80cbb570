package update

import (
	"context"
	"errors"
)

// Kind identifies the class of failure that ended an update check.
type Kind string

const (
	KindUnknown       Kind = "unknown"
	KindNetwork       Kind = "network"
	KindInsecureURL   Kind = "insecure_url"
	KindParse         Kind = "parse"
	KindFilesystem    Kind = "filesystem"
	KindVerification  Kind = "verification"
	KindCancelled     Kind = "cancelled"
	KindProcessLaunch Kind = "process_launch"
	KindConfig        Kind = "config"
)

// Error is a classified update failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Kind)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Sentinel errors returned by UpdateDownloadSink.
var (
	ErrNoDestination      = errors.New("no destination file set")
	ErrFilenameAlreadySet = errors.New("filename already set")
)

// KindOf walks the error chain and returns the first classified kind found.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err (or its unwrap chain) carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// classify turns any error escaping a check into a classified *Error.
// Cancellation takes precedence so that an aborted transfer never looks
// like a network failure.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if IsKind(err, KindCancelled) {
			return err
		}
		return newError(KindCancelled, "update check cancelled", err)
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return newError(KindNetwork, "update check failed", err)
}
