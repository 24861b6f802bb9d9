package upload

import (
	"errors"
	"fmt"
	"time"

	"clipper/internal/services"
)

// ErrorKind classifies an upload failure.
type ErrorKind string

const (
	KindFileMissing ErrorKind = "FileMissing"
	KindTooLarge    ErrorKind = "TooLarge"
	KindNetwork     ErrorKind = "Network"
	KindServer      ErrorKind = "Server"
	KindBadResponse ErrorKind = "BadResponse"
	KindCancelled   ErrorKind = "Cancelled"
)

// Error is a typed upload failure.
type Error struct {
	Kind    ErrorKind
	Service Service
	// Status is the HTTP status for KindServer.
	Status  int
	Message string
	Err     error
	// retryAfter carries the server's Retry-After hint.
	retryAfter time.Duration
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s upload: %s", e.Service, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is maps kinds onto the services sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case services.ErrTransient:
		return e.Kind == KindNetwork || e.Kind == KindServer
	case services.ErrValidation:
		return e.Kind == KindFileMissing || e.Kind == KindTooLarge
	case services.ErrExternalTool:
		return e.Kind == KindBadResponse
	}
	return false
}

// KindOf extracts the ErrorKind from err, or "" when err is not an upload
// error.
func KindOf(err error) ErrorKind {
	var uerr *Error
	if errors.As(err, &uerr) {
		return uerr.Kind
	}
	return ""
}
