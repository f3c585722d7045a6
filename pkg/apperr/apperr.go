// Package apperr defines the failure classes shared across patternsync
package apperr

import (
	"errors"
	"net/http"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// Failure kinds beyond the stock ftag set
const (
	SyncFailed  ftag.Kind = "SYNC_FAILED"
	RuntimePush ftag.Kind = "RUNTIME_PUSH"
	Decode      ftag.Kind = "DECODE"
	Cycle       ftag.Kind = "CYCLE"
)

// NotFound wraps err as a structural absence with a user-facing message
func NotFound(err error, msg string) error {
	return fault.Wrap(err, ftag.With(ftag.NotFound), fmsg.WithDesc(msg, msg))
}

// Invalid wraps err as a rejected argument with a user-facing message
func Invalid(err error, msg string) error {
	return fault.Wrap(err, ftag.With(ftag.InvalidArgument), fmsg.WithDesc(msg, msg))
}

// Tag wraps err with kind and a user-facing message
func Tag(err error, kind ftag.Kind, msg string) error {
	return fault.Wrap(err, ftag.With(kind), fmsg.WithDesc(msg, msg))
}

// Is reports whether err carries kind
func Is(err error, kind ftag.Kind) bool {
	if err == nil {
		return false
	}
	return ftag.Get(err) == kind
}

// Message returns the user-facing description of err, falling back to its text
func Message(err error) string {
	if err == nil {
		return ""
	}
	if issue := fmsg.GetIssue(err); issue != "" {
		return issue
	}
	return err.Error()
}

// HTTPStatus maps an error's kind to a response status code
func HTTPStatus(err error) int {
	switch ftag.Get(err) {
	case ftag.NotFound:
		return http.StatusNotFound
	case ftag.InvalidArgument, Decode:
		return http.StatusBadRequest
	case SyncFailed:
		return http.StatusConflict
	case Cycle:
		return http.StatusUnprocessableEntity
	case RuntimePush:
		return http.StatusBadGateway
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}
