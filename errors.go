package uisynth

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidTool      = errors.New("invalid tool specification")
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNoAction means the model answered without choosing any action. It is never retried.
	ErrNoAction = errors.New("no action chosen by model")
)

var (
	// ErrTagTokenExceeded marks provider errors caused by an input larger than the model context window.
	ErrTagTokenExceeded = goerr.NewTag("token_exceeded")

	// ErrTagTransient marks provider errors worth retrying: rate limits, overload and 5xx responses.
	ErrTagTransient = goerr.NewTag("transient")
)

// IsTokenExceeded reports whether err carries ErrTagTokenExceeded.
func IsTokenExceeded(err error) bool {
	return goerr.HasTag(err, ErrTagTokenExceeded)
}

// IsTransient reports whether err carries ErrTagTransient or ErrTagTokenExceeded.
func IsTransient(err error) bool {
	return goerr.HasTag(err, ErrTagTransient) || goerr.HasTag(err, ErrTagTokenExceeded)
}
