package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport is returned when the question provider cannot be reached or answers with a non-2xx status.
	ErrTransport = errors.New("question provider unreachable")
	// ErrProvider is returned when the provider answers but signals failure.
	ErrProvider = errors.New("question provider returned no questions")
	// ErrStorageUnavailable marks a history store that cannot persist anything.
	ErrStorageUnavailable = errors.New("history storage unavailable")
	// ErrInvalidDifficulty is returned for difficulties outside the enumerated set.
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	// ErrSessionNotFound is returned when a quiz session has not been initialized.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSuperseded is returned by a start that lost to a newer start on the same session.
	ErrSuperseded = errors.New("quiz start superseded")
)

// FetchKind distinguishes the two ways a question fetch can fail.
type FetchKind int

const (
	FetchTransport FetchKind = iota
	FetchProvider
)

// Provider response codes as documented by Open Trivia DB.
const (
	CodeSuccess       = 0
	CodeNoResults     = 1
	CodeInvalidParam  = 2
	CodeTokenNotFound = 3
	CodeTokenEmpty    = 4
	CodeRateLimit     = 5
)

// FetchError describes a failed question fetch.
type FetchError struct {
	Kind FetchKind
	// Code is the provider response code for FetchProvider, or the HTTP status for FetchTransport (0 when the request never completed).
	Code int
	Err  error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchProvider:
		return fmt.Sprintf("%v: response code %d (%s)", ErrProvider, e.Code, ProviderCodeText(e.Code))
	default:
		if e.Err != nil {
			return fmt.Sprintf("%v: %v", ErrTransport, e.Err)
		}
		return fmt.Sprintf("%v: http status %d", ErrTransport, e.Code)
	}
}

// Is lets errors.Is match ErrTransport and ErrProvider.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == FetchTransport
	case ErrProvider:
		return e.Kind == FetchProvider
	}
	return false
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ProviderCodeText names a provider response code.
func ProviderCodeText(code int) string {
	switch code {
	case CodeSuccess:
		return "success"
	case CodeNoResults:
		return "not enough questions for query"
	case CodeInvalidParam:
		return "invalid parameter"
	case CodeTokenNotFound:
		return "session token not found"
	case CodeTokenEmpty:
		return "session token exhausted"
	case CodeRateLimit:
		return "rate limited"
	default:
		return "unknown"
	}
}
