package directory

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when a request exceeds the client timeout.
	ErrTimeout = errors.New("directory request timed out")
	// ErrNetwork is returned when the directory could not be reached.
	ErrNetwork = errors.New("directory unreachable")
	// ErrServer is returned for non-2xx responses. The concrete error is a *StatusError.
	ErrServer = errors.New("directory returned error status")
	// ErrDecode is returned when a response body is not the expected JSON.
	ErrDecode = errors.New("directory response malformed")
)

// StatusError carries the status of a rejected request.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("directory %s %s failed (%d)", e.Method, e.Path, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrServer }

// IsTimeout reports whether err is a client-side timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsOffline reports whether err means the directory gave no answer at all,
// as opposed to answering with an error status.
func IsOffline(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrNetwork)
}
