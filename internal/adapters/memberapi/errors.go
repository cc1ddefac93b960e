package memberapi

import (
	"errors"
	"fmt"
	"net/http"
)

// RequestFailedError is returned when the remote answered with a non-2xx status.
// The response body is ignored.
type RequestFailedError struct {
	Op         string
	StatusCode int
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("%s: response status %d", e.Op, e.StatusCode)
}

// NetworkError is returned when no response was received (DNS, refused connection, reset).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ErrDecode marks a 2xx response whose body was not the expected JSON.
var ErrDecode = errors.New("invalid response body")

// StatusOf reports the remote status code carried by err, if any.
func StatusOf(err error) (int, bool) {
	var rf *RequestFailedError
	if errors.As(err, &rf) {
		return rf.StatusCode, true
	}
	return 0, false
}

// IsRemote reports whether err came from talking to the remote API.
func IsRemote(err error) bool {
	var rf *RequestFailedError
	var ne *NetworkError
	return errors.As(err, &rf) || errors.As(err, &ne) || errors.Is(err, ErrDecode)
}

// UserMessage turns a remote error into text suitable for showing to a user.
func UserMessage(err error) string {
	var rf *RequestFailedError
	if errors.As(err, &rf) {
		return fmt.Sprintf("Request failed: %d %s", rf.StatusCode, http.StatusText(rf.StatusCode))
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return "Could not reach the member service"
	}
	if errors.Is(err, ErrDecode) {
		return "The member service sent an unreadable response"
	}
	return "Something went wrong"
}
