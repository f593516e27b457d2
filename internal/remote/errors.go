package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoRoute indicates the mutation type has no registered route.
var ErrNoRoute = errors.New("no route for mutation type")

// StatusError reports a failed submission. StatusCode is zero when the request
// never produced a response.
type StatusError struct {
	Type       string
	StatusCode int
	Body       string
	Err        error
}

func (e *StatusError) Error() string {
	switch {
	case e.StatusCode == 0 && e.Err != nil:
		return fmt.Sprintf("submit %s: %v", e.Type, e.Err)
	case e.Body != "":
		return fmt.Sprintf("submit %s: server returned %d: %s", e.Type, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("submit %s: server returned %d", e.Type, e.StatusCode)
	}
}

func (e *StatusError) Unwrap() error { return e.Err }

// ErrorKind is "rejected" for client errors the server will keep refusing and
// "transient" for everything else. Both are retried the same way.
func (e *StatusError) ErrorKind() string {
	if e.StatusCode >= http.StatusBadRequest && e.StatusCode < http.StatusInternalServerError {
		return "rejected"
	}
	return "transient"
}

// Kind returns the ErrorKind of err, or "unknown" when err carries none.
func Kind(err error) string {
	var classifier interface{ ErrorKind() string }
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	if errors.Is(err, ErrNoRoute) {
		return "rejected"
	}
	return "unknown"
}
