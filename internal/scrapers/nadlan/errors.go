package nadlan

import (
	"fmt"
	"net/http"
)

// TransientNetworkError is a request that failed in transport or with a 5xx status,
// the kind of failure that is worth retrying.
type TransientNetworkError struct {
	Method string
	URL    string
	// StatusCode is 0 when no response was received.
	StatusCode int
	Err        error
}

func (e *TransientNetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: server error %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Err)
}

func (e *TransientNetworkError) Unwrap() error {
	return e.Err
}

// StatusError is a response with an unexpected non-5xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// MalformedRecordError is returned when a deal record cannot be enriched.
type MalformedRecordError struct {
	Field string
	Value any
	Err   error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record: field %s (%v): %s", e.Field, e.Value, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}
