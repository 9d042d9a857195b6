package falcon

import "fmt"

// TransientError wraps a transport-level failure: DNS, connect, TLS, timeouts.
// The run still aborts on one, but callers that add retries should key off
// this type.
type TransientError struct {
	Endpoint string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure calling %s: %v", e.Endpoint, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// StatusError reports a non-2xx answer from the API.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Endpoint, e.Code)
}

// MalformedResponseError reports a 2xx answer whose body could not be decoded
// into the expected shape. Always fatal.
type MalformedResponseError struct {
	Endpoint string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response from %s: %v", e.Endpoint, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
