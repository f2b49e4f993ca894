package upstream

import (
	"fmt"
	"time"
)

// TimeoutError reports that a call exceeded its configured deadline and
// the in-flight request was aborted.
type TimeoutError struct {
	Target  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("upstream call to %s timed out after %s", e.Target, e.Timeout)
}

// TransportError reports a connection-level fault: refused, reset, DNS
// failure and the like.
type TransportError struct {
	Target string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream transport failure calling %s: %v", e.Target, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a response body that is not the JSON shape the
// caller can consume.
type ProtocolError struct {
	Target string
	Err    error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("upstream protocol error from %s: %v", e.Target, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
