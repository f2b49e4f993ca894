package gateway

// ValidationError reports a malformed inbound request. It maps to a 400
// and is never logged as a server fault.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }
