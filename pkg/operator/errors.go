package operator

import "fmt"

// BackendError wraps a transport or provider failure during Predict. The
// original error is available via errors.Unwrap / errors.As.
type BackendError struct {
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("operator: backend call failed: %v", e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// ParseError reports a model reply that does not conform to the declared
// return type. Raw carries the unparsed reply so callers can inspect or log
// what the model actually said.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("operator: parse reply: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
