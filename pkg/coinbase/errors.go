package coinbase

import (
	"fmt"
)

// StatusError is a non-2xx response from the exchange. It marks transport
// level failures the evaluators degrade to "no action this cycle".
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("exchange returned status %d: %s", e.Code, e.Body)
}

// MalformedResponseError is a 2xx response missing a required field or
// carrying a value that does not parse.
type MalformedResponseError struct {
	Field string
	Cause error
}

func (e *MalformedResponseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed exchange response: field %q: %v", e.Field, e.Cause)
	}
	return fmt.Sprintf("malformed exchange response: field %q missing or empty", e.Field)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Cause
}
