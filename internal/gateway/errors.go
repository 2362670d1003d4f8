package gateway

import "fmt"

// Error is a transport or protocol level gateway failure, distinct from a
// business-level ERROR status (which is a normal, parseable response). The
// executor records it as a FAILURE outcome and does not retry.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
