package relay

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by a Port after Close, and by calls that were still
// pending when the Bridge lost its port.
var ErrClosed = errors.New("relay: port closed")

// CallError is the single rejection type of Bridge calls. Delivery failures,
// ok:false answers and empty answers all surface as a CallError whose Reason
// is human-readable; callers need not tell them apart.
type CallError struct {
	Action Action
	Reason string
	Err    error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("relay: %s: %s", e.Action, e.Reason)
}

func (e *CallError) Unwrap() error { return e.Err }
