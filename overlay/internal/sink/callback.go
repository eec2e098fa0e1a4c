package sink

import (
	"context"

	"github.com/hazyhaar/adrpg/overlay/event"
)

// Func receives events in-process.
type Func func(ctx context.Context, e event.Event) error

// Callback hands events to a Go function without serialisation.
type Callback struct {
	fn Func
}

// NewCallback creates a Callback sink. A nil fn drops events.
func NewCallback(fn Func) *Callback { return &Callback{fn: fn} }

func (c *Callback) Send(ctx context.Context, e event.Event) error {
	if c.fn == nil {
		return nil
	}
	return c.fn(ctx, e)
}

func (c *Callback) Close() error { return nil }
