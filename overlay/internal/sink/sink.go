// Package sink delivers overlay events to output backends.
package sink

import (
	"context"

	"github.com/hazyhaar/adrpg/overlay/event"
)

// Sink is an event output. Implementations are safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e event.Event) error
	Close() error
}
