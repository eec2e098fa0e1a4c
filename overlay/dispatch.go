package overlay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/adrpg/overlay/event"
	"github.com/hazyhaar/adrpg/overlay/internal/sink"
)

// dispatcher decouples event producers from slow sinks: battles and
// promotions enqueue, one goroutine delivers in order.
type dispatcher struct {
	router *sink.Router
	logger *slog.Logger

	mu     sync.RWMutex
	ch     chan event.Event
	closed bool
	done   chan struct{}
}

const eventBuffer = 1024

func newDispatcher(router *sink.Router, logger *slog.Logger) *dispatcher {
	d := &dispatcher{
		router: router,
		logger: logger,
		ch:     make(chan event.Event, eventBuffer),
		done:   make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *dispatcher) send(e event.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.ch <- e:
	default:
		d.logger.Warn("overlay: event dropped, sinks too slow", "type", e.Type, "widget", e.WidgetID)
	}
}

func (d *dispatcher) loop() {
	defer close(d.done)
	for e := range d.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		d.router.Send(ctx, e)
		cancel()
	}
}

// close delivers queued events, then closes the sinks.
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.ch)
	d.mu.Unlock()

	<-d.done
	if err := d.router.Close(); err != nil {
		d.logger.Warn("overlay: close sinks", "error", err)
	}
}
