package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/adrpg/monster"
)

// Backend is the game service as seen from the privileged side. Each method
// is exactly one network call returning the service's JSON body.
type Backend interface {
	Spawn(ctx context.Context, req monster.SpawnRequest) (json.RawMessage, error)
	Attack(ctx context.Context, req monster.AttackRequest) (json.RawMessage, error)
	User(ctx context.Context) (json.RawMessage, error)
}

// Responder is the privileged side. It answers every Request read from a
// port with one Response, asynchronously: the port stays open while calls
// are in flight, so answers may come back in any order.
type Responder struct {
	mu       sync.RWMutex
	handlers map[Action]Handler
	logger   *slog.Logger
}

// ResponderOption configures a Responder.
type ResponderOption func(*Responder)

// WithResponderLogger sets a custom logger.
func WithResponderLogger(l *slog.Logger) ResponderOption {
	return func(r *Responder) { r.logger = l }
}

// NewResponder creates a Responder serving spawn, attack and user from backend.
func NewResponder(backend Backend, opts ...ResponderOption) *Responder {
	r := &Responder{
		handlers: make(map[Action]Handler),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}

	r.Handle(ActionSpawn, func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		var req monster.SpawnRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("spawn: bad payload: %w", err)
		}
		return backend.Spawn(ctx, req)
	})
	r.Handle(ActionAttack, func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		var req monster.AttackRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("attack: bad payload: %w", err)
		}
		return backend.Attack(ctx, req)
	})
	r.Handle(ActionUser, func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
		return backend.User(ctx)
	})
	return r
}

// Handle registers (or replaces) the handler for action. Recovery and
// logging are applied around it.
func (r *Responder) Handle(action Action, h Handler) {
	wrapped := Chain(Recovery(r.logger), Logging(r.logger, action))(h)
	r.mu.Lock()
	r.handlers[action] = wrapped
	r.mu.Unlock()
}

// Serve answers requests from port until ctx is done or the port closes.
// It closes the port on return and waits for in-flight calls first.
func (r *Responder) Serve(ctx context.Context, port Port) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		cancel()
		port.Close()
	}()

	go func() {
		<-ctx.Done()
		port.Close()
	}()

	for {
		msg, err := port.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrClosed) {
				return nil
			}
			return fmt.Errorf("relay: recv: %w", err)
		}

		var req Request
		if err := json.Unmarshal(msg, &req); err != nil || req.ID == "" {
			r.logger.Warn("relay: dropping malformed request", "error", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := json.Marshal(r.dispatch(ctx, req))
			if err != nil {
				r.logger.Error("relay: encode response", "id", req.ID, "error", err)
				return
			}
			if err := port.Send(ctx, data); err != nil {
				r.logger.Warn("relay: response not delivered", "id", req.ID, "action", req.Action, "error", err)
			}
		}()
	}
}

func (r *Responder) dispatch(ctx context.Context, req Request) Response {
	r.mu.RLock()
	h, ok := r.handlers[req.Action]
	r.mu.RUnlock()
	if !ok {
		return Response{ID: req.ID, Error: fmt.Sprintf("unknown action %q", req.Action)}
	}

	data, err := h(ctx, req.Payload)
	if err != nil {
		return Response{ID: req.ID, Error: err.Error()}
	}
	return Response{ID: req.ID, OK: true, Data: data}
}
