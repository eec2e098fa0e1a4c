package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/adrpg/idgen"
	"github.com/hazyhaar/adrpg/monster"
)

// Bridge is the observer side of the relay. It never touches the network:
// each Call is one Request on the port, matched to its Response by id.
// Safe for concurrent use; calls from different widgets never see each
// other's responses.
type Bridge struct {
	port   Port
	logger *slog.Logger
	newID  idgen.Generator

	mu      sync.Mutex
	pending map[string]chan Response
	closed  bool
	done    chan struct{}
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithBridgeLogger sets a custom logger.
func WithBridgeLogger(l *slog.Logger) BridgeOption {
	return func(b *Bridge) { b.logger = l }
}

// WithIDGenerator sets the correlation id generator. Default: UUIDv7.
func WithIDGenerator(gen idgen.Generator) BridgeOption {
	return func(b *Bridge) { b.newID = gen }
}

// NewBridge starts reading responses from port. Close the Bridge to release it.
func NewBridge(port Port, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		port:    port,
		logger:  slog.Default(),
		newID:   idgen.UUIDv7(),
		pending: make(map[string]chan Response),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(b)
	}
	go b.readLoop()
	return b
}

// Call sends action with payload (any JSON object, or nil) and waits for the
// answer. The returned data is the service's parsed body. Any failure is a
// *CallError.
func (b *Bridge) Call(ctx context.Context, action Action, payload any) (json.RawMessage, error) {
	var body json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, &CallError{Action: action, Reason: "encode payload: " + err.Error(), Err: err}
		}
		body = raw
	}

	id := b.newID()
	msg, err := json.Marshal(Request{ID: id, Action: action, Payload: body})
	if err != nil {
		return nil, &CallError{Action: action, Reason: err.Error(), Err: err}
	}

	ch := make(chan Response, 1)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, &CallError{Action: action, Reason: "relay channel closed", Err: ErrClosed}
	}
	b.pending[id] = ch
	b.mu.Unlock()

	if err := b.port.Send(ctx, msg); err != nil {
		b.forget(id)
		return nil, &CallError{Action: action, Reason: err.Error(), Err: err}
	}

	select {
	case resp := <-ch:
		if !resp.OK {
			reason := resp.Error
			if reason == "" {
				reason = "No response"
			}
			return nil, &CallError{Action: action, Reason: reason}
		}
		if len(resp.Data) == 0 || string(resp.Data) == "null" {
			return nil, &CallError{Action: action, Reason: "No response"}
		}
		return resp.Data, nil
	case <-ctx.Done():
		b.forget(id)
		return nil, &CallError{Action: action, Reason: ctx.Err().Error(), Err: ctx.Err()}
	}
}

// Spawn asks the service for a monster sized to a width×height ad slot.
func (b *Bridge) Spawn(ctx context.Context, width, height int) (*monster.Monster, error) {
	data, err := b.Call(ctx, ActionSpawn, monster.SpawnRequest{Width: width, Height: height})
	if err != nil {
		return nil, err
	}
	var m monster.Monster
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &CallError{Action: ActionSpawn, Reason: "decode monster: " + err.Error(), Err: err}
	}
	return &m, nil
}

// Attack submits an advisory damage value and returns the authoritative result.
func (b *Bridge) Attack(ctx context.Context, req monster.AttackRequest) (*monster.AttackResult, error) {
	data, err := b.Call(ctx, ActionAttack, req)
	if err != nil {
		return nil, err
	}
	var res monster.AttackResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, &CallError{Action: ActionAttack, Reason: "decode attack result: " + err.Error(), Err: err}
	}
	return &res, nil
}

// User fetches the player's state. The shape is owned by the service.
func (b *Bridge) User(ctx context.Context) (json.RawMessage, error) {
	return b.Call(ctx, ActionUser, nil)
}

// Done is closed once the port is gone and every pending call was rejected.
func (b *Bridge) Done() <-chan struct{} { return b.done }

// Close closes the port; pending calls are rejected.
func (b *Bridge) Close() error {
	err := b.port.Close()
	<-b.done
	return err
}

func (b *Bridge) forget(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

func (b *Bridge) readLoop() {
	for {
		msg, err := b.port.Recv(context.Background())
		if err != nil {
			b.fail(err)
			return
		}

		var resp Response
		if err := json.Unmarshal(msg, &resp); err != nil {
			b.logger.Warn("relay: malformed response", "error", err)
			continue
		}

		b.mu.Lock()
		ch, ok := b.pending[resp.ID]
		delete(b.pending, resp.ID)
		b.mu.Unlock()

		if !ok {
			b.logger.Debug("relay: response for unknown or abandoned call", "id", resp.ID)
			continue
		}
		ch <- resp
	}
}

func (b *Bridge) fail(cause error) {
	b.mu.Lock()
	b.closed = true
	for id, ch := range b.pending {
		ch <- Response{ID: id, OK: false, Error: fmt.Sprintf("relay channel closed: %v", cause)}
		delete(b.pending, id)
	}
	b.mu.Unlock()
	close(b.done)
}
