// Package relay turns one-way asynchronous messages into ordered
// request/response calls between the page-observing side of adrpg and the
// side that owns network egress to the game service.
//
// The observer side holds a Bridge; the privileged side runs a Responder.
// They exchange whole JSON messages over a Port: an in-process Pipe or a
// WebSocket connection. Every request carries an explicit correlation id and
// is answered by exactly one response; nothing is broadcast.
//
//	obs, priv := relay.Pipe()
//	go relay.NewResponder(relay.NewHTTPBackend("http://127.0.0.1:5000")).Serve(ctx, priv)
//	bridge := relay.NewBridge(obs)
//	m, err := bridge.Spawn(ctx, 300, 250)
package relay

import (
	"encoding/json"
	"fmt"
)

// Action names a remote operation.
type Action string

const (
	ActionSpawn  Action = "spawn"
	ActionAttack Action = "attack"
	ActionUser   Action = "user"
)

// Request is one call crossing the boundary. On the wire the payload
// fields are flattened next to "id" and "action":
//
//	{"id":"…","action":"spawn","width":300,"height":250}
type Request struct {
	ID      string
	Action  Action
	Payload json.RawMessage
}

func (r Request) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage)
	if len(r.Payload) > 0 && string(r.Payload) != "null" {
		if err := json.Unmarshal(r.Payload, &fields); err != nil {
			return nil, fmt.Errorf("relay: payload must be a JSON object: %w", err)
		}
	}
	id, err := json.Marshal(r.ID)
	if err != nil {
		return nil, err
	}
	action, err := json.Marshal(r.Action)
	if err != nil {
		return nil, err
	}
	fields["id"] = id
	fields["action"] = action
	return json.Marshal(fields)
}

func (r *Request) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if raw, ok := fields["id"]; ok {
		if err := json.Unmarshal(raw, &r.ID); err != nil {
			return fmt.Errorf("relay: id: %w", err)
		}
		delete(fields, "id")
	}
	if raw, ok := fields["action"]; ok {
		if err := json.Unmarshal(raw, &r.Action); err != nil {
			return fmt.Errorf("relay: action: %w", err)
		}
		delete(fields, "action")
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	r.Payload = payload
	return nil
}

// Response answers the Request with the same ID: {ok:true, data} or
// {ok:false, error}.
type Response struct {
	ID    string          `json:"id"`
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}
