package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/adrpg/monster"
)

// maxResponseBody caps what is read from the game service (10 MiB).
const maxResponseBody int64 = 10 << 20

// HTTPBackend talks to the game service over HTTP/JSON:
//
//	POST /monster  {width, height}                 → Monster
//	POST /attack   {damage, current_hp, xp_reward} → AttackResult
//	GET  /user                                     → opaque user state
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

// BackendOption configures an HTTPBackend.
type BackendOption func(*HTTPBackend)

// WithTimeout bounds every request. Zero (the default) means no timeout.
func WithTimeout(d time.Duration) BackendOption {
	return func(b *HTTPBackend) { b.client.Timeout = d }
}

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) BackendOption {
	return func(b *HTTPBackend) { b.client = c }
}

// NewHTTPBackend creates a backend rooted at baseURL (e.g. "http://127.0.0.1:5000").
func NewHTTPBackend(baseURL string, opts ...BackendOption) *HTTPBackend {
	b := &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *HTTPBackend) Spawn(ctx context.Context, req monster.SpawnRequest) (json.RawMessage, error) {
	return b.do(ctx, http.MethodPost, "/monster", req)
}

// attackBody is what the service receives. Gold is left to the service.
type attackBody struct {
	Damage    int `json:"damage"`
	CurrentHP int `json:"current_hp"`
	XPReward  int `json:"xp_reward"`
}

func (b *HTTPBackend) Attack(ctx context.Context, req monster.AttackRequest) (json.RawMessage, error) {
	return b.do(ctx, http.MethodPost, "/attack", attackBody{
		Damage:    req.Damage,
		CurrentHP: req.CurrentHP,
		XPReward:  req.XPReward,
	})
}

func (b *HTTPBackend) User(ctx context.Context) (json.RawMessage, error) {
	return b.do(ctx, http.MethodGet, "/user", nil)
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("relay/http: marshal: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("relay/http: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay/http: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := limitedReadAll(resp.Body, maxResponseBody)
	if err != nil {
		return nil, fmt.Errorf("relay/http: read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("relay/http: %s %s: status %d", method, path, resp.StatusCode)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("relay/http: %s %s: empty response body", method, path)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("relay/http: %s %s: response is not JSON", method, path)
	}
	return json.RawMessage(data), nil
}

// limitedReadAll reads at most maxBytes from r.
func limitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", maxBytes)
	}
	return data, nil
}
