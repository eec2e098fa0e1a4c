package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// Handler performs one action on the privileged side: payload in, parsed
// service body out.
type Handler func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// Middleware wraps a Handler without changing its signature.
type Middleware func(next Handler) Handler

// Chain composes middlewares left-to-right: the first is the outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logging logs every call with its duration.
func Logging(logger *slog.Logger, action Action) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
			start := time.Now()
			resp, err := next(ctx, payload)
			dur := time.Since(start)

			if err != nil {
				logger.WarnContext(ctx, "relay: call failed",
					"action", action,
					"duration_ms", dur.Milliseconds(),
					"error", err)
			} else {
				logger.DebugContext(ctx, "relay: call ok",
					"action", action,
					"duration_ms", dur.Milliseconds(),
					"response_bytes", len(resp))
			}
			return resp, err
		}
	}
}

// Recovery turns a panicking handler into an ordinary failure.
func Recovery(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload json.RawMessage) (resp json.RawMessage, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "relay: handler panic recovered",
						"panic", r,
						"stack", string(debug.Stack()))
					err = fmt.Errorf("relay: handler panicked: %v", r)
				}
			}()
			return next(ctx, payload)
		}
	}
}
