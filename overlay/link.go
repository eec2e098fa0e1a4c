package overlay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/adrpg/overlay/internal/config"
	"github.com/hazyhaar/adrpg/relay"
)

// link is the overlay's connection to the game service: a bridge, plus the
// in-process responder when no relay daemon is configured.
type link struct {
	bridge *relay.Bridge
	cancel context.CancelFunc
	served chan struct{}
}

func connect(ctx context.Context, rc config.RelayConfig, logger *slog.Logger) (*link, error) {
	if rc.URL != "" {
		port, err := relay.DialWS(ctx, rc.URL)
		if err != nil {
			return nil, fmt.Errorf("overlay: relay: %w", err)
		}
		logger.Info("overlay: relay connected", "url", rc.URL)
		return &link{bridge: relay.NewBridge(port, relay.WithBridgeLogger(logger))}, nil
	}

	var opts []relay.BackendOption
	if rc.BackendTimeout > 0 {
		opts = append(opts, relay.WithTimeout(rc.BackendTimeout))
	}
	responder := relay.NewResponder(relay.NewHTTPBackend(rc.BackendURL, opts...), relay.WithResponderLogger(logger))

	observer, privileged := relay.Pipe()
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l := &link{
		bridge: relay.NewBridge(observer, relay.WithBridgeLogger(logger)),
		cancel: cancel,
		served: make(chan struct{}),
	}
	go func() {
		defer close(l.served)
		if err := responder.Serve(sctx, privileged); err != nil {
			logger.Warn("overlay: responder stopped", "error", err)
		}
	}()
	logger.Info("overlay: in-process relay", "backend", rc.BackendURL)
	return l, nil
}

func (l *link) close() {
	l.bridge.Close()
	if l.cancel != nil {
		l.cancel()
		<-l.served
	}
}
