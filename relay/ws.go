package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsPort adapts a gorilla/websocket connection to Port. One text frame is
// one message.
type wsPort struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	once    sync.Once
}

// NewWSPort wraps an established WebSocket connection.
func NewWSPort(conn *websocket.Conn) Port {
	return &wsPort{conn: conn}
}

// DialWS connects to a relay daemon (see Handler) and returns the observer-side port.
func DialWS(ctx context.Context, url string) (Port, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("relay: dial %s: %w", url, err)
	}
	return NewWSPort(conn), nil
}

func (p *wsPort) Send(ctx context.Context, msg []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := p.conn.SetWriteDeadline(deadline); err != nil {
		return mapWSErr(err)
	}
	return mapWSErr(p.conn.WriteMessage(websocket.TextMessage, msg))
}

// Recv blocks until a frame arrives. ctx is only checked before reading;
// closing the port unblocks a pending Recv.
func (p *wsPort) Recv(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, msg, err := p.conn.ReadMessage()
	if err != nil {
		return nil, mapWSErr(err)
	}
	return msg, nil
}

func (p *wsPort) Close() error {
	var err error
	p.once.Do(func() {
		p.writeMu.Lock()
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		p.writeMu.Unlock()
		err = p.conn.Close()
	})
	return err
}

func mapWSErr(err error) error {
	if err == nil {
		return nil
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return err
}

// WSHandler upgrades each request to a WebSocket and serves it with r until
// the client disconnects. Mount it on the relay daemon's router.
func WSHandler(r *Responder, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	upgrader := websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			logger.Warn("relay: websocket upgrade failed", "remote", req.RemoteAddr, "error", err)
			return
		}
		logger.Info("relay: observer connected", "remote", req.RemoteAddr)
		if err := r.Serve(req.Context(), NewWSPort(conn)); err != nil {
			logger.Warn("relay: serve ended", "remote", req.RemoteAddr, "error", err)
		}
		logger.Info("relay: observer disconnected", "remote", req.RemoteAddr)
	})
}
