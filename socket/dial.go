package socket

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/onoro/retry"
)

// DialConfig describes how the client side reaches the server and
// what happens when the connection drops.
type DialConfig struct {
	// URL is the websocket endpoint, e.g. ws://host:2345/onoro.
	URL string
	// HandshakeTimeout bounds the websocket handshake. Zero uses the
	// gorilla default.
	HandshakeTimeout time.Duration
	// Reconnect redials with backoff whenever the connection is lost
	// (but not after an explicit Close). Pending calls do not survive a
	// reconnect; they resolve with ConnectionClosed. Handler
	// registrations survive.
	Reconnect bool
	// Retry is the backoff schedule for both the initial dial and
	// reconnects. The zero value means retry.DefaultConfig.
	Retry retry.Config
}

// Dial connects a new Socket to the given endpoint. The socket is Open
// on return; when cfg.Reconnect is set it keeps itself connected until
// Close is called or the retry schedule is exhausted.
func Dial(ctx context.Context, cfg DialConfig, caps Capabilities, opts Options) (*Socket, error) {
	if cfg.Retry == (retry.Config{}) {
		cfg.Retry = retry.DefaultConfig()
	}

	s := New(caps, opts)
	if err := dialAttach(ctx, cfg, s); err != nil {
		return nil, err
	}

	if cfg.Reconnect {
		s.OnClosed(func() {
			s.log.Infow("connection lost, reconnecting", "url", cfg.URL)
			if err := dialAttach(context.Background(), cfg, s); err != nil {
				s.log.Errorw("reconnect failed, giving up", "url", cfg.URL, "error", err)
			}
		})
	}
	return s, nil
}

func dialAttach(ctx context.Context, cfg DialConfig, s *Socket) error {
	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	return retry.Do(ctx, cfg.Retry, func() error {
		conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
		if err != nil {
			s.log.Debugw("dial attempt failed", "url", cfg.URL, "error", err)
			return err
		}
		if err := s.Attach(NewWSConn(conn)); err != nil {
			conn.Close()
			return err
		}
		return nil
	})
}
