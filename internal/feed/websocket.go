package feed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const wsHandshakeTimeout = 10 * time.Second

// WebSocketSource reads JSON payloads pushed by a sensor gateway over a websocket.
type WebSocketSource struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
}

func NewWebSocketSource(url string, header http.Header) *WebSocketSource {
	return &WebSocketSource{
		url:    url,
		header: header,
		dialer: &websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout},
	}
}

func (s *WebSocketSource) Subscribe(ctx context.Context, emit func(Payload)) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		return fmt.Errorf("dial feed %s: %w", s.url, err)
	}
	defer conn.Close()

	// unblock ReadJSON on shutdown
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var p Payload
		if err := conn.ReadJSON(&p); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read feed: %w", err)
		}
		emit(p)
	}
}
