package signaling

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
)

// URL builds the signaling address for a host listening at hostport.
func URL(hostport, pin string) string {
	u := url.URL{Scheme: "ws", Host: hostport, Path: "/ws", RawQuery: url.Values{"pin": {pin}}.Encode()}
	return u.String()
}

// connect dials the given WebSocket URL. The URL carries the PIN as a
// query parameter, e.g.:
//
//	wss://example.devtunnels.ms/ws?pin=1234
func connect(ctx context.Context, url string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("signaling: connect: %w", err)
	}
	return conn, nil
}
