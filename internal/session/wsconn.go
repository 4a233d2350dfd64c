package session

import (
	"context"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/lyrebird-labs/lyrebird/api/protocol"
)

// maxInboundBytes bounds one inbound message. Audio payloads arrive base64
// encoded, so the limit sits well above the raw recording sizes clients send.
const maxInboundBytes = 1 << 24

// WSConn adapts a coder websocket to the session Conn surface.
type WSConn struct {
	conn *websocket.Conn
}

func NewWSConn(conn *websocket.Conn) *WSConn {
	conn.SetReadLimit(maxInboundBytes)
	return &WSConn{conn: conn}
}

func (c *WSConn) ReadEnvelope(ctx context.Context) (protocol.Envelope, error) {
	var env protocol.Envelope
	if err := wsjson.Read(ctx, c.conn, &env); err != nil {
		return protocol.Envelope{}, err
	}
	return env, nil
}

func (c *WSConn) WriteEnvelope(ctx context.Context, env protocol.Envelope) error {
	return wsjson.Write(ctx, c.conn, env)
}

func (c *WSConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

var _ Conn = (*WSConn)(nil)
