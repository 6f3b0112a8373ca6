package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds how long a single frame write may block, mirroring the
// SetWriteDeadline-before-WriteMessage pattern the pack's WS servers use.
const writeWait = 10 * time.Second

// conn adapts *websocket.Conn to eventfabric.Sender. Writes are
// serialized with a mutex since gorilla/websocket forbids concurrent
// writers on the same connection.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func newConn(wsConn *websocket.Conn) *conn {
	return &conn{ws: wsConn}
}

func (c *conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	return c.ws.Close()
}
