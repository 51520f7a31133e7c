package socket

import (
	"net"
	"sync"

	"github.com/gorilla/websocket"
)

// Conn abstracts the transport underneath a Socket. Frames are
// complete text messages; the transport owns message boundaries.
type Conn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
	Close() error
	RemoteAddr() net.Addr
}

// WSConn adapts a gorilla websocket connection to the Conn interface.
// Writes are serialized; gorilla allows at most one concurrent writer.
type WSConn struct {
	conn       *websocket.Conn
	writeMutex sync.Mutex
}

func NewWSConn(conn *websocket.Conn) *WSConn {
	return &WSConn{conn: conn}
}

func (c *WSConn) ReadFrame() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *WSConn) WriteFrame(data []byte) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *WSConn) Close() error {
	return c.conn.Close()
}

func (c *WSConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
