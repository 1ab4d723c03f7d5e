// Package transport carries protocol messages over TCP streams and websocket
// connections.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/marquee/internal/protocol"
	"github.com/gorilla/websocket"
)

var ErrNonBinaryMessage = errors.New("transport: non-binary websocket message")

const (
	NameTCP       = "tcp"
	NameWebsocket = "ws"
)

// Conn is one peer connection. ReadMessage is not safe for concurrent use;
// WriteMessage and Close are.
type Conn interface {
	ReadMessage() (*protocol.Message, error)
	WriteMessage(msg *protocol.Message) error
	SetReadDeadline(t time.Time) error
	RemoteAddr() string
	Transport() string
	Close() error
}

// StreamConn frames messages directly on a byte stream.
type StreamConn struct {
	conn  net.Conn
	r     *bufio.Reader
	codec protocol.Codec

	wmu sync.Mutex
}

func NewStreamConn(conn net.Conn, codec protocol.Codec) *StreamConn {
	return &StreamConn{
		conn:  conn,
		r:     bufio.NewReader(conn),
		codec: codec,
	}
}

func (c *StreamConn) ReadMessage() (*protocol.Message, error) {
	return c.codec.Decode(c.r)
}

func (c *StreamConn) WriteMessage(msg *protocol.Message) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.codec.Encode(c.conn, msg)
}

func (c *StreamConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *StreamConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *StreamConn) Transport() string {
	return NameTCP
}

func (c *StreamConn) Close() error {
	return c.conn.Close()
}

// WSConn carries exactly one frame per binary websocket message.
type WSConn struct {
	ws    *websocket.Conn
	codec protocol.Codec

	wmu sync.Mutex
}

func NewWSConn(ws *websocket.Conn, codec protocol.Codec) *WSConn {
	ws.SetReadLimit(int64(codec.Limits.MaxPayloadBytes) + 64)
	return &WSConn{ws: ws, codec: codec}
}

func (c *WSConn) ReadMessage() (*protocol.Message, error) {
	mt, data, err := c.ws.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, err
	}
	if mt != websocket.BinaryMessage {
		return nil, ErrNonBinaryMessage
	}
	return c.codec.Decode(bytes.NewReader(data))
}

func (c *WSConn) WriteMessage(msg *protocol.Message) error {
	var buf bytes.Buffer
	if err := c.codec.Encode(&buf, msg); err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.ws.WriteMessage(websocket.BinaryMessage, buf.Bytes())
}

func (c *WSConn) SetReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}

func (c *WSConn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

func (c *WSConn) Transport() string {
	return NameWebsocket
}

// Close sends a close frame before dropping the connection.
func (c *WSConn) Close() error {
	c.wmu.Lock()
	_ = c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.wmu.Unlock()
	return c.ws.Close()
}

// Upgrader promotes HTTP requests to websocket Conns.
type Upgrader struct {
	codec    protocol.Codec
	upgrader websocket.Upgrader
}

func NewUpgrader(codec protocol.Codec) *Upgrader {
	return &Upgrader{
		codec: codec,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (Conn, error) {
	ws, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket upgrade: %w", err)
	}
	return NewWSConn(ws, u.codec), nil
}

// Dial connects to addr. ws:// and wss:// URLs use websocket, anything else
// is treated as a TCP host:port.
func Dial(ctx context.Context, addr string, codec protocol.Codec) (Conn, error) {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		ws, resp, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		return NewWSConn(ws, codec), nil
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewStreamConn(conn, codec), nil
}
