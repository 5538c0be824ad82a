package pool

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/screa/duco-miner/pkg/types"
)

// Conn is a line-oriented connection to a pool node
type Conn interface {
	// ReadLine returns the next line without its trailing newline.
	ReadLine() (string, error)
	// WriteLine sends line followed by the protocol terminator.
	WriteLine(line string) error
	RemoteAddr() string
	Close() error
}

// Dialer opens a Conn to a resolved address
type Dialer interface {
	Dial(ctx context.Context, addr string) (Conn, error)
}

// TCPDialer opens newline-delimited TCP connections
type TCPDialer struct {
	Timeout   time.Duration
	IOTimeout time.Duration // per-operation deadline, 0 disables
}

// Dial connects to addr
func (d TCPDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	nd := net.Dialer{Timeout: d.Timeout}
	c, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, types.NewError(types.KindConnect, "dial "+addr, err)
	}
	return &tcpConn{
		conn:      c,
		reader:    bufio.NewReader(c),
		ioTimeout: d.IOTimeout,
	}, nil
}

type tcpConn struct {
	conn      net.Conn
	reader    *bufio.Reader
	ioTimeout time.Duration
}

func (c *tcpConn) deadline() time.Time {
	if c.ioTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.ioTimeout)
}

func (c *tcpConn) ReadLine() (string, error) {
	if err := c.conn.SetReadDeadline(c.deadline()); err != nil {
		return "", err
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *tcpConn) WriteLine(line string) error {
	if err := c.conn.SetWriteDeadline(c.deadline()); err != nil {
		return err
	}
	_, err := c.conn.Write([]byte(line + "\n"))
	return err
}

func (c *tcpConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}

// WebSocketDialer connects to pool nodes that speak the protocol over
// websocket text frames, one line per frame.
type WebSocketDialer struct {
	Timeout   time.Duration
	IOTimeout time.Duration
}

// Dial connects to ws://addr/
func (d WebSocketDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/"}
	wd := websocket.Dialer{HandshakeTimeout: d.Timeout}
	c, resp, err := wd.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, types.NewError(types.KindConnect, "dial "+u.String(), err)
	}
	return &wsConn{conn: c, ioTimeout: d.IOTimeout}, nil
}

type wsConn struct {
	conn      *websocket.Conn
	ioTimeout time.Duration
}

func (c *wsConn) deadline() time.Time {
	if c.ioTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.ioTimeout)
}

func (c *wsConn) ReadLine() (string, error) {
	if err := c.conn.SetReadDeadline(c.deadline()); err != nil {
		return "", err
	}
	for {
		mt, msg, err := c.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		return strings.TrimRight(string(msg), "\r\n"), nil
	}
}

func (c *wsConn) WriteLine(line string) error {
	if err := c.conn.SetWriteDeadline(c.deadline()); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (c *wsConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// NewDialer picks the transport by name ("tcp" or "ws")
func NewDialer(transport string, timeout, ioTimeout time.Duration) (Dialer, error) {
	switch transport {
	case "", "tcp":
		return TCPDialer{Timeout: timeout, IOTimeout: ioTimeout}, nil
	case "ws":
		return WebSocketDialer{Timeout: timeout, IOTimeout: ioTimeout}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", transport)
	}
}
