package pkg

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	ConnQueueSize  = 64
	ConnTimeout    = 60 * time.Second
	MaxMessageSize = 1 << 16
	pingPeriod     = (ConnTimeout * 9) / 10
	writeWait      = 10 * time.Second
)

// Transport carries envelopes over one connection. Reads and writes may run
// concurrently with each other but not with themselves.
type Transport interface {
	ReadMessage() (MessageTransport, error)
	WriteMessage(MessageTransport) error
	Close() error
}

// lineTransport speaks newline-delimited JSON over a stream socket.
type lineTransport struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

func NewLineTransport(conn net.Conn) Transport {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), MaxMessageSize)
	return &lineTransport{conn: conn, scanner: scanner}
}

func (t *lineTransport) ReadMessage() (MessageTransport, error) {
	var msg MessageTransport
	if !t.scanner.Scan() {
		if err := t.scanner.Err(); err != nil {
			return msg, err
		}
		return msg, net.ErrClosed
	}
	if err := json.Unmarshal(t.scanner.Bytes(), &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	return msg, nil
}

func (t *lineTransport) WriteMessage(msg MessageTransport) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if err := t.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	_, err = t.conn.Write(b)
	return err
}

func (t *lineTransport) Close() error {
	return t.conn.Close()
}

// wsTransport speaks one JSON envelope per websocket text frame.
type wsTransport struct {
	ws *websocket.Conn

	mu   sync.Mutex
	stop chan struct{}
	once sync.Once
}

// NewWebsocketTransport wraps an established websocket. When keepalive is set the
// transport pings the peer and expects pongs within ConnTimeout.
func NewWebsocketTransport(ws *websocket.Conn, keepalive bool) Transport {
	t := &wsTransport{ws: ws, stop: make(chan struct{})}
	ws.SetReadLimit(MaxMessageSize)
	if keepalive {
		ws.SetReadDeadline(time.Now().Add(ConnTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(ConnTimeout))
		})
		go t.ping()
	}
	return t
}

func (t *wsTransport) ping() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.mu.Lock()
			err := t.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			t.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (t *wsTransport) ReadMessage() (MessageTransport, error) {
	var msg MessageTransport
	err := t.ws.ReadJSON(&msg)
	// the frame has been consumed, the connection stays usable. ReadJSON
	// reports a truncated document as io.ErrUnexpectedEOF; a dropped
	// connection surfaces as a *websocket.CloseError instead.
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return msg, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	return msg, err
}

func (t *wsTransport) WriteMessage(msg MessageTransport) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return t.ws.WriteJSON(msg)
}

func (t *wsTransport) Close() error {
	t.once.Do(func() { close(t.stop) })
	return t.ws.Close()
}

// Dial connects to an authority. ws:// and wss:// addresses use websockets,
// tcp:// addresses use the line protocol.
func Dial(address string) (Transport, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "ws", "wss":
		ws, _, err := websocket.DefaultDialer.Dial(address, nil)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", address, err)
		}
		return NewWebsocketTransport(ws, false), nil
	case "tcp":
		conn, err := net.DialTimeout("tcp", u.Host, ConnTimeout)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", address, err)
		}
		return NewLineTransport(conn), nil
	default:
		return nil, fmt.Errorf("unsupported scheme %q in %s", u.Scheme, address)
	}
}
