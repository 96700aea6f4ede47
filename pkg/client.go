package pkg

import (
	"context"
	"errors"
	"sync"
)

// Client is a Session bound to a connection to the authority.
type Client struct {
	*Session

	conn Transport
	Out  chan MessageInterface

	mu       sync.Mutex
	onUpdate []func()
	done     chan struct{}
	once     sync.Once
}

func NewClient(conn Transport) *Client {
	cl := &Client{
		conn: conn,
		Out:  make(chan MessageInterface, ConnQueueSize),
		done: make(chan struct{}),
	}
	cl.Session = NewSession(cl.enqueue)
	return cl
}

// Connect dials address and returns a client ready for Run.
func Connect(address string) (*Client, error) {
	Log.Infow("connecting", "server", address)
	conn, err := Dial(address)
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

// OnUpdate registers f to be called after every message from the authority.
func (cl *Client) OnUpdate(f func()) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.onUpdate = append(cl.onUpdate, f)
}

func (cl *Client) enqueue(m MessageInterface) error {
	select {
	case <-cl.done:
		return errors.New("client closed")
	case cl.Out <- m:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run pumps messages in both directions until ctx ends or the connection drops.
func (cl *Client) Run(ctx context.Context) error {
	errs := make(chan error, 2)
	go func() { errs <- cl.HandleWrite() }()
	go func() { errs <- cl.HandleRead() }()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errs:
	}
	cl.Disconnect()
	return err
}

func (cl *Client) HandleRead() error {
	for {
		t, err := cl.conn.ReadMessage()
		if errors.Is(err, ErrBadMessage) {
			Log.Warnw("received malformed message", "err", err)
			continue
		}
		if err != nil {
			return err
		}
		msg, err := t.Unwrap()
		if err != nil {
			Log.Warnw("received unknown message", "err", err)
			continue
		}
		Log.Debugw("received", "type", msg.Type(), "msg", msg)
		if err := cl.Session.Handle(msg); err != nil {
			Log.Warnw("failed to apply message", "type", msg.Type(), "err", err)
		}
		cl.notify()
	}
}

func (cl *Client) HandleWrite() error {
	for {
		select {
		case <-cl.done:
			return nil
		case command := <-cl.Out:
			t, err := Wrap(command)
			if err != nil {
				return err
			}
			if err := cl.conn.WriteMessage(t); err != nil {
				return err
			}
			Log.Debugw("sent", "type", command.Type())
		}
	}
}

func (cl *Client) notify() {
	cl.mu.Lock()
	fs := append([]func(){}, cl.onUpdate...)
	cl.mu.Unlock()
	for _, f := range fs {
		f()
	}
}

func (cl *Client) Disconnect() {
	cl.once.Do(func() {
		close(cl.done)
		cl.conn.Close()
	})
}
