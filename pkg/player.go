package pkg

import (
	"errors"
	"fmt"
	"sync"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"
)

// Role is the seat a connection holds for its whole lifetime.
type Role int

const (
	White Role = iota
	Black
	Spectator
	Unknown
)

func (r Role) String() string {
	switch r {
	case White:
		return "White"
	case Black:
		return "Black"
	case Spectator:
		return "Spectator"
	default:
		return "Unknown"
	}
}

func (r Role) IsPlayer() bool {
	return r == White || r == Black
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	switch string(b) {
	case "White":
		*r = White
	case "Black":
		*r = Black
	case "Spectator":
		*r = Spectator
	default:
		return fmt.Errorf("unknown role %q", b)
	}
	return nil
}

// Player is one connection to the authority, whatever its role.
type Player struct {
	ID   string
	Name string
	Role Role
	Out  chan MessageInterface

	conn Transport
	done chan struct{}
	once sync.Once
}

func NewPlayer(conn Transport, queueSize int) *Player {
	if queueSize < 2 {
		queueSize = ConnQueueSize
	}
	return &Player{
		ID:   uuid.NewString(),
		Name: petname.Generate(2, "-"),
		Role: Unknown,
		Out:  make(chan MessageInterface, queueSize),
		conn: conn,
		done: make(chan struct{}),
	}
}

// Send queues a message without blocking. A full queue means the peer is not
// keeping up and the caller should drop the connection.
func (p *Player) Send(m MessageInterface) error {
	select {
	case <-p.done:
		return fmt.Errorf("player %s disconnected", p.Name)
	default:
	}
	select {
	case p.Out <- m:
		return nil
	default:
		return ErrQueueFull
	}
}

// HandleRead forwards the connection's messages to the match until the transport fails.
func (p *Player) HandleRead(m *Match) {
	defer func() {
		m.Disconnect(p)
		p.Disconnect()
	}()
	for {
		t, err := p.conn.ReadMessage()
		if errors.Is(err, ErrBadMessage) {
			Log.Warnw("dropping message", "match", m.ID, "player", p.Name, "err", err)
			continue
		}
		if err != nil {
			Log.Debugw("read ended", "match", m.ID, "player", p.Name, "err", err)
			return
		}
		msg, err := t.Unwrap()
		if err != nil {
			Log.Warnw("dropping message", "match", m.ID, "player", p.Name, "err", err)
			continue
		}
		switch msg := msg.(type) {
		case MessageMove:
			m.Submit(p, msg.Move)
		case MessageResync:
			m.Resync(p)
		default:
			Log.Warnw("unexpected message from client", "match", m.ID, "player", p.Name, "type", msg.Type())
		}
	}
}

func (p *Player) HandleWrite() {
	for {
		select {
		case <-p.done:
			return
		case message := <-p.Out:
			t, err := Wrap(message)
			if err != nil {
				Log.Errorw("encode failed", "player", p.Name, "type", message.Type(), "err", err)
				continue
			}
			if err := p.conn.WriteMessage(t); err != nil {
				Log.Debugw("write failed", "player", p.Name, "err", err)
				p.Disconnect()
				return
			}
		}
	}
}

// Done is closed once the player has been disconnected.
func (p *Player) Done() <-chan struct{} {
	return p.done
}

func (p *Player) Disconnect() {
	p.once.Do(func() {
		close(p.done)
		if p.conn != nil {
			p.conn.Close()
		}
	})
}
