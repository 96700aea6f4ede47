package pkg

import (
	"fmt"
	"sync"

	"github.com/notnil/chess"
)

// Session is a client's view of a match. It keeps the last state confirmed by
// the authority and, on top of it, at most one move the user proposed that the
// authority has not answered yet. It never decides legality for anyone else.
type Session struct {
	mu        sync.Mutex
	role      Role
	name      string
	confirmed *Engine
	ply       int
	outcome   string
	method    string
	pending   *Move
	rejection error
	synced    bool
	resyncing bool

	send func(MessageInterface) error
}

// NewSession returns a session that writes outgoing messages through send.
func NewSession(send func(MessageInterface) error) *Session {
	return &Session{
		role:      Unknown,
		confirmed: NewEngine(),
		outcome:   OutcomeNone,
		send:      send,
	}
}

// Handle dispatches any message from the authority.
func (s *Session) Handle(msg MessageInterface) error {
	switch msg := msg.(type) {
	case MessageRole:
		s.HandleRole(msg)
	case MessageGame:
		return s.HandleSnapshot(msg)
	case MessageMove:
		return s.HandleMove(msg)
	case MessageReject:
		s.HandleReject(msg)
	default:
		return fmt.Errorf("unexpected message %s", msg.Type())
	}
	return nil
}

func (s *Session) HandleRole(msg MessageRole) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.role = msg.Role
	s.name = msg.Name
}

// HandleSnapshot replaces the confirmed state wholesale and drops any pending move.
func (s *Session) HandleSnapshot(msg MessageGame) error {
	engine, err := EngineFromFEN(msg.Fen)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmed = engine
	s.ply = msg.Ply
	s.outcome = msg.Outcome
	s.method = msg.Method
	if s.outcome == "" {
		s.outcome = engine.Outcome()
		s.method = engine.Method()
	}
	s.pending = nil
	s.synced = true
	s.resyncing = false
	return nil
}

// HandleMove applies an accepted move. Broadcasts already applied are ignored.
// A gap or a move the local engine refuses means the session has diverged; the
// session then asks for a snapshot and returns ErrDesync.
func (s *Session) HandleMove(msg MessageMove) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.Ply != 0 && msg.Ply <= s.ply {
		return nil
	}

	s.pending = nil
	if msg.Ply != 0 && msg.Ply != s.ply+1 {
		return s.desyncLocked(fmt.Errorf("%w: got ply %d at ply %d", ErrDesync, msg.Ply, s.ply))
	}
	mv, err := ParseMove(msg.Move)
	if err != nil {
		return s.desyncLocked(fmt.Errorf("%w: %v", ErrDesync, err))
	}
	if _, err := s.confirmed.Apply(mv); err != nil {
		return s.desyncLocked(fmt.Errorf("%w: %v", ErrDesync, err))
	}
	s.ply++
	if msg.Outcome != "" {
		s.outcome = msg.Outcome
		s.method = msg.Method
	} else {
		s.outcome = s.confirmed.Outcome()
		s.method = s.confirmed.Method()
	}
	s.rejection = nil
	return nil
}

func (s *Session) desyncLocked(err error) error {
	s.synced = false
	if s.resyncing || s.send == nil {
		return err
	}
	Log.Warnw("desync, requesting snapshot", "player", s.name, "ply", s.ply, "err", err)
	if serr := s.send(MessageResync{}); serr != nil {
		return fmt.Errorf("%w (resync request failed: %v)", err, serr)
	}
	s.resyncing = true
	return err
}

// HandleReject reverts the optimistic move and records why it was refused.
func (s *Session) HandleReject(msg MessageReject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	s.rejection = fmt.Errorf("%s: %w", msg.Move, ErrorFromReason(msg.Reason))
}

// Propose checks mv locally, shows it optimistically and forwards it to the
// authority. The local check is only for feedback; the authority decides.
func (s *Session) Propose(mv Move) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.role.IsPlayer() {
		return ErrNotAPlayer
	}
	if s.overLocked() {
		return ErrGameOver
	}
	if s.pending != nil || s.confirmed.Turn() != s.role {
		return ErrWrongTurn
	}
	// Canonicalise through a scratch copy so a bare promotion shows as a queen.
	applied, err := s.confirmed.Clone().Apply(mv)
	if err != nil {
		return err
	}
	s.pending = &applied
	s.rejection = nil
	if s.send != nil {
		if err := s.send(MessageMove{Move: applied.String()}); err != nil {
			s.pending = nil
			return err
		}
	}
	return nil
}

func (s *Session) overLocked() bool {
	return s.outcome != OutcomeNone || s.confirmed.Terminal()
}

// Display is the position to render: the confirmed state with the pending move on top.
func (s *Session) Display() *Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := s.confirmed.Clone()
	if s.pending != nil {
		if _, err := view.Apply(*s.pending); err != nil {
			return s.confirmed.Clone()
		}
	}
	return view
}

// CanDrag reports whether the piece on sq may be picked up: the session holds a
// seat, it is that seat's turn and the piece is its own.
func (s *Session) CanDrag(sq chess.Square) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.role.IsPlayer() || s.pending != nil || s.overLocked() {
		return false
	}
	if s.confirmed.Turn() != s.role {
		return false
	}
	p := s.confirmed.Piece(sq)
	return p != chess.NoPiece && colorToRole(p.Color()) == s.role
}

// LegalMovesFrom lists destinations the user may drop the piece on sq.
func (s *Session) LegalMovesFrom(sq chess.Square) []Move {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmed.LegalMovesFrom(sq)
}

func (s *Session) Role() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// FEN is the confirmed position.
func (s *Session) FEN() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmed.FEN()
}

func (s *Session) Ply() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ply
}

func (s *Session) Turn() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmed.Turn()
}

func (s *Session) Pending() (Move, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return Move{}, false
	}
	return *s.pending, true
}

// Outcome returns the result and how it came about, "*" and "" while playing.
func (s *Session) Outcome() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome, s.method
}

// LastRejection is the reason the last proposed move was refused, if it was.
func (s *Session) LastRejection() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejection
}

// Synced is false between a detected desync and the next snapshot.
func (s *Session) Synced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synced
}
