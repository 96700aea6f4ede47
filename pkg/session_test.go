package pkg

import (
	"errors"
	"testing"

	"github.com/notnil/chess"
)

type outbox struct {
	sent []MessageInterface
	err  error
}

func (o *outbox) send(m MessageInterface) error {
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, m)
	return nil
}

func newTestSession(role Role) (*Session, *outbox) {
	o := &outbox{}
	s := NewSession(o.send)
	s.HandleRole(MessageRole{Role: role, Name: "test"})
	if err := s.HandleSnapshot(MessageGame{Fen: startFEN, Ply: 0, Outcome: OutcomeNone}); err != nil {
		panic(err)
	}
	return s, o
}

func mustParse(t *testing.T, s string) Move {
	t.Helper()
	mv, err := ParseMove(s)
	if err != nil {
		t.Fatal(err)
	}
	return mv
}

func TestSessionPropose(t *testing.T) {
	s, o := newTestSession(White)

	if err := s.Propose(mustParse(t, "e2e4")); err != nil {
		t.Fatalf("propose failed: %s", err)
	}
	if len(o.sent) != 1 || o.sent[0] != (MessageMove{Move: "e2e4"}) {
		t.Errorf("unexpected submission %#v", o.sent)
	}
	if mv, ok := s.Pending(); !ok || mv.String() != "e2e4" {
		t.Errorf("expected e2e4 pending, got %s %v", mv, ok)
	}
	if s.FEN() != startFEN {
		t.Error("optimistic move leaked into the confirmed position")
	}
	if p := s.Display().Piece(chess.E4); p != chess.WhitePawn {
		t.Error("pending move not shown on the display position")
	}

	// one move in flight at a time
	if err := s.Propose(mustParse(t, "d2d4")); !errors.Is(err, ErrWrongTurn) {
		t.Errorf("second proposal = %v, want ErrWrongTurn", err)
	}

	if err := s.HandleMove(MessageMove{Move: "e2e4", Ply: 1, Outcome: OutcomeNone}); err != nil {
		t.Fatalf("broadcast failed: %s", err)
	}
	if _, ok := s.Pending(); ok {
		t.Error("pending move kept after broadcast")
	}
	if s.Ply() != 1 || s.Turn() != Black {
		t.Errorf("expected ply 1 with Black to move, got %d %s", s.Ply(), s.Turn())
	}
}

func TestSessionProposeRefused(t *testing.T) {
	spectator, o := newTestSession(Spectator)
	if err := spectator.Propose(mustParse(t, "e2e4")); !errors.Is(err, ErrNotAPlayer) {
		t.Errorf("spectator proposal = %v, want ErrNotAPlayer", err)
	}

	black, _ := newTestSession(Black)
	if err := black.Propose(mustParse(t, "e7e5")); !errors.Is(err, ErrWrongTurn) {
		t.Errorf("out of turn proposal = %v, want ErrWrongTurn", err)
	}

	white, o2 := newTestSession(White)
	if err := white.Propose(mustParse(t, "e2e5")); !errors.Is(err, ErrIllegalMove) {
		t.Errorf("illegal proposal = %v, want ErrIllegalMove", err)
	}
	if _, ok := white.Pending(); ok {
		t.Error("illegal proposal left a pending move")
	}
	if len(o.sent)+len(o2.sent) != 0 {
		t.Error("refused proposals reached the authority")
	}

	failing, o3 := newTestSession(White)
	o3.err = ErrQueueFull
	if err := failing.Propose(mustParse(t, "e2e4")); !errors.Is(err, ErrQueueFull) {
		t.Errorf("unsent proposal = %v, want ErrQueueFull", err)
	}
	if _, ok := failing.Pending(); ok {
		t.Error("unsent proposal left a pending move")
	}
}

func TestSessionReject(t *testing.T) {
	s, _ := newTestSession(White)
	if err := s.Propose(mustParse(t, "g1f3")); err != nil {
		t.Fatal(err)
	}
	s.HandleReject(MessageReject{Move: "g1f3", Reason: ReasonWrongTurn, Ply: 0})

	if _, ok := s.Pending(); ok {
		t.Error("rejected move still pending")
	}
	if !errors.Is(s.LastRejection(), ErrWrongTurn) {
		t.Errorf("unexpected rejection %v", s.LastRejection())
	}
	if s.Display().FEN() != startFEN {
		t.Error("display did not revert to the confirmed position")
	}
	if !s.CanDrag(chess.G1) {
		t.Error("cannot retry after a rejection")
	}
}

func TestSessionIdempotentBroadcast(t *testing.T) {
	s, o := newTestSession(Spectator)
	move := MessageMove{Move: "e2e4", Ply: 1, Outcome: OutcomeNone}
	for i := 0; i < 3; i++ {
		if err := s.HandleMove(move); err != nil {
			t.Fatalf("delivery %d failed: %s", i, err)
		}
	}
	if s.Ply() != 1 {
		t.Errorf("duplicate broadcasts applied, ply %d", s.Ply())
	}
	if len(o.sent) != 0 {
		t.Errorf("duplicates triggered %#v", o.sent)
	}
}

func TestSessionDesync(t *testing.T) {
	s, o := newTestSession(Black)

	err := s.HandleMove(MessageMove{Move: "e7e5", Ply: 2})
	if !errors.Is(err, ErrDesync) {
		t.Fatalf("gap = %v, want ErrDesync", err)
	}
	if s.Synced() {
		t.Error("session still synced after a gap")
	}
	if len(o.sent) != 1 || o.sent[0] != (MessageResync{}) {
		t.Fatalf("expected one resync request, got %#v", o.sent)
	}

	// the request is outstanding, don't ask again
	if err := s.HandleMove(MessageMove{Move: "g1f3", Ply: 3}); !errors.Is(err, ErrDesync) {
		t.Errorf("second gap = %v, want ErrDesync", err)
	}
	if len(o.sent) != 1 {
		t.Errorf("resync requested again: %#v", o.sent)
	}

	e := NewEngine()
	play(t, e, "e2e4", "e7e5")
	if err := s.HandleSnapshot(MessageGame{Fen: e.FEN(), Ply: 2, Outcome: OutcomeNone}); err != nil {
		t.Fatal(err)
	}
	if !s.Synced() || s.Ply() != 2 || s.FEN() != e.FEN() {
		t.Errorf("snapshot did not restore the session: %s ply %d", s.FEN(), s.Ply())
	}

	// a move the local engine refuses is a desync too
	if err := s.HandleMove(MessageMove{Move: "e2e4", Ply: 3}); !errors.Is(err, ErrDesync) {
		t.Errorf("impossible move = %v, want ErrDesync", err)
	}
	if len(o.sent) != 2 {
		t.Errorf("expected a second resync request, got %#v", o.sent)
	}
}

func TestSessionCanDrag(t *testing.T) {
	white, _ := newTestSession(White)
	black, _ := newTestSession(Black)
	spectator, _ := newTestSession(Spectator)

	tests := []struct {
		s    *Session
		sq   chess.Square
		want bool
	}{
		{white, chess.E2, true},
		{white, chess.G1, true},
		{white, chess.E4, false},
		{white, chess.E7, false},
		{black, chess.E7, false},
		{spectator, chess.E2, false},
		{spectator, chess.E7, false},
	}
	for _, tt := range tests {
		if got := tt.s.CanDrag(tt.sq); got != tt.want {
			t.Errorf("%s CanDrag(%s) = %v, want %v", tt.s.Role(), tt.sq, got, tt.want)
		}
	}

	if err := black.HandleMove(MessageMove{Move: "d2d4", Ply: 1}); err != nil {
		t.Fatal(err)
	}
	if !black.CanDrag(chess.D7) {
		t.Error("black cannot move on its turn")
	}
	if len(black.LegalMovesFrom(chess.D7)) != 2 {
		t.Errorf("unexpected moves from d7: %v", black.LegalMovesFrom(chess.D7))
	}
}

func TestSessionGameOver(t *testing.T) {
	s, _ := newTestSession(White)
	for i, mv := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		msg := MessageMove{Move: mv, Ply: i + 1}
		if i == 3 {
			msg.Outcome, msg.Method = "0-1", "Checkmate"
		}
		if err := s.HandleMove(msg); err != nil {
			t.Fatal(err)
		}
	}
	if outcome, method := s.Outcome(); outcome != "0-1" || method != "Checkmate" {
		t.Errorf("unexpected outcome %s %s", outcome, method)
	}
	if s.CanDrag(chess.A2) {
		t.Error("pieces draggable after mate")
	}
	if err := s.Propose(mustParse(t, "a2a3")); !errors.Is(err, ErrGameOver) {
		t.Errorf("proposal after mate = %v, want ErrGameOver", err)
	}
}

// Every session fed the same broadcasts, in any duplicated order, lands on
// the authority's position.
func TestSessionsConverge(t *testing.T) {
	m := NewMatch("test")
	ps := seat(m, 3)
	sessions := make([]*Session, len(ps))
	for i, p := range ps {
		sessions[i], _ = newTestSession(p.Role)
	}

	line := []string{"d2d4", "d7d5", "c2c4", "d5c4", "e2e3", "b7b5", "a2a4", "c7c6", "a4b5", "c6b5", "d1f3"}
	for i, mv := range line {
		if err := m.Submit(ps[i%2], mv); err != nil {
			t.Fatalf("%s rejected: %s", mv, err)
		}
		for j, p := range ps {
			for _, msg := range drain(p) {
				for k := 0; k <= j; k++ {
					if err := sessions[j].Handle(msg); err != nil {
						t.Fatalf("session %d failed on %#v: %s", j, msg, err)
					}
				}
			}
		}
	}

	want := m.Snapshot()
	for i, s := range sessions {
		if s.FEN() != want.Fen || s.Ply() != want.Ply {
			t.Errorf("session %d at %s ply %d, authority at %s ply %d", i, s.FEN(), s.Ply(), want.Fen, want.Ply)
		}
	}
}
