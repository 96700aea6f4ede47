package pkg

import (
	"errors"
)

var (
	ErrWrongTurn   = errors.New("not your turn")
	ErrNotAPlayer  = errors.New("spectators cannot move")
	ErrIllegalMove = errors.New("illegal move")
	ErrBadMove     = errors.New("malformed move")
	ErrGameOver    = errors.New("game is over")
	ErrDesync      = errors.New("local position diverged from authority")
	ErrQueueFull   = errors.New("send queue full")
	ErrBadMessage  = errors.New("malformed message")
)

// Reason codes carried by MessageReject.
const (
	ReasonWrongTurn   = "wrong_turn"
	ReasonNotAPlayer  = "not_a_player"
	ReasonIllegalMove = "illegal_move"
	ReasonBadMove     = "bad_move"
	ReasonGameOver    = "game_over"
)

var reasons = []struct {
	err    error
	reason string
}{
	{ErrWrongTurn, ReasonWrongTurn},
	{ErrNotAPlayer, ReasonNotAPlayer},
	{ErrBadMove, ReasonBadMove},
	{ErrIllegalMove, ReasonIllegalMove},
	{ErrGameOver, ReasonGameOver},
}

// ReasonOf maps a rejection error to its wire code.
func ReasonOf(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ReasonIllegalMove
}

// ErrorFromReason is the inverse of ReasonOf.
func ErrorFromReason(reason string) error {
	for _, r := range reasons {
		if r.reason == reason {
			return r.err
		}
	}
	return ErrIllegalMove
}
