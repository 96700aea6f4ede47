package pkg

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

// Move is an origin/destination pair with an optional promotion piece.
// It is the same shape whether proposed by a client or accepted by the authority.
type Move struct {
	From  chess.Square
	To    chess.Square
	Promo chess.PieceType
}

var promotions = map[byte]chess.PieceType{
	'q': chess.Queen,
	'r': chess.Rook,
	'b': chess.Bishop,
	'n': chess.Knight,
}

// ParseMove decodes the 4-5 character coordinate form, e.g. "e2e4" or "e7e8q".
func ParseMove(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 4 && len(s) != 5 {
		return Move{}, fmt.Errorf("%w: %q", ErrBadMove, s)
	}
	from, ok := parseSquare(s[0:2])
	if !ok {
		return Move{}, fmt.Errorf("%w: bad origin in %q", ErrBadMove, s)
	}
	to, ok := parseSquare(s[2:4])
	if !ok {
		return Move{}, fmt.Errorf("%w: bad destination in %q", ErrBadMove, s)
	}
	mv := Move{From: from, To: to, Promo: chess.NoPieceType}
	if len(s) == 5 {
		promo, ok := promotions[s[4]]
		if !ok {
			return Move{}, fmt.Errorf("%w: bad promotion in %q", ErrBadMove, s)
		}
		mv.Promo = promo
	}
	return mv, nil
}

func parseSquare(s string) (chess.Square, bool) {
	f, r := s[0], s[1]
	if f < 'a' || f > 'h' || r < '1' || r > '8' {
		return chess.NoSquare, false
	}
	return getSquare(chess.File(f-'a'), chess.Rank(r-'1')), true
}

func (m Move) String() string {
	s := m.From.String() + m.To.String()
	for c, p := range promotions {
		if p == m.Promo {
			s += string(c)
		}
	}
	return s
}

func moveOf(cm *chess.Move) Move {
	return Move{From: cm.S1(), To: cm.S2(), Promo: cm.Promo()}
}
