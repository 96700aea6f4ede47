package pkg

import (
	"github.com/notnil/chess"
)

const (
	numrows = 8
	numcols = 8
)

// A1 is square 0, H8 is square 63.
func getSquare(f chess.File, r chess.Rank) chess.Square {
	return chess.Square((int(r) * numcols) + int(f))
}

func GameFromFEN(gamefen string) (*chess.Game, error) {
	fen, err := chess.FEN(gamefen)
	if err != nil {
		return nil, err
	}
	return chess.NewGame(fen, chess.UseNotation(chess.UCINotation{})), nil
}

func colorToRole(c chess.Color) Role {
	switch c {
	case chess.White:
		return White
	case chess.Black:
		return Black
	default:
		return Unknown
	}
}
