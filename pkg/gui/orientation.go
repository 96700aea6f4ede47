package gui

import (
	"github.com/notnil/chess"

	"github.com/qnkhuat/chessrelay/pkg"
)

const (
	numrows = 8
	numcols = 8
)

// SquareAt maps a display cell to a board square. Row 0 is the top of the
// screen and col 0 the left edge. Black sees the board rotated half a turn;
// the squares themselves never change.
func SquareAt(row, col int, role pkg.Role) chess.Square {
	rank := numrows - row - 1
	file := col
	if role == pkg.Black {
		rank = row
		file = numcols - col - 1
	}
	return chess.Square(rank*numcols + file)
}

// CellOf is the inverse of SquareAt.
func CellOf(sq chess.Square, role pkg.Role) (row, col int) {
	rank, file := int(sq.Rank()), int(sq.File())
	if role == pkg.Black {
		return rank, numcols - file - 1
	}
	return numrows - rank - 1, file
}
