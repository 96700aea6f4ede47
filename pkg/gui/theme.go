package gui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/notnil/chess"
)

// Theme is used for coloring the board
type Theme struct {
	Name          string
	SquareDark    tcell.Color
	SquareLight   tcell.Color
	SquareHigh    tcell.Color
	SquareTarget  tcell.Color
	SquarePending tcell.Color
	White         tcell.Color
	Black         tcell.Color
	Label         tcell.Color
	Msg           tcell.Color
}

// ThemeBasic is the default theme
var ThemeBasic = Theme{
	"basic",          // Name
	tcell.Color188,   // SquareDark
	tcell.Color230,   // SquareLight
	tcell.Color226,   // SquareHigh
	tcell.Color223,   // SquareTarget
	tcell.Color117,   // SquarePending
	tcell.Color232,   // White
	tcell.Color232,   // Black
	tcell.Color247,   // Label
	tcell.Color160,   // Msg
}

var ThemeClassic = Theme{
	"classic",
	tcell.ColorGreen,
	tcell.ColorBlue,
	tcell.ColorRed,
	tcell.ColorYellow,
	tcell.ColorTeal,
	tcell.ColorWhite,
	tcell.ColorBlack,
	tcell.ColorGray,
	tcell.ColorRed,
}

var themes = []Theme{ThemeBasic, ThemeClassic}

// ThemeByName looks up one of the built-in themes.
func ThemeByName(name string) (Theme, error) {
	for _, t := range themes {
		if t.Name == name {
			return t, nil
		}
	}
	return Theme{}, fmt.Errorf("theme: no theme named %q", name)
}

func (t Theme) squareBg(sq chess.Square) tcell.Color {
	if (int(sq.File())+int(sq.Rank()))%2 == 0 {
		return t.SquareDark
	}
	return t.SquareLight
}

func (t Theme) pieceFg(p chess.Piece) tcell.Color {
	if p.Color() == chess.White {
		return t.White
	}
	return t.Black
}
