package gui

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"
	"github.com/rivo/tview"

	"github.com/qnkhuat/chessrelay/pkg"
)

// render redraws every view from the client's session. Must run on the tview
// event loop.
func (ui *UI) render() {
	role := ui.client.Role()
	// a pending move or a new position invalidates the selection
	if ui.selecting && !ui.client.CanDrag(ui.lastSelection) {
		ui.clearSelection()
	}
	ui.renderBoard(ui.client.Display(), role)
	ui.Status.SetText(StatusLine(ui.client.Session))

	notice := ui.notice
	if notice == "" {
		if err := ui.client.LastRejection(); err != nil {
			notice = "rejected " + err.Error()
		}
	}
	ui.Notice.SetText(notice)
}

func (ui *UI) renderBoard(view *pkg.Engine, role pkg.Role) {
	pending, hasPending := ui.client.Pending()

	for r := 0; r <= numrows; r++ {
		for f := 0; f <= numcols; f++ {
			if f == 0 && r != numrows { // rank labels
				rank := SquareAt(r, 0, role).Rank()
				cell := tview.NewTableCell(rank.String()).
					SetAlign(tview.AlignCenter).
					SetTextColor(ui.theme.Label).
					SetSelectable(false)
				ui.Board.SetCell(r, f, cell)
				continue
			}
			if r == numrows { // file labels
				text := ""
				if f > 0 {
					text = " " + SquareAt(0, f-1, role).File().String()
				}
				cell := tview.NewTableCell(text).
					SetAlign(tview.AlignCenter).
					SetTextColor(ui.theme.Label).
					SetSelectable(false)
				ui.Board.SetCell(r, f, cell)
				continue
			}

			sq := SquareAt(r, f-1, role)
			p := view.Piece(sq)
			bg := ui.theme.squareBg(sq)
			switch {
			case ui.selecting && sq == ui.lastSelection:
				bg = ui.theme.SquareHigh
			case ui.targets[sq]:
				bg = ui.theme.SquareTarget
			case hasPending && (sq == pending.From || sq == pending.To):
				bg = ui.theme.SquarePending
			}
			text := "  "
			if p != chess.NoPiece {
				text = " " + p.String()
			}
			cell := tview.NewTableCell(text).
				SetAlign(tview.AlignCenter).
				SetBackgroundColor(bg)
			if p != chess.NoPiece {
				cell.SetTextColor(ui.theme.pieceFg(p))
			}
			ui.Board.SetCell(r, f, cell)
		}
	}
}

// StatusLine summarizes who the user is and what the match is waiting for.
func StatusLine(s *pkg.Session) string {
	var b strings.Builder
	role := s.Role()
	switch role {
	case pkg.Unknown:
		b.WriteString("connecting...")
		return b.String()
	case pkg.Spectator:
		fmt.Fprintf(&b, "Spectating as %s", s.Name())
	default:
		fmt.Fprintf(&b, "You are %s (%s)", role, s.Name())
	}

	outcome, method := s.Outcome()
	if outcome != pkg.OutcomeNone {
		fmt.Fprintf(&b, " | game over %s", outcome)
		if method != "" {
			fmt.Fprintf(&b, " by %s", method)
		}
		return b.String()
	}

	turn := s.Turn()
	if turn == role {
		b.WriteString(" | your move")
	} else {
		fmt.Fprintf(&b, " | %s to move", turn)
	}
	if _, ok := s.Pending(); ok {
		b.WriteString(" | waiting for server")
	}
	if !s.Synced() {
		b.WriteString(" | resyncing")
	}
	return b.String()
}
