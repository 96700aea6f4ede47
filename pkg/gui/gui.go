package gui

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/notnil/chess"
	"github.com/rivo/tview"

	"github.com/qnkhuat/chessrelay/pkg"
)

// UI is the terminal front end of a client: a tview table for the board and a
// couple of text views for status and notices.
type UI struct {
	App    *tview.Application
	Board  *tview.Table
	Status *tview.TextView
	Notice *tview.TextView
	Layout *tview.Grid

	client *pkg.Client
	theme  Theme

	// only touched from the tview event loop
	selecting     bool
	lastSelection chess.Square
	targets       map[chess.Square]bool
	notice        string
}

func New(cl *pkg.Client, theme Theme) *UI {
	ui := &UI{
		App:     tview.NewApplication(),
		Board:   tview.NewTable(),
		Status:  tview.NewTextView(),
		Notice:  tview.NewTextView(),
		client:  cl,
		theme:   theme,
		targets: make(map[chess.Square]bool),
	}

	help := tview.NewTextView().
		SetText("enter: pick piece / drop piece    esc: quit")
	help.SetTextColor(theme.Label)
	ui.Notice.SetTextColor(theme.Msg)

	ui.Layout = tview.NewGrid().
		SetRows(1, 10, 2, 1).
		SetColumns(30, -1).
		AddItem(ui.Status, 0, 0, 1, 2, 0, 0, false).
		AddItem(ui.Board, 1, 0, 1, 1, 0, 0, true).
		AddItem(ui.Notice, 2, 0, 1, 2, 0, 0, false).
		AddItem(help, 3, 0, 1, 2, 0, 0, false)

	ui.Board.SetSelectable(true, true)
	ui.Board.Select(numrows-1, 1).SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEscape {
			ui.App.Stop()
		}
	}).SetSelectedFunc(ui.selected)

	cl.OnUpdate(func() {
		ui.App.QueueUpdateDraw(ui.render)
	})
	return ui
}

// Run blocks until the user quits or the connection drops.
func (ui *UI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 1)
	go func() {
		err := ui.client.Run(ctx)
		errs <- err
		ui.App.Stop()
	}()

	ui.render()
	if err := ui.App.SetRoot(ui.Layout, true).EnableMouse(true).Run(); err != nil {
		return err
	}
	cancel()
	ui.client.Disconnect()
	select {
	case err := <-errs:
		return err
	default:
		return nil
	}
}

func (ui *UI) selected(row, col int) {
	if row >= numrows || col == 0 {
		return
	}
	sq := SquareAt(row, col-1, ui.client.Role())
	ui.notice = ""

	if !ui.selecting {
		if !ui.client.CanDrag(sq) {
			ui.render()
			return
		}
		ui.selecting = true
		ui.lastSelection = sq
		for _, mv := range ui.client.LegalMovesFrom(sq) {
			ui.targets[mv.To] = true
		}
		ui.render()
		return
	}

	from := ui.lastSelection
	ui.clearSelection()
	if sq == from {
		ui.render()
		return
	}
	if err := ui.client.Propose(pkg.Move{From: from, To: sq}); err != nil {
		pkg.Log.Debugw("move not proposed", "from", from.String(), "to", sq.String(), "err", err)
		ui.notice = fmt.Sprintf("%s%s: %s", from, sq, err)
	}
	ui.render()
}

func (ui *UI) clearSelection() {
	ui.selecting = false
	ui.lastSelection = chess.NoSquare
	ui.targets = make(map[chess.Square]bool)
}
