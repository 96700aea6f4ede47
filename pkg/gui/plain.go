package gui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/notnil/chess"

	"github.com/qnkhuat/chessrelay/pkg"
)

var (
	lightSquare = color.New(color.BgHiWhite, color.FgBlack)
	darkSquare  = color.New(color.BgWhite, color.FgBlack)
	pendingSq   = color.New(color.BgCyan, color.FgBlack)
	labelColor  = color.New(color.FgHiBlack)
	noticeColor = color.New(color.FgRed)
)

// PrintBoard writes the position as seen from role. Squares touched by
// pending are highlighted.
func PrintBoard(w io.Writer, view *pkg.Engine, role pkg.Role, pending *pkg.Move) {
	for r := 0; r < numrows; r++ {
		labelColor.Fprintf(w, "%s ", SquareAt(r, 0, role).Rank())
		for f := 0; f < numcols; f++ {
			sq := SquareAt(r, f, role)
			c := lightSquare
			if (int(sq.File())+int(sq.Rank()))%2 == 0 {
				c = darkSquare
			}
			if pending != nil && (sq == pending.From || sq == pending.To) {
				c = pendingSq
			}
			text := "  "
			if p := view.Piece(sq); p != chess.NoPiece {
				text = p.String() + " "
			}
			c.Fprint(w, text)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprint(w, "  ")
	for f := 0; f < numcols; f++ {
		labelColor.Fprintf(w, "%s ", SquareAt(0, f, role).File())
	}
	fmt.Fprintln(w)
}

// RunPlain is the line oriented client used when stdout is not a terminal.
// It prints the board after every update and reads moves like "e2e4" from in.
func RunPlain(ctx context.Context, cl *pkg.Client, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	draw := func() {
		mu.Lock()
		defer mu.Unlock()
		var pending *pkg.Move
		if mv, ok := cl.Pending(); ok {
			pending = &mv
		}
		PrintBoard(out, cl.Display(), cl.Role(), pending)
		fmt.Fprintln(out, StatusLine(cl.Session))
		if err := cl.LastRejection(); err != nil {
			noticeColor.Fprintf(out, "rejected %s\n", err)
		}
	}
	cl.OnUpdate(draw)

	errs := make(chan error, 1)
	go func() {
		errs <- cl.Run(ctx)
	}()

	lines := make(chan string)
	go readLines(ctx, in, lines)

	for {
		select {
		case err := <-errs:
			return err
		case line, ok := <-lines:
			if !ok {
				cancel()
				return <-errs
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if err := proposeLine(cl, line); err != nil {
				mu.Lock()
				noticeColor.Fprintf(out, "%s: %s\n", line, err)
				mu.Unlock()
				continue
			}
			draw()
		}
	}
}

// readLines sends every line of in to lines and closes it at EOF. It gives up
// as soon as ctx ends, even with a line nobody received.
func readLines(ctx context.Context, in io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}

func proposeLine(cl *pkg.Client, line string) error {
	mv, err := pkg.ParseMove(line)
	if err != nil {
		return err
	}
	return cl.Propose(mv)
}
