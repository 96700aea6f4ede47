package pkg

import (
	"fmt"

	"github.com/notnil/chess"
)

const OutcomeNone = string(chess.NoOutcome)

// Engine is the rules engine seen by the authority and by every client session.
// Legality, check, mate and draw detection are delegated to notnil/chess.
type Engine struct {
	game *chess.Game
}

func NewEngine() *Engine {
	return &Engine{game: chess.NewGame(chess.UseNotation(chess.UCINotation{}))}
}

func EngineFromFEN(fen string) (*Engine, error) {
	game, err := GameFromFEN(fen)
	if err != nil {
		return nil, err
	}
	return &Engine{game: game}, nil
}

// FEN is the canonical serialized position.
func (e *Engine) FEN() string {
	return e.game.Position().String()
}

// Turn is the side to move.
func (e *Engine) Turn() Role {
	return colorToRole(e.game.Position().Turn())
}

// Load replaces the position wholesale. History is discarded.
func (e *Engine) Load(fen string) error {
	game, err := GameFromFEN(fen)
	if err != nil {
		return err
	}
	e.game = game
	return nil
}

// Apply plays mv if it is legal in the current position and returns the move in
// canonical form. A missing promotion piece on a promoting move becomes a queen.
func (e *Engine) Apply(mv Move) (Move, error) {
	if e.Terminal() {
		return Move{}, fmt.Errorf("%w: %s", ErrGameOver, e.game.Method())
	}
	var candidate *chess.Move
	for _, vm := range e.game.ValidMoves() {
		if vm.S1() != mv.From || vm.S2() != mv.To {
			continue
		}
		if vm.Promo() == mv.Promo {
			candidate = vm
			break
		}
		if mv.Promo == chess.NoPieceType && vm.Promo() == chess.Queen {
			candidate = vm
		}
	}
	if candidate == nil {
		return Move{}, fmt.Errorf("%w: %s", ErrIllegalMove, mv)
	}
	if err := e.game.Move(candidate); err != nil {
		return Move{}, fmt.Errorf("%w: %s: %v", ErrIllegalMove, mv, err)
	}
	return moveOf(candidate), nil
}

// LegalMovesFrom lists the legal moves whose origin is sq.
func (e *Engine) LegalMovesFrom(sq chess.Square) []Move {
	var moves []Move
	for _, vm := range e.game.ValidMoves() {
		if vm.S1() == sq {
			moves = append(moves, moveOf(vm))
		}
	}
	return moves
}

// IsLegal reports whether mv could be applied without applying it.
func (e *Engine) IsLegal(mv Move) bool {
	if e.Terminal() {
		return false
	}
	for _, vm := range e.game.ValidMoves() {
		if vm.S1() != mv.From || vm.S2() != mv.To {
			continue
		}
		if vm.Promo() == mv.Promo || (mv.Promo == chess.NoPieceType && vm.Promo() == chess.Queen) {
			return true
		}
	}
	return false
}

func (e *Engine) Piece(sq chess.Square) chess.Piece {
	return e.game.Position().Board().Piece(sq)
}

// Outcome is "*" while the game runs, otherwise "1-0", "0-1" or "1/2-1/2".
func (e *Engine) Outcome() string {
	return string(e.game.Outcome())
}

// Method names the terminal condition, empty while the game runs.
func (e *Engine) Method() string {
	if e.game.Method() == chess.NoMethod {
		return ""
	}
	return e.game.Method().String()
}

func (e *Engine) Terminal() bool {
	return e.game.Outcome() != chess.NoOutcome
}

// Clone copies the position. The copy does not share history with e.
func (e *Engine) Clone() *Engine {
	c, err := EngineFromFEN(e.FEN())
	if err != nil {
		// FEN produced by the engine itself always parses.
		panic(err)
	}
	return c
}
