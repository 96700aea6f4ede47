package pkg

import (
	"sync/atomic"
)

// MatchMetrics counts what the authority did for one match.
type MatchMetrics struct {
	Connections    int64
	Disconnections int64
	MovesAccepted  int64
	WrongTurn      int64
	NotAPlayer     int64
	IllegalMoves   int64
	BadMoves       int64
	AfterGameOver  int64
	Resyncs        int64
	SlowConsumers  int64
}

func (m *MatchMetrics) IncConnections()    { atomic.AddInt64(&m.Connections, 1) }
func (m *MatchMetrics) IncDisconnections() { atomic.AddInt64(&m.Disconnections, 1) }
func (m *MatchMetrics) IncAccepted()       { atomic.AddInt64(&m.MovesAccepted, 1) }
func (m *MatchMetrics) IncResyncs()        { atomic.AddInt64(&m.Resyncs, 1) }
func (m *MatchMetrics) IncSlowConsumers()  { atomic.AddInt64(&m.SlowConsumers, 1) }

// IncRejected files a rejection under its reason.
func (m *MatchMetrics) IncRejected(reason string) {
	switch reason {
	case ReasonWrongTurn:
		atomic.AddInt64(&m.WrongTurn, 1)
	case ReasonNotAPlayer:
		atomic.AddInt64(&m.NotAPlayer, 1)
	case ReasonBadMove:
		atomic.AddInt64(&m.BadMoves, 1)
	case ReasonGameOver:
		atomic.AddInt64(&m.AfterGameOver, 1)
	default:
		atomic.AddInt64(&m.IllegalMoves, 1)
	}
}

// Snapshot returns a copy suitable for JSON output.
func (m *MatchMetrics) Snapshot() map[string]any {
	return map[string]any{
		"connections":     atomic.LoadInt64(&m.Connections),
		"disconnections":  atomic.LoadInt64(&m.Disconnections),
		"moves_accepted":  atomic.LoadInt64(&m.MovesAccepted),
		"wrong_turn":      atomic.LoadInt64(&m.WrongTurn),
		"not_a_player":    atomic.LoadInt64(&m.NotAPlayer),
		"illegal_moves":   atomic.LoadInt64(&m.IllegalMoves),
		"bad_moves":       atomic.LoadInt64(&m.BadMoves),
		"after_game_over": atomic.LoadInt64(&m.AfterGameOver),
		"resyncs":         atomic.LoadInt64(&m.Resyncs),
		"slow_consumers":  atomic.LoadInt64(&m.SlowConsumers),
	}
}
