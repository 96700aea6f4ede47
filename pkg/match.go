package pkg

import (
	"errors"
	"sync"
	"time"
)

// Match is the authority for one game. It owns the only mutable position and
// serializes every connect, disconnect and move under one lock, so a move is
// validated, applied and broadcast as a single step.
type Match struct {
	ID      string
	Metrics *MatchMetrics

	mu         sync.Mutex
	engine     *Engine
	ply        int
	players    map[string]*Player
	seats      [2]*Player // indexed by White, Black
	lastActive time.Time
}

func NewMatch(id string) *Match {
	return &Match{
		ID:         id,
		Metrics:    &MatchMetrics{},
		engine:     NewEngine(),
		players:    make(map[string]*Player),
		lastActive: time.Now(),
	}
}

// Connect seats p as White, then Black, then Spectator, and sends it its role
// followed by a snapshot. Nobody else hears about it.
func (m *Match) Connect(p *Player) Role {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.seats[White] == nil:
		p.Role = White
		m.seats[White] = p
	case m.seats[Black] == nil:
		p.Role = Black
		m.seats[Black] = p
	default:
		p.Role = Spectator
	}
	m.players[p.ID] = p
	m.lastActive = time.Now()
	m.Metrics.IncConnections()

	Log.Infow("player connected", "match", m.ID, "player", p.Name, "role", p.Role)

	m.sendLocked(p, MessageRole{Role: p.Role, Name: p.Name})
	m.sendLocked(p, m.snapshotLocked())
	return p.Role
}

// Disconnect frees p's seat. The position is left as it is.
func (m *Match) Disconnect(p *Player) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(p)
}

func (m *Match) removeLocked(p *Player) {
	if _, ok := m.players[p.ID]; !ok {
		return
	}
	delete(m.players, p.ID)
	if p.Role.IsPlayer() && m.seats[p.Role] == p {
		m.seats[p.Role] = nil
	}
	m.lastActive = time.Now()
	m.Metrics.IncDisconnections()
	Log.Infow("player disconnected", "match", m.ID, "player", p.Name, "role", p.Role)
}

// Submit validates and applies a move on behalf of p. On success the move is
// broadcast to every connection, the mover included. On failure nothing changes
// and only p is told why.
func (m *Match) Submit(p *Player, move string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastActive = time.Now()
	applied, err := m.applyLocked(p, move)
	if err != nil {
		reason := ReasonOf(err)
		m.Metrics.IncRejected(reason)
		Log.Infow("move rejected", "match", m.ID, "player", p.Name, "role", p.Role,
			"move", move, "reason", reason, "ply", m.ply)
		m.sendLocked(p, MessageReject{Move: move, Reason: reason, Ply: m.ply})
		return err
	}

	m.ply++
	m.Metrics.IncAccepted()
	broadcast := MessageMove{
		Move:    applied.String(),
		Ply:     m.ply,
		Outcome: m.engine.Outcome(),
		Method:  m.engine.Method(),
	}
	Log.Infow("move accepted", "match", m.ID, "player", p.Name, "role", p.Role,
		"move", broadcast.Move, "ply", m.ply, "outcome", broadcast.Outcome)
	m.broadcastLocked(broadcast)
	return nil
}

func (m *Match) applyLocked(p *Player, move string) (Move, error) {
	if _, ok := m.players[p.ID]; !ok || !p.Role.IsPlayer() {
		return Move{}, ErrNotAPlayer
	}
	if m.engine.Terminal() {
		return Move{}, ErrGameOver
	}
	if p.Role != m.engine.Turn() {
		return Move{}, ErrWrongTurn
	}
	mv, err := ParseMove(move)
	if err != nil {
		return Move{}, err
	}
	return m.engine.Apply(mv)
}

func (m *Match) touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActive = time.Now()
}

// Resync sends p a fresh snapshot.
func (m *Match) Resync(p *Player) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Metrics.IncResyncs()
	Log.Infow("resync requested", "match", m.ID, "player", p.Name, "ply", m.ply)
	m.sendLocked(p, m.snapshotLocked())
}

// Snapshot returns the authoritative state by value.
func (m *Match) Snapshot() MessageGame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Match) snapshotLocked() MessageGame {
	return MessageGame{
		Fen:     m.engine.FEN(),
		Ply:     m.ply,
		Outcome: m.engine.Outcome(),
		Method:  m.engine.Method(),
	}
}

// Seat returns the connection currently holding role, if any.
func (m *Match) Seat(role Role) *Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !role.IsPlayer() {
		return nil
	}
	return m.seats[role]
}

func (m *Match) NumPlayers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.players)
}

// Idle reports whether nobody is connected and nothing happened since cutoff.
func (m *Match) Idle(cutoff time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.players) == 0 && m.lastActive.Before(cutoff)
}

// Close disconnects everyone.
func (m *Match) Close() {
	m.mu.Lock()
	players := make([]*Player, 0, len(m.players))
	for _, p := range m.players {
		players = append(players, p)
	}
	m.mu.Unlock()

	for _, p := range players {
		m.Disconnect(p)
		p.Disconnect()
	}
}

func (m *Match) broadcastLocked(msg MessageInterface) {
	for _, p := range m.players {
		m.sendLocked(p, msg)
	}
}

// sendLocked drops connections that cannot keep up rather than stall the match.
func (m *Match) sendLocked(p *Player, msg MessageInterface) {
	err := p.Send(msg)
	if err == nil {
		return
	}
	if errors.Is(err, ErrQueueFull) {
		m.Metrics.IncSlowConsumers()
		Log.Warnw("dropping slow connection", "match", m.ID, "player", p.Name, "role", p.Role)
	}
	m.removeLocked(p)
	p.Disconnect()
}
