package client

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"

	"github.com/jankenwars/server/events"
	"github.com/jankenwars/server/game"
)

type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateInLobby      State = "IN_LOBBY"
	StateInGame       State = "IN_GAME"
	StateSpectating   State = "SPECTATING"
	StateGameOver     State = "GAME_OVER"
)

// DeriveOfferedPiece draws the piece offered to the player for this turn:
// a uniform pick over the non-special piece types that still have stock.
// Purely cosmetic input affordance; the draw is never sent to the server.
// Returns Empty when nothing combat-capable remains.
func DeriveOfferedPiece(inv game.Inventory, rng *rand.Rand) game.Piece {
	avail := make([]game.Piece, 0, len(game.CombatPieces))
	for _, p := range game.CombatPieces {
		if inv[p] > 0 {
			avail = append(avail, p)
		}
	}
	if len(avail) == 0 {
		return game.Empty
	}
	return avail[rng.Intn(len(avail))]
}

// Machine is the client-side synchronization state machine. It holds a
// read-only mirror of the authoritative state: every server snapshot
// replaces the local one wholesale, never merges into it, and no local
// move is applied before the server echoes it back.
type Machine struct {
	mu sync.Mutex

	state        State
	username     string
	roomID       string
	sessionToken string
	playerNumber int
	roster       events.Roster
	game         *game.GameState

	offered         game.Piece
	specialOverride bool

	opponentLeft bool
	lastError    string

	rng *rand.Rand
}

func NewMachine(username string, rng *rand.Rand) *Machine {
	return &Machine{
		state:    StateDisconnected,
		username: username,
		rng:      rng,
	}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Game returns the current local mirror of the authoritative state.
func (m *Machine) Game() *game.GameState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.game
}

func (m *Machine) Roster() events.Roster {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roster
}

func (m *Machine) RoomID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roomID
}

// SessionToken returns the seat credential to present on reconnect.
func (m *Machine) SessionToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionToken
}

func (m *Machine) PlayerNumber() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playerNumber
}

// LastError returns the most recent rejection message from the server.
func (m *Machine) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}

// OpponentLeft reports whether the game ended by opponent departure rather
// than alignment or draw.
func (m *Machine) OpponentLeft() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opponentLeft
}

func (m *Machine) tag() game.Player {
	if m.playerNumber == 1 {
		return game.Player1
	}
	return game.Player2
}

// MyTurn reports whether the local player is to move.
func (m *Machine) MyTurn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.myTurnLocked()
}

func (m *Machine) myTurnLocked() bool {
	return m.state == StateInGame &&
		m.game != nil &&
		m.game.GamePhase == game.PhaseSelectingCell &&
		m.game.CurrentPlayer == m.tag()
}

// OfferedPiece returns the piece currently offered for this turn: the
// random draw, or SPECIAL while the manual override is active.
func (m *Machine) OfferedPiece() game.Piece {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.specialOverride {
		return game.Special
	}
	return m.offered
}

// SelectSpecial overrides the random draw with the special piece, if any
// remain. CancelSpecial restores the draw.
func (m *Machine) SelectSpecial() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.myTurnLocked() || m.game.InventoryOf(m.tag())[game.Special] <= 0 {
		return false
	}
	m.specialOverride = true
	return true
}

func (m *Machine) CancelSpecial() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.specialOverride = false
}

// Connecting and Connected move through the transport-level states.
func (m *Machine) Connecting() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateConnecting
}

func (m *Machine) Connected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateConnected
}

// Disconnected records a transport drop. Room identity and the session
// token are kept so the seat can be reclaimed on reconnect.
func (m *Machine) Disconnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateDisconnected
	m.offered = game.Empty
	m.specialOverride = false
}

// HandleEvent applies one server-pushed event. Snapshots replace local
// state; errors are recorded without touching the mirror, leaving the last
// known-good snapshot in place.
func (m *Machine) HandleEvent(event string, data json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch event {
	case events.RoomCreated, events.RoomJoined:
		var p events.RoomStatePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		m.roomID = p.RoomID
		m.roster = p.Roster
		if p.PlayerNumber != 0 {
			m.playerNumber = p.PlayerNumber
		}
		if p.SessionToken != "" {
			m.sessionToken = p.SessionToken
		}
		m.replaceSnapshot(p.GameState)
		m.stateFromSnapshot(StateInLobby)

	case events.RoomJoinedSpectator:
		var p events.RoomStatePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		m.roomID = p.RoomID
		m.roster = p.Roster
		m.playerNumber = 0
		m.replaceSnapshot(p.GameState)
		m.state = StateSpectating

	case events.RoomPlayerJoined, events.RoomPlayerLeft, events.RoomPlayerReady:
		var p events.Roster
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		m.roster = p

	case events.GameStart, events.GameRematchInitiated:
		var p events.GameStartPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		m.roster = p.Roster
		m.opponentLeft = false
		m.replaceSnapshot(p.GameState)
		if m.state != StateSpectating {
			m.stateFromSnapshot(StateInLobby)
		}

	case events.GameStateUpdate:
		var p events.StateUpdatePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		m.replaceSnapshot(p.GameState)
		if m.state != StateSpectating {
			m.stateFromSnapshot(StateInGame)
		}

	case events.GameOpponentLeft:
		var p events.OpponentLeftPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		m.roster = p.Roster
		m.opponentLeft = true
		m.replaceSnapshot(p.GameState)
		if m.state != StateSpectating {
			m.state = StateGameOver
		}

	case events.MatchmakingMatched:
		var p events.MatchedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		m.roomID = p.RoomID
		m.roster = p.Roster
		m.playerNumber = p.PlayerNumber
		m.sessionToken = p.SessionToken
		m.state = StateInLobby

	case events.MatchmakingWaiting, events.MatchmakingCancelled:
		// Queue status only; no local state to mirror.

	case events.Error, events.GameError:
		var p events.ErrorPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		m.lastError = p.Message

	default:
		return fmt.Errorf("unknown event %q", event)
	}
	return nil
}

// replaceSnapshot swaps in a new authoritative snapshot and re-derives the
// offered piece. Nil leaves the previous snapshot (roster-only events and
// lobby payloads carry no state).
func (m *Machine) replaceSnapshot(gs *game.GameState) {
	if gs == nil {
		return
	}
	wasMyTurn := m.game != nil &&
		m.game.GamePhase == game.PhaseSelectingCell &&
		m.game.CurrentPlayer == m.tag()
	m.game = gs

	myTurn := m.playerNumber != 0 &&
		gs.GamePhase == game.PhaseSelectingCell &&
		gs.CurrentPlayer == m.tag()
	if myTurn && (!wasMyTurn || m.offered == game.Empty || m.offered == "") {
		m.offered = DeriveOfferedPiece(gs.InventoryOf(m.tag()), m.rng)
		m.specialOverride = false
	}
	if !myTurn {
		m.offered = game.Empty
		m.specialOverride = false
	}
}

// stateFromSnapshot derives the connection state from the current snapshot
// phase, defaulting to fallback when no game is attached.
func (m *Machine) stateFromSnapshot(fallback State) {
	if m.game == nil {
		m.state = fallback
		return
	}
	switch m.game.GamePhase {
	case game.PhaseSelectingCell:
		m.state = StateInGame
	case game.PhaseGameOver:
		m.state = StateGameOver
	default:
		m.state = StateInLobby
	}
}
