package rooms

import (
	"sort"
	"time"

	"github.com/jankenwars/server/events"
	"github.com/jankenwars/server/game"
)

// PlayerSlot is one seat in a room. The slot survives a disconnect (with
// Connected=false) so the seat can be reclaimed by session token; it is
// removed only on a voluntary leave.
type PlayerSlot struct {
	SocketID     string
	Username     string
	Ready        bool
	PlayerNumber int
	SessionToken string
	Connected    bool
}

// Tag returns the game-level player identity for this seat.
func (s *PlayerSlot) Tag() game.Player {
	if s.PlayerNumber == 1 {
		return game.Player1
	}
	return game.Player2
}

// Room is a single match: up to two seated players plus any number of
// spectators.
type Room struct {
	ID              string
	Players         map[string]*PlayerSlot // keyed by socket id
	GameState       *game.GameState
	InProgress      bool
	Spectators      []string
	CreatedAt       time.Time
	LastActivity    time.Time
	PendingDeletion *time.Time
}

func newRoom(id string, now time.Time) *Room {
	return &Room{
		ID:           id,
		Players:      make(map[string]*PlayerSlot, 2),
		CreatedAt:    now,
		LastActivity: now,
	}
}

// orderedSlots returns the seats sorted by player number.
func (r *Room) orderedSlots() []*PlayerSlot {
	slots := make([]*PlayerSlot, 0, len(r.Players))
	for _, s := range r.Players {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].PlayerNumber < slots[j].PlayerNumber
	})
	return slots
}

func (r *Room) slotBySocket(socketID string) *PlayerSlot {
	return r.Players[socketID]
}

func (r *Room) connectedPlayers() int {
	n := 0
	for _, s := range r.Players {
		if s.Connected {
			n++
		}
	}
	return n
}

// freePlayerNumber returns the lowest unclaimed seat number, or 0 if both
// seats are taken (connected or not).
func (r *Room) freePlayerNumber() int {
	taken := map[int]bool{}
	for _, s := range r.Players {
		taken[s.PlayerNumber] = true
	}
	for n := 1; n <= 2; n++ {
		if !taken[n] {
			return n
		}
	}
	return 0
}

// occupied reports whether anyone is still attached to the room.
func (r *Room) occupied() bool {
	return r.connectedPlayers() > 0 || len(r.Spectators) > 0
}

// memberSockets lists every socket that should receive room broadcasts:
// connected players and spectators alike.
func (r *Room) memberSockets() []string {
	out := make([]string, 0, len(r.Players)+len(r.Spectators))
	for _, s := range r.orderedSlots() {
		if s.Connected {
			out = append(out, s.SocketID)
		}
	}
	out = append(out, r.Spectators...)
	return out
}

func (r *Room) removeSpectator(socketID string) bool {
	for i, id := range r.Spectators {
		if id == socketID {
			r.Spectators = append(r.Spectators[:i], r.Spectators[i+1:]...)
			return true
		}
	}
	return false
}

// roster builds the broadcastable view of the room's occupants.
func (r *Room) roster() events.Roster {
	roster := events.Roster{
		RoomID:     r.ID,
		Players:    make([]events.PlayerInfo, 0, len(r.Players)),
		Spectators: len(r.Spectators),
	}
	for _, s := range r.orderedSlots() {
		roster.Players = append(roster.Players, events.PlayerInfo{
			Username:     s.Username,
			Ready:        s.Ready,
			PlayerNumber: s.PlayerNumber,
			Connected:    s.Connected,
		})
	}
	return roster
}

// readyToStart is the game-start condition, re-evaluated after every join,
// ready toggle, and rejoin: two seated, connected players, all ready, and
// no game already running.
func (r *Room) readyToStart() bool {
	if r.InProgress || len(r.Players) != 2 {
		return false
	}
	// A finished game never restarts on its own; only an explicit rematch
	// resets the state back to READY.
	if r.GameState != nil && r.GameState.GamePhase != game.PhaseReady {
		return false
	}
	for _, s := range r.Players {
		if !s.Ready || !s.Connected {
			return false
		}
	}
	return true
}
