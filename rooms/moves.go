package rooms

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jankenwars/server/events"
	"github.com/jankenwars/server/game"
)

// HandleMove is the authoritative move path. Every check runs before any
// mutation; a rejection sends a game:error to the sender only and touches
// nothing. A successful move broadcasts the full new state plus the move
// delta to every player and spectator in one message.
func (reg *Registry) HandleMove(socketID string, payload events.MovePayload) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room := reg.rooms[payload.RoomID]
	if room == nil {
		reg.notifier.SendTo(socketID, events.GameError, events.ErrorPayload{Message: "Room not found"})
		return
	}
	if !room.InProgress || room.GameState == nil {
		reg.notifier.SendTo(socketID, events.GameError, events.ErrorPayload{Message: "Game is not in progress"})
		return
	}
	slot := room.slotBySocket(socketID)
	if slot == nil {
		reg.notifier.SendTo(socketID, events.GameError, events.ErrorPayload{Message: "You are not a player in this room"})
		return
	}

	mv, err := room.GameState.ApplyMove(slot.Tag(), payload.Position, payload.Piece)
	if err != nil {
		reg.notifier.SendTo(socketID, events.GameError, events.ErrorPayload{Message: err.Error()})
		return
	}

	room.LastActivity = time.Now()
	if room.GameState.GamePhase == game.PhaseGameOver {
		room.InProgress = false
		log.Info().Str("roomID", room.ID).Str("result", string(room.GameState.GameResult)).Msg("Game over")
	}

	reg.broadcast(room, events.GameStateUpdate, events.StateUpdatePayload{
		GameState:   room.GameState,
		MoveDetails: mv,
	})
}

// RequestRematch resets a finished game back to the READY phase. The room
// then re-enters the normal ready/start flow; nothing auto-starts.
func (reg *Registry) RequestRematch(socketID, roomID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room := reg.rooms[roomID]
	if room == nil {
		reg.notifier.SendTo(socketID, events.GameError, events.ErrorPayload{Message: "Room not found"})
		return
	}
	slot := room.slotBySocket(socketID)
	if slot == nil {
		reg.notifier.SendTo(socketID, events.GameError, events.ErrorPayload{Message: "You are not a player in this room"})
		return
	}
	if room.GameState == nil || room.GameState.GamePhase != game.PhaseGameOver {
		reg.notifier.SendTo(socketID, events.GameError, events.ErrorPayload{Message: "Game is not over"})
		return
	}

	room.InProgress = false
	room.GameState = game.NewGameState()
	for _, s := range room.Players {
		s.Ready = false
	}
	room.LastActivity = time.Now()

	log.Info().Str("roomID", roomID).Str("username", slot.Username).Msg("Rematch initiated")
	reg.broadcast(room, events.GameRematchInitiated, events.GameStartPayload{
		Roster:    room.roster(),
		GameState: room.GameState,
	})
}
