package rooms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jankenwars/server/events"
	"github.com/jankenwars/server/game"
)

func movePayload(roomID string, row, col int, piece game.Piece) events.MovePayload {
	return events.MovePayload{
		RoomID:   roomID,
		Position: game.Position{Row: row, Col: col},
		Piece:    piece,
	}
}

func TestHandleMoveUnknownRoom(t *testing.T) {
	reg, n := newTestRegistry()
	reg.HandleMove("s1", movePayload("ZZZZZZ", 0, 0, game.Rock))
	ev, ok := n.last("s1", events.GameError)
	require.True(t, ok)
	assert.Equal(t, "Room not found", ev.Data.(events.ErrorPayload).Message)
}

func TestHandleMoveRoomNotInProgress(t *testing.T) {
	reg, n := newTestRegistry()
	roomID := reg.CreateRoom("s1", "alice")
	reg.HandleMove("s1", movePayload(roomID, 0, 0, game.Rock))
	ev, ok := n.last("s1", events.GameError)
	require.True(t, ok)
	assert.Equal(t, "Game is not in progress", ev.Data.(events.ErrorPayload).Message)
}

func TestHandleMoveSpectatorRejected(t *testing.T) {
	reg, n := newTestRegistry()
	roomID := readiedRoom(t, reg, n)
	reg.JoinRoom("s3", "carol", roomID, "")

	reg.HandleMove("s3", movePayload(roomID, 0, 0, game.Rock))
	ev, ok := n.last("s3", events.GameError)
	require.True(t, ok)
	assert.Equal(t, "You are not a player in this room", ev.Data.(events.ErrorPayload).Message)
	// Nobody else heard about it.
	assert.Zero(t, n.count("s1", events.GameStateUpdate))
	assert.Zero(t, n.count("s2", events.GameStateUpdate))
}

func TestHandleMoveBroadcastsToEveryone(t *testing.T) {
	reg, n := newTestRegistry()
	roomID := readiedRoom(t, reg, n)

	reg.HandleMove("s1", movePayload(roomID, 0, 0, game.Rock))

	for _, sock := range []string{"s1", "s2"} {
		ev, ok := n.last(sock, events.GameStateUpdate)
		require.True(t, ok)
		payload := ev.Data.(events.StateUpdatePayload)
		require.NotNil(t, payload.MoveDetails)
		assert.Equal(t, game.Player1, payload.MoveDetails.Player)
		assert.Equal(t, game.Rock, payload.MoveDetails.Piece)
		assert.False(t, payload.MoveDetails.Captured)
		assert.Equal(t, game.Player2, payload.GameState.CurrentPlayer)
		assert.Equal(t, 6, payload.GameState.Player1Inventory[game.Rock])
	}
}

// Two moves racing for the same turn: the event arriving second hits the
// turn check and bounces, and exactly one mutation happens.
func TestHandleMoveNearSimultaneousSubmission(t *testing.T) {
	reg, n := newTestRegistry()
	roomID := readiedRoom(t, reg, n)

	reg.HandleMove("s1", movePayload(roomID, 0, 0, game.Rock))
	reg.HandleMove("s1", movePayload(roomID, 1, 1, game.Rock))

	ev, ok := n.last("s1", events.GameError)
	require.True(t, ok)
	assert.Equal(t, game.ErrNotYourTurn.Error(), ev.Data.(events.ErrorPayload).Message)

	assert.Equal(t, 1, n.count("s1", events.GameStateUpdate))
	assert.Equal(t, 1, n.count("s2", events.GameStateUpdate))
	assert.Zero(t, n.count("s2", events.GameError))

	upd, _ := n.last("s2", events.GameStateUpdate)
	gs := upd.Data.(events.StateUpdatePayload).GameState
	assert.Equal(t, game.Empty, gs.Board[1][1].Piece, "rejected move must not touch the board")
}

func TestHandleMoveWinEndsGame(t *testing.T) {
	reg, n := newTestRegistry()
	roomID := readiedRoom(t, reg, n)

	for c := 0; c < 3; c++ {
		reg.HandleMove("s1", movePayload(roomID, 0, c, game.Rock))
		reg.HandleMove("s2", movePayload(roomID, 5, c, game.Paper))
	}
	reg.HandleMove("s1", movePayload(roomID, 0, 3, game.Rock))

	ev, ok := n.last("s2", events.GameStateUpdate)
	require.True(t, ok)
	gs := ev.Data.(events.StateUpdatePayload).GameState
	assert.Equal(t, game.PhaseGameOver, gs.GamePhase)
	assert.Equal(t, game.ResultPlayer1Win, gs.GameResult)
	assert.Len(t, gs.WinningLine, 4)

	// The finished room is no longer mid-game: late joiners still spectate
	// (the seats remain claimed) and further moves bounce.
	reg.HandleMove("s2", movePayload(roomID, 4, 4, game.Rock))
	errEv, ok := n.last("s2", events.GameError)
	require.True(t, ok)
	assert.Equal(t, "Game is not in progress", errEv.Data.(events.ErrorPayload).Message)
}

func TestRematchFlow(t *testing.T) {
	reg, n := newTestRegistry()
	roomID := readiedRoom(t, reg, n)

	// Rematch before game over is rejected.
	reg.RequestRematch("s1", roomID)
	ev, ok := n.last("s1", events.GameError)
	require.True(t, ok)
	assert.Equal(t, "Game is not over", ev.Data.(events.ErrorPayload).Message)

	for c := 0; c < 3; c++ {
		reg.HandleMove("s1", movePayload(roomID, 0, c, game.Rock))
		reg.HandleMove("s2", movePayload(roomID, 5, c, game.Paper))
	}
	reg.HandleMove("s1", movePayload(roomID, 0, 3, game.Rock))

	reg.RequestRematch("s2", roomID)
	for _, sock := range []string{"s1", "s2"} {
		ev, ok := n.last(sock, events.GameRematchInitiated)
		require.True(t, ok)
		payload := ev.Data.(events.GameStartPayload)
		assert.Equal(t, game.PhaseReady, payload.GameState.GamePhase)
		assert.Equal(t, 7, payload.GameState.Player1Inventory[game.Rock])
		for _, p := range payload.Players {
			assert.False(t, p.Ready, "rematch clears ready flags")
		}
	}

	// Normal ready/start flow resumes.
	reg.ToggleReady("s1", roomID)
	reg.ToggleReady("s2", roomID)
	startCount := n.count("s1", events.GameStart)
	assert.Equal(t, 2, startCount, "second game:start after rematch readiness")
}

func TestRematchFromNonPlayerRejected(t *testing.T) {
	reg, n := newTestRegistry()
	roomID := readiedRoom(t, reg, n)
	reg.JoinRoom("s3", "carol", roomID, "")

	reg.RequestRematch("s3", roomID)
	ev, ok := n.last("s3", events.GameError)
	require.True(t, ok)
	assert.Equal(t, "You are not a player in this room", ev.Data.(events.ErrorPayload).Message)
}
