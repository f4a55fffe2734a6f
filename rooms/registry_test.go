package rooms

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jankenwars/server/events"
	"github.com/jankenwars/server/game"
)

type sentEvent struct {
	SocketID string
	Event    string
	Data     any
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentEvent
}

func (f *fakeNotifier) SendTo(socketID, event string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEvent{SocketID: socketID, Event: event, Data: data})
}

// last returns the most recent event of the given name sent to socketID.
func (f *fakeNotifier) last(socketID, event string) (sentEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].SocketID == socketID && f.sent[i].Event == event {
			return f.sent[i], true
		}
	}
	return sentEvent{}, false
}

func (f *fakeNotifier) count(socketID, event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sent {
		if s.SocketID == socketID && s.Event == event {
			n++
		}
	}
	return n
}

func newTestRegistry() (*Registry, *fakeNotifier) {
	n := &fakeNotifier{}
	reg := NewRegistry(Options{
		GracePeriod: time.Minute,
		MaxLifetime: 2 * time.Hour,
		GCInterval:  time.Minute,
	}, n)
	return reg, n
}

// readiedRoom builds a started two-player room: alice on s1 as player 1,
// bob on s2 as player 2.
func readiedRoom(t *testing.T, reg *Registry, n *fakeNotifier) string {
	t.Helper()
	roomID := reg.CreateRoom("s1", "alice")
	reg.JoinRoom("s2", "bob", roomID, "")
	reg.ToggleReady("s1", roomID)
	reg.ToggleReady("s2", roomID)
	_, ok := n.last("s1", events.GameStart)
	require.True(t, ok, "game should have started")
	return roomID
}

func TestCreateRoomSeatsCreator(t *testing.T) {
	reg, n := newTestRegistry()
	roomID := reg.CreateRoom("s1", "alice")
	require.True(t, events.ValidRoomID(roomID))

	ev, ok := n.last("s1", events.RoomCreated)
	require.True(t, ok)
	payload := ev.Data.(events.RoomStatePayload)
	assert.Equal(t, roomID, payload.RoomID)
	assert.Equal(t, 1, payload.PlayerNumber)
	assert.NotEmpty(t, payload.SessionToken)
	require.Len(t, payload.Players, 1)
	assert.Equal(t, "alice", payload.Players[0].Username)
	assert.False(t, payload.Players[0].Ready)
}

func TestJoinUnknownRoom(t *testing.T) {
	reg, n := newTestRegistry()
	reg.JoinRoom("s1", "alice", "ZZZZZZ", "")
	ev, ok := n.last("s1", events.Error)
	require.True(t, ok)
	assert.Equal(t, "Room not found", ev.Data.(events.ErrorPayload).Message)
}

func TestJoinSecondPlayerAndStart(t *testing.T) {
	reg, n := newTestRegistry()
	roomID := reg.CreateRoom("s1", "alice")
	reg.JoinRoom("s2", "bob", roomID, "")

	ev, ok := n.last("s2", events.RoomJoined)
	require.True(t, ok)
	joined := ev.Data.(events.RoomStatePayload)
	assert.Equal(t, 2, joined.PlayerNumber)
	assert.NotEmpty(t, joined.SessionToken)

	// Existing member saw the roster delta.
	_, ok = n.last("s1", events.RoomPlayerJoined)
	assert.True(t, ok)

	// Both ready up; game starts with a fresh authoritative state.
	reg.ToggleReady("s1", roomID)
	_, started := n.last("s1", events.GameStart)
	assert.False(t, started, "one ready player must not start the game")
	reg.ToggleReady("s2", roomID)

	for _, sock := range []string{"s1", "s2"} {
		ev, ok := n.last(sock, events.GameStart)
		require.True(t, ok)
		start := ev.Data.(events.GameStartPayload)
		require.NotNil(t, start.GameState)
		assert.Equal(t, game.PhaseSelectingCell, start.GameState.GamePhase)
		assert.Equal(t, game.Player1, start.GameState.CurrentPlayer)
		assert.Equal(t, 7, start.GameState.Player1Inventory[game.Rock])
		assert.Equal(t, game.Empty, start.GameState.Board[0][0].Piece)
	}
}

func TestToggleReadyOffAgain(t *testing.T) {
	reg, n := newTestRegistry()
	roomID := reg.CreateRoom("s1", "alice")
	reg.ToggleReady("s1", roomID)
	reg.ToggleReady("s1", roomID)

	ev, ok := n.last("s1", events.RoomPlayerReady)
	require.True(t, ok)
	roster := ev.Data.(events.Roster)
	assert.False(t, roster.Players[0].Ready)
}

func TestSpectatorJoinsInProgressRoom(t *testing.T) {
	reg, n := newTestRegistry()
	roomID := readiedRoom(t, reg, n)

	reg.JoinRoom("s3", "carol", roomID, "")
	ev, ok := n.last("s3", events.RoomJoinedSpectator)
	require.True(t, ok)
	payload := ev.Data.(events.RoomStatePayload)
	require.NotNil(t, payload.GameState)
	assert.Equal(t, game.PhaseSelectingCell, payload.GameState.GamePhase)
	assert.Empty(t, payload.SessionToken)

	// Spectators receive subsequent state broadcasts.
	reg.HandleMove("s1", events.MovePayload{
		RoomID:   roomID,
		Position: game.Position{Row: 0, Col: 0},
		Piece:    game.Rock,
	})
	_, ok = n.last("s3", events.GameStateUpdate)
	assert.True(t, ok)
}

func TestSeatedSocketRejoinIsNotDuplicated(t *testing.T) {
	reg, n := newTestRegistry()
	roomID := reg.CreateRoom("s1", "alice")
	reg.JoinRoom("s2", "bob", roomID, "")

	created, ok := n.last("s1", events.RoomCreated)
	require.True(t, ok)
	token := created.Data.(events.RoomStatePayload).SessionToken

	// s1 re-sends the join without a token while still seated. It keeps its
	// seat and credentials instead of falling through to spectating.
	reg.JoinRoom("s1", "alice", roomID, "")

	ev, ok := n.last("s1", events.RoomJoined)
	require.True(t, ok)
	payload := ev.Data.(events.RoomStatePayload)
	assert.Equal(t, 1, payload.PlayerNumber)
	assert.Equal(t, token, payload.SessionToken)
	require.Len(t, payload.Players, 2)

	_, spectating := n.last("s1", events.RoomJoinedSpectator)
	assert.False(t, spectating, "a seated socket never becomes a spectator of its own room")

	// Single membership means single delivery of later broadcasts.
	reg.ToggleReady("s2", roomID)
	assert.Equal(t, 1, n.count("s1", events.RoomPlayerReady))
}

func TestReconnectionByToken(t *testing.T) {
	reg, n := newTestRegistry()
	roomID := reg.CreateRoom("s1", "alice")
	reg.JoinRoom("s2", "bob", roomID, "")

	ev, _ := n.last("s1", events.RoomCreated)
	token := ev.Data.(events.RoomStatePayload).SessionToken

	reg.HandleDisconnect("s1")

	// A different username cannot steal the seat without the token.
	reg.JoinRoom("s3", "alice", roomID, "wrong-token")
	_, spectator := n.last("s3", events.RoomJoinedSpectator)
	assert.True(t, spectator, "token mismatch must not reclaim the seat")

	reg.JoinRoom("s4", "alice", roomID, token)
	rejoined, ok := n.last("s4", events.RoomJoined)
	require.True(t, ok)
	payload := rejoined.Data.(events.RoomStatePayload)
	assert.Equal(t, 1, payload.PlayerNumber, "player number survives reconnection")
	assert.Equal(t, token, payload.SessionToken)

	// Seat is live again under the new socket.
	reg.ToggleReady("s4", roomID)
	_, ok = n.last("s4", events.RoomPlayerReady)
	assert.True(t, ok)
}

func TestReconnectionPreservesReadyAndRestarts(t *testing.T) {
	reg, n := newTestRegistry()
	roomID := reg.CreateRoom("s1", "alice")
	reg.JoinRoom("s2", "bob", roomID, "")
	ev, _ := n.last("s1", events.RoomCreated)
	token := ev.Data.(events.RoomStatePayload).SessionToken

	reg.ToggleReady("s1", roomID)
	reg.HandleDisconnect("s1")
	reg.ToggleReady("s2", roomID)
	_, started := n.last("s2", events.GameStart)
	assert.False(t, started, "game must not start with a disconnected seat")

	// Rejoin re-evaluates the start condition.
	reg.JoinRoom("s5", "alice", roomID, token)
	_, started = n.last("s2", events.GameStart)
	assert.True(t, started)
}

func TestDisconnectMidGameForfeits(t *testing.T) {
	reg, n := newTestRegistry()
	readiedRoom(t, reg, n)

	reg.HandleDisconnect("s1")

	ev, ok := n.last("s2", events.GameOpponentLeft)
	require.True(t, ok)
	payload := ev.Data.(events.OpponentLeftPayload)
	assert.Equal(t, "alice", payload.Username)
	require.NotNil(t, payload.GameState)
	assert.Equal(t, game.PhaseGameOver, payload.GameState.GamePhase)
	assert.Equal(t, game.ResultPlayer2Win, payload.GameState.GameResult)
	assert.Nil(t, payload.GameState.WinningLine, "forfeit is distinct from an alignment win")
}

func TestEmptyRoomDeletedAfterGrace(t *testing.T) {
	reg, n := newTestRegistry()
	readiedRoom(t, reg, n)

	reg.HandleDisconnect("s1")
	reg.HandleDisconnect("s2")
	require.Equal(t, 1, reg.RoomCount())

	// Before the grace deadline the room survives.
	reg.Sweep(time.Now().Add(30 * time.Second))
	assert.Equal(t, 1, reg.RoomCount())

	reg.Sweep(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 0, reg.RoomCount())
}

func TestRejoinCancelsPendingDeletion(t *testing.T) {
	reg, n := newTestRegistry()
	roomID := reg.CreateRoom("s1", "alice")
	ev, _ := n.last("s1", events.RoomCreated)
	token := ev.Data.(events.RoomStatePayload).SessionToken

	reg.HandleDisconnect("s1")
	reg.JoinRoom("s2", "alice", roomID, token)

	reg.Sweep(time.Now().Add(10 * time.Minute))
	assert.Equal(t, 1, reg.RoomCount(), "an inhabited room must not be collected by the grace sweep")
}

func TestMaxLifetimeSweep(t *testing.T) {
	n := &fakeNotifier{}
	reg := NewRegistry(Options{
		GracePeriod: time.Minute,
		MaxLifetime: time.Hour,
		GCInterval:  time.Minute,
	}, n)
	reg.CreateRoom("s1", "alice")

	reg.Sweep(time.Now().Add(2 * time.Hour))
	assert.Equal(t, 0, reg.RoomCount(), "max lifetime applies regardless of occupancy")
}

func TestVoluntaryLeaveGivesUpSeat(t *testing.T) {
	reg, n := newTestRegistry()
	roomID := reg.CreateRoom("s1", "alice")
	reg.JoinRoom("s2", "bob", roomID, "")
	ev, _ := n.last("s1", events.RoomCreated)
	token := ev.Data.(events.RoomStatePayload).SessionToken

	reg.LeaveRoom("s1", roomID)
	_, ok := n.last("s2", events.RoomPlayerLeft)
	assert.True(t, ok)

	// The seat is gone for good; the old token reclaims nothing.
	reg.JoinRoom("s3", "alice", roomID, token)
	ev, ok = n.last("s3", events.RoomJoined)
	require.True(t, ok)
	assert.Equal(t, 1, ev.Data.(events.RoomStatePayload).PlayerNumber)
	assert.NotEqual(t, token, ev.Data.(events.RoomStatePayload).SessionToken)
}

func TestListJoinableExcludesInProgress(t *testing.T) {
	reg, n := newTestRegistry()
	readiedRoom(t, reg, n)
	open := reg.CreateRoom("s9", "dave")

	list := reg.ListJoinable()
	require.Len(t, list, 1)
	assert.Equal(t, open, list[0].ID)
	assert.Equal(t, 1, list[0].PlayerCount)
}

func TestMatchedRoomStartsImmediately(t *testing.T) {
	reg, n := newTestRegistry()
	reg.CreateMatchedRoom(
		MatchedUser{SocketID: "m1", Username: "alice"},
		MatchedUser{SocketID: "m2", Username: "bob"},
	)

	for _, sock := range []string{"m1", "m2"} {
		ev, ok := n.last(sock, events.MatchmakingMatched)
		require.True(t, ok)
		payload := ev.Data.(events.MatchedPayload)
		assert.NotEmpty(t, payload.SessionToken)
		require.Len(t, payload.Players, 2)
		assert.True(t, payload.Players[0].Ready)
		assert.True(t, payload.Players[1].Ready)

		_, ok = n.last(sock, events.GameStart)
		assert.True(t, ok)
	}

	ev1, _ := n.last("m1", events.MatchmakingMatched)
	ev2, _ := n.last("m2", events.MatchmakingMatched)
	assert.Equal(t, 1, ev1.Data.(events.MatchedPayload).PlayerNumber)
	assert.Equal(t, 2, ev2.Data.(events.MatchedPayload).PlayerNumber)
	assert.NotEqual(t,
		ev1.Data.(events.MatchedPayload).SessionToken,
		ev2.Data.(events.MatchedPayload).SessionToken)
}
