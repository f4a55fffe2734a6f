package rooms

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jankenwars/server/events"
	"github.com/jankenwars/server/game"
	"github.com/jankenwars/server/utils"
)

// Options tunes room lifecycle timing.
type Options struct {
	// GracePeriod is how long an emptied room lingers before deletion so a
	// quick reconnect can revive it.
	GracePeriod time.Duration
	// MaxLifetime caps a room's age regardless of activity.
	MaxLifetime time.Duration
	// GCInterval is how often the sweep runs.
	GCInterval time.Duration
}

// DefaultOptions match the lifecycle timings the protocol assumes.
func DefaultOptions() Options {
	return Options{
		GracePeriod: time.Minute,
		MaxLifetime: 2 * time.Hour,
		GCInterval:  time.Minute,
	}
}

// Registry owns every room in the process. All mutation happens under one
// mutex, so each inbound operation runs validate-mutate-notify to
// completion before the next one touches any room.
type Registry struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	opts     Options
	notifier Notifier
	stop     chan struct{}
	stopOnce sync.Once
}

func NewRegistry(opts Options, n Notifier) *Registry {
	if opts.GCInterval <= 0 {
		opts = DefaultOptions()
	}
	return &Registry{
		rooms:    make(map[string]*Room),
		opts:     opts,
		notifier: n,
		stop:     make(chan struct{}),
	}
}

// CreateRoom registers a new room with the creator seated as player 1 and
// returns its id. The creator alone receives the room state, including the
// seat's session token.
func (reg *Registry) CreateRoom(socketID, username string) string {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	id := utils.GenerateRoomID()
	for reg.rooms[id] != nil {
		id = utils.GenerateRoomID()
	}

	room := newRoom(id, time.Now())
	token := utils.GenerateSessionToken()
	room.Players[socketID] = &PlayerSlot{
		SocketID:     socketID,
		Username:     username,
		PlayerNumber: 1,
		SessionToken: token,
		Connected:    true,
	}
	reg.rooms[id] = room

	log.Info().Str("roomID", id).Str("username", username).Msg("Room created")
	reg.notifier.SendTo(socketID, events.RoomCreated, events.RoomStatePayload{
		Roster:       room.roster(),
		PlayerNumber: 1,
		SessionToken: token,
	})
	return id
}

// JoinRoom routes a join request: reconnection by session token, seating as
// player 2, or spectating when the room is full or mid-game. Unknown rooms
// produce an error to the joiner only.
func (reg *Registry) JoinRoom(socketID, username, roomID, sessionToken string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room := reg.rooms[roomID]
	if room == nil {
		reg.notifier.SendTo(socketID, events.Error, events.ErrorPayload{Message: "Room not found"})
		return
	}
	room.LastActivity = time.Now()

	// A returning player revives an emptied room.
	room.PendingDeletion = nil

	if sessionToken != "" {
		if slot := reg.reclaimSeat(room, socketID, sessionToken); slot != nil {
			log.Info().Str("roomID", roomID).Str("username", slot.Username).
				Int("playerNumber", slot.PlayerNumber).Msg("Player reconnected")
			reg.notifier.SendTo(socketID, events.RoomJoined, events.RoomStatePayload{
				Roster:       room.roster(),
				PlayerNumber: slot.PlayerNumber,
				SessionToken: slot.SessionToken,
				GameState:    room.GameState,
			})
			reg.broadcastExcept(room, socketID, events.RoomPlayerJoined, room.roster())
			reg.maybeStart(room)
			return
		}
	}

	// A socket already seated here just gets the current state again; it
	// must not fall through and pick up a second membership.
	if slot := room.slotBySocket(socketID); slot != nil {
		reg.notifier.SendTo(socketID, events.RoomJoined, events.RoomStatePayload{
			Roster:       room.roster(),
			PlayerNumber: slot.PlayerNumber,
			SessionToken: slot.SessionToken,
			GameState:    room.GameState,
		})
		return
	}

	if room.InProgress || len(room.Players) >= 2 {
		room.Spectators = append(room.Spectators, socketID)
		log.Info().Str("roomID", roomID).Str("username", username).Msg("Spectator joined")
		reg.notifier.SendTo(socketID, events.RoomJoinedSpectator, events.RoomStatePayload{
			Roster:    room.roster(),
			GameState: room.GameState,
		})
		return
	}

	token := utils.GenerateSessionToken()
	number := room.freePlayerNumber()
	room.Players[socketID] = &PlayerSlot{
		SocketID:     socketID,
		Username:     username,
		PlayerNumber: number,
		SessionToken: token,
		Connected:    true,
	}
	log.Info().Str("roomID", roomID).Str("username", username).
		Int("playerNumber", number).Msg("Player joined")
	reg.notifier.SendTo(socketID, events.RoomJoined, events.RoomStatePayload{
		Roster:       room.roster(),
		PlayerNumber: number,
		SessionToken: token,
	})
	reg.broadcastExcept(room, socketID, events.RoomPlayerJoined, room.roster())
	reg.maybeStart(room)
}

// reclaimSeat migrates a disconnected seat to a new socket when the token
// matches. Username equality is deliberately not consulted.
func (reg *Registry) reclaimSeat(room *Room, socketID, sessionToken string) *PlayerSlot {
	for oldID, slot := range room.Players {
		if !slot.Connected && slot.SessionToken == sessionToken {
			delete(room.Players, oldID)
			slot.SocketID = socketID
			slot.Connected = true
			room.Players[socketID] = slot
			return slot
		}
	}
	return nil
}

// ToggleReady flips the caller's ready flag and starts the game when both
// seats are ready.
func (reg *Registry) ToggleReady(socketID, roomID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room := reg.rooms[roomID]
	if room == nil {
		reg.notifier.SendTo(socketID, events.Error, events.ErrorPayload{Message: "Room not found"})
		return
	}
	slot := room.slotBySocket(socketID)
	if slot == nil {
		reg.notifier.SendTo(socketID, events.Error, events.ErrorPayload{Message: "You are not a player in this room"})
		return
	}

	slot.Ready = !slot.Ready
	room.LastActivity = time.Now()
	reg.broadcast(room, events.RoomPlayerReady, room.roster())
	reg.maybeStart(room)
}

// maybeStart transitions the room into play when the start condition holds.
// Caller holds the registry lock.
func (reg *Registry) maybeStart(room *Room) {
	if !room.readyToStart() {
		return
	}
	room.InProgress = true
	gs := game.NewGameState()
	gs.Start()
	room.GameState = gs

	log.Info().Str("roomID", room.ID).Msg("Game started")
	reg.broadcast(room, events.GameStart, events.GameStartPayload{
		Roster:    room.roster(),
		GameState: gs,
	})
}

// LeaveRoom handles a voluntary departure: the seat is given up entirely,
// with no reconnection claim on it.
func (reg *Registry) LeaveRoom(socketID, roomID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room := reg.rooms[roomID]
	if room == nil {
		return
	}
	if room.removeSpectator(socketID) {
		reg.markIfEmpty(room)
		return
	}
	slot := room.slotBySocket(socketID)
	if slot == nil {
		return
	}
	delete(room.Players, socketID)
	log.Info().Str("roomID", roomID).Str("username", slot.Username).Msg("Player left room")
	reg.departure(room, slot)
}

// HandleDisconnect is the transport-drop path. The seat is kept (marked
// disconnected) so the player can reclaim it with their session token.
func (reg *Registry) HandleDisconnect(socketID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, room := range reg.rooms {
		if room.removeSpectator(socketID) {
			reg.markIfEmpty(room)
			continue
		}
		slot := room.slotBySocket(socketID)
		if slot == nil || !slot.Connected {
			continue
		}
		slot.Connected = false
		log.Info().Str("roomID", room.ID).Str("username", slot.Username).Msg("Player disconnected")
		reg.departure(room, slot)
	}
}

// departure applies the shared consequences of a player going away: forfeit
// if a game was running, roster broadcast to whoever remains, and a grace
// deadline once the room empties out.
func (reg *Registry) departure(room *Room, slot *PlayerSlot) {
	if room.InProgress && room.GameState != nil {
		room.GameState.Forfeit(slot.Tag())
		room.InProgress = false
		reg.broadcast(room, events.GameOpponentLeft, events.OpponentLeftPayload{
			Roster:    room.roster(),
			Username:  slot.Username,
			GameState: room.GameState,
		})
	} else if room.occupied() {
		reg.broadcast(room, events.RoomPlayerLeft, room.roster())
	}

	reg.markIfEmpty(room)
}

// markIfEmpty arms the grace-period deadline once nobody is attached.
func (reg *Registry) markIfEmpty(room *Room) {
	if !room.occupied() {
		deadline := time.Now().Add(reg.opts.GracePeriod)
		room.PendingDeletion = &deadline
	}
}

// MatchedUser is a matchmaking pairing candidate.
type MatchedUser struct {
	SocketID string
	Username string
}

// CreateMatchedRoom seats two matched users in a fresh room, both ready,
// and starts the game immediately. Each user receives their own seat
// credentials in the matched event.
func (reg *Registry) CreateMatchedRoom(first, second MatchedUser) string {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	id := utils.GenerateRoomID()
	for reg.rooms[id] != nil {
		id = utils.GenerateRoomID()
	}
	room := newRoom(id, time.Now())
	users := []MatchedUser{first, second}
	for i, u := range users {
		room.Players[u.SocketID] = &PlayerSlot{
			SocketID:     u.SocketID,
			Username:     u.Username,
			Ready:        true,
			PlayerNumber: i + 1,
			SessionToken: utils.GenerateSessionToken(),
			Connected:    true,
		}
	}
	reg.rooms[id] = room

	log.Info().Str("roomID", id).Str("player1", first.Username).
		Str("player2", second.Username).Msg("Matchmade room created")
	for _, u := range users {
		slot := room.Players[u.SocketID]
		reg.notifier.SendTo(u.SocketID, events.MatchmakingMatched, events.MatchedPayload{
			Roster:       room.roster(),
			PlayerNumber: slot.PlayerNumber,
			SessionToken: slot.SessionToken,
		})
	}
	reg.maybeStart(room)
	return id
}

// RoomSummary is the read-only listing shape for the HTTP surface.
type RoomSummary struct {
	ID          string    `json:"id"`
	PlayerCount int       `json:"playerCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ListJoinable returns rooms that are not currently mid-game.
func (reg *Registry) ListJoinable() []RoomSummary {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	out := make([]RoomSummary, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		if room.InProgress {
			continue
		}
		out = append(out, RoomSummary{
			ID:          room.ID,
			PlayerCount: len(room.Players),
			CreatedAt:   room.CreatedAt,
		})
	}
	return out
}

// RoomCount returns the number of live rooms.
func (reg *Registry) RoomCount() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// StartGC launches the periodic sweep. Stop ends it.
func (reg *Registry) StartGC() {
	go func() {
		ticker := time.NewTicker(reg.opts.GCInterval)
		defer ticker.Stop()
		for {
			select {
			case <-reg.stop:
				return
			case now := <-ticker.C:
				reg.Sweep(now)
			}
		}
	}()
}

// Stop halts the GC loop.
func (reg *Registry) Stop() {
	reg.stopOnce.Do(func() { close(reg.stop) })
}

// Sweep deletes rooms whose grace deadline has passed and rooms that have
// outlived the absolute maximum, occupied or not. Deletions are silent.
func (reg *Registry) Sweep(now time.Time) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for id, room := range reg.rooms {
		expired := room.PendingDeletion != nil && now.After(*room.PendingDeletion)
		tooOld := now.Sub(room.CreatedAt) > reg.opts.MaxLifetime
		if expired || tooOld {
			delete(reg.rooms, id)
			log.Info().Str("roomID", id).Bool("expired", expired).
				Bool("tooOld", tooOld).Msg("Room garbage collected")
		}
	}
}

// broadcast sends one event to every member of the room.
func (reg *Registry) broadcast(room *Room, event string, data any) {
	for _, id := range room.memberSockets() {
		reg.notifier.SendTo(id, event, data)
	}
}

// broadcastExcept sends to every member except one socket.
func (reg *Registry) broadcastExcept(room *Room, exceptID, event string, data any) {
	for _, id := range room.memberSockets() {
		if id != exceptID {
			reg.notifier.SendTo(id, event, data)
		}
	}
}
