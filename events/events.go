package events

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/jankenwars/server/game"
)

// Client to server events.
const (
	UserJoin           = "user:join"
	RoomCreate         = "room:create"
	RoomJoin           = "room:join"
	PlayerReady        = "player:ready"
	GameMove           = "game:move"
	GameRequestRematch = "game:request_rematch"
	RoomLeave          = "room:leave"
	MatchmakingJoin    = "matchmaking:join"
	MatchmakingCancel  = "matchmaking:cancel"
)

// Server to client events.
const (
	RoomCreated          = "room:created"
	RoomJoined           = "room:joined"
	RoomJoinedSpectator  = "room:joined:spectator"
	RoomPlayerJoined     = "room:player:joined"
	RoomPlayerLeft       = "room:player:left"
	RoomPlayerReady      = "room:player:ready"
	GameStart            = "game:start"
	GameStateUpdate      = "game:state:update"
	GameRematchInitiated = "game:rematch:initiated"
	GameOpponentLeft     = "game:opponent:left"
	MatchmakingWaiting   = "matchmaking:waiting"
	MatchmakingMatched   = "matchmaking:matched"
	MatchmakingCancelled = "matchmaking:cancelled"
	Error                = "error"
	GameError            = "game:error"
)

// Envelope is the framing for every message on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type UserJoinPayload struct {
	Username string `json:"username"`
}

type RoomJoinPayload struct {
	RoomID       string `json:"roomId"`
	SessionToken string `json:"sessionToken,omitempty"`
}

type RoomIDPayload struct {
	RoomID string `json:"roomId"`
}

type MovePayload struct {
	RoomID   string        `json:"roomId"`
	Position game.Position `json:"position"`
	Piece    game.Piece    `json:"piece"`
}

// PlayerInfo is one seat in a roster broadcast.
type PlayerInfo struct {
	Username     string `json:"username"`
	Ready        bool   `json:"ready"`
	PlayerNumber int    `json:"playerNumber"`
	Connected    bool   `json:"connected"`
}

type Roster struct {
	RoomID     string       `json:"roomId"`
	Players    []PlayerInfo `json:"players"`
	Spectators int          `json:"spectators"`
}

// RoomStatePayload goes to the actor on create/join/rejoin. SessionToken is
// the seat's reconnect credential and is never broadcast to the room.
type RoomStatePayload struct {
	Roster
	PlayerNumber int             `json:"playerNumber,omitempty"`
	SessionToken string          `json:"sessionToken,omitempty"`
	GameState    *game.GameState `json:"gameState,omitempty"`
}

type GameStartPayload struct {
	Roster
	GameState *game.GameState `json:"gameState"`
}

type StateUpdatePayload struct {
	GameState   *game.GameState `json:"gameState"`
	MoveDetails *game.Move      `json:"moveDetails"`
}

type OpponentLeftPayload struct {
	Roster
	Username  string          `json:"username"`
	GameState *game.GameState `json:"gameState"`
}

type MatchedPayload struct {
	Roster
	PlayerNumber int    `json:"playerNumber"`
	SessionToken string `json:"sessionToken"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

var (
	roomIDPattern   = regexp.MustCompile(`^[A-Z0-9]{6}$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{2,20}$`)
)

// ValidRoomID reports whether s is a well-formed room code.
func ValidRoomID(s string) bool {
	return roomIDPattern.MatchString(s)
}

// ValidUsername reports whether s is an acceptable username.
func ValidUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

// Validate checks a move payload at the boundary, before any room logic
// sees it.
func (m MovePayload) Validate() error {
	if !ValidRoomID(m.RoomID) {
		return fmt.Errorf("malformed room id")
	}
	if !m.Position.InBounds() {
		return fmt.Errorf("position out of bounds")
	}
	switch m.Piece {
	case game.Rock, game.Paper, game.Scissors, game.Special:
		return nil
	}
	return fmt.Errorf("invalid piece type")
}
