package client

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/jankenwars/server/events"
	"github.com/jankenwars/server/game"
)

// Client couples a Machine to a live websocket. It reads server events into
// the machine and exposes typed senders for the client-to-server protocol.
type Client struct {
	Machine *Machine

	url     string
	mu      sync.Mutex
	sock    *websocket.Conn
	done    chan struct{}
	dialer  *websocket.Dialer
	onEvent func(event string)
}

// New builds a client for the given websocket URL. The username is sent as
// user:join on every (re)connect.
func New(url, username string) *Client {
	return &Client{
		Machine: NewMachine(username, rand.New(rand.NewSource(time.Now().UnixNano()))),
		url:     url,
		dialer:  websocket.DefaultDialer,
	}
}

// OnEvent registers a hook invoked after each applied server event. Safe to
// call while the read loop is running.
func (c *Client) OnEvent(fn func(event string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvent = fn
}

// Connect dials the server, identifies the user, and starts the read loop.
func (c *Client) Connect() error {
	c.Machine.Connecting()
	sock, _, err := c.dialer.Dial(c.url, nil)
	if err != nil {
		c.Machine.Disconnected()
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.sock = sock
	c.done = make(chan struct{})
	c.mu.Unlock()
	c.Machine.Connected()

	if err := c.Send(events.UserJoin, events.UserJoinPayload{Username: c.Machine.username}); err != nil {
		return err
	}
	go c.readLoop(sock)
	return nil
}

// Reconnect redials and reclaims the previous seat with the stored session
// token. The server may push a fresh snapshot at any point afterward; the
// machine makes no turn-continuity assumptions across the gap.
func (c *Client) Reconnect() error {
	roomID := c.Machine.RoomID()
	token := c.Machine.SessionToken()
	if err := c.Connect(); err != nil {
		return err
	}
	if roomID != "" && token != "" {
		return c.Send(events.RoomJoin, events.RoomJoinPayload{RoomID: roomID, SessionToken: token})
	}
	return nil
}

// Close shuts the connection down.
func (c *Client) Close() error {
	c.mu.Lock()
	sock := c.sock
	c.sock = nil
	c.mu.Unlock()
	if sock != nil {
		return sock.Close()
	}
	return nil
}

func (c *Client) readLoop(sock *websocket.Conn) {
	defer c.Machine.Disconnected()
	for {
		_, raw, err := sock.ReadMessage()
		if err != nil {
			return
		}
		var env events.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Error().Err(err).Msg("Malformed server message")
			continue
		}
		if err := c.Machine.HandleEvent(env.Event, env.Data); err != nil {
			log.Error().Err(err).Str("event", env.Event).Msg("Failed to apply server event")
			continue
		}
		c.mu.Lock()
		hook := c.onEvent
		c.mu.Unlock()
		if hook != nil {
			hook(env.Event)
		}
	}
}

// Send writes one envelope to the server.
func (c *Client) Send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock == nil {
		return fmt.Errorf("not connected")
	}
	return c.sock.WriteJSON(events.Envelope{Event: event, Data: payload})
}

func (c *Client) CreateRoom() error {
	return c.Send(events.RoomCreate, struct{}{})
}

func (c *Client) JoinRoom(roomID string) error {
	return c.Send(events.RoomJoin, events.RoomJoinPayload{RoomID: roomID})
}

func (c *Client) ToggleReady() error {
	return c.Send(events.PlayerReady, events.RoomIDPayload{RoomID: c.Machine.RoomID()})
}

// SubmitMove sends the move without applying it locally: the board view
// only changes when the authoritative broadcast comes back.
func (c *Client) SubmitMove(pos game.Position, piece game.Piece) error {
	return c.Send(events.GameMove, events.MovePayload{
		RoomID:   c.Machine.RoomID(),
		Position: pos,
		Piece:    piece,
	})
}

func (c *Client) RequestRematch() error {
	return c.Send(events.GameRequestRematch, events.RoomIDPayload{RoomID: c.Machine.RoomID()})
}

func (c *Client) LeaveRoom() error {
	return c.Send(events.RoomLeave, events.RoomIDPayload{RoomID: c.Machine.RoomID()})
}

func (c *Client) JoinMatchmaking() error {
	return c.Send(events.MatchmakingJoin, struct{}{})
}

func (c *Client) CancelMatchmaking() error {
	return c.Send(events.MatchmakingCancel, struct{}{})
}
