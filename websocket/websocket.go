package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/jankenwars/server/events"
	"github.com/jankenwars/server/matchmaking"
	"github.com/jankenwars/server/rooms"
	"github.com/jankenwars/server/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // Allow connections from any origin
}

const (
	// writeWait bounds a single socket write.
	writeWait = 10 * time.Second
	// outboundBufSize is how many queued envelopes a client may fall behind
	// before it is dropped.
	outboundBufSize = 100
)

// connection is one client socket. All socket writes happen on the writer
// goroutine (writeLoop); send only queues, so callers holding service locks
// never block on client I/O.
type connection struct {
	id        string
	username  string
	sock      *websocket.Conn
	outbound  chan events.Envelope
	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(sock *websocket.Conn) *connection {
	return &connection{
		id:       utils.GenerateSocketID(),
		sock:     sock,
		outbound: make(chan events.Envelope, outboundBufSize),
		done:     make(chan struct{}),
	}
}

// send queues one envelope for the writer goroutine. It never blocks: a
// client whose buffer is full has stopped reading and gets dropped.
func (c *connection) send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	select {
	case c.outbound <- events.Envelope{Event: event, Data: payload}:
		return nil
	case <-c.done:
		return errors.New("connection closed")
	default:
		c.close()
		return errors.New("outbound buffer full, dropping slow client")
	}
}

// close tears the connection down exactly once. Closing the socket unblocks
// both the read loop and any in-flight write.
func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.sock.Close()
	})
}

// writeLoop drains the outbound buffer onto the socket. Each write carries a
// deadline so a dead peer cannot hold the goroutine past writeWait.
func (c *connection) writeLoop() {
	for {
		select {
		case env := <-c.outbound:
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteJSON(env); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Hub owns every live connection and dispatches inbound events to the room
// registry and matchmaking queue. It implements rooms.Notifier.
type Hub struct {
	mu       sync.Mutex
	conns    map[string]*connection
	registry *rooms.Registry
	queue    *matchmaking.Queue
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*connection)}
}

// Attach wires the hub to the services it dispatches into. Must be called
// before serving; the hub is constructed first to break the construction
// cycle with the registry.
func (h *Hub) Attach(registry *rooms.Registry, queue *matchmaking.Queue) {
	h.registry = registry
	h.queue = queue
}

// SendTo implements rooms.Notifier. The envelope is queued for the
// connection's writer goroutine, never written inline, so callers inside
// validate-mutate-notify sections cannot stall on a slow peer. Sends to a
// gone socket are dropped silently; the disconnect path cleans up the room
// side.
func (h *Hub) SendTo(socketID string, event string, data any) {
	h.mu.Lock()
	conn := h.conns[socketID]
	h.mu.Unlock()
	if conn == nil {
		return
	}
	if err := conn.send(event, data); err != nil {
		log.Error().Err(err).Str("socketID", socketID).Str("event", event).Msg("Failed to send event")
	}
}

// HandleWS upgrades the request and runs the connection's read loop until
// the socket drops.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}
	conn := newConnection(sock)

	h.mu.Lock()
	h.conns[conn.id] = conn
	h.mu.Unlock()
	go conn.writeLoop()
	log.Info().Str("socketID", conn.id).Msg("WebSocket connection established")

	defer func() {
		h.mu.Lock()
		delete(h.conns, conn.id)
		h.mu.Unlock()
		conn.close()
		h.queue.Remove(conn.id)
		h.registry.HandleDisconnect(conn.id)
		log.Info().Str("socketID", conn.id).Msg("WebSocket connection closed")
	}()

	for {
		_, raw, err := sock.ReadMessage()
		if err != nil {
			return
		}
		var env events.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.sendError(conn, events.Error, "Malformed message")
			continue
		}
		h.dispatch(conn, env)
	}
}

func (h *Hub) sendError(c *connection, event, msg string) {
	if err := c.send(event, events.ErrorPayload{Message: msg}); err != nil {
		log.Error().Err(err).Str("socketID", c.id).Msg("Failed to send error event")
	}
}

// dispatch validates the payload at the boundary and routes the event.
// Anything malformed is rejected here, before room logic runs.
func (h *Hub) dispatch(c *connection, env events.Envelope) {
	switch env.Event {
	case events.UserJoin:
		var p events.UserJoinPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || !events.ValidUsername(p.Username) {
			h.sendError(c, events.Error, "Invalid username")
			return
		}
		c.username = p.Username
		log.Info().Str("socketID", c.id).Str("username", p.Username).Msg("User identified")

	case events.RoomCreate:
		if c.username == "" {
			h.sendError(c, events.Error, "Identify with user:join first")
			return
		}
		h.registry.CreateRoom(c.id, c.username)

	case events.RoomJoin:
		var p events.RoomJoinPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || !events.ValidRoomID(p.RoomID) {
			h.sendError(c, events.Error, "Invalid room id")
			return
		}
		if c.username == "" {
			h.sendError(c, events.Error, "Identify with user:join first")
			return
		}
		h.registry.JoinRoom(c.id, c.username, p.RoomID, p.SessionToken)

	case events.PlayerReady:
		var p events.RoomIDPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || !events.ValidRoomID(p.RoomID) {
			h.sendError(c, events.Error, "Invalid room id")
			return
		}
		h.registry.ToggleReady(c.id, p.RoomID)

	case events.GameMove:
		var p events.MovePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			h.sendError(c, events.Error, "Malformed move payload")
			return
		}
		if err := p.Validate(); err != nil {
			h.sendError(c, events.Error, err.Error())
			return
		}
		h.registry.HandleMove(c.id, p)

	case events.GameRequestRematch:
		var p events.RoomIDPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || !events.ValidRoomID(p.RoomID) {
			h.sendError(c, events.Error, "Invalid room id")
			return
		}
		h.registry.RequestRematch(c.id, p.RoomID)

	case events.RoomLeave:
		var p events.RoomIDPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || !events.ValidRoomID(p.RoomID) {
			h.sendError(c, events.Error, "Invalid room id")
			return
		}
		h.registry.LeaveRoom(c.id, p.RoomID)

	case events.MatchmakingJoin:
		if c.username == "" {
			h.sendError(c, events.Error, "Identify with user:join first")
			return
		}
		h.queue.Enqueue(c.id, c.username)

	case events.MatchmakingCancel:
		h.queue.Cancel(c.id)

	default:
		h.sendError(c, events.Error, "Unknown event")
	}
}

// ConnectionCount returns the number of live sockets.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
