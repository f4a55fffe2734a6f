package matchmaking

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jankenwars/server/events"
	"github.com/jankenwars/server/rooms"
)

// RoomCreator is the slice of the registry the queue needs: turn two
// waiters into a started room.
type RoomCreator interface {
	CreateMatchedRoom(first, second rooms.MatchedUser) string
}

// Options tunes queue hygiene.
type Options struct {
	// MaxLength is the size past which the periodic sweep wipes the queue
	// as a defensive reset against stale entries.
	MaxLength int
	// SweepInterval is how often the sweep runs.
	SweepInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxLength:     100,
		SweepInterval: time.Minute,
	}
}

type entry struct {
	socketID string
	username string
}

// Queue is the FIFO of users waiting for an opponent. The instant it holds
// two entries the two oldest are paired into a room.
type Queue struct {
	mu       sync.Mutex
	entries  []entry
	opts     Options
	creator  RoomCreator
	notifier rooms.Notifier
	stop     chan struct{}
	stopOnce sync.Once
}

func NewQueue(opts Options, creator RoomCreator, n rooms.Notifier) *Queue {
	if opts.MaxLength <= 0 {
		opts = DefaultOptions()
	}
	return &Queue{
		opts:     opts,
		creator:  creator,
		notifier: n,
		stop:     make(chan struct{}),
	}
}

// Enqueue appends the caller and pairs immediately if an opponent is
// already waiting; otherwise the caller is told to wait.
func (q *Queue) Enqueue(socketID, username string) {
	q.mu.Lock()
	for _, e := range q.entries {
		if e.socketID == socketID {
			q.mu.Unlock()
			q.notifier.SendTo(socketID, events.MatchmakingWaiting, nil)
			return
		}
	}
	q.entries = append(q.entries, entry{socketID: socketID, username: username})
	if len(q.entries) < 2 {
		q.mu.Unlock()
		log.Info().Str("username", username).Msg("User waiting for match")
		q.notifier.SendTo(socketID, events.MatchmakingWaiting, nil)
		return
	}
	first, second := q.entries[0], q.entries[1]
	q.entries = q.entries[2:]
	q.mu.Unlock()

	log.Info().Str("player1", first.username).Str("player2", second.username).Msg("Users matched")
	q.creator.CreateMatchedRoom(
		rooms.MatchedUser{SocketID: first.socketID, Username: first.username},
		rooms.MatchedUser{SocketID: second.socketID, Username: second.username},
	)
}

// Cancel removes the caller's entry. A user already paired off the queue is
// not affected; the cancel is then a no-op beyond the acknowledgment.
func (q *Queue) Cancel(socketID string) {
	q.mu.Lock()
	for i, e := range q.entries {
		if e.socketID == socketID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	q.mu.Unlock()
	q.notifier.SendTo(socketID, events.MatchmakingCancelled, nil)
}

// Remove drops an entry without acknowledgment, for disconnects.
func (q *Queue) Remove(socketID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.socketID == socketID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

// Len returns the number of waiting users.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// StartSweep launches the periodic oversize check.
func (q *Queue) StartSweep() {
	go func() {
		ticker := time.NewTicker(q.opts.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-q.stop:
				return
			case <-ticker.C:
				q.Sweep()
			}
		}
	}()
}

// Stop halts the sweep loop.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.stop) })
}

// Sweep clears the whole queue if it has grown past the stale threshold.
func (q *Queue) Sweep() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) > q.opts.MaxLength {
		log.Warn().Int("size", len(q.entries)).Msg("Matchmaking queue oversized, clearing")
		q.entries = nil
	}
}
