package utils

import (
	"crypto/rand"

	"github.com/google/uuid"
)

const roomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const roomIDLength = 6

// GenerateRoomID returns a short join code, e.g. "K4TQ2A". Uniqueness is
// the caller's problem; the registry retries on collision.
func GenerateRoomID() string {
	buf := make([]byte, roomIDLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform is broken; fall back to
		// a uuid-derived code rather than returning an empty id.
		id := uuid.New().String()
		for i := 0; i < roomIDLength; i++ {
			buf[i] = id[i]
		}
	}
	for i := range buf {
		buf[i] = roomIDAlphabet[int(buf[i])%len(roomIDAlphabet)]
	}
	return string(buf)
}

// GenerateSessionToken returns an opaque reconnect credential for a seat.
func GenerateSessionToken() string {
	return uuid.New().String()
}

// GenerateSocketID returns a unique id for a websocket connection.
func GenerateSocketID() string {
	return uuid.New().String()
}
