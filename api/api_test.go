package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jankenwars/server/rooms"
	"github.com/jankenwars/server/websocket"
)

type nopNotifier struct{}

func (nopNotifier) SendTo(string, string, any) {}

func newTestAPI() (*httptest.Server, *rooms.Registry) {
	hub := websocket.NewHub()
	registry := rooms.NewRegistry(rooms.DefaultOptions(), nopNotifier{})
	srv := httptest.NewServer(NewRouter(hub, registry))
	return srv, registry
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestAPI()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var health struct {
		Status        string  `json:"status"`
		Version       string  `json:"version"`
		UptimeSeconds float64 `json:"uptimeSeconds"`
		Rooms         int     `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.NotEmpty(t, health.Version)
	assert.GreaterOrEqual(t, health.UptimeSeconds, 0.0)
	assert.Zero(t, health.Rooms)
}

func TestRoomListingEndpoint(t *testing.T) {
	srv, registry := newTestAPI()
	defer srv.Close()

	roomID := registry.CreateRoom("s1", "alice")

	resp, err := http.Get(srv.URL + "/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []rooms.RoomSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, roomID, list[0].ID)
	assert.Equal(t, 1, list[0].PlayerCount)
}

func TestRoomListingWriteMethodsRejected(t *testing.T) {
	srv, _ := newTestAPI()
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/rooms", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
