package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/jankenwars/server/rooms"
	"github.com/jankenwars/server/websocket"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var startedAt = time.Now()

type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	Rooms         int     `json:"rooms"`
	Connections   int     `json:"connections"`
}

// StartAPI builds the router and serves it. Blocks until the listener
// fails.
func StartAPI(addr string, hub *websocket.Hub, registry *rooms.Registry) error {
	r := NewRouter(hub, registry)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET"}),
	)
	handler := handlers.RecoveryHandler()(cors(r))

	log.Info().Str("addr", addr).Msg("HTTP server listening")
	return http.ListenAndServe(addr, handler)
}

// NewRouter wires the read-only HTTP surface plus the websocket upgrade.
func NewRouter(hub *websocket.Hub, registry *rooms.Registry) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", healthHandler(hub, registry)).Methods("GET")
	r.HandleFunc("/rooms", roomsHandler(registry)).Methods("GET")
	r.HandleFunc("/ws", hub.HandleWS)
	return r
}

func healthHandler(hub *websocket.Hub, registry *rooms.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:        "ok",
			Version:       Version,
			UptimeSeconds: time.Since(startedAt).Seconds(),
			Rooms:         registry.RoomCount(),
			Connections:   hub.ConnectionCount(),
		}
		writeJSON(w, resp)
	}
}

func roomsHandler(registry *rooms.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, registry.ListJoinable())
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
