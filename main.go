package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jankenwars/server/api"
	"github.com/jankenwars/server/matchmaking"
	"github.com/jankenwars/server/rooms"
	"github.com/jankenwars/server/websocket"
)

func main() {
	InitializeLogger()
	cfg := LoadConfig()

	hub := websocket.NewHub()
	registry := rooms.NewRegistry(rooms.Options{
		GracePeriod: cfg.RoomGracePeriod,
		MaxLifetime: cfg.RoomMaxLifetime,
		GCInterval:  cfg.GCInterval,
	}, hub)
	queue := matchmaking.NewQueue(matchmaking.Options{
		MaxLength:     cfg.QueueMaxLength,
		SweepInterval: cfg.QueueSweepInterval,
	}, registry, hub)
	hub.Attach(registry, queue)

	registry.StartGC()
	queue.StartSweep()

	log.Info().Msg("Starting JankenWars server")
	if err := api.StartAPI(cfg.Addr, hub, registry); err != nil {
		log.Fatal().Err(err).Msg("Server exited")
	}
}

func InitializeLogger() {
	loggingEnabled := os.Getenv("LOGGING")
	if loggingEnabled != "true" {
		log.Logger = log.Output(os.Stdout)
	} else {
		runLogFile, err := os.OpenFile(
			"jankenwars.log",
			os.O_APPEND|os.O_CREATE|os.O_WRONLY,
			0664,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open log file")
		}
		multi := zerolog.MultiLevelWriter(runLogFile, os.Stdout)
		log.Logger = zerolog.New(multi).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
