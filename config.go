package main

import (
	"os"
	"strconv"
	"time"
)

// Config holds runtime configuration loaded from environment variables.
type Config struct {
	Addr               string
	RoomGracePeriod    time.Duration
	RoomMaxLifetime    time.Duration
	GCInterval         time.Duration
	QueueMaxLength     int
	QueueSweepInterval time.Duration
}

const (
	defaultAddr            = ":8080"
	defaultRoomGracePeriod = time.Minute
	defaultRoomMaxLifetime = 2 * time.Hour
	defaultGCInterval      = time.Minute
	defaultQueueMaxLength  = 100
	defaultQueueSweep      = time.Minute
)

// LoadConfig builds a Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		Addr:               getEnv("ADDR", defaultAddr),
		RoomGracePeriod:    getDuration("ROOM_GRACE_PERIOD", defaultRoomGracePeriod),
		RoomMaxLifetime:    getDuration("ROOM_MAX_LIFETIME", defaultRoomMaxLifetime),
		GCInterval:         getDuration("ROOM_GC_INTERVAL", defaultGCInterval),
		QueueMaxLength:     getInt("QUEUE_MAX_LENGTH", defaultQueueMaxLength),
		QueueSweepInterval: getDuration("QUEUE_SWEEP_INTERVAL", defaultQueueSweep),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}
