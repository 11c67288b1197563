// Package config loads server settings from the environment, with a .env
// file as the development convenience.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTPAddr serves the REST API and the spectator websocket.
	HTTPAddr string
	// GameAddr is the raw TCP listener players connect to.
	GameAddr string
	// PhaseTimeout bounds planning and building phases. Zero disables the
	// timers, which is mostly useful in tests.
	PhaseTimeout time.Duration
	// Debug switches zap to its development encoder.
	Debug bool
}

func Load() (Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:     getenv("PATHWARS_HTTP_ADDR", ":8080"),
		GameAddr:     getenv("PATHWARS_GAME_ADDR", ":7777"),
		PhaseTimeout: 90 * time.Second,
	}

	if v := os.Getenv("PATHWARS_PHASE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("PATHWARS_PHASE_TIMEOUT: %w", err)
		}
		cfg.PhaseTimeout = d
	}
	if v := os.Getenv("PATHWARS_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("PATHWARS_DEBUG: %w", err)
		}
		cfg.Debug = b
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
