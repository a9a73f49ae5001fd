package config

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config struct to hold the configuration
type Config struct {
	Port              string        `envconfig:"PORT" default:"8080"`
	BackendURL        string        `envconfig:"BACKEND_URL" default:"http://localhost:54321"`
	AnonKey           string        `envconfig:"BACKEND_ANON_KEY"`
	RealtimeURL       string        `envconfig:"REALTIME_URL"`
	BeaconURL         string        `envconfig:"BEACON_URL"`
	SearchDebounce    time.Duration `envconfig:"SEARCH_DEBOUNCE" default:"300ms"`
	HeartbeatInterval time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"30s"`
}

// Load function to load the configuration from the environment variables
func Load() (Config, error) {
	err := godotenv.Load(".env")
	if err != nil {
		log.Println("No .env file found")
	}

	var c Config
	err = envconfig.Process("", &c)
	if err != nil {
		return Config{}, fmt.Errorf("unable to get envconfig: %w", err)
	}

	if c.RealtimeURL == "" {
		c.RealtimeURL, err = realtimeURL(c.BackendURL)
		if err != nil {
			return Config{}, fmt.Errorf("unable to derive realtime URL: %w", err)
		}
	}

	return c, nil
}

// realtimeURL derives the websocket endpoint of the change feed from the
// backend base URL when REALTIME_URL is not set explicitly.
func realtimeURL(backendURL string) (string, error) {
	u, err := url.Parse(backendURL)
	if err != nil {
		return "", fmt.Errorf("invalid backend URL %q: %w", backendURL, err)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported backend URL scheme %q", u.Scheme)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/realtime/v1/websocket"

	return u.String(), nil
}
