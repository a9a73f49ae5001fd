package main

import (
	"context"
	"log"

	"github.com/telechat/bridge/backend"
	"github.com/telechat/bridge/config"
	"github.com/telechat/bridge/mcp"
	"github.com/telechat/bridge/realtime"
	"github.com/telechat/bridge/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	backendClient := backend.NewClient(cfg.BackendURL, cfg.AnonKey, cfg.BeaconURL)

	dialFeed := func(ctx context.Context, accessToken string) (services.Feed, error) {
		return realtime.Dial(ctx, cfg.RealtimeURL, cfg.AnonKey, accessToken, cfg.HeartbeatInterval)
	}

	service := services.NewService(backendClient, dialFeed, cfg.SearchDebounce)

	mcpServer := mcp.NewMCPServer(service, "Telechat Bridge", "1.0.0")
	if err := mcp.StartMCPServer(mcpServer); err != nil {
		log.Fatalf("Failed to start MCP server: %v", err)
	}
}
