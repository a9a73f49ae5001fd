package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/telechat/bridge/api"
	"github.com/telechat/bridge/backend"
	"github.com/telechat/bridge/config"
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

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	apiServer := api.NewServer(service, cfg.Port)

	go func() {
		<-c
		log.Println("shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := apiServer.Stop(ctx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		if err := service.Close(ctx); err != nil {
			log.Printf("service close error: %v", err)
		}
		log.Println("Server gracefully stopped")
	}()

	log.Printf("Chat bridge starting on port %s (backend %s)", cfg.Port, cfg.BackendURL)
	if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
}
