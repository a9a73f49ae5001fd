package services

import (
	"context"
	"log"
	"time"
)

// Focus marks the owner online. Presence writes are best effort: failures are
// logged and never surfaced.
func (s *service) Focus(ctx context.Context) {
	owner := s.owner()
	if owner == "" {
		return
	}
	if err := s.backend.SetOnline(ctx, owner); err != nil {
		log.Printf("presence: set online failed: %v", err)
	}
}

// Blur marks the owner offline and records the last-seen time.
func (s *service) Blur(ctx context.Context) {
	owner := s.owner()
	if owner == "" {
		return
	}
	if err := s.backend.SetOffline(ctx, owner, time.Now()); err != nil {
		log.Printf("presence: set offline failed: %v", err)
	}
}

// Offline handles a delivered teardown beacon for the given user. Only the
// session owner's beacon is acted on.
func (s *service) Offline(ctx context.Context, userID string) {
	owner := s.owner()
	if owner == "" || userID != owner {
		return
	}
	if err := s.backend.SetOffline(ctx, owner, time.Now()); err != nil {
		log.Printf("presence: beacon offline failed: %v", err)
	}
}
