package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/telechat/bridge/metrics"
	"github.com/telechat/bridge/models"
)

// SearchUsers matches the query against usernames and display names as a
// case-insensitive substring, excluding the owner, capped at SearchLimit. An
// empty or whitespace-only query returns nothing without touching the backend.
func (s *service) SearchUsers(ctx context.Context, query string) ([]models.Profile, error) {
	owner := s.owner()
	if owner == "" {
		return nil, ErrNotAuthenticated
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	rows, err := s.backend.SearchProfiles(ctx, query, owner, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	metrics.Searches.Inc()

	results := rows[:0]
	for _, p := range rows {
		if p.ID == owner {
			continue
		}
		results = append(results, p)
	}

	return results, nil
}

// SearchUsersDebounced waits out the debounce window before executing the
// query. Each call supersedes any call still waiting: only the newest query
// within the window reaches the backend, the rest return ErrSearchSuperseded.
func (s *service) SearchUsersDebounced(ctx context.Context, query string) ([]models.Profile, error) {
	gen := s.searchGen.Add(1)

	delay := s.searchDelay
	if delay <= 0 {
		delay = 300 * time.Millisecond
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	if s.searchGen.Load() != gen {
		return nil, ErrSearchSuperseded
	}

	return s.SearchUsers(ctx, query)
}
