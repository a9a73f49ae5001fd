package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telechat/bridge/models"
)

func TestSearchEmptyQueryIssuesNoFetch(t *testing.T) {
	fb := newFakeBackend()
	svc := loggedInService(t, fb)

	for _, query := range []string{"", "   ", "\t\n"} {
		results, err := svc.SearchUsers(context.Background(), query)
		require.NoError(t, err)
		assert.Empty(t, results)
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	assert.Equal(t, 0, fb.searchCalls)
}

func TestSearchRequiresAuth(t *testing.T) {
	fb := newFakeBackend()
	svc := NewService(fb, nil, time.Millisecond)

	_, err := svc.SearchUsers(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestSearchExcludesRequester(t *testing.T) {
	fb := newFakeBackend()
	fb.searchResults = []models.Profile{
		{ID: "owner", Username: "owner"},
		{ID: "alice", Username: "alice"},
	}

	svc := loggedInService(t, fb)

	results, err := svc.SearchUsers(context.Background(), "owner")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alice", results[0].ID)
}

func TestDebouncedSearchNewestQueryWins(t *testing.T) {
	fb := newFakeBackend()
	fb.searchResults = []models.Profile{{ID: "alice", Username: "alice"}}

	svc := NewService(fb, nil, 50*time.Millisecond)
	require.NoError(t, svc.Login(context.Background(), "o@example.com", "pw"))

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = svc.SearchUsersDebounced(context.Background(), "al")
	}()

	// Let the first query start its window, then supersede it.
	time.Sleep(10 * time.Millisecond)
	results, err := svc.SearchUsersDebounced(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, results, 1)

	wg.Wait()
	assert.ErrorIs(t, firstErr, ErrSearchSuperseded)

	fb.mu.Lock()
	defer fb.mu.Unlock()
	assert.Equal(t, 1, fb.searchCalls)
}

func TestDebouncedSearchRespectsContext(t *testing.T) {
	fb := newFakeBackend()
	svc := loggedInService(t, fb)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.SearchUsersDebounced(ctx, "alice")
	assert.ErrorIs(t, err, context.Canceled)
}
