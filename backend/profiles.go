package backend

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/telechat/bridge/models"
)

// Profile reads a single profile by id. The second return reports whether the
// profile exists, so call sites handle the absent case explicitly.
func (c *Client) Profile(ctx context.Context, id string) (models.Profile, bool, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("id", "eq."+id)
	q.Set("limit", "1")

	var rows []models.Profile
	if err := c.get(ctx, "profiles", q, &rows); err != nil {
		return models.Profile{}, false, err
	}
	if len(rows) == 0 {
		return models.Profile{}, false, nil
	}
	return rows[0], true, nil
}

// SearchProfiles matches the query as a case-insensitive substring of username
// or display name, excluding excludeID, capped at limit rows.
func (c *Client) SearchProfiles(ctx context.Context, query, excludeID string, limit int) ([]models.Profile, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("or", fmt.Sprintf("(username.ilike.*%s*,display_name.ilike.*%s*)", query, query))
	q.Set("id", "neq."+excludeID)
	q.Set("limit", strconv.Itoa(limit))

	var rows []models.Profile
	if err := c.get(ctx, "profiles", q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// SetOnline marks the profile online without touching last_seen.
func (c *Client) SetOnline(ctx context.Context, id string) error {
	q := url.Values{}
	q.Set("id", "eq."+id)
	return c.update(ctx, "profiles", q, map[string]any{"is_online": true})
}

// SetOffline marks the profile offline and records when it was last seen.
func (c *Client) SetOffline(ctx context.Context, id string, lastSeen time.Time) error {
	q := url.Values{}
	q.Set("id", "eq."+id)
	return c.update(ctx, "profiles", q, map[string]any{
		"is_online": false,
		"last_seen": lastSeen.UTC().Format(time.RFC3339Nano),
	})
}
