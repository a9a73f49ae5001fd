// Package backend is the client of the hosted chat backend. All persistence
// lives in the hosted service; this package only issues declarative reads and
// writes against its auth and table endpoints.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Session holds the authenticated identity returned by the backend.
type Session struct {
	UserID      string
	AccessToken string
}

// Client talks to the hosted backend over HTTP
type Client struct {
	baseURL   string
	anonKey   string
	beaconURL string
	http      *http.Client

	mu      sync.RWMutex
	session Session
}

// NewClient creates a new backend client
func NewClient(baseURL, anonKey, beaconURL string) *Client {
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		anonKey:   anonKey,
		beaconURL: beaconURL,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// Session returns the current session and whether one is established.
func (c *Client) Session() (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session, c.session.UserID != ""
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	AccessToken string `json:"access_token"`
	User        struct {
		ID string `json:"id"`
	} `json:"user"`
}

// SignIn authenticates with the backend using the password grant and stores
// the resulting session on the client.
func (c *Client) SignIn(ctx context.Context, email, password string) (Session, error) {
	body, err := json.Marshal(signInRequest{Email: email, Password: password})
	if err != nil {
		return Session{}, fmt.Errorf("marshal credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/token?grant_type=password", bytes.NewReader(body))
	if err != nil {
		return Session{}, fmt.Errorf("build sign-in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.anonKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("sign in: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Session{}, fmt.Errorf("sign in: %s", readError(resp))
	}

	var out signInResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Session{}, fmt.Errorf("decode sign-in response: %w", err)
	}
	if out.User.ID == "" {
		return Session{}, fmt.Errorf("sign in: backend returned no user id")
	}

	session := Session{UserID: out.User.ID, AccessToken: out.AccessToken}
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	return session, nil
}

// SignOut releases the session on the backend and clears it locally. The
// remote call is best effort; the local session is cleared either way.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.session = Session{}
	c.mu.Unlock()

	if session.AccessToken == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/logout", nil)
	if err != nil {
		return fmt.Errorf("build sign-out request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sign out: %s", readError(resp))
	}

	return nil
}

// SendOfflineBeacon delivers a small fire-and-forget payload announcing that
// the owner went offline. It is a redundant presence signal used during
// teardown, when the primary profile update may not complete. Failures are
// returned for logging only; the caller never retries.
func (c *Client) SendOfflineBeacon(userID string) error {
	if c.beaconURL == "" {
		return nil
	}

	body, _ := json.Marshal(map[string]string{"user_id": userID})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.beaconURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build beacon request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send beacon: %w", err)
	}
	resp.Body.Close()

	return nil
}

// get issues a filtered read against a table and decodes the row set into out.
func (c *Client) get(ctx context.Context, table string, query url.Values, out any) error {
	return c.rest(ctx, http.MethodGet, table, query, nil, out)
}

// insert writes one row into a table. When out is non-nil the created
// representation is requested back and decoded into it.
func (c *Client) insert(ctx context.Context, table string, row any, out any) error {
	return c.rest(ctx, http.MethodPost, table, nil, row, out)
}

// update issues a partial update against the rows matched by query.
func (c *Client) update(ctx context.Context, table string, query url.Values, fields any) error {
	return c.rest(ctx, http.MethodPatch, table, query, fields, nil)
}

func (c *Client) rest(ctx context.Context, method, table string, query url.Values, body any, out any) error {
	u := c.baseURL + "/rest/v1/" + table
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", table, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", table, err)
	}
	req.Header.Set("apikey", c.anonKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost && out != nil {
		req.Header.Set("Prefer", "return=representation")
	}

	c.mu.RLock()
	token := c.session.AccessToken
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s", method, table, readError(resp))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", table, err)
		}
	}

	return nil
}

func readError(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		return fmt.Sprintf("status %d", resp.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", resp.StatusCode, msg)
}
