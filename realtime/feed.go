// Package realtime subscribes to the hosted backend's row-level change feed.
// The feed speaks channel-framed JSON over a WebSocket: a topic is joined per
// table, a heartbeat keeps the socket alive, and insert/update notifications
// for joined tables are dispatched to registered handlers.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/telechat/bridge/metrics"
)

// Change event types delivered by the feed.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
)

// Event is a single row-level change notification.
type Event struct {
	Table  string
	Type   string
	Record json.RawMessage
}

// Handler receives events for a subscribed table. Handlers run on the feed's
// read-loop goroutine and should hand off work that blocks.
type Handler func(Event)

// message is the channel frame exchanged with the feed endpoint.
type message struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

type changePayload struct {
	Type   string          `json:"type"`
	Table  string          `json:"table"`
	Record json.RawMessage `json:"record"`
}

// Feed is a live change-feed connection. It is scoped to one authenticated
// session: dialed after login and closed on logout, shutdown, or error.
type Feed struct {
	conn      net.Conn
	writeMu   sync.Mutex
	mu        sync.RWMutex
	handlers  map[string]Handler // table -> handler
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the feed endpoint and starts the read and heartbeat loops.
func Dial(ctx context.Context, rawURL, apikey, accessToken string, heartbeat time.Duration) (*Feed, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed URL %q: %w", rawURL, err)
	}
	q := u.Query()
	if apikey != "" {
		q.Set("apikey", apikey)
	}
	if accessToken != "" {
		q.Set("token", accessToken)
	}
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()

	conn, _, _, err := ws.Dial(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("dial feed: %w", err)
	}

	f := &Feed{
		conn:     conn,
		handlers: make(map[string]Handler),
		done:     make(chan struct{}),
	}

	go f.readLoop()
	go f.heartbeatLoop(heartbeat)

	return f, nil
}

// Subscribe joins the change topic for a table and registers the handler for
// its insert/update events. One handler per table; registering again replaces
// the previous one without re-joining.
func (f *Feed) Subscribe(table string, h Handler) error {
	f.mu.Lock()
	_, joined := f.handlers[table]
	f.handlers[table] = h
	f.mu.Unlock()

	if joined {
		return nil
	}

	join := message{
		Topic:   topicFor(table),
		Event:   "phx_join",
		Payload: json.RawMessage(`{}`),
		Ref:     uuid.NewString(),
	}
	if err := f.send(join); err != nil {
		return fmt.Errorf("join %s: %w", table, err)
	}

	metrics.FeedSubscriptions.Inc()
	return nil
}

// Close tears the connection down and stops both loops. Safe to call more
// than once and on every exit path.
func (f *Feed) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.done)
		err = f.conn.Close()

		f.mu.Lock()
		metrics.FeedSubscriptions.Sub(float64(len(f.handlers)))
		f.handlers = make(map[string]Handler)
		f.mu.Unlock()
	})
	return err
}

// Done is closed when the feed stops, whether by Close or by a read error.
func (f *Feed) Done() <-chan struct{} {
	return f.done
}

func (f *Feed) send(msg message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	return wsutil.WriteClientMessage(f.conn, ws.OpText, data)
}

func (f *Feed) readLoop() {
	defer f.Close()

	for {
		select {
		case <-f.done:
			return
		default:
		}

		data, err := wsutil.ReadServerText(f.conn)
		if err != nil {
			select {
			case <-f.done:
				// Intentional close.
			default:
				metrics.FeedErrors.Inc()
			}
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			metrics.FeedErrors.Inc()
			continue
		}

		switch msg.Event {
		case EventInsert, EventUpdate:
			f.dispatch(msg)
		case "phx_reply", "phx_error", "phx_close", "heartbeat":
			// Channel bookkeeping, nothing to deliver.
		}
	}
}

func (f *Feed) dispatch(msg message) {
	var payload changePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		metrics.FeedErrors.Inc()
		return
	}

	table := payload.Table
	if table == "" {
		table = tableFor(msg.Topic)
	}

	f.mu.RLock()
	h := f.handlers[table]
	f.mu.RUnlock()
	if h == nil {
		return
	}

	metrics.FeedEvents.WithLabelValues(table, msg.Event).Inc()
	h(Event{Table: table, Type: msg.Event, Record: payload.Record})
}

func (f *Feed) heartbeatLoop(interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			beat := message{
				Topic:   "phoenix",
				Event:   "heartbeat",
				Payload: json.RawMessage(`{}`),
				Ref:     uuid.NewString(),
			}
			if err := f.send(beat); err != nil {
				f.Close()
				return
			}
		}
	}
}

func topicFor(table string) string {
	return "realtime:public:" + table
}

func tableFor(topic string) string {
	const prefix = "realtime:public:"
	if len(topic) > len(prefix) && topic[:len(prefix)] == prefix {
		return topic[len(prefix):]
	}
	return ""
}
