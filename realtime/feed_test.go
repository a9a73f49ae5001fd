package realtime

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// startFeedServer runs a websocket endpoint that hands each connection to fn.
func startFeedServer(t *testing.T, fn func(conn net.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		go fn(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readFrame(t *testing.T, conn net.Conn) message {
	t.Helper()
	data, err := wsutil.ReadClientText(conn)
	if err != nil {
		t.Errorf("read client frame: %v", err)
		return message{}
	}
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Errorf("unmarshal client frame: %v", err)
	}
	return msg
}

func writeFrame(t *testing.T, conn net.Conn, msg message) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal server frame: %v", err)
	}
	if err := wsutil.WriteServerMessage(conn, ws.OpText, data); err != nil {
		t.Errorf("write server frame: %v", err)
	}
}

func TestSubscribeJoinsTopicAndDeliversEvents(t *testing.T) {
	joined := make(chan message, 1)

	url := startFeedServer(t, func(conn net.Conn) {
		defer conn.Close()

		join := readFrame(t, conn)
		joined <- join

		payload, _ := json.Marshal(changePayload{
			Type:   EventInsert,
			Table:  "messages",
			Record: json.RawMessage(`{"id":"m1","content":"hi"}`),
		})
		writeFrame(t, conn, message{
			Topic:   "realtime:public:messages",
			Event:   EventInsert,
			Payload: payload,
		})

		// Hold the connection open until the client closes it.
		wsutil.ReadClientText(conn)
	})

	feed, err := Dial(context.Background(), url, "anon-key", "tok", time.Minute)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer feed.Close()

	events := make(chan Event, 1)
	if err := feed.Subscribe("messages", func(evt Event) {
		events <- evt
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	select {
	case join := <-joined:
		if join.Event != "phx_join" {
			t.Errorf("join event = %q", join.Event)
		}
		if join.Topic != "realtime:public:messages" {
			t.Errorf("join topic = %q", join.Topic)
		}
		if join.Ref == "" {
			t.Error("join ref should not be empty")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no join frame received")
	}

	select {
	case evt := <-events:
		if evt.Table != "messages" || evt.Type != EventInsert {
			t.Errorf("unexpected event: %+v", evt)
		}
		var record struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(evt.Record, &record); err != nil || record.ID != "m1" {
			t.Errorf("record = %s (err %v)", evt.Record, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestResubscribeDoesNotRejoin(t *testing.T) {
	joins := make(chan message, 2)

	url := startFeedServer(t, func(conn net.Conn) {
		defer conn.Close()
		for {
			data, err := wsutil.ReadClientText(conn)
			if err != nil {
				return
			}
			var msg message
			if json.Unmarshal(data, &msg) == nil && msg.Event == "phx_join" {
				joins <- msg
			}
		}
	})

	feed, err := Dial(context.Background(), url, "anon-key", "tok", time.Minute)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer feed.Close()

	if err := feed.Subscribe("messages", func(Event) {}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := feed.Subscribe("messages", func(Event) {}); err != nil {
		t.Fatalf("second Subscribe: %v", err)
	}

	select {
	case <-joins:
	case <-time.After(2 * time.Second):
		t.Fatal("no join frame received")
	}
	select {
	case msg := <-joins:
		t.Fatalf("unexpected second join: %+v", msg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestHeartbeat(t *testing.T) {
	beats := make(chan message, 4)

	url := startFeedServer(t, func(conn net.Conn) {
		defer conn.Close()
		for {
			data, err := wsutil.ReadClientText(conn)
			if err != nil {
				return
			}
			var msg message
			if json.Unmarshal(data, &msg) == nil && msg.Event == "heartbeat" {
				beats <- msg
			}
		}
	})

	feed, err := Dial(context.Background(), url, "anon-key", "tok", 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer feed.Close()

	select {
	case beat := <-beats:
		if beat.Topic != "phoenix" {
			t.Errorf("heartbeat topic = %q", beat.Topic)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat received")
	}
}

func TestCloseIsIdempotentAndSignalsDone(t *testing.T) {
	url := startFeedServer(t, func(conn net.Conn) {
		defer conn.Close()
		wsutil.ReadClientText(conn)
	})

	feed, err := Dial(context.Background(), url, "anon-key", "tok", time.Minute)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	if err := feed.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := feed.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	select {
	case <-feed.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not signalled after Close")
	}
}

func TestServerCloseSignalsDone(t *testing.T) {
	url := startFeedServer(t, func(conn net.Conn) {
		conn.Close()
	})

	feed, err := Dial(context.Background(), url, "anon-key", "tok", time.Minute)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer feed.Close()

	select {
	case <-feed.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not signalled after server close")
	}
}

func TestTopicTableMapping(t *testing.T) {
	if got := topicFor("messages"); got != "realtime:public:messages" {
		t.Errorf("topicFor = %q", got)
	}
	if got := tableFor("realtime:public:profiles"); got != "profiles" {
		t.Errorf("tableFor = %q", got)
	}
	if got := tableFor("phoenix"); got != "" {
		t.Errorf("tableFor(phoenix) = %q", got)
	}
}
