package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Port != "8080" {
		t.Errorf("Port = %q", c.Port)
	}
	if c.SearchDebounce != 300*time.Millisecond {
		t.Errorf("SearchDebounce = %v", c.SearchDebounce)
	}
	if c.HeartbeatInterval != 30*time.Second {
		t.Errorf("HeartbeatInterval = %v", c.HeartbeatInterval)
	}
}

func TestLoadDerivesRealtimeURL(t *testing.T) {
	t.Setenv("BACKEND_URL", "https://proj.example.co")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.RealtimeURL != "wss://proj.example.co/realtime/v1/websocket" {
		t.Errorf("RealtimeURL = %q", c.RealtimeURL)
	}
}

func TestLoadKeepsExplicitRealtimeURL(t *testing.T) {
	t.Setenv("BACKEND_URL", "https://proj.example.co")
	t.Setenv("REALTIME_URL", "wss://feed.example.co/socket")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.RealtimeURL != "wss://feed.example.co/socket" {
		t.Errorf("RealtimeURL = %q", c.RealtimeURL)
	}
}

func TestRealtimeURLSchemes(t *testing.T) {
	tests := []struct {
		backend string
		want    string
		wantErr bool
	}{
		{backend: "http://localhost:54321", want: "ws://localhost:54321/realtime/v1/websocket"},
		{backend: "https://proj.example.co/", want: "wss://proj.example.co/realtime/v1/websocket"},
		{backend: "ftp://example.co", wantErr: true},
	}

	for _, tt := range tests {
		got, err := realtimeURL(tt.backend)
		if tt.wantErr {
			if err == nil {
				t.Errorf("realtimeURL(%q): expected error", tt.backend)
			}
			continue
		}
		if err != nil {
			t.Errorf("realtimeURL(%q): %v", tt.backend, err)
			continue
		}
		if got != tt.want {
			t.Errorf("realtimeURL(%q) = %q, want %q", tt.backend, got, tt.want)
		}
	}
}
