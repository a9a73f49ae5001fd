// Package metrics provides Prometheus instrumentation for the bridge. It
// exposes counters for change-feed traffic and view-model refreshes, and a
// gauge for live feed subscriptions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FeedEvents counts change-feed notifications, labeled by table and
	// event type ("INSERT" or "UPDATE").
	FeedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_feed_events_total",
		Help: "Change-feed notifications received",
	}, []string{"table", "type"})

	// FeedErrors counts frames the feed could not read or decode.
	FeedErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_feed_errors_total",
		Help: "Change-feed read and decode errors",
	})

	// FeedSubscriptions tracks the number of live table subscriptions.
	FeedSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_feed_subscriptions",
		Help: "Current number of live change-feed table subscriptions",
	})

	// Refreshes counts reconciliation passes, labeled by kind ("contacts"
	// or "chats") and outcome ("ok" or "error").
	Refreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_refreshes_total",
		Help: "View-model refresh passes",
	}, []string{"kind", "outcome"})

	// MessagesSent counts message sends, labeled by outcome ("ok" or "error").
	MessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_messages_sent_total",
		Help: "Messages submitted to the backend",
	}, []string{"outcome"})

	// Searches counts user searches that actually issued a fetch.
	Searches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_searches_total",
		Help: "User searches issued against the backend",
	})
)

func init() {
	prometheus.MustRegister(
		FeedEvents,
		FeedErrors,
		FeedSubscriptions,
		Refreshes,
		MessagesSent,
		Searches,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
