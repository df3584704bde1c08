// Package metrics exposes prometheus counters for the quest review flow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PhotoUploads counts upload attempts by outcome (ok, invalid,
	// not_linked, failed).
	PhotoUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quest_photo_uploads_total",
		Help: "Photo upload attempts by outcome",
	}, []string{"outcome"})

	// Reviews counts finalized parent verdicts.
	Reviews = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quest_reviews_total",
		Help: "Finalized photo reviews by verdict",
	}, []string{"verdict"})

	// ParentNotifications counts review prompts sent to parents.
	ParentNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quest_parent_notifications_total",
		Help: "Review prompts sent to parent chats by outcome",
	}, []string{"outcome"})
)

// Handler returns the HTTP handler serving the default prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
