// Package metrics holds the Prometheus instruments of showshelf. All
// collectors are registered with the global registry served by promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TrackedShows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "showshelf_tracked_shows",
			Help: "Number of shows currently stored.",
		})

	ShowWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showshelf_show_writes_total",
			Help: "Cumulative number of successful show writes, by operation.",
		}, []string{"op"})

	ConstraintRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showshelf_constraint_rejections_total",
			Help: "Writes rejected by a storage constraint, by constraint.",
		}, []string{"constraint"})

	RefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showshelf_refresh_total",
			Help: "Show refreshes against TMDB, by result.",
		}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		TrackedShows,
		ShowWritesTotal,
		ConstraintRejectionsTotal,
		RefreshTotal,
	)
}
