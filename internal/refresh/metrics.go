package refresh

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var refreshRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cryptodaily_refresh_runs_total",
	Help: "Daily refresh passes by result",
}, []string{"result"})

var refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "cryptodaily_refresh_duration_seconds",
	Help:    "Wall time of a daily refresh pass",
	Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
})
