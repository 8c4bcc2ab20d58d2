package snapshot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var compositions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cryptodaily_snapshot_compositions_total",
	Help: "Snapshot requests by how the sections were obtained",
}, []string{"mode"})

var newsSubstitutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cryptodaily_snapshot_news_substitutions_total",
	Help: "Assets whose news section was filled from another record",
}, []string{"from"})
