package content

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var contentWrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cryptodaily_content_writes_total",
	Help: "Content store write attempts by kind and outcome",
}, []string{"kind", "outcome"})
