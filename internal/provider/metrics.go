package provider

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var providerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cryptodaily_provider_failures_total",
	Help: "Provider calls that failed and were absorbed into a fallback",
}, []string{"provider"})

var fallbacksServed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cryptodaily_provider_fallbacks_total",
	Help: "Locally sourced payloads served instead of live provider data",
}, []string{"kind"})
