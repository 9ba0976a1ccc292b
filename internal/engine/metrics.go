package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var actionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "engine_actions",
	Help: "Number of per-chat actions, by action and result",
}, []string{"action", "result"})

var enforceCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "engine_enforcements",
	Help: "Number of enforcement requests, by outcome",
}, []string{"outcome"})

var forgiveCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "engine_forgiveness",
	Help: "Number of rejoins of banned users, by outcome",
}, []string{"outcome"})

var enforceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "engine_enforce_duration_seconds",
	Help:    "Time spent propagating one enforcement",
	Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
})
