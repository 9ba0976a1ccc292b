package retry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var attemptCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "exchange_platform_attempts",
	Help: "Number of supervised platform call attempts, by outcome",
}, []string{"op", "outcome"})

var waitSeconds = promauto.NewCounter(prometheus.CounterOpts{
	Name: "exchange_platform_wait_seconds",
	Help: "Total time spent waiting on rate limits",
})
