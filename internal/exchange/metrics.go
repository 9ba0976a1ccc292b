package exchange

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var receivedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "exchange_envelopes_received",
	Help: "Number of channel posts seen by a router, by outcome",
}, []string{"router", "status"})

var publishCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "exchange_envelopes_published",
	Help: "Number of envelopes published, by action, type and outcome",
}, []string{"action", "type", "outcome"})

var failoverCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "exchange_failovers",
	Help: "Number of switches to the hide channel",
})
