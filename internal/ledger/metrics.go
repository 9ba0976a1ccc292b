package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var declaredCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "exchange_messages_declared",
	Help: "Number of messages added to the declaration ledger, by origin",
}, []string{"origin"})
