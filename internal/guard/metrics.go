package guard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var guardDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_guard_decisions_total",
		Help: "Guard decisions by strategy and outcome",
	},
	[]string{"strategy", "outcome"},
)

func observe(strategy string, outcome string) {
	guardDecisions.WithLabelValues(strategy, outcome).Inc()
}
