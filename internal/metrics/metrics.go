package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Hashrate = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "duco",
		Name:      "hashrate",
		Help:      "Hashrate of the last share found, in H/s, per core.",
	}, []string{"core"})

	JobDifficulty = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "duco",
		Name:      "job_difficulty",
		Help:      "Search bound of the most recent job.",
	})

	PingSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "duco",
		Name:      "ping_seconds",
		Help:      "Round trip of the last share submission.",
	})

	SharesFound = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "duco",
		Name:      "shares_found_total",
		Help:      "Total nonces found matching the job hash.",
	})

	SharesAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "duco",
		Name:      "shares_accepted_total",
		Help:      "Total shares the coordinator accepted.",
	})

	SharesRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "duco",
		Name:      "shares_rejected_total",
		Help:      "Total shares answered with anything but an accept.",
	})

	RoundsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duco",
		Name:      "rounds_completed_total",
		Help:      "Rounds that ran to completion, by outcome.",
	}, []string{"outcome"})

	RoundsAborted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duco",
		Name:      "rounds_aborted_total",
		Help:      "Rounds aborted before completion, by reason.",
	}, []string{"reason"})

	Connects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "duco",
		Name:      "coordinator_connects_total",
		Help:      "Fresh TCP connections established to the coordinator.",
	})

	LinkReconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "duco",
		Name:      "link_reconnects_total",
		Help:      "Forced network link reconnect cycles.",
	})
)

func init() {
	prometheus.MustRegister(
		Hashrate,
		JobDifficulty,
		PingSeconds,
		SharesFound,
		SharesAccepted,
		SharesRejected,
		RoundsCompleted,
		RoundsAborted,
		Connects,
		LinkReconnects,
	)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
