// Package metrics wires the process's Prometheus collectors: a counter
// per command name/outcome and a latency histogram, exposed over HTTP
// when --metrics-addr is set.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kvwire",
		Name:      "commands_total",
		Help:      "Commands processed, partitioned by command name and outcome.",
	}, []string{"command", "outcome"})

	CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kvwire",
		Name:      "command_duration_seconds",
		Help:      "Command handling latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"command"})

	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kvwire",
		Name:      "connected_clients",
		Help:      "Number of currently open client connections.",
	})

	ReplicaLinks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kvwire",
		Name:      "replica_links",
		Help:      "Number of currently attached replica links.",
	})
)

// Serve starts a background HTTP server exposing /metrics on addr. It
// returns immediately; a failure to bind is reported on the returned
// channel so the caller can decide whether it's fatal.
func Serve(addr string) <-chan error {
	errc := make(chan error, 1)
	if addr == "" {
		return errc
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		errc <- http.ListenAndServe(addr, mux)
	}()
	return errc
}
