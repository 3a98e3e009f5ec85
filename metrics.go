package main

import (
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sheperdglobal-alt/imap-email-filter/proxy"
)

// NewProxyMetrics assembles the counters the proxy
// updates while relaying, backed by Prometheus when an
// exposition address is configured and discarded
// otherwise.
func NewProxyMetrics(prometheusAddr string) *proxy.Metrics {

	if prometheusAddr == "" {
		return proxy.NewDiscardMetrics()
	}

	return &proxy.Metrics{
		Sessions: prometheus.NewCounterFrom(prom.CounterOpts{
			Namespace: "imap_email_filter",
			Subsystem: "proxy",
			Name:      "sessions_total",
			Help:      "Number of proxied IMAP sessions",
		}, nil),
		Relayed: prometheus.NewCounterFrom(prom.CounterOpts{
			Namespace: "imap_email_filter",
			Subsystem: "proxy",
			Name:      "commands_relayed_total",
			Help:      "Number of client commands relayed upstream",
		}, nil),
		Held: prometheus.NewCounterFrom(prom.CounterOpts{
			Namespace: "imap_email_filter",
			Subsystem: "proxy",
			Name:      "appends_held_total",
			Help:      "Number of APPEND uploads held in quarantine",
		}, nil),
		Delivered: prometheus.NewCounterFrom(prom.CounterOpts{
			Namespace: "imap_email_filter",
			Subsystem: "proxy",
			Name:      "appends_delivered_total",
			Help:      "Number of APPEND uploads delivered upstream",
		}, nil),
	}
}

func runPromHTTP(logger log.Logger, addr string) {

	if addr == "" {
		level.Debug(logger).Log("msg", "prometheus addr is empty, not exposing prometheus metrics")
		return
	}

	http.Handle("/metrics", promhttp.Handler())

	level.Info(logger).Log("msg", "prometheus handler listening", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		level.Warn(logger).Log("msg", "failed to serve prometheus metrics", "err", err)
	}
}
