// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package metrics records hook runs in the Prometheus text format, for
// collection by node-exporter's textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "neutron_api"

// Collector is a prometheus.Collector that collects metrics about hook
// runs of the unit.
type Collector struct {
	hookDuration *prometheus.GaugeVec
	hookRuns     *prometheus.CounterVec
	hookFailures *prometheus.CounterVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		hookDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "hook_duration_seconds",
				Help:      "The time the last run of each hook took.",
			}, []string{"hook"},
		),
		hookRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "hook_runs_total",
				Help:      "The number of times each hook has run.",
			}, []string{"hook"},
		),
		hookFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "hook_failures_total",
				Help:      "The number of times each hook has failed.",
			}, []string{"hook"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.hookDuration.Describe(ch)
	c.hookRuns.Describe(ch)
	c.hookFailures.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.hookDuration.Collect(ch)
	c.hookRuns.Collect(ch)
	c.hookFailures.Collect(ch)
}
