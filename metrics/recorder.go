// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package metrics

import (
	"os"
	"path/filepath"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/prometheus/client_golang/prometheus"
)

var logger = loggo.GetLogger("neutronapi.metrics")

// TextfileName is the file written under the metrics directory.
const TextfileName = "neutron-api.prom"

// statsKey holds the accumulated hook statistics in unit data.
const statsKey = "metrics.hooks"

// KeyValueStore keeps the totals between hook runs.
type KeyValueStore interface {
	Get(key string, out interface{}) (bool, error)
	Set(key string, value interface{}) error
	Flush() error
	Rollback() error
}

// HookStats are the accumulated statistics of one hook.
type HookStats struct {
	Runs         int     `json:"runs"`
	Failures     int     `json:"failures"`
	LastDuration float64 `json:"last-duration"`
}

// Recorder accumulates hook statistics across runs and writes them to
// a textfile.
type Recorder struct {
	Dir   string
	Store KeyValueStore
}

// Observe records a hook run. It matches hook.Observer; failures to
// record are logged and never fail the hook.
func (r *Recorder) Observe(name string, elapsed time.Duration, hookErr error) {
	if r.Dir == "" {
		return
	}
	if err := r.record(name, elapsed, hookErr); err != nil {
		logger.Warningf("recording metrics for %s: %v", name, err)
	}
}

func (r *Recorder) record(name string, elapsed time.Duration, hookErr error) error {
	// Only the statistics of a failed hook are committed.
	if hookErr != nil {
		if err := r.Store.Rollback(); err != nil {
			return errors.Trace(err)
		}
	}
	stats := make(map[string]HookStats)
	if _, err := r.Store.Get(statsKey, &stats); err != nil {
		return errors.Trace(err)
	}
	s := stats[name]
	s.Runs++
	if hookErr != nil {
		s.Failures++
	}
	s.LastDuration = elapsed.Seconds()
	stats[name] = s
	if err := r.Store.Set(statsKey, stats); err != nil {
		return errors.Trace(err)
	}
	if err := r.Store.Flush(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(r.write(stats))
}

func (r *Recorder) write(stats map[string]HookStats) error {
	collector := NewCollector()
	for name, s := range stats {
		collector.hookDuration.WithLabelValues(name).Set(s.LastDuration)
		collector.hookRuns.WithLabelValues(name).Add(float64(s.Runs))
		collector.hookFailures.WithLabelValues(name).Add(float64(s.Failures))
	}
	registry := prometheus.NewRegistry()
	if err := registry.Register(collector); err != nil {
		return errors.Trace(err)
	}
	if err := os.MkdirAll(r.Dir, 0755); err != nil {
		return errors.Trace(err)
	}
	path := filepath.Join(r.Dir, TextfileName)
	return errors.Annotatef(prometheus.WriteToTextfile(path, registry), "writing %s", path)
}
