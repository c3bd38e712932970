// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package metrics_test

import (
	"os"
	"path/filepath"
	"time"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/charm-neutron-api/metrics"
	"github.com/juju/charm-neutron-api/unitdata"
)

type RecorderSuite struct {
	store *unitdata.Store
	dir   string
}

var _ = gc.Suite(&RecorderSuite{})

func (s *RecorderSuite) SetUpTest(c *gc.C) {
	store, err := unitdata.OpenCharmDir(c.MkDir())
	c.Assert(err, jc.ErrorIsNil)
	s.store = store
	s.dir = filepath.Join(c.MkDir(), "textfile")
}

func (s *RecorderSuite) TearDownTest(c *gc.C) {
	c.Assert(s.store.Close(), jc.ErrorIsNil)
}

func (s *RecorderSuite) TestObserveAccumulates(c *gc.C) {
	r := &metrics.Recorder{Dir: s.dir, Store: s.store}
	r.Observe("config-changed", 2*time.Second, nil)
	r.Observe("config-changed", 500*time.Millisecond, errors.New("boom"))

	data, err := os.ReadFile(filepath.Join(s.dir, metrics.TextfileName))
	c.Assert(err, jc.ErrorIsNil)
	text := string(data)
	c.Check(text, jc.Contains, `neutron_api_hook_runs_total{hook="config-changed"} 2`)
	c.Check(text, jc.Contains, `neutron_api_hook_failures_total{hook="config-changed"} 1`)
	c.Check(text, jc.Contains, `neutron_api_hook_duration_seconds{hook="config-changed"} 0.5`)

	stats := make(map[string]metrics.HookStats)
	found, err := s.store.Get("metrics.hooks", &stats)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(found, jc.IsTrue)
	c.Assert(stats["config-changed"], jc.DeepEquals, metrics.HookStats{Runs: 2, Failures: 1, LastDuration: 0.5})
}

func (s *RecorderSuite) TestObserveFailureDiscardsHookState(c *gc.C) {
	c.Assert(s.store.Set("written-by-hook", "x"), jc.ErrorIsNil)
	r := &metrics.Recorder{Dir: s.dir, Store: s.store}
	r.Observe("install", time.Second, errors.New("boom"))

	found, err := s.store.Get("written-by-hook", new(string))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(found, jc.IsFalse)
	stats := make(map[string]metrics.HookStats)
	found, err = s.store.Get("metrics.hooks", &stats)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(found, jc.IsTrue)
	c.Assert(stats["install"].Failures, gc.Equals, 1)
}

func (s *RecorderSuite) TestObserveDisabled(c *gc.C) {
	r := &metrics.Recorder{Store: s.store}
	r.Observe("install", time.Second, nil)
	_, err := os.Stat(s.dir)
	c.Assert(err, jc.Satisfies, os.IsNotExist)
}
