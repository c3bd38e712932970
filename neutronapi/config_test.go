// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package neutronapi_test

import (
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/charm-neutron-api/charm"
	"github.com/juju/charm-neutron-api/hook"
	"github.com/juju/charm-neutron-api/neutronapi"
)

type configSuite struct {
	baseSuite
	options *charm.Config
}

var _ = gc.Suite(&configSuite{})

func (s *configSuite) SetUpTest(c *gc.C) {
	s.baseSuite.SetUpTest(c)
	options, err := charm.ReadConfigFile("..")
	c.Assert(err, jc.ErrorIsNil)
	s.options = options
}

func (s *configSuite) load(c *gc.C) *hook.Config {
	config, err := neutronapi.LoadConfig(hook.NewClient(s.agent), s.store, s.options)
	c.Assert(err, jc.ErrorIsNil)
	return config
}

func (s *configSuite) TestLoadConfigFirstHook(c *gc.C) {
	s.agent.Config["quota-port"] = 100
	config := s.load(c)
	c.Assert(config.Int("quota-port"), gc.Equals, 100)
	c.Assert(config.String("neutron-plugin"), gc.Equals, "ovs")
	c.Assert(config.Changed("neutron-plugin"), jc.IsTrue)
	c.Assert(config.Previous("quota-port"), gc.IsNil)
}

func (s *configSuite) TestLoadConfigComparesWithSaved(c *gc.C) {
	s.agent.Config["quota-port"] = 100
	c.Assert(neutronapi.SaveConfig(s.store, s.load(c)), jc.ErrorIsNil)

	s.agent.Config["quota-port"] = 200
	config := s.load(c)
	c.Assert(config.Changed("quota-port"), jc.IsTrue)
	c.Assert(config.Previous("quota-port"), gc.Equals, int64(100))
	c.Assert(config.Changed("neutron-plugin"), jc.IsFalse)
	c.Assert(config.Changed("l2-population"), jc.IsFalse)
}

func (s *configSuite) TestLoadConfigDropsRemovedOptions(c *gc.C) {
	c.Assert(s.store.Set("charm.config", map[string]interface{}{
		"enable-hyperv": true,
		"debug":         true,
	}), jc.ErrorIsNil)
	config := s.load(c)
	c.Assert(config.Changed("debug"), jc.IsTrue)
	c.Assert(config.Previous("enable-hyperv"), gc.IsNil)
}

func (s *configSuite) TestLoadConfigUnknownOption(c *gc.C) {
	s.agent.Config["bogus"] = "value"
	_, err := neutronapi.LoadConfig(hook.NewClient(s.agent), s.store, s.options)
	c.Assert(err, gc.ErrorMatches, `config option "bogus" not found`)
}
