// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package neutronapi_test

import (
	"time"

	"github.com/juju/clock/testclock"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/charm-neutron-api/hook"
	"github.com/juju/charm-neutron-api/hook/hooktesting"
	"github.com/juju/charm-neutron-api/neutronapi"
	"github.com/juju/charm-neutron-api/openstack"
)

type actionsSuite struct {
	baseSuite
}

var _ = gc.Suite(&actionsSuite{})

func (s *actionsSuite) run(c *gc.C, action string) {
	s.env.ActionName = action
	registry := hook.NewRegistry(testclock.NewClock(time.Now()))
	s.newCharm(c).Register(registry)
	c.Assert(registry.Execute(action), jc.ErrorIsNil)
}

func (s *actionsSuite) paused(c *gc.C) bool {
	paused, err := openstack.IsPaused(s.store)
	c.Assert(err, jc.ErrorIsNil)
	return paused
}

func (s *actionsSuite) TestActionNames(c *gc.C) {
	c.Assert(neutronapi.ActionNames, jc.DeepEquals, []string{"pause", "resume", "openstack-upgrade"})
}

func (s *actionsSuite) TestPause(c *gc.C) {
	s.manager.setRunning("neutron-server", "apache2", "haproxy", "memcached")
	s.run(c, "pause")

	c.Assert(s.agent.ActionFailure, gc.Equals, "")
	c.Assert(s.paused(c), jc.IsTrue)
	c.Assert(s.manager.running.IsEmpty(), jc.IsTrue)
	c.Assert(s.manager.calls, hasItem, "disable neutron-server")
	c.Assert(s.agent.Status, jc.DeepEquals, hooktesting.Status{
		Status:  hook.StatusMaintenance,
		Message: "Paused. Use 'resume' action to resume normal service.",
	})
}

func (s *actionsSuite) TestPauseServiceFails(c *gc.C) {
	s.manager.failing.Add("haproxy")
	s.run(c, "pause")
	c.Assert(s.agent.ActionFailure, gc.Equals, "Couldn't pause: haproxy didn't stop cleanly.")
	c.Assert(s.paused(c), jc.IsTrue)
}

func (s *actionsSuite) TestResume(c *gc.C) {
	c.Assert(s.store.Set(openstack.PausedKey, true), jc.ErrorIsNil)
	s.relate("shared-db", "mysql/0", sharedDBSettings)
	s.relate("amqp", "rabbitmq-server/0", amqpSettings)
	s.relate("identity-service", "keystone/0", identitySettings)
	s.run(c, "resume")

	c.Assert(s.agent.ActionFailure, gc.Equals, "")
	c.Assert(s.paused(c), jc.IsFalse)
	c.Assert(s.manager.running.SortedValues(), jc.DeepEquals, []string{
		"apache2", "haproxy", "memcached", "neutron-server",
	})
	c.Assert(s.agent.Status.Status, gc.Equals, hook.StatusActive)
}

func (s *actionsSuite) TestResumeBlocked(c *gc.C) {
	c.Assert(s.store.Set(openstack.PausedKey, true), jc.ErrorIsNil)
	s.run(c, "resume")
	c.Assert(s.agent.ActionFailure, gc.Equals, "Couldn't resume: Missing relations: database, identity, messaging")
	c.Assert(s.paused(c), jc.IsFalse)
}

func (s *actionsSuite) TestOpenStackUpgradeNotAvailable(c *gc.C) {
	s.installed("neutron-common", "2:8.0.0-0ubuntu1")
	s.run(c, "openstack-upgrade")
	c.Assert(s.agent.ActionResults, jc.DeepEquals, map[string]string{"outcome": "no upgrade available."})
	c.Assert(s.agent.ActionFailure, gc.Equals, "")
}

func (s *actionsSuite) TestOpenStackUpgradeNotActionManaged(c *gc.C) {
	s.installed("neutron-common", "2:8.0.0-0ubuntu1")
	s.settings["openstack-origin"] = "cloud:xenial-newton"
	s.run(c, "openstack-upgrade")
	c.Assert(s.agent.ActionResults, jc.DeepEquals, map[string]string{
		"outcome": "action-managed-upgrade config is False, skipped upgrade.",
	})
	c.Assert(s.agent.CallsTo("apt-get"), gc.HasLen, 0)
}

func (s *actionsSuite) TestOpenStackUpgrade(c *gc.C) {
	s.installed("neutron-common", "2:8.0.0-0ubuntu1")
	s.settings["openstack-origin"] = "cloud:xenial-newton"
	s.settings["action-managed-upgrade"] = true
	s.agent.Leader = true
	s.run(c, "openstack-upgrade")

	c.Assert(s.agent.ActionResults, jc.DeepEquals, map[string]string{"outcome": "success, upgrade completed."})
	c.Assert(s.agent.ActionFailure, gc.Equals, "")
	c.Assert(s.agent.CallsTo("neutron-db-manage"), gc.HasLen, 1)
	c.Assert(s.readFile(c, neutronapi.NeutronOverride), gc.Equals, "manual\n")
}

func (s *actionsSuite) TestOpenStackUpgradeFails(c *gc.C) {
	s.installed("neutron-common", "2:8.0.0-0ubuntu1")
	s.agent.Handle("apt-get", func([]string) (string, int) { return "", 1 })
	s.settings["openstack-origin"] = "cloud:xenial-newton"
	s.settings["action-managed-upgrade"] = true
	s.run(c, "openstack-upgrade")

	c.Assert(s.agent.ActionResults["outcome"], gc.Equals, "upgrade failed, see traceback.")
	c.Assert(s.agent.ActionResults["traceback"], gc.Not(gc.Equals), "")
	c.Assert(s.agent.ActionFailure, gc.Equals, "openstack upgrade resulted in an unexpected error")
}
