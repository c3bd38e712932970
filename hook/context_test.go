// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hook_test

import (
	jujutesting "github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/charm-neutron-api/hook"
)

type EnvironmentSuite struct {
	jujutesting.IsolationSuite
}

var _ = gc.Suite(&EnvironmentSuite{})

func (s *EnvironmentSuite) TestEnvironmentFromOS(c *gc.C) {
	s.PatchEnvironment("JUJU_UNIT_NAME", "neutron-api/2")
	s.PatchEnvironment("JUJU_RELATION", "amqp")
	s.PatchEnvironment("JUJU_RELATION_ID", "amqp:4")
	s.PatchEnvironment("JUJU_REMOTE_UNIT", "rabbitmq-server/0")
	s.PatchEnvironment("CHARM_DIR", "")
	s.PatchEnvironment("JUJU_CHARM_DIR", "/var/lib/juju/agents/unit-neutron-api-2/charm")

	env := hook.EnvironmentFromOS()
	c.Assert(env, jc.DeepEquals, hook.Environment{
		UnitName:     "neutron-api/2",
		RelationName: "amqp",
		RelationId:   "amqp:4",
		RemoteUnit:   "rabbitmq-server/0",
		CharmDir:     "/var/lib/juju/agents/unit-neutron-api-2/charm",
	})
	app, err := env.ApplicationName()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(app, gc.Equals, "neutron-api")
	c.Assert(env.LocalUnitTag(), gc.Equals, "neutron-api-2")
}

func (s *EnvironmentSuite) TestVars(c *gc.C) {
	env := hook.Environment{UnitName: "neutron-api/0", CharmDir: "/charm"}
	c.Assert(env.Vars(), jc.DeepEquals, []string{
		"APT_LISTCHANGES_FRONTEND=none",
		"DEBIAN_FRONTEND=noninteractive",
		"CHARM_DIR=/charm",
		"JUJU_UNIT_NAME=neutron-api/0",
	})
}

func (s *EnvironmentSuite) TestApplicationNameUnset(c *gc.C) {
	_, err := hook.Environment{}.ApplicationName()
	c.Assert(err, gc.ErrorMatches, "JUJU_UNIT_NAME not found")
}
