// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package contexts_test

import (
	"os"
	"path/filepath"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/charm-neutron-api/contexts"
	"github.com/juju/charm-neutron-api/unitdata"
)

type HAProxySuite struct {
	baseSuite
}

var _ = gc.Suite(&HAProxySuite{})

func (s *HAProxySuite) TestNoPeers(c *gc.C) {
	ctxt, err := (&contexts.HAProxy{Env: s.env(c)}).Generate()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(ctxt, gc.HasLen, 0)

	s.agent.AddRelation("cluster")
	ctxt, err = (&contexts.HAProxy{Env: s.env(c)}).Generate()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(ctxt, gc.HasLen, 0)
}

func (s *HAProxySuite) TestPeers(c *gc.C) {
	defaults := filepath.Join(c.MkDir(), "default", "haproxy")
	s.config["os-internal-network"] = "192.168.16.0/21"
	s.config["haproxy-server-timeout"] = 90000
	s.agent.AddRelation("cluster").AddUnit("neutron-api/1", map[string]string{
		"private-address":  "10.0.0.11",
		"internal-address": "192.168.20.6",
	})
	h := &contexts.HAProxy{Env: s.env(c), DefaultsFile: defaults}
	ctxt, err := h.Generate()
	c.Assert(err, jc.ErrorIsNil)

	c.Assert(ctxt["frontends"], jc.DeepEquals, map[string]*contexts.Frontend{
		"10.0.0.10": {
			Network: "10.0.0.10/255.255.255.0",
			Backends: map[string]string{
				"neutron-api-0": "10.0.0.10",
				"neutron-api-1": "10.0.0.11",
			},
		},
		"192.168.20.5": {
			Network: "192.168.20.5/255.255.248.0",
			Backends: map[string]string{
				"neutron-api-0": "192.168.20.5",
				"neutron-api-1": "192.168.20.6",
			},
		},
	})
	c.Check(ctxt["default_backend"], gc.Equals, "10.0.0.10")
	c.Check(ctxt["haproxy_host"], gc.Equals, "0.0.0.0")
	c.Check(ctxt["haproxy_server_timeout"], gc.Equals, 90000)
	c.Check(ctxt["stat_port"], gc.Equals, "8888")

	password, ok := ctxt["stat_password"].(string)
	c.Assert(ok, jc.IsTrue)
	c.Assert(password, gc.Not(gc.Equals), "")
	data, err := os.ReadFile(defaults)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(string(data), gc.Equals, "ENABLED=1\n")

	// The stats password is stable across hooks.
	ctxt, err = h.Generate()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(ctxt["stat_password"], gc.Equals, password)
}

func (s *HAProxySuite) TestStatPasswordSurvivesFailedHook(c *gc.C) {
	dir := c.MkDir()
	store, err := unitdata.OpenCharmDir(dir)
	c.Assert(err, jc.ErrorIsNil)
	s.agent.AddRelation("cluster").AddUnit("neutron-api/1", map[string]string{
		"private-address": "10.0.0.11",
	})
	env := s.env(c)
	env.Store = store
	h := &contexts.HAProxy{Env: env, DefaultsFile: filepath.Join(c.MkDir(), "haproxy")}
	ctxt, err := h.Generate()
	c.Assert(err, jc.ErrorIsNil)
	// The hook fails later on: nothing else is flushed.
	c.Assert(store.Set("later", "dropped"), jc.ErrorIsNil)
	c.Assert(store.Close(), jc.ErrorIsNil)

	store, err = unitdata.OpenCharmDir(dir)
	c.Assert(err, jc.ErrorIsNil)
	defer store.Close()
	var password string
	found, err := store.Get(contexts.StatPasswordKey, &password)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(found, jc.IsTrue)
	c.Assert(password, gc.Equals, ctxt["stat_password"])
	found, err = store.Get("later", new(string))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(found, jc.IsFalse)
}

func (s *HAProxySuite) TestSinglenodeIPv6(c *gc.C) {
	s.config["prefer-ipv6"] = true
	ctxt, err := (&contexts.HAProxy{Env: s.env(c), SinglenodeMode: true}).Generate()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(ctxt["default_backend"], gc.Equals, "2001:db8:1::10")
	c.Check(ctxt["haproxy_host"], gc.Equals, "::")
	c.Check(ctxt["local_host"], gc.Equals, "ip6-localhost")
	c.Check(ctxt["ipv6"], gc.Equals, true)
}
