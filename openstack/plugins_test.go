// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package openstack_test

import (
	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/charm-neutron-api/openstack"
)

type PluginsSuite struct{}

var _ = gc.Suite(&PluginsSuite{})

func (*PluginsSuite) TestOVS(c *gc.C) {
	p, err := openstack.PluginAttributes("ovs", "mitaka")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(p, jc.DeepEquals, openstack.Plugin{
		Config:         "/etc/neutron/plugins/ml2/ml2_conf.ini",
		Driver:         "neutron.plugins.ml2.plugin.Ml2Plugin",
		ServerPackages: []string{"neutron-server", "neutron-plugin-ml2"},
		ServerServices: []string{"neutron-server"},
	})
}

func (*PluginsSuite) TestCalicoRunsEtcd(c *gc.C) {
	p, err := openstack.PluginAttributes("Calico", "kilo")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(p.ServerServices, jc.DeepEquals, []string{"neutron-server", "etcd"})
}

func (*PluginsSuite) TestMidonetByRelease(c *gc.C) {
	p, err := openstack.PluginAttributes("midonet", "kilo")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(p.ServerPackages, jc.DeepEquals, []string{"neutron-server", "python-neutron-plugin-midonet"})

	p, err = openstack.PluginAttributes("midonet", "mitaka")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(p.ServerPackages, jc.DeepEquals, []string{"neutron-server", "python-networking-midonet"})
	c.Check(p.Driver, gc.Equals, "midonet.neutron.plugin_v1.MidonetPluginV2")
}

func (*PluginsSuite) TestAllPluginsHaveConfig(c *gc.C) {
	for _, name := range []string{"ovs", "nvp", "nsx", "n1kv", "Calico", "vsp", "plumgrid", "midonet"} {
		p, err := openstack.PluginAttributes(name, "liberty")
		c.Check(err, jc.ErrorIsNil)
		c.Check(p.Config, gc.Not(gc.Equals), "", gc.Commentf("plugin %s", name))
		c.Check(p.ServerServices, gc.Not(gc.HasLen), 0, gc.Commentf("plugin %s", name))
	}
}

func (*PluginsSuite) TestUnknownPlugin(c *gc.C) {
	_, err := openstack.PluginAttributes("bogus", "liberty")
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
}
