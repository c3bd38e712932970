// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package neutronapi_test

import (
	"path/filepath"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/charm-neutron-api/neutronapi"
	"github.com/juju/charm-neutron-api/service"
)

type resourcesSuite struct {
	baseSuite
}

var _ = gc.Suite(&resourcesSuite{})

func resourcePaths(resources []neutronapi.Resource) []string {
	var paths []string
	for _, res := range resources {
		paths = append(paths, res.Path)
	}
	return paths
}

func findResource(resources []neutronapi.Resource, path string) *neutronapi.Resource {
	for i := range resources {
		if resources[i].Path == path {
			return &resources[i]
		}
	}
	return nil
}

func (s *resourcesSuite) TestResourceMapMitakaLegacy(c *gc.C) {
	resources, err := s.newCharm(c).ResourceMap("mitaka")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(resourcePaths(resources), jc.DeepEquals, []string{
		neutronapi.NeutronConf,
		neutronapi.NeutronDefault,
		neutronapi.ApacheConf,
		neutronapi.HAProxyConf,
		neutronapi.NeutronLBaaSConf,
		neutronapi.NeutronVPNaaSConf,
		"/etc/neutron/plugins/ml2/ml2_conf.ini",
		neutronapi.MemcachedConf,
	})
	plugin := findResource(resources, "/etc/neutron/plugins/ml2/ml2_conf.ini")
	c.Assert(plugin.Services, jc.DeepEquals, []string{"neutron-server"})
	c.Assert(plugin.Contexts, jc.DeepEquals, []string{"shared-db", "neutron-cc", "pgsql-db"})
}

func (s *resourcesSuite) TestResourceMapApache24(c *gc.C) {
	s.writeFile(c, "/etc/apache2/conf-available/security.conf", "")
	resources, err := s.newCharm(c).ResourceMap("mitaka")
	c.Assert(err, jc.ErrorIsNil)
	paths := resourcePaths(resources)
	c.Assert(paths, hasItem, neutronapi.Apache24Conf)
	c.Assert(findResource(resources, neutronapi.ApacheConf), gc.IsNil)
}

func (s *resourcesSuite) TestResourceMapIcehouse(c *gc.C) {
	resources, err := s.newCharm(c).ResourceMap("icehouse")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(findResource(resources, neutronapi.NeutronLBaaSConf), gc.IsNil)
	c.Assert(findResource(resources, neutronapi.MemcachedConf), gc.IsNil)
}

func (s *resourcesSuite) TestResourceMapSubordinatePlugin(c *gc.C) {
	s.settings["manage-neutron-plugin-legacy-mode"] = false
	resources, err := s.newCharm(c).ResourceMap("mitaka")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(findResource(resources, "/etc/neutron/plugins/ml2/ml2_conf.ini"), gc.IsNil)
	conf := findResource(resources, neutronapi.NeutronConf)
	c.Assert(conf.Contexts, hasItem, "sdn")
	c.Assert(findResource(resources, neutronapi.NeutronDefault).Contexts, jc.DeepEquals, []string{"sdn-config-file"})
}

func (s *resourcesSuite) TestResourceMapDoesNotShareState(c *gc.C) {
	s.settings["manage-neutron-plugin-legacy-mode"] = false
	_, err := s.newCharm(c).ResourceMap("mitaka")
	c.Assert(err, jc.ErrorIsNil)

	s.settings["manage-neutron-plugin-legacy-mode"] = true
	resources, err := s.newCharm(c).ResourceMap("mitaka")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(findResource(resources, neutronapi.NeutronConf).Contexts, gc.Not(hasItem), "sdn")
}

func (s *resourcesSuite) TestResourceMapNuage(c *gc.C) {
	s.settings["neutron-plugin"] = "vsp"
	resources, err := s.newCharm(c).ResourceMap("mitaka")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(findResource(resources, neutronapi.NeutronConf).Contexts, hasItem, "nuage-vsd")
	plugin := findResource(resources, "/etc/neutron/plugins/nuage/nuage_plugin.ini")
	c.Assert(plugin, gc.NotNil)
	c.Assert(plugin.Contexts, hasItem, "nuage-vsd")
}

func (s *resourcesSuite) TestResourceMapUnknownPlugin(c *gc.C) {
	s.settings["neutron-plugin"] = "bogus"
	_, err := s.newCharm(c).ResourceMap("mitaka")
	c.Assert(err, gc.ErrorMatches, `neutron plugin "bogus" not found`)
}

func (s *resourcesSuite) TestRestartMapCalico(c *gc.C) {
	s.settings["neutron-plugin"] = "Calico"
	nc := s.newCharm(c)
	resources, err := nc.ResourceMap("mitaka")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(resourcePaths(resources), hasItem, neutronapi.EtcdInitConf)

	restartMap, err := nc.RestartMap()
	c.Assert(err, jc.ErrorIsNil)
	for _, fs := range restartMap {
		c.Check(fs.Path, gc.Not(gc.Equals), filepath.Join(s.root, neutronapi.EtcdInitConf))
		c.Check(fs.Path, gc.Not(gc.Equals), filepath.Join(s.root, neutronapi.EtcdDefault))
	}
}

func (s *resourcesSuite) TestRestartMap(c *gc.C) {
	restartMap, err := s.newCharm(c).RestartMap()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(restartMap[0], jc.DeepEquals, service.FileServices{
		Path:     filepath.Join(s.root, neutronapi.NeutronConf),
		Services: []string{"neutron-server"},
	})
	c.Assert(restartMap.Services(), jc.SameContents, []string{
		"neutron-server", "apache2", "haproxy", "memcached",
	})
}

func (s *resourcesSuite) TestDeterminePorts(c *gc.C) {
	ports, err := s.newCharm(c).DeterminePorts()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(ports, jc.DeepEquals, []int{9696})
}

func (s *resourcesSuite) TestAPIPort(c *gc.C) {
	port, err := neutronapi.APIPort("neutron-server")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(port, gc.Equals, 9696)
	_, err = neutronapi.APIPort("nova-api")
	c.Assert(err, gc.ErrorMatches, `API port for "nova-api" not found`)
}

func (s *resourcesSuite) TestDeterminePackagesMitaka(c *gc.C) {
	pkgs, err := s.newCharm(c).DeterminePackages("mitaka")
	c.Assert(err, jc.ErrorIsNil)
	for _, pkg := range []string{
		"apache2",
		"haproxy",
		"neutron-server",
		"neutron-plugin-ml2",
		"python-neutron-lbaas",
		"python-networking-hyperv",
		"memcached",
		"python-memcache",
	} {
		c.Check(pkgs, hasItem, pkg)
	}
}

func (s *resourcesSuite) TestDeterminePackagesIcehouse(c *gc.C) {
	pkgs, err := s.newCharm(c).DeterminePackages("icehouse")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(pkgs, gc.Not(hasItem), "python-neutron-lbaas")
	c.Check(pkgs, gc.Not(hasItem), "python-networking-hyperv")
	c.Check(pkgs, gc.Not(hasItem), "memcached")
	c.Check(pkgs, hasItem, "neutron-server")
}

func (s *resourcesSuite) TestDeterminePackagesNuage(c *gc.C) {
	s.settings["neutron-plugin"] = "vsp"
	pkgs, err := s.newCharm(c).DeterminePackages("liberty")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(pkgs, hasItem, "nuage-openstack-neutron")
	c.Check(pkgs, hasItem, "nuagenetlib")
	c.Check(pkgs, hasItem, "neutron-plugin-nuage")
}

func (s *resourcesSuite) TestDetermineEndpoints(c *gc.C) {
	endpoints := s.newCharm(c).DetermineEndpoints("https://public", "http://internal", "http://admin")
	c.Assert(endpoints, jc.DeepEquals, map[string]string{
		"neutron_service":      "neutron",
		"neutron_region":       "RegionOne",
		"neutron_public_url":   "https://public:9696",
		"neutron_admin_url":    "http://admin:9696",
		"neutron_internal_url": "http://internal:9696",
		"quantum_service":      "",
		"quantum_region":       "",
		"quantum_public_url":   "",
		"quantum_admin_url":    "",
		"quantum_internal_url": "",
	})
}

func (s *resourcesSuite) TestRelease(c *gc.C) {
	release, err := s.newCharm(c).Release()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(release, gc.Equals, "mitaka")

	s.installed("neutron-common", "2:9.0.0-0ubuntu1")
	release, err = s.newCharm(c).Release()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(release, gc.Equals, "newton")
}
