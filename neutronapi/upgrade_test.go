// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package neutronapi_test

import (
	"os"
	"path/filepath"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/charm-neutron-api/hook/hooktesting"
	"github.com/juju/charm-neutron-api/openstack"
)

type upgradeSuite struct {
	baseSuite
}

var _ = gc.Suite(&upgradeSuite{})

var migrateArgs = []string{
	"--config-file", "/etc/neutron/neutron.conf",
	"--config-file", "/etc/neutron/plugins/ml2/ml2_conf.ini",
	"upgrade", "head",
}

func (s *upgradeSuite) TestDoOpenStackUpgrade(c *gc.C) {
	s.installed("neutron-common", "2:8.0.0-0ubuntu1")
	s.settings["openstack-origin"] = "cloud:xenial-newton"
	s.agent.Leader = true
	nc := s.newCharm(c)

	err := nc.DoOpenStackUpgrade()
	c.Assert(err, jc.ErrorIsNil)

	release, err := nc.Release()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(release, gc.Equals, "newton")

	list := s.readFile(c, "/etc/apt/sources.list.d/cloud-archive.list")
	c.Assert(list, jc.Contains, "xenial-updates/newton")

	var aptCmds []string
	for _, args := range s.agent.CallsTo("apt-get") {
		for _, arg := range args {
			if arg == "update" || arg == "dist-upgrade" || arg == "install" {
				aptCmds = append(aptCmds, arg)
			}
		}
	}
	c.Assert(aptCmds, jc.DeepEquals, []string{"install", "update", "dist-upgrade", "install"})
	c.Assert(s.agent.CallsTo("neutron-db-manage"), jc.DeepEquals, [][]string{migrateArgs})
}

func (s *upgradeSuite) TestDoOpenStackUpgradeNotLeader(c *gc.C) {
	s.installed("neutron-common", "2:8.0.0-0ubuntu1")
	s.settings["openstack-origin"] = "cloud:xenial-newton"
	err := s.newCharm(c).DoOpenStackUpgrade()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(s.agent.CallsTo("neutron-db-manage"), gc.HasLen, 0)
}

func (s *upgradeSuite) TestDoOpenStackUpgradeStampsBeforeLiberty(c *gc.C) {
	s.setSeries(c, "trusty")
	s.installed("neutron-common", "1:2014.2.4-0ubuntu1")
	s.settings["openstack-origin"] = "cloud:trusty-kilo"
	s.agent.Leader = true
	err := s.newCharm(c).DoOpenStackUpgrade()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(s.agent.CallsTo("neutron-db-manage"), jc.DeepEquals, [][]string{{
		"--config-file", "/etc/neutron/neutron.conf",
		"--config-file", "/etc/neutron/plugins/ml2/ml2_conf.ini",
		"stamp", "juno",
	}, migrateArgs})
}

func (s *upgradeSuite) TestConditionalMigration(c *gc.C) {
	s.agent.Leader = true
	s.relate("shared-db", "mysql/0", sharedDBSettings)
	err := s.newCharm(c).ConditionalMigration()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(s.agent.CallsTo("neutron-db-manage"), jc.DeepEquals, [][]string{migrateArgs})
	c.Assert(s.manager.calls, jc.DeepEquals, []string{"restart neutron-server"})
}

func (s *upgradeSuite) TestConditionalMigrationPostgresql(c *gc.C) {
	s.agent.Leader = true
	s.relate("pgsql-db", "postgresql/0", map[string]string{
		"allowed-units": "other/0 " + unitName,
	})
	err := s.newCharm(c).ConditionalMigration()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(s.agent.CallsTo("neutron-db-manage"), gc.HasLen, 1)
}

func (s *upgradeSuite) TestConditionalMigrationPaused(c *gc.C) {
	s.agent.Leader = true
	c.Assert(s.store.Set(openstack.PausedKey, true), jc.ErrorIsNil)
	s.relate("shared-db", "mysql/0", sharedDBSettings)
	err := s.newCharm(c).ConditionalMigration()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(s.agent.CallsTo("neutron-db-manage"), gc.HasLen, 1)
	c.Assert(s.manager.calls, gc.HasLen, 0)
}

func (s *upgradeSuite) TestConditionalMigrationSkipped(c *gc.C) {
	for i, test := range []struct {
		about   string
		series  string
		leader  bool
		allowed string
	}{{
		about:   "before kilo",
		series:  "trusty",
		leader:  true,
		allowed: unitName,
	}, {
		about:   "not leader",
		series:  "xenial",
		allowed: unitName,
	}, {
		about:   "not allowed",
		series:  "xenial",
		leader:  true,
		allowed: "neutron-api/1",
	}} {
		c.Logf("test %d: %s", i, test.about)
		s.agent = hooktesting.NewAgent(unitName)
		s.setSeries(c, test.series)
		s.agent.Leader = test.leader
		s.relate("shared-db", "mysql/0", map[string]string{
			"db_host":       "10.0.0.40",
			"password":      "db-secret",
			"allowed_units": test.allowed,
		})
		err := s.newCharm(c).ConditionalMigration()
		c.Check(err, jc.ErrorIsNil)
		c.Check(s.agent.CallsTo("neutron-db-manage"), gc.HasLen, 0)
	}
}

func (s *upgradeSuite) TestMigrateDatabaseNuageJuno(c *gc.C) {
	s.setSeries(c, "trusty")
	s.settings["openstack-origin"] = "cloud:trusty-juno"
	s.settings["neutron-plugin"] = "vsp"
	nc := s.newCharm(c)

	err := nc.MigrateDatabase()
	c.Assert(err, gc.ErrorMatches, ".*/migration/nuage doesnot exists")

	s.writeFile(c, "/usr/lib/python2.7/dist-packages/neutron/db/migration/nuage/migrate_hybrid_juno.py", "")
	s.writeFile(c, "/etc/neutron/plugins/nuage/nuage_plugin.ini", "")
	err = nc.MigrateDatabase()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(s.agent.CallsTo("python"), jc.DeepEquals, [][]string{{
		"/usr/lib/python2.7/dist-packages/neutron/db/migration/nuage/migrate_hybrid_juno.py",
		"--config-file", "/etc/neutron/plugins/nuage/nuage_plugin.ini",
		"--config-file", "/etc/neutron/neutron.conf",
	}})
}

func (s *upgradeSuite) TestAdditionalInstallLocationsCalico(c *gc.C) {
	err := s.newCharm(c).AdditionalInstallLocations("Calico", "distro")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(s.agent.CallsTo("add-apt-repository"), jc.DeepEquals, [][]string{
		{"--yes", "ppa:project-calico/calico-1.4"},
	})
}

func (s *upgradeSuite) TestAdditionalInstallLocationsCalicoEarlyRelease(c *gc.C) {
	s.setSeries(c, "trusty")
	err := s.newCharm(c).AdditionalInstallLocations("Calico", "cloud:trusty-juno")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(s.agent.CallsTo("add-apt-repository"), jc.DeepEquals, [][]string{
		{"--yes", "ppa:project-calico/juno"},
	})
}

func (s *upgradeSuite) TestAdditionalInstallLocationsCalicoOrigin(c *gc.C) {
	s.settings["calico-origin"] = "ppa:project-calico/calico-2.0"
	err := s.newCharm(c).AdditionalInstallLocations("Calico", "distro")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(s.agent.CallsTo("add-apt-repository"), jc.DeepEquals, [][]string{
		{"--yes", "ppa:project-calico/calico-2.0"},
	})
}

func (s *upgradeSuite) TestAdditionalInstallLocationsMidonet(c *gc.C) {
	s.setSeries(c, "trusty")
	keyDir := filepath.Join(s.env.CharmDir, "files")
	c.Assert(os.MkdirAll(keyDir, 0755), jc.ErrorIsNil)
	c.Assert(os.WriteFile(filepath.Join(keyDir, "midonet.key"), []byte("KEY"), 0644), jc.ErrorIsNil)

	err := s.newCharm(c).AdditionalInstallLocations("midonet", "cloud:trusty-liberty")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(s.agent.CallsTo("add-apt-repository"), jc.DeepEquals, [][]string{
		{"--yes", "deb http://repo.midonet.org/openstack-liberty stable main"},
		{"--yes", "deb http://repo.midonet.org/midonet/v2015.06 stable main"},
	})
}

func (s *upgradeSuite) TestAdditionalInstallLocationsOther(c *gc.C) {
	err := s.newCharm(c).AdditionalInstallLocations("ovs", "distro")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(s.agent.Calls, gc.HasLen, 0)
}

func (s *upgradeSuite) TestForceEtcdRestart(c *gc.C) {
	s.writeFile(c, "/var/lib/etcd/member/wal/0.wal", "data")
	s.writeFile(c, "/var/lib/etcd/keep", "")
	err := s.newCharm(c).ForceEtcdRestart()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(s.manager.calls, jc.DeepEquals, []string{"stop etcd", "start etcd"})
	_, err = os.Stat(filepath.Join(s.root, "/var/lib/etcd/member"))
	c.Assert(os.IsNotExist(err), jc.IsTrue)
	c.Assert(s.readFile(c, "/var/lib/etcd/keep"), gc.Equals, "")
}

func (s *upgradeSuite) TestForceEtcdRestartPaused(c *gc.C) {
	c.Assert(s.store.Set(openstack.PausedKey, true), jc.ErrorIsNil)
	err := s.newCharm(c).ForceEtcdRestart()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(s.manager.calls, jc.DeepEquals, []string{"stop etcd"})
}

func (s *upgradeSuite) TestSetupIPv6(c *gc.C) {
	s.setSeries(c, "precise")
	err := s.newCharm(c).SetupIPv6()
	c.Assert(err, gc.ErrorMatches, "IPv6 is not supported in the charms for Ubuntu versions less than Trusty 14.04")
}

func (s *upgradeSuite) TestSetupIPv6TrustyBackports(c *gc.C) {
	s.setSeries(c, "trusty")
	err := s.newCharm(c).SetupIPv6()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(s.agent.CallsTo("add-apt-repository"), jc.DeepEquals, [][]string{
		{"--yes", "deb http://archive.ubuntu.com/ubuntu trusty-backports main"},
	})
	installs := s.agent.CallsTo("apt-get")
	last := installs[len(installs)-1]
	c.Assert(last[len(last)-1], gc.Equals, "haproxy/trusty-backports")
}

func (s *upgradeSuite) TestSetupIPv6Xenial(c *gc.C) {
	err := s.newCharm(c).SetupIPv6()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(s.agent.CallsTo("add-apt-repository"), gc.HasLen, 0)
	c.Assert(s.agent.CallsTo("apt-get"), gc.HasLen, 0)
}

func (s *upgradeSuite) TestKeystoneCACert(c *gc.C) {
	nc := s.newCharm(c)
	cert, err := nc.KeystoneCACertB64()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(cert, gc.Equals, "")

	s.writeFile(c, "/usr/local/share/ca-certificates/keystone_juju_ca_cert.crt", "CERT")
	cert, err = nc.KeystoneCACertB64()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(cert, gc.Equals, "Q0VSVA==")
}

func (s *upgradeSuite) TestExecdPreinstall(c *gc.C) {
	dir := filepath.Join(s.env.CharmDir, "exec.d", "hardening")
	c.Assert(os.MkdirAll(dir, 0755), jc.ErrorIsNil)
	script := filepath.Join(dir, "charm-pre-install")
	c.Assert(os.WriteFile(script, []byte("#!/bin/sh\n"), 0755), jc.ErrorIsNil)
	other := filepath.Join(s.env.CharmDir, "exec.d", "docs")
	c.Assert(os.MkdirAll(other, 0755), jc.ErrorIsNil)
	c.Assert(os.WriteFile(filepath.Join(other, "charm-pre-install"), []byte("text"), 0644), jc.ErrorIsNil)

	err := s.newCharm(c).ExecdPreinstall()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(s.agent.CallNames(), jc.DeepEquals, []string{script})
}

func (s *upgradeSuite) TestIsAPIReady(c *gc.C) {
	ready, err := s.newCharm(c).IsAPIReady()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(ready, jc.IsFalse)

	s.relate("shared-db", "mysql/0", sharedDBSettings)
	s.relate("amqp", "rabbitmq-server/0", amqpSettings)
	s.relate("identity-service", "keystone/0", identitySettings)
	ready, err = s.newCharm(c).IsAPIReady()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(ready, jc.IsTrue)
}
