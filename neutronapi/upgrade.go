// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package neutronapi

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/juju/charm-neutron-api/openstack"
	"github.com/juju/charm-neutron-api/runner"
)

const (
	nuageMigrationDir    = "/usr/lib/python2.7/dist-packages/neutron/db/migration/nuage"
	nuageMigrationScript = nuageMigrationDir + "/migrate_hybrid_juno.py"
)

// dpkgOptions keep the maintainer's config files during upgrades;
// the charm rewrites them afterwards.
var dpkgOptions = []string{
	"--option", "Dpkg::Options::=--force-confnew",
	"--option", "Dpkg::Options::=--force-confdef",
}

// earlyReleases need a release-specific package archive for plugins
// that were not yet upstream.
var earlyReleases = set.NewStrings("icehouse", "juno", "kilo")

// midonetReleases still need the midonet OpenStack archive.
var midonetReleases = set.NewStrings("juno", "kilo", "liberty")

// DoOpenStackUpgrade moves the unit to the release of
// openstack-origin: packages are upgraded, config is rendered for the
// new release and the leader migrates the database.
func (c *Charm) DoOpenStackUpgrade() error {
	current, err := c.Release()
	if err != nil {
		return errors.Trace(err)
	}
	origin := c.Config.String("openstack-origin")
	target, err := c.Installer.CodenameFromSource(origin)
	if err != nil {
		return errors.Trace(err)
	}
	logger.Infof("Performing OpenStack upgrade to %s.", target)

	if err := c.Installer.ConfigureInstallationSource(origin); err != nil {
		return errors.Trace(err)
	}
	if err := c.Apt.Update(); err != nil {
		return errors.Trace(err)
	}
	if err := c.Apt.Upgrade(true, dpkgOptions...); err != nil {
		return errors.Trace(err)
	}
	pkgs, err := c.DeterminePackages(target)
	if err != nil {
		return errors.Trace(err)
	}
	if err := c.Apt.Install(pkgs, dpkgOptions...); err != nil {
		return errors.Trace(err)
	}

	// The resource map differs between releases.
	c.release = target
	c.renderer = nil
	leader, err := c.Cluster.IsElectedLeader(ClusterResource)
	if err != nil {
		return errors.Trace(err)
	}
	if !leader {
		return nil
	}
	if !openstack.AtLeast(current, "liberty") {
		if err := c.StampDatabase(current); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(c.MigrateDatabase())
}

func (c *Charm) pluginConfig() (string, error) {
	release, err := c.Release()
	if err != nil {
		return "", errors.Trace(err)
	}
	attrs, err := openstack.PluginAttributes(c.plugin(), release)
	if err != nil {
		return "", errors.Trace(err)
	}
	return attrs.Config, nil
}

// StampDatabase marks the database as being at release, ahead of an
// upgrade.
func (c *Charm) StampDatabase(release string) error {
	logger.Infof("Stamping the neutron database with release %s.", release)
	conf, err := c.pluginConfig()
	if err != nil {
		return errors.Trace(err)
	}
	_, err = runner.RunCommand(c.Runner, "neutron-db-manage",
		"--config-file", NeutronConf,
		"--config-file", conf,
		"stamp", release)
	return errors.Annotate(err, "stamping neutron database")
}

// MigrateDatabase initialises a new database or upgrades an existing
// one to the installed release.
func (c *Charm) MigrateDatabase() error {
	logger.Infof("Migrating the neutron database.")
	release, err := c.Release()
	if err != nil {
		return errors.Trace(err)
	}
	if release == "juno" && c.plugin() == "vsp" {
		return errors.Trace(c.nuageJunoMigration())
	}
	conf, err := c.pluginConfig()
	if err != nil {
		return errors.Trace(err)
	}
	_, err = runner.RunCommand(c.Runner, "neutron-db-manage",
		"--config-file", NeutronConf,
		"--config-file", conf,
		"upgrade", "head")
	return errors.Annotate(err, "migrating neutron database")
}

// nuageJunoMigration runs the hybrid migration Nuage ships for Juno.
func (c *Charm) nuageJunoMigration() error {
	logger.Infof("Nuage VSP with Juno release")
	conf, err := c.pluginConfig()
	if err != nil {
		return errors.Trace(err)
	}
	switch {
	case !c.exists(nuageMigrationDir):
		return errors.New(nuageMigrationDir + " doesnot exists")
	case !c.exists(nuageMigrationScript):
		return errors.New(nuageMigrationScript + " doesnot exists")
	case !c.exists(conf):
		return errors.New(conf + " doesnot exist")
	}
	logger.Infof("Running migration script for Juno release")
	_, err = runner.RunCommand(c.Runner, "python", nuageMigrationScript,
		"--config-file", conf,
		"--config-file", NeutronConf)
	return errors.Annotate(err, "running nuage migration")
}

// migrationAllowed reports whether a database relation lists the
// local unit as allowed to use the database.
func (c *Charm) migrationAllowed() (bool, error) {
	allowed := false
	for endpoint, key := range map[string]string{
		"shared-db": "allowed_units",
		"pgsql-db":  "allowed-units",
	} {
		err := c.eachUnit(endpoint, func(_, _ string, settings map[string]string) bool {
			for _, unit := range strings.Fields(settings[key]) {
				if unit == c.Env.UnitName {
					allowed = true
				}
			}
			return allowed
		})
		if err != nil {
			return false, errors.Trace(err)
		}
	}
	return allowed, nil
}

// ConditionalMigration migrates the database once it is usable: from
// kilo on, on the elected leader only, once the database has granted
// this unit access. neutron-server is then restarted.
func (c *Charm) ConditionalMigration() error {
	release, err := c.Release()
	if err != nil {
		return errors.Trace(err)
	}
	if !openstack.AtLeast(release, "kilo") {
		logger.Infof("Not running neutron database migration as migrations are handled by the neutron-server process.")
		return nil
	}
	leader, err := c.Cluster.IsElectedLeader(ClusterResource)
	if err != nil {
		return errors.Trace(err)
	}
	if !leader {
		logger.Infof("Not running neutron database migration, not leader")
		return nil
	}
	allowed, err := c.migrationAllowed()
	if err != nil {
		return errors.Trace(err)
	}
	if !allowed {
		logger.Infof("Not running neutron database migration, either no allowed_units or this unit is not present")
		return nil
	}
	if err := c.MigrateDatabase(); err != nil {
		return errors.Trace(err)
	}
	paused, err := c.paused()
	if err != nil {
		return errors.Trace(err)
	}
	if paused {
		return nil
	}
	return errors.Annotate(c.Services.Restart(NeutronServer), "restarting neutron-server")
}

func (c *Charm) readCharmFile(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(c.Env.CharmDir, "files", name))
	if err != nil {
		return "", errors.Trace(err)
	}
	return string(data), nil
}

// AdditionalInstallLocations adds the package archives plugin needs
// beyond origin.
func (c *Charm) AdditionalInstallLocations(plugin, origin string) error {
	release, err := c.Installer.CodenameFromSource(origin)
	if err != nil {
		return errors.Trace(err)
	}
	switch plugin {
	case "Calico":
		source := c.Config.String("calico-origin")
		if source == "" {
			if earlyReleases.Contains(release) {
				source = "ppa:project-calico/" + release
			} else {
				source = "ppa:project-calico/calico-1.4"
			}
		}
		return errors.Trace(c.Sources.Add(source, ""))
	case "midonet":
		if err := c.addMidonetSources(release); err != nil {
			return errors.Trace(err)
		}
		if err := c.Apt.Update(); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(c.Apt.Upgrade(false))
	}
	return nil
}

func (c *Charm) addMidonetSources(release string) error {
	midonetOrigin := c.Config.String("midonet-origin")
	parts := strings.SplitN(midonetOrigin, "-", 2)
	if len(parts) != 2 || parts[1] == "" {
		return errors.NotValidf("midonet-origin %q", midonetOrigin)
	}
	version := parts[1]
	var sources []string
	keyFile := "midonet.key"
	if strings.HasPrefix(midonetOrigin, "mem") {
		keyFile = "midokura.key"
		user, password := c.Config.String("mem-username"), c.Config.String("mem-password")
		if midonetReleases.Contains(release) {
			sources = append(sources, fmt.Sprintf(
				"deb http://%s:%s@apt.midokura.com/openstack/%s/stable trusty main", user, password, release))
		}
		sources = append(sources, fmt.Sprintf(
			"http://%s:%s@apt.midokura.com/midonet/v%s/stable main", user, password, version))
	} else {
		if midonetReleases.Contains(release) {
			sources = append(sources, fmt.Sprintf(
				"deb http://repo.midonet.org/openstack-%s stable main", release))
		}
		sources = append(sources, fmt.Sprintf(
			"deb http://repo.midonet.org/midonet/v%s stable main", version))
	}
	key, err := c.readCharmFile(keyFile)
	if err != nil {
		return errors.Trace(err)
	}
	for _, source := range sources {
		if err := c.Sources.Add(source, key); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// ForceEtcdRestart stops etcd, discards its data so it rereads
// settings it only honours on first start, and starts it again unless
// the unit is paused.
func (c *Charm) ForceEtcdRestart() error {
	if err := c.Services.Stop("etcd"); err != nil {
		return errors.Annotate(err, "stopping etcd")
	}
	dataDir := c.path(EtcdDataDir)
	entries, err := os.ReadDir(dataDir)
	if err != nil && !os.IsNotExist(err) {
		return errors.Trace(err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dataDir, entry.Name())); err != nil {
			return errors.Trace(err)
		}
	}
	paused, err := c.paused()
	if err != nil {
		return errors.Trace(err)
	}
	if paused {
		return nil
	}
	return errors.Annotate(c.Services.Start("etcd"), "starting etcd")
}

// SetupIPv6 prepares the machine for IPv6 endpoints. Trusty needs a
// newer haproxy from backports before liberty.
func (c *Charm) SetupIPv6() error {
	series, err := c.Installer.Series()
	if err != nil {
		return errors.Trace(err)
	}
	if openstack.CompareSeries(series, "trusty") < 0 {
		return errors.New("IPv6 is not supported in the charms for Ubuntu versions less than Trusty 14.04")
	}
	release, err := c.Release()
	if err != nil {
		return errors.Trace(err)
	}
	if series != "trusty" || openstack.AtLeast(release, "liberty") {
		return nil
	}
	if err := c.Sources.Add("deb http://archive.ubuntu.com/ubuntu trusty-backports main", ""); err != nil {
		return errors.Trace(err)
	}
	if err := c.Apt.Update(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(c.Apt.Install([]string{"haproxy/trusty-backports"}))
}

// KeystoneCACertB64 returns the keystone CA certificate installed on
// the machine, base64 encoded, or "" if there is none.
func (c *Charm) KeystoneCACertB64() (string, error) {
	data, err := os.ReadFile(c.path(CACertPath))
	if os.IsNotExist(err) {
		return "", nil
	} else if err != nil {
		return "", errors.Trace(err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// IsAPIReady reports whether every required interface has a complete
// context.
func (c *Charm) IsAPIReady() (bool, error) {
	configs, err := c.Configs()
	if err != nil {
		return false, errors.Trace(err)
	}
	complete, err := configs.CompleteContexts()
	if err != nil {
		return false, errors.Trace(err)
	}
	missing, incomplete, err := openstack.IncompleteRelations(c.Tools, complete, RequiredInterfaces)
	if err != nil {
		return false, errors.Trace(err)
	}
	return len(missing) == 0 && len(incomplete) == 0, nil
}

// ExecdPreinstall runs the charm-pre-install script of every exec.d
// payload, in name order.
func (c *Charm) ExecdPreinstall() error {
	scripts, err := filepath.Glob(filepath.Join(c.Env.CharmDir, "exec.d", "*", "charm-pre-install"))
	if err != nil {
		return errors.Trace(err)
	}
	for _, script := range scripts {
		info, err := os.Stat(script)
		if err != nil {
			return errors.Trace(err)
		}
		if info.IsDir() || info.Mode()&0111 == 0 {
			continue
		}
		logger.Infof("running %s", script)
		if _, err := runner.RunCommand(c.Runner, script); err != nil {
			return errors.Annotatef(err, "running %s", script)
		}
	}
	return nil
}
