// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package neutronapi

import (
	"path/filepath"
	"strings"

	"github.com/juju/errors"

	"github.com/juju/charm-neutron-api/nrpe"
	"github.com/juju/charm-neutron-api/openstack"
)

const nrpeRelation = "nrpe-external-master"

// UpdateNRPEConfig writes the Nagios checks of the managed services and
// publishes them on every nrpe-external-master relation. Without such a
// relation there is nothing to monitor.
func (c *Charm) UpdateNRPEConfig() error {
	ids, err := c.Tools.RelationIds(nrpeRelation)
	if err != nil {
		return errors.Trace(err)
	}
	if len(ids) == 0 {
		logger.Debugf("no %s relation, skipping nrpe checks", nrpeRelation)
		return nil
	}
	// check_upstart_job and check_systemd.py need python-dbus.
	missing, err := c.Apt.FilterInstalled([]string{"python-dbus"})
	if err != nil {
		return errors.Trace(err)
	}
	if err := c.Apt.Install(missing); err != nil {
		return errors.Trace(err)
	}

	hostname, hostContext, err := c.nagiosHost(ids)
	if err != nil {
		return errors.Trace(err)
	}
	nagiosContext := c.Config.String("nagios_context")
	if hostname == "" {
		hostname = nagiosContext + "-" + strings.Replace(c.Env.UnitName, "/", "-", -1)
	}
	unit := c.Env.UnitName
	if hostContext != "" && hostContext != unit {
		unit = hostContext + ":" + unit
	}
	groups := c.Config.String("nagios_servicegroups")
	if groups == "" {
		groups = nagiosContext
	}

	checks := &nrpe.Config{
		Hostname:      hostname,
		ServiceGroups: groups,
		TemplatesDir:  c.TemplatesDir,
		Root:          c.Root,
	}
	if err := checks.CopyPlugins(filepath.Join(c.Env.CharmDir, "files", nrpeRelation)); err != nil {
		return errors.Trace(err)
	}
	series, err := c.Installer.Series()
	if err != nil {
		return errors.Trace(err)
	}
	services, err := c.ServiceNames()
	if err != nil {
		return errors.Trace(err)
	}
	systemd := openstack.CompareSeries(series, "xenial") >= 0
	if err := checks.AddInitServiceChecks(services, unit, systemd); err != nil {
		return errors.Trace(err)
	}
	if err := checks.AddHAProxyChecks(unit); err != nil {
		return errors.Trace(err)
	}
	if err := checks.Write(); err != nil {
		return errors.Trace(err)
	}
	if err := c.Services.Reload(nrpe.ServiceName); err != nil {
		logger.Warningf("reloading %s: %v", nrpe.ServiceName, err)
	}

	monitors, err := checks.Monitors()
	if err != nil {
		return errors.Trace(err)
	}
	for _, id := range ids {
		if err := c.Tools.RelationSet(id, map[string]string{"monitors": monitors}); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// nagiosHost returns the nagios_hostname and nagios_host_context the
// nagios side of the relations published, if any.
func (c *Charm) nagiosHost(ids []string) (hostname, hostContext string, err error) {
	for _, id := range ids {
		units, err := c.Tools.RelatedUnits(id)
		if err != nil {
			return "", "", errors.Trace(err)
		}
		for _, unit := range units {
			settings, err := c.Tools.RelationGet(id, unit)
			if err != nil {
				return "", "", errors.Trace(err)
			}
			if hostname == "" {
				hostname = settings["nagios_hostname"]
			}
			if hostContext == "" {
				hostContext = settings["nagios_host_context"]
			}
		}
	}
	return hostname, hostContext, nil
}
