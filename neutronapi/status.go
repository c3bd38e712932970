// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package neutronapi

import (
	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/juju/charm-neutron-api/hook"
	"github.com/juju/charm-neutron-api/openstack"
)

// optionalInterfaces are checked only once the relation that needs
// them appears.
func (c *Charm) optionalInterfaces() (openstack.Interfaces, error) {
	ids, err := c.Tools.RelationIds("ha")
	if err != nil {
		return nil, errors.Trace(err)
	}
	optional := openstack.Interfaces{}
	if len(ids) > 0 {
		optional["ha"] = []string{"cluster"}
	}
	return optional, nil
}

// checkOptionalRelations blocks a unit related to hacluster until the
// VIP configuration is usable.
func (c *Charm) checkOptionalRelations() (string, string, error) {
	ids, err := c.Tools.RelationIds("ha")
	if err != nil {
		return "", "", errors.Trace(err)
	}
	if len(ids) == 0 {
		return "", "", nil
	}
	if _, err := c.Cluster.HAClusterConfig(); err != nil {
		logger.Debugf("hacluster config: %v", err)
		return hook.StatusBlocked, "hacluster missing configuration: vip, vip_iface, vip_cidr", nil
	}
	return "", "", nil
}

func (c *Charm) assessor() (*openstack.Assessor, error) {
	services, err := c.ServiceNames()
	if err != nil {
		return nil, errors.Trace(err)
	}
	optional, err := c.optionalInterfaces()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &openstack.Assessor{
		Tools:    c.Tools,
		Services: c.Services,
		Complete: func() (set.Strings, error) {
			configs, err := c.Configs()
			if err != nil {
				return nil, errors.Trace(err)
			}
			return configs.CompleteContexts()
		},
		Required:     RequiredInterfaces.Merge(optional),
		ServiceNames: services,
		Paused:       c.paused,
		Check:        c.checkOptionalRelations,
	}, nil
}

// assess reports the workload status, returning the message of a unit
// that is neither active nor in maintenance.
func (c *Charm) assess() (string, error) {
	a, err := c.assessor()
	if err != nil {
		return "", errors.Trace(err)
	}
	return a.Assess()
}

// AssessStatus reports the workload status and the version of the
// installed Neutron.
func (c *Charm) AssessStatus() error {
	if _, err := c.assess(); err != nil {
		return errors.Trace(err)
	}
	version, err := c.Installer.ApplicationVersion(VersionPackage)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(c.Tools.ApplicationVersionSet(version))
}
