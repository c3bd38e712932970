// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package neutronapi

import (
	"github.com/juju/errors"

	"github.com/juju/charm-neutron-api/hook"
	"github.com/juju/charm-neutron-api/openstack"
)

// ActionNames lists the actions of the charm.
var ActionNames = []string{"pause", "resume", "openstack-upgrade"}

// action returns fn as a hook function that reports failure through
// action-fail rather than failing the action run itself.
func (c *Charm) action(fn func() error) hook.Func {
	return func() error {
		err := fn()
		if err == nil {
			return nil
		}
		logger.Errorf("action %q: %v", c.Env.ActionName, err)
		return errors.Trace(c.Tools.ActionFail(err.Error()))
	}
}

// Pause stops every managed service and keeps them stopped across
// hooks until Resume.
func (c *Charm) Pause() error {
	services, err := c.ServiceNames()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(openstack.PauseUnit(c.Store, c.Services, services, c.assess))
}

// Resume starts every managed service again.
func (c *Charm) Resume() error {
	services, err := c.ServiceNames()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(openstack.ResumeUnit(c.Store, c.Services, services, c.assess))
}

// OpenStackUpgrade upgrades to the release of openstack-origin when
// upgrades are action managed.
func (c *Charm) OpenStackUpgrade() error {
	available, err := c.Installer.UpgradeAvailable(VersionPackage)
	if err != nil {
		return errors.Trace(err)
	}
	if !available {
		return errors.Trace(c.Tools.ActionSet(map[string]string{"outcome": "no upgrade available."}))
	}
	if !c.Config.Bool("action-managed-upgrade") {
		return errors.Trace(c.Tools.ActionSet(map[string]string{
			"outcome": "action-managed-upgrade config is False, skipped upgrade.",
		}))
	}
	logger.Infof("Upgrading OpenStack release")
	if err := c.DoOpenStackUpgrade(); err != nil {
		if err := c.Tools.ActionSet(map[string]string{
			"outcome":   "upgrade failed, see traceback.",
			"traceback": errors.ErrorStack(err),
		}); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(c.Tools.ActionFail("openstack upgrade resulted in an unexpected error"))
	}
	if err := c.Tools.ActionSet(map[string]string{"outcome": "success, upgrade completed."}); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(c.ConfigChanged())
}
