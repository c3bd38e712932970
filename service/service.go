// Copyright 2015 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package service

import (
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/juju/charm-neutron-api/runner"
	"github.com/juju/charm-neutron-api/service/systemd"
	"github.com/juju/charm-neutron-api/service/sysv"
)

var logger = loggo.GetLogger("neutronapi.service")

// Manager controls system services by name.
type Manager interface {
	Start(name string) error
	Stop(name string) error
	Restart(name string) error
	Reload(name string) error
	Running(name string) (bool, error)
	Enable(name string) error
	Disable(name string) error
}

// This exists to allow patching during tests.
var isSystemd = systemd.IsRunning

// NewManager returns a Manager for the local init system: systemd over
// dbus when it is running, otherwise the service command.
func NewManager(r runner.CommandRunner) Manager {
	if isSystemd() {
		logger.Debugf("using systemd")
		return systemd.NewManager(systemd.NewDBusAPI)
	}
	logger.Debugf("using service(8)")
	return sysv.NewManager(r)
}

// StopAll stops then disables every one of names.
func StopAll(m Manager, names []string) error {
	for _, name := range names {
		if err := m.Stop(name); err != nil {
			return errors.Annotatef(err, "stopping %s", name)
		}
		if err := m.Disable(name); err != nil {
			return errors.Annotatef(err, "disabling %s", name)
		}
	}
	return nil
}

// StartAll enables then starts every one of names.
func StartAll(m Manager, names []string) error {
	for _, name := range names {
		if err := m.Enable(name); err != nil {
			return errors.Annotatef(err, "enabling %s", name)
		}
		if err := m.Start(name); err != nil {
			return errors.Annotatef(err, "starting %s", name)
		}
	}
	return nil
}

// NotRunning returns those of names that are not running.
func NotRunning(m Manager, names []string) ([]string, error) {
	var stopped []string
	for _, name := range names {
		running, err := m.Running(name)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if !running {
			stopped = append(stopped, name)
		}
	}
	return stopped, nil
}
