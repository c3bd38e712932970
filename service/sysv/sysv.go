// Copyright 2012, 2013 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package sysv controls services through the service(8) wrapper, for
// machines not running systemd.
package sysv

import (
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/juju/charm-neutron-api/runner"
)

var logger = loggo.GetLogger("neutronapi.service.sysv")

// Manager runs service and update-rc.d.
type Manager struct {
	runner runner.CommandRunner
}

// NewManager returns a Manager running commands through r.
func NewManager(r runner.CommandRunner) *Manager {
	return &Manager{runner: r}
}

func (m *Manager) runCommand(name string, args ...string) error {
	_, err := runner.RunCommand(m.runner, name, args...)
	return errors.Trace(err)
}

// Running returns true if the service status exits zero.
func (m *Manager) Running(name string) (bool, error) {
	out, err := runner.RunCommand(m.runner, "service", name, "status")
	logger.Tracef("Running \"service %s status\": %q", name, out)
	if err == nil {
		return true, nil
	}
	if runner.ExitCode(err) > 0 {
		return false, nil
	}
	return false, errors.Trace(err)
}

// Start starts the service.
func (m *Manager) Start(name string) error {
	running, err := m.Running(name)
	if err != nil {
		return errors.Trace(err)
	}
	if running {
		return nil
	}
	err = m.runCommand("service", name, "start")
	if err != nil {
		// Double check to see if we were started before our command ran.
		if running, _ := m.Running(name); running {
			return nil
		}
	}
	return err
}

// Stop stops the service.
func (m *Manager) Stop(name string) error {
	running, err := m.Running(name)
	if err != nil {
		return errors.Trace(err)
	}
	if !running {
		return nil
	}
	return m.runCommand("service", name, "stop")
}

// Restart restarts the service.
func (m *Manager) Restart(name string) error {
	return m.runCommand("service", name, "restart")
}

// Reload reloads the service configuration.
func (m *Manager) Reload(name string) error {
	return m.runCommand("service", name, "reload")
}

// Enable enables the service at boot.
func (m *Manager) Enable(name string) error {
	return m.runCommand("update-rc.d", name, "enable")
}

// Disable disables the service at boot.
func (m *Manager) Disable(name string) error {
	return m.runCommand("update-rc.d", name, "disable")
}
