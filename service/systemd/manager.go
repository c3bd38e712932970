// Copyright 2015 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package systemd

import (
	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("neutronapi.service.systemd")

// DBusAPI describes the systemd dbus calls the manager uses.
type DBusAPI interface {
	Close()
	ListUnits() ([]dbus.UnitStatus, error)
	StartUnit(string, string, chan<- string) (int, error)
	StopUnit(string, string, chan<- string) (int, error)
	RestartUnit(string, string, chan<- string) (int, error)
	ReloadUnit(string, string, chan<- string) (int, error)
	EnableUnitFiles([]string, bool, bool) (bool, []dbus.EnableUnitFileChange, error)
	DisableUnitFiles([]string, bool) ([]dbus.DisableUnitFileChange, error)
	Reload() error
}

// Type alias for a DBusAPI factory method.
type DBusAPIFactory = func() (DBusAPI, error)

// NewDBusAPI connects to the system bus.
var NewDBusAPI = func() (DBusAPI, error) {
	return dbus.New()
}

var newChan = func() chan string {
	return make(chan string, 1)
}

// Manager controls systemd units over dbus.
type Manager struct {
	newDBus DBusAPIFactory
}

// NewManager returns a Manager connecting with newDBus.
func NewManager(newDBus DBusAPIFactory) *Manager {
	return &Manager{newDBus: newDBus}
}

func unitName(name string) string {
	return name + ".service"
}

func (m *Manager) errorf(err error, name, msg string, args ...interface{}) error {
	msg += " for service %q"
	args = append(args, name)
	if err == nil {
		err = errors.Errorf(msg, args...)
	} else {
		err = errors.Annotatef(err, msg, args...)
	}
	logger.Errorf("%v", err)
	return err
}

func (m *Manager) conn(name string) (DBusAPI, error) {
	conn, err := m.newDBus()
	if err != nil {
		logger.Errorf("failed to connect to dbus for service %q: %v", name, err)
	}
	return conn, errors.Trace(err)
}

// Running reports whether the unit for name is loaded and active.
func (m *Manager) Running(name string) (bool, error) {
	conn, err := m.conn(name)
	if err != nil {
		return false, errors.Trace(err)
	}
	defer conn.Close()

	units, err := conn.ListUnits()
	if err != nil {
		return false, m.errorf(err, name, "failed to query services from dbus")
	}
	for _, unit := range units {
		if unit.Name == unitName(name) {
			return unit.LoadState == "loaded" && unit.ActiveState == "active", nil
		}
	}
	return false, nil
}

type unitOp func(DBusAPI, string, string, chan<- string) (int, error)

func (m *Manager) run(name, op string, call unitOp) error {
	conn, err := m.conn(name)
	if err != nil {
		return errors.Trace(err)
	}
	defer conn.Close()

	statusCh := newChan()
	if _, err := call(conn, unitName(name), "replace", statusCh); err != nil {
		return m.errorf(err, name, "dbus %s request failed", op)
	}
	if status := <-statusCh; status != "done" {
		return m.errorf(nil, name, "failed to %s (API status %q)", op, status)
	}
	logger.Debugf("service %q: %s done", name, op)
	return nil
}

// Start starts name unless it is already running.
func (m *Manager) Start(name string) error {
	running, err := m.Running(name)
	if err != nil {
		return errors.Trace(err)
	}
	if running {
		logger.Debugf("service %q already running", name)
		return nil
	}
	return m.run(name, "start", DBusAPI.StartUnit)
}

// Stop stops name if it is running.
func (m *Manager) Stop(name string) error {
	running, err := m.Running(name)
	if err != nil {
		return errors.Trace(err)
	}
	if !running {
		logger.Debugf("service %q not running", name)
		return nil
	}
	return m.run(name, "stop", DBusAPI.StopUnit)
}

// Restart restarts name, starting it if it is stopped.
func (m *Manager) Restart(name string) error {
	return m.run(name, "restart", DBusAPI.RestartUnit)
}

// Reload asks name to reload its configuration.
func (m *Manager) Reload(name string) error {
	return m.run(name, "reload", DBusAPI.ReloadUnit)
}

// Enable enables name to start at boot.
func (m *Manager) Enable(name string) error {
	conn, err := m.conn(name)
	if err != nil {
		return errors.Trace(err)
	}
	defer conn.Close()

	if _, _, err := conn.EnableUnitFiles([]string{unitName(name)}, false, true); err != nil {
		return m.errorf(err, name, "dbus enable request failed")
	}
	return errors.Trace(conn.Reload())
}

// Disable stops name starting at boot.
func (m *Manager) Disable(name string) error {
	conn, err := m.conn(name)
	if err != nil {
		return errors.Trace(err)
	}
	defer conn.Close()

	if _, err := conn.DisableUnitFiles([]string{unitName(name)}, false); err != nil {
		return m.errorf(err, name, "dbus disable request failed")
	}
	return errors.Trace(conn.Reload())
}
