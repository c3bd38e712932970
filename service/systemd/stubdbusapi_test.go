// Copyright 2015 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package systemd_test

import (
	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/juju/testing"
)

type StubDbusAPI struct {
	*testing.Stub

	Units []dbus.UnitStatus

	// Result is sent on the status channel of every unit job.
	Result string
}

func (fda *StubDbusAPI) AddUnit(name, desc, status string) {
	active := ""
	load := "loaded"
	if status == "error" {
		load = status
	} else {
		active = status
	}

	unit := dbus.UnitStatus{
		Name:        name,
		Description: desc,
		ActiveState: active,
		LoadState:   load,
	}
	fda.Units = append(fda.Units, unit)
}

func (fda *StubDbusAPI) job(ch chan<- string) (int, error) {
	if err := fda.NextErr(); err != nil {
		return 0, err
	}
	result := fda.Result
	if result == "" {
		result = "done"
	}
	ch <- result
	return 1, nil
}

func (fda *StubDbusAPI) ListUnits() ([]dbus.UnitStatus, error) {
	fda.Stub.AddCall("ListUnits")

	return fda.Units, fda.NextErr()
}

func (fda *StubDbusAPI) StartUnit(name string, mode string, ch chan<- string) (int, error) {
	fda.Stub.AddCall("StartUnit", name, mode)

	return fda.job(ch)
}

func (fda *StubDbusAPI) StopUnit(name string, mode string, ch chan<- string) (int, error) {
	fda.Stub.AddCall("StopUnit", name, mode)

	return fda.job(ch)
}

func (fda *StubDbusAPI) RestartUnit(name string, mode string, ch chan<- string) (int, error) {
	fda.Stub.AddCall("RestartUnit", name, mode)

	return fda.job(ch)
}

func (fda *StubDbusAPI) ReloadUnit(name string, mode string, ch chan<- string) (int, error) {
	fda.Stub.AddCall("ReloadUnit", name, mode)

	return fda.job(ch)
}

func (fda *StubDbusAPI) EnableUnitFiles(files []string, runtime bool, force bool) (bool, []dbus.EnableUnitFileChange, error) {
	fda.Stub.AddCall("EnableUnitFiles", files, runtime, force)

	return false, nil, fda.NextErr()
}

func (fda *StubDbusAPI) DisableUnitFiles(files []string, runtime bool) ([]dbus.DisableUnitFileChange, error) {
	fda.Stub.AddCall("DisableUnitFiles", files, runtime)

	return nil, fda.NextErr()
}

func (fda *StubDbusAPI) Reload() error {
	fda.Stub.AddCall("Reload")

	return fda.NextErr()
}

func (fda *StubDbusAPI) Close() {
	fda.Stub.AddCall("Close")

	fda.Stub.NextErr() // We don't return the error (just pop it off).
}
