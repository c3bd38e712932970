// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// The hook package provides the charm's view of a running hook: the
// environment the unit agent sets up, typed access to the hook tools,
// and a registry that dispatches hook names to Go functions.
package hook

import (
	"os"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/names/v5"
)

// Environment holds the hook context the unit agent exposes through
// environment variables.
type Environment struct {
	UnitName     string
	RelationName string
	RelationId   string
	RemoteUnit   string
	HookName     string
	CharmDir     string
	ActionName   string
}

// EnvironmentFromOS reads the hook environment from the process
// environment.
func EnvironmentFromOS() Environment {
	charmDir := os.Getenv("CHARM_DIR")
	if charmDir == "" {
		charmDir = os.Getenv("JUJU_CHARM_DIR")
	}
	return Environment{
		UnitName:     os.Getenv("JUJU_UNIT_NAME"),
		RelationName: os.Getenv("JUJU_RELATION"),
		RelationId:   os.Getenv("JUJU_RELATION_ID"),
		RemoteUnit:   os.Getenv("JUJU_REMOTE_UNIT"),
		HookName:     os.Getenv("JUJU_HOOK_NAME"),
		CharmDir:     charmDir,
		ActionName:   os.Getenv("JUJU_ACTION_NAME"),
	}
}

// ApplicationName returns the application the local unit belongs to.
func (env Environment) ApplicationName() (string, error) {
	if env.UnitName == "" {
		return "", errors.NotFoundf("JUJU_UNIT_NAME")
	}
	return names.UnitApplication(env.UnitName)
}

// LocalUnitTag returns the unit name in the form used for pacemaker
// resource and host naming, with the "/" replaced by "-".
func (env Environment) LocalUnitTag() string {
	return strings.Replace(env.UnitName, "/", "-", -1)
}

// Vars returns an os.Environ-style list of the variables that make up
// env. Empty values are omitted.
func (env Environment) Vars() []string {
	vars := []string{
		"APT_LISTCHANGES_FRONTEND=none",
		"DEBIAN_FRONTEND=noninteractive",
	}
	add := func(name, value string) {
		if value != "" {
			vars = append(vars, name+"="+value)
		}
	}
	add("CHARM_DIR", env.CharmDir)
	add("JUJU_UNIT_NAME", env.UnitName)
	add("JUJU_RELATION", env.RelationName)
	add("JUJU_RELATION_ID", env.RelationId)
	add("JUJU_REMOTE_UNIT", env.RemoteUnit)
	add("JUJU_HOOK_NAME", env.HookName)
	add("JUJU_ACTION_NAME", env.ActionName)
	return vars
}
