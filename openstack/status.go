// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package openstack

import (
	"fmt"
	"sort"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/juju/charm-neutron-api/hook"
	"github.com/juju/charm-neutron-api/service"
)

// Interfaces maps a generic interface, such as "database", to the
// relations any one of which satisfies it.
type Interfaces map[string][]string

// Merge returns a copy of i with the groups of other added.
func (i Interfaces) Merge(other Interfaces) Interfaces {
	merged := make(Interfaces)
	for k, v := range i {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// RelationIdLister lists the relations established on an endpoint.
type RelationIdLister interface {
	RelationIds(name string) ([]string, error)
}

// IncompleteRelations sorts the generic interfaces of required that
// are not satisfied into those with no relation at all and those that
// are related but whose context is not yet complete.
func IncompleteRelations(tools RelationIdLister, complete set.Strings, required Interfaces) (missing, incomplete []string, err error) {
	for generic, relations := range required {
		related := false
		satisfied := false
		for _, name := range relations {
			ids, err := tools.RelationIds(name)
			if err != nil {
				return nil, nil, errors.Trace(err)
			}
			if len(ids) == 0 {
				continue
			}
			related = true
			if complete.Contains(name) {
				satisfied = true
			}
		}
		switch {
		case satisfied:
		case related:
			incomplete = append(incomplete, generic)
		default:
			missing = append(missing, generic)
		}
	}
	sort.Strings(missing)
	sort.Strings(incomplete)
	return missing, incomplete, nil
}

// StatusTools is the subset of hook tools status assessment uses.
type StatusTools interface {
	RelationIdLister
	StatusSet(status, message string) error
	ApplicationVersionSet(version string) error
}

// Assessor decides and reports the workload status of an OpenStack
// unit.
type Assessor struct {
	Tools    StatusTools
	Services service.Manager

	// Complete returns the interfaces whose contexts are complete.
	Complete func() (set.Strings, error)

	// Required lists the interfaces the unit cannot work without.
	Required Interfaces

	// ServiceNames are the services that must run on an active unit.
	ServiceNames []string

	// Paused reports whether the unit has been paused.
	Paused func() (bool, error)

	// Check is consulted once relations are satisfied; a non-empty
	// status overrides "active".
	Check func() (status, message string, err error)
}

// Status determines the workload status without reporting it.
func (a *Assessor) Status() (status, message string, err error) {
	paused := false
	if a.Paused != nil {
		if paused, err = a.Paused(); err != nil {
			return "", "", errors.Trace(err)
		}
	}
	stopped, err := service.NotRunning(a.Services, a.ServiceNames)
	if err != nil {
		return "", "", errors.Trace(err)
	}
	if paused {
		running := set.NewStrings(a.ServiceNames...).Difference(set.NewStrings(stopped...))
		if !running.IsEmpty() {
			return hook.StatusBlocked, fmt.Sprintf(
				"Services should be paused but these services running: %s",
				strings.Join(running.SortedValues(), ", ")), nil
		}
		return hook.StatusMaintenance, "Paused. Use 'resume' action to resume normal service.", nil
	}

	complete, err := a.Complete()
	if err != nil {
		return "", "", errors.Trace(err)
	}
	missing, incomplete, err := IncompleteRelations(a.Tools, complete, a.Required)
	if err != nil {
		return "", "", errors.Trace(err)
	}
	if len(missing) > 0 {
		message := "Missing relations: " + strings.Join(missing, ", ")
		if len(incomplete) > 0 {
			message += "; incomplete relations: " + strings.Join(incomplete, ", ")
		}
		return hook.StatusBlocked, message, nil
	}
	if len(incomplete) > 0 {
		return hook.StatusWaiting, "Incomplete relations: " + strings.Join(incomplete, ", "), nil
	}

	if a.Check != nil {
		status, message, err := a.Check()
		if err != nil {
			return "", "", errors.Trace(err)
		}
		if status != "" {
			return status, message, nil
		}
	}

	if len(stopped) > 0 {
		return hook.StatusBlocked, "Services not running that should be: " + strings.Join(stopped, ", "), nil
	}
	return hook.StatusActive, "Unit is ready", nil
}

// Assess determines and reports the workload status. The message is
// returned when the unit is neither active nor in maintenance.
func (a *Assessor) Assess() (string, error) {
	status, message, err := a.Status()
	if err != nil {
		return "", errors.Trace(err)
	}
	if err := a.Tools.StatusSet(status, message); err != nil {
		return "", errors.Trace(err)
	}
	if status == hook.StatusActive || status == hook.StatusMaintenance {
		return "", nil
	}
	return message, nil
}
