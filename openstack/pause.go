// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package openstack

import (
	"fmt"
	"strings"

	"github.com/juju/errors"

	"github.com/juju/charm-neutron-api/service"
)

// PausedKey is the unit data key recording that the unit is paused.
const PausedKey = "unit-paused"

// KeyValueStore is the unit data the paused flag lives in.
type KeyValueStore interface {
	Get(key string, out interface{}) (bool, error)
	Set(key string, value interface{}) error
	Unset(key string) error
	Flush() error
}

// IsPaused reports whether the unit has been paused.
func IsPaused(store KeyValueStore) (bool, error) {
	var paused bool
	if _, err := store.Get(PausedKey, &paused); err != nil {
		return false, errors.Trace(err)
	}
	return paused, nil
}

// PauseUnit stops and disables services, marks the unit paused and
// reports the resulting status with assess.
func PauseUnit(store KeyValueStore, m service.Manager, services []string, assess func() (string, error)) error {
	var messages []string
	for _, svc := range services {
		if err := service.StopAll(m, []string{svc}); err != nil {
			logger.Errorf("pausing %s: %v", svc, err)
			messages = append(messages, fmt.Sprintf("%s didn't stop cleanly.", svc))
		}
	}
	if err := store.Set(PausedKey, true); err != nil {
		return errors.Trace(err)
	}
	if err := store.Flush(); err != nil {
		return errors.Trace(err)
	}
	return finishPauseResume("pause", messages, assess)
}

// ResumeUnit enables and starts services, clears the paused mark and
// reports the resulting status with assess.
func ResumeUnit(store KeyValueStore, m service.Manager, services []string, assess func() (string, error)) error {
	var messages []string
	for _, svc := range services {
		if err := service.StartAll(m, []string{svc}); err != nil {
			logger.Errorf("resuming %s: %v", svc, err)
			messages = append(messages, fmt.Sprintf("%s didn't start cleanly.", svc))
		}
	}
	if err := store.Unset(PausedKey); err != nil {
		return errors.Trace(err)
	}
	if err := store.Flush(); err != nil {
		return errors.Trace(err)
	}
	return finishPauseResume("resume", messages, assess)
}

func finishPauseResume(verb string, messages []string, assess func() (string, error)) error {
	if assess != nil {
		message, err := assess()
		if err != nil {
			return errors.Trace(err)
		}
		if message != "" {
			messages = append(messages, message)
		}
	}
	if len(messages) > 0 {
		return errors.Errorf("Couldn't %s: %s", verb, strings.Join(messages, "; "))
	}
	return nil
}
