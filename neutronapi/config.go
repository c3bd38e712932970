// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package neutronapi

import (
	"github.com/juju/errors"

	"github.com/juju/charm-neutron-api/charm"
	"github.com/juju/charm-neutron-api/hook"
)

const previousConfigKey = "charm.config"

// ConfigGetter returns the current charm config settings.
type ConfigGetter interface {
	ConfigSettings() (map[string]interface{}, error)
}

// LoadConfig returns the current charm config, with the config the
// previous hook saw to compare it against.
func LoadConfig(tools ConfigGetter, store Store, options *charm.Config) (*hook.Config, error) {
	raw, err := tools.ConfigSettings()
	if err != nil {
		return nil, errors.Trace(err)
	}
	current, err := options.Coerce(raw)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var saved map[string]interface{}
	found, err := store.Get(previousConfigKey, &saved)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var previous map[string]interface{}
	if found {
		// Options removed by a charm upgrade are dropped.
		for name := range saved {
			if _, ok := options.Options[name]; !ok {
				delete(saved, name)
			}
		}
		if previous, err = options.Coerce(saved); err != nil {
			return nil, errors.Annotate(err, "previous config")
		}
	}
	return hook.NewConfig(current, previous), nil
}

// SaveConfig records config for the next hook to compare against.
func SaveConfig(store Store, config *hook.Config) error {
	if err := store.Set(previousConfigKey, config.Map()); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(store.Flush())
}
