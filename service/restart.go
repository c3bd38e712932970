// Copyright 2015 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package service

import (
	"os"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/utils/v4"
)

// FileServices names the services reading a config file.
type FileServices struct {
	Path     string
	Services []string
}

// RestartMap lists config files and the services that must restart
// when they change, in the order restarts happen.
type RestartMap []FileServices

// Services returns every service in the map once, in map order.
func (m RestartMap) Services() []string {
	seen := set.NewStrings()
	var services []string
	for _, entry := range m {
		for _, svc := range entry.Services {
			if !seen.Contains(svc) {
				seen.Add(svc)
				services = append(services, svc)
			}
		}
	}
	return services
}

// fileHash returns the SHA256 of path, or "" if it does not exist.
func fileHash(path string) (string, error) {
	hash, _, err := utils.ReadFileSHA256(path)
	if os.IsNotExist(errors.Cause(err)) {
		return "", nil
	}
	return hash, errors.Trace(err)
}

func (m RestartMap) hashes() (map[string]string, error) {
	hashes := make(map[string]string)
	for _, entry := range m {
		hash, err := fileHash(entry.Path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		hashes[entry.Path] = hash
	}
	return hashes, nil
}

// Restarter restarts services whose config files change.
type Restarter struct {
	Manager Manager

	// Paused reports whether the unit is paused; nothing is restarted
	// while it is.
	Paused func() (bool, error)
}

// OnChange runs fn and then restarts the services of every file in
// restartMap that fn changed. With stopStart every affected service is
// stopped before any is started again.
func (r *Restarter) OnChange(restartMap RestartMap, stopStart bool, fn func() error) error {
	before, err := restartMap.hashes()
	if err != nil {
		return errors.Trace(err)
	}
	if err := fn(); err != nil {
		return errors.Trace(err)
	}
	after, err := restartMap.hashes()
	if err != nil {
		return errors.Trace(err)
	}
	var changed RestartMap
	for _, entry := range restartMap {
		if before[entry.Path] != after[entry.Path] {
			logger.Infof("%s changed", entry.Path)
			changed = append(changed, entry)
		}
	}
	restarts := changed.Services()
	if len(restarts) == 0 {
		return nil
	}
	if r.Paused != nil {
		paused, err := r.Paused()
		if err != nil {
			return errors.Trace(err)
		}
		if paused {
			logger.Infof("unit paused, not restarting %v", restarts)
			return nil
		}
	}
	if stopStart {
		for _, svc := range restarts {
			if err := r.Manager.Stop(svc); err != nil {
				return errors.Annotatef(err, "stopping %s", svc)
			}
		}
		for _, svc := range restarts {
			if err := r.Manager.Start(svc); err != nil {
				return errors.Annotatef(err, "starting %s", svc)
			}
		}
		return nil
	}
	for _, svc := range restarts {
		if err := r.Manager.Restart(svc); err != nil {
			return errors.Annotatef(err, "restarting %s", svc)
		}
	}
	return nil
}
