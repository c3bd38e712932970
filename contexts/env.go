// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package contexts computes template data for OpenStack config files
// from charm config and relation settings.
package contexts

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/utils/v4"

	"github.com/juju/charm-neutron-api/hacluster"
	"github.com/juju/charm-neutron-api/hook"
	"github.com/juju/charm-neutron-api/runner"
)

var logger = loggo.GetLogger("neutronapi.contexts")

// HookTools is the subset of hook tools contexts read relation data
// with.
type HookTools interface {
	RelationIds(name string) ([]string, error)
	RelatedUnits(relId string) ([]string, error)
	RelationGet(relId, unit string) (map[string]string, error)
	UnitGet(key string) (string, error)
}

// KeyValueStore holds values that must survive between hooks.
type KeyValueStore interface {
	Get(key string, out interface{}) (bool, error)
	Set(key string, value interface{}) error
	Flush() error
}

// Env is everything a context reads from.
type Env struct {
	Tools    HookTools
	Config   *hook.Config
	Cluster  *hacluster.Cluster
	Runner   runner.CommandRunner
	Store    KeyValueStore
	UnitName string
}

// eachUnit calls fn with the settings of every unit on every relation
// of endpoint until fn returns true.
func (e *Env) eachUnit(endpoint string, fn func(relId, unit string, settings map[string]string) bool) error {
	ids, err := e.Tools.RelationIds(endpoint)
	if err != nil {
		return errors.Trace(err)
	}
	for _, id := range ids {
		units, err := e.Tools.RelatedUnits(id)
		if err != nil {
			return errors.Trace(err)
		}
		for _, unit := range units {
			settings, err := e.Tools.RelationGet(id, unit)
			if err != nil {
				return errors.Trace(err)
			}
			if fn(id, unit, settings) {
				return nil
			}
		}
	}
	return nil
}

// relationMade reports whether any remote unit of endpoint has set
// every one of keys.
func (e *Env) relationMade(endpoint string, keys ...string) (bool, error) {
	if len(keys) == 0 {
		keys = []string{"private-address"}
	}
	made := false
	err := e.eachUnit(endpoint, func(_, _ string, settings map[string]string) bool {
		for _, key := range keys {
			if settings[key] == "" {
				return false
			}
		}
		made = true
		return true
	})
	return made, errors.Trace(err)
}

// privateAddress returns the unit's private address.
func (e *Env) privateAddress() (string, error) {
	addr, err := e.Tools.UnitGet("private-address")
	return addr, errors.Trace(err)
}

// complete reports whether every value of ctxt is set.
func complete(ctxt map[string]interface{}) bool {
	if len(ctxt) == 0 {
		return false
	}
	for _, v := range ctxt {
		switch v := v.(type) {
		case nil:
			return false
		case string:
			if v == "" {
				return false
			}
		}
	}
	return true
}

// writeBase64File decodes data and writes it to path.
func writeBase64File(path, data string, perm os.FileMode) error {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return errors.Annotatef(err, "decoding %s", filepath.Base(path))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(utils.AtomicWriteFile(path, decoded, perm))
}
