// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hook

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/naturalsort"

	"github.com/juju/charm-neutron-api/runner"
)

// Status values accepted by status-set.
const (
	StatusMaintenance = "maintenance"
	StatusBlocked     = "blocked"
	StatusWaiting     = "waiting"
	StatusActive      = "active"
)

// Log levels accepted by juju-log.
const (
	LevelTrace   = "TRACE"
	LevelDebug   = "DEBUG"
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// commandNotFound is the shell exit code for a missing executable.
const commandNotFound = 127

// Client runs hook tools for the current hook. Read-only tool output
// is cached for the lifetime of the client, which is a single hook
// execution.
type Client struct {
	runner runner.CommandRunner
	cache  map[string]cacheEntry
}

// cacheEntry is the output of one tool run and the relation it was run
// against, if any.
type cacheEntry struct {
	relId string
	out   []byte
}

// NewClient returns a Client running hook tools through r.
func NewClient(r runner.CommandRunner) *Client {
	return &Client{
		runner: r,
		cache:  make(map[string]cacheEntry),
	}
}

func (c *Client) run(name string, args ...string) ([]byte, error) {
	out, err := runner.RunCommand(c.runner, name, args...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return out, nil
}

func (c *Client) cached(name string, args ...string) ([]byte, error) {
	key := runner.Command{Name: name, Args: args}.String()
	if entry, ok := c.cache[key]; ok {
		return entry.out, nil
	}
	out, err := c.run(name, args...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	c.cache[key] = cacheEntry{relId: relationArg(args), out: out}
	return out, nil
}

// relationArg returns the value of the -r flag in args.
func relationArg(args []string) string {
	for i, arg := range args {
		if arg == "-r" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func (c *Client) cachedJSON(result interface{}, name string, args ...string) error {
	out, err := c.cached(name, args...)
	if err != nil {
		return errors.Trace(err)
	}
	if len(strings.TrimSpace(string(out))) == 0 {
		return nil
	}
	if err := json.Unmarshal(out, result); err != nil {
		return errors.Annotatef(err, "parsing %s output", name)
	}
	return nil
}

// invalidate drops cached output for every command run against relId.
func (c *Client) invalidate(relId string) {
	for key, entry := range c.cache {
		if entry.relId == relId {
			delete(c.cache, key)
		}
	}
}

// ConfigSettings returns the raw charm config as reported by
// config-get.
func (c *Client) ConfigSettings() (map[string]interface{}, error) {
	settings := make(map[string]interface{})
	if err := c.cachedJSON(&settings, "config-get", "--all", "--format=json"); err != nil {
		return nil, errors.Trace(err)
	}
	return settings, nil
}

// RelationIds returns the ids of every relation established on the
// named endpoint, naturally sorted.
func (c *Client) RelationIds(name string) ([]string, error) {
	var ids []string
	if err := c.cachedJSON(&ids, "relation-ids", "--format=json", name); err != nil {
		return nil, errors.Trace(err)
	}
	naturalsort.Sort(ids)
	return ids, nil
}

// RelatedUnits returns the remote units participating in relId,
// naturally sorted.
func (c *Client) RelatedUnits(relId string) ([]string, error) {
	var units []string
	if err := c.cachedJSON(&units, "relation-list", "--format=json", "-r", relId); err != nil {
		return nil, errors.Trace(err)
	}
	naturalsort.Sort(units)
	return units, nil
}

// RelationGet returns the settings unit has published on relId.
func (c *Client) RelationGet(relId, unit string) (map[string]string, error) {
	settings := make(map[string]string)
	if err := c.cachedJSON(&settings, "relation-get", "--format=json", "-r", relId, "-", unit); err != nil {
		return nil, errors.Trace(err)
	}
	return settings, nil
}

// RelationGetKey returns a single setting, or "" if it is unset.
func (c *Client) RelationGetKey(relId, unit, key string) (string, error) {
	settings, err := c.RelationGet(relId, unit)
	if err != nil {
		return "", errors.Trace(err)
	}
	return settings[key], nil
}

// RelationSet publishes settings on relId. An empty value removes the
// key.
func (c *Client) RelationSet(relId string, settings map[string]string) error {
	if len(settings) == 0 {
		return nil
	}
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := []string{"-r", relId}
	for _, k := range keys {
		args = append(args, k+"="+settings[k])
	}
	defer c.invalidate(relId)
	_, err := c.run("relation-set", args...)
	return errors.Trace(err)
}

// UnitGet returns a unit attribute such as private-address.
func (c *Client) UnitGet(key string) (string, error) {
	var value string
	if err := c.cachedJSON(&value, "unit-get", "--format=json", key); err != nil {
		return "", errors.Trace(err)
	}
	return value, nil
}

// NetworkGetPrimaryAddress returns the primary address of the named
// binding. A NotSupported error means the agent does not provide
// network-get.
func (c *Client) NetworkGetPrimaryAddress(binding string) (string, error) {
	var addr string
	err := c.cachedJSON(&addr, "network-get", "--format=json", "--primary-address", binding)
	if runner.ExitCode(err) == commandNotFound {
		return "", errors.NewNotSupported(err, "network-get")
	}
	if err != nil {
		return "", errors.Trace(err)
	}
	return addr, nil
}

// OpenPort opens port on the given protocol.
func (c *Client) OpenPort(port int, protocol string) error {
	_, err := c.run("open-port", fmt.Sprintf("%d/%s", port, protocol))
	return errors.Trace(err)
}

// ClosePort closes a previously opened port.
func (c *Client) ClosePort(port int, protocol string) error {
	_, err := c.run("close-port", fmt.Sprintf("%d/%s", port, protocol))
	return errors.Trace(err)
}

// StatusSet sets the workload status of the unit.
func (c *Client) StatusSet(status, message string) error {
	_, err := c.run("status-set", status, message)
	return errors.Trace(err)
}

// IsLeader reports whether the unit is the application leader.
func (c *Client) IsLeader() (bool, error) {
	var leader bool
	if err := c.cachedJSON(&leader, "is-leader", "--format=json"); err != nil {
		return false, errors.Trace(err)
	}
	return leader, nil
}

// ApplicationVersionSet records the workload version.
func (c *Client) ApplicationVersionSet(version string) error {
	_, err := c.run("application-version-set", version)
	return errors.Trace(err)
}

// Log writes msg to the unit log at level.
func (c *Client) Log(level, msg string) error {
	_, err := c.run("juju-log", "-l", level, msg)
	return errors.Trace(err)
}

// ActionGet returns the parameters of the running action.
func (c *Client) ActionGet() (map[string]interface{}, error) {
	params := make(map[string]interface{})
	if err := c.cachedJSON(&params, "action-get", "--format=json"); err != nil {
		return nil, errors.Trace(err)
	}
	return params, nil
}

// ActionSet records results for the running action.
func (c *Client) ActionSet(results map[string]string) error {
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var args []string
	for _, k := range keys {
		args = append(args, k+"="+results[k])
	}
	_, err := c.run("action-set", args...)
	return errors.Trace(err)
}

// ActionFail marks the running action as failed.
func (c *Client) ActionFail(msg string) error {
	_, err := c.run("action-fail", msg)
	return errors.Trace(err)
}

// IsRelationMade reports whether some unit on the named relation has
// published every one of keys. With no keys, private-address is
// checked.
func (c *Client) IsRelationMade(name string, keys ...string) (bool, error) {
	if len(keys) == 0 {
		keys = []string{"private-address"}
	}
	ids, err := c.RelationIds(name)
	if err != nil {
		return false, errors.Trace(err)
	}
	for _, id := range ids {
		units, err := c.RelatedUnits(id)
		if err != nil {
			return false, errors.Trace(err)
		}
		for _, unit := range units {
			settings, err := c.RelationGet(id, unit)
			if err != nil {
				return false, errors.Trace(err)
			}
			complete := true
			for _, key := range keys {
				if settings[key] == "" {
					complete = false
					break
				}
			}
			if complete {
				return true, nil
			}
		}
	}
	return false, nil
}
