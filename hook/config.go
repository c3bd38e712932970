// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hook

import (
	"fmt"
	"reflect"
	"strconv"
)

// Config gives typed access to the charm config of the current hook
// alongside the values seen by the previous hook.
type Config struct {
	current  map[string]interface{}
	previous map[string]interface{}
}

// NewConfig returns a Config over the current settings. previous may
// be nil, meaning no earlier hook recorded its config.
func NewConfig(current, previous map[string]interface{}) *Config {
	if current == nil {
		current = make(map[string]interface{})
	}
	return &Config{current: current, previous: previous}
}

// Get returns the raw value of key, or nil if unset.
func (c *Config) Get(key string) interface{} {
	return c.current[key]
}

// String returns key formatted as a string, or "" if unset.
func (c *Config) String(key string) string {
	switch v := c.current[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Bool returns key as a boolean. Unset and unparsable values are
// false.
func (c *Config) Bool(key string) bool {
	switch v := c.current[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// Int returns key as an integer, or 0 if unset.
func (c *Config) Int(key string) int {
	switch v := c.current[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		i, _ := strconv.Atoi(v)
		return i
	}
	return 0
}

// Float returns key as a float, or 0 if unset.
func (c *Config) Float(key string) float64 {
	switch v := c.current[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

// IsSet reports whether key has a non-empty value.
func (c *Config) IsSet(key string) bool {
	v, ok := c.current[key]
	return ok && v != nil && v != ""
}

// Previous returns the value key had in the previous hook, or nil.
func (c *Config) Previous(key string) interface{} {
	if c.previous == nil {
		return nil
	}
	return c.previous[key]
}

// Changed reports whether key differs from the previous hook. Every
// key counts as changed when there is no previous config.
func (c *Config) Changed(key string) bool {
	if c.previous == nil {
		return true
	}
	return !reflect.DeepEqual(c.current[key], c.previous[key])
}

// Map returns a copy of the current settings.
func (c *Config) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(c.current))
	for k, v := range c.current {
		out[k] = v
	}
	return out
}

// Set overrides a setting for the rest of the hook.
func (c *Config) Set(key string, value interface{}) {
	c.current[key] = value
}
