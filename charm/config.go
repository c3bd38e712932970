// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	"io"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/schema"
	"gopkg.in/yaml.v2"
)

// Option represents a single charm config option.
type Option struct {
	Type        string      `yaml:"type"`
	Description string      `yaml:"description,omitempty"`
	Default     interface{} `yaml:"default,omitempty"`
}

var optionTypeCheckers = map[string]schema.Checker{
	"string":  schema.String(),
	"int":     schema.ForceInt(),
	"float":   schema.Float(),
	"boolean": schema.Bool(),
}

// coerce converts value to the option's declared type. A nil value
// stays nil: it means the option is unset.
func (o Option) coerce(name string, value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	checker, ok := optionTypeCheckers[o.Type]
	if !ok {
		return nil, errors.NotValidf("option %q type %q", name, o.Type)
	}
	v, err := checker.Coerce(value, []string{name})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if o.Type == "int" {
		// ForceInt yields int; keep a single integer type for callers.
		return int64(v.(int)), nil
	}
	return v, nil
}

// Config represents the supported configuration options for a charm,
// as declared in its config.yaml file.
type Config struct {
	Options map[string]Option `yaml:"options"`
}

// ReadConfigFile reads config.yaml from the charm directory.
func ReadConfigFile(charmDir string) (*Config, error) {
	f, err := os.Open(filepath.Join(charmDir, "config.yaml"))
	if os.IsNotExist(err) {
		return &Config{Options: map[string]Option{}}, nil
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	return ReadConfig(f)
}

// ReadConfig reads a config.yaml document and validates the declared
// option types and defaults.
func ReadConfig(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Annotate(err, "invalid config")
	}
	if config.Options == nil {
		config.Options = map[string]Option{}
	}
	for name, option := range config.Options {
		def, err := option.coerce(name, option.Default)
		if err != nil {
			return nil, errors.Annotatef(err, "invalid config default")
		}
		option.Default = def
		config.Options[name] = option
	}
	return &config, nil
}

// DefaultSettings returns the default value of every option that
// declares one.
func (c *Config) DefaultSettings() map[string]interface{} {
	out := make(map[string]interface{})
	for name, option := range c.Options {
		if option.Default != nil {
			out[name] = option.Default
		}
	}
	return out
}

// Coerce returns a copy of settings converted to the declared option
// types, with defaults applied to options that are missing or nil.
// Settings for undeclared options are rejected.
func (c *Config) Coerce(settings map[string]interface{}) (map[string]interface{}, error) {
	out := c.DefaultSettings()
	for name, value := range settings {
		option, ok := c.Options[name]
		if !ok {
			return nil, errors.NotFoundf("config option %q", name)
		}
		v, err := option.coerce(name, value)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if v == nil {
			continue
		}
		out[name] = v
	}
	return out, nil
}
