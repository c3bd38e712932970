// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package nrpe writes the Nagios NRPE checks of a unit and the service
// definitions exported to the Nagios server.
package nrpe

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"gopkg.in/yaml.v2"

	"github.com/juju/charm-neutron-api/templating"
)

var logger = loggo.GetLogger("neutronapi.nrpe")

const (
	// ConfDir holds the NRPE command definitions.
	ConfDir = "/etc/nagios/nrpe.d"

	// ExportDir holds the service definitions collected by the Nagios
	// server. Exports are skipped when it does not exist.
	ExportDir = "/var/lib/nagios/export"

	// LocalPluginDir receives the check scripts shipped with the charm.
	LocalPluginDir = "/usr/local/lib/nagios/plugins"

	// ServiceName is the NRPE daemon reloaded after checks change.
	ServiceName = "nagios-nrpe-server"

	checkTemplate  = "nrpe-check.cfg"
	exportTemplate = "nrpe-export.cfg"
	managedHeader  = "# The following header was added automatically by juju"
)

var pluginDirs = []string{"/usr/lib/nagios/plugins", LocalPluginDir}

var validShortname = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Check is a single NRPE check.
type Check struct {
	Shortname   string
	Description string
	Command     string
}

// Name is the NRPE command name of the check.
func (c Check) Name() string {
	return "check_" + c.Shortname
}

// Config is the set of checks of one unit.
type Config struct {
	// Hostname is the Nagios host the checks are attached to.
	Hostname string

	// ServiceGroups lists the Nagios service groups of every check.
	ServiceGroups string

	// TemplatesDir holds the check and export templates.
	TemplatesDir string

	// Root prefixes every machine path.
	Root string

	checks []Check
}

// AddCheck adds a check. The first word of command is resolved against
// the Nagios plugin directories when a plugin of that name exists.
func (n *Config) AddCheck(shortname, description, command string) error {
	if !validShortname.MatchString(shortname) {
		return errors.NotValidf("check name %q", shortname)
	}
	n.checks = append(n.checks, Check{
		Shortname:   shortname,
		Description: description,
		Command:     n.resolve(command),
	})
	return nil
}

// Checks returns the checks added so far.
func (n *Config) Checks() []Check {
	return append([]Check(nil), n.checks...)
}

func (n *Config) resolve(command string) string {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return command
	}
	for _, dir := range pluginDirs {
		plugin := filepath.Join(dir, parts[0])
		if _, err := os.Stat(n.path(plugin)); err == nil {
			return strings.Join(append([]string{plugin}, parts[1:]...), " ")
		}
	}
	return command
}

// AddInitServiceChecks adds a process check for each service, using the
// systemd or upstart plugin.
func (n *Config) AddInitServiceChecks(services []string, unitName string, systemd bool) error {
	for _, svc := range services {
		command := "check_upstart_job " + svc
		if systemd {
			command = "check_systemd.py " + svc
		}
		if err := n.AddCheck(svc, "process check {"+unitName+"}", command); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// AddHAProxyChecks adds the haproxy backend and queue depth checks.
func (n *Config) AddHAProxyChecks(unitName string) error {
	if err := n.AddCheck("haproxy_servers", "Check HAProxy {"+unitName+"}", "check_haproxy.sh"); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(n.AddCheck("haproxy_queue", "Check HAProxy queue depth {"+unitName+"}", "check_haproxy_queue_depth.sh"))
}

// Write writes the check definitions, exports them when the export
// directory exists and removes checks written earlier that are no
// longer wanted.
func (n *Config) Write() error {
	confDir := n.path(ConfDir)
	exportDir := n.path(ExportDir)
	export := true
	if _, err := os.Stat(exportDir); os.IsNotExist(err) {
		logger.Debugf("%s missing, not exporting checks", ExportDir)
		export = false
	}
	wanted := make(map[string]bool)
	for _, check := range n.checks {
		data := map[string]interface{}{
			"check":         check,
			"name":          check.Name(),
			"hostname":      n.Hostname,
			"servicegroups": n.ServiceGroups,
		}
		target := filepath.Join(confDir, check.Name()+".cfg")
		wanted[target] = true
		if err := templating.RenderFile(filepath.Join(n.TemplatesDir, checkTemplate), target, data, 0644); err != nil {
			return errors.Annotatef(err, "writing check %s", check.Shortname)
		}
		if !export {
			continue
		}
		target = filepath.Join(exportDir, "service__"+n.Hostname+"_"+check.Name()+".cfg")
		if err := templating.RenderFile(filepath.Join(n.TemplatesDir, exportTemplate), target, data, 0644); err != nil {
			return errors.Annotatef(err, "exporting check %s", check.Shortname)
		}
	}
	return errors.Trace(n.removeStale(confDir, wanted))
}

// removeStale deletes managed check files not in wanted.
func (n *Config) removeStale(confDir string, wanted map[string]bool) error {
	existing, err := filepath.Glob(filepath.Join(confDir, "check_*.cfg"))
	if err != nil {
		return errors.Trace(err)
	}
	for _, path := range existing {
		if wanted[path] {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Trace(err)
		}
		if !strings.Contains(string(data), managedHeader) {
			continue
		}
		logger.Infof("removing stale check %s", filepath.Base(path))
		if err := os.Remove(path); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

type monitor struct {
	Command string `yaml:"command"`
}

// Monitors returns the YAML document describing the checks to the
// Nagios server, as published on the nrpe-external-master relation.
func (n *Config) Monitors() (string, error) {
	nrpe := make(map[string]monitor)
	for _, check := range n.checks {
		nrpe[check.Shortname] = monitor{Command: check.Name()}
	}
	doc := map[string]interface{}{
		"monitors": map[string]interface{}{
			"remote": map[string]interface{}{"nrpe": nrpe},
		},
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return "", errors.Trace(err)
	}
	return string(data), nil
}

// CopyPlugins copies every check_* script from dir into the local
// plugin directory. A missing dir copies nothing.
func (n *Config) CopyPlugins(dir string) error {
	scripts, err := filepath.Glob(filepath.Join(dir, "check_*"))
	if err != nil {
		return errors.Trace(err)
	}
	sort.Strings(scripts)
	target := n.path(LocalPluginDir)
	if len(scripts) > 0 {
		if err := os.MkdirAll(target, 0755); err != nil {
			return errors.Trace(err)
		}
	}
	for _, script := range scripts {
		data, err := os.ReadFile(script)
		if err != nil {
			return errors.Trace(err)
		}
		dest := filepath.Join(target, filepath.Base(script))
		if err := os.WriteFile(dest, data, 0755); err != nil {
			return errors.Annotatef(err, "copying %s", filepath.Base(script))
		}
	}
	return nil
}

func (n *Config) path(p string) string {
	if n.Root == "" {
		return p
	}
	return filepath.Join(n.Root, p)
}
