// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"os"
	"path/filepath"

	"github.com/juju/clock"
	"github.com/juju/cmd/v3"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo"

	"github.com/juju/charm-neutron-api/charm"
	"github.com/juju/charm-neutron-api/hook"
	"github.com/juju/charm-neutron-api/metrics"
	"github.com/juju/charm-neutron-api/neutronapi"
	"github.com/juju/charm-neutron-api/runner"
	"github.com/juju/charm-neutron-api/unitdata"
)

// Patched in tests.
var (
	newRunner       = runner.Default
	environment     = hook.EnvironmentFromOS
	registerWriters = true
)

// execute runs the hook or action name for the unit described by the
// process environment.
func execute(name string) error {
	env := environment()
	r := newRunner()
	tools := hook.NewClient(r)
	if registerWriters {
		if err := loggo.RegisterWriter("juju-log", hook.NewLogWriter(tools)); err != nil {
			return errors.Trace(err)
		}
		defer loggo.RemoveWriter("juju-log")
	}
	loggingConfigured := os.Getenv(LoggingConfigEnvKey) != ""
	if !loggingConfigured {
		if err := loggo.ConfigureLoggers("<root>=INFO"); err != nil {
			return errors.Trace(err)
		}
	}
	if !knownNames().Contains(name) {
		logger.Infof("Unknown hook %s - skipping.", name)
		return nil
	}

	store, err := unitdata.OpenCharmDir(env.CharmDir)
	if err != nil {
		return errors.Trace(err)
	}
	defer store.Close()
	options, err := charm.ReadConfigFile(env.CharmDir)
	if err != nil {
		return errors.Trace(err)
	}
	config, err := neutronapi.LoadConfig(tools, store, options)
	if err != nil {
		return errors.Trace(err)
	}
	if config.Bool("debug") && !loggingConfigured {
		if err := loggo.ConfigureLoggers("<root>=DEBUG"); err != nil {
			return errors.Trace(err)
		}
	}

	registry := hook.NewRegistry(clock.WallClock)
	neutronapi.NewCharm(env, r, config, store).Register(registry)
	if dir := config.String("metrics-textfile-dir"); dir != "" {
		recorder := &metrics.Recorder{Dir: dir, Store: store}
		registry.Observe(recorder.Observe)
	}

	err = registry.Execute(name)
	if hook.IsUnregisteredHook(err) {
		logger.Infof("Unknown hook %s - skipping.", name)
		return nil
	} else if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(neutronapi.SaveConfig(store, config))
}

// knownNames returns every hook and action name the charm implements.
func knownNames() set.Strings {
	names := set.NewStrings(neutronapi.ActionNames...)
	for _, name := range (&neutronapi.Charm{}).HookNames() {
		names.Add(name)
	}
	return names
}

type runHookCommand struct {
	cmd.CommandBase
	name string
}

// Info is part of the cmd.Command interface.
func (c *runHookCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "run-hook",
		Args:    "<hook name>",
		Purpose: "run a charm hook",
	}
}

// Init is part of the cmd.Command interface.
func (c *runHookCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("no hook name specified")
	}
	c.name = args[0]
	return cmd.CheckEmpty(args[1:])
}

// Run is part of the cmd.Command interface.
func (c *runHookCommand) Run(ctx *cmd.Context) error {
	return execute(c.name)
}

type runActionCommand struct {
	cmd.CommandBase
	name string
}

// Info is part of the cmd.Command interface.
func (c *runActionCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "run-action",
		Args:    "<action name>",
		Purpose: "run a charm action",
	}
}

// Init is part of the cmd.Command interface.
func (c *runActionCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("no action name specified")
	}
	c.name = args[0]
	return cmd.CheckEmpty(args[1:])
}

// Run is part of the cmd.Command interface.
func (c *runActionCommand) Run(ctx *cmd.Context) error {
	return execute(c.name)
}

type installHooksCommand struct {
	cmd.CommandBase
	charmDir string
	binary   string
}

// Info is part of the cmd.Command interface.
func (c *installHooksCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "install-hooks",
		Purpose: "link every hook and action of the charm to this binary",
	}
}

// SetFlags is part of the cmd.Command interface.
func (c *installHooksCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.charmDir, "charm-dir", ".", "charm directory to install into")
	f.StringVar(&c.binary, "binary", "", "binary the links point at; defaults to this executable")
}

// Run is part of the cmd.Command interface.
func (c *installHooksCommand) Run(ctx *cmd.Context) error {
	binary := c.binary
	if binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return errors.Trace(err)
		}
		binary = exe
	}
	binary, err := filepath.Abs(binary)
	if err != nil {
		return errors.Trace(err)
	}
	charmDir := ctx.AbsPath(c.charmDir)
	nc := &neutronapi.Charm{}
	for dir, names := range map[string][]string{
		"hooks":   nc.HookNames(),
		"actions": neutronapi.ActionNames,
	} {
		if err := linkAll(filepath.Join(charmDir, dir), binary, names); err != nil {
			return errors.Trace(err)
		}
	}
	ctx.Infof("installed hooks and actions in %s", charmDir)
	return nil
}

func linkAll(dir, target string, names []string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Trace(err)
	}
	for _, name := range names {
		link := filepath.Join(dir, name)
		if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
			return errors.Trace(err)
		}
		if err := os.Symlink(target, link); err != nil {
			return errors.Annotatef(err, "linking %s", name)
		}
	}
	return nil
}
