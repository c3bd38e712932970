// Copyright 2012-2014 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/juju/cmd/v3"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("neutronapi.cmd")

const (
	// exit_err is the value that is returned when the user has run the
	// charm binary in an invalid way.
	exit_err = 2
	// exit_panic is the value that is returned when we exit due to an unhandled panic.
	exit_panic = 3
)

// LoggingConfigEnvKey holds a loggo configuration overriding the
// default one.
const LoggingConfigEnvKey = "NEUTRON_API_LOGGING_CONFIG"

const binaryName = "neutron-api"

func main() {
	os.Exit(Main(os.Args))
}

// newSuperCommand returns the command dispatching to run-hook,
// run-action and install-hooks.
func newSuperCommand() *cmd.SuperCommand {
	super := cmd.NewSuperCommand(cmd.SuperCommandParams{
		Name:    binaryName,
		Purpose: "run the hooks and actions of the neutron-api charm",
		Doc: `
The hooks and actions of the charm are links to this binary; each
runs the implementation registered under the name it is invoked as.
`,
		Log: &cmd.Log{
			DefaultConfig: os.Getenv(LoggingConfigEnvKey),
		},
	})
	super.Register(&runHookCommand{})
	super.Register(&runActionCommand{})
	super.Register(&installHooksCommand{})
	return super
}

// Main is not redundant with main(), because it provides an entry point
// for testing with arbitrary command line arguments.
func Main(args []string) int {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			buf = buf[:runtime.Stack(buf, false)]
			logger.Criticalf("Unhandled panic: \n%v\n%s", r, buf)
			os.Exit(exit_panic)
		}
	}()

	// cmd.Log registers its warning writer on every run.
	_, _ = loggo.RemoveWriter("warning")

	ctx, err := cmd.DefaultContext()
	if err != nil {
		cmd.WriteError(os.Stderr, err)
		os.Exit(exit_err)
	}

	commandName := filepath.Base(args[0])
	switch filepath.Base(filepath.Dir(args[0])) {
	case "hooks":
		return cmd.Main(newSuperCommand(), ctx, []string{"run-hook", commandName})
	case "actions":
		return cmd.Main(newSuperCommand(), ctx, []string{"run-action", commandName})
	}
	return cmd.Main(newSuperCommand(), ctx, args[1:])
}
