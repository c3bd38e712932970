// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package runner provides the seam through which the charm runs every
// external command: hook tools, apt, dpkg-query and service tooling.
package runner

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/utils/v4/exec"
	"github.com/kballard/go-shellquote"
)

// CommandRunner allows to run commands on the underlying system.
type CommandRunner interface {
	RunCommands(run exec.RunParams) (*exec.ExecResponse, error)
}

type defaultRunner struct{}

func (defaultRunner) RunCommands(run exec.RunParams) (*exec.ExecResponse, error) {
	return exec.RunCommands(run)
}

// Default returns a CommandRunner that executes commands with bash.
func Default() CommandRunner {
	return defaultRunner{}
}

// ExitError is returned by Run when a command exits non-zero.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Command, e.Code)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// ExitCode returns the exit code carried by err, or -1 when err is not
// an ExitError.
func ExitCode(err error) int {
	if exitErr, ok := errors.Cause(err).(*ExitError); ok {
		return exitErr.Code
	}
	return -1
}

// Command describes a single command invocation.
type Command struct {
	Name        string
	Args        []string
	Environment []string
	WorkingDir  string
}

// String returns the shell-quoted command line.
func (c Command) String() string {
	return shellquote.Join(append([]string{c.Name}, c.Args...)...)
}

// Run executes cmd and returns its standard output. A non-zero exit
// code yields an *ExitError.
func Run(r CommandRunner, cmd Command) ([]byte, error) {
	line := cmd.String()
	resp, err := r.RunCommands(exec.RunParams{
		Commands:    line,
		WorkingDir:  cmd.WorkingDir,
		Environment: cmd.Environment,
	})
	if err != nil {
		return nil, errors.Annotatef(err, "running %q", cmd.Name)
	}
	if resp.Code != 0 {
		return resp.Stdout, &ExitError{
			Command: cmd.Name,
			Code:    resp.Code,
			Stderr:  string(resp.Stderr),
		}
	}
	return resp.Stdout, nil
}

// RunCommand is shorthand for Run with no extra environment.
func RunCommand(r CommandRunner, name string, args ...string) ([]byte, error) {
	return Run(r, Command{Name: name, Args: args})
}
