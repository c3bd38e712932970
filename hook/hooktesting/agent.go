// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package hooktesting provides an in-memory unit agent answering hook
// tools, for testing charm code without Juju.
package hooktesting

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/utils/v4/exec"
	"github.com/kballard/go-shellquote"
)

// Handler answers a command that is not a hook tool. It returns the
// command's stdout and exit code.
type Handler func(args []string) (stdout string, code int)

// Relation is one established relation as seen by the local unit.
type Relation struct {
	Id    string
	Name  string
	Local map[string]string
	Units map[string]map[string]string
}

// AddUnit joins a remote unit with the given settings.
func (r *Relation) AddUnit(unit string, settings map[string]string) *Relation {
	if settings == nil {
		settings = make(map[string]string)
	}
	r.Units[unit] = settings
	return r
}

// Status is the last status-set call.
type Status struct {
	Status  string
	Message string
}

// LogEntry is a single juju-log call.
type LogEntry struct {
	Level   string
	Message string
}

// Agent is a fake unit agent implementing runner.CommandRunner.
type Agent struct {
	mu sync.Mutex

	UnitName         string
	Config           map[string]interface{}
	Leader           bool
	Relations        map[string]*Relation
	UnitAddresses    map[string]string
	NetworkAddresses map[string]string
	NoNetworkGet     bool
	OpenPorts        set.Strings
	Status           Status
	Version          string
	Logs             []LogEntry
	ActionParams     map[string]interface{}
	ActionResults    map[string]string
	ActionFailure    string

	// Calls records every command line run, in order.
	Calls    [][]string
	handlers map[string]Handler
	nextId   int
}

// NewAgent returns an Agent for unit with empty state.
func NewAgent(unit string) *Agent {
	return &Agent{
		UnitName:  unit,
		Config:    make(map[string]interface{}),
		Relations: make(map[string]*Relation),
		UnitAddresses: map[string]string{
			"private-address": "10.0.0.10",
			"public-address":  "10.0.0.10",
		},
		NetworkAddresses: make(map[string]string),
		OpenPorts:        set.NewStrings(),
		ActionParams:     make(map[string]interface{}),
		ActionResults:    make(map[string]string),
		handlers:         make(map[string]Handler),
	}
}

// AddRelation establishes a new relation on the named endpoint.
func (a *Agent) AddRelation(name string) *Relation {
	a.mu.Lock()
	defer a.mu.Unlock()
	rel := &Relation{
		Id:    fmt.Sprintf("%s:%d", name, a.nextId),
		Name:  name,
		Local: make(map[string]string),
		Units: make(map[string]map[string]string),
	}
	a.nextId++
	a.Relations[rel.Id] = rel
	return rel
}

// Relation returns the first relation on the named endpoint, or nil.
func (a *Agent) Relation(name string) *Relation {
	ids := a.relationIds(name)
	if len(ids) == 0 {
		return nil
	}
	return a.Relations[ids[0]]
}

// Handle registers a handler for a command name.
func (a *Agent) Handle(name string, h Handler) {
	a.handlers[name] = h
}

// CallNames returns the command name of every recorded call.
func (a *Agent) CallNames() []string {
	var names []string
	for _, call := range a.Calls {
		names = append(names, call[0])
	}
	return names
}

// CallsTo returns the arguments of every call to name.
func (a *Agent) CallsTo(name string) [][]string {
	var calls [][]string
	for _, call := range a.Calls {
		if call[0] == name {
			calls = append(calls, call[1:])
		}
	}
	return calls
}

func (a *Agent) relationIds(name string) []string {
	var ids []string
	for id, rel := range a.Relations {
		if rel.Name == name {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// RunCommands is part of the runner.CommandRunner interface.
func (a *Agent) RunCommands(run exec.RunParams) (*exec.ExecResponse, error) {
	args, err := shellquote.Split(run.Commands)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(args) == 0 {
		return &exec.ExecResponse{}, nil
	}
	a.mu.Lock()
	a.Calls = append(a.Calls, args)
	a.mu.Unlock()

	if args[0] == "network-get" && a.NoNetworkGet {
		return &exec.ExecResponse{Code: 127, Stderr: []byte("network-get: command not found")}, nil
	}
	if h, ok := a.handlers[args[0]]; ok {
		out, code := h(args[1:])
		return &exec.ExecResponse{Code: code, Stdout: []byte(out)}, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out, err := a.hookTool(args[0], args[1:])
	if errors.IsNotFound(err) {
		return &exec.ExecResponse{}, nil
	}
	if err != nil {
		return &exec.ExecResponse{Code: 1, Stderr: []byte(err.Error())}, nil
	}
	return &exec.ExecResponse{Stdout: out}, nil
}

func (a *Agent) hookTool(name string, args []string) ([]byte, error) {
	flags, positional := splitArgs(args)
	switch name {
	case "config-get":
		return json.Marshal(a.Config)
	case "relation-ids":
		if len(positional) != 1 {
			return nil, errors.New("relation-ids expects an endpoint")
		}
		ids := a.relationIds(positional[0])
		if ids == nil {
			ids = []string{}
		}
		return json.Marshal(ids)
	case "relation-list":
		rel, ok := a.Relations[flags["-r"]]
		if !ok {
			return nil, errors.Errorf("unknown relation %q", flags["-r"])
		}
		units := []string{}
		for unit := range rel.Units {
			units = append(units, unit)
		}
		sort.Strings(units)
		return json.Marshal(units)
	case "relation-get":
		rel, ok := a.Relations[flags["-r"]]
		if !ok {
			return nil, errors.Errorf("unknown relation %q", flags["-r"])
		}
		if len(positional) != 2 {
			return nil, errors.New("relation-get expects key and unit")
		}
		unit := positional[1]
		settings := rel.Units[unit]
		if unit == a.UnitName {
			settings = rel.Local
		}
		if settings == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(settings)
	case "relation-set":
		rel, ok := a.Relations[flags["-r"]]
		if !ok {
			return nil, errors.Errorf("unknown relation %q", flags["-r"])
		}
		for _, kv := range positional {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) != 2 {
				return nil, errors.Errorf("bad setting %q", kv)
			}
			if parts[1] == "" {
				delete(rel.Local, parts[0])
			} else {
				rel.Local[parts[0]] = parts[1]
			}
		}
		return nil, nil
	case "unit-get":
		return json.Marshal(a.UnitAddresses[positional[0]])
	case "network-get":
		addr, ok := a.NetworkAddresses[positional[0]]
		if !ok {
			addr = a.UnitAddresses["private-address"]
		}
		return json.Marshal(addr)
	case "open-port":
		a.OpenPorts.Add(positional[0])
		return nil, nil
	case "close-port":
		a.OpenPorts.Remove(positional[0])
		return nil, nil
	case "status-set":
		a.Status = Status{Status: positional[0]}
		if len(positional) > 1 {
			a.Status.Message = positional[1]
		}
		return nil, nil
	case "is-leader":
		return json.Marshal(a.Leader)
	case "application-version-set":
		a.Version = positional[0]
		return nil, nil
	case "juju-log":
		a.Logs = append(a.Logs, LogEntry{Level: flags["-l"], Message: strings.Join(positional, " ")})
		return nil, nil
	case "action-get":
		return json.Marshal(a.ActionParams)
	case "action-set":
		for _, kv := range positional {
			parts := strings.SplitN(kv, "=", 2)
			a.ActionResults[parts[0]] = parts[len(parts)-1]
		}
		return nil, nil
	case "action-fail":
		a.ActionFailure = strings.Join(positional, " ")
		return nil, nil
	}
	return nil, errors.NotFoundf("command %q", name)
}

// splitArgs separates "-x value" pairs from positional arguments.
// Flags of the form --name=value and bare --name are dropped.
func splitArgs(args []string) (map[string]string, []string) {
	flags := make(map[string]string)
	var positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "--"):
		case arg == "-":
			positional = append(positional, arg)
		case strings.HasPrefix(arg, "-") && i+1 < len(args):
			flags[arg] = args[i+1]
			i++
		default:
			positional = append(positional, arg)
		}
	}
	return flags, positional
}
