// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hook

import (
	"fmt"
	"sort"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("neutronapi.hook")

// Func is a Go implementation of one or more charm hooks or actions.
type Func func() error

// Observer is told about every executed hook.
type Observer func(name string, elapsed time.Duration, err error)

// UnregisteredHookError is returned by Execute for names nothing was
// registered under.
type UnregisteredHookError struct {
	Name string
}

func (e *UnregisteredHookError) Error() string {
	return fmt.Sprintf("unregistered hook %q", e.Name)
}

// IsUnregisteredHook reports whether err is an UnregisteredHookError.
func IsUnregisteredHook(err error) bool {
	_, ok := errors.Cause(err).(*UnregisteredHookError)
	return ok
}

// Registry maps hook names to their implementations.
type Registry struct {
	clock     clock.Clock
	hooks     map[string][]Func
	observers []Observer
}

// NewRegistry returns an empty Registry timing hooks with clk.
func NewRegistry(clk clock.Clock) *Registry {
	return &Registry{
		clock: clk,
		hooks: make(map[string][]Func),
	}
}

// Register adds fn under every one of names. Functions registered
// under the same name run in registration order.
func (r *Registry) Register(fn Func, names ...string) {
	for _, name := range names {
		r.hooks[name] = append(r.hooks[name], fn)
	}
}

// Observe adds an observer notified after every Execute.
func (r *Registry) Observe(o Observer) {
	r.observers = append(r.observers, o)
}

// Names returns the sorted registered names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.hooks))
	for name := range r.hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs everything registered under name, stopping at the
// first error.
func (r *Registry) Execute(name string) error {
	fns, ok := r.hooks[name]
	if !ok {
		return &UnregisteredHookError{Name: name}
	}
	logger.Debugf("running hook %q", name)
	start := r.clock.Now()
	var err error
	for _, fn := range fns {
		if err = fn(); err != nil {
			err = errors.Annotatef(err, "hook %q", name)
			break
		}
	}
	elapsed := r.clock.Now().Sub(start)
	for _, o := range r.observers {
		o(name, elapsed, err)
	}
	return err
}
