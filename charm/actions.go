// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/juju/errors"
	"gopkg.in/yaml.v2"
)

// ActionSpec describes a single action from actions.yaml.
type ActionSpec struct {
	Description string                 `yaml:"description"`
	Params      map[string]interface{} `yaml:"params,omitempty"`
}

// Actions holds the actions a charm declares.
type Actions struct {
	ActionSpecs map[string]ActionSpec
}

// Names returns the sorted action names.
func (a *Actions) Names() []string {
	names := make([]string, 0, len(a.ActionSpecs))
	for name := range a.ActionSpecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadActionsFile reads actions.yaml from the charm directory. A charm
// without actions.yaml has no actions.
func ReadActionsFile(charmDir string) (*Actions, error) {
	f, err := os.Open(filepath.Join(charmDir, "actions.yaml"))
	if os.IsNotExist(err) {
		return &Actions{ActionSpecs: map[string]ActionSpec{}}, nil
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	return ReadActions(f)
}

// ReadActions parses an actions.yaml document.
func ReadActions(r io.Reader) (*Actions, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	specs := make(map[string]ActionSpec)
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, errors.Annotate(err, "invalid actions")
	}
	for name := range specs {
		if name == "" {
			return nil, errors.NotValidf("empty action name")
		}
	}
	return &Actions{ActionSpecs: specs}, nil
}
