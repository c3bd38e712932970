// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/juju/errors"
	"github.com/juju/schema"
	"gopkg.in/yaml.v2"
)

const (
	ScopeGlobal    = "global"
	ScopeContainer = "container"
)

// Relation represents a single relation defined in the charm
// metadata.yaml file.
type Relation struct {
	Name      string
	Interface string
	Optional  bool
	Limit     int
	Scope     string
}

// Meta represents the parts of metadata.yaml the charm needs
// at runtime.
type Meta struct {
	Name        string
	Summary     string
	Description string
	Provides    map[string]Relation
	Requires    map[string]Relation
	Peers       map[string]Relation
	Subordinate bool
	Series      []string
}

// ReadMetaFile reads metadata.yaml from the charm directory.
func ReadMetaFile(charmDir string) (*Meta, error) {
	f, err := os.Open(filepath.Join(charmDir, "metadata.yaml"))
	if os.IsNotExist(err) {
		return nil, errors.NotFoundf("metadata.yaml in %q", charmDir)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	return ReadMeta(f)
}

// ReadMeta reads the content of a metadata.yaml file and returns
// its representation.
func ReadMeta(r io.Reader) (*Meta, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	raw := make(map[interface{}]interface{})
	if err := yaml.Unmarshal(data, raw); err != nil {
		return nil, errors.Annotate(err, "metadata")
	}
	v, err := charmSchema.Coerce(raw, nil)
	if err != nil {
		return nil, errors.Annotate(err, "metadata")
	}
	m := v.(map[string]interface{})
	meta := &Meta{
		Name:     m["name"].(string),
		Provides: parseRelations(m["provides"]),
		Requires: parseRelations(m["requires"]),
		Peers:    parseRelations(m["peers"]),
	}
	if summary, ok := m["summary"].(string); ok {
		meta.Summary = summary
	}
	if description, ok := m["description"].(string); ok {
		meta.Description = description
	}
	if series, ok := m["series"].([]interface{}); ok {
		for _, s := range series {
			meta.Series = append(meta.Series, s.(string))
		}
	}
	// Subordinate charms must have at least one relation that
	// has container scope, otherwise they can't relate to the
	// principal.
	if subordinate, ok := m["subordinate"].(bool); ok && subordinate {
		valid := false
		for _, relationData := range meta.Requires {
			if relationData.Scope == ScopeContainer {
				valid = true
				break
			}
		}
		if !valid {
			return nil, errors.Errorf("subordinate charm %q lacks requires relation with container scope", meta.Name)
		}
		meta.Subordinate = true
	}
	return meta, nil
}

// Relations returns every relation the charm declares, keyed by name.
func (m *Meta) Relations() map[string]Relation {
	all := make(map[string]Relation)
	for _, group := range []map[string]Relation{m.Provides, m.Requires, m.Peers} {
		for name, rel := range group {
			all[name] = rel
		}
	}
	return all
}

var unitHooks = []string{
	"install",
	"config-changed",
	"start",
	"stop",
	"upgrade-charm",
	"update-status",
	"leader-elected",
	"leader-settings-changed",
}

var relationHookSuffixes = []string{
	"-relation-joined",
	"-relation-changed",
	"-relation-departed",
	"-relation-broken",
}

// HookNames returns the sorted names of every hook Juju may run for
// this charm.
func (m *Meta) HookNames() []string {
	names := append([]string(nil), unitHooks...)
	for name := range m.Relations() {
		for _, suffix := range relationHookSuffixes {
			names = append(names, name+suffix)
		}
	}
	sort.Strings(names)
	return names
}

func parseRelations(relations interface{}) map[string]Relation {
	if relations == nil {
		return nil
	}
	result := make(map[string]Relation)
	for name, rel := range relations.(map[interface{}]interface{}) {
		relMap := rel.(map[string]interface{})
		relation := Relation{
			Name:      name.(string),
			Interface: relMap["interface"].(string),
			Optional:  relMap["optional"].(bool),
		}
		if scope := relMap["scope"]; scope != nil {
			relation.Scope = scope.(string)
		}
		// The shorthand form carries the expander's int default; the
		// long form is coerced by the schema to int64.
		switch limit := relMap["limit"].(type) {
		case int:
			relation.Limit = limit
		case int64:
			relation.Limit = int(limit)
		}
		result[relation.Name] = relation
	}
	return result
}

// Schema coercer that expands the interface shorthand notation.
// A consistent format is easier to work with than considering the
// potential difference everywhere.
//
// Supports the following variants::
//
//	provides:
//	  server: riak
//	  admin: http
//	  foobar:
//	    interface: blah
//
//	provides:
//	  server:
//	    interface: mysql
//	    limit:
//	    optional: false
//
// In all input cases, the output is the fully specified interface
// representation as seen in the mysql interface description above.
func ifaceExpander(limit interface{}) schema.Checker {
	return ifaceExpC{limit}
}

type ifaceExpC struct {
	limit interface{}
}

var (
	stringC = schema.String()
	mapC    = schema.StringMap(schema.Any())
)

func (c ifaceExpC) Coerce(v interface{}, path []string) (interface{}, error) {
	s, err := stringC.Coerce(v, path)
	if err == nil {
		return map[string]interface{}{
			"interface": s,
			"limit":     c.limit,
			"optional":  false,
			"scope":     ScopeGlobal,
		}, nil
	}

	// Optional values are context-sensitive and/or have
	// defaults, which is different than what a field map can
	// readily support. So just do it here first, then
	// coerce to the real schema.
	v, err = mapC.Coerce(v, path)
	if err != nil {
		return nil, err
	}
	m := v.(map[string]interface{})
	if _, ok := m["limit"]; !ok {
		m["limit"] = c.limit
	}
	if _, ok := m["optional"]; !ok {
		m["optional"] = false
	}
	if _, ok := m["scope"]; !ok {
		m["scope"] = ScopeGlobal
	}
	return ifaceSchema.Coerce(m, path)
}

var ifaceSchema = schema.FieldMap(
	schema.Fields{
		"interface": schema.String(),
		"limit":     schema.OneOf(schema.Const(nil), schema.Int()),
		"scope":     schema.OneOf(schema.Const(ScopeGlobal), schema.Const(ScopeContainer)),
		"optional":  schema.Bool(),
	},
	schema.Defaults{"scope": ScopeGlobal},
)

var charmSchema = schema.FieldMap(
	schema.Fields{
		"name":        schema.String(),
		"summary":     schema.String(),
		"description": schema.String(),
		"peers":       schema.Map(schema.String(), ifaceExpander(1)),
		"provides":    schema.Map(schema.String(), ifaceExpander(nil)),
		"requires":    schema.Map(schema.String(), ifaceExpander(1)),
		"subordinate": schema.Bool(),
		"series":      schema.List(schema.String()),
		"tags":        schema.List(schema.String()),
		"maintainer":  schema.String(),
	},
	schema.Defaults{
		"summary":     schema.Omit,
		"description": schema.Omit,
		"provides":    schema.Omit,
		"requires":    schema.Omit,
		"peers":       schema.Omit,
		"subordinate": schema.Omit,
		"series":      schema.Omit,
		"tags":        schema.Omit,
		"maintainer":  schema.Omit,
	},
)
