// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package templating renders config files from templates and the
// contexts registered for them.
package templating

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/utils/v4"
)

var logger = loggo.GetLogger("neutronapi.templating")

// Context computes template data for a config file. An empty map means
// the data it depends on is not yet available.
type Context interface {
	// Interfaces returns the relation interfaces the context reads.
	Interfaces() []string

	// Generate returns the template data.
	Generate() (map[string]interface{}, error)
}

// Renderer renders registered config files from templates.
type Renderer struct {
	templatesDir string
	releases     []string
	release      string
	paths        []string
	contexts     map[string][]Context
}

// NewRenderer returns a Renderer loading templates from templatesDir.
// releases lists every release oldest first; it decides which
// release-specific template directories a file may come from.
func NewRenderer(templatesDir string, releases []string, release string) *Renderer {
	return &Renderer{
		templatesDir: templatesDir,
		releases:     releases,
		release:      release,
		contexts:     make(map[string][]Context),
	}
}

// SetRelease changes the release templates are selected for.
func (r *Renderer) SetRelease(release string) {
	r.release = release
}

// Release returns the release templates are selected for.
func (r *Renderer) Release() string {
	return r.release
}

// Register associates contexts with the config file at path.
// Registering a path again replaces its contexts.
func (r *Renderer) Register(path string, contexts []Context) {
	if _, ok := r.contexts[path]; !ok {
		r.paths = append(r.paths, path)
	}
	r.contexts[path] = contexts
}

// Paths returns the registered paths in registration order.
func (r *Renderer) Paths() []string {
	return append([]string(nil), r.paths...)
}

// searchDirs returns the directories a template is looked up in:
// the release directory, each older release newest first, then the
// top level.
func (r *Renderer) searchDirs() []string {
	var dirs []string
	idx := -1
	for i, release := range r.releases {
		if release == r.release {
			idx = i
			break
		}
	}
	for i := idx; i >= 0; i-- {
		dirs = append(dirs, filepath.Join(r.templatesDir, r.releases[i]))
	}
	return append(dirs, r.templatesDir)
}

// TemplatePath returns the template file used for the config file at
// path.
func (r *Renderer) TemplatePath(path string) (string, error) {
	name := filepath.Base(path)
	for _, dir := range r.searchDirs() {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", errors.NotFoundf("template %q for release %q", name, r.release)
}

// Context merges the data of every context registered for path, later
// contexts overriding earlier keys.
func (r *Renderer) Context(path string) (map[string]interface{}, error) {
	contexts, ok := r.contexts[path]
	if !ok {
		return nil, errors.NotFoundf("config file %q", path)
	}
	data := make(map[string]interface{})
	for _, ctx := range contexts {
		generated, err := ctx.Generate()
		if err != nil {
			return nil, errors.Trace(err)
		}
		for k, v := range generated {
			data[k] = v
		}
	}
	return data, nil
}

// Write renders the config file at path.
func (r *Renderer) Write(path string) error {
	data, err := r.Context(path)
	if err != nil {
		return errors.Trace(err)
	}
	source, err := r.TemplatePath(path)
	if err != nil {
		return errors.Trace(err)
	}
	logger.Infof("writing %s from %s", path, source)
	return errors.Trace(RenderFile(source, path, data, 0644))
}

// WriteAll renders every registered config file.
func (r *Renderer) WriteAll() error {
	for _, path := range r.paths {
		if err := r.Write(path); err != nil {
			return errors.Annotatef(err, "rendering %s", path)
		}
	}
	return nil
}

// CompleteContexts returns the interfaces whose contexts produced
// data, across every registered file.
func (r *Renderer) CompleteContexts() (set.Strings, error) {
	complete := set.NewStrings()
	for _, path := range r.paths {
		for _, ctx := range r.contexts[path] {
			data, err := ctx.Generate()
			if err != nil {
				return nil, errors.Trace(err)
			}
			if len(data) > 0 {
				complete = complete.Union(set.NewStrings(ctx.Interfaces()...))
			}
		}
	}
	return complete, nil
}

var funcs = template.FuncMap{
	"join":  strings.Join,
	"split": strings.Split,
	"default": func(def, value interface{}) interface{} {
		if value == nil || value == "" || value == false {
			return def
		}
		return value
	},
}

// Render executes the template text with data.
func Render(name, text string, data interface{}) ([]byte, error) {
	tmpl, err := template.New(name).Funcs(funcs).Parse(text)
	if err != nil {
		return nil, errors.Annotatef(err, "parsing template %s", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, errors.Annotatef(err, "executing template %s", name)
	}
	return buf.Bytes(), nil
}

// RenderFile renders the template at source into target, creating
// parent directories, and replaces target atomically.
func RenderFile(source, target string, data interface{}, perm os.FileMode) error {
	text, err := os.ReadFile(source)
	if err != nil {
		return errors.Trace(err)
	}
	out, err := Render(filepath.Base(source), string(text), data)
	if err != nil {
		return errors.Trace(err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(utils.AtomicWriteFile(target, out, perm))
}
