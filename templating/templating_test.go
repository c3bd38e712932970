// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package templating_test

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/charm-neutron-api/templating"
)

var releases = []string{"icehouse", "juno", "kilo", "liberty", "mitaka"}

type fakeContext struct {
	interfaces []string
	data       map[string]interface{}
	err        error
}

func (f fakeContext) Interfaces() []string { return f.interfaces }

func (f fakeContext) Generate() (map[string]interface{}, error) {
	return f.data, f.err
}

type RendererSuite struct {
	templates string
	target    string
}

var _ = gc.Suite(&RendererSuite{})

func (s *RendererSuite) SetUpTest(c *gc.C) {
	s.templates = c.MkDir()
	s.target = c.MkDir()
	s.writeTemplate(c, "", "neutron.conf", "[DEFAULT]\nbind_port = {{.bind_port}}\n")
	s.writeTemplate(c, "juno", "neutron.conf", "# juno\nbind_port = {{.bind_port}}\n")
	s.writeTemplate(c, "liberty", "neutron.conf", "# liberty\ncore_plugin = {{.core_plugin}}\n")
	s.writeTemplate(c, "", "haproxy.cfg", "{{range $name := split .backends \",\"}}backend {{$name}}\n{{end}}")
}

func (s *RendererSuite) writeTemplate(c *gc.C, release, name, text string) {
	dir := filepath.Join(s.templates, release)
	c.Assert(os.MkdirAll(dir, 0755), jc.ErrorIsNil)
	c.Assert(os.WriteFile(filepath.Join(dir, name), []byte(text), 0644), jc.ErrorIsNil)
}

func (s *RendererSuite) read(c *gc.C, path string) string {
	data, err := os.ReadFile(path)
	c.Assert(err, jc.ErrorIsNil)
	return string(data)
}

func (s *RendererSuite) TestTemplateSearchOrder(c *gc.C) {
	path := filepath.Join(s.target, "etc", "neutron", "neutron.conf")
	r := templating.NewRenderer(s.templates, releases, "icehouse")
	r.Register(path, nil)

	source, err := r.TemplatePath(path)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(source, gc.Equals, filepath.Join(s.templates, "neutron.conf"))

	r.SetRelease("kilo")
	source, err = r.TemplatePath(path)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(source, gc.Equals, filepath.Join(s.templates, "juno", "neutron.conf"))

	r.SetRelease("mitaka")
	source, err = r.TemplatePath(path)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(source, gc.Equals, filepath.Join(s.templates, "liberty", "neutron.conf"))

	_, err = r.TemplatePath("/etc/missing.conf")
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
}

func (s *RendererSuite) TestWriteMergesContextsInOrder(c *gc.C) {
	path := filepath.Join(s.target, "etc", "neutron", "neutron.conf")
	r := templating.NewRenderer(s.templates, releases, "kilo")
	r.Register(path, []templating.Context{
		fakeContext{data: map[string]interface{}{"bind_port": 9696}},
		fakeContext{data: map[string]interface{}{"bind_port": 9686}},
	})
	c.Assert(r.Write(path), jc.ErrorIsNil)
	c.Assert(s.read(c, path), gc.Equals, "# juno\nbind_port = 9686\n")
}

func (s *RendererSuite) TestWriteAll(c *gc.C) {
	conf := filepath.Join(s.target, "neutron.conf")
	haproxy := filepath.Join(s.target, "haproxy", "haproxy.cfg")
	r := templating.NewRenderer(s.templates, releases, "liberty")
	r.Register(conf, []templating.Context{
		fakeContext{data: map[string]interface{}{"core_plugin": "ml2"}},
	})
	r.Register(haproxy, []templating.Context{
		fakeContext{data: map[string]interface{}{"backends": "neutron-api-0,neutron-api-1"}},
	})
	c.Assert(r.Paths(), jc.DeepEquals, []string{conf, haproxy})
	c.Assert(r.WriteAll(), jc.ErrorIsNil)
	c.Assert(s.read(c, conf), gc.Equals, "# liberty\ncore_plugin = ml2\n")
	c.Assert(s.read(c, haproxy), gc.Equals, "backend neutron-api-0\nbackend neutron-api-1\n")
}

func (s *RendererSuite) TestWriteContextError(c *gc.C) {
	path := filepath.Join(s.target, "neutron.conf")
	r := templating.NewRenderer(s.templates, releases, "kilo")
	r.Register(path, []templating.Context{fakeContext{err: errors.New("boom")}})
	err := r.WriteAll()
	c.Assert(err, gc.ErrorMatches, "rendering .*neutron.conf: boom")
}

func (s *RendererSuite) TestCompleteContexts(c *gc.C) {
	r := templating.NewRenderer(s.templates, releases, "kilo")
	r.Register("/etc/neutron/neutron.conf", []templating.Context{
		fakeContext{interfaces: []string{"amqp"}, data: map[string]interface{}{"rabbitmq_host": "10.0.0.1"}},
		fakeContext{interfaces: []string{"shared-db"}},
	})
	r.Register("/etc/default/neutron-server", []templating.Context{
		fakeContext{interfaces: []string{"identity-service"}, data: map[string]interface{}{"auth_host": "10.0.0.2"}},
	})
	complete, err := r.CompleteContexts()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(complete.SortedValues(), jc.DeepEquals, []string{"amqp", "identity-service"})
}

func (s *RendererSuite) TestRenderFuncs(c *gc.C) {
	out, err := templating.Render("t", `{{default "none" .a}} {{join .b ","}}`, map[string]interface{}{
		"b": []string{"x", "y"},
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(string(out), gc.Equals, "none x,y")
}
