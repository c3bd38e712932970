// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package neutronapi implements the neutron-api charm: the hooks and
// actions that install, configure and relate the Neutron API server.
package neutronapi

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/juju/charm-neutron-api/contexts"
	"github.com/juju/charm-neutron-api/hacluster"
	"github.com/juju/charm-neutron-api/hook"
	"github.com/juju/charm-neutron-api/neutron"
	"github.com/juju/charm-neutron-api/openstack"
	"github.com/juju/charm-neutron-api/packaging"
	"github.com/juju/charm-neutron-api/runner"
	"github.com/juju/charm-neutron-api/service"
	"github.com/juju/charm-neutron-api/templating"
)

var logger = loggo.GetLogger("neutronapi")

const (
	NeutronConfDir    = "/etc/neutron"
	NeutronConf       = NeutronConfDir + "/neutron.conf"
	NeutronLBaaSConf  = NeutronConfDir + "/neutron_lbaas.conf"
	NeutronVPNaaSConf = NeutronConfDir + "/neutron_vpnaas.conf"
	NeutronDefault    = "/etc/default/neutron-server"
	NeutronOverride   = "/etc/init/neutron-server.override"
	HAProxyConf       = "/etc/haproxy/haproxy.cfg"
	HAProxyDefault    = "/etc/default/haproxy"
	ApacheConf        = "/etc/apache2/sites-available/openstack_https_frontend"
	Apache24Conf      = "/etc/apache2/sites-available/openstack_https_frontend.conf"
	ApacheConfDir     = "/etc/apache2/conf-available"
	ApacheSSLDir      = "/etc/apache2/ssl"
	CACertPath        = "/usr/local/share/ca-certificates/keystone_juju_ca_cert.crt"
	MemcachedConf     = "/etc/memcached.conf"
	EtcdInitConf      = "/etc/init/etcd.conf"
	EtcdDefault       = "/etc/default/etcd"
	EtcdDataDir       = "/var/lib/etcd"
	SigningDir        = "/var/cache/neutron"
)

const (
	// ClusterResource is the pacemaker group holding the VIPs.
	ClusterResource = "grp_neutron_vips"

	// VersionPackage decides the installed OpenStack release.
	VersionPackage = "neutron-common"

	NeutronServer = "neutron-server"
	serviceName   = "neutron"
)

// Store is the unit key/value store.
type Store interface {
	Get(key string, out interface{}) (bool, error)
	Set(key string, value interface{}) error
	Unset(key string) error
	Flush() error
}

// NeutronAPI is the part of the Neutron API the charm queries.
type NeutronAPI interface {
	RouterFeaturePresent(feature string) (bool, error)
	Ready() bool
}

// Charm holds everything a hook or action of the charm works with.
type Charm struct {
	Env       hook.Environment
	Tools     *hook.Client
	Config    *hook.Config
	Store     Store
	Runner    runner.CommandRunner
	Apt       *packaging.Apt
	Sources   *packaging.Sources
	Installer *openstack.Installer
	Services  service.Manager
	Cluster   *hacluster.Cluster

	// TemplatesDir holds the config file templates.
	TemplatesDir string

	// Root prefixes every machine path the charm reads or writes.
	Root string

	// ConnectNeutron returns a client for the Neutron API.
	ConnectNeutron func(neutron.Credentials) (NeutronAPI, error)

	release  string
	renderer *templating.Renderer
}

// NewCharm returns a Charm for the hook described by env, running
// commands with r.
func NewCharm(env hook.Environment, r runner.CommandRunner, config *hook.Config, store Store) *Charm {
	tools := hook.NewClient(r)
	apt := packaging.NewApt(r)
	sources := packaging.NewSources(apt)
	return &Charm{
		Env:    env,
		Tools:  tools,
		Config: config,
		Store:  store,
		Runner: r,
		Apt:    apt,
		Installer: &openstack.Installer{
			Apt:     apt,
			Sources: sources,
			Origin:  config.String("openstack-origin"),
		},
		Sources:        sources,
		Services:       service.NewManager(r),
		Cluster:        hacluster.NewCluster(tools, config, r, env.UnitName),
		TemplatesDir:   filepath.Join(env.CharmDir, "templates"),
		ConnectNeutron: connectNeutron,
	}
}

func connectNeutron(creds neutron.Credentials) (NeutronAPI, error) {
	client, err := neutron.Connect(creds)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return client, nil
}

// path returns the location of a machine path under Root.
func (c *Charm) path(p string) string {
	if c.Root == "" {
		return p
	}
	return filepath.Join(c.Root, p)
}

func (c *Charm) exists(p string) bool {
	_, err := os.Stat(c.path(p))
	return err == nil
}

// Release returns the OpenStack release neutron-common is installed
// from, or the release of openstack-origin before installation.
func (c *Charm) Release() (string, error) {
	if c.release != "" {
		return c.release, nil
	}
	release, err := c.Installer.OSRelease(VersionPackage)
	if err != nil {
		return "", errors.Trace(err)
	}
	c.release = release
	return release, nil
}

func (c *Charm) plugin() string {
	return c.Config.String("neutron-plugin")
}

// legacyPlugin reports whether the charm manages the plugin config
// itself rather than leaving it to a subordinate.
func (c *Charm) legacyPlugin() bool {
	return c.Config.Bool("manage-neutron-plugin-legacy-mode")
}

func (c *Charm) paused() (bool, error) {
	return openstack.IsPaused(c.Store)
}

func (c *Charm) contextEnv() *contexts.Env {
	return &contexts.Env{
		Tools:    c.Tools,
		Config:   c.Config,
		Cluster:  c.Cluster,
		Runner:   c.Runner,
		Store:    c.Store,
		UnitName: c.Env.UnitName,
	}
}

// Configs returns the renderer for every file in the resource map,
// built once per hook.
func (c *Charm) Configs() (*templating.Renderer, error) {
	if c.renderer != nil {
		return c.renderer, nil
	}
	release, err := c.Release()
	if err != nil {
		return nil, errors.Trace(err)
	}
	resources, err := c.ResourceMap(release)
	if err != nil {
		return nil, errors.Trace(err)
	}
	available := c.templateContexts()
	r := templating.NewRenderer(c.TemplatesDir, openstack.Releases, release)
	for _, res := range resources {
		var ctxts []templating.Context
		for _, name := range res.Contexts {
			ctxt, ok := available[name]
			if !ok {
				return nil, errors.NotFoundf("context %q", name)
			}
			ctxts = append(ctxts, ctxt)
		}
		r.Register(c.path(res.Path), ctxts)
	}
	c.renderer = r
	return r, nil
}

// write renders the config file at path.
func (c *Charm) write(path string) error {
	configs, err := c.Configs()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(configs.Write(c.path(path)))
}

// writeAll renders every file in the resource map.
func (c *Charm) writeAll() error {
	configs, err := c.Configs()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(configs.WriteAll())
}

// complete reports whether the contexts of interface name are complete.
func (c *Charm) complete(name string) (bool, error) {
	configs, err := c.Configs()
	if err != nil {
		return false, errors.Trace(err)
	}
	complete, err := configs.CompleteContexts()
	if err != nil {
		return false, errors.Trace(err)
	}
	return complete.Contains(name), nil
}

// restartOnChange runs fn and restarts the services of every file in
// the resource map that fn changed.
func (c *Charm) restartOnChange(stopStart bool, fn func() error) error {
	restartMap, err := c.RestartMap()
	if err != nil {
		return errors.Trace(err)
	}
	restarter := &service.Restarter{Manager: c.Services, Paused: c.paused}
	return errors.Trace(restarter.OnChange(restartMap, stopStart, fn))
}
