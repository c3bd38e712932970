// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package neutronapi

import (
	"fmt"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/mohae/deepcopy"

	"github.com/juju/charm-neutron-api/contexts"
	"github.com/juju/charm-neutron-api/openstack"
	"github.com/juju/charm-neutron-api/service"
	"github.com/juju/charm-neutron-api/templating"
)

// Names of the contexts config files are rendered from.
const (
	ctxAMQP             = "amqp"
	ctxSharedDB         = "shared-db"
	ctxPgsqlDB          = "pgsql-db"
	ctxIdentity         = "identity-service"
	ctxConfigFlags      = "config-flags"
	ctxNeutronCC        = "neutron-cc"
	ctxSyslog           = "syslog"
	ctxZeroMQ           = "zeromq"
	ctxNotification     = "notification"
	ctxBindHost         = "bind-host"
	ctxWorker           = "worker"
	ctxInternalEndpoint = "internal-endpoint"
	ctxMemcache         = "memcache"
	ctxApacheSSL        = "apache-ssl"
	ctxHAProxy          = "haproxy"
	ctxNeutronHAProxy   = "neutron-haproxy"
	ctxSDN              = "sdn"
	ctxSDNConfigFile    = "sdn-config-file"
	ctxNuageVSD         = "nuage-vsd"
	ctxEtcd             = "etcd"
)

var basePackages = []string{
	"apache2",
	"haproxy",
	"python-keystoneclient",
	"python-mysqldb",
	"python-psycopg2",
	"python-six",
	"uuid",
}

var kiloPackages = []string{
	"python-neutron-lbaas",
	"python-neutron-fwaas",
	"python-neutron-vpnaas",
}

var tokenCachePackages = []string{"memcached", "python-memcache"}

var apiPorts = map[string]int{
	NeutronServer: 9696,
}

// RequiredInterfaces are satisfied when any one relation of each group
// has a complete context.
var RequiredInterfaces = openstack.Interfaces{
	"database":  {"shared-db", "pgsql-db"},
	"messaging": {"amqp", "zeromq-configuration"},
	"identity":  {"identity-service"},
}

// APIPort returns the public port of service.
func APIPort(service string) (int, error) {
	port, ok := apiPorts[service]
	if !ok {
		return 0, errors.NotFoundf("API port for %q", service)
	}
	return port, nil
}

// Resource is a config file, the contexts rendering it and the
// services reading it.
type Resource struct {
	Path     string
	Services []string
	Contexts []string
}

var baseResources = []Resource{{
	Path:     NeutronConf,
	Services: []string{NeutronServer},
	Contexts: []string{
		ctxAMQP,
		ctxSharedDB,
		ctxPgsqlDB,
		ctxIdentity,
		ctxConfigFlags,
		ctxNeutronCC,
		ctxSyslog,
		ctxZeroMQ,
		ctxNotification,
		ctxBindHost,
		ctxWorker,
		ctxInternalEndpoint,
		ctxMemcache,
	},
}, {
	Path:     NeutronDefault,
	Services: []string{NeutronServer},
	Contexts: []string{ctxNeutronCC},
}, {
	Path:     ApacheConf,
	Services: []string{"apache2"},
	Contexts: []string{ctxApacheSSL},
}, {
	Path:     Apache24Conf,
	Services: []string{"apache2"},
	Contexts: []string{ctxApacheSSL},
}, {
	Path:     HAProxyConf,
	Services: []string{"haproxy"},
	Contexts: []string{ctxHAProxy, ctxNeutronHAProxy},
}}

var libertyResources = []Resource{{
	Path:     NeutronLBaaSConf,
	Services: []string{NeutronServer},
}, {
	Path:     NeutronVPNaaSConf,
	Services: []string{NeutronServer},
}}

func findResource(resources []Resource, path string) *Resource {
	for i := range resources {
		if resources[i].Path == path {
			return &resources[i]
		}
	}
	return nil
}

func removeResource(resources []Resource, path string) []Resource {
	var kept []Resource
	for _, res := range resources {
		if res.Path != path {
			kept = append(kept, res)
		}
	}
	return kept
}

// ResourceMap returns the config files managed at release, in the
// order they are rendered and their services restarted.
func (c *Charm) ResourceMap(release string) ([]Resource, error) {
	resources := deepcopy.Copy(baseResources).([]Resource)
	if openstack.AtLeast(release, "liberty") {
		resources = append(resources, deepcopy.Copy(libertyResources).([]Resource)...)
	}
	if c.exists(ApacheConfDir) {
		resources = removeResource(resources, ApacheConf)
	} else {
		resources = removeResource(resources, Apache24Conf)
	}

	plugin := c.plugin()
	if c.legacyPlugin() {
		attrs, err := openstack.PluginAttributes(plugin, release)
		if err != nil {
			return nil, errors.Trace(err)
		}
		pluginConf := Resource{
			Path:     attrs.Config,
			Services: attrs.ServerServices,
			Contexts: []string{ctxSharedDB, ctxNeutronCC, ctxPgsqlDB},
		}
		if plugin == "vsp" {
			pluginConf.Contexts = append(pluginConf.Contexts, ctxNuageVSD)
		}
		resources = append(resources, pluginConf)
	} else {
		conf := findResource(resources, NeutronConf)
		conf.Contexts = append(conf.Contexts, ctxSDN)
		findResource(resources, NeutronDefault).Contexts = []string{ctxSDNConfigFile}
	}
	if plugin == "vsp" {
		conf := findResource(resources, NeutronConf)
		conf.Contexts = append(conf.Contexts, ctxNuageVSD)
	}

	if memcacheEnabled(release) {
		resources = append(resources, Resource{
			Path:     MemcachedConf,
			Services: []string{"memcached"},
			Contexts: []string{ctxMemcache},
		})
	}
	if plugin == "Calico" {
		// etcd is restarted by ForceEtcdRestart, never on change.
		resources = append(resources,
			Resource{Path: EtcdInitConf, Contexts: []string{ctxEtcd}},
			Resource{Path: EtcdDefault, Contexts: []string{ctxEtcd}},
		)
	}
	return resources, nil
}

func memcacheEnabled(release string) bool {
	return openstack.AtLeast(release, "mitaka")
}

func (c *Charm) templateContexts() map[string]templating.Context {
	env := c.contextEnv()
	database := c.Config.String("database")
	return map[string]templating.Context{
		ctxAMQP: &contexts.AMQP{Env: env, SSLDir: c.path(NeutronConfDir)},
		ctxSharedDB: &contexts.SharedDB{
			Env:      env,
			Database: database,
			User:     c.Config.String("database-user"),
			SSLDir:   c.path(NeutronConfDir),
		},
		ctxPgsqlDB: &contexts.PostgresqlDB{Env: env, Database: database},
		ctxIdentity: &IdentityService{
			IdentityService: contexts.IdentityService{Env: env, SigningDir: SigningDir},
			Region:          c.Config.String("region"),
		},
		ctxConfigFlags:      &contexts.OSConfigFlag{Env: env},
		ctxNeutronCC:        &NeutronCC{Charm: c},
		ctxSyslog:           &contexts.Syslog{Env: env},
		ctxZeroMQ:           &contexts.ZeroMQ{Env: env},
		ctxNotification:     &contexts.NotificationDriver{Env: env},
		ctxBindHost:         &contexts.BindHost{Env: env},
		ctxWorker:           &contexts.WorkerConfig{Env: env},
		ctxInternalEndpoint: &contexts.InternalEndpoint{Env: env},
		ctxMemcache: &contexts.Memcache{
			Enabled: func() (bool, error) {
				release, err := c.Release()
				return memcacheEnabled(release), errors.Trace(err)
			},
			Series: c.Installer.Series,
		},
		ctxApacheSSL: &contexts.ApacheSSL{
			Env:           env,
			Namespace:     serviceName,
			ExternalPorts: c.DeterminePorts,
			SSLDir:        c.path(ApacheSSLDir),
			CACertPath:    c.path(CACertPath),
		},
		ctxHAProxy: &contexts.HAProxy{
			Env:            env,
			SinglenodeMode: true,
			DefaultsFile:   c.path(HAProxyDefault),
		},
		ctxNeutronHAProxy: &NeutronHAProxy{Charm: c},
		ctxSDN:            &NeutronAPISDN{Charm: c},
		ctxSDNConfigFile:  &NeutronAPISDNConfigFile{Charm: c},
		ctxNuageVSD:       &NuageVSD{Charm: c},
		ctxEtcd:           &Etcd{Charm: c},
	}
}

// RestartMap returns the files of the resource map that services read,
// in resource map order.
func (c *Charm) RestartMap() (service.RestartMap, error) {
	release, err := c.Release()
	if err != nil {
		return nil, errors.Trace(err)
	}
	resources, err := c.ResourceMap(release)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var restartMap service.RestartMap
	for _, res := range resources {
		if len(res.Services) == 0 {
			continue
		}
		restartMap = append(restartMap, service.FileServices{
			Path:     c.path(res.Path),
			Services: res.Services,
		})
	}
	return restartMap, nil
}

// ServiceNames returns every service the charm manages.
func (c *Charm) ServiceNames() ([]string, error) {
	restartMap, err := c.RestartMap()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return restartMap.Services(), nil
}

// DeterminePorts returns the API ports of the managed services.
func (c *Charm) DeterminePorts() ([]int, error) {
	services, err := c.ServiceNames()
	if err != nil {
		return nil, errors.Trace(err)
	}
	ports := set.NewInts()
	for _, svc := range services {
		if port, ok := apiPorts[svc]; ok {
			ports.Add(port)
		}
	}
	return ports.SortedValues(), nil
}

// DeterminePackages returns the packages to install at release, sorted.
func (c *Charm) DeterminePackages(release string) ([]string, error) {
	pkgs := append([]string(nil), basePackages...)
	resources, err := c.ResourceMap(release)
	if err != nil {
		return nil, errors.Trace(err)
	}
	for _, res := range resources {
		pkgs = append(pkgs, res.Services...)
	}
	if c.legacyPlugin() {
		attrs, err := openstack.PluginAttributes(c.plugin(), release)
		if err != nil {
			return nil, errors.Trace(err)
		}
		pkgs = append(pkgs, attrs.ServerPackages...)
	}
	if openstack.AtLeast(release, "kilo") {
		pkgs = append(pkgs, kiloPackages...)
	}
	if release == "kilo" || openstack.AtLeast(release, "mitaka") {
		pkgs = append(pkgs, "python-networking-hyperv")
	}
	if c.plugin() == "vsp" {
		pkgs = append(pkgs, strings.Fields(c.Config.String("nuage-packages"))...)
	}
	if memcacheEnabled(release) {
		pkgs = append(pkgs, tokenCachePackages...)
	}
	return set.NewStrings(pkgs...).SortedValues(), nil
}

// DetermineEndpoints returns the identity-service settings registering
// the API at the given base URLs.
func (c *Charm) DetermineEndpoints(publicURL, internalURL, adminURL string) map[string]string {
	port := apiPorts[NeutronServer]
	return map[string]string{
		"neutron_service":      serviceName,
		"neutron_region":       c.Config.String("region"),
		"neutron_public_url":   fmt.Sprintf("%s:%d", publicURL, port),
		"neutron_admin_url":    fmt.Sprintf("%s:%d", adminURL, port),
		"neutron_internal_url": fmt.Sprintf("%s:%d", internalURL, port),
		// Unset the endpoints of the quantum era.
		"quantum_service":      "",
		"quantum_region":       "",
		"quantum_public_url":   "",
		"quantum_admin_url":    "",
		"quantum_internal_url": "",
	}
}
