// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package openstack

import (
	"github.com/juju/errors"
)

const ml2Config = "/etc/neutron/plugins/ml2/ml2_conf.ini"

// Plugin describes what a Neutron core plugin needs on the API server.
type Plugin struct {
	// Config is the plugin configuration file.
	Config string

	// Driver is the core_plugin class.
	Driver string

	// ServerPackages are installed alongside neutron-server.
	ServerPackages []string

	// ServerServices restart when the plugin config changes.
	ServerServices []string
}

type pluginFunc func(release string) Plugin

var plugins = map[string]pluginFunc{
	"ovs": func(string) Plugin {
		return Plugin{
			Config:         ml2Config,
			Driver:         "neutron.plugins.ml2.plugin.Ml2Plugin",
			ServerPackages: []string{"neutron-server", "neutron-plugin-ml2"},
			ServerServices: []string{"neutron-server"},
		}
	},
	"nvp": func(string) Plugin {
		return Plugin{
			Config:         "/etc/neutron/plugins/nicira/nvp.ini",
			Driver:         "neutron.plugins.nicira.nicira_nvp_plugin.NeutronPlugin.NvpPluginV2",
			ServerPackages: []string{"neutron-server", "neutron-plugin-nicira"},
			ServerServices: []string{"neutron-server"},
		}
	},
	"nsx": func(string) Plugin {
		return Plugin{
			Config:         "/etc/neutron/plugins/vmware/nsx.ini",
			Driver:         "vmware",
			ServerPackages: []string{"neutron-server", "neutron-plugin-vmware"},
			ServerServices: []string{"neutron-server"},
		}
	},
	"n1kv": func(string) Plugin {
		return Plugin{
			Config:         "/etc/neutron/plugins/cisco/cisco_plugins.ini",
			Driver:         "neutron.plugins.cisco.network_plugin.PluginV2",
			ServerPackages: []string{"neutron-server", "neutron-plugin-cisco"},
			ServerServices: []string{"neutron-server"},
		}
	},
	"Calico": func(string) Plugin {
		return Plugin{
			Config:         ml2Config,
			Driver:         "neutron.plugins.ml2.plugin.Ml2Plugin",
			ServerPackages: []string{"neutron-server", "calico-control", "etcd"},
			ServerServices: []string{"neutron-server", "etcd"},
		}
	},
	"vsp": func(string) Plugin {
		return Plugin{
			Config:         "/etc/neutron/plugins/nuage/nuage_plugin.ini",
			Driver:         "neutron.plugins.nuage.plugin.NuagePlugin",
			ServerPackages: []string{"neutron-server", "neutron-plugin-nuage"},
			ServerServices: []string{"neutron-server"},
		}
	},
	"plumgrid": func(string) Plugin {
		return Plugin{
			Config:         "/etc/neutron/plugins/plumgrid/plumgrid.ini",
			Driver:         "neutron.plugins.plumgrid.plumgrid_plugin.plumgrid_plugin.NeutronPluginPLUMgridV2",
			ServerPackages: []string{"neutron-server", "neutron-plugin-plumgrid"},
			ServerServices: []string{"neutron-server"},
		}
	},
	"midonet": func(release string) Plugin {
		p := Plugin{
			Config:         "/etc/neutron/plugins/midonet/midonet.ini",
			Driver:         "midonet.neutron.plugin.MidonetPluginV2",
			ServerPackages: []string{"neutron-server", "python-neutron-plugin-midonet"},
			ServerServices: []string{"neutron-server"},
		}
		if AtLeast(release, "liberty") {
			p.Driver = "midonet.neutron.plugin_v1.MidonetPluginV2"
			p.ServerPackages = []string{"neutron-server", "python-networking-midonet"}
		}
		return p
	},
}

// PluginAttributes returns the description of plugin at release.
func PluginAttributes(plugin, release string) (Plugin, error) {
	f, ok := plugins[plugin]
	if !ok {
		return Plugin{}, errors.NotFoundf("neutron plugin %q", plugin)
	}
	return f(release), nil
}
