// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package neutronapi

import (
	"encoding/json"
	"strings"

	"github.com/juju/errors"

	"github.com/juju/charm-neutron-api/contexts"
	"github.com/juju/charm-neutron-api/openstack"
)

const (
	ml2Config      = "/etc/neutron/plugins/ml2/ml2_conf.ini"
	subordinateRel = "neutron-plugin-api-subordinate"
	lbaasV2Plugin  = "neutron_lbaas.services.loadbalancer.plugin.LoadBalancerPluginv2"
)

// eachUnit calls fn with the settings of every remote unit of endpoint
// until fn returns true.
func (c *Charm) eachUnit(endpoint string, fn func(relId, unit string, settings map[string]string) bool) error {
	ids, err := c.Tools.RelationIds(endpoint)
	if err != nil {
		return errors.Trace(err)
	}
	for _, id := range ids {
		units, err := c.Tools.RelatedUnits(id)
		if err != nil {
			return errors.Trace(err)
		}
		for _, unit := range units {
			settings, err := c.Tools.RelationGet(id, unit)
			if err != nil {
				return errors.Trace(err)
			}
			if fn(id, unit, settings) {
				return nil
			}
		}
	}
	return nil
}

// IdentityService adds the keystone region to the identity-service
// context.
type IdentityService struct {
	contexts.IdentityService
	Region string
}

// Generate is part of the templating.Context interface.
func (s *IdentityService) Generate() (map[string]interface{}, error) {
	ctxt, err := s.IdentityService.Generate()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(ctxt) == 0 {
		return ctxt, nil
	}
	ctxt["region"] = s.Region
	return ctxt, nil
}

// servicePlugins returns the default service_plugins at release.
func servicePlugins(release string) string {
	switch {
	case openstack.AtLeast(release, "newton"):
		return "router,firewall,vpnaas,metering," + lbaasV2Plugin
	case openstack.AtLeast(release, "liberty"):
		return "router,firewall," + lbaasV2Plugin + ",vpnaas,metering"
	}
	return "router,firewall,lbaas,vpnaas,metering"
}

var quotas = []string{
	"security-group",
	"security-group-rule",
	"network",
	"subnet",
	"port",
	"vip",
	"pool",
	"member",
	"health-monitors",
	"router",
	"floatingip",
}

// NeutronCC describes the Neutron server itself: plugin, routing
// features, quotas and network ranges.
type NeutronCC struct {
	Charm *Charm
}

// Interfaces is part of the templating.Context interface.
func (*NeutronCC) Interfaces() []string { return nil }

func (n *NeutronCC) pluginContext(ctxt map[string]interface{}, release string) error {
	c := n.Charm
	plugin := c.plugin()
	if plugin == "" {
		return nil
	}
	attrs, err := openstack.PluginAttributes(plugin, release)
	if err != nil {
		return errors.Trace(err)
	}
	localIP, err := c.Tools.UnitGet("private-address")
	if err != nil {
		return errors.Trace(err)
	}
	ctxt["neutron_plugin"] = plugin
	ctxt["core_plugin"] = attrs.Driver
	ctxt["plugin_config"] = attrs.Config
	ctxt["neutron_security_groups"] = c.Config.Bool("neutron-security-groups")
	ctxt["local_ip"] = localIP
	if plugin == "Calico" {
		ctxt["etcd_host"] = "127.0.0.1"
		ctxt["etcd_port"] = 4001
	}
	return nil
}

// Generate is part of the templating.Context interface.
func (n *NeutronCC) Generate() (map[string]interface{}, error) {
	c := n.Charm
	release, err := c.Release()
	if err != nil {
		return nil, errors.Trace(err)
	}
	ctxt := map[string]interface{}{
		"network_manager":          "neutron",
		"external_network":         c.Config.String("neutron-external-network"),
		"verbose":                  c.Config.Bool("verbose"),
		"debug":                    c.Config.Bool("debug"),
		"l2_population":            c.L2Population(),
		"dhcp_agents_per_network":  c.Config.Int("dhcp-agents-per-network"),
		"enable_ml2_port_security": c.Config.Bool("enable-ml2-port-security"),
		"enable_sriov":             c.Config.Bool("enable-sriov"),
		"enable_hyperv":            release == "kilo" || openstack.AtLeast(release, "mitaka"),
		"service_plugins":          servicePlugins(release),
	}
	if err := n.pluginContext(ctxt, release); err != nil {
		return nil, errors.Trace(err)
	}
	if ctxt["overlay_network_type"], err = c.OverlayNetworkType(); err != nil {
		return nil, errors.Trace(err)
	}
	dvr, err := c.DVR()
	if err != nil {
		return nil, errors.Trace(err)
	}
	l3ha, err := c.L3HA()
	if err != nil {
		return nil, errors.Trace(err)
	}
	ctxt["enable_dvr"] = dvr
	ctxt["l3_ha"] = l3ha
	if l3ha {
		ctxt["max_l3_agents_per_router"] = c.Config.Int("max-l3-agents-per-router")
		ctxt["min_l3_agents_per_router"] = c.Config.Int("min-l3-agents-per-router")
	}
	for _, quota := range quotas {
		ctxt["quota_"+strings.Replace(quota, "-", "_", -1)] = c.Config.Int("quota-" + quota)
	}
	port := apiPorts[NeutronServer]
	if ctxt["neutron_bind_port"], err = c.Cluster.DetermineAPIPort(port, true); err != nil {
		return nil, errors.Trace(err)
	}
	for key, option := range map[string]string{
		"network_providers":         "flat-network-providers",
		"vlan_ranges":               "vlan-ranges",
		"vni_ranges":                "vni-ranges",
		"supported_pci_vendor_devs": "supported-pci-vendor-devs",
	} {
		if value := strings.Fields(c.Config.String(option)); len(value) > 0 {
			ctxt[key] = strings.Join(value, ",")
		}
	}
	if openstack.AtLeast(release, "mitaka") {
		if mtu := c.Config.Int("global-physnet-mtu"); mtu > 0 {
			ctxt["global_physnet_mtu"] = mtu
		}
		if mtu := c.Config.Int("path-mtu"); mtu > 0 {
			ctxt["path_mtu"] = mtu
		}
	}
	err = c.eachUnit("neutron-api", func(_, _ string, settings map[string]string) bool {
		if url := settings["nova_url"]; url != "" {
			ctxt["nova_url"] = url
			return true
		}
		return false
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return ctxt, nil
}

// NeutronHAProxy maps the API port through haproxy to the port
// neutron-server binds.
type NeutronHAProxy struct {
	Charm *Charm
}

// Interfaces is part of the templating.Context interface.
func (*NeutronHAProxy) Interfaces() []string { return nil }

// Generate is part of the templating.Context interface.
func (h *NeutronHAProxy) Generate() (map[string]interface{}, error) {
	port := apiPorts[NeutronServer]
	apachePort, err := h.Charm.Cluster.DetermineApachePort(port, true)
	if err != nil {
		return nil, errors.Trace(err)
	}
	bindPort, err := h.Charm.Cluster.DetermineAPIPort(port, true)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return map[string]interface{}{
		"service_ports":     map[string][]int{NeutronServer: {port, apachePort}},
		"neutron_bind_port": bindPort,
	}, nil
}

// sdnDefaults maps subordinate settings to template keys and their
// values when the subordinate leaves them unset.
var sdnDefaults = []struct {
	setting, key, value string
}{
	{"core-plugin", "core_plugin", "neutron.plugins.ml2.plugin.Ml2Plugin"},
	{"neutron-plugin-config", "neutron_plugin_config", ml2Config},
	{"service-plugins", "service_plugins", "router,firewall,lbaas,vpnaas,metering"},
	{"restart-trigger", "restart_trigger", ""},
	{"quota-driver", "quota_driver", ""},
	{"api-extensions-path", "api_extensions_path", ""},
}

type subordinateFile struct {
	Sections map[string][][2]string `json:"sections"`
}

// NeutronAPISDN takes the plugin configuration from a subordinate on
// the neutron-plugin-api-subordinate relation.
type NeutronAPISDN struct {
	Charm *Charm
}

// Interfaces is part of the templating.Context interface.
func (*NeutronAPISDN) Interfaces() []string {
	return []string{subordinateRel}
}

// sections merges the config sections subordinates publish for
// neutron.conf.
func (s *NeutronAPISDN) sections(settings map[string]string, into map[string][][2]string) error {
	raw := settings["subordinate_configuration"]
	if raw == "" {
		return nil
	}
	var config map[string]map[string]subordinateFile
	if err := json.Unmarshal([]byte(raw), &config); err != nil {
		return errors.Annotate(err, "parsing subordinate_configuration")
	}
	file, ok := config["neutron-api"][NeutronConf]
	if !ok {
		return nil
	}
	for section, values := range file.Sections {
		into[section] = append(into[section], values...)
	}
	return nil
}

// Generate is part of the templating.Context interface.
func (s *NeutronAPISDN) Generate() (map[string]interface{}, error) {
	ctxt := map[string]interface{}{}
	sections := make(map[string][][2]string)
	var parseErr error
	err := s.Charm.eachUnit(subordinateRel, func(_, _ string, settings map[string]string) bool {
		if parseErr = s.sections(settings, sections); parseErr != nil {
			return true
		}
		plugin := settings["neutron-plugin"]
		if plugin == "" {
			return false
		}
		ctxt["neutron_plugin"] = plugin
		for _, d := range sdnDefaults {
			value := settings[d.setting]
			if value == "" {
				value = d.value
			}
			ctxt[d.key] = value
		}
		return true
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if parseErr != nil {
		return nil, errors.Trace(parseErr)
	}
	if len(sections) > 0 {
		ctxt["sections"] = sections
	}
	return ctxt, nil
}

// NeutronAPISDNConfigFile names the plugin config file neutron-server
// is started with.
type NeutronAPISDNConfigFile struct {
	Charm *Charm
}

// Interfaces is part of the templating.Context interface.
func (*NeutronAPISDNConfigFile) Interfaces() []string {
	return []string{subordinateRel}
}

// Generate is part of the templating.Context interface.
func (f *NeutronAPISDNConfigFile) Generate() (map[string]interface{}, error) {
	config := ml2Config
	err := f.Charm.eachUnit(subordinateRel, func(_, _ string, settings map[string]string) bool {
		if conf := settings["neutron-plugin-config"]; conf != "" {
			config = conf
			return true
		}
		return false
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return map[string]interface{}{"config": config}, nil
}

// NuageVSD points the Nuage plugin at the VSD offered on the
// vsd-rest-api relation.
type NuageVSD struct {
	Charm *Charm
}

// Interfaces is part of the templating.Context interface.
func (*NuageVSD) Interfaces() []string {
	return []string{"vsd-rest-api"}
}

// Generate is part of the templating.Context interface.
func (v *NuageVSD) Generate() (map[string]interface{}, error) {
	c := v.Charm
	ctxt := map[string]interface{}{}
	if c.plugin() != "vsp" {
		return ctxt, nil
	}
	for key, value := range c.Config.Map() {
		if strings.HasPrefix(key, "vsd") && value != nil {
			ctxt[strings.Replace(key, "-", "_", -1)] = value
		}
	}
	release, err := c.Release()
	if err != nil {
		return nil, errors.Trace(err)
	}
	err = c.eachUnit("vsd-rest-api", func(_, _ string, settings map[string]string) bool {
		if openstack.AtLeast(release, "kilo") {
			if cmsID := settings["nuage-cms-id"]; cmsID != "" {
				ctxt["vsd_cms_id"] = cmsID
			}
		}
		if addr := settings["vsd-ip-address"]; addr != "" {
			ctxt["vsd_server"] = addr
		}
		return false
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return ctxt, nil
}

// Etcd describes the etcd cluster the local etcd proxies to.
type Etcd struct {
	Charm *Charm
}

// Interfaces is part of the templating.Context interface.
func (*Etcd) Interfaces() []string {
	return []string{"etcd-proxy"}
}

// Generate is part of the templating.Context interface.
func (e *Etcd) Generate() (map[string]interface{}, error) {
	ctxt := map[string]interface{}{}
	err := e.Charm.eachUnit("etcd-proxy", func(_, _ string, settings map[string]string) bool {
		if cluster := settings["cluster"]; cluster != "" {
			ctxt["cluster"] = cluster
		}
		return false
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return ctxt, nil
}
