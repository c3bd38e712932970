// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package hacluster answers clustering questions for a unit: whether
// it is clustered behind a VIP, whether it leads, which ports its API
// listens on behind haproxy and apache, and which address each
// endpoint is published on.
package hacluster

import (
	"os"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/names/v5"

	"github.com/juju/charm-neutron-api/hook"
	"github.com/juju/charm-neutron-api/runner"
)

var logger = loggo.GetLogger("neutronapi.hacluster")

// HookTools is the subset of hook tools clustering decisions use.
type HookTools interface {
	RelationIds(name string) ([]string, error)
	RelatedUnits(relId string) ([]string, error)
	RelationGet(relId, unit string) (map[string]string, error)
	UnitGet(key string) (string, error)
	NetworkGetPrimaryAddress(binding string) (string, error)
	IsLeader() (bool, error)
}

// Cluster answers clustering questions for the local unit.
type Cluster struct {
	Tools    HookTools
	Config   *hook.Config
	Runner   runner.CommandRunner
	Addrs    AddrLister
	UnitName string

	// Hostname returns the machine hostname, as known to pacemaker.
	Hostname func() (string, error)
}

// NewCluster returns a Cluster using the machine's own network state.
func NewCluster(tools HookTools, config *hook.Config, r runner.CommandRunner, unitName string) *Cluster {
	return &Cluster{
		Tools:    tools,
		Config:   config,
		Runner:   r,
		Addrs:    NetlinkAddrs(),
		UnitName: unitName,
		Hostname: os.Hostname,
	}
}

// IsClustered reports whether the hacluster subordinate has declared
// the service clustered.
func (c *Cluster) IsClustered() (bool, error) {
	ids, err := c.Tools.RelationIds("ha")
	if err != nil {
		return false, errors.Trace(err)
	}
	for _, id := range ids {
		units, err := c.Tools.RelatedUnits(id)
		if err != nil {
			return false, errors.Trace(err)
		}
		for _, unit := range units {
			settings, err := c.Tools.RelationGet(id, unit)
			if err != nil {
				return false, errors.Trace(err)
			}
			if clustered := settings["clustered"]; clustered != "" && clustered != "None" {
				return true, nil
			}
		}
	}
	return false, nil
}

// IsCRMLeader reports whether pacemaker runs resource on this machine.
func (c *Cluster) IsCRMLeader(resource string) (bool, error) {
	out, err := runner.RunCommand(c.Runner, "crm", "resource", "show", resource)
	if err != nil {
		logger.Debugf("crm resource show %s: %v", resource, err)
		return false, nil
	}
	hostname, err := c.Hostname()
	if err != nil {
		return false, errors.Trace(err)
	}
	return strings.Contains(string(out), hostname), nil
}

// PeerUnits returns the other units of the application.
func (c *Cluster) PeerUnits() ([]string, error) {
	ids, err := c.Tools.RelationIds("cluster")
	if err != nil {
		return nil, errors.Trace(err)
	}
	var peers []string
	for _, id := range ids {
		units, err := c.Tools.RelatedUnits(id)
		if err != nil {
			return nil, errors.Trace(err)
		}
		peers = append(peers, units...)
	}
	return peers, nil
}

// OldestPeer reports whether the local unit has a lower unit number
// than every one of peers.
func (c *Cluster) OldestPeer(peers []string) bool {
	local := unitNumber(c.UnitName)
	for _, peer := range peers {
		if unitNumber(peer) < local {
			return false
		}
	}
	return true
}

func unitNumber(unit string) int {
	if !names.IsValidUnit(unit) {
		return -1
	}
	n, _ := names.UnitNumber(unit)
	return n
}

// IsElectedLeader reports whether the local unit should perform
// leader-only work. Juju leadership is authoritative; without it the
// pacemaker owner of resource leads when clustered, otherwise the
// oldest peer does.
func (c *Cluster) IsElectedLeader(resource string) (bool, error) {
	leader, err := c.Tools.IsLeader()
	if err == nil {
		return leader, nil
	}
	if !errors.IsNotSupported(err) && runner.ExitCode(err) != 127 {
		return false, errors.Trace(err)
	}
	clustered, err := c.IsClustered()
	if err != nil {
		return false, errors.Trace(err)
	}
	if clustered {
		return c.IsCRMLeader(resource)
	}
	peers, err := c.PeerUnits()
	if err != nil {
		return false, errors.Trace(err)
	}
	return len(peers) == 0 || c.OldestPeer(peers), nil
}

// HTTPS reports whether the API is served over TLS, either from
// configured certificates or certificates published by keystone.
func (c *Cluster) HTTPS() (bool, error) {
	if c.Config.String("use-https") == "yes" {
		return true, nil
	}
	if c.Config.IsSet("ssl_cert") && c.Config.IsSet("ssl_key") {
		return true, nil
	}
	ids, err := c.Tools.RelationIds("identity-service")
	if err != nil {
		return false, errors.Trace(err)
	}
	for _, id := range ids {
		units, err := c.Tools.RelatedUnits(id)
		if err != nil {
			return false, errors.Trace(err)
		}
		for _, unit := range units {
			settings, err := c.Tools.RelationGet(id, unit)
			if err != nil {
				return false, errors.Trace(err)
			}
			if settings["https_keystone"] != "" && settings["ca_cert"] != "" {
				return true, nil
			}
		}
	}
	return false, nil
}

// fronted reports whether haproxy sits in front of the API.
func (c *Cluster) fronted(singlenodeMode bool) (bool, error) {
	if singlenodeMode {
		return true, nil
	}
	peers, err := c.PeerUnits()
	if err != nil {
		return false, errors.Trace(err)
	}
	if len(peers) > 0 {
		return true, nil
	}
	return c.IsClustered()
}

// DetermineAPIPort returns the port the API service itself listens on,
// 10 below publicPort for each of haproxy and apache in front of it.
func (c *Cluster) DetermineAPIPort(publicPort int, singlenodeMode bool) (int, error) {
	layers := 0
	fronted, err := c.fronted(singlenodeMode)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if fronted {
		layers++
	}
	https, err := c.HTTPS()
	if err != nil {
		return 0, errors.Trace(err)
	}
	if https {
		layers++
	}
	return publicPort - layers*10, nil
}

// DetermineApachePort returns the port apache listens on when it
// terminates TLS for publicPort.
func (c *Cluster) DetermineApachePort(publicPort int, singlenodeMode bool) (int, error) {
	fronted, err := c.fronted(singlenodeMode)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if fronted {
		return publicPort - 10, nil
	}
	return publicPort, nil
}

// Config is the hacluster configuration of the unit.
type Config struct {
	VIPs      []string
	VIPIface  string
	VIPCidr   string
	BindIface string
	McastPort string
	DNSHA     bool
	Hostnames map[string]string
}

// HAClusterConfig returns the validated hacluster configuration. With
// dns-ha a hostname is required and a VIP is refused; otherwise a VIP
// is required.
func (c *Cluster) HAClusterConfig() (*Config, error) {
	cfg := &Config{
		VIPs:      strings.Fields(c.Config.String("vip")),
		VIPIface:  c.Config.String("vip_iface"),
		VIPCidr:   c.Config.String("vip_cidr"),
		BindIface: c.Config.String("ha-bindiface"),
		McastPort: c.Config.String("ha-mcastport"),
		DNSHA:     c.Config.Bool("dns-ha"),
		Hostnames: make(map[string]string),
	}
	for _, endpoint := range EndpointTypes {
		if hostname := c.Config.String("os-" + endpoint + "-hostname"); hostname != "" {
			cfg.Hostnames[endpoint] = hostname
		}
	}
	if cfg.DNSHA {
		if len(cfg.VIPs) > 0 {
			return nil, errors.NotValidf("hacluster config: vip and dns-ha both set")
		}
		if len(cfg.Hostnames) == 0 {
			return nil, errors.NotValidf("hacluster config: dns-ha without os-*-hostname")
		}
		return cfg, nil
	}
	if len(cfg.VIPs) == 0 {
		return nil, errors.NotValidf("hacluster config: missing vip")
	}
	return cfg, nil
}

// VIPResource is the pacemaker definition of one VIP.
type VIPResource struct {
	Name   string
	Agent  string
	Params string
}

// VIPResources returns one pacemaker resource per configured VIP,
// named res_<service>_<iface>_vip. The interface and netmask come from
// the local network containing the VIP, falling back to vip_iface and
// vip_cidr.
func (c *Cluster) VIPResources(service string, cfg *Config) []VIPResource {
	var resources []VIPResource
	for _, vip := range cfg.VIPs {
		iface, err := IfaceForAddress(c.Addrs, vip)
		if err != nil {
			iface = cfg.VIPIface
		}
		netmask, err := NetmaskForAddress(c.Addrs, vip)
		if err != nil {
			netmask = cfg.VIPCidr
		}
		res := VIPResource{Name: "res_" + service + "_" + iface + "_vip"}
		if IsIPv6(vip) {
			res.Agent = "ocf:heartbeat:IPv6addr"
			res.Params = `params ipv6addr="` + vip + `" cidr_netmask="` + netmask + `" nic="` + iface + `"`
		} else {
			res.Agent = "ocf:heartbeat:IPaddr2"
			res.Params = `params ip="` + vip + `" cidr_netmask="` + netmask + `" nic="` + iface + `"`
		}
		resources = append(resources, res)
	}
	return resources
}

// DNSHAResources returns ocf:maas:dns resources for every configured
// endpoint hostname, named res_<service>_<endpoint>_hostname, and the
// group holding them.
func (c *Cluster) DNSHAResources(service string, cfg *Config) (resources, params map[string]string, group string, err error) {
	resources = make(map[string]string)
	params = make(map[string]string)
	var members []string
	for _, endpoint := range EndpointTypes {
		hostname, ok := cfg.Hostnames[endpoint]
		if !ok {
			continue
		}
		addr, err := c.resolveUnitAddress(endpoint)
		if err != nil {
			return nil, nil, "", errors.Trace(err)
		}
		name := "res_" + service + "_" + endpoint + "_hostname"
		resources[name] = "ocf:maas:dns"
		params[name] = `params fqdn="` + hostname + `" ip_address="` + addr + `"`
		members = append(members, name)
	}
	if len(members) == 0 {
		return nil, nil, "", errors.NotValidf("DNS HA without hostnames")
	}
	return resources, params, "grp_" + service + "_hostnames", nil
}
