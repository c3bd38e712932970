// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package neutronapi

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/juju/charm-neutron-api/hacluster"
	"github.com/juju/charm-neutron-api/openstack"
	"github.com/juju/charm-neutron-api/templating"
)

const (
	migrationNonceKey = "migrate-database-nonce"
	haproxyResource   = "res_neutron_haproxy"
)

// zeroMQTopics are the topics neutron-server consumes over ZeroMQ.
var zeroMQTopics = []string{
	"q-l3-plugin",
	"q-firewall-plugin",
	"n-lbaas-plugin",
	"ipsec_driver",
	"q-metering-plugin",
	"q-plugin",
	"neutron",
}

// AMQPJoined requests a rabbitmq user and vhost.
func (c *Charm) AMQPJoined(relId string) error {
	return errors.Trace(c.Tools.RelationSet(relId, map[string]string{
		"username": c.Config.String("rabbit-user"),
		"vhost":    c.Config.String("rabbit-vhost"),
	}))
}

// AMQPChanged renders neutron.conf once rabbitmq has granted access.
func (c *Charm) AMQPChanged() error {
	return c.restartOnChange(false, func() error {
		complete, err := c.complete(ctxAMQP)
		if err != nil {
			return errors.Trace(err)
		}
		if !complete {
			logger.Infof("amqp relation incomplete. Peer not ready?")
			return nil
		}
		if err := c.write(NeutronConf); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(c.forEachRelation(subordinateRel, c.SubordinateJoined))
	})
}

// dbHostname returns the address the database should grant access to.
func (c *Charm) dbHostname() (string, error) {
	if c.Config.Bool("prefer-ipv6") {
		addrs, err := hacluster.GlobalIPv6Addrs(c.Cluster.Addrs)
		if err != nil {
			return "", errors.Trace(err)
		}
		vips := set.NewStrings(strings.Fields(c.Config.String("vip"))...)
		hosts := []string{}
		for _, addr := range addrs {
			if !vips.Contains(addr) {
				hosts = append(hosts, addr)
			}
		}
		data, err := json.Marshal(hosts)
		if err != nil {
			return "", errors.Trace(err)
		}
		return string(data), nil
	}
	addr, err := c.Tools.NetworkGetPrimaryAddress("shared-db")
	if err == nil && addr != "" {
		return addr, nil
	}
	if err != nil && !errors.IsNotSupported(err) {
		logger.Debugf("network-get shared-db: %v", err)
	}
	addr, err = c.Tools.UnitGet("private-address")
	return addr, errors.Trace(err)
}

// DBJoined requests a MySQL database.
func (c *Charm) DBJoined(relId string) error {
	made, err := c.Tools.IsRelationMade("pgsql-db")
	if err != nil {
		return errors.Trace(err)
	}
	if made {
		msg := "Attempting to associate a mysql database when there is already associated a postgresql one"
		logger.Errorf("%s", msg)
		return errors.NewNotValid(nil, msg)
	}
	hostname, err := c.dbHostname()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(c.Tools.RelationSet(relId, map[string]string{
		"database": c.Config.String("database"),
		"username": c.Config.String("database-user"),
		"hostname": hostname,
	}))
}

// PgsqlDBJoined requests a PostgreSQL database.
func (c *Charm) PgsqlDBJoined(relId string) error {
	made, err := c.Tools.IsRelationMade("shared-db")
	if err != nil {
		return errors.Trace(err)
	}
	if made {
		msg := "Attempting to associate a postgresql database when there is already associated a mysql one"
		logger.Errorf("%s", msg)
		return errors.NewNotValid(nil, msg)
	}
	return errors.Trace(c.Tools.RelationSet(relId, map[string]string{
		"database": c.Config.String("database"),
	}))
}

func (c *Charm) databaseChanged() error {
	if err := c.writeAll(); err != nil {
		return errors.Trace(err)
	}
	if err := c.ConditionalMigration(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(c.forEachRelation(subordinateRel, c.SubordinateJoined))
}

// DBChanged renders config and migrates the database once MySQL has
// granted access.
func (c *Charm) DBChanged() error {
	return c.restartOnChange(false, func() error {
		complete, err := c.complete(ctxSharedDB)
		if err != nil {
			return errors.Trace(err)
		}
		if !complete {
			logger.Infof("shared-db relation incomplete. Peer not ready?")
			return nil
		}
		return errors.Trace(c.databaseChanged())
	})
}

// PgsqlDBChanged renders config and migrates the database.
func (c *Charm) PgsqlDBChanged() error {
	return c.restartOnChange(false, c.databaseChanged)
}

// RelationBroken renders config without the departed relation.
func (c *Charm) RelationBroken() error {
	return errors.Trace(c.writeAll())
}

// IdentityJoined registers the API endpoints with keystone.
func (c *Charm) IdentityJoined(relId string) error {
	urls := make(map[string]string)
	for _, endpointType := range hacluster.EndpointTypes {
		url, err := c.Cluster.CanonicalURL(endpointType)
		if err != nil {
			return errors.Trace(err)
		}
		urls[endpointType] = url
	}
	endpoints := c.DetermineEndpoints(urls[hacluster.Public], urls[hacluster.Internal], urls[hacluster.Admin])
	return errors.Trace(c.Tools.RelationSet(relId, endpoints))
}

// IdentityChanged renders the keystone credentials and passes them on.
func (c *Charm) IdentityChanged() error {
	return c.restartOnChange(false, func() error {
		complete, err := c.complete(ctxIdentity)
		if err != nil {
			return errors.Trace(err)
		}
		if !complete {
			logger.Infof("identity-service relation incomplete. Peer not ready?")
			return nil
		}
		if err := c.write(NeutronConf); err != nil {
			return errors.Trace(err)
		}
		err = c.refreshRelations([]relationRefresh{
			{"neutron-api", c.NeutronAPIJoined},
			{"neutron-plugin-api", c.NeutronPluginAPIJoined},
		})
		if err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(c.configureHTTPS())
	})
}

// NeutronAPIJoined tells nova-cloud-controller where the API is.
func (c *Charm) NeutronAPIJoined(relId string) error {
	base, err := c.Cluster.CanonicalURL(hacluster.Internal)
	if err != nil {
		return errors.Trace(err)
	}
	ready, err := c.IsAPIReady()
	if err != nil {
		return errors.Trace(err)
	}
	settings := map[string]string{
		"enable-sriov":            pyBool(c.Config.Bool("enable-sriov")),
		"neutron-url":             fmt.Sprintf("%s:%d", base, apiPorts[NeutronServer]),
		"neutron-plugin":          c.plugin(),
		"neutron-security-groups": yesNo(c.Config.Bool("neutron-security-groups")),
		"neutron-api-ready":       yesNo(ready),
	}
	if err := c.Tools.RelationSet(relId, settings); err != nil {
		return errors.Trace(err)
	}
	// nova-cloud-controller may have registered the network endpoint
	// itself.
	return errors.Trace(c.forEachRelation("identity-service", c.IdentityJoined))
}

// NeutronAPIChanged renders the nova URL nova-cloud-controller sent.
func (c *Charm) NeutronAPIChanged() error {
	return c.restartOnChange(false, func() error {
		return errors.Trace(c.write(NeutronConf))
	})
}

// identitySettings maps neutron-plugin-api keys to identity-service
// context keys.
var identitySettings = map[string]string{
	"service_protocol": "service_protocol",
	"auth_protocol":    "auth_protocol",
	"service_tenant":   "admin_tenant_name",
	"service_port":     "service_port",
	"service_password": "admin_password",
	"auth_port":        "auth_port",
	"auth_host":        "auth_host",
	"service_username": "admin_user",
	"service_host":     "service_host",
}

// NeutronPluginAPIJoined tells neutron-openvswitch how the cloud's
// networking is configured.
func (c *Charm) NeutronPluginAPIJoined(relId string) error {
	dvr, err := c.DVR()
	if err != nil {
		return errors.Trace(err)
	}
	l3ha, err := c.L3HA()
	if err != nil {
		return errors.Trace(err)
	}
	overlay, err := c.OverlayNetworkType()
	if err != nil {
		return errors.Trace(err)
	}
	addr, err := c.Tools.UnitGet("private-address")
	if err != nil {
		return errors.Trace(err)
	}
	settings := map[string]string{
		"neutron-security-groups": pyBool(c.Config.Bool("neutron-security-groups")),
		"enable-dvr":              pyBool(dvr),
		"enable-l3ha":             pyBool(l3ha),
		"addr":                    addr,
		"l2-population":           pyBool(c.L2Population()),
		"overlay-network-type":    overlay,
		"region":                  c.Config.String("region"),
	}
	if c.Config.IsSet("network-device-mtu") {
		settings["network-device-mtu"] = c.Config.String("network-device-mtu")
	}
	ctxt, err := c.templateContexts()[ctxIdentity].Generate()
	if err != nil {
		return errors.Trace(err)
	}
	for key, ctxtKey := range identitySettings {
		value, _ := ctxt[ctxtKey].(string)
		settings[key] = value
	}
	ready, err := c.IsAPIReady()
	if err != nil {
		return errors.Trace(err)
	}
	settings["neutron-api-ready"] = yesNo(ready)
	return errors.Trace(c.Tools.RelationSet(relId, settings))
}

// SubordinateJoined runs database migrations subordinates ask for and
// renders their config.
func (c *Charm) SubordinateJoined(relId string) error {
	return c.restartOnChange(true, func() error {
		settings := map[string]string{}
		if err := c.answerMigrationRequests(relId, settings); err != nil {
			return errors.Trace(err)
		}
		ready, err := c.IsAPIReady()
		if err != nil {
			return errors.Trace(err)
		}
		settings["neutron-api-ready"] = yesNo(ready)
		if relId != "" {
			if err := c.Tools.RelationSet(relId, settings); err != nil {
				return errors.Trace(err)
			}
		}
		return errors.Trace(c.writeAll())
	})
}

// answerMigrationRequests migrates the database for every new nonce a
// subordinate sets, on the leader only. The nonce is echoed back on
// every unit so subordinates learn the migration is done.
func (c *Charm) answerMigrationRequests(relId string, settings map[string]string) error {
	if relId == "" {
		return nil
	}
	units, err := c.Tools.RelatedUnits(relId)
	if err != nil {
		return errors.Trace(err)
	}
	storeKey := migrationNonceKey + "-" + relId
	for _, unit := range units {
		nonce, err := c.Tools.RelationGetKey(relId, unit, migrationNonceKey)
		if err != nil {
			return errors.Trace(err)
		}
		if nonce == "" {
			continue
		}
		leader, err := c.Tools.IsLeader()
		if err != nil {
			return errors.Trace(err)
		}
		if leader {
			var last string
			if _, err := c.Store.Get(storeKey, &last); err != nil {
				return errors.Trace(err)
			}
			if last != nonce {
				if err := c.MigrateDatabase(); err != nil {
					return errors.Trace(err)
				}
				if err := c.Store.Set(storeKey, nonce); err != nil {
					return errors.Trace(err)
				}
				if err := c.Store.Flush(); err != nil {
					return errors.Trace(err)
				}
			}
		}
		settings[migrationNonceKey] = nonce
	}
	return nil
}

// SubordinateDeparted renders config without the departed subordinate.
func (c *Charm) SubordinateDeparted() error {
	return c.restartOnChange(true, c.writeAll)
}

// ClusterJoined shares the unit's endpoint addresses with its peers.
func (c *Charm) ClusterJoined(relId string) error {
	settings := map[string]string{}
	for _, endpointType := range hacluster.EndpointTypes {
		network := c.Config.String("os-" + endpointType + "-network")
		if network == "" {
			continue
		}
		addr, err := hacluster.AddressInNetwork(c.Cluster.Addrs, network)
		if errors.IsNotFound(err) {
			continue
		} else if err != nil {
			return errors.Trace(err)
		}
		settings[endpointType+"-address"] = addr
	}
	if c.Config.Bool("prefer-ipv6") {
		addrs, err := hacluster.GlobalIPv6Addrs(c.Cluster.Addrs)
		if err != nil {
			return errors.Trace(err)
		}
		vips := set.NewStrings(strings.Fields(c.Config.String("vip"))...)
		for _, addr := range addrs {
			if !vips.Contains(addr) {
				settings["private-address"] = addr
				break
			}
		}
	}
	if len(settings) == 0 {
		return nil
	}
	return errors.Trace(c.Tools.RelationSet(relId, settings))
}

// ClusterChanged renders haproxy with the current peers.
func (c *Charm) ClusterChanged() error {
	return c.restartOnChange(true, c.writeAll)
}

func jsonSetting(settings map[string]string, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Trace(err)
	}
	settings["json_"+key] = string(data)
	return nil
}

// HAJoined asks hacluster for the pacemaker resources fronting the API:
// haproxy on every unit, with either VIPs or DNS records in front.
func (c *Charm) HAJoined(relId string) error {
	cfg, err := c.Cluster.HAClusterConfig()
	if err != nil {
		return errors.Trace(err)
	}
	resources := map[string]string{haproxyResource: "lsb:haproxy"}
	params := map[string]string{haproxyResource: `op monitor interval="5s"`}
	groups := map[string]string{}
	if cfg.DNSHA {
		dnsResources, dnsParams, group, err := c.Cluster.DNSHAResources(serviceName, cfg)
		if err != nil {
			return errors.Trace(err)
		}
		var names []string
		for name, agent := range dnsResources {
			resources[name] = agent
			names = append(names, name)
		}
		for name, param := range dnsParams {
			params[name] = param
		}
		sort.Strings(names)
		groups[group] = strings.Join(names, " ")
	} else {
		var vipGroup []string
		for _, res := range c.Cluster.VIPResources(serviceName, cfg) {
			resources[res.Name] = res.Agent
			params[res.Name] = res.Params
			vipGroup = append(vipGroup, res.Name)
		}
		if len(vipGroup) > 0 {
			sort.Strings(vipGroup)
			groups[ClusterResource] = strings.Join(vipGroup, " ")
		}
	}

	settings := map[string]string{
		"corosync_bindiface": cfg.BindIface,
		"corosync_mcastport": cfg.McastPort,
	}
	values := map[string]interface{}{
		"resources":       resources,
		"resource_params": params,
		"init_services":   map[string]string{haproxyResource: "haproxy"},
		"clones":          map[string]string{"cl_nova_haproxy": haproxyResource},
	}
	if len(groups) > 0 {
		values["groups"] = groups
	}
	for key, value := range values {
		if err := jsonSetting(settings, key, value); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(c.Tools.RelationSet(relId, settings))
}

// HAChanged republishes endpoints once hacluster has brought up the
// VIPs.
func (c *Charm) HAChanged() error {
	clustered, err := c.Tools.RelationGetKey(c.Env.RelationId, c.Env.RemoteUnit, "clustered")
	if err != nil {
		return errors.Trace(err)
	}
	if clustered == "" || clustered == "None" {
		logger.Infof("ha_changed: hacluster subordinate not fully clustered.")
		return nil
	}
	logger.Infof("Cluster configured, notifying other services and updating keystone endpoint configuration")
	return errors.Trace(c.refreshRelations([]relationRefresh{
		{"identity-service", c.IdentityJoined},
		{"neutron-api", c.NeutronAPIJoined},
	}))
}

// ZeroMQJoined asks for the topics neutron-server consumes.
func (c *Charm) ZeroMQJoined(relId string) error {
	return errors.Trace(c.Tools.RelationSet(relId, map[string]string{
		"topics": strings.Join(zeroMQTopics, " "),
		"users":  "neutron",
	}))
}

// ZeroMQChanged renders the ZeroMQ matchmaker settings.
func (c *Charm) ZeroMQChanged() error {
	return c.restartOnChange(false, func() error {
		return errors.Trace(c.write(NeutronConf))
	})
}

// VSDJoined registers the cloud with the Nuage VSD under the
// configured CMS name.
func (c *Charm) VSDJoined(relId string) error {
	release, err := c.Release()
	if err != nil {
		return errors.Trace(err)
	}
	if !openstack.AtLeast(release, "kilo") {
		return nil
	}
	name := c.Config.String("vsd-cms-name")
	if name == "" {
		return c.block("Neutron Api hook failed as vsd-cms-name is not specified")
	}
	return errors.Trace(c.Tools.RelationSet(relId, map[string]string{"vsd-cms-name": name}))
}

// VSDChanged renders the Nuage plugin config once the VSD address is
// known.
func (c *Charm) VSDChanged() error {
	if c.plugin() != "vsp" {
		return nil
	}
	addr, err := c.Tools.RelationGetKey(c.Env.RelationId, c.Env.RemoteUnit, "vsd-ip-address")
	if err != nil {
		return errors.Trace(err)
	}
	if addr == "" {
		return nil
	}
	logger.Infof("vsd-rest-api-relation-changed: ip address:%s:8443", addr)
	return c.restartOnChange(true, func() error {
		conf := NeutronConf
		if c.legacyPlugin() {
			if conf, err = c.pluginConfig(); err != nil {
				return errors.Trace(err)
			}
		}
		return errors.Trace(c.write(conf))
	})
}

// EtcdProxyChanged renders the etcd proxy config and restarts etcd
// once the cluster is known.
func (c *Charm) EtcdProxyChanged() error {
	configs, err := c.Configs()
	if err != nil {
		return errors.Trace(err)
	}
	etcd := []templating.Context{&Etcd{Charm: c}}
	for _, p := range []string{EtcdInitConf, EtcdDefault} {
		configs.Register(c.path(p), etcd)
		if err := configs.Write(c.path(p)); err != nil {
			return errors.Trace(err)
		}
	}
	complete, err := c.complete("etcd-proxy")
	if err != nil {
		return errors.Trace(err)
	}
	if !complete {
		return nil
	}
	return errors.Trace(c.ForceEtcdRestart())
}
