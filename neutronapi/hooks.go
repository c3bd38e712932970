// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package neutronapi

import (
	"os"
	"path"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"

	"github.com/juju/charm-neutron-api/hook"
	"github.com/juju/charm-neutron-api/neutron"
	"github.com/juju/charm-neutron-api/openstack"
	"github.com/juju/charm-neutron-api/runner"
)

const midonetPluginDir = "/etc/neutron/plugins/midonet"

// Install configures package archives and installs Neutron.
func (c *Charm) Install() error {
	if err := c.Tools.StatusSet(hook.StatusMaintenance, "Executing pre-install"); err != nil {
		return errors.Trace(err)
	}
	if err := c.ExecdPreinstall(); err != nil {
		return errors.Trace(err)
	}
	origin := c.Config.String("openstack-origin")
	if err := c.Installer.ConfigureInstallationSource(origin); err != nil {
		return errors.Trace(err)
	}
	plugin := c.plugin()
	if err := c.AdditionalInstallLocations(plugin, origin); err != nil {
		return errors.Trace(err)
	}
	if err := c.Sources.Add(c.Config.String("extra-source"), c.Config.String("extra-key")); err != nil {
		return errors.Trace(err)
	}

	if err := c.Tools.StatusSet(hook.StatusMaintenance, "Installing apt packages"); err != nil {
		return errors.Trace(err)
	}
	if err := c.Apt.Update(); err != nil {
		return errors.Trace(err)
	}
	release, err := c.Installer.CodenameFromSource(origin)
	if err != nil {
		return errors.Trace(err)
	}
	pkgs, err := c.DeterminePackages(release)
	if err != nil {
		return errors.Trace(err)
	}
	if err := c.Apt.Install(pkgs); err != nil {
		return errors.Trace(err)
	}
	ports, err := c.DeterminePorts()
	if err != nil {
		return errors.Trace(err)
	}
	for _, port := range ports {
		if err := c.Tools.OpenPort(port, "tcp"); err != nil {
			return errors.Trace(err)
		}
	}

	if plugin == "midonet" {
		if err := os.MkdirAll(c.path(midonetPluginDir), 0755); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(c.installEtcdPackage())
}

// installEtcdPackage installs the etcd package etcd-package-url points
// at, when it is a download URL.
func (c *Charm) installEtcdPackage() error {
	url := c.Config.String("etcd-package-url")
	if !strings.HasPrefix(url, "http") {
		return nil
	}
	if _, err := runner.RunCommand(c.Runner, "wget", url); err != nil {
		return errors.Annotate(err, "downloading etcd package")
	}
	_, err := runner.RunCommand(c.Runner, "dpkg", "-i", path.Base(url))
	return errors.Annotate(err, "installing etcd package")
}

// neutronClient returns a Neutron API client authenticated with the
// identity-service credentials, or nil while there are none.
func (c *Charm) neutronClient() NeutronAPI {
	ctxt, err := c.templateContexts()[ctxIdentity].Generate()
	if err != nil || len(ctxt) == 0 {
		logger.Infof("Unable to check resources at this time")
		return nil
	}
	str := func(key string) string {
		s, _ := ctxt[key].(string)
		return s
	}
	creds := neutron.Credentials{
		AuthProtocol: str("auth_protocol"),
		AuthHost:     str("auth_host"),
		AuthPort:     str("auth_port"),
		APIVersion:   str("api_version"),
		Username:     str("admin_user"),
		Password:     str("admin_password"),
		TenantName:   str("admin_tenant_name"),
		DomainName:   str("admin_domain_name"),
		Region:       c.Config.String("region"),
	}
	client, err := c.ConnectNeutron(creds)
	if err != nil {
		logger.Infof("Unable to check resources at this time: %v", err)
		return nil
	}
	return client
}

// block sets the blocked status and returns msg as an error.
func (c *Charm) block(msg string) error {
	logger.Errorf("%s", msg)
	if err := c.Tools.StatusSet(hook.StatusBlocked, msg); err != nil {
		return errors.Trace(err)
	}
	return errors.New(msg)
}

// checkRouterFeatures refuses to turn off DVR or L3 HA while routers
// using them exist.
func (c *Charm) checkRouterFeatures() error {
	client := c.neutronClient()
	if client == nil || !client.Ready() {
		return nil
	}
	present, err := client.RouterFeaturePresent(neutron.FeatureDistributed)
	if err != nil {
		return errors.Trace(err)
	}
	dvr, err := c.DVR()
	if err != nil {
		return errors.Trace(err)
	}
	if present && !dvr {
		return c.block("Cannot disable dvr while dvr enabled routers exist. Please remove any distributed routers")
	}
	present, err = client.RouterFeaturePresent(neutron.FeatureHA)
	if err != nil {
		return errors.Trace(err)
	}
	l3ha, err := c.L3HA()
	if err != nil {
		return errors.Trace(err)
	}
	if present && !l3ha {
		return c.block("Cannot disable Router HA while ha enabled routers exist. Please remove any ha routers")
	}
	return nil
}

// ConfigChanged applies the charm config: upgrades OpenStack unless
// upgrades are action managed, installs missing packages, renders
// every config file, refreshes every relation and updates the nrpe
// checks.
func (c *Charm) ConfigChanged() error {
	if err := c.checkRouterFeatures(); err != nil {
		return errors.Trace(err)
	}
	release, err := c.Release()
	if err != nil {
		return errors.Trace(err)
	}
	if openstack.AtLeast(release, "juno") {
		override := c.path(NeutronOverride)
		if err := os.MkdirAll(path.Dir(override), 0755); err != nil {
			return errors.Trace(err)
		}
		if err := utils.AtomicWriteFile(override, []byte("manual\n"), 0644); err != nil {
			return errors.Trace(err)
		}
	}
	if c.Config.Bool("prefer-ipv6") {
		if err := c.Tools.StatusSet(hook.StatusMaintenance, "configuring ipv6"); err != nil {
			return errors.Trace(err)
		}
		if err := c.SetupIPv6(); err != nil {
			return errors.Trace(err)
		}
		if err := c.forEachRelation("shared-db", c.DBJoined); err != nil {
			return errors.Trace(err)
		}
	}
	if !c.Config.Bool("action-managed-upgrade") {
		available, err := c.Installer.UpgradeAvailable(VersionPackage)
		if err != nil {
			return errors.Trace(err)
		}
		if available {
			if err := c.Tools.StatusSet(hook.StatusMaintenance, "Running openstack upgrade"); err != nil {
				return errors.Trace(err)
			}
			if err := c.DoOpenStackUpgrade(); err != nil {
				return errors.Trace(err)
			}
		}
	}
	err = c.restartOnChange(true, func() error {
		origin := c.Config.String("openstack-origin")
		if err := c.AdditionalInstallLocations(c.plugin(), origin); err != nil {
			return errors.Trace(err)
		}
		if err := c.Tools.StatusSet(hook.StatusMaintenance, "Installing apt packages"); err != nil {
			return errors.Trace(err)
		}
		if err := c.installMissingPackages(); err != nil {
			return errors.Trace(err)
		}
		if err := c.configureHTTPS(); err != nil {
			return errors.Trace(err)
		}
		if err := c.writeAll(); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(c.refreshRelations([]relationRefresh{
			{"neutron-api", c.NeutronAPIJoined},
			{"neutron-plugin-api", c.NeutronPluginAPIJoined},
			{"amqp", c.AMQPJoined},
			{"identity-service", c.IdentityJoined},
			{"zeromq-configuration", c.ZeroMQJoined},
			{"cluster", c.ClusterJoined},
		}))
	})
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(c.UpdateNRPEConfig())
}

// installMissingPackages installs the packages of the installed
// release that are not installed yet.
func (c *Charm) installMissingPackages() error {
	release, err := c.Release()
	if err != nil {
		return errors.Trace(err)
	}
	pkgs, err := c.DeterminePackages(release)
	if err != nil {
		return errors.Trace(err)
	}
	missing, err := c.Apt.FilterInstalled(pkgs)
	if err != nil {
		return errors.Trace(err)
	}
	if len(missing) == 0 {
		return nil
	}
	return errors.Trace(c.Apt.Install(missing))
}

// configureHTTPS enables the apache HTTPS frontend when the https
// context is complete, and disables it otherwise.
func (c *Charm) configureHTTPS() error {
	if err := c.writeAll(); err != nil {
		return errors.Trace(err)
	}
	https, err := c.complete("https")
	if err != nil {
		return errors.Trace(err)
	}
	command := "a2dissite"
	if https {
		command = "a2ensite"
	}
	if _, err := runner.RunCommand(c.Runner, command, "openstack_https_frontend"); err != nil {
		return errors.Trace(err)
	}
	paused, err := c.paused()
	if err != nil {
		return errors.Trace(err)
	}
	if !paused {
		if err := c.Services.Reload("apache2"); err != nil {
			logger.Warningf("reloading apache2: %v", err)
			if err := c.Services.Restart("apache2"); err != nil {
				return errors.Annotate(err, "restarting apache2")
			}
		}
	}
	return errors.Trace(c.forEachRelation("identity-service", c.IdentityJoined))
}

// forEachRelation calls joined for every relation of endpoint.
func (c *Charm) forEachRelation(endpoint string, joined func(relId string) error) error {
	ids, err := c.Tools.RelationIds(endpoint)
	if err != nil {
		return errors.Trace(err)
	}
	for _, id := range ids {
		if err := joined(id); err != nil {
			return errors.Annotatef(err, "%s relation %s", endpoint, id)
		}
	}
	return nil
}

type relationRefresh struct {
	endpoint string
	joined   func(relId string) error
}

// refreshRelations republishes the settings of every relation of each
// endpoint, in order.
func (c *Charm) refreshRelations(refreshes []relationRefresh) error {
	for _, r := range refreshes {
		if err := c.forEachRelation(r.endpoint, r.joined); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// UpgradeCharm installs packages the new charm needs and republishes
// relation settings.
func (c *Charm) UpgradeCharm() error {
	if err := c.installMissingPackages(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(c.refreshRelations([]relationRefresh{
		{"amqp", c.AMQPJoined},
		{"identity-service", c.IdentityJoined},
		{subordinateRel, c.SubordinateJoined},
	}))
}

// UpdateStatus does nothing beyond the status assessment every hook
// ends with.
func (c *Charm) UpdateStatus() error {
	logger.Infof("Updating status.")
	return nil
}

// relationHook runs fn with the id of the relation the hook runs for.
func (c *Charm) relationHook(fn func(relId string) error) hook.Func {
	return func() error {
		return fn(c.Env.RelationId)
	}
}

type charmHook struct {
	fn    hook.Func
	names []string
}

// hooks lists every hook the charm implements.
func (c *Charm) hooks() []charmHook {
	return []charmHook{
		{c.Install, []string{"install"}},
		{c.ConfigChanged, []string{"config-changed"}},
		{c.UpgradeCharm, []string{"upgrade-charm"}},
		{c.UpdateStatus, []string{"update-status"}},
		{c.relationHook(c.AMQPJoined), []string{"amqp-relation-joined"}},
		{c.AMQPChanged, []string{"amqp-relation-changed", "amqp-relation-departed"}},
		{c.relationHook(c.DBJoined), []string{"shared-db-relation-joined"}},
		{c.DBChanged, []string{"shared-db-relation-changed"}},
		{c.relationHook(c.PgsqlDBJoined), []string{"pgsql-db-relation-joined"}},
		{c.PgsqlDBChanged, []string{"pgsql-db-relation-changed"}},
		{c.RelationBroken, []string{
			"amqp-relation-broken",
			"identity-service-relation-broken",
			"shared-db-relation-broken",
			"pgsql-db-relation-broken",
		}},
		{c.relationHook(c.IdentityJoined), []string{"identity-service-relation-joined"}},
		{c.IdentityChanged, []string{"identity-service-relation-changed"}},
		{c.relationHook(c.NeutronAPIJoined), []string{"neutron-api-relation-joined"}},
		{c.NeutronAPIChanged, []string{"neutron-api-relation-changed"}},
		{c.relationHook(c.NeutronPluginAPIJoined), []string{"neutron-plugin-api-relation-joined"}},
		{c.relationHook(c.SubordinateJoined), []string{
			subordinateRel + "-relation-joined",
			subordinateRel + "-relation-changed",
		}},
		{c.SubordinateDeparted, []string{subordinateRel + "-relation-departed"}},
		{c.relationHook(c.ClusterJoined), []string{"cluster-relation-joined"}},
		{c.ClusterChanged, []string{"cluster-relation-changed", "cluster-relation-departed"}},
		{c.relationHook(c.HAJoined), []string{"ha-relation-joined"}},
		{c.HAChanged, []string{"ha-relation-changed"}},
		{c.relationHook(c.ZeroMQJoined), []string{"zeromq-configuration-relation-joined"}},
		{c.ZeroMQChanged, []string{"zeromq-configuration-relation-changed"}},
		{c.relationHook(c.VSDJoined), []string{"vsd-rest-api-relation-joined"}},
		{c.VSDChanged, []string{"vsd-rest-api-relation-changed"}},
		{c.EtcdProxyChanged, []string{"etcd-proxy-relation-joined", "etcd-proxy-relation-changed"}},
		{c.UpdateNRPEConfig, []string{nrpeRelation + "-relation-joined", nrpeRelation + "-relation-changed"}},
	}
}

// Register adds every hook and action of the charm to r. Each hook is
// followed by a status assessment.
func (c *Charm) Register(r *hook.Registry) {
	for _, h := range c.hooks() {
		r.Register(h.fn, h.names...)
		r.Register(c.AssessStatus, h.names...)
	}
	r.Register(c.action(c.Pause), "pause")
	r.Register(c.action(c.Resume), "resume")
	r.Register(c.action(c.OpenStackUpgrade), "openstack-upgrade")
}

// HookNames returns the hook names of every hook the charm implements.
func (c *Charm) HookNames() []string {
	var names []string
	for _, h := range c.hooks() {
		names = append(names, h.names...)
	}
	return names
}

// pyBool formats b the way the remote charms parse booleans.
func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
