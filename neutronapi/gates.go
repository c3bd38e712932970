// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package neutronapi

import (
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/juju/charm-neutron-api/openstack"
)

var (
	overlayNetworkTypes = set.NewStrings("vxlan", "gre")
	l3haNetworkTypes    = set.NewStrings("vlan", "gre", "vxlan")
)

// L2Population reports whether l2 population is on. Only the ovs
// plugin supports it.
func (c *Charm) L2Population() bool {
	return c.plugin() == "ovs" && c.Config.Bool("l2-population")
}

// OverlayNetworkType returns the configured overlay network types,
// comma separated.
func (c *Charm) OverlayNetworkType() (string, error) {
	types := strings.Fields(c.Config.String("overlay-network-type"))
	for _, t := range types {
		if !overlayNetworkTypes.Contains(t) {
			return "", errors.NewNotValid(nil, "Unsupported overlay-network-type "+t)
		}
	}
	return strings.Join(types, ","), nil
}

// L3HA reports whether HA routers are enabled and usable. It reads the
// raw overlay-network-type and l2-population options.
func (c *Charm) L3HA() (bool, error) {
	if !c.Config.Bool("enable-l3ha") {
		return false, nil
	}
	release, err := c.Release()
	if err != nil {
		return false, errors.Trace(err)
	}
	if !openstack.AtLeast(release, "juno") {
		logger.Infof("Disabling L3 HA, enable-l3ha is not valid before Juno")
		return false, nil
	}
	// The option as a whole must name one type; "gre vxlan" is rejected.
	if !l3haNetworkTypes.Contains(c.Config.String("overlay-network-type")) {
		logger.Infof("Disabling L3 HA, enable-l3ha requires the use of the vxlan, vlan or gre overlay network")
		return false, nil
	}
	// l2-population is checked as configured, whatever the plugin.
	if c.Config.Bool("l2-population") {
		logger.Infof("Disabling L3 HA, l2-population must be disabled with L3 HA")
		return false, nil
	}
	return true, nil
}

// DVR reports whether distributed virtual routing is enabled and
// usable. It reads the raw enable-l3ha and l2-population options.
func (c *Charm) DVR() (bool, error) {
	if !c.Config.Bool("enable-dvr") {
		return false, nil
	}
	release, err := c.Release()
	if err != nil {
		return false, errors.Trace(err)
	}
	if !openstack.AtLeast(release, "juno") {
		logger.Infof("Disabling DVR, enable-dvr is not valid before Juno")
		return false, nil
	}
	if release == "juno" && c.Config.String("overlay-network-type") != "vxlan" {
		logger.Infof("Disabling DVR, enable-dvr requires the use of the vxlan overlay network for OpenStack Juno")
		return false, nil
	}
	// Both options are checked as configured, so an enable-l3ha that
	// L3HA itself would reject still disables DVR.
	if c.Config.Bool("enable-l3ha") {
		logger.Infof("Disabling DVR, enable-l3ha must be disabled with dvr")
		return false, nil
	}
	if !c.Config.Bool("l2-population") {
		logger.Infof("Disabling DVR, l2-population must be enabled to use dvr")
		return false, nil
	}
	return true, nil
}
