// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hacluster

import (
	"fmt"
	"net"
	"strings"

	"github.com/juju/errors"
)

// Endpoint types, which are also the names of the extra bindings the
// charm declares.
const (
	Public   = "public"
	Internal = "internal"
	Admin    = "admin"
)

// EndpointTypes lists every endpoint type.
var EndpointTypes = []string{Public, Internal, Admin}

// ResolveAddress returns the address endpointType is published on. A
// configured os-<type>-hostname wins; a clustered unit publishes its
// VIP; otherwise the unit address on the configured os-<type>-network,
// the binding's primary address or the unit address is used.
func (c *Cluster) ResolveAddress(endpointType string) (string, error) {
	if hostname := c.Config.String("os-" + endpointType + "-hostname"); hostname != "" {
		return hostname, nil
	}
	return c.resolveUnitAddress(endpointType)
}

func (c *Cluster) resolveUnitAddress(endpointType string) (string, error) {
	network := c.Config.String("os-" + endpointType + "-network")
	clustered, err := c.IsClustered()
	if err != nil {
		return "", errors.Trace(err)
	}
	vips := strings.Fields(c.Config.String("vip"))
	if clustered && len(vips) > 0 {
		if network == "" {
			return vips[0], nil
		}
		_, ipNet, err := net.ParseCIDR(network)
		if err != nil {
			return "", errors.NotValidf("os-%s-network %q", endpointType, network)
		}
		for _, vip := range vips {
			if ip := net.ParseIP(vip); ip != nil && ipNet.Contains(ip) {
				return vip, nil
			}
		}
		return "", errors.NotFoundf("vip in network %s", network)
	}
	if network != "" {
		addr, err := AddressInNetwork(c.Addrs, network)
		if err == nil {
			return addr, nil
		}
		logger.Warningf("no local address in os-%s-network %s: %v", endpointType, network, err)
	}
	addr, err := c.Tools.NetworkGetPrimaryAddress(endpointType)
	if err == nil && addr != "" {
		return addr, nil
	}
	if err != nil && !errors.IsNotSupported(err) {
		logger.Debugf("network-get %s: %v", endpointType, err)
	}
	key := "private-address"
	if endpointType == Public {
		key = "public-address"
	}
	addr, err = c.Tools.UnitGet(key)
	if err != nil {
		return "", errors.Trace(err)
	}
	return addr, nil
}

// FormatHost brackets IPv6 addresses for use in URLs.
func FormatHost(host string) string {
	if IsIPv6(host) {
		return "[" + host + "]"
	}
	return host
}

// CanonicalURL returns the scheme and host endpointType is reached on,
// without a port.
func (c *Cluster) CanonicalURL(endpointType string) (string, error) {
	scheme := "http"
	https, err := c.HTTPS()
	if err != nil {
		return "", errors.Trace(err)
	}
	if https {
		scheme = "https"
	}
	addr, err := c.ResolveAddress(endpointType)
	if err != nil {
		return "", errors.Trace(err)
	}
	return fmt.Sprintf("%s://%s", scheme, FormatHost(addr)), nil
}
