// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hacluster

import (
	"net"
	"strconv"

	"github.com/juju/errors"
	"github.com/vishvananda/netlink"
)

// InterfaceAddr is an address configured on a local interface.
type InterfaceAddr struct {
	Interface string
	Net       *net.IPNet
}

// AddrLister lists the addresses configured on the machine.
type AddrLister interface {
	Addrs() ([]InterfaceAddr, error)
}

type netlinkAddrs struct{}

// Addrs is part of the AddrLister interface.
func (netlinkAddrs) Addrs() ([]InterfaceAddr, error) {
	addrs, err := netlink.AddrList(nil, netlink.FAMILY_ALL)
	if err != nil {
		return nil, errors.Annotate(err, "listing addresses")
	}
	names := make(map[int]string)
	var result []InterfaceAddr
	for _, addr := range addrs {
		name, ok := names[addr.LinkIndex]
		if !ok {
			link, err := netlink.LinkByIndex(addr.LinkIndex)
			if err != nil {
				return nil, errors.Annotatef(err, "looking up link %d", addr.LinkIndex)
			}
			name = link.Attrs().Name
			names[addr.LinkIndex] = name
		}
		result = append(result, InterfaceAddr{Interface: name, Net: addr.IPNet})
	}
	return result, nil
}

// NetlinkAddrs returns an AddrLister backed by netlink.
func NetlinkAddrs() AddrLister {
	return netlinkAddrs{}
}

// findNetwork returns the local network containing address.
func findNetwork(lister AddrLister, address string) (*InterfaceAddr, error) {
	ip := net.ParseIP(address)
	if ip == nil {
		return nil, errors.NotValidf("address %q", address)
	}
	addrs, err := lister.Addrs()
	if err != nil {
		return nil, errors.Trace(err)
	}
	for _, addr := range addrs {
		if addr.Net == nil {
			continue
		}
		network := &net.IPNet{IP: addr.Net.IP.Mask(addr.Net.Mask), Mask: addr.Net.Mask}
		if network.Contains(ip) {
			found := addr
			return &found, nil
		}
	}
	return nil, errors.NotFoundf("local network for %s", address)
}

// IfaceForAddress returns the interface whose network contains address.
func IfaceForAddress(lister AddrLister, address string) (string, error) {
	addr, err := findNetwork(lister, address)
	if err != nil {
		return "", errors.Trace(err)
	}
	return addr.Interface, nil
}

// NetmaskForAddress returns the netmask of the local network containing
// address: dotted for IPv4, a prefix length for IPv6.
func NetmaskForAddress(lister AddrLister, address string) (string, error) {
	addr, err := findNetwork(lister, address)
	if err != nil {
		return "", errors.Trace(err)
	}
	if addr.Net.IP.To4() != nil {
		mask := addr.Net.Mask
		if len(mask) == net.IPv6len {
			mask = mask[12:]
		}
		return net.IP(mask).String(), nil
	}
	ones, _ := addr.Net.Mask.Size()
	return strconv.Itoa(ones), nil
}

// AddressInNetwork returns the first local address within the network
// given in CIDR notation.
func AddressInNetwork(lister AddrLister, cidr string) (string, error) {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return "", errors.NotValidf("network %q", cidr)
	}
	addrs, err := lister.Addrs()
	if err != nil {
		return "", errors.Trace(err)
	}
	for _, addr := range addrs {
		if addr.Net != nil && network.Contains(addr.Net.IP) {
			return addr.Net.IP.String(), nil
		}
	}
	return "", errors.NotFoundf("address in network %s", cidr)
}

// IsIPv6 reports whether address is an IPv6 address.
func IsIPv6(address string) bool {
	ip := net.ParseIP(address)
	return ip != nil && ip.To4() == nil
}

// GlobalIPv6Addrs returns every global unicast IPv6 address of the
// machine.
func GlobalIPv6Addrs(lister AddrLister) ([]string, error) {
	addrs, err := lister.Addrs()
	if err != nil {
		return nil, errors.Trace(err)
	}
	var result []string
	for _, addr := range addrs {
		if addr.Net == nil || addr.Net.IP.To4() != nil || !addr.Net.IP.IsGlobalUnicast() {
			continue
		}
		result = append(result, addr.Net.IP.String())
	}
	return result, nil
}
