// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package contexts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"

	"github.com/juju/charm-neutron-api/hacluster"
)

// statPasswordKey holds the haproxy stats password in unit data.
const statPasswordKey = "haproxy.stat.password"

// Frontend is one haproxy frontend and the peer backends behind it.
type Frontend struct {
	Network  string
	Backends map[string]string
}

// HAProxy load balances the API across the peers of the cluster
// relation.
type HAProxy struct {
	Env *Env

	// SinglenodeMode renders haproxy even without peers.
	SinglenodeMode bool

	// DefaultsFile is /etc/default/haproxy; it is written to enable
	// haproxy once the context is complete.
	DefaultsFile string
}

// Interfaces is part of the templating.Context interface.
func (*HAProxy) Interfaces() []string {
	return []string{"cluster"}
}

func unitBackendName(unit string) string {
	return strings.Replace(unit, "/", "-", -1)
}

func (h *HAProxy) localAddress() (string, error) {
	if h.Env.Config.Bool("prefer-ipv6") {
		addrs, err := hacluster.GlobalIPv6Addrs(h.Env.Cluster.Addrs)
		if err != nil {
			return "", errors.Trace(err)
		}
		vips := strings.Fields(h.Env.Config.String("vip"))
		for _, addr := range addrs {
			if !contains(vips, addr) {
				return addr, nil
			}
		}
		return "", errors.NotFoundf("global IPv6 address")
	}
	return h.Env.privateAddress()
}

func (h *HAProxy) frontend(addr string, peerKey string) (*Frontend, error) {
	netmask, err := hacluster.NetmaskForAddress(h.Env.Cluster.Addrs, addr)
	if err != nil {
		return nil, errors.Trace(err)
	}
	fe := &Frontend{
		Network:  fmt.Sprintf("%s/%s", addr, netmask),
		Backends: map[string]string{unitBackendName(h.Env.UnitName): addr},
	}
	err = h.Env.eachUnit("cluster", func(_, unit string, settings map[string]string) bool {
		if peer := settings[peerKey]; peer != "" {
			fe.Backends[unitBackendName(unit)] = peer
		}
		return false
	})
	return fe, errors.Trace(err)
}

func (h *HAProxy) statPassword() (string, error) {
	var password string
	found, err := h.Env.Store.Get(statPasswordKey, &password)
	if err != nil {
		return "", errors.Trace(err)
	}
	if found && password != "" {
		return password, nil
	}
	if password, err = utils.RandomPassword(); err != nil {
		return "", errors.Trace(err)
	}
	if err := h.Env.Store.Set(statPasswordKey, password); err != nil {
		return "", errors.Trace(err)
	}
	return password, errors.Trace(h.Env.Store.Flush())
}

// Generate is part of the templating.Context interface.
func (h *HAProxy) Generate() (map[string]interface{}, error) {
	ids, err := h.Env.Tools.RelationIds("cluster")
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(ids) == 0 && !h.SinglenodeMode {
		return map[string]interface{}{}, nil
	}
	addr, err := h.localAddress()
	if err != nil {
		return nil, errors.Trace(err)
	}

	frontends := make(map[string]*Frontend)
	for _, endpoint := range hacluster.EndpointTypes {
		network := h.Env.Config.String("os-" + endpoint + "-network")
		if network == "" {
			continue
		}
		laddr, err := hacluster.AddressInNetwork(h.Env.Cluster.Addrs, network)
		if err != nil {
			logger.Debugf("no address in os-%s-network: %v", endpoint, err)
			continue
		}
		fe, err := h.frontend(laddr, endpoint+"-address")
		if err != nil {
			return nil, errors.Trace(err)
		}
		frontends[laddr] = fe
	}
	fe, err := h.frontend(addr, "private-address")
	if err != nil {
		return nil, errors.Trace(err)
	}
	frontends[addr] = fe

	ctxt := map[string]interface{}{
		"frontends":       frontends,
		"default_backend": addr,
		"local_host":      "127.0.0.1",
		"haproxy_host":    "0.0.0.0",
		"stat_port":       "8888",
	}
	if h.Env.Config.Bool("prefer-ipv6") {
		ctxt["ipv6"] = true
		ctxt["local_host"] = "ip6-localhost"
		ctxt["haproxy_host"] = "::"
	}
	for _, timeout := range []string{"server", "client", "queue", "connect"} {
		key := "haproxy-" + timeout + "-timeout"
		if h.Env.Config.IsSet(key) {
			ctxt["haproxy_"+timeout+"_timeout"] = h.Env.Config.Int(key)
		}
	}
	if ctxt["stat_password"], err = h.statPassword(); err != nil {
		return nil, errors.Trace(err)
	}

	for _, fe := range frontends {
		if len(fe.Backends) > 1 || h.SinglenodeMode {
			if h.DefaultsFile != "" {
				if err := h.enable(); err != nil {
					return nil, errors.Trace(err)
				}
			}
			return ctxt, nil
		}
	}
	logger.Infof("haproxy context is incomplete, this unit has no peers")
	return map[string]interface{}{}, nil
}

func (h *HAProxy) enable() error {
	if err := os.MkdirAll(filepath.Dir(h.DefaultsFile), 0755); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(utils.AtomicWriteFile(h.DefaultsFile, []byte("ENABLED=1\n"), 0644))
}
