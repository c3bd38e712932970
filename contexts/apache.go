// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package contexts

import (
	"path/filepath"
	"sort"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/juju/charm-neutron-api/hacluster"
	"github.com/juju/charm-neutron-api/runner"
)

// Endpoint maps an address apache listens on to the API port it
// proxies to.
type Endpoint struct {
	Address      string
	Endpoint     string
	ExternalPort int
	InternalPort int
}

// ApacheSSL terminates TLS for the API ports in apache.
type ApacheSSL struct {
	Env *Env

	// Namespace names the certificate directory under SSLDir.
	Namespace string

	// ExternalPorts returns the public API ports.
	ExternalPorts func() ([]int, error)

	// SSLDir is /etc/apache2/ssl.
	SSLDir string

	// CACertPath receives a configured CA certificate.
	CACertPath string
}

// Interfaces is part of the templating.Context interface.
func (*ApacheSSL) Interfaces() []string {
	return []string{"https"}
}

func (a *ApacheSSL) configureCA() error {
	ca := a.Env.Config.String("ssl_ca")
	if ca == "" || a.CACertPath == "" {
		return nil
	}
	if err := writeBase64File(a.CACertPath, ca, 0644); err != nil {
		return errors.Trace(err)
	}
	_, err := runner.RunCommand(a.Env.Runner, "update-ca-certificates")
	return errors.Trace(err)
}

func (a *ApacheSSL) configureCert(cn string) error {
	cert, key := a.Env.Config.String("ssl_cert"), a.Env.Config.String("ssl_key")
	if cert == "" || key == "" {
		return nil
	}
	dir := filepath.Join(a.SSLDir, a.Namespace)
	if err := writeBase64File(filepath.Join(dir, "cert_"+cn), cert, 0640); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(writeBase64File(filepath.Join(dir, "key_"+cn), key, 0640))
}

func (a *ApacheSSL) enableModules() error {
	_, err := runner.RunCommand(a.Env.Runner, "a2enmod", "ssl", "proxy", "proxy_http", "headers")
	return errors.Annotate(err, "enabling apache modules")
}

// networkAddresses pairs the local address of each endpoint network
// with the address clients reach it on, the VIP once clustered.
func (a *ApacheSSL) networkAddresses() ([][2]string, error) {
	private, err := a.Env.privateAddress()
	if err != nil {
		return nil, errors.Trace(err)
	}
	clustered, err := a.Env.Cluster.IsClustered()
	if err != nil {
		return nil, errors.Trace(err)
	}
	seen := set.NewStrings()
	var pairs [][2]string
	for _, endpoint := range []string{hacluster.Internal, hacluster.Admin, hacluster.Public} {
		addr := private
		if network := a.Env.Config.String("os-" + endpoint + "-network"); network != "" {
			if laddr, err := hacluster.AddressInNetwork(a.Env.Cluster.Addrs, network); err == nil {
				addr = laddr
			}
		}
		public := addr
		if clustered && a.Env.Config.String("vip") != "" {
			if public, err = a.Env.Cluster.ResolveAddress(endpoint); err != nil {
				return nil, errors.Trace(err)
			}
		}
		key := addr + " " + public
		if seen.Contains(key) {
			continue
		}
		seen.Add(key)
		pairs = append(pairs, [2]string{addr, public})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	return pairs, nil
}

// Generate is part of the templating.Context interface.
func (a *ApacheSSL) Generate() (map[string]interface{}, error) {
	ports, err := a.ExternalPorts()
	if err != nil {
		return nil, errors.Trace(err)
	}
	https, err := a.Env.Cluster.HTTPS()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(ports) == 0 || !https {
		return map[string]interface{}{}, nil
	}
	if err := a.configureCA(); err != nil {
		return nil, errors.Trace(err)
	}
	if err := a.enableModules(); err != nil {
		return nil, errors.Trace(err)
	}
	cn, err := a.Env.Cluster.ResolveAddress(hacluster.Internal)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := a.configureCert(cn); err != nil {
		return nil, errors.Trace(err)
	}

	addresses, err := a.networkAddresses()
	if err != nil {
		return nil, errors.Trace(err)
	}
	var endpoints []Endpoint
	extPorts := set.NewInts()
	for _, pair := range addresses {
		for _, port := range ports {
			ext, err := a.Env.Cluster.DetermineApachePort(port, true)
			if err != nil {
				return nil, errors.Trace(err)
			}
			internal, err := a.Env.Cluster.DetermineAPIPort(port, true)
			if err != nil {
				return nil, errors.Trace(err)
			}
			endpoints = append(endpoints, Endpoint{
				Address:      pair[0],
				Endpoint:     pair[1],
				ExternalPort: ext,
				InternalPort: internal,
			})
			extPorts.Add(ext)
		}
	}
	return map[string]interface{}{
		"namespace": a.Namespace,
		"endpoints": endpoints,
		"ext_ports": extPorts.SortedValues(),
	}, nil
}
