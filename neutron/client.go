// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package neutron queries the Neutron API the charm deploys.
package neutron

import (
	"fmt"

	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/extensions/layer3/routers"
	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("neutronapi.neutron")

// Router features that cannot be turned off while routers use them.
const (
	FeatureDistributed = "distributed"
	FeatureHA          = "ha"
)

// Credentials are the service credentials keystone hands out on the
// identity-service relation.
type Credentials struct {
	AuthProtocol string
	AuthHost     string
	AuthPort     string
	APIVersion   string
	Username     string
	Password     string
	TenantName   string
	DomainName   string
	Region       string
}

// AuthURL returns the keystone endpoint for the credentials.
func (c Credentials) AuthURL() string {
	version := "v2.0"
	if c.APIVersion == "3" {
		version = "v3"
	}
	protocol := c.AuthProtocol
	if protocol == "" {
		protocol = "http"
	}
	return fmt.Sprintf("%s://%s:%s/%s", protocol, c.AuthHost, c.AuthPort, version)
}

// Validate checks that every credential needed to log in is present.
func (c Credentials) Validate() error {
	switch {
	case c.AuthHost == "", c.AuthPort == "":
		return errors.NotValidf("credentials without keystone address")
	case c.Username == "", c.Password == "":
		return errors.NotValidf("credentials without user")
	}
	return nil
}

// Client talks to the networking endpoint of the catalog.
type Client struct {
	network *gophercloud.ServiceClient
}

// NewClient returns a Client using an existing networking service
// client.
func NewClient(network *gophercloud.ServiceClient) *Client {
	return &Client{network: network}
}

// Connect logs in to keystone and finds the internal networking
// endpoint.
func Connect(creds Credentials) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	opts := gophercloud.AuthOptions{
		IdentityEndpoint: creds.AuthURL(),
		Username:         creds.Username,
		Password:         creds.Password,
		TenantName:       creds.TenantName,
		DomainName:       creds.DomainName,
	}
	provider, err := openstack.AuthenticatedClient(opts)
	if err != nil {
		return nil, errors.Annotatef(err, "authenticating with %s", opts.IdentityEndpoint)
	}
	network, err := openstack.NewNetworkV2(provider, gophercloud.EndpointOpts{
		Region:       creds.Region,
		Availability: gophercloud.AvailabilityInternal,
	})
	if err != nil {
		return nil, errors.Annotate(err, "finding network endpoint")
	}
	return NewClient(network), nil
}

// Router is a Neutron router with the extension attributes the charm
// cares about.
type Router struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Distributed bool   `json:"distributed"`
	HA          bool   `json:"ha"`
}

// Routers lists every router visible to the service user.
func (c *Client) Routers() ([]Router, error) {
	pages, err := routers.List(c.network, routers.ListOpts{}).AllPages()
	if err != nil {
		return nil, errors.Annotate(err, "listing routers")
	}
	page, ok := pages.(routers.RouterPage)
	if !ok {
		return nil, errors.Errorf("unexpected router page type %T", pages)
	}
	var result []Router
	if err := page.ExtractIntoSlicePtr(&result, "routers"); err != nil {
		return nil, errors.Annotate(err, "decoding routers")
	}
	return result, nil
}

// RouterFeaturePresent reports whether any router has feature enabled.
func (c *Client) RouterFeaturePresent(feature string) (bool, error) {
	all, err := c.Routers()
	if err != nil {
		return false, errors.Trace(err)
	}
	for _, r := range all {
		switch feature {
		case FeatureDistributed:
			if r.Distributed {
				return true, nil
			}
		case FeatureHA:
			if r.HA {
				return true, nil
			}
		default:
			return false, errors.NotValidf("router feature %q", feature)
		}
	}
	return false, nil
}

// Ready reports whether the API answers requests.
func (c *Client) Ready() bool {
	if _, err := c.Routers(); err != nil {
		logger.Debugf("neutron api not ready: %v", err)
		return false
	}
	return true
}
