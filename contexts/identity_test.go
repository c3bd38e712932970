// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package contexts_test

import (
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/charm-neutron-api/contexts"
)

type IdentitySuite struct {
	baseSuite
}

var _ = gc.Suite(&IdentitySuite{})

func keystoneSettings() map[string]string {
	return map[string]string{
		"service_port":     "5000",
		"service_host":     "10.0.0.40",
		"auth_host":        "2001:db8:1::40",
		"auth_port":        "35357",
		"service_tenant":   "services",
		"service_username": "neutron",
		"service_password": "keypass",
	}
}

func (s *IdentitySuite) TestV2(c *gc.C) {
	s.agent.AddRelation("identity-service").AddUnit("keystone/0", keystoneSettings())
	ctxt, err := (&contexts.IdentityService{Env: s.env(c), SigningDir: "/var/cache/neutron"}).Generate()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(ctxt, jc.DeepEquals, map[string]interface{}{
		"service_port":      "5000",
		"service_host":      "10.0.0.40",
		"auth_host":         "[2001:db8:1::40]",
		"auth_port":         "35357",
		"admin_tenant_name": "services",
		"admin_user":        "neutron",
		"admin_password":    "keypass",
		"service_protocol":  "http",
		"auth_protocol":     "http",
		"api_version":       "2.0",
		"signing_dir":       "/var/cache/neutron",
	})
}

func (s *IdentitySuite) TestV3NeedsDomain(c *gc.C) {
	settings := keystoneSettings()
	settings["api_version"] = "3"
	rel := s.agent.AddRelation("identity-service").AddUnit("keystone/0", settings)
	ctxt, err := (&contexts.IdentityService{Env: s.env(c)}).Generate()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(ctxt, gc.HasLen, 0)

	settings["service_domain"] = "service_domain"
	settings["service_tenant_id"] = "abc123"
	rel.AddUnit("keystone/0", settings)
	ctxt, err = (&contexts.IdentityService{Env: s.env(c)}).Generate()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(ctxt["admin_domain_name"], gc.Equals, "service_domain")
	c.Assert(ctxt["admin_tenant_id"], gc.Equals, "abc123")
}
