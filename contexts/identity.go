// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package contexts

import (
	"strconv"

	"github.com/juju/errors"

	"github.com/juju/charm-neutron-api/hacluster"
)

// IdentityService describes the keystone service credentials offered
// on the identity-service relation.
type IdentityService struct {
	Env *Env

	// SigningDir caches keystone signing certificates.
	SigningDir string
}

// Interfaces is part of the templating.Context interface.
func (*IdentityService) Interfaces() []string {
	return []string{"identity-service"}
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

// Generate is part of the templating.Context interface.
func (s *IdentityService) Generate() (map[string]interface{}, error) {
	ctxt := map[string]interface{}{}
	err := s.Env.eachUnit("identity-service", func(_, _ string, settings map[string]string) bool {
		apiVersion := orDefault(settings["api_version"], "2.0")
		unitCtxt := map[string]interface{}{
			"service_port":      settings["service_port"],
			"service_host":      hacluster.FormatHost(settings["service_host"]),
			"auth_host":         hacluster.FormatHost(settings["auth_host"]),
			"auth_port":         settings["auth_port"],
			"admin_tenant_name": settings["service_tenant"],
			"admin_user":        settings["service_username"],
			"admin_password":    settings["service_password"],
			"service_protocol":  orDefault(settings["service_protocol"], "http"),
			"auth_protocol":     orDefault(settings["auth_protocol"], "http"),
			"api_version":       apiVersion,
		}
		if v, err := strconv.ParseFloat(apiVersion, 64); err == nil && v >= 3 {
			unitCtxt["admin_domain_name"] = settings["service_domain"]
			unitCtxt["admin_tenant_id"] = settings["service_tenant_id"]
		}
		if !complete(unitCtxt) {
			return false
		}
		if s.SigningDir != "" {
			unitCtxt["signing_dir"] = s.SigningDir
		}
		ctxt = unitCtxt
		return true
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return ctxt, nil
}
