// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package contexts

import (
	"path/filepath"
	"strings"

	"github.com/juju/errors"
)

const dbCAFile = "db-client-ca.pem"

// SharedDB describes a MySQL database offered on the shared-db
// relation.
type SharedDB struct {
	Env      *Env
	Database string
	User     string

	// SSLDir receives the database CA certificate when one is offered.
	SSLDir string
}

// Interfaces is part of the templating.Context interface.
func (*SharedDB) Interfaces() []string {
	return []string{"shared-db"}
}

// Generate is part of the templating.Context interface.
func (d *SharedDB) Generate() (map[string]interface{}, error) {
	var (
		ctxt   map[string]interface{}
		genErr error
	)
	err := d.Env.eachUnit("shared-db", func(_, _ string, settings map[string]string) bool {
		if allowed := settings["allowed_units"]; allowed != "" && !contains(strings.Fields(allowed), d.Env.UnitName) {
			logger.Debugf("%s not in allowed_units", d.Env.UnitName)
			return false
		}
		unitCtxt := map[string]interface{}{
			"database_host":     settings["db_host"],
			"database":          d.Database,
			"database_user":     d.User,
			"database_password": settings["password"],
			"database_type":     "mysql",
		}
		if !complete(unitCtxt) {
			return false
		}
		if ca := settings["ssl_ca"]; ca != "" && d.SSLDir != "" {
			path := filepath.Join(d.SSLDir, dbCAFile)
			if genErr = writeBase64File(path, ca, 0644); genErr != nil {
				return true
			}
			unitCtxt["database_ssl_ca"] = path
		}
		ctxt = unitCtxt
		return true
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if genErr != nil {
		return nil, errors.Trace(genErr)
	}
	if ctxt == nil {
		return map[string]interface{}{}, nil
	}
	return ctxt, nil
}

// PostgresqlDB describes a PostgreSQL database offered on the pgsql-db
// relation.
type PostgresqlDB struct {
	Env      *Env
	Database string
}

// Interfaces is part of the templating.Context interface.
func (*PostgresqlDB) Interfaces() []string {
	return []string{"pgsql-db"}
}

// Generate is part of the templating.Context interface.
func (d *PostgresqlDB) Generate() (map[string]interface{}, error) {
	ctxt := map[string]interface{}{}
	err := d.Env.eachUnit("pgsql-db", func(_, _ string, settings map[string]string) bool {
		unitCtxt := map[string]interface{}{
			"database_host":     settings["host"],
			"database":          d.Database,
			"database_user":     settings["user"],
			"database_password": settings["password"],
			"database_type":     "postgresql",
		}
		if complete(unitCtxt) {
			ctxt = unitCtxt
			return true
		}
		return false
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return ctxt, nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
