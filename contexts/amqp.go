// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package contexts

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/juju/errors"

	"github.com/juju/charm-neutron-api/hacluster"
)

const (
	rabbitPort   = "5672"
	rabbitCAFile = "rabbit-client-ca.pem"
)

// AMQP describes the RabbitMQ broker the service talks to.
type AMQP struct {
	Env *Env

	// SSLDir receives the broker CA certificate when one is offered.
	SSLDir string
}

// Interfaces is part of the templating.Context interface.
func (*AMQP) Interfaces() []string {
	return []string{"amqp"}
}

// Generate is part of the templating.Context interface.
func (a *AMQP) Generate() (map[string]interface{}, error) {
	user := a.Env.Config.String("rabbit-user")
	vhost := a.Env.Config.String("rabbit-vhost")
	var (
		ctxt    map[string]interface{}
		hosts   []string
		vipOnly bool
		genErr  error
	)
	err := a.Env.eachUnit("amqp", func(_, _ string, settings map[string]string) bool {
		host := settings["private-address"]
		if settings["clustered"] != "" && settings["vip"] != "" {
			host = settings["vip"]
		}
		unitCtxt := map[string]interface{}{
			"rabbitmq_host":         host,
			"rabbitmq_user":         user,
			"rabbitmq_password":     settings["password"],
			"rabbitmq_virtual_host": vhost,
		}
		if port := settings["ssl_port"]; port != "" {
			unitCtxt["rabbit_ssl_port"] = port
		}
		if ca := settings["ssl_ca"]; ca != "" {
			if a.SSLDir == "" {
				logger.Infof("amqp offers ssl but no ssl dir is set")
				return false
			}
			path := filepath.Join(a.SSLDir, rabbitCAFile)
			if genErr = writeBase64File(path, ca, 0644); genErr != nil {
				return true
			}
			unitCtxt["rabbit_ssl_ca"] = path
		}
		if settings["ha_queues"] != "" {
			unitCtxt["rabbitmq_ha_queues"] = true
			vipOnly = settings["ha-vip-only"] == "True" || settings["ha-vip-only"] == "true"
		}
		if !complete(unitCtxt) {
			return false
		}
		ctxt = unitCtxt
		if addr := settings["private-address"]; addr != "" {
			hosts = append(hosts, hacluster.FormatHost(addr))
		}
		return false
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
	sort.Strings(hosts)
	if len(hosts) > 1 && !vipOnly {
		ctxt["rabbitmq_hosts"] = strings.Join(hosts, ",")
	}
	ctxt["transport_url"] = transportURL(ctxt, hosts, vipOnly)
	return ctxt, nil
}

// transportURL builds the oslo.messaging URL naming every broker.
func transportURL(ctxt map[string]interface{}, hosts []string, vipOnly bool) string {
	port := rabbitPort
	if p, ok := ctxt["rabbit_ssl_port"].(string); ok {
		port = p
	}
	if len(hosts) < 2 || vipOnly {
		hosts = []string{hacluster.FormatHost(ctxt["rabbitmq_host"].(string))}
	}
	creds := fmt.Sprintf("%s:%s", ctxt["rabbitmq_user"], ctxt["rabbitmq_password"])
	var brokers []string
	for _, host := range hosts {
		brokers = append(brokers, fmt.Sprintf("%s@%s:%s", creds, host, port))
	}
	return fmt.Sprintf("rabbit://%s/%s", strings.Join(brokers, ","), ctxt["rabbitmq_virtual_host"])
}
