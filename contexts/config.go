// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package contexts

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/juju/errors"
	"gopkg.in/yaml.v2"
)

// ParseConfigFlags parses a config-flags value. Values are either YAML
// mappings or comma separated key=value pairs, where a value may
// itself contain commas: "a=1,b=x,y,c=3" gives b "x,y".
func ParseConfigFlags(flags string) (map[string]string, error) {
	colon, equals := strings.Index(flags, ":"), strings.Index(flags, "=")
	if colon >= 0 && (equals < 0 || colon < equals) {
		var parsed map[string]interface{}
		if err := yaml.Unmarshal([]byte(flags), &parsed); err != nil {
			return nil, errors.NotValidf("config flags %q", flags)
		}
		result := make(map[string]string)
		for k, v := range parsed {
			result[k] = fmt.Sprint(v)
		}
		return result, nil
	}
	if strings.Contains(flags, "==") {
		return nil, errors.NotValidf("config flags %q", flags)
	}
	split := strings.Split(strings.Trim(flags, " ="), "=")
	result := make(map[string]string)
	for i := 0; i < len(split)-1; i++ {
		current, next := split[i], split[i+1]
		value := next
		if vindex := strings.LastIndex(next, ","); i != len(split)-2 && vindex >= 0 {
			value = next[:vindex]
		}
		key := current
		if i > 0 {
			index := strings.LastIndex(current, ",")
			if index < 0 {
				return nil, errors.NotValidf("config flags %q at index %d", flags, i)
			}
			key = current[index+1:]
		}
		result[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return result, nil
}

// OSConfigFlag passes user supplied config-flags through to templates
// as user_config_flags.
type OSConfigFlag struct {
	Env *Env
}

// Interfaces is part of the templating.Context interface.
func (*OSConfigFlag) Interfaces() []string { return nil }

// Generate is part of the templating.Context interface.
func (f *OSConfigFlag) Generate() (map[string]interface{}, error) {
	flags := f.Env.Config.String("config-flags")
	if flags == "" {
		return map[string]interface{}{}, nil
	}
	parsed, err := ParseConfigFlags(flags)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return map[string]interface{}{"user_config_flags": parsed}, nil
}

// Syslog enables logging to syslog.
type Syslog struct {
	Env *Env
}

// Interfaces is part of the templating.Context interface.
func (*Syslog) Interfaces() []string { return nil }

// Generate is part of the templating.Context interface.
func (s *Syslog) Generate() (map[string]interface{}, error) {
	return map[string]interface{}{"use_syslog": s.Env.Config.Bool("use-syslog")}, nil
}

// BindHost chooses the wildcard address services listen on.
type BindHost struct {
	Env *Env
}

// Interfaces is part of the templating.Context interface.
func (*BindHost) Interfaces() []string { return nil }

// Generate is part of the templating.Context interface.
func (b *BindHost) Generate() (map[string]interface{}, error) {
	host := "0.0.0.0"
	if b.Env.Config.Bool("prefer-ipv6") {
		host = "::"
	}
	return map[string]interface{}{"bind_host": host}, nil
}

// InternalEndpoint makes services use internal endpoints from the
// keystone catalog.
type InternalEndpoint struct {
	Env *Env
}

// Interfaces is part of the templating.Context interface.
func (*InternalEndpoint) Interfaces() []string { return nil }

// Generate is part of the templating.Context interface.
func (i *InternalEndpoint) Generate() (map[string]interface{}, error) {
	return map[string]interface{}{"use_internal_endpoints": i.Env.Config.Bool("use-internal-endpoints")}, nil
}

const defaultWorkerMultiplier = 2.0

// numCPU is patched by tests.
var numCPU = runtime.NumCPU

// WorkerConfig sizes the API worker pool as worker-multiplier times
// the number of CPUs.
type WorkerConfig struct {
	Env *Env
}

// Interfaces is part of the templating.Context interface.
func (*WorkerConfig) Interfaces() []string { return nil }

// Generate is part of the templating.Context interface.
func (w *WorkerConfig) Generate() (map[string]interface{}, error) {
	multiplier := defaultWorkerMultiplier
	if w.Env.Config.IsSet("worker-multiplier") {
		multiplier = w.Env.Config.Float("worker-multiplier")
	}
	count := int(float64(numCPU()) * multiplier)
	if multiplier > 0 && count < 1 {
		count = 1
	}
	return map[string]interface{}{"workers": count}, nil
}

// ZeroMQ describes the ZeroMQ matchmaker offered on the
// zeromq-configuration relation.
type ZeroMQ struct {
	Env *Env
}

// Interfaces is part of the templating.Context interface.
func (*ZeroMQ) Interfaces() []string {
	return []string{"zeromq-configuration"}
}

// Generate is part of the templating.Context interface.
func (z *ZeroMQ) Generate() (map[string]interface{}, error) {
	ctxt := map[string]interface{}{}
	made, err := z.Env.relationMade("zeromq-configuration", "host")
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !made {
		return ctxt, nil
	}
	err = z.Env.eachUnit("zeromq-configuration", func(_, _ string, settings map[string]string) bool {
		ctxt["zmq_nonce"] = settings["nonce"]
		ctxt["zmq_host"] = settings["host"]
		ctxt["zmq_redis_address"] = settings["zmq_redis_address"]
		return false
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return ctxt, nil
}

// NotificationDriver turns notifications on once a message bus is
// related.
type NotificationDriver struct {
	Env *Env
}

// Interfaces is part of the templating.Context interface.
func (*NotificationDriver) Interfaces() []string { return nil }

// Generate is part of the templating.Context interface.
func (n *NotificationDriver) Generate() (map[string]interface{}, error) {
	ctxt := map[string]interface{}{"notifications": "False"}
	for _, endpoint := range []string{"amqp", "zeromq-configuration"} {
		made, err := n.Env.relationMade(endpoint)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if made {
			ctxt["notifications"] = "True"
			break
		}
	}
	return ctxt, nil
}

// Memcache points services at the local memcached for token caching.
type Memcache struct {
	// Enabled reports whether the release uses memcache.
	Enabled func() (bool, error)

	// Series returns the Ubuntu series of the machine.
	Series func() (string, error)
}

// Interfaces is part of the templating.Context interface.
func (*Memcache) Interfaces() []string { return nil }

// Generate is part of the templating.Context interface.
func (m *Memcache) Generate() (map[string]interface{}, error) {
	enabled, err := m.Enabled()
	if err != nil {
		return nil, errors.Trace(err)
	}
	ctxt := map[string]interface{}{"use_memcache": enabled}
	if !enabled {
		return ctxt, nil
	}
	server := "::1"
	if m.Series != nil {
		series, err := m.Series()
		if err != nil {
			return nil, errors.Trace(err)
		}
		// memcached on trusty cannot listen on ::1.
		if series == "trusty" {
			server = "ip6-localhost"
		}
	}
	ctxt["memcache_server"] = server
	ctxt["memcache_server_formatted"] = "[::1]"
	ctxt["memcache_port"] = "11211"
	ctxt["memcache_url"] = "inet6:[::1]:11211"
	return ctxt, nil
}
