// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package packaging installs and inspects Debian packages and manages
// the apt sources they come from.
package packaging

import (
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/proxy"
	"github.com/juju/retry"

	"github.com/juju/charm-neutron-api/runner"
)

var logger = loggo.GetLogger("neutronapi.packaging")

const (
	// aptLockExitCode is returned by apt-get when the dpkg lock is
	// held by another process.
	aptLockExitCode = 100

	// Retry for five minutes on lock contention.
	installAttempts = 30
	installDelay    = 10 * time.Second
)

// DefaultOptions are passed to every apt-get invocation that installs
// or upgrades packages.
var DefaultOptions = []string{
	"--option=Dpkg::Options::=--force-confold",
}

var commonFlags = []string{
	"--option=Dpkg::options::=--force-unsafe-io",
	"--assume-yes",
	"--quiet",
}

// Apt runs apt-get and dpkg-query.
type Apt struct {
	Runner   runner.CommandRunner
	Clock    clock.Clock
	Attempts int
	Delay    time.Duration

	// Environment is passed to apt-get and apt-key.
	Environment []string
}

// NewApt returns an Apt carrying the detected proxy settings.
func NewApt(r runner.CommandRunner) *Apt {
	settings := proxy.DetectProxies()
	env := append([]string{
		"DEBIAN_FRONTEND=noninteractive",
		"APT_LISTCHANGES_FRONTEND=none",
	}, settings.AsEnvironmentValues()...)
	return &Apt{
		Runner:      r,
		Clock:       clock.WallClock,
		Attempts:    installAttempts,
		Delay:       installDelay,
		Environment: env,
	}
}

func (a *Apt) aptGet(args ...string) error {
	cmd := runner.Command{
		Name:        "apt-get",
		Args:        append(append([]string(nil), commonFlags...), args...),
		Environment: a.Environment,
	}
	logger.Infof("running %s", cmd)
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			_, err := runner.Run(a.Runner, cmd)
			return err
		},
		IsFatalError: func(err error) bool {
			return runner.ExitCode(err) != aptLockExitCode
		},
		NotifyFunc: func(lastError error, attempt int) {
			logger.Warningf("apt lock held, retrying (attempt %d): %v", attempt, lastError)
		},
		Attempts: a.Attempts,
		Delay:    a.Delay,
		Clock:    a.Clock,
	})
	if retry.IsAttemptsExceeded(err) {
		err = retry.LastError(err)
	}
	return errors.Trace(err)
}

// Update refreshes the package index.
func (a *Apt) Update() error {
	return errors.Trace(a.aptGet("update"))
}

// Install installs pkgs with options, or DefaultOptions if none are
// given.
func (a *Apt) Install(pkgs []string, options ...string) error {
	if len(pkgs) == 0 {
		return nil
	}
	if len(options) == 0 {
		options = DefaultOptions
	}
	args := append(append([]string(nil), options...), "install")
	return errors.Annotatef(a.aptGet(append(args, pkgs...)...), "installing %s", strings.Join(pkgs, " "))
}

// Upgrade upgrades every installed package, with dist-upgrade when
// dist is true.
func (a *Apt) Upgrade(dist bool, options ...string) error {
	if len(options) == 0 {
		options = DefaultOptions
	}
	cmd := "upgrade"
	if dist {
		cmd = "dist-upgrade"
	}
	args := append(append([]string(nil), options...), cmd)
	return errors.Trace(a.aptGet(args...))
}

// Purge removes pkgs and their configuration.
func (a *Apt) Purge(pkgs []string) error {
	if len(pkgs) == 0 {
		return nil
	}
	return errors.Trace(a.aptGet(append([]string{"purge"}, pkgs...)...))
}

// InstalledVersion returns the installed version of pkg. A NotFound
// error means the package is not installed.
func (a *Apt) InstalledVersion(pkg string) (string, error) {
	out, err := runner.RunCommand(a.Runner, "dpkg-query", "--show", "--showformat=${Status}|${Version}", pkg)
	if runner.ExitCode(err) == 1 {
		return "", errors.NotFoundf("package %q", pkg)
	} else if err != nil {
		return "", errors.Trace(err)
	}
	parts := strings.SplitN(strings.TrimSpace(string(out)), "|", 2)
	if len(parts) != 2 || !strings.HasSuffix(parts[0], " installed") || parts[1] == "" {
		return "", errors.NotFoundf("package %q", pkg)
	}
	return parts[1], nil
}

// FilterInstalled returns the packages of pkgs that are not installed,
// preserving order.
func (a *Apt) FilterInstalled(pkgs []string) ([]string, error) {
	var missing []string
	for _, pkg := range pkgs {
		_, err := a.InstalledVersion(pkg)
		if errors.IsNotFound(err) {
			missing = append(missing, pkg)
		} else if err != nil {
			return nil, errors.Trace(err)
		}
	}
	return missing, nil
}

// CandidateVersion returns the version apt would install for pkg.
func (a *Apt) CandidateVersion(pkg string) (string, error) {
	out, err := runner.RunCommand(a.Runner, "apt-cache", "policy", pkg)
	if err != nil {
		return "", errors.Trace(err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Candidate:") {
			version := strings.TrimSpace(strings.TrimPrefix(line, "Candidate:"))
			if version == "" || version == "(none)" {
				break
			}
			return version, nil
		}
	}
	return "", errors.NotFoundf("candidate for %q", pkg)
}
