// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package openstack

import (
	"strings"

	"github.com/juju/errors"

	"github.com/juju/charm-neutron-api/packaging"
)

// SplitSource separates an origin of the form "source|key".
func SplitSource(origin string) (source, key string) {
	parts := strings.SplitN(origin, "|", 2)
	source = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		key = strings.TrimSpace(parts[1])
	}
	return source, key
}

// CodenameFromSource returns the OpenStack release an installation
// source provides on series. "distro" and "distro-proposed" give the
// series default; cloud: sources name their release; ppa:, deb and
// http sources are searched for a codename and otherwise give the
// series default.
func CodenameFromSource(origin, series string) (string, error) {
	source, _ := SplitSource(origin)
	switch {
	case source == "" || source == "distro" || source == "distro-proposed":
		return SeriesRelease(series)
	case strings.HasPrefix(source, "cloud:"):
		spec := strings.TrimPrefix(source, "cloud:")
		spec = strings.SplitN(spec, "/", 2)[0]
		parts := strings.SplitN(spec, "-", 2)
		if len(parts) != 2 || !IsRelease(parts[1]) {
			return "", errors.NotValidf("cloud archive source %q", source)
		}
		return parts[1], nil
	case strings.HasPrefix(source, "ppa:"), strings.HasPrefix(source, "deb"), strings.HasPrefix(source, "http"):
		for _, release := range Releases {
			if strings.Contains(source, release) {
				return release, nil
			}
		}
		return SeriesRelease(series)
	case source == "proposed":
		return SeriesRelease(series)
	}
	return "", errors.NotValidf("installation source %q", source)
}

// Installer installs OpenStack packages from a configured origin.
type Installer struct {
	Apt     *packaging.Apt
	Sources *packaging.Sources

	// Origin is the openstack-origin of the unit.
	Origin string
}

// Series returns the Ubuntu series of the machine.
func (i *Installer) Series() (string, error) {
	return i.Sources.Series()
}

// CodenameFromSource returns the release origin provides on this
// machine.
func (i *Installer) CodenameFromSource(origin string) (string, error) {
	series, err := i.Series()
	if err != nil {
		return "", errors.Trace(err)
	}
	return CodenameFromSource(origin, series)
}

// ConfigureInstallationSource adds the apt source named by origin.
func (i *Installer) ConfigureInstallationSource(origin string) error {
	source, key := SplitSource(origin)
	if source == "distro-proposed" {
		series, err := i.Series()
		if err != nil {
			return errors.Trace(err)
		}
		if series == "precise" {
			return errors.NotSupportedf("distro-proposed on precise")
		}
	}
	logger.Infof("configuring installation source %q", source)
	return errors.Annotatef(i.Sources.Add(source, key), "configuring installation source")
}

// OSRelease returns the release pkg is installed from. When pkg is not
// installed the release the configured origin provides is returned.
func (i *Installer) OSRelease(pkg string) (string, error) {
	version, err := i.Apt.InstalledVersion(pkg)
	if errors.IsNotFound(err) {
		return i.CodenameFromSource(i.Origin)
	} else if err != nil {
		return "", errors.Trace(err)
	}
	return VersionRelease(version)
}

// UpgradeAvailable reports whether the configured origin provides a
// newer release than the one pkg is installed from.
func (i *Installer) UpgradeAvailable(pkg string) (bool, error) {
	current, err := i.OSRelease(pkg)
	if err != nil {
		return false, errors.Trace(err)
	}
	available, err := i.CodenameFromSource(i.Origin)
	if err != nil {
		return false, errors.Trace(err)
	}
	return CompareRelease(available, current) > 0, nil
}

// ApplicationVersion returns the upstream version of pkg, falling back
// to the release codename when pkg is not installed.
func (i *Installer) ApplicationVersion(pkg string) (string, error) {
	version, err := i.Apt.InstalledVersion(pkg)
	if errors.IsNotFound(err) {
		return i.OSRelease(pkg)
	} else if err != nil {
		return "", errors.Trace(err)
	}
	return UpstreamVersion(version), nil
}
