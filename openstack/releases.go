// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package openstack knows about OpenStack releases, the sources they
// are installed from, the Neutron plugins they ship and how an
// OpenStack unit reports its workload status.
package openstack

import (
	"regexp"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("neutronapi.openstack")

// Releases lists OpenStack release codenames, oldest first. Codenames
// wrap around the alphabet so they must only be compared by position.
var Releases = []string{
	"diablo",
	"essex",
	"folsom",
	"grizzly",
	"havana",
	"icehouse",
	"juno",
	"kilo",
	"liberty",
	"mitaka",
	"newton",
	"ocata",
	"pike",
	"queens",
	"rocky",
	"stein",
	"train",
	"ussuri",
	"victoria",
	"wallaby",
	"xena",
	"yoga",
	"zed",
	"antelope",
	"bobcat",
	"caracal",
}

// seriesReleases pairs Ubuntu series, oldest first, with the OpenStack
// release each ships by default.
var seriesReleases = []struct {
	series  string
	release string
}{
	{"precise", "essex"},
	{"quantal", "folsom"},
	{"raring", "grizzly"},
	{"saucy", "havana"},
	{"trusty", "icehouse"},
	{"utopic", "juno"},
	{"vivid", "kilo"},
	{"wily", "liberty"},
	{"xenial", "mitaka"},
	{"yakkety", "newton"},
	{"zesty", "ocata"},
	{"artful", "pike"},
	{"bionic", "queens"},
	{"cosmic", "rocky"},
	{"disco", "stein"},
	{"eoan", "train"},
	{"focal", "ussuri"},
	{"groovy", "victoria"},
	{"hirsute", "wallaby"},
	{"impish", "xena"},
	{"jammy", "yoga"},
	{"kinetic", "zed"},
	{"lunar", "antelope"},
	{"mantic", "bobcat"},
	{"noble", "caracal"},
}

// neutronVersions maps the upstream version prefix of neutron-common
// to its release.
var neutronVersions = map[string]string{
	"2014.1": "icehouse",
	"2014.2": "juno",
	"2015.1": "kilo",
	"7":      "liberty",
	"8":      "mitaka",
	"9":      "newton",
	"10":     "ocata",
	"11":     "pike",
	"12":     "queens",
	"13":     "rocky",
	"14":     "stein",
	"15":     "train",
	"16":     "ussuri",
	"17":     "victoria",
	"18":     "wallaby",
	"19":     "xena",
	"20":     "yoga",
	"21":     "zed",
	"22":     "antelope",
	"23":     "bobcat",
	"24":     "caracal",
}

func releaseIndex(release string) int {
	for i, r := range Releases {
		if r == release {
			return i
		}
	}
	return -1
}

// IsRelease reports whether release is a known codename.
func IsRelease(release string) bool {
	return releaseIndex(release) >= 0
}

// CompareRelease returns -1, 0 or 1 as a is older than, the same as or
// newer than b. Unknown codenames sort before every known one.
func CompareRelease(a, b string) int {
	ia, ib := releaseIndex(a), releaseIndex(b)
	switch {
	case ia < ib:
		return -1
	case ia > ib:
		return 1
	}
	return 0
}

// AtLeast reports whether release is min or newer.
func AtLeast(release, min string) bool {
	return CompareRelease(release, min) >= 0
}

// SeriesRelease returns the release shipped by an Ubuntu series.
func SeriesRelease(series string) (string, error) {
	for _, sr := range seriesReleases {
		if sr.series == series {
			return sr.release, nil
		}
	}
	return "", errors.NotFoundf("OpenStack release for series %q", series)
}

// CompareSeries orders Ubuntu series codenames like CompareRelease.
func CompareSeries(a, b string) int {
	index := func(series string) int {
		for i, sr := range seriesReleases {
			if sr.series == series {
				return i
			}
		}
		return -1
	}
	ia, ib := index(a), index(b)
	switch {
	case ia < ib:
		return -1
	case ia > ib:
		return 1
	}
	return 0
}

var upstreamVersion = regexp.MustCompile(`^(?:\d+:)?(\d+(?:\.\d+)?)`)

// UpstreamVersion strips the epoch and Debian revision from a package
// version: "2:8.0.0-0ubuntu1" gives "8.0.0".
func UpstreamVersion(version string) string {
	if i := strings.Index(version, ":"); i >= 0 {
		version = version[i+1:]
	}
	if i := strings.Index(version, "-"); i >= 0 {
		version = version[:i]
	}
	if i := strings.Index(version, "~"); i >= 0 {
		version = version[:i]
	}
	return version
}

// VersionRelease maps a neutron package version to its release.
func VersionRelease(version string) (string, error) {
	m := upstreamVersion.FindStringSubmatch(version)
	if m == nil {
		return "", errors.NotValidf("package version %q", version)
	}
	if release, ok := neutronVersions[m[1]]; ok {
		return release, nil
	}
	major := strings.SplitN(m[1], ".", 2)[0]
	if release, ok := neutronVersions[major]; ok {
		return release, nil
	}
	return "", errors.NotFoundf("OpenStack release for version %q", version)
}
