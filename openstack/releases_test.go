// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package openstack_test

import (
	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/charm-neutron-api/openstack"
)

type ReleasesSuite struct{}

var _ = gc.Suite(&ReleasesSuite{})

func (*ReleasesSuite) TestCompareRelease(c *gc.C) {
	c.Check(openstack.CompareRelease("kilo", "liberty"), gc.Equals, -1)
	c.Check(openstack.CompareRelease("mitaka", "mitaka"), gc.Equals, 0)
	c.Check(openstack.CompareRelease("antelope", "zed"), gc.Equals, 1)
	c.Check(openstack.CompareRelease("bogus", "diablo"), gc.Equals, -1)
	c.Check(openstack.AtLeast("bobcat", "kilo"), jc.IsTrue)
	c.Check(openstack.AtLeast("juno", "kilo"), jc.IsFalse)
}

func (*ReleasesSuite) TestSeriesRelease(c *gc.C) {
	release, err := openstack.SeriesRelease("xenial")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(release, gc.Equals, "mitaka")

	_, err = openstack.SeriesRelease("warty")
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
}

func (*ReleasesSuite) TestCompareSeries(c *gc.C) {
	c.Check(openstack.CompareSeries("precise", "trusty"), gc.Equals, -1)
	c.Check(openstack.CompareSeries("trusty", "trusty"), gc.Equals, 0)
	c.Check(openstack.CompareSeries("noble", "jammy"), gc.Equals, 1)
}

func (*ReleasesSuite) TestVersionRelease(c *gc.C) {
	for version, expected := range map[string]string{
		"1:2014.1.3-0ubuntu1":  "icehouse",
		"1:2015.1.0-0ubuntu1":  "kilo",
		"2:7.0.0-0ubuntu1":     "liberty",
		"2:8.4.0-0ubuntu7.3":   "mitaka",
		"2:22.0.0-0ubuntu1~cl": "antelope",
	} {
		release, err := openstack.VersionRelease(version)
		c.Check(err, jc.ErrorIsNil)
		c.Check(release, gc.Equals, expected, gc.Commentf("version %s", version))
	}
	_, err := openstack.VersionRelease("2:99.0.0")
	c.Check(err, jc.Satisfies, errors.IsNotFound)
	_, err = openstack.VersionRelease("unknown")
	c.Check(err, jc.Satisfies, errors.IsNotValid)
}

func (*ReleasesSuite) TestUpstreamVersion(c *gc.C) {
	c.Check(openstack.UpstreamVersion("2:8.0.0-0ubuntu1"), gc.Equals, "8.0.0")
	c.Check(openstack.UpstreamVersion("22.0.0~b1-0ubuntu1"), gc.Equals, "22.0.0")
	c.Check(openstack.UpstreamVersion("7.0.0"), gc.Equals, "7.0.0")
}
