// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package packaging_test

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/charm-neutron-api/hook/hooktesting"
	"github.com/juju/charm-neutron-api/packaging"
)

type SourcesSuite struct {
	agent   *hooktesting.Agent
	sources *packaging.Sources
}

var _ = gc.Suite(&SourcesSuite{})

func (s *SourcesSuite) SetUpTest(c *gc.C) {
	s.agent = hooktesting.NewAgent("neutron-api/0")
	dir := c.MkDir()
	lsb := filepath.Join(dir, "lsb-release")
	err := os.WriteFile(lsb, []byte("DISTRIB_ID=Ubuntu\nDISTRIB_RELEASE=22.04\nDISTRIB_CODENAME=jammy\nDISTRIB_DESCRIPTION=\"Ubuntu 22.04 LTS\"\n"), 0644)
	c.Assert(err, jc.ErrorIsNil)
	s.sources = &packaging.Sources{
		Apt:            packaging.NewApt(s.agent),
		SourcesDir:     filepath.Join(dir, "sources.list.d"),
		LSBReleaseFile: lsb,
	}
}

func (s *SourcesSuite) TestCloudArchivePocket(c *gc.C) {
	for source, expected := range map[string]string{
		"cloud:jammy-antelope":         "jammy-updates/antelope",
		"cloud:focal-yoga/proposed":    "focal-proposed/yoga",
		"cloud:trusty-liberty/updates": "trusty-updates/liberty",
	} {
		pocket, err := packaging.CloudArchivePocket(source)
		c.Check(err, jc.ErrorIsNil)
		c.Check(pocket, gc.Equals, expected)
	}
	_, err := packaging.CloudArchivePocket("cloud:jammy")
	c.Assert(err, jc.Satisfies, errors.IsNotValid)
}

func (s *SourcesSuite) TestAddCloudArchive(c *gc.C) {
	err := s.sources.Add("cloud:jammy-antelope", "")
	c.Assert(err, jc.ErrorIsNil)
	data, err := os.ReadFile(filepath.Join(s.sources.SourcesDir, "cloud-archive.list"))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(string(data), gc.Equals, "deb http://ubuntu-cloud.archive.canonical.com/ubuntu jammy-updates/antelope main\n")
	c.Assert(s.agent.CallNames(), jc.DeepEquals, []string{"apt-get"})
}

func (s *SourcesSuite) TestAddProposed(c *gc.C) {
	err := s.sources.Add("proposed", "")
	c.Assert(err, jc.ErrorIsNil)
	data, err := os.ReadFile(filepath.Join(s.sources.SourcesDir, "proposed.list"))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(string(data), gc.Equals, "deb http://archive.ubuntu.com/ubuntu jammy-proposed main universe multiverse restricted\n")
}

func (s *SourcesSuite) TestAddPPAWithKey(c *gc.C) {
	err := s.sources.Add("ppa:project-calico/calico-1.4", "C8A8E2E1")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(s.agent.CallsTo("add-apt-repository"), jc.DeepEquals, [][]string{{"--yes", "ppa:project-calico/calico-1.4"}})
	c.Assert(s.agent.CallsTo("apt-key"), jc.DeepEquals, [][]string{{
		"adv", "--keyserver", "hkp://keyserver.ubuntu.com:80", "--recv-keys", "C8A8E2E1",
	}})
}

func (s *SourcesSuite) TestAddArmouredKey(c *gc.C) {
	err := s.sources.Add("deb http://repo.midonet.org/midonet/v2015.06 stable main", "-----BEGIN PGP PUBLIC KEY BLOCK-----\nabc\n-----END PGP PUBLIC KEY BLOCK-----")
	c.Assert(err, jc.ErrorIsNil)
	calls := s.agent.CallsTo("apt-key")
	c.Assert(calls, gc.HasLen, 1)
	c.Assert(calls[0][0], gc.Equals, "add")
}

func (s *SourcesSuite) TestAddDistroIsNoop(c *gc.C) {
	c.Assert(s.sources.Add("distro", ""), jc.ErrorIsNil)
	c.Assert(s.agent.Calls, gc.HasLen, 0)
	c.Assert(s.sources.Add("bogus", ""), jc.Satisfies, errors.IsNotValid)
}

func (s *SourcesSuite) TestSeries(c *gc.C) {
	series, err := s.sources.Series()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(series, gc.Equals, "jammy")
}
