// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package packaging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
	"github.com/juju/utils/v4/keyvalues"

	"github.com/juju/charm-neutron-api/runner"
)

const (
	cloudArchiveURL  = "http://ubuntu-cloud.archive.canonical.com/ubuntu"
	ubuntuArchiveURL = "http://archive.ubuntu.com/ubuntu"
	keyserver        = "hkp://keyserver.ubuntu.com:80"
)

// Sources manages apt sources.
type Sources struct {
	Apt *Apt

	// SourcesDir is where extra .list files are written.
	SourcesDir string

	// LSBReleaseFile describes the running distribution.
	LSBReleaseFile string
}

// NewSources returns Sources writing to the system apt configuration.
func NewSources(apt *Apt) *Sources {
	return &Sources{
		Apt:            apt,
		SourcesDir:     "/etc/apt/sources.list.d",
		LSBReleaseFile: "/etc/lsb-release",
	}
}

// LSBRelease reads the KEY=value pairs of an lsb-release file.
func LSBRelease(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, strings.Replace(line, `"`, "", -1))
		}
	}
	values, err := keyvalues.Parse(lines, true)
	if err != nil {
		return nil, errors.Annotatef(err, "parsing %s", path)
	}
	return values, nil
}

// Series returns the codename of the running Ubuntu release.
func (s *Sources) Series() (string, error) {
	values, err := LSBRelease(s.LSBReleaseFile)
	if err != nil {
		return "", errors.Trace(err)
	}
	series := strings.ToLower(values["DISTRIB_CODENAME"])
	if series == "" {
		return "", errors.NotFoundf("DISTRIB_CODENAME in %s", s.LSBReleaseFile)
	}
	return series, nil
}

// CloudArchivePocket maps a cloud: source to its archive pocket, for
// example "cloud:jammy-antelope/proposed" to "jammy-proposed/antelope".
func CloudArchivePocket(source string) (string, error) {
	spec := strings.TrimPrefix(source, "cloud:")
	pocket := "updates"
	if i := strings.Index(spec, "/"); i >= 0 {
		spec, pocket = spec[:i], spec[i+1:]
	}
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", errors.NotValidf("cloud archive source %q", source)
	}
	switch pocket {
	case "updates", "proposed", "staging":
	default:
		return "", errors.NotValidf("cloud archive pocket %q", pocket)
	}
	return fmt.Sprintf("%s-%s/%s", parts[0], pocket, parts[1]), nil
}

// Add configures source, importing key when one is given. Supported
// sources are ppa:, cloud:, deb lines and http URLs, "proposed" or
// "distro-proposed", and "distro" (a no-op).
func (s *Sources) Add(source, key string) error {
	source = strings.TrimSpace(source)
	switch {
	case source == "" || source == "distro":
		return nil
	case strings.HasPrefix(source, "ppa:"), strings.HasPrefix(source, "deb "), strings.HasPrefix(source, "http"):
		if _, err := runner.Run(s.Apt.Runner, runner.Command{
			Name:        "add-apt-repository",
			Args:        []string{"--yes", source},
			Environment: s.Apt.Environment,
		}); err != nil {
			return errors.Annotatef(err, "adding source %q", source)
		}
	case strings.HasPrefix(source, "cloud:"):
		pocket, err := CloudArchivePocket(source)
		if err != nil {
			return errors.Trace(err)
		}
		if err := s.Apt.Install([]string{"ubuntu-cloud-keyring"}); err != nil {
			return errors.Trace(err)
		}
		line := fmt.Sprintf("deb %s %s main\n", cloudArchiveURL, pocket)
		if err := s.writeList("cloud-archive.list", line); err != nil {
			return errors.Trace(err)
		}
	case source == "proposed" || source == "distro-proposed":
		series, err := s.Series()
		if err != nil {
			return errors.Trace(err)
		}
		line := fmt.Sprintf("deb %s %s-proposed main universe multiverse restricted\n", ubuntuArchiveURL, series)
		if err := s.writeList("proposed.list", line); err != nil {
			return errors.Trace(err)
		}
	default:
		return errors.NotValidf("source %q", source)
	}
	if key != "" {
		return errors.Trace(s.ImportKey(key))
	}
	return nil
}

func (s *Sources) writeList(name, content string) error {
	if err := os.MkdirAll(s.SourcesDir, 0755); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(utils.AtomicWriteFile(filepath.Join(s.SourcesDir, name), []byte(content), 0644))
}

// ImportKey imports an ASCII armoured key, or fetches key by id from
// the Ubuntu keyserver.
func (s *Sources) ImportKey(key string) error {
	key = strings.TrimSpace(key)
	if strings.HasPrefix(key, "-----BEGIN PGP") {
		f, err := os.CreateTemp("", "apt-key")
		if err != nil {
			return errors.Trace(err)
		}
		defer os.Remove(f.Name())
		if _, err := f.WriteString(key + "\n"); err != nil {
			f.Close()
			return errors.Trace(err)
		}
		if err := f.Close(); err != nil {
			return errors.Trace(err)
		}
		_, err = runner.Run(s.Apt.Runner, runner.Command{
			Name:        "apt-key",
			Args:        []string{"add", f.Name()},
			Environment: s.Apt.Environment,
		})
		return errors.Annotate(err, "importing apt key")
	}
	_, err := runner.Run(s.Apt.Runner, runner.Command{
		Name:        "apt-key",
		Args:        []string{"adv", "--keyserver", keyserver, "--recv-keys", key},
		Environment: s.Apt.Environment,
	})
	return errors.Annotatef(err, "fetching apt key %s", key)
}
