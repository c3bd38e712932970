// Copyright 2015 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

//go:build linux

package systemd

import (
	"github.com/coreos/go-systemd/v22/util"
)

// IsRunning reports whether systemd booted the machine.
func IsRunning() bool {
	return util.IsRunningSystemd()
}
