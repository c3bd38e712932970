// Copyright 2015 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// The service package provides control over the host's system services
// and restarts them when the config files they read change.
package service
