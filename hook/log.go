// Copyright 2016 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hook

import (
	"fmt"
	"os"

	"github.com/juju/loggo"
)

// LogWriter is a loggo.Writer forwarding every entry to juju-log so it
// ends up in the unit log.
type LogWriter struct {
	client *Client
}

// NewLogWriter returns a LogWriter logging through client.
func NewLogWriter(client *Client) *LogWriter {
	return &LogWriter{client: client}
}

// Write is part of the loggo.Writer interface.
func (w *LogWriter) Write(entry loggo.Entry) {
	msg := fmt.Sprintf("%s %s", entry.Module, entry.Message)
	if err := w.client.Log(jujuLogLevel(entry.Level), msg); err != nil {
		// Logging through loggo here would recurse.
		fmt.Fprintf(os.Stderr, "juju-log failed: %v: %s\n", err, msg)
	}
}

func jujuLogLevel(level loggo.Level) string {
	switch level {
	case loggo.TRACE:
		return LevelTrace
	case loggo.DEBUG:
		return LevelDebug
	case loggo.INFO:
		return LevelInfo
	case loggo.WARNING:
		return LevelWarning
	default:
		return LevelError
	}
}
