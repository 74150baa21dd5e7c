// Package shell provides the hosts that window.Controller creates windows
// in. Desktop builds (-tags desktop,production) use a native webview;
// other builds open the frontend in the default browser.
package shell

import (
	"log/slog"

	"github.com/uroflow/desktop/internal/window"
)

// Host is a window.Shell with a native event loop. Main must run on the
// main goroutine and returns once the host has quit.
type Host interface {
	window.Shell
	Main() error
}

var (
	_ Host = (*Wails)(nil)
	_ Host = (*Browser)(nil)
)

// New returns the host this binary was built for.
func New(log *slog.Logger) Host { return newHost(log) }
