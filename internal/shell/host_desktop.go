//go:build desktop

package shell

import "log/slog"

func newHost(log *slog.Logger) Host { return NewWails(log) }
