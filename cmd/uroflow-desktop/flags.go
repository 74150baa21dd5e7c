package main

import "github.com/spf13/pflag"

// GlobalFlags holds persistent flags shared by every command. Values are
// read through config.Load, which only honours flags the user changed.
type GlobalFlags struct {
	ConfigPath  string
	Port        int
	RendererURL string
	Packaged    bool
	Root        string
	Resources   string
	Frontend    string
	History     string
	MetricsAddr string
	LogLevel    string
	BackendLogs string
}

func (g *GlobalFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&g.ConfigPath, "config", "", "path to TOML config file (optional)")
	fs.IntVar(&g.Port, "port", 0, "backend port (env BACKEND_PORT, default 8000)")
	fs.StringVar(&g.RendererURL, "renderer-url", "", "development renderer URL (env RENDERER_URL)")
	fs.BoolVar(&g.Packaged, "packaged", false, "run as a packaged build (bundled backend)")
	fs.StringVar(&g.Root, "root", "", "installation root (default: working directory)")
	fs.StringVar(&g.Resources, "resources", "", "resources directory of a packaged build")
	fs.StringVar(&g.Frontend, "frontend", "", "frontend directory holding dist/index.html")
	fs.StringVar(&g.History, "history", "", "backend run history DSN (sqlite path or postgres URL)")
	fs.StringVar(&g.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fs.StringVar(&g.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&g.BackendLogs, "backend-logs", "", "directory for rotated backend output files")
}

// HistoryFlags holds flags for the history command.
type HistoryFlags struct {
	Limit int
	JSON  bool
}
