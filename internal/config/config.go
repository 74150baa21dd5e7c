package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/uroflow/desktop/internal/logger"
)

// DefaultBackendPort is used when no override is configured.
const DefaultBackendPort = 8000

// DefaultPackaged is the packaging flag of this build. Release builds set it
// with -ldflags "-X github.com/uroflow/desktop/internal/config.DefaultPackaged=true".
var DefaultPackaged = "false"

// Config is resolved once at startup and read-only afterwards.
type Config struct {
	BackendPort  int           `mapstructure:"backend_port"`
	RendererURL  string        `mapstructure:"renderer_url"`
	Packaged     bool          `mapstructure:"packaged"`
	InstallRoot  string        `mapstructure:"install_root"`
	ResourcesDir string        `mapstructure:"resources_dir"`
	FrontendDir  string        `mapstructure:"frontend_dir"`
	Bridge       string        `mapstructure:"bridge"`
	Env          []string      `mapstructure:"env"`
	EnvFiles     []string      `mapstructure:"env_files"`
	HistoryDSN   string        `mapstructure:"history_dsn"`
	MetricsAddr  string        `mapstructure:"metrics_addr"`
	Log          logger.Config `mapstructure:"log"`
}

// envNames lists, per key, the environment variables consulted in order.
var envNames = map[string][]string{
	"backend_port":        {"BACKEND_PORT", "UROFLOW_BACKEND_PORT"},
	"renderer_url":        {"RENDERER_URL", "ELECTRON_RENDERER_URL"},
	"packaged":            {"UROFLOW_PACKAGED"},
	"install_root":        {"UROFLOW_INSTALL_ROOT"},
	"resources_dir":       {"UROFLOW_RESOURCES"},
	"frontend_dir":        {"UROFLOW_FRONTEND"},
	"history_dsn":         {"UROFLOW_HISTORY_DSN"},
	"metrics_addr":        {"UROFLOW_METRICS_ADDR"},
	"log.slog.level":      {"UROFLOW_LOG_LEVEL"},
	"log.slog.format":     {"UROFLOW_LOG_FORMAT"},
	"log.file.dir":        {"UROFLOW_BACKEND_LOG_DIR"},
	"log.slog.color":      {"UROFLOW_LOG_COLOR"},
	"log.slog.timestamps": {"UROFLOW_LOG_TIMESTAMPS"},
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"port":         "backend_port",
	"renderer-url": "renderer_url",
	"packaged":     "packaged",
	"root":         "install_root",
	"resources":    "resources_dir",
	"frontend":     "frontend_dir",
	"history":      "history_dsn",
	"metrics-addr": "metrics_addr",
	"log-level":    "log.slog.level",
	"backend-logs": "log.file.dir",
}

// Load resolves configuration. Priority: changed flags > environment >
// TOML file at path (optional) > defaults.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault("backend_port", DefaultBackendPort)
	v.SetDefault("packaged", DefaultPackaged)
	v.SetDefault("log.slog.level", string(logger.LevelInfo))
	v.SetDefault("log.slog.format", string(logger.FormatText))
	v.SetDefault("log.slog.color", true)
	v.SetDefault("log.slog.timestamps", true)

	for key, names := range envNames {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, err
		}
	}
	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	port, err := parsePort(v.GetString("backend_port"))
	if err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	c.BackendPort = port
	if err := c.finalize(); err != nil {
		return nil, err
	}
	return &c, nil
}

// BackendEnv returns the extra backend environment: env_files in order,
// then the inline env list.
func (c *Config) BackendEnv() ([]string, error) {
	var out []string
	for _, f := range c.EnvFiles {
		pairs, err := LoadEnvFile(f)
		if err != nil {
			return nil, err
		}
		out = append(out, pairs...)
	}
	return append(out, c.Env...), nil
}

func parsePort(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultBackendPort, nil
	}
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid backend port %q: %w", s, err)
	}
	if p < 1 || p > 65535 {
		return 0, fmt.Errorf("invalid backend port %d: out of range", p)
	}
	return p, nil
}

func (c *Config) finalize() error {
	exe, _ := os.Executable()
	if c.InstallRoot == "" {
		wd, err := os.Getwd()
		if err != nil && exe == "" {
			return errors.New("cannot determine install root: " + err.Error())
		}
		c.InstallRoot = DefaultInstallRoot(exe, wd)
	}
	if c.ResourcesDir == "" {
		c.ResourcesDir = DefaultResourcesDir(exe, runtime.GOOS)
	}
	if c.FrontendDir == "" {
		if c.Packaged {
			c.FrontendDir = filepath.Join(c.ResourcesDir, "frontend")
		} else {
			c.FrontendDir = filepath.Join(c.InstallRoot, "frontend")
		}
	}
	if c.Bridge == "" {
		c.Bridge = filepath.Join(c.FrontendDir, "bridge.js")
	}
	return nil
}

// DefaultInstallRoot anchors the source checkout on the launcher binary:
// <root>/bin/uroflow-desktop or <root>/uroflow-desktop. Binaries from the go
// build cache (go run, go test) have no stable location and use wd.
func DefaultInstallRoot(exe, wd string) string {
	if exe == "" || inBuildCache(exe) {
		return wd
	}
	dir := filepath.Dir(exe)
	if filepath.Base(dir) == "bin" {
		return filepath.Dir(dir)
	}
	return dir
}

func inBuildCache(exe string) bool {
	for _, part := range strings.Split(filepath.ToSlash(exe), "/") {
		if strings.HasPrefix(part, "go-build") {
			return true
		}
	}
	return false
}

// DefaultResourcesDir mirrors where bundlers place app resources relative
// to the executable: Contents/Resources on macOS, ./resources elsewhere.
func DefaultResourcesDir(exe, goos string) string {
	dir := filepath.Dir(exe)
	if goos == "darwin" {
		return filepath.Join(filepath.Dir(dir), "Resources")
	}
	return filepath.Join(dir, "resources")
}

// LoadEnvFile parses a simple .env file and returns "KEY=VALUE" entries in file order.
// Lines starting with # are ignored; no export keyword or quote handling.
func LoadEnvFile(path string) ([]string, error) {
	// Mitigate G304: sanitize user-provided path by cleaning it before use.
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i > 0 {
			out = append(out, strings.TrimSpace(line[:i])+"="+strings.TrimSpace(line[i+1:]))
		}
	}
	return out, nil
}
