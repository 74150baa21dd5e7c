package deploy

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/spf13/afero"
)

// Conventional locations, relative to the resources directory (packaged) or
// the installation root (development).
const (
	BundledBackendDir  = "backend"
	BundledBackendName = "uroflow-backend"
	VenvDir            = "venv"
	SystemInterpreter  = "python3"
	BackendModule      = "uvicorn"
	BackendApp         = "main:app"
)

// Inputs holds everything Resolve needs; none of it changes during a run.
type Inputs struct {
	Mode         Mode
	InstallRoot  string
	ResourcesDir string
	Port         int
}

// Resolver computes launch plans. It only checks for file existence and never starts anything.
type Resolver struct {
	Fs   afero.Fs
	GOOS string // defaults to runtime.GOOS
}

func NewResolver() *Resolver { return &Resolver{Fs: afero.NewOsFs()} }

// Resolve returns the launch plan for in. In packaged mode a missing backend
// executable yields a *BackendMissingError; development mode never fails.
func (r *Resolver) Resolve(in Inputs) (Plan, error) {
	if in.Mode == Packaged {
		return r.packaged(in)
	}
	return r.development(in), nil
}

func (r *Resolver) packaged(in Inputs) (Plan, error) {
	exe := BundledBackendPath(in.ResourcesDir, r.goos())
	ok, err := r.isFile(exe)
	if err != nil {
		return Plan{}, err
	}
	if !ok {
		return Plan{}, &BackendMissingError{Path: exe}
	}
	return Plan{Command: exe, Args: []string{}, WorkDir: in.ResourcesDir, Port: in.Port}, nil
}

func (r *Resolver) development(in Inputs) Plan {
	cmd := SystemInterpreter
	venv := VenvInterpreterPath(in.InstallRoot, r.goos())
	if ok, _ := r.isFile(venv); ok {
		cmd = venv
	}
	return Plan{
		Command: cmd,
		Args:    DevArgs(in.Port),
		WorkDir: in.InstallRoot,
		Port:    in.Port,
	}
}

// DevArgs is the fixed interpreter invocation that serves the backend on loopback.
func DevArgs(port int) []string {
	return []string{"-m", BackendModule, BackendApp, "--host", LoopbackHost, "--port", strconv.Itoa(port)}
}

// BundledBackendPath is where packaging places the compiled backend.
func BundledBackendPath(resourcesDir, goos string) string {
	name := BundledBackendName
	if goos == "windows" {
		name += ".exe"
	}
	return filepath.Join(resourcesDir, BundledBackendDir, name)
}

// VenvInterpreterPath is the conventional virtual-environment interpreter under root.
func VenvInterpreterPath(root, goos string) string {
	if goos == "windows" {
		return filepath.Join(root, VenvDir, "Scripts", "python.exe")
	}
	return filepath.Join(root, VenvDir, "bin", "python")
}

func (r *Resolver) isFile(path string) (bool, error) {
	fi, err := r.fs().Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !fi.IsDir(), nil
}

func (r *Resolver) fs() afero.Fs {
	if r.Fs == nil {
		return afero.NewOsFs()
	}
	return r.Fs
}

func (r *Resolver) goos() string {
	if r.GOOS == "" {
		return runtime.GOOS
	}
	return r.GOOS
}
