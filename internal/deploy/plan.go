package deploy

import (
	"errors"
	"fmt"
	"strings"
)

// LoopbackHost is the address the development backend binds to.
const LoopbackHost = "127.0.0.1"

// Plan describes how to start the backend. It is computed per start attempt
// and never mutated afterwards.
type Plan struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
	WorkDir string   `json:"work_dir"`
	Port    int      `json:"port"`
}

// String renders the plan as a single command line for logs.
func (p Plan) String() string {
	if len(p.Args) == 0 {
		return p.Command
	}
	return p.Command + " " + strings.Join(p.Args, " ")
}

// ErrBackendMissing reports that the bundled backend executable is absent.
var ErrBackendMissing = errors.New("bundled backend missing")

// BackendMissingError carries the path that was expected to hold the bundled backend.
type BackendMissingError struct {
	Path string
}

func (e *BackendMissingError) Error() string {
	return fmt.Sprintf("bundled backend binary is missing at %s", e.Path)
}

func (e *BackendMissingError) Is(target error) bool { return target == ErrBackendMissing }
