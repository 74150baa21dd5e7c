package backend

import (
	"errors"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/uroflow/desktop/internal/metrics"
)

// Exit describes how a backend run ended. Code is nil when the process was
// terminated by a signal or never started; Signal is empty unless a signal
// terminated it. Err is set for spawn failures and for wait errors that are
// not a plain non-zero exit.
type Exit struct {
	PID     int
	Command string
	Code    *int
	Signal  string
	Err     error
	Ran     time.Duration
}

// Spawned reports whether the process ever ran.
func (e Exit) Spawned() bool { return e.PID != 0 }

func (e Exit) codeString() string {
	if e.Code == nil {
		return "none"
	}
	return strconv.Itoa(*e.Code)
}

func (e Exit) signalString() string {
	if e.Signal == "" {
		return "none"
	}
	return e.Signal
}

func (e Exit) outcome() string {
	switch {
	case e.Signal != "":
		return metrics.OutcomeSignaled
	case e.Code != nil && *e.Code == 0:
		return metrics.OutcomeClean
	default:
		return metrics.OutcomeFailed
	}
}

// exitFrom builds an Exit from the state left by cmd.Wait.
func exitFrom(ps *os.ProcessState, waitErr error) Exit {
	var ex Exit
	var ee *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &ee) {
		ex.Err = waitErr
	}
	if ps == nil {
		return ex
	}
	if sig := signalOf(ps); sig != "" {
		ex.Signal = sig
		return ex
	}
	code := ps.ExitCode()
	if code >= 0 {
		ex.Code = &code
	}
	return ex
}
