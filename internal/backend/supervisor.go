package backend

import (
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/uroflow/desktop/internal/deploy"
	"github.com/uroflow/desktop/internal/env"
	"github.com/uroflow/desktop/internal/history"
	"github.com/uroflow/desktop/internal/logger"
	"github.com/uroflow/desktop/internal/metrics"
)

// processName names the backend's output files.
const processName = "backend"

// waitDelay bounds how long Wait keeps reading output after the backend
// exits, in case a grandchild still holds the pipes.
const waitDelay = 2 * time.Second

// Options configures a Supervisor. Zero values fall back to the host's
// stdout/stderr, slog.Default and the OS environment.
type Options struct {
	Stdout   io.Writer
	Stderr   io.Writer
	Logger   *slog.Logger
	Log      logger.Config // optional rotated copies of backend output
	BaseEnv  []string      // nil inherits os.Environ()
	ExtraEnv []string      // "K=V" entries layered over the base
	History  history.Sink
}

// Supervisor starts, observes and stops the single backend process of a run.
// At most one run is active; callers start it once per application run.
type Supervisor struct {
	mu  sync.Mutex
	cur *run

	stdout   io.Writer
	stderr   io.Writer
	log      *slog.Logger
	logCfg   logger.Config
	baseEnv  []string
	extraEnv []string
	history  history.Sink

	terminate func(pid int) error
}

type run struct {
	cmd      *exec.Cmd
	pid      int
	command  string
	started  time.Time
	stopping bool
	closers  []io.Closer
	relays   []*relay
}

func New(opts Options) *Supervisor {
	s := &Supervisor{
		stdout:    opts.Stdout,
		stderr:    opts.Stderr,
		log:       opts.Logger,
		logCfg:    opts.Log,
		baseEnv:   opts.BaseEnv,
		extraEnv:  opts.ExtraEnv,
		history:   opts.History,
		terminate: terminate,
	}
	if s.stdout == nil {
		s.stdout = os.Stdout
	}
	if s.stderr == nil {
		s.stderr = os.Stderr
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("component", "backend")
	return s
}

// Start spawns the backend described by plan and returns immediately. The
// returned channel receives exactly one Exit and is then closed. A failed
// spawn is not returned as an error: it is logged and delivered as an Exit
// with Err set, leaving the supervisor idle.
func (s *Supervisor) Start(plan deploy.Plan) <-chan Exit {
	done := make(chan Exit, 1)

	// #nosec G204 -- command comes from the deployment resolver
	cmd := exec.Command(plan.Command, plan.Args...)
	cmd.Dir = plan.WorkDir
	cmd.Env = s.childEnv(plan.Port)
	cmd.WaitDelay = waitDelay
	configureSysProcAttr(cmd)

	fileOut, fileErr, err := s.logCfg.ProcessWriters(processName)
	if err != nil {
		s.log.Warn("backend output files disabled", "error", err)
	}
	outRelay := newRelay(s.stdout, asWriter(fileOut))
	errRelay := newRelay(s.stderr, asWriter(fileErr))
	cmd.Stdout = outRelay
	cmd.Stderr = errRelay

	r := &run{cmd: cmd, command: plan.String(), relays: []*relay{outRelay, errRelay}}
	for _, c := range []io.WriteCloser{fileOut, fileErr} {
		if c != nil {
			r.closers = append(r.closers, c)
		}
	}

	if err := cmd.Start(); err != nil {
		s.log.Error("backend spawn failed", "command", r.command, "dir", plan.WorkDir, "error", err)
		metrics.IncSpawnFailure()
		ex := Exit{Command: r.command, Err: err}
		s.record(history.EventExit, r, ex)
		r.close()
		done <- ex
		close(done)
		return done
	}

	r.pid = cmd.Process.Pid
	r.started = time.Now()
	s.mu.Lock()
	s.cur = r
	s.mu.Unlock()

	metrics.IncStart()
	s.log.Info("backend started", "pid", r.pid, "command", r.command, "dir", plan.WorkDir, "port", plan.Port)
	go s.monitor(r, done)
	return done
}

func (s *Supervisor) monitor(r *run, done chan<- Exit) {
	s.record(history.EventStart, r, Exit{})

	waitErr := r.cmd.Wait()
	ex := exitFrom(r.cmd.ProcessState, waitErr)
	ex.PID = r.pid
	ex.Command = r.command
	ex.Ran = time.Since(r.started)

	for _, rl := range r.relays {
		rl.flush()
	}
	s.mu.Lock()
	if s.cur == r {
		s.cur = nil
	}
	s.mu.Unlock()

	attrs := []any{"pid", ex.PID, "code", ex.codeString(), "signal", ex.signalString(), "uptime", ex.Ran.Round(time.Millisecond)}
	if ex.Err != nil {
		attrs = append(attrs, "error", ex.Err)
	}
	if dropped := r.relays[0].droppedWrites() + r.relays[1].droppedWrites(); dropped > 0 {
		attrs = append(attrs, "dropped_writes", dropped)
	}
	s.log.Info("backend exited", attrs...)
	metrics.ObserveExit(ex.outcome(), ex.Ran)
	s.record(history.EventExit, r, ex)
	r.close()

	done <- ex
	close(done)
}

// Stop asks the active backend to terminate and returns without waiting.
// It is a no-op when nothing runs or a stop was already requested for the
// current run. Errors from the request are discarded: the process may have
// exited concurrently.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	r := s.cur
	if r == nil || r.stopping {
		s.mu.Unlock()
		return
	}
	r.stopping = true
	s.mu.Unlock()

	metrics.IncStopRequest()
	s.log.Info("stopping backend", "pid", r.pid)
	if err := s.terminate(r.pid); err != nil {
		s.log.Debug("termination request ignored", "pid", r.pid, "error", err)
	}
}

// Active reports whether a backend process is currently running.
func (s *Supervisor) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil
}

// PID returns the active backend's pid, or 0.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return 0
	}
	return s.cur.pid
}

func (s *Supervisor) childEnv(port int) []string {
	e := env.ForBackend(port, s.extraEnv...)
	if s.baseEnv != nil {
		e.FromList(s.baseEnv)
	}
	return e.Merge()
}

func (s *Supervisor) record(t history.EventType, r *run, ex Exit) {
	if s.history == nil {
		return
	}
	hr := history.Run{Command: r.command, PID: r.pid, StartedAt: r.started}
	if t == history.EventExit {
		hr.ExitCode = -1
		if ex.Code != nil {
			hr.ExitCode = *ex.Code
		}
		hr.Signal = ex.Signal
		if ex.Err != nil {
			hr.ExitErr = ex.Err.Error()
		}
	}
	if err := history.Emit(s.history, history.Event{Type: t, OccurredAt: time.Now(), Run: hr}); err != nil {
		s.log.Warn("history write failed", "event", t, "error", err)
	}
}

func (r *run) close() {
	for _, c := range r.closers {
		_ = c.Close()
	}
	r.closers = nil
}

// asWriter avoids storing a typed nil in an io.Writer.
func asWriter(w io.WriteCloser) io.Writer {
	if w == nil {
		return nil
	}
	return w
}
