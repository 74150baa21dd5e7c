// Package app wires the launcher's lifecycle: resolve and start the backend
// when ready, open the window, and stop the backend before quitting.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/uroflow/desktop/internal/backend"
	"github.com/uroflow/desktop/internal/deploy"
	"github.com/uroflow/desktop/internal/window"
)

// Backend is the part of backend.Supervisor the app drives.
type Backend interface {
	Start(plan deploy.Plan) <-chan backend.Exit
	Stop()
}

// PlanResolver computes launch plans.
type PlanResolver interface {
	Resolve(in deploy.Inputs) (deploy.Plan, error)
}

// ErrStartupAborted is returned by Run when startup failed fatally and the
// user has been told.
var ErrStartupAborted = errors.New("startup aborted")

type App struct {
	Inputs   deploy.Inputs
	Resolver PlanResolver
	Backend  Backend
	Shell    window.Shell
	Windows  *window.Controller
	Log      *slog.Logger
	GOOS     string

	exit <-chan backend.Exit
}

// Run blocks until the app quits: by shell event, by ctx cancellation
// (SIGINT/SIGTERM in main) or after a fatal startup error.
func (a *App) Run(ctx context.Context) error {
	log := a.logger()
	if err := a.ready(); err != nil {
		a.Shell.Quit()
		a.drainQuit(ctx)
		return err
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown requested", "reason", context.Cause(ctx))
			a.beforeQuit()
			a.Shell.Quit()
			return nil
		case ex, ok := <-a.exit:
			a.exit = nil
			if ok && ex.Err != nil {
				log.Warn("backend unavailable; window stays open", "error", ex.Err)
			}
		case ev := <-a.Shell.Events():
			switch ev {
			case window.EventActivate:
				if _, err := a.Windows.Activate(); err != nil {
					log.Error("reactivate failed", "error", err)
				}
			case window.EventAllWindowsClosed:
				if window.QuitOnAllClosed(a.goos()) {
					a.beforeQuit()
					a.Shell.Quit()
					return nil
				}
			case window.EventQuit:
				a.beforeQuit()
				return nil
			}
		}
	}
}

// ready starts the backend, then creates the window without waiting for
// the backend to come up.
func (a *App) ready() error {
	log := a.logger()
	plan, err := a.Resolver.Resolve(a.Inputs)
	if err != nil {
		var missing *deploy.BackendMissingError
		if errors.As(err, &missing) {
			a.Shell.ShowErrorBox("Backend Not Found", fmt.Sprintf(
				"Bundled backend binary is missing at:\n%s\n\nRun desktop packaging with backend build first.", missing.Path))
		} else {
			a.Shell.ShowErrorBox("Backend Launch Failed", err.Error())
		}
		log.Error("backend resolution failed", "mode", a.Inputs.Mode, "error", err)
		return fmt.Errorf("%w: %w", ErrStartupAborted, err)
	}
	log.Info("launch plan resolved", "mode", a.Inputs.Mode, "command", plan.Command, "dir", plan.WorkDir)
	a.exit = a.Backend.Start(plan)

	if _, err := a.Windows.Create(); err != nil {
		log.Error("window creation failed", "error", err)
	}
	return nil
}

func (a *App) beforeQuit() { a.Backend.Stop() }

// drainQuit consumes the quit event emitted after a fatal startup error.
func (a *App) drainQuit(ctx context.Context) {
	select {
	case <-a.Shell.Events():
	case <-ctx.Done():
	default:
	}
}

func (a *App) logger() *slog.Logger {
	if a.Log == nil {
		return slog.Default()
	}
	return a.Log
}

func (a *App) goos() string {
	if a.GOOS == "" {
		return runtime.GOOS
	}
	return a.GOOS
}
