package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/uroflow/desktop/internal/app"
	"github.com/uroflow/desktop/internal/backend"
	"github.com/uroflow/desktop/internal/config"
	"github.com/uroflow/desktop/internal/deploy"
	"github.com/uroflow/desktop/internal/history"
	"github.com/uroflow/desktop/internal/metrics"
	"github.com/uroflow/desktop/internal/shell"
	"github.com/uroflow/desktop/internal/window"
)

func buildRoot() *cobra.Command {
	flags := &GlobalFlags{}
	histFlags := &HistoryFlags{}

	root := &cobra.Command{
		Use:   "uroflow-desktop",
		Short: "UroFlow desktop launcher",
		Long: `Starts the UroFlow backend for the current deployment mode, supervises it,
and opens the application window pointing at it.

Examples:
  uroflow-desktop                                   # development: venv or python3
  BACKEND_PORT=9100 uroflow-desktop
  RENDERER_URL=http://localhost:5173 uroflow-desktop
  uroflow-desktop --packaged --resources=/opt/UroFlow/resources
  uroflow-desktop plan                              # print the launch plan`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLauncher(cmd, flags)
		},
	}
	flags.register(root.PersistentFlags())

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Start the backend and open the window (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runLauncher(cmd, flags)
			},
		},
		&cobra.Command{
			Use:   "plan",
			Short: "Resolve and print the backend launch plan without starting it",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load(flags.ConfigPath, cmd.Flags())
				if err != nil {
					return err
				}
				return printPlan(cmd.OutOrStdout(), deploy.NewResolver(), cfg)
			},
		},
		createHistoryCommand(flags, histFlags),
	)
	return root
}

func inputs(cfg *config.Config) deploy.Inputs {
	return deploy.Inputs{
		Mode:         deploy.ModeFromPackaged(cfg.Packaged),
		InstallRoot:  cfg.InstallRoot,
		ResourcesDir: cfg.ResourcesDir,
		Port:         cfg.BackendPort,
	}
}

func runLauncher(cmd *cobra.Command, flags *GlobalFlags) error {
	cfg, err := config.Load(flags.ConfigPath, cmd.Flags())
	if err != nil {
		return err
	}
	log := cfg.Log.NewSlogger()
	slog.SetDefault(log)

	if cfg.MetricsAddr != "" {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return err
		}
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				log.Error("metrics server stopped", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
	}

	var sink history.Sink
	if cfg.HistoryDSN != "" {
		s, err := history.NewSQLSinkFromDSN(cfg.HistoryDSN)
		if err != nil {
			log.Warn("run history disabled", "error", err)
		} else {
			defer func() { _ = s.Close() }()
			sink = s
		}
	}

	extra, err := cfg.BackendEnv()
	if err != nil {
		return fmt.Errorf("backend env: %w", err)
	}

	sup := backend.New(backend.Options{Logger: log, Log: cfg.Log, ExtraEnv: extra, History: sink})
	sh := shell.New(log)
	a := &app.App{
		Inputs:   inputs(cfg),
		Resolver: deploy.NewResolver(),
		Backend:  sup,
		Shell:    sh,
		Windows:  window.NewController(sh, window.DefaultOptions(cfg.Bridge), cfg.RendererURL, cfg.FrontendDir, log),
		Log:      log,
	}

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancelCause(sigCtx)
	defer cancel(nil)

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	hostErr := sh.Main()
	if hostErr != nil {
		log.Error("window host failed", "error", hostErr)
		cancel(hostErr)
	}
	if err := <-done; err != nil {
		// The user has already seen the error box; quit with normal semantics.
		if errors.Is(err, app.ErrStartupAborted) {
			return nil
		}
		return err
	}
	return hostErr
}

func printPlan(w io.Writer, r *deploy.Resolver, cfg *config.Config) error {
	in := inputs(cfg)
	p, err := r.Resolve(in)
	if err != nil {
		return err
	}
	return printJSON(w, struct {
		Mode string `json:"mode"`
		deploy.Plan
	}{Mode: in.Mode.String(), Plan: p})
}

func createHistoryCommand(flags *GlobalFlags, hf *HistoryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent backend runs",
		Long: `List backend start/exit events recorded in the history database.

Examples:
  uroflow-desktop history --history=sqlite://$HOME/.uroflow/history.db
  uroflow-desktop history --limit=5 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.ConfigPath, cmd.Flags())
			if err != nil {
				return err
			}
			if cfg.HistoryDSN == "" {
				return errors.New("no history DSN configured (use --history or UROFLOW_HISTORY_DSN)")
			}
			s, err := history.NewSQLSinkFromDSN(cfg.HistoryDSN)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			evs, err := s.Recent(ctx, hf.Limit)
			if err != nil {
				return err
			}
			if hf.JSON {
				return printJSON(cmd.OutOrStdout(), evs)
			}
			return printHistory(cmd.OutOrStdout(), evs)
		},
	}
	cmd.Flags().IntVar(&hf.Limit, "limit", 20, "number of events to show")
	cmd.Flags().BoolVar(&hf.JSON, "json", false, "print JSON")
	return cmd
}

func printHistory(w io.Writer, evs []history.Event) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TIME\tEVENT\tPID\tCODE\tSIGNAL\tCOMMAND")
	for _, e := range evs {
		code, sig := "-", "-"
		if e.Type == history.EventExit {
			code = fmt.Sprint(e.Run.ExitCode)
			if e.Run.Signal != "" {
				sig = e.Run.Signal
			}
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			e.OccurredAt.Local().Format(time.DateTime), e.Type, e.Run.PID, code, sig, e.Run.Command)
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
