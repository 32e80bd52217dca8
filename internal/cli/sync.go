package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/crescent/internal/gateway"
	"github.com/roach88/crescent/internal/syncer"
)

func (a *app) syncOptions() syncer.Options {
	return syncer.Options{
		MaxRetries:     a.cfg.Sync.MaxRetries,
		ClearOnSignOut: a.cfg.Sync.ClearOnSignOut,
		CallTimeout:    a.cfg.Sync.CallTimeout,
	}
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull from the backend and push queued writes once",
		Long: `Reconcile the local store with the backend of record once: pull the
family's data, merge it with unsent local writes, then drain the queue.

Exit codes:
  0 - synced
  1 - the pull or a write failed (details in status)
  2 - command error (config, store or gateway unavailable)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			gw, release, err := a.openGateway(ctx)
			if err != nil {
				return err
			}
			defer release()

			id, err := gw.Identity(ctx)
			if err != nil {
				if gateway.IsUnauthenticated(err) {
					return WrapExitError(ExitFailure, "not signed in; local data was left untouched", err)
				}
				return WrapExitError(ExitFailure, "identity", err)
			}

			coord := syncer.New(a.store, gw, a.syncOptions())
			defer coord.Stop()
			syncErr := coord.SyncOnce(ctx, id)

			if err := a.out.Success(newStatusView(a)); err != nil {
				return err
			}
			if syncErr != nil {
				return WrapExitError(ExitFailure, "sync failed", syncErr)
			}
			if st := a.store.Status(); st.LastError != "" {
				return NewExitError(ExitFailure, "sync finished with errors: "+st.LastError)
			}
			return nil
		},
	}
}

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Refresh time.Duration
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Keep the local store in sync until interrupted",
		Long: `Start the sync coordinator and keep it running.

The coordinator pulls once per session, applies realtime changes pushed by
the backend, and drains queued writes as they appear. On Ctrl-C it makes
one last bounded attempt to flush the queue; anything left stays queued
for next time.

Example:
  crescent run --refresh 5m --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoordinator(opts, cmd)
		},
	}
	cmd.Flags().DurationVar(&opts.Refresh, "refresh", 0, "force a pull at this interval (0 disables)")
	return cmd
}

func runCoordinator(opts *RunOptions, cmd *cobra.Command) error {
	parentCtx := commandContext(cmd)
	a, err := openApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	gw, release, err := a.openGateway(parentCtx)
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	coord := syncer.New(a.store, gw, a.syncOptions())
	done := make(chan error, 1)
	go func() { done <- coord.Run(ctx) }()

	startSession(ctx, coord, gw)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var tick <-chan time.Time
	if opts.Refresh > 0 {
		ticker := time.NewTicker(opts.Refresh)
		defer ticker.Stop()
		tick = ticker.C
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Sync running. Press Ctrl-C to stop.")

wait:
	for {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			break wait
		case <-parentCtx.Done():
			break wait
		case <-tick:
			coord.Refresh()
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				return WrapExitError(ExitFailure, "syncer error", err)
			}
			return nil
		}
	}

	fctx, fcancel := context.WithTimeout(context.Background(), a.cfg.Sync.FlushTimeout)
	if err := coord.Flush(fctx); err != nil {
		slog.Warn("final flush incomplete", "error", err)
	}
	fcancel()
	coord.Stop()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "syncer error", err)
	}

	st := a.store.Status()
	slog.Info("syncer stopped", "pending", st.PendingCount)
	return a.out.Success(newStatusView(a))
}

// startSession signs coord in when the gateway has a session, then reports
// hydration. The store must not look loaded before the first pull lands.
func startSession(ctx context.Context, coord *syncer.Coordinator, gw gateway.Gateway) {
	if id, err := gw.Identity(ctx); err != nil {
		slog.Warn("not signed in; running local-only", "error", err)
	} else {
		slog.Info("signed in", "user", id.UserID)
		coord.SignIn(id)
	}
	coord.Hydrated()
}
