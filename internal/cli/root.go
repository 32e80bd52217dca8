package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/crescent/internal/domain"
	"github.com/roach88/crescent/internal/gateway"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	EnvFile    string

	// Now, IDs and Gateway replace the wall clock, the ID generator and the
	// configured gateway (for testing). Nil uses the defaults.
	Now     func() time.Time
	IDs     domain.IDGenerator
	Gateway gateway.Gateway
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the crescent CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crescent",
		Short: "crescent - family season tracker",
		Long: `A local-first tracker for a family's season of fasting, giving and
keepsakes. Every command works offline against the local store; sync and
run reconcile it with the backend of record.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			configureLogging(cmd.ErrOrStderr(), opts.Verbose)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file read for CRESCENT_* settings")

	cmd.AddCommand(
		NewStatusCommand(opts),
		NewCalendarCommand(opts),
		NewProgressCommand(opts),
		NewFamilyCommand(opts),
		NewProfileCommand(opts),
		NewRewardCommand(opts),
		NewFastCommand(opts),
		NewSuhoorCommand(opts),
		NewMessageCommand(opts),
		NewMemoryCommand(opts),
		NewCapsuleCommand(opts),
		NewRecordCommand(opts),
		NewPendingCommand(opts),
		NewSyncCommand(opts),
		NewRunCommand(opts),
		NewScenarioCommand(opts),
	)
	return cmd
}

// configureLogging installs a text slog handler on w. Library packages log
// through the default logger.
func configureLogging(w io.Writer, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// Execute runs the CLI with args and returns the process exit code. Errors
// are reported in the selected format: on stdout for json, stderr for text.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{Format: "text"}
	return execute(ctx, opts, args, stdout, stderr)
}

func execute(ctx context.Context, opts *RootOptions, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	f := &OutputFormatter{Format: opts.Format, Writer: stderr, Verbose: opts.Verbose}
	if opts.Format == "json" {
		f.Writer = stdout
	}
	_ = f.Error(ErrorCode(err), err.Error(), nil)
	return GetExitCode(err)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
