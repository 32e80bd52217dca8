package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/crescent/internal/scenario"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Filter   string // glob on scenario file names
	Snapshot bool   // include the golden snapshot of each run
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name     string               `json:"name"`
	File     string               `json:"file"`
	Pass     bool                 `json:"pass"`
	Errors   []string             `json:"errors,omitempty"`
	Snapshot *scenario.Snapshot   `json:"snapshot,omitempty"`
	Final    *scenario.FinalState `json:"-"`
}

// ScenarioReport holds the overall result.
type ScenarioReport struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

func (r ScenarioReport) RenderText(w io.Writer) {
	if r.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, s := range r.Scenarios {
		mark := "PASS"
		if !s.Pass {
			mark = "FAIL"
		}
		fmt.Fprintf(w, "%s  %s\n", mark, s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "      %s\n", e)
		}
		if f := s.Final; f != nil && s.Snapshot != nil {
			fmt.Fprintf(w, "      day %d, %d points, unlocked [%s], %d pending\n",
				f.DayIndex, f.TotalPoints, strings.Join(f.Unlocked, ", "), f.Pending)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", r.Passed, r.Failed, r.Total)
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <file-or-dir>...",
		Short: "Replay YAML household scenarios",
		Long: `Replay scenario files against an isolated in-memory store and gateway,
checking each step's outcome and the final-state assertions.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (unreadable or invalid scenario files)

Examples:
  crescent scenario ./scenarios
  crescent scenario ./scenarios --filter "offline-*"
  crescent scenario household-progress.yaml --snapshot --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenario files by glob pattern")
	cmd.Flags().BoolVar(&opts.Snapshot, "snapshot", false, "include the trace and final state of each run")
	return cmd
}

func runScenarios(opts *ScenarioOptions, paths []string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	eng, err := loadEngine(cfg.Progression)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load progression config", err)
	}

	files, err := findScenarioFiles(paths, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	report := ScenarioReport{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		sc, err := scenario.Load(file)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid scenario", err)
		}
		res, err := scenario.Run(sc, scenario.Options{Engine: eng, RetroactiveDays: cfg.Sync.RetroactiveDays})
		if err != nil {
			return WrapExitError(ExitCommandError, "scenario "+sc.Name, err)
		}

		sr := ScenarioResult{Name: sc.Name, File: file, Pass: res.Pass, Errors: res.Errors}
		if opts.Snapshot {
			sr.Snapshot = &scenario.Snapshot{ScenarioName: sc.Name, Trace: res.Trace, Final: res.Final}
			sr.Final = &res.Final
		}
		report.Scenarios = append(report.Scenarios, sr)
		if res.Pass {
			report.Passed++
		} else {
			report.Failed++
		}
	}

	if err := newFormatter(cmd, opts.RootOptions).Success(report); err != nil {
		return err
	}
	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", report.Failed, report.Total))
	}
	return nil
}

// findScenarioFiles expands directories to their *.yaml and *.yml files.
func findScenarioFiles(paths []string, filter string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			ext := filepath.Ext(e.Name())
			if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
				continue
			}
			files = append(files, filepath.Join(p, e.Name()))
		}
	}

	if filter != "" {
		kept := files[:0]
		for _, f := range files {
			ok, err := filepath.Match(filter, filepath.Base(f))
			if err != nil {
				return nil, fmt.Errorf("invalid filter: %w", err)
			}
			if ok {
				kept = append(kept, f)
			}
		}
		files = kept
	}
	sort.Strings(files)
	return files, nil
}
