package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/crescent/internal/calendar"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the family, the sync state and the pending queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.out.Success(newStatusView(a))
		},
	}
}

// NewCalendarCommand creates the calendar command.
func NewCalendarCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "calendar",
		Short: "Show the season day, countdown and fasting window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			cal, ok := a.store.Calendar()
			if !ok {
				return NewExitError(ExitFailure, "no family is set up")
			}
			v := calendarView{Calendar: cal}
			if aw, ok := a.store.Anchors(); ok {
				v.Anchors = &aw
			}
			if cal.NeedsRetroactiveConfirmation {
				v.Options = calendar.RetroactiveOptions(a.store.Now(), a.store.Location(), a.cfg.Sync.RetroactiveDays)
			}
			return a.out.Success(v)
		},
	}
}

// NewProgressCommand creates the progress command.
func NewProgressCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Show points, milestones and unlocked avatars",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.out.Success(progressView{
				Progress: a.store.Progress(),
				Avatars:  a.store.AvailableAvatars(),
			})
		},
	}
}
