package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewPendingCommand creates the pending command group.
func NewPendingCommand(opts *RootOptions) *cobra.Command {
	return group("pending", "Inspect and resolve queued writes",
		newPendingListCommand(opts),
		newPendingRetryCommand(opts),
		newPendingDiscardCommand(opts),
	)
}

func newPendingListCommand(opts *RootOptions) *cobra.Command {
	var failedOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List writes waiting to reach the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			v := pendingView{Pass: a.store.Pass(), Actions: a.store.Pending()}
			if failedOnly {
				kept := v.Actions[:0]
				for _, act := range v.Actions {
					if act.Failed {
						kept = append(kept, act)
					}
				}
				v.Actions = kept
			}
			return a.out.Success(v)
		},
	}
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "only dead-lettered writes")
	return cmd
}

func newPendingRetryCommand(opts *RootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "retry [action-id | --all]",
		Short: "Re-queue a dead-lettered write",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := actionTarget(args, all)
			if err != nil {
				return err
			}
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			n := a.store.RetryFailed(id)
			if n == 0 {
				return NewExitError(ExitFailure, noFailed(id))
			}
			return a.out.Success(countView{Action: "retried", ID: id, Count: n})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "every failed action")
	return cmd
}

func newPendingDiscardCommand(opts *RootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "discard [action-id | --all]",
		Short: "Drop a dead-lettered write and the local data only it carried",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := actionTarget(args, all)
			if err != nil {
				return err
			}
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			n := a.store.DiscardFailed(id)
			if n == 0 {
				return NewExitError(ExitFailure, noFailed(id))
			}
			return a.out.Success(countView{Action: "discarded", ID: id, Count: n})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "every failed action")
	return cmd
}

// actionTarget returns the action id to act on; "" means every failed
// action.
func actionTarget(args []string, all bool) (string, error) {
	switch {
	case all && len(args) == 0:
		return "", nil
	case !all && len(args) == 1:
		return args[0], nil
	}
	return "", NewExitError(ExitCommandError, "pass an action id or --all")
}

func noFailed(id string) string {
	if id == "" {
		return "no failed actions"
	}
	return fmt.Sprintf("no failed action %s", id)
}
