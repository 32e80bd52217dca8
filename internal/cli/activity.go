package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/crescent/internal/domain"
	"github.com/roach88/crescent/internal/store"
)

// recordCommand builds a leaf command that writes one activity record.
// build receives the resolved author and the remaining arguments.
func recordCommand(opts *RootOptions, use, short string, nargs int,
	build func(a *app, author domain.Profile, args []string) (domain.Record, error),
) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDate("date", date)
			if err != nil {
				return err
			}
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			author, err := a.resolveProfile(args[0])
			if err != nil {
				return err
			}
			r, err := build(a, author, args[1:])
			if err != nil {
				return err
			}
			r.ProfileID = author.ID
			r.Date = d

			saved, err := a.store.AddRecord(r)
			if err != nil {
				return rejected(err)
			}
			a.out.VerboseLog("queued %s; %d action(s) pending", saved.ClientID, len(a.store.Pending()))
			return a.out.Success(recordView{Record: saved, Author: author.Nickname})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "record date, YYYY-MM-DD (default today)")
	return cmd
}

func group(use, short string, children ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{Use: use, Short: short}
	cmd.AddCommand(children...)
	return cmd
}

// NewRewardCommand creates the reward command group.
func NewRewardCommand(opts *RootOptions) *cobra.Command {
	var category string
	add := recordCommand(opts, "add <profile> <points>", "Award points to a member", 2,
		func(_ *app, _ domain.Profile, args []string) (domain.Record, error) {
			points, err := strconv.Atoi(args[0])
			if err != nil {
				return domain.Record{}, WrapExitError(ExitCommandError, "points must be an integer", err)
			}
			return domain.Record{Kind: domain.KindReward, Points: points, Category: category}, nil
		})
	add.Flags().StringVar(&category, "category", "", "reward category")
	return group("reward", "Award reward points", add)
}

// NewFastCommand creates the fast command group.
func NewFastCommand(opts *RootOptions) *cobra.Command {
	log := recordCommand(opts, "log <profile> <full|partial|none>", "Log a member's fast for the day", 2,
		func(_ *app, _ domain.Profile, args []string) (domain.Record, error) {
			return domain.Record{Kind: domain.KindFastLog, Status: args[0]}, nil
		})
	return group("fast", "Log daily fasts", log)
}

// NewSuhoorCommand creates the suhoor command group.
func NewSuhoorCommand(opts *RootOptions) *cobra.Command {
	var note string
	log := recordCommand(opts, "log <profile>", "Log a member's pre-dawn meal", 1,
		func(_ *app, _ domain.Profile, _ []string) (domain.Record, error) {
			return domain.Record{Kind: domain.KindSuhoorLog, Note: note}, nil
		})
	log.Flags().StringVar(&note, "note", "", "what was eaten")
	return group("suhoor", "Log pre-dawn meals", log)
}

// NewMessageCommand creates the message command group.
func NewMessageCommand(opts *RootOptions) *cobra.Command {
	send := recordCommand(opts, "send <from> <to> <body>", "Send a message to another member", 3,
		func(a *app, _ domain.Profile, args []string) (domain.Record, error) {
			to, err := a.resolveProfile(args[0])
			if err != nil {
				return domain.Record{}, err
			}
			return domain.Record{Kind: domain.KindMessage, ToProfileID: to.ID, Body: args[1]}, nil
		})
	return group("message", "Family messages", send)
}

// NewMemoryCommand creates the memory command group.
func NewMemoryCommand(opts *RootOptions) *cobra.Command {
	add := recordCommand(opts, "add <profile> <caption>", "Save a memory", 2,
		func(_ *app, _ domain.Profile, args []string) (domain.Record, error) {
			return domain.Record{Kind: domain.KindMemory, Caption: args[0]}, nil
		})
	return group("memory", "Family memories", add)
}

// NewCapsuleCommand creates the capsule command group.
func NewCapsuleCommand(opts *RootOptions) *cobra.Command {
	var unlockDay int
	add := recordCommand(opts, "add <profile> <body>", "Seal a time capsule", 2,
		func(_ *app, _ domain.Profile, args []string) (domain.Record, error) {
			return domain.Record{Kind: domain.KindTimeCapsule, Body: args[0], UnlockDay: unlockDay}, nil
		})
	add.Flags().IntVar(&unlockDay, "unlock-day", 30, "season day the capsule opens on")
	return group("capsule", "Time capsules", add)
}

// NewRecordCommand creates the record command group for listing and editing
// existing records.
func NewRecordCommand(opts *RootOptions) *cobra.Command {
	return group("record", "List and edit activity records",
		newRecordListCommand(opts),
		newRecordEditCommand(opts),
	)
}

func newRecordListCommand(opts *RootOptions) *cobra.Command {
	var kind, profile, date string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDate("date", date)
			if err != nil {
				return err
			}
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			f := store.Filter{Kind: domain.Kind(kind)}
			if profile != "" {
				p, err := a.resolveProfile(profile)
				if err != nil {
					return err
				}
				f.ProfileID = p.ID
			}
			if !d.IsZero() {
				f.Date = &d
			}
			return a.out.Success(recordsView(a.store.Records(f)))
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "record kind")
	cmd.Flags().StringVar(&profile, "profile", "", "author nickname or id")
	cmd.Flags().StringVar(&date, "date", "", "record date, YYYY-MM-DD")
	return cmd
}

func newRecordEditCommand(opts *RootOptions) *cobra.Command {
	var favorite, completed bool
	var caption string
	cmd := &cobra.Command{
		Use:   "edit <client-id>",
		Short: "Change a record's favorite, caption or completed field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch domain.RecordPatch
			flags := cmd.Flags()
			if flags.Changed("favorite") {
				patch.Favorite = &favorite
			}
			if flags.Changed("caption") {
				patch.Caption = &caption
			}
			if flags.Changed("completed") {
				patch.Completed = &completed
			}
			if len(patch.Fields()) == 0 {
				return NewExitError(ExitCommandError, "nothing to change: pass --favorite, --caption or --completed")
			}

			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			r, err := a.store.UpdateRecord(args[0], patch)
			if err != nil {
				return rejected(err)
			}
			author := r.ProfileID
			if p, ok := a.store.Profile(r.ProfileID); ok {
				author = p.Nickname
			}
			return a.out.Success(recordView{Record: r, Author: author})
		},
	}
	cmd.Flags().BoolVar(&favorite, "favorite", false, "mark as favorite")
	cmd.Flags().StringVar(&caption, "caption", "", "memory caption")
	cmd.Flags().BoolVar(&completed, "completed", false, "mark as completed")
	return cmd
}
