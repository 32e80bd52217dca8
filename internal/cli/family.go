package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/crescent/internal/calendar"
	"github.com/roach88/crescent/internal/domain"
	"github.com/roach88/crescent/internal/store"
)

// NewFamilyCommand creates the family command group.
func NewFamilyCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "family",
		Short: "Set up and configure the household",
	}
	cmd.AddCommand(
		newFamilyShowCommand(opts),
		newFamilySetupCommand(opts),
		newFamilyUpdateCommand(opts),
		newFamilyConfirmStartCommand(opts),
	)
	return cmd
}

func newFamilyShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show family settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			f, ok := a.store.Family()
			if !ok {
				return NewExitError(ExitFailure, "no family is set up")
			}
			return a.out.Success(familyView{f})
		},
	}
}

type familySetupOptions struct {
	Name     string
	Start    string
	Timezone string
	PreDawn  string
	Sunset   string
	Owner    string
}

func newFamilySetupCommand(opts *RootOptions) *cobra.Command {
	fo := &familySetupOptions{}
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the household",
		Long: `Create the household with a provisional season start date.

Example:
  crescent family setup --name "The Hadids" --start 2026-02-18 \
    --timezone Europe/London --pre-dawn 05:10 --sunset 17:45`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseDate("start", fo.Start)
			if err != nil {
				return err
			}
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			owner := fo.Owner
			if owner == "" {
				owner = a.defaultOwner()
			}
			f, err := a.store.SetupFamily(store.FamilySetup{
				OwnerID:     owner,
				Name:        fo.Name,
				SeasonStart: start,
				Timezone:    fo.Timezone,
				PreDawnTime: fo.PreDawn,
				SunsetTime:  fo.Sunset,
			})
			if err != nil {
				return rejected(err)
			}
			return a.out.Success(familyView{f})
		},
	}
	cmd.Flags().StringVar(&fo.Name, "name", "", "family display name (required)")
	cmd.Flags().StringVar(&fo.Start, "start", "", "provisional season start, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&fo.Timezone, "timezone", "UTC", "IANA timezone")
	cmd.Flags().StringVar(&fo.PreDawn, "pre-dawn", "05:00", "pre-dawn cutoff, HH:MM")
	cmd.Flags().StringVar(&fo.Sunset, "sunset", "18:00", "sunset, HH:MM")
	cmd.Flags().StringVar(&fo.Owner, "owner", "", "owning user id (defaults to the signed-in user)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func newFamilyUpdateCommand(opts *RootOptions) *cobra.Command {
	var name, tz, preDawn, sunset string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change family settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var u store.FamilyUpdate
			flags := cmd.Flags()
			if flags.Changed("name") {
				u.Name = &name
			}
			if flags.Changed("timezone") {
				u.Timezone = &tz
			}
			if flags.Changed("pre-dawn") {
				u.PreDawnTime = &preDawn
			}
			if flags.Changed("sunset") {
				u.SunsetTime = &sunset
			}

			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			f, err := a.store.UpdateFamily(u)
			if err != nil {
				return rejected(err)
			}
			return a.out.Success(familyView{f})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "family display name")
	cmd.Flags().StringVar(&tz, "timezone", "", "IANA timezone")
	cmd.Flags().StringVar(&preDawn, "pre-dawn", "", "pre-dawn cutoff, HH:MM")
	cmd.Flags().StringVar(&sunset, "sunset", "", "sunset, HH:MM")
	return cmd
}

func newFamilyConfirmStartCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm-start [date]",
		Short: "Confirm the season start date",
		Long: `Confirm the date the season started (or will start) for this family.

Without a date, lists the dates that may still be chosen after the fact.
Future dates are always accepted; past dates must be recent.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 0 {
				return a.out.Success(dateOptionsView{
					Options: calendar.RetroactiveOptions(a.store.Now(), a.store.Location(), a.cfg.Sync.RetroactiveDays),
				})
			}
			d, err := parseDate("date", args[0])
			if err != nil {
				return err
			}
			f, err := a.store.ConfirmSeasonStart(d)
			if err != nil {
				return rejected(err)
			}
			return a.out.Success(familyView{f})
		},
	}
}

// NewProfileCommand creates the profile command group.
func NewProfileCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage household members",
	}
	cmd.AddCommand(
		newProfileAddCommand(opts),
		newProfileListCommand(opts),
		newProfileUpdateCommand(opts),
	)
	return cmd
}

func newProfileAddCommand(opts *RootOptions) *cobra.Command {
	var typ, avatar string
	cmd := &cobra.Command{
		Use:   "add <nickname>",
		Short: "Add a household member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			p, err := a.store.AddProfile(store.ProfileInput{
				Nickname: args[0],
				Type:     domain.ProfileType(typ),
				Avatar:   avatar,
			})
			if err != nil {
				return rejected(err)
			}
			return a.out.Success(profileView{p})
		},
	}
	cmd.Flags().StringVar(&typ, "type", string(domain.ProfileAdult), "little_star, child or adult")
	cmd.Flags().StringVar(&avatar, "avatar", "", "avatar id")
	return cmd
}

func newProfileListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List household members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.out.Success(profilesView(a.store.Profiles()))
		},
	}
}

func newProfileUpdateCommand(opts *RootOptions) *cobra.Command {
	var nickname, avatar, typ string
	var active bool
	cmd := &cobra.Command{
		Use:   "update <profile>",
		Short: "Change a member's nickname, avatar, type or active flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var u store.ProfileUpdate
			flags := cmd.Flags()
			if flags.Changed("nickname") {
				u.Nickname = &nickname
			}
			if flags.Changed("avatar") {
				u.Avatar = &avatar
			}
			if flags.Changed("type") {
				pt := domain.ProfileType(typ)
				u.Type = &pt
			}
			if flags.Changed("active") {
				u.Active = &active
			}

			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			cur, err := a.resolveProfile(args[0])
			if err != nil {
				return err
			}
			p, err := a.store.UpdateProfile(cur.ID, u)
			if err != nil {
				return rejected(err)
			}
			return a.out.Success(profileView{p})
		},
	}
	cmd.Flags().StringVar(&nickname, "nickname", "", "new nickname")
	cmd.Flags().StringVar(&avatar, "avatar", "", "avatar id")
	cmd.Flags().StringVar(&typ, "type", "", "little_star, child or adult")
	cmd.Flags().BoolVar(&active, "active", true, "whether the member is active")
	return cmd
}
