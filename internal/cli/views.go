package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/roach88/crescent/internal/calendar"
	"github.com/roach88/crescent/internal/domain"
	"github.com/roach88/crescent/internal/progression"
	"github.com/roach88/crescent/internal/store"
)

const timeLayout = "2006-01-02 15:04 MST"

type statusView struct {
	Family   *domain.Family `json:"family,omitempty"`
	Profiles int            `json:"profiles"`
	Records  int            `json:"records"`
	Gateway  string         `json:"gateway"`
	Sync     store.Status   `json:"sync"`
}

func newStatusView(a *app) statusView {
	v := statusView{
		Profiles: len(a.store.Profiles()),
		Records:  len(a.store.Records(store.Filter{})),
		Gateway:  a.cfg.Gateway.Kind,
		Sync:     a.store.Status(),
	}
	if f, ok := a.store.Family(); ok {
		v.Family = &f
	}
	return v
}

func (v statusView) RenderText(w io.Writer) {
	if v.Family == nil {
		fmt.Fprintln(w, "No family set up. Run `crescent family setup`.")
	} else {
		f := v.Family
		fmt.Fprintf(w, "Family:   %s (%s)\n", f.Name, f.ConnectionCode)
		start := "provisional"
		if f.StartConfirmed {
			start = "confirmed"
		}
		fmt.Fprintf(w, "Season:   starts %s (%s), %s\n", f.SeasonStart, start, f.Timezone)
		fmt.Fprintf(w, "Members:  %d, %d records\n", v.Profiles, v.Records)
	}

	s := v.Sync
	fmt.Fprintf(w, "Sync:     %s via %s\n", s.State, v.Gateway)
	last := "never"
	if !s.LastSyncedAt.IsZero() {
		last = s.LastSyncedAt.Format(timeLayout)
	}
	fmt.Fprintf(w, "Last:     %s\n", last)
	fmt.Fprintf(w, "Pending:  %d (%d failed)\n", s.PendingCount, s.FailedPending)
	if s.LastError != "" {
		fmt.Fprintf(w, "Error:    %s\n", s.LastError)
	}
	if s.PersistError != "" {
		fmt.Fprintf(w, "Storage:  %s\n", s.PersistError)
	}
}

type calendarView struct {
	Calendar calendar.Status        `json:"calendar"`
	Anchors  *calendar.AnchorWindow `json:"anchors,omitempty"`

	// Options lists the dates selectable as day 1 while a running season
	// awaits confirmation.
	Options []calendar.Date `json:"options,omitempty"`
}

func (v calendarView) RenderText(w io.Writer) {
	c := v.Calendar
	switch c.Phase {
	case calendar.PhaseBefore:
		cd := c.Countdown
		fmt.Fprintf(w, "Season starts %s: %dd %dh %dm to go\n", c.Start, cd.Days, cd.Hours, cd.Minutes)
	case calendar.PhaseDuring:
		fmt.Fprintf(w, "Day %d of %d (%s)\n", c.DayIndex, calendar.SeasonLength, c.Today)
	default:
		fmt.Fprintf(w, "Season ended on %s\n", calendar.End(c.Start))
	}
	if c.InConfirmationWindow {
		fmt.Fprintln(w, "The start date is provisional: confirm it with `crescent family confirm-start`.")
	}
	if c.NeedsRetroactiveConfirmation && len(v.Options) > 0 {
		fmt.Fprintf(w, "Started on an unconfirmed date; day 1 may be any of: %s\n", joinDates(v.Options))
	}
	if a := v.Anchors; a != nil {
		state := "eating"
		if a.Fasting {
			state = "fasting"
		}
		fmt.Fprintf(w, "Now %s; next %s at %s\n", state, a.NextName, a.Next.Format(timeLayout))
	}
}

type progressView struct {
	Progress progression.Progress `json:"progress"`
	Avatars  []string             `json:"avatars"`
}

func (v progressView) RenderText(w io.Writer) {
	p := v.Progress
	fmt.Fprintf(w, "Total points: %d (season maximum %d, scale %.2f)\n", p.TotalPoints, p.SeasonMaximum, p.ScaleFactor)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, m := range p.Milestones {
		mark := " "
		if m.Threshold <= p.TotalPoints {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s %d\t%s\t%d\n", mark, m.Index, m.Name, m.Threshold)
	}
	_ = tw.Flush()
	if p.Next != nil {
		fmt.Fprintf(w, "Next: %s in %d points\n", p.Next.Name, p.Remaining)
	} else {
		fmt.Fprintln(w, "Every milestone is unlocked.")
	}
	fmt.Fprintf(w, "Avatars: %s\n", strings.Join(v.Avatars, ", "))
}

type familyView struct {
	domain.Family
}

func (v familyView) RenderText(w io.Writer) {
	f := v.Family
	fmt.Fprintf(w, "%s  id=%s  code=%s\n", f.Name, f.ID, f.ConnectionCode)
	fmt.Fprintf(w, "Season start %s (confirmed=%t), timezone %s\n", f.SeasonStart, f.StartConfirmed, f.Timezone)
	fmt.Fprintf(w, "Pre-dawn %s, sunset %s\n", f.PreDawnTime, f.SunsetTime)
}

type dateOptionsView struct {
	Options []calendar.Date `json:"options"`
}

func (v dateOptionsView) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Choose day 1 from: %s\n", joinDates(v.Options))
}

type profilesView []domain.Profile

func (v profilesView) RenderText(w io.Writer) {
	if len(v) == 0 {
		fmt.Fprintln(w, "No profiles.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNICKNAME\tTYPE\tAVATAR\tACTIVE")
	for _, p := range v {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", p.ID, p.Nickname, p.Type, p.Avatar, p.Active)
	}
	_ = tw.Flush()
}

type profileView struct {
	domain.Profile
}

func (v profileView) RenderText(w io.Writer) {
	fmt.Fprintf(w, "%s (%s) id=%s avatar=%s\n", v.Nickname, v.Type, v.ID, v.Avatar)
}

type recordView struct {
	domain.Record
	Author string `json:"author"`
}

func (v recordView) RenderText(w io.Writer) {
	fmt.Fprintf(w, "%s %s by %s on %s (day %d)%s\n",
		v.Kind, v.ClientID, v.Author, v.Date, v.DayIndex, recordDetail(v.Record))
}

func recordDetail(r domain.Record) string {
	switch r.Kind {
	case domain.KindReward:
		return fmt.Sprintf(": %d points", r.Points)
	case domain.KindFastLog:
		return ": " + r.Status
	case domain.KindTimeCapsule:
		return fmt.Sprintf(": opens on day %d", r.UnlockDay)
	}
	return ""
}

type recordsView []domain.Record

func (v recordsView) RenderText(w io.Writer) {
	if len(v) == 0 {
		fmt.Fprintln(w, "No records.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLIENT ID\tKIND\tPROFILE\tDATE\tDAY\tSYNCED\tDETAIL")
	for _, r := range v {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%t\t%s\n",
			r.ClientID, r.Kind, r.ProfileID, r.Date, r.DayIndex, r.Confirmed(),
			strings.TrimPrefix(recordDetail(r), ": "))
	}
	_ = tw.Flush()
}

type pendingView struct {
	Pass    int64                  `json:"pass"`
	Actions []domain.PendingAction `json:"actions"`
}

func (v pendingView) RenderText(w io.Writer) {
	if len(v.Actions) == 0 {
		fmt.Fprintln(w, "Nothing pending.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tKEY\tRETRIES\tSTATE\tQUEUED")
	for _, a := range v.Actions {
		state := "queued"
		switch {
		case a.Failed:
			state = "failed: " + a.LastError
		case a.NextPass > v.Pass+1:
			state = fmt.Sprintf("waiting for pass %d", a.NextPass)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			a.ID, a.Kind, a.RecordKey, a.RetryCount, state, a.LocalTimestamp.Format(time.RFC3339))
	}
	_ = tw.Flush()
}

type countView struct {
	Action string `json:"action"`
	ID     string `json:"id"`
	Count  int    `json:"count"`
}

func (v countView) RenderText(w io.Writer) {
	fmt.Fprintf(w, "%s %s: %d action(s)\n", v.Action, v.ID, v.Count)
}

func joinDates(ds []calendar.Date) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = d.String()
	}
	return strings.Join(parts, ", ")
}
