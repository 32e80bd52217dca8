package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/crescent/internal/calendar"
	"github.com/roach88/crescent/internal/domain"
	"github.com/roach88/crescent/internal/gateway"
	"github.com/roach88/crescent/internal/gateway/memgw"
	"github.com/roach88/crescent/internal/progression"
	"github.com/roach88/crescent/internal/store"
	"github.com/roach88/crescent/internal/syncer"
	"github.com/roach88/crescent/internal/testutil"
	"github.com/roach88/crescent/internal/wire"
)

// Identity is the signed-in user every scenario runs as.
var Identity = gateway.Identity{UserID: "scenario-user", Email: "family@example.com"}

// Options tunes a run.
type Options struct {
	// Engine overrides the default progression configuration.
	Engine *progression.Engine

	// RetroactiveDays bounds confirm_start. Zero uses 3.
	RetroactiveDays int
}

// harness holds the collaborators of one run.
type harness struct {
	clock    *testutil.DeterministicClock
	store    *store.Store
	gw       *memgw.Gateway
	coord    *syncer.Coordinator
	profiles map[string]string // nickname -> profile ID
	records  map[int]string    // 1-based step -> client ID
}

// Run executes a scenario in a fresh, isolated environment.
//
// Step outcomes that differ from their expectation and failed assertions
// are reported in the Result; the error return is reserved for setup
// failures that make the run meaningless.
func Run(sc *Scenario, opts Options) (*Result, error) {
	ctx := context.Background()

	start := time.Time{}
	if sc.Now != "" {
		t, err := time.Parse(time.RFC3339, sc.Now)
		if err != nil {
			return nil, fmt.Errorf("now: %w", err)
		}
		start = t
	}
	if opts.RetroactiveDays <= 0 {
		opts.RetroactiveDays = 3
	}

	h := &harness{
		clock:    testutil.NewDeterministicClock(start),
		gw:       memgw.New(nil),
		profiles: make(map[string]string),
		records:  make(map[int]string),
	}
	h.store = store.New(store.Options{
		Engine:          opts.Engine,
		IDs:             domain.NewFixedGenerator("c"),
		Now:             h.clock.Now,
		RetroactiveDays: opts.RetroactiveDays,
	})
	if err := h.store.Hydrate(ctx); err != nil {
		return nil, fmt.Errorf("hydrate: %w", err)
	}
	h.gw.SignIn(Identity)
	h.coord = syncer.New(h.store, h.gw, syncer.Options{})
	defer h.coord.Stop()

	if err := h.setup(sc); err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range sc.Steps {
		ev := h.execute(ctx, i+1, step)
		result.Trace = append(result.Trace, ev)

		want := step.Expect
		if want == "" {
			want = OutcomeOK
		}
		if ev.Outcome != want {
			result.AddError(fmt.Sprintf("steps[%d] %s: expected %s, got %s", i, step.Action, want, ev.Outcome))
		}
	}

	result.Final = h.final()
	for i, a := range sc.Assertions {
		if err := evaluate(result.Final, a); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return result, nil
}

func (h *harness) setup(sc *Scenario) error {
	start, err := calendar.ParseDate(sc.Family.SeasonStart)
	if err != nil {
		return fmt.Errorf("family: %w", err)
	}
	tz := sc.Family.Timezone
	if tz == "" {
		tz = "UTC"
	}
	preDawn, sunset := sc.Family.PreDawn, sc.Family.Sunset
	if preDawn == "" {
		preDawn = "05:00"
	}
	if sunset == "" {
		sunset = "18:00"
	}
	if _, err := h.store.SetupFamily(store.FamilySetup{
		OwnerID:     Identity.UserID,
		Name:        sc.Family.Name,
		SeasonStart: start,
		Timezone:    tz,
		PreDawnTime: preDawn,
		SunsetTime:  sunset,
	}); err != nil {
		return fmt.Errorf("family: %w", err)
	}

	for i, p := range sc.Profiles {
		prof, err := h.store.AddProfile(store.ProfileInput{
			Nickname: p.Nickname,
			Type:     domain.ProfileType(p.Type),
			Avatar:   p.Avatar,
		})
		if err != nil {
			return fmt.Errorf("profiles[%d]: %w", i, err)
		}
		h.profiles[p.Nickname] = prof.ID
	}
	return nil
}

// execute runs one step. n is the 1-based step number.
func (h *harness) execute(ctx context.Context, n int, step Step) TraceEvent {
	ev := TraceEvent{
		Seq:     h.clock.Next(),
		Action:  step.Action,
		Profile: step.Profile,
	}

	var err error
	switch step.Action {
	case ActionReward, ActionFast, ActionSuhoor, ActionMessage, ActionMemory, ActionCapsule:
		var rec domain.Record
		rec, err = h.store.AddRecord(h.record(step))
		if err == nil {
			h.records[n] = rec.ClientID
			ev.Date = rec.Date.String()
		}
	case ActionFavorite:
		fav := true
		_, err = h.store.UpdateRecord(h.records[step.Step], domain.RecordPatch{Favorite: &fav})
	case ActionConfirmStart:
		d := calendar.MustParseDate(step.Date)
		ev.Date = d.String()
		_, err = h.store.ConfirmSeasonStart(d)
	case ActionAdvance:
		d, _ := time.ParseDuration(step.Duration)
		h.clock.Advance(d)
	case ActionOffline:
		h.gw.SetOffline(true)
	case ActionOnline:
		h.gw.SetOffline(false)
	case ActionSync:
		err = h.coord.SyncOnce(ctx, Identity)
	default:
		err = fmt.Errorf("unknown action %q", step.Action)
	}

	ev.Outcome = outcome(err)
	ev.Pending = len(h.store.Pending())
	return ev
}

func (h *harness) record(step Step) domain.Record {
	r := domain.Record{
		ProfileID: h.profiles[step.Profile],
		Points:    step.Points,
		Category:  step.Category,
		Status:    step.Status,
		UnlockDay: step.UnlockDay,
	}
	if step.Date != "" {
		r.Date = calendar.MustParseDate(step.Date)
	}
	switch step.Action {
	case ActionReward:
		r.Kind = domain.KindReward
	case ActionFast:
		r.Kind = domain.KindFastLog
	case ActionSuhoor:
		r.Kind = domain.KindSuhoorLog
		r.Note = step.Text
	case ActionMessage:
		r.Kind = domain.KindMessage
		r.ToProfileID = h.profiles[step.To]
		r.Body = step.Text
	case ActionMemory:
		r.Kind = domain.KindMemory
		r.Caption = step.Text
	case ActionCapsule:
		r.Kind = domain.KindTimeCapsule
		r.Body = step.Text
	}
	return r
}

func outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if code := domain.ValidationCodeOf(err); code != "" {
		return string(code)
	}
	var gerr *gateway.Error
	if errors.As(err, &gerr) {
		return string(gerr.Code)
	}
	return "error"
}

func (h *harness) final() FinalState {
	cal, _ := h.store.Calendar()
	prog := h.store.Progress()
	st := h.store.Status()

	fs := FinalState{
		Today:       cal.Today.String(),
		DayIndex:    cal.DayIndex,
		Phase:       string(cal.Phase),
		TotalPoints: prog.TotalPoints,
		Unlocked:    make([]string, 0, len(prog.Unlocked)),
		Remaining:   prog.Remaining,
		Pending:     st.PendingCount,
		Failed:      st.FailedPending,
		Records:     make(map[string]int),
		Remote:      make(map[string]int),
	}
	for _, m := range prog.Unlocked {
		fs.Unlocked = append(fs.Unlocked, m.Name)
	}
	if prog.Next != nil {
		fs.Next = prog.Next.Name
		fs.nextIndex = prog.Next.Index
	}
	for _, r := range h.store.Records(store.Filter{}) {
		fs.Records[string(r.Kind)]++
	}
	tables := append([]string{wire.TableFamilies, wire.TableProfiles}, wire.ActivityTables()...)
	for _, t := range tables {
		if n := len(h.gw.Rows(t)); n > 0 {
			fs.Remote[t] = n
		}
	}
	return fs
}
