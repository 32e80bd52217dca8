package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/crescent/internal/calendar"
	"github.com/roach88/crescent/internal/domain"
)

// Scenario is one replayable household session.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Now is the RFC 3339 wall time the run starts at. Empty uses
	// testutil.DefaultEpoch.
	Now string `yaml:"now,omitempty"`

	Family     FamilySpec    `yaml:"family"`
	Profiles   []ProfileSpec `yaml:"profiles"`
	Steps      []Step        `yaml:"steps"`
	Assertions []Assertion   `yaml:"assertions"`
}

// FamilySpec is the household created before the first step.
type FamilySpec struct {
	Name        string `yaml:"name"`
	SeasonStart string `yaml:"season_start"`
	Timezone    string `yaml:"timezone,omitempty"`
	PreDawn     string `yaml:"pre_dawn,omitempty"`
	Sunset      string `yaml:"sunset,omitempty"`
}

// ProfileSpec is a member added before the first step.
type ProfileSpec struct {
	Nickname string `yaml:"nickname"`
	Type     string `yaml:"type"`
	Avatar   string `yaml:"avatar,omitempty"`
}

// Step actions.
const (
	ActionReward       = "reward"
	ActionFast         = "fast"
	ActionSuhoor       = "suhoor"
	ActionMessage      = "message"
	ActionMemory       = "memory"
	ActionCapsule      = "capsule"
	ActionFavorite     = "favorite"
	ActionConfirmStart = "confirm_start"
	ActionAdvance      = "advance"
	ActionOffline      = "offline"
	ActionOnline       = "online"
	ActionSync         = "sync"
)

var validActions = map[string]bool{
	ActionReward: true, ActionFast: true, ActionSuhoor: true,
	ActionMessage: true, ActionMemory: true, ActionCapsule: true,
	ActionFavorite: true, ActionConfirmStart: true, ActionAdvance: true,
	ActionOffline: true, ActionOnline: true, ActionSync: true,
}

// OutcomeOK is the outcome of a step that succeeded.
const OutcomeOK = "ok"

// Step is one user or connectivity action.
type Step struct {
	Action string `yaml:"action"`

	// Profile and To are nicknames.
	Profile string `yaml:"profile,omitempty"`
	To      string `yaml:"to,omitempty"`

	// Date is the record date or the confirmed season start. Empty means
	// today.
	Date string `yaml:"date,omitempty"`

	Points    int    `yaml:"points,omitempty"`
	Category  string `yaml:"category,omitempty"`
	Status    string `yaml:"status,omitempty"`
	Text      string `yaml:"text,omitempty"`
	UnlockDay int    `yaml:"unlock_day,omitempty"`

	// Step is the 1-based index of an earlier record step, for favorite.
	Step int `yaml:"step,omitempty"`

	// Duration is a time.ParseDuration string, for advance.
	Duration string `yaml:"duration,omitempty"`

	Expect string `yaml:"expect,omitempty"`
}

// Assertion types.
const (
	AssertTotalPoints   = "total_points"
	AssertUnlocked      = "unlocked"
	AssertNextMilestone = "next_milestone"
	AssertPending       = "pending"
	AssertFailed        = "failed"
	AssertRecords       = "records"
	AssertRemoteRows    = "remote_rows"
	AssertDayIndex      = "day_index"
)

var validAssertions = map[string]bool{
	AssertTotalPoints: true, AssertUnlocked: true, AssertNextMilestone: true,
	AssertPending: true, AssertFailed: true, AssertRecords: true,
	AssertRemoteRows: true, AssertDayIndex: true,
}

// Assertion checks the final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Value is the expected number: points, count, day index, or the points
	// remaining for next_milestone.
	Value int `yaml:"value"`

	Kind  string   `yaml:"kind,omitempty"`  // records
	Table string   `yaml:"table,omitempty"` // remote_rows
	Index int      `yaml:"index,omitempty"` // next_milestone; 0 expects none
	Names []string `yaml:"names,omitempty"` // unlocked
}

// Load reads and validates a scenario file. Unknown keys are rejected.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// Validate checks required fields and references between sections.
func (s *Scenario) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if s.Name == "" {
		add("name is required")
	}
	if s.Description == "" {
		add("description is required")
	}
	if s.Now != "" {
		if _, err := time.Parse(time.RFC3339, s.Now); err != nil {
			add("now: %v", err)
		}
	}
	if s.Family.Name == "" {
		add("family.name is required")
	}
	if _, err := calendar.ParseDate(s.Family.SeasonStart); err != nil {
		add("family.season_start: %v", err)
	}
	if len(s.Profiles) == 0 {
		add("at least one profile is required")
	}

	names := make(map[string]bool, len(s.Profiles))
	for i, p := range s.Profiles {
		if p.Nickname == "" {
			add("profiles[%d]: nickname is required", i)
		}
		if names[p.Nickname] {
			add("profiles[%d]: duplicate nickname %q", i, p.Nickname)
		}
		names[p.Nickname] = true
		if !domain.ValidProfileTypes[domain.ProfileType(p.Type)] {
			add("profiles[%d]: unknown type %q", i, p.Type)
		}
	}

	if len(s.Steps) == 0 {
		add("steps list is required and must be non-empty")
	}
	for i, st := range s.Steps {
		if !validActions[st.Action] {
			add("steps[%d]: unknown action %q", i, st.Action)
			continue
		}
		if st.Profile != "" && !names[st.Profile] {
			add("steps[%d]: unknown profile %q", i, st.Profile)
		}
		if st.To != "" && !names[st.To] {
			add("steps[%d]: unknown recipient %q", i, st.To)
		}
		if st.Date != "" {
			if _, err := calendar.ParseDate(st.Date); err != nil {
				add("steps[%d]: date: %v", i, err)
			}
		}
		switch st.Action {
		case ActionReward, ActionFast, ActionSuhoor, ActionMessage, ActionMemory, ActionCapsule:
			if st.Profile == "" {
				add("steps[%d]: %s needs a profile", i, st.Action)
			}
		case ActionFavorite:
			if st.Step < 1 || st.Step > i {
				add("steps[%d]: favorite must reference an earlier step, got %d", i, st.Step)
			}
		case ActionConfirmStart:
			if st.Date == "" {
				add("steps[%d]: confirm_start needs a date", i)
			}
		case ActionAdvance:
			if _, err := time.ParseDuration(st.Duration); err != nil {
				add("steps[%d]: duration: %v", i, err)
			}
		}
	}

	if len(s.Assertions) == 0 {
		add("assertions list is required and must be non-empty")
	}
	for i, a := range s.Assertions {
		if !validAssertions[a.Type] {
			add("assertions[%d]: unknown type %q", i, a.Type)
		}
		if a.Type == AssertRecords && !domain.ValidKinds[domain.Kind(a.Kind)] {
			add("assertions[%d]: unknown kind %q", i, a.Kind)
		}
		if a.Type == AssertRemoteRows && a.Table == "" {
			add("assertions[%d]: table is required", i)
		}
	}
	return errors.Join(errs...)
}
