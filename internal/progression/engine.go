package progression

import (
	"fmt"
	"math"
	"sync"

	"github.com/roach88/crescent/internal/calendar"
	"github.com/roach88/crescent/internal/domain"
)

// Milestone is a milestone tier with its threshold scaled for one household.
type Milestone struct {
	Index         int    `json:"index"` // 1-based position in unlock order
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	BaseThreshold int    `json:"base_threshold"`
	Threshold     int    `json:"threshold"`
}

// Composition counts the profile types of a household.
type Composition struct {
	LittleStars int `json:"little_stars"`
	Children    int `json:"children"`
	Adults      int `json:"adults"`
}

// CompositionOf counts types. Unknown types are ignored.
func CompositionOf(types []domain.ProfileType) Composition {
	var c Composition
	for _, t := range types {
		switch t {
		case domain.ProfileLittleStar:
			c.LittleStars++
		case domain.ProfileChild:
			c.Children++
		case domain.ProfileAdult:
			c.Adults++
		}
	}
	return c
}

// Progress is the full progression view for (totalPoints, composition).
type Progress struct {
	TotalPoints   int                        `json:"total_points"`
	Composition   Composition                `json:"composition"`
	ScaleFactor   float64                    `json:"scale_factor"`
	DailyCaps     map[domain.ProfileType]int `json:"daily_caps"`
	SeasonMaximum int                        `json:"season_maximum"`
	Milestones    []Milestone                `json:"milestones"`
	Unlocked      []Milestone                `json:"unlocked"`

	// Next is nil once every milestone is unlocked.
	Next      *Milestone `json:"next,omitempty"`
	Remaining int        `json:"remaining"`
}

// Complete reports whether every milestone is unlocked.
func (p Progress) Complete() bool { return p.Next == nil }

// Engine computes progression from static configuration.
//
// Compute is a pure function of (totalPoints, profile types): no clock, no
// randomness. Results are memoized per (total, composition).
//
// Thread-safety: Engine is safe for concurrent use.
type Engine struct {
	cfg Config

	mu    sync.Mutex
	cache map[cacheKey]Progress
}

type cacheKey struct {
	total int
	comp  Composition
}

// maxCacheEntries bounds the memo table; it is cleared when full.
const maxCacheEntries = 4096

// New creates an Engine. The config is validated and copied.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("progression config: %w", err)
	}
	milestones := make([]MilestoneSpec, len(cfg.Milestones))
	copy(milestones, cfg.Milestones)
	cfg.Milestones = milestones

	return &Engine{
		cfg:   cfg,
		cache: make(map[cacheKey]Progress),
	}, nil
}

// NewDefault creates an Engine from DefaultConfig.
func NewDefault() *Engine {
	e, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return e
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// DailyCap returns the per-day earning cap for a profile type, 0 if unknown.
func (e *Engine) DailyCap(t domain.ProfileType) int {
	return e.cfg.Caps[t]
}

// SeasonMaximum is the sum over profiles of daily cap × season length.
// Display only; it plays no part in unlocking.
func (e *Engine) SeasonMaximum(types []domain.ProfileType) int {
	total := 0
	for _, t := range types {
		total += e.cfg.Caps[t] * calendar.SeasonLength
	}
	return total
}

// ScaleFactor derives the threshold multiplier from household composition.
// Adults beyond MaxAdults do not add capacity.
func (e *Engine) ScaleFactor(c Composition) float64 {
	adults := c.Adults
	if e.cfg.MaxAdults > 0 && adults > e.cfg.MaxAdults {
		adults = e.cfg.MaxAdults
	}
	w := e.cfg.Scale.Weights
	weight := float64(c.LittleStars)*w[domain.ProfileLittleStar] +
		float64(c.Children)*w[domain.ProfileChild] +
		float64(adults)*w[domain.ProfileAdult]

	factor := weight / e.cfg.Scale.Baseline
	if factor < e.cfg.Scale.MinFactor {
		factor = e.cfg.Scale.MinFactor
	}
	return factor
}

// Milestones returns every milestone scaled for composition c, in unlock order.
func (e *Engine) Milestones(c Composition) []Milestone {
	factor := e.ScaleFactor(c)
	out := make([]Milestone, len(e.cfg.Milestones))
	for i, m := range e.cfg.Milestones {
		out[i] = Milestone{
			Index:         i + 1,
			Name:          m.Name,
			Description:   m.Description,
			Avatar:        m.Avatar,
			BaseThreshold: m.Threshold,
			Threshold:     int(math.Round(float64(m.Threshold) * factor)),
		}
	}
	return out
}

// Compute returns the progression for a household with the given total and
// member types. A total equal to a threshold unlocks it.
func (e *Engine) Compute(totalPoints int, types []domain.ProfileType) Progress {
	comp := CompositionOf(types)
	key := cacheKey{total: totalPoints, comp: comp}

	e.mu.Lock()
	cached, ok := e.cache[key]
	e.mu.Unlock()
	if ok {
		return cached.clone()
	}

	p := e.compute(totalPoints, types, comp)

	e.mu.Lock()
	if len(e.cache) >= maxCacheEntries {
		e.cache = make(map[cacheKey]Progress)
	}
	e.cache[key] = p
	e.mu.Unlock()

	return p.clone()
}

func (e *Engine) compute(total int, types []domain.ProfileType, comp Composition) Progress {
	p := Progress{
		TotalPoints:   total,
		Composition:   comp,
		ScaleFactor:   e.ScaleFactor(comp),
		DailyCaps:     make(map[domain.ProfileType]int, len(e.cfg.Caps)),
		SeasonMaximum: e.SeasonMaximum(types),
		Milestones:    e.Milestones(comp),
		Unlocked:      []Milestone{},
	}
	for t, c := range e.cfg.Caps {
		p.DailyCaps[t] = c
	}

	for i := range p.Milestones {
		m := p.Milestones[i]
		if m.Threshold <= total {
			p.Unlocked = append(p.Unlocked, m)
			continue
		}
		if p.Next == nil {
			next := m
			p.Next = &next
			p.Remaining = m.Threshold - total
		}
	}
	return p
}

func (p Progress) clone() Progress {
	out := p
	out.DailyCaps = make(map[domain.ProfileType]int, len(p.DailyCaps))
	for k, v := range p.DailyCaps {
		out.DailyCaps[k] = v
	}
	out.Milestones = append([]Milestone(nil), p.Milestones...)
	out.Unlocked = append([]Milestone{}, p.Unlocked...)
	if p.Next != nil {
		next := *p.Next
		out.Next = &next
	}
	return out
}

// AvatarAvailable reports whether avatar may be chosen given the unlocked
// milestones and the family's premium entitlement. Avatars not in the
// catalog are rejected.
func (e *Engine) AvatarAvailable(avatar string, unlocked []Milestone, premium bool) (bool, error) {
	for _, a := range e.cfg.Avatars {
		if a.ID != avatar {
			continue
		}
		if a.Premium && !premium {
			return false, nil
		}
		if a.Milestone == 0 {
			return true, nil
		}
		for _, m := range unlocked {
			if m.Index == a.Milestone {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("unknown avatar %q", avatar)
}

// AvailableAvatars lists the avatars selectable right now, in catalog order.
func (e *Engine) AvailableAvatars(unlocked []Milestone, premium bool) []string {
	out := []string{}
	for _, a := range e.cfg.Avatars {
		if ok, _ := e.AvatarAvailable(a.ID, unlocked, premium); ok {
			out = append(out, a.ID)
		}
	}
	return out
}
