package progression

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/crescent/internal/domain"
)

//go:embed schema.cue
var schemaCUE string

//go:embed default.cue
var defaultCUE string

// MilestoneCount is the fixed number of milestone tiers.
const MilestoneCount = 9

// Config is the static progression data: caps, scaling and milestones.
// It is configuration, not computed; the Engine only applies it.
type Config struct {
	Caps       map[domain.ProfileType]int `json:"caps"`
	MaxAdults  int                        `json:"max_adults"`
	Scale      ScaleConfig                `json:"scale"`
	Milestones []MilestoneSpec            `json:"milestones"`
	Avatars    []AvatarSpec               `json:"avatars"`
}

// ScaleConfig maps household composition to a threshold scale factor:
//
//	factor = max(MinFactor, sum(weight(type)) / Baseline)
type ScaleConfig struct {
	Baseline  float64                        `json:"baseline"`
	MinFactor float64                        `json:"min_factor"`
	Weights   map[domain.ProfileType]float64 `json:"weights"`
}

// MilestoneSpec is one unscaled milestone tier.
type MilestoneSpec struct {
	Name        string `json:"name"`
	Threshold   int    `json:"threshold"`
	Avatar      string `json:"avatar,omitempty"`
	Description string `json:"description"`
}

// AvatarSpec gates an avatar behind a milestone (1-based, 0 = none) and/or
// premium entitlement.
type AvatarSpec struct {
	ID        string `json:"id"`
	Milestone int    `json:"milestone"`
	Premium   bool   `json:"premium"`
}

// DefaultConfig returns the built-in configuration.
// Panics if the embedded document is invalid (caught by tests).
func DefaultConfig() Config {
	cfg, err := ParseConfig([]byte(defaultCUE), "default.cue")
	if err != nil {
		panic(fmt.Sprintf("embedded progression config: %v", err))
	}
	return cfg
}

// LoadConfig reads a CUE configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read progression config: %w", err)
	}
	return ParseConfig(data, path)
}

// ParseConfig compiles a CUE document, unifies it with the schema, and
// decodes it. The result is validated before being returned.
func ParseConfig(data []byte, filename string) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile schema: %w", err)
	}

	doc := ctx.CompileBytes(data, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return Config{}, fmt.Errorf("compile %s: %w", filename, err)
	}

	v := schema.Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("validate %s: %w", filename, err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", filename, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", filename, err)
	}
	return cfg, nil
}

// Validate checks invariants the schema cannot express: exactly
// MilestoneCount milestones with strictly increasing thresholds, and every
// avatar gate referring to an existing milestone.
func (c Config) Validate() error {
	for _, t := range domain.ProfileTypes {
		if c.Caps[t] <= 0 {
			return fmt.Errorf("missing daily cap for %s", t)
		}
		if c.Scale.Weights[t] <= 0 {
			return fmt.Errorf("missing scale weight for %s", t)
		}
	}
	if c.Scale.Baseline <= 0 || c.Scale.MinFactor <= 0 {
		return fmt.Errorf("scale baseline and min_factor must be positive")
	}
	if len(c.Milestones) != MilestoneCount {
		return fmt.Errorf("want %d milestones, got %d", MilestoneCount, len(c.Milestones))
	}
	for i := 1; i < len(c.Milestones); i++ {
		if c.Milestones[i].Threshold <= c.Milestones[i-1].Threshold {
			return fmt.Errorf("milestone %q threshold %d does not exceed %q threshold %d",
				c.Milestones[i].Name, c.Milestones[i].Threshold,
				c.Milestones[i-1].Name, c.Milestones[i-1].Threshold)
		}
	}
	seen := make(map[string]bool, len(c.Avatars))
	for _, a := range c.Avatars {
		if seen[a.ID] {
			return fmt.Errorf("duplicate avatar %q", a.ID)
		}
		seen[a.ID] = true
		if a.Milestone < 0 || a.Milestone > len(c.Milestones) {
			return fmt.Errorf("avatar %q gated on unknown milestone %d", a.ID, a.Milestone)
		}
	}
	return nil
}
