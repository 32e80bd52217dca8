package scenario

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the golden-file form of a run.
type Snapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
	Final        FinalState   `json:"final"`
}

// MarshalSnapshot renders a run as indented JSON with a trailing newline.
// Map keys are sorted, so the output is stable.
func MarshalSnapshot(name string, r *Result) ([]byte, error) {
	data, err := json.MarshalIndent(Snapshot{
		ScenarioName: name,
		Trace:        r.Trace,
		Final:        r.Final,
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden runs sc and compares its snapshot with
// testdata/golden/{sc.Name}.golden. Regenerate with:
//
//	go test ./internal/scenario -update
func RunWithGolden(t *testing.T, sc *Scenario, opts Options) *Result {
	t.Helper()

	result, err := Run(sc, opts)
	if err != nil {
		t.Fatalf("run %s: %v", sc.Name, err)
	}
	data, err := MarshalSnapshot(sc.Name, result)
	if err != nil {
		t.Fatalf("marshal %s: %v", sc.Name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, sc.Name, data)
	return result
}
