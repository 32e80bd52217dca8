package scenario

import (
	"fmt"
	"slices"
)

// AssertionError describes a failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

func mismatch(typ string, want, got any) error {
	return &AssertionError{Type: typ, Expected: fmt.Sprint(want), Actual: fmt.Sprint(got)}
}

// evaluate checks one assertion against the final state.
func evaluate(fs FinalState, a Assertion) error {
	switch a.Type {
	case AssertTotalPoints:
		if fs.TotalPoints != a.Value {
			return mismatch(a.Type, a.Value, fs.TotalPoints)
		}
	case AssertUnlocked:
		if len(fs.Unlocked) != a.Value {
			return mismatch(a.Type, a.Value, len(fs.Unlocked))
		}
		if a.Names != nil && !slices.Equal(a.Names, fs.Unlocked) {
			return mismatch(a.Type, a.Names, fs.Unlocked)
		}
	case AssertNextMilestone:
		if fs.nextIndex != a.Index {
			return mismatch(a.Type, fmt.Sprintf("milestone %d", a.Index), fmt.Sprintf("milestone %d", fs.nextIndex))
		}
		if a.Index != 0 && fs.Remaining != a.Value {
			return mismatch(a.Type, fmt.Sprintf("%d remaining", a.Value), fmt.Sprintf("%d remaining", fs.Remaining))
		}
	case AssertPending:
		if fs.Pending != a.Value {
			return mismatch(a.Type, a.Value, fs.Pending)
		}
	case AssertFailed:
		if fs.Failed != a.Value {
			return mismatch(a.Type, a.Value, fs.Failed)
		}
	case AssertRecords:
		if got := fs.Records[a.Kind]; got != a.Value {
			return mismatch(a.Type+" "+a.Kind, a.Value, got)
		}
	case AssertRemoteRows:
		if got := fs.Remote[a.Table]; got != a.Value {
			return mismatch(a.Type+" "+a.Table, a.Value, got)
		}
	case AssertDayIndex:
		if fs.DayIndex != a.Value {
			return mismatch(a.Type, a.Value, fs.DayIndex)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
