package scenario

// TraceEvent is the outcome of one step.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Action  string `json:"action"`
	Profile string `json:"profile,omitempty"`
	Date    string `json:"date,omitempty"`
	Outcome string `json:"outcome"`

	// Pending is the queue length after the step.
	Pending int `json:"pending"`
}

// FinalState is what the household sees once every step has run.
type FinalState struct {
	Today       string   `json:"today"`
	DayIndex    int      `json:"day_index"`
	Phase       string   `json:"phase"`
	TotalPoints int      `json:"total_points"`
	Unlocked    []string `json:"unlocked"`
	Next        string   `json:"next,omitempty"`
	Remaining   int      `json:"remaining"`
	Pending     int      `json:"pending"`
	Failed      int      `json:"failed"`

	// Records counts local records by kind.
	Records map[string]int `json:"records"`

	// Remote counts backend rows by table, omitting empty tables.
	Remote map[string]int `json:"remote,omitempty"`

	nextIndex int
}

// Result is the outcome of a scenario run.
type Result struct {
	Pass   bool         `json:"pass"`
	Trace  []TraceEvent `json:"trace"`
	Final  FinalState   `json:"final"`
	Errors []string     `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
