package trustregion

import "fmt"

// Status is the state of the optimizer. Solve always returns one of the
// terminal states.
type Status int

const (
	StatusInitializing Status = iota
	StatusIterating
	StatusConverged
	StatusBudgetExhausted
	StatusDegenerateFailure
)

var statusNames = map[Status]string{
	StatusInitializing:      "INITIALIZING",
	StatusIterating:         "ITERATING",
	StatusConverged:         "CONVERGED",
	StatusBudgetExhausted:   "BUDGET_EXHAUSTED",
	StatusDegenerateFailure: "DEGENERATE_FAILURE",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Terminal reports whether s ends a run.
func (s Status) Terminal() bool {
	return s == StatusConverged || s == StatusBudgetExhausted || s == StatusDegenerateFailure
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	for st, name := range statusNames {
		if name == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", b)
}
