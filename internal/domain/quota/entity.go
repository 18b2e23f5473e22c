package quota

import "time"

// Record tracks one identity's usage inside the current window.
type Record struct {
	Count   int       `json:"count"`
	ResetAt time.Time `json:"reset_at"`
}

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed   bool          `json:"allowed"`
	Remaining int           `json:"remaining"`
	ResetIn   time.Duration `json:"reset_in"`
}
