package transitions

import (
	"strings"
	"time"
)

const (
	// DefaultEffect replaces unknown effects and stands in for cuts.
	DefaultEffect = "fade"
	// MinDuration is the shortest transition that is ever emitted.
	MinDuration = 100 * time.Millisecond
	// CutDuration is the nominal duration reported for a cut.
	CutDuration = time.Millisecond
)

// Resolution is the outcome of resolving one requested transition.
type Resolution struct {
	Effect    string
	Duration  time.Duration
	Requested time.Duration
	Cut       bool
	Known     bool
}

// Resolve turns a user request into an effect the engine accepts. It never
// fails: empty, "none" and "cut" become a cut, unrecognized names become
// DefaultEffect, and durations below MinDuration are raised to it.
func Resolve(effect string, requested time.Duration) Resolution {
	if IsCut(effect) {
		return Resolution{
			Effect:    DefaultEffect,
			Duration:  CutDuration,
			Requested: requested,
			Cut:       true,
			Known:     true,
		}
	}

	d := requested
	if d < MinDuration {
		d = MinDuration
	}

	canonical, ok := Lookup(effect)
	if !ok {
		canonical = DefaultEffect
	}

	return Resolution{
		Effect:    canonical,
		Duration:  d,
		Requested: requested,
		Known:     ok,
	}
}

// Cap limits the resolved duration to the shorter of the two neighbours.
// The result may drop to zero when a neighbour has no duration.
func (r Resolution) Cap(before, after time.Duration) Resolution {
	limit := before
	if after < limit {
		limit = after
	}
	if limit < 0 {
		limit = 0
	}
	if r.Duration > limit {
		r.Duration = limit
	}
	return r
}

// IsCut reports whether effect requests a hard cut.
func IsCut(effect string) bool {
	switch normalizeName(effect) {
	case "", "none", "cut":
		return true
	}
	return false
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
