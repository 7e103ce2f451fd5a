// Package policy derives checkout affordances from a timer snapshot. The
// result drives the UI only: the authoritative server re-runs the same gating
// on its own clock and its structured rejection is what actually decides
// whether a reason is mandatory.
package policy

import (
	"github.com/Zlazh-dev/presensiapp3-sub002/internal/timer"
)

// Thresholds are fixed. 50% opens early (reason-required) checkout, 80% opens
// normal checkout.
const (
	EarlyThresholdPercent  = 50
	NormalThresholdPercent = 80
)

type Decision struct {
	Blocked            bool `json:"blocked"`
	EarlyAllowed       bool `json:"early_allowed"`
	NormalAllowed      bool `json:"normal_allowed"`
	MinutesUntilEarly  int  `json:"minutes_until_early"`
	MinutesUntilNormal int  `json:"minutes_until_normal"`
}

// Evaluate is a pure lookup over the elapsed percent plus the not-started
// flag. notStarted forces Blocked regardless of percent, covering the
// checked-in-before-window case where the clamped percent reads 0.
func Evaluate(snap timer.Snapshot, notStarted bool) Decision {
	pct := snap.ElapsedPercent

	d := Decision{
		Blocked:            notStarted || pct < EarlyThresholdPercent,
		EarlyAllowed:       !notStarted && pct >= EarlyThresholdPercent && pct < NormalThresholdPercent,
		NormalAllowed:      !notStarted && pct >= NormalThresholdPercent,
		MinutesUntilEarly:  minutesUntil(snap, EarlyThresholdPercent),
		MinutesUntilNormal: minutesUntil(snap, NormalThresholdPercent),
	}

	return d
}

func minutesUntil(snap timer.Snapshot, thresholdPercent int64) int {
	elapsed := snap.ElapsedMs
	if elapsed < 0 {
		elapsed = 0
	}

	waitMs := snap.TotalMs*thresholdPercent/100 - elapsed
	if waitMs <= 0 {
		return 0
	}

	return int((waitMs + 59_999) / 60_000)
}
