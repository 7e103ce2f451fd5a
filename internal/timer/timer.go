// Package timer computes the phase of a running session against its schedule
// window. Compute is pure: it derives everything from the three absolute
// timestamps it is given, so callers can invoke it at any cadence (the 1 Hz
// tick, a push-triggered recompute, a test) without accumulating drift.
package timer

import (
	"fmt"
	"math"
	"time"

	"github.com/Zlazh-dev/presensiapp3-sub002/internal/models"
)

// Snapshot is the ephemeral result of one recomputation. It is never stored;
// each tick replaces the previous one wholesale.
type Snapshot struct {
	Now              time.Time
	ElapsedMs        int64
	RemainingMs      int64
	TotalMs          int64
	ElapsedPercent   int // clamped to [0,100], display only
	ElapsedMinutes   int
	RemainingSeconds int
	Status           models.TimerStatus
}

// Compute maps (scheduleStart, scheduleEnd, now) to a Snapshot.
//
// The status decision runs on the unclamped values: a negative elapsed time
// means NOT_STARTED even though the displayed percent clamps to 0. Clamping
// happens last for that reason.
func Compute(scheduleStart, scheduleEnd, now time.Time) (Snapshot, error) {
	const op = "timer.Compute"

	totalMs := scheduleEnd.Sub(scheduleStart).Milliseconds()
	if totalMs <= 0 {
		return Snapshot{}, fmt.Errorf("%s: %w", op, models.ErrInvalidWindow)
	}

	elapsedMs := now.Sub(scheduleStart).Milliseconds()
	remainingMs := scheduleEnd.Sub(now).Milliseconds()

	rawPercent := int(math.Round(float64(elapsedMs) / float64(totalMs) * 100))

	var status models.TimerStatus
	switch {
	case elapsedMs < 0:
		status = models.TimerNotStarted
	case remainingMs <= 0 || rawPercent >= 100:
		status = models.TimerEnded
	case rawPercent >= 90:
		status = models.TimerEndingSoon
	default:
		status = models.TimerOngoing
	}

	percent := rawPercent
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	elapsedMinutes := int(elapsedMs / 60_000)
	if elapsedMinutes < 0 {
		elapsedMinutes = 0
	}

	remainingSeconds := int(remainingMs / 1_000)
	if remainingSeconds < 0 {
		remainingSeconds = 0
	}

	return Snapshot{
		Now:              now,
		ElapsedMs:        elapsedMs,
		RemainingMs:      remainingMs,
		TotalMs:          totalMs,
		ElapsedPercent:   percent,
		ElapsedMinutes:   elapsedMinutes,
		RemainingSeconds: remainingSeconds,
		Status:           status,
	}, nil
}

// Fallback is the safe snapshot used when the schedule window is malformed.
// The session keeps displaying as ONGOING instead of propagating a negative
// percent; the caller is expected to log the invalid window.
func Fallback(now time.Time) Snapshot {
	return Snapshot{
		Now:    now,
		Status: models.TimerOngoing,
	}
}
