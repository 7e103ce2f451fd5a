package models

import (
	"errors"
	"fmt"
	"time"
)

// TimerStatus is the locally computed phase of the schedule window.
type TimerStatus string

const (
	TimerNotStarted TimerStatus = "NOT_STARTED"
	TimerOngoing    TimerStatus = "ONGOING"
	TimerEndingSoon TimerStatus = "ENDING_SOON"
	TimerEnded      TimerStatus = "ENDED"
)

// SessionTag is the server-side lifecycle tag of a session.
type SessionTag string

const (
	SessionScheduled SessionTag = "scheduled"
	SessionOngoing   SessionTag = "ongoing"
	SessionActive    SessionTag = "active"
	SessionCompleted SessionTag = "completed"
)

var ErrInvalidWindow = errors.New("schedule window end is not after start")

// ScheduleWindow is the planned start/end time-of-day of a class period.
// It is the only window elapsed-time math is allowed to use; the actual
// check-in moment is kept separately on the Session for display.
type ScheduleWindow struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Bounds anchors the window's times-of-day to the calendar day of `day`.
func (w ScheduleWindow) Bounds(day time.Time) (time.Time, time.Time, error) {
	const op = "models.ScheduleWindow.Bounds"

	start, err := parseTimeOfDay(w.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%s: invalid start_time: %w", op, err)
	}

	end, err := parseTimeOfDay(w.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%s: invalid end_time: %w", op, err)
	}

	y, m, d := day.Date()
	loc := day.Location()
	startAt := time.Date(y, m, d, start.Hour(), start.Minute(), start.Second(), 0, loc)
	endAt := time.Date(y, m, d, end.Hour(), end.Minute(), end.Second(), 0, loc)

	return startAt, endAt, nil
}

func parseTimeOfDay(s string) (time.Time, error) {
	t, err := time.Parse("15:04:05", s)
	if err == nil {
		return t, nil
	}
	return time.Parse("15:04", s)
}

// GatingFlags are server-computed checkout/check-in affordances. They are
// patched in place by time-update push events.
type GatingFlags struct {
	CanCheckIn           bool `json:"can_check_in"`
	CanCheckOut          bool `json:"can_check_out"`
	MinutesUntilCheckIn  int  `json:"minutes_until_check_in"`
	MinutesUntilCheckOut int  `json:"minutes_until_check_out"`
}

// Session is one teacher-class-subject occupancy of a schedule window, as
// reported by the authoritative server.
type Session struct {
	ID          string         `json:"id"`
	ScheduleID  string         `json:"schedule_id"`
	ClassID     string         `json:"class_id"`
	ClassName   string         `json:"class_name"`
	Subject     string         `json:"subject"`
	CheckedInAt time.Time      `json:"checked_in_at"`
	Window      ScheduleWindow `json:"window"`
	Tag         SessionTag     `json:"status"`
	Gating      GatingFlags    `json:"gating"`
}

type Student struct {
	ID   string `json:"id"`
	NIS  string `json:"nis"`
	Name string `json:"name"`
}

type RosterEntry struct {
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
	Note      string `json:"note,omitempty"`
}

type ReasonOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// EarlyCheckoutContext is the server's structured "reason required" rejection
// payload. It is owned by the early-checkout workflow and discarded on
// resolution or cancellation.
type EarlyCheckoutContext struct {
	ElapsedPercent             int            `json:"elapsed_percent"`
	ElapsedMinutes             int            `json:"elapsed_minutes"`
	TotalMinutes               int            `json:"total_minutes"`
	MinutesUntilNormalCheckout int            `json:"minutes_until_normal_checkout"`
	AvailableReasons           []ReasonOption `json:"available_reasons"`
}

// EarlyCheckoutError is a control-flow signal, not a failure: the server
// accepted the request shape but demands a justification first.
type EarlyCheckoutError struct {
	Context EarlyCheckoutContext
}

func (e *EarlyCheckoutError) Error() string {
	return fmt.Sprintf("early checkout requires a reason (%d%% elapsed, normal checkout in %d min)",
		e.Context.ElapsedPercent, e.Context.MinutesUntilNormalCheckout)
}

// ConflictError reports a server-detected second active session for the same
// teacher. There is no local recovery; the conflicting identity is surfaced
// verbatim for the user to resolve out-of-band.
type ConflictError struct {
	SessionID string
	ClassName string
	Subject   string
	Message   string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("teacher already has an active session %s (%s, %s)", e.SessionID, e.ClassName, e.Subject)
}

// CheckoutAttemptOutcome classifies one checkout submission for the audit trail.
type CheckoutAttemptOutcome string

const (
	AttemptAccepted      CheckoutAttemptOutcome = "ACCEPTED"
	AttemptEarlyRejected CheckoutAttemptOutcome = "EARLY_REJECTED"
	AttemptFailed        CheckoutAttemptOutcome = "FAILED"
)

type CheckoutAttempt struct {
	ID             string                 `db:"id"`
	SessionID      string                 `db:"session_id"`
	Reason         string                 `db:"reason"`
	Outcome        CheckoutAttemptOutcome `db:"outcome"`
	ElapsedPercent int                    `db:"elapsed_percent"`
	CreatedAt      time.Time              `db:"created_at"`
}
