package api

import "time"

type ScheduleWindowDTO struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type GatingDTO struct {
	CanCheckIn           bool `json:"can_check_in"`
	CanCheckOut          bool `json:"can_check_out"`
	MinutesUntilCheckIn  int  `json:"minutes_until_check_in"`
	MinutesUntilCheckOut int  `json:"minutes_until_check_out"`
}

type SessionDTO struct {
	ID          string            `json:"id"`
	ScheduleID  string            `json:"schedule_id"`
	ClassID     string            `json:"class_id"`
	ClassName   string            `json:"class_name"`
	Subject     string            `json:"subject"`
	CheckedInAt time.Time         `json:"checked_in_at"`
	Window      ScheduleWindowDTO `json:"window"`
	Status      string            `json:"status"`
	Gating      GatingDTO         `json:"gating"`
}

type TimerDTO struct {
	Now              time.Time `json:"now"`
	Status           string    `json:"status"`
	ElapsedPercent   int       `json:"elapsed_percent"`
	ElapsedMinutes   int       `json:"elapsed_minutes"`
	RemainingSeconds int       `json:"remaining_seconds"`
}

type CheckoutPolicyDTO struct {
	Blocked            bool `json:"blocked"`
	EarlyAllowed       bool `json:"early_allowed"`
	NormalAllowed      bool `json:"normal_allowed"`
	MinutesUntilEarly  int  `json:"minutes_until_early"`
	MinutesUntilNormal int  `json:"minutes_until_normal"`
}

// SessionViewResponse is the full view model. Active=false carries the
// server's human-readable reason instead of an empty session.
type SessionViewResponse struct {
	Active   bool               `json:"active"`
	Reason   string             `json:"reason,omitempty"`
	Session  *SessionDTO        `json:"session,omitempty"`
	Timer    *TimerDTO          `json:"timer,omitempty"`
	Checkout *CheckoutPolicyDTO `json:"checkout,omitempty"`
	Notice   string             `json:"notice,omitempty"`
}

type CheckInRequest struct {
	Token string   `json:"token"`
	Lat   *float64 `json:"lat,omitempty"`
	Lng   *float64 `json:"lng,omitempty"`
}

type StudentDTO struct {
	ID   string `json:"id"`
	NIS  string `json:"nis"`
	Name string `json:"name"`
}

type CheckInResponse struct {
	Session SessionDTO   `json:"session"`
	Roster  []StudentDTO `json:"roster"`
}

type ConflictDTO struct {
	SessionID string `json:"session_id"`
	ClassName string `json:"class_name"`
	Subject   string `json:"subject"`
}

type CheckoutRequest struct {
	Reason string `json:"reason,omitempty"`
}

type ReasonOptionDTO struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type EarlyCheckoutDTO struct {
	ElapsedPercent             int               `json:"elapsed_percent"`
	ElapsedMinutes             int               `json:"elapsed_minutes"`
	TotalMinutes               int               `json:"total_minutes"`
	MinutesUntilNormalCheckout int               `json:"minutes_until_normal_checkout"`
	AvailableReasons           []ReasonOptionDTO `json:"available_reasons"`
}

type CheckoutResponse struct {
	Completed bool `json:"completed"`
}

type RosterEntryDTO struct {
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
	Note      string `json:"note,omitempty"`
}

type RosterSubmitRequest struct {
	SessionID string           `json:"session_id"`
	Entries   []RosterEntryDTO `json:"entries"`
}

type CheckoutAttemptResponse struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	Reason         string    `json:"reason,omitempty"`
	Outcome        string    `json:"outcome"`
	ElapsedPercent int       `json:"elapsed_percent"`
	CreatedAt      time.Time `json:"created_at"`
}
