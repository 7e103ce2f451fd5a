// Package checkout implements the early-checkout justification workflow:
// IDLE -> AWAITING_REASON -> SUBMITTING -> (RESOLVED | IDLE). The local policy
// engine only enables buttons; entry into this workflow is always triggered by
// the server's structured rejection, never by a local decision.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Zlazh-dev/presensiapp3-sub002/internal/models"
	"github.com/Zlazh-dev/presensiapp3-sub002/pkg/sl"
)

type State string

const (
	StateIdle           State = "IDLE"
	StateAwaitingReason State = "AWAITING_REASON"
	StateSubmitting     State = "SUBMITTING"
	StateResolved       State = "RESOLVED"
)

var (
	// ErrReasonRequired is a local validation failure: the user confirmed
	// without picking a reason. The checkout service must not be called.
	ErrReasonRequired = errors.New("a checkout reason must be selected")

	// ErrUnknownReason rejects reasons outside the server-issued catalog.
	ErrUnknownReason = errors.New("reason is not in the available reason list")

	// ErrRejectionLoop is the loop guard: the server rejected the same reason
	// twice, so re-prompting would cycle forever.
	ErrRejectionLoop = errors.New("server rejected the same checkout reason twice")

	errNotAwaitingReason = errors.New("workflow is not awaiting a reason")
)

// Submitter performs the actual checkout call. A *models.EarlyCheckoutError
// return drives the state machine; any other error is transient.
type Submitter interface {
	SubmitCheckout(ctx context.Context, sessionID, reason string) error
}

type Workflow struct {
	log *slog.Logger
	svc Submitter

	mu           sync.Mutex
	state        State
	sessionID    string
	ectx         *models.EarlyCheckoutContext
	lastRejected string
}

func New(log *slog.Logger, svc Submitter) *Workflow {
	return &Workflow{
		log:   log,
		svc:   svc,
		state: StateIdle,
	}
}

func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.state
}

// SessionID reports which session the workflow is bound to.
func (w *Workflow) SessionID() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.sessionID
}

// Context returns a copy of the current early-checkout context, or nil when
// the workflow holds none.
func (w *Workflow) Context() *models.EarlyCheckoutContext {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ectx == nil {
		return nil
	}
	c := *w.ectx

	return &c
}

// Begin runs the first checkout attempt for a session. On an early-checkout
// rejection the workflow captures the server's context, moves to
// AWAITING_REASON and returns the rejection so the caller can prompt.
func (w *Workflow) Begin(ctx context.Context, sessionID, reason string) error {
	const op = "checkout.Workflow.Begin"

	w.mu.Lock()
	w.state = StateSubmitting
	w.sessionID = sessionID
	w.ectx = nil
	w.lastRejected = ""
	w.mu.Unlock()

	err := w.svc.SubmitCheckout(ctx, sessionID, reason)

	w.mu.Lock()
	defer w.mu.Unlock()

	var earlyErr *models.EarlyCheckoutError
	switch {
	case err == nil:
		w.state = StateResolved
		w.ectx = nil
		return nil
	case errors.As(err, &earlyErr):
		w.state = StateAwaitingReason
		ec := earlyErr.Context
		w.ectx = &ec
		if reason != "" {
			w.lastRejected = reason
		}
		return err
	default:
		w.state = StateIdle
		w.ectx = nil
		return fmt.Errorf("%s: %w", op, err)
	}
}

// Submit resubmits with the reason the user selected. An empty reason never
// reaches the checkout service; a second rejection of the same reason trips
// the loop guard instead of silently re-entering AWAITING_REASON.
func (w *Workflow) Submit(ctx context.Context, reason string) error {
	const op = "checkout.Workflow.Submit"

	w.mu.Lock()
	if w.state != StateAwaitingReason {
		w.mu.Unlock()
		return fmt.Errorf("%s: %w", op, errNotAwaitingReason)
	}
	if reason == "" {
		w.mu.Unlock()
		return ErrReasonRequired
	}
	if w.ectx != nil && len(w.ectx.AvailableReasons) > 0 && !reasonListed(w.ectx.AvailableReasons, reason) {
		w.mu.Unlock()
		return ErrUnknownReason
	}
	sessionID := w.sessionID
	w.state = StateSubmitting
	w.mu.Unlock()

	// the reason is passed through verbatim; the server records it for audit
	err := w.svc.SubmitCheckout(ctx, sessionID, reason)

	w.mu.Lock()
	defer w.mu.Unlock()

	var earlyErr *models.EarlyCheckoutError
	switch {
	case err == nil:
		w.state = StateResolved
		w.ectx = nil
		w.lastRejected = ""
		return nil
	case errors.As(err, &earlyErr):
		if reason == w.lastRejected {
			w.log.Error("checkout reason rejected twice, aborting workflow", slog.String("reason", reason))
			w.state = StateIdle
			w.ectx = nil
			return fmt.Errorf("%s: %w", op, ErrRejectionLoop)
		}
		w.log.Warn("checkout reason rejected, prompting again", slog.String("reason", reason))
		w.state = StateAwaitingReason
		ec := earlyErr.Context
		w.ectx = &ec
		w.lastRejected = reason
		return err
	default:
		w.log.Error("checkout submission failed", sl.Err(err))
		w.state = StateIdle
		w.ectx = nil
		return fmt.Errorf("%s: %w", op, err)
	}
}

// Cancel abandons the workflow and drops its context.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.state = StateIdle
	w.ectx = nil
	w.lastRejected = ""
}

// Reset returns a RESOLVED workflow to IDLE for the next session.
func (w *Workflow) Reset() {
	w.Cancel()
}

func reasonListed(reasons []models.ReasonOption, reason string) bool {
	for _, r := range reasons {
		if r.Value == reason {
			return true
		}
	}

	return false
}
