package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Zlazh-dev/presensiapp3-sub002/internal/models"
)

type call struct {
	sessionID string
	reason    string
}

type fakeSubmitter struct {
	calls []call
	errs  []error
}

func (f *fakeSubmitter) SubmitCheckout(_ context.Context, sessionID, reason string) error {
	f.calls = append(f.calls, call{sessionID: sessionID, reason: reason})
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func earlyRejection(reasons ...string) *models.EarlyCheckoutError {
	opts := make([]models.ReasonOption, 0, len(reasons))
	for _, r := range reasons {
		opts = append(opts, models.ReasonOption{Value: r, Label: r})
	}
	return &models.EarlyCheckoutError{
		Context: models.EarlyCheckoutContext{
			ElapsedPercent:             62,
			ElapsedMinutes:             37,
			TotalMinutes:               60,
			MinutesUntilNormalCheckout: 11,
			AvailableReasons:           opts,
		},
	}
}

func TestBeginSuccess(t *testing.T) {
	svc := &fakeSubmitter{}
	w := New(testLogger(), svc)

	if err := w.Begin(context.Background(), "sess-1", ""); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if w.State() != StateResolved {
		t.Errorf("State = %v, want RESOLVED", w.State())
	}
	if len(svc.calls) != 1 {
		t.Fatalf("got %d checkout calls, want 1", len(svc.calls))
	}
	if w.Context() != nil {
		t.Error("resolved workflow must not retain an early-checkout context")
	}
}

func TestBeginEarlyRejection(t *testing.T) {
	svc := &fakeSubmitter{errs: []error{earlyRejection("sick", "meeting")}}
	w := New(testLogger(), svc)

	err := w.Begin(context.Background(), "sess-1", "")

	var earlyErr *models.EarlyCheckoutError
	if !errors.As(err, &earlyErr) {
		t.Fatalf("Begin() error = %v, want EarlyCheckoutError", err)
	}
	if w.State() != StateAwaitingReason {
		t.Errorf("State = %v, want AWAITING_REASON", w.State())
	}
	ectx := w.Context()
	if ectx == nil || len(ectx.AvailableReasons) != 2 {
		t.Fatalf("Context() = %+v, want captured reason catalog", ectx)
	}
}

func TestSubmitEmptyReasonNeverCallsService(t *testing.T) {
	svc := &fakeSubmitter{errs: []error{earlyRejection("sick")}}
	w := New(testLogger(), svc)
	_ = w.Begin(context.Background(), "sess-1", "")

	err := w.Submit(context.Background(), "")

	if !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("Submit() error = %v, want ErrReasonRequired", err)
	}
	if w.State() != StateAwaitingReason {
		t.Errorf("State = %v, want AWAITING_REASON (validation must not advance)", w.State())
	}
	if len(svc.calls) != 1 {
		t.Errorf("got %d checkout calls, want 1 (empty reason must not resubmit)", len(svc.calls))
	}
}

func TestSubmitUnknownReason(t *testing.T) {
	svc := &fakeSubmitter{errs: []error{earlyRejection("sick")}}
	w := New(testLogger(), svc)
	_ = w.Begin(context.Background(), "sess-1", "")

	err := w.Submit(context.Background(), "vacation")

	if !errors.Is(err, ErrUnknownReason) {
		t.Fatalf("Submit() error = %v, want ErrUnknownReason", err)
	}
	if len(svc.calls) != 1 {
		t.Errorf("got %d checkout calls, want 1", len(svc.calls))
	}
}

func TestSubmitValidReasonResolves(t *testing.T) {
	svc := &fakeSubmitter{errs: []error{earlyRejection("sick")}}
	w := New(testLogger(), svc)
	_ = w.Begin(context.Background(), "sess-1", "")

	if err := w.Submit(context.Background(), "sick"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if w.State() != StateResolved {
		t.Errorf("State = %v, want RESOLVED", w.State())
	}
	if got := svc.calls[len(svc.calls)-1]; got.reason != "sick" || got.sessionID != "sess-1" {
		t.Errorf("last call = %+v, want verbatim reason for sess-1", got)
	}
}

func TestSubmitSameReasonTwiceTripsLoopGuard(t *testing.T) {
	svc := &fakeSubmitter{errs: []error{
		earlyRejection("sick"),
		earlyRejection("sick"),
		earlyRejection("sick"),
	}}
	w := New(testLogger(), svc)
	_ = w.Begin(context.Background(), "sess-1", "")

	err := w.Submit(context.Background(), "sick")
	var earlyErr *models.EarlyCheckoutError
	if !errors.As(err, &earlyErr) {
		t.Fatalf("first Submit() error = %v, want EarlyCheckoutError", err)
	}
	if w.State() != StateAwaitingReason {
		t.Fatalf("State = %v, want AWAITING_REASON after first rejection", w.State())
	}

	err = w.Submit(context.Background(), "sick")
	if !errors.Is(err, ErrRejectionLoop) {
		t.Fatalf("second Submit() error = %v, want ErrRejectionLoop", err)
	}
	if w.State() != StateIdle {
		t.Errorf("State = %v, want IDLE (loop guard must not re-enter AWAITING_REASON)", w.State())
	}
	if w.Context() != nil {
		t.Error("loop guard must drop the early-checkout context")
	}
}

func TestSubmitDifferentReasonMayRetry(t *testing.T) {
	svc := &fakeSubmitter{errs: []error{
		earlyRejection("sick", "meeting"),
		earlyRejection("sick", "meeting"),
	}}
	w := New(testLogger(), svc)
	_ = w.Begin(context.Background(), "sess-1", "")

	if err := w.Submit(context.Background(), "sick"); err == nil {
		t.Fatal("first Submit() expected rejection")
	}
	if err := w.Submit(context.Background(), "meeting"); err != nil {
		t.Fatalf("Submit() with a different reason error = %v", err)
	}
	if w.State() != StateResolved {
		t.Errorf("State = %v, want RESOLVED", w.State())
	}
}

func TestSubmitTransientFailureReturnsToIdle(t *testing.T) {
	svc := &fakeSubmitter{errs: []error{
		earlyRejection("sick"),
		errors.New("connection refused"),
	}}
	w := New(testLogger(), svc)
	_ = w.Begin(context.Background(), "sess-1", "")

	err := w.Submit(context.Background(), "sick")
	if err == nil || errors.As(err, new(*models.EarlyCheckoutError)) {
		t.Fatalf("Submit() error = %v, want transient failure", err)
	}
	if w.State() != StateIdle {
		t.Errorf("State = %v, want IDLE", w.State())
	}
	if w.Context() != nil {
		t.Error("transient failure must drop the early-checkout context")
	}
}

func TestCancel(t *testing.T) {
	svc := &fakeSubmitter{errs: []error{earlyRejection("sick")}}
	w := New(testLogger(), svc)
	_ = w.Begin(context.Background(), "sess-1", "")

	w.Cancel()

	if w.State() != StateIdle {
		t.Errorf("State = %v, want IDLE", w.State())
	}
	if w.Context() != nil {
		t.Error("cancel must drop the early-checkout context")
	}
}
