package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Zlazh-dev/presensiapp3-sub002/api"
	"github.com/Zlazh-dev/presensiapp3-sub002/internal/checkout"
	"github.com/Zlazh-dev/presensiapp3-sub002/internal/geo"
	"github.com/Zlazh-dev/presensiapp3-sub002/internal/lock"
	"github.com/Zlazh-dev/presensiapp3-sub002/internal/models"
	"github.com/Zlazh-dev/presensiapp3-sub002/internal/monitor"
	"github.com/Zlazh-dev/presensiapp3-sub002/pkg/response"
	"github.com/Zlazh-dev/presensiapp3-sub002/pkg/sl"

	"github.com/google/uuid"
)

// Upstream is the authoritative attendance server boundary.
type Upstream interface {
	CheckIn(ctx context.Context, token string, lat, lng *float64) (*models.Session, []models.Student, error)
	CurrentSession(ctx context.Context) (*models.Session, string, error)
	Checkout(ctx context.Context, sessionID, reason string) error
	SubmitRoster(ctx context.Context, sessionID string, entries []models.RosterEntry) error
}

// AuditStore keeps the local checkout attempt trail.
type AuditStore interface {
	RecordCheckoutAttempt(ctx context.Context, a *models.CheckoutAttempt) error
	ListCheckoutAttempts(ctx context.Context, sessionID *string, from, to *time.Time) ([]*models.CheckoutAttempt, error)
}

// SessionView is the monitor surface the service needs.
type SessionView interface {
	View() monitor.View
	Refresh()
	DismissError()
}

// Geofence is the advisory check-in perimeter. Outside it the check-in still
// proceeds; only a warning is logged, the server does the real gating.
type Geofence struct {
	Lat     float64
	Lng     float64
	RadiusM float64
}

type Service struct {
	log    *slog.Logger
	up     Upstream
	mon    SessionView
	store  AuditStore
	locker lock.Locker
	fence  *Geofence
	wf     *checkout.Workflow
}

func NewService(log *slog.Logger, up Upstream, mon SessionView, store AuditStore, locker lock.Locker, fence *Geofence) *Service {
	s := &Service{
		log:    log,
		up:     up,
		mon:    mon,
		store:  store,
		locker: locker,
		fence:  fence,
	}
	s.wf = checkout.New(log, s)

	return s
}

// Workflow exposes the early-checkout state machine for the view layer.
func (s *Service) Workflow() *checkout.Workflow {
	return s.wf
}

func (s *Service) CheckIn(ctx context.Context, req *api.CheckInRequest) (*api.CheckInResponse, error) {
	const op = "service.CheckIn"

	if s.fence != nil && req.Lat != nil && req.Lng != nil {
		dist := geo.DistanceM(*req.Lat, *req.Lng, s.fence.Lat, s.fence.Lng)
		if dist > s.fence.RadiusM {
			s.log.Warn("check-in outside advisory geofence",
				slog.Float64("distance_m", dist),
				slog.Float64("radius_m", s.fence.RadiusM),
			)
		}
	}

	sess, roster, err := s.up.CheckIn(ctx, req.Token, req.Lat, req.Lng)
	if err != nil {
		var conflict *models.ConflictError
		if errors.As(err, &conflict) {
			return nil, conflict
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.wf.Reset()
	s.mon.Refresh()

	resp := &api.CheckInResponse{
		Session: toSessionDTO(sess),
		Roster:  make([]api.StudentDTO, 0, len(roster)),
	}
	for _, st := range roster {
		resp.Roster = append(resp.Roster, api.StudentDTO{ID: st.ID, NIS: st.NIS, Name: st.Name})
	}

	return resp, nil
}

// Checkout ends the active session, routing through the early-checkout
// workflow when the server demands a reason. A redis lock makes the
// submission single-flight: a double-tap gets ErrLocked instead of a second
// upstream call.
func (s *Service) Checkout(ctx context.Context, req *api.CheckoutRequest) (*api.CheckoutResponse, error) {
	const op = "service.Checkout"

	view := s.mon.View()
	if !view.Active() {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNoActiveSession)
	}
	sessionID := view.Session.ID

	lockKey := fmt.Sprintf("checkout:%s", sessionID)
	locked, err := s.locker.Lock(ctx, lockKey, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: lock error: %w", op, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", op, response.ErrLocked)
	}
	defer func() {
		_ = s.locker.Unlock(ctx, lockKey)
	}()

	// a pending reason prompt only applies to the session it was raised for
	if s.wf.State() == checkout.StateAwaitingReason && s.wf.SessionID() == sessionID {
		err = s.wf.Submit(ctx, req.Reason)
	} else {
		err = s.wf.Begin(ctx, sessionID, req.Reason)
	}
	if err != nil {
		return nil, err
	}

	s.mon.Refresh()

	return &api.CheckoutResponse{Completed: true}, nil
}

// SubmitCheckout is the workflow's Submitter: one upstream call plus one
// audit record per attempt, regardless of outcome.
func (s *Service) SubmitCheckout(ctx context.Context, sessionID, reason string) error {
	err := s.up.Checkout(ctx, sessionID, reason)

	outcome := models.AttemptAccepted
	var earlyErr *models.EarlyCheckoutError
	switch {
	case err == nil:
	case errors.As(err, &earlyErr):
		outcome = models.AttemptEarlyRejected
	default:
		outcome = models.AttemptFailed
	}

	view := s.mon.View()
	attempt := &models.CheckoutAttempt{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		Reason:         reason,
		Outcome:        outcome,
		ElapsedPercent: view.Snapshot.ElapsedPercent,
		CreatedAt:      time.Now(),
	}
	if storeErr := s.store.RecordCheckoutAttempt(ctx, attempt); storeErr != nil {
		// the audit trail must never block a checkout
		s.log.Error("failed to record checkout attempt", sl.Err(storeErr))
	}

	return err
}

func (s *Service) SessionView() *api.SessionViewResponse {
	view := s.mon.View()

	if !view.Active() {
		return &api.SessionViewResponse{
			Active: false,
			Reason: view.NoSessionReason,
			Notice: view.TransientError,
		}
	}

	sess := toSessionDTO(view.Session)

	return &api.SessionViewResponse{
		Active:  true,
		Session: &sess,
		Timer: &api.TimerDTO{
			Now:              view.Snapshot.Now,
			Status:           string(view.Snapshot.Status),
			ElapsedPercent:   view.Snapshot.ElapsedPercent,
			ElapsedMinutes:   view.Snapshot.ElapsedMinutes,
			RemainingSeconds: view.Snapshot.RemainingSeconds,
		},
		Checkout: &api.CheckoutPolicyDTO{
			Blocked:            view.Policy.Blocked,
			EarlyAllowed:       view.Policy.EarlyAllowed,
			NormalAllowed:      view.Policy.NormalAllowed,
			MinutesUntilEarly:  view.Policy.MinutesUntilEarly,
			MinutesUntilNormal: view.Policy.MinutesUntilNormal,
		},
		Notice: view.TransientError,
	}
}

func (s *Service) DismissNotice() {
	s.mon.DismissError()
}

func (s *Service) SubmitRoster(ctx context.Context, req *api.RosterSubmitRequest) error {
	const op = "service.SubmitRoster"

	entries := make([]models.RosterEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, models.RosterEntry{StudentID: e.StudentID, Status: e.Status, Note: e.Note})
	}

	if err := s.up.SubmitRoster(ctx, req.SessionID, entries); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Service) ListAudit(ctx context.Context, sessionID *string, from, to *time.Time) ([]*api.CheckoutAttemptResponse, error) {
	const op = "service.ListAudit"

	attempts, err := s.store.ListCheckoutAttempts(ctx, sessionID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]*api.CheckoutAttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, &api.CheckoutAttemptResponse{
			ID:             a.ID,
			SessionID:      a.SessionID,
			Reason:         a.Reason,
			Outcome:        string(a.Outcome),
			ElapsedPercent: a.ElapsedPercent,
			CreatedAt:      a.CreatedAt,
		})
	}

	return out, nil
}

func toSessionDTO(sess *models.Session) api.SessionDTO {
	return api.SessionDTO{
		ID:          sess.ID,
		ScheduleID:  sess.ScheduleID,
		ClassID:     sess.ClassID,
		ClassName:   sess.ClassName,
		Subject:     sess.Subject,
		CheckedInAt: sess.CheckedInAt,
		Window: api.ScheduleWindowDTO{
			StartTime: sess.Window.StartTime,
			EndTime:   sess.Window.EndTime,
		},
		Status: string(sess.Tag),
		Gating: api.GatingDTO{
			CanCheckIn:           sess.Gating.CanCheckIn,
			CanCheckOut:          sess.Gating.CanCheckOut,
			MinutesUntilCheckIn:  sess.Gating.MinutesUntilCheckIn,
			MinutesUntilCheckOut: sess.Gating.MinutesUntilCheckOut,
		},
	}
}
