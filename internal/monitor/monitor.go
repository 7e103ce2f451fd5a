// Package monitor keeps the locally-ticking session view consistent with the
// authoritative server. One goroutine owns all state and serializes its three
// input sources (timer tick, fetch completion, push message) through a single
// inbox, so a stale fetch result can never overwrite a newer one: every fetch
// carries a generation number and only the latest generation is applied.
package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Zlazh-dev/presensiapp3-sub002/internal/clock"
	"github.com/Zlazh-dev/presensiapp3-sub002/internal/models"
	"github.com/Zlazh-dev/presensiapp3-sub002/internal/policy"
	"github.com/Zlazh-dev/presensiapp3-sub002/internal/push"
	"github.com/Zlazh-dev/presensiapp3-sub002/internal/timer"
	"github.com/Zlazh-dev/presensiapp3-sub002/pkg/sl"
)

const fetchTimeout = 10 * time.Second

// Fetcher queries the authoritative current session.
type Fetcher interface {
	CurrentSession(ctx context.Context) (*models.Session, string, error)
}

// View is what the presentation layer reads: the authoritative session plus
// the locally recomputed snapshot and checkout affordances. A nil Session
// with a NoSessionReason is the explicit "no active session" state.
type View struct {
	Session         *models.Session
	Snapshot        timer.Snapshot
	Policy          policy.Decision
	NoSessionReason string
	TransientError  string
}

func (v View) Active() bool {
	return v.Session != nil
}

type tickEvent struct {
	now time.Time
}

type fetchDone struct {
	gen        uint64
	session    *models.Session
	noneReason string
	err        error
}

type pushEvent struct {
	topic   string
	payload []byte
}

type refreshRequest struct{}

type dismissRequest struct{}

type Monitor struct {
	log      *slog.Logger
	fetcher  Fetcher
	bus      push.Bus
	clk      clock.Clock
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	inbox chan any
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once

	mu   sync.RWMutex
	view View

	// owned by the loop goroutine
	fetchGen     uint64
	subscribedID string
}

func New(log *slog.Logger, fetcher Fetcher, bus push.Bus, clk clock.Clock, interval time.Duration) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())

	return &Monitor{
		log:      log,
		fetcher:  fetcher,
		bus:      bus,
		clk:      clk,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		inbox:    make(chan any, 32),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the actor goroutine: it fetches the current session once,
// subscribes to the global schedule-updated topic and begins ticking.
func (m *Monitor) Start() {
	go m.loop()
}

// Stop tears the actor down: the ticker, the per-session and global
// subscriptions, and any in-flight fetch go away in one step. Late fetch
// results are dropped, not applied.
func (m *Monitor) Stop() {
	m.once.Do(func() {
		m.cancel()
		close(m.quit)
	})
	<-m.done
}

// Refresh asks the actor for a full authoritative refetch. Used after
// check-in and checkout so the view converges without waiting for a push.
func (m *Monitor) Refresh() {
	m.post(refreshRequest{})
}

// DismissError clears the transient error message.
func (m *Monitor) DismissError() {
	m.post(dismissRequest{})
}

// View returns a copy of the current view.
func (m *Monitor) View() View {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v := m.view
	if v.Session != nil {
		s := *v.Session
		v.Session = &s
	}

	return v
}

func (m *Monitor) post(ev any) {
	select {
	case m.inbox <- ev:
	case <-m.quit:
	}
}

func (m *Monitor) loop() {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	defer m.unsubscribeAll()

	if err := m.bus.Subscribe(m.ctx, push.TopicScheduleUpdated, m.onPush); err != nil {
		m.log.Error("failed to subscribe to schedule-updated", sl.Err(err))
	}

	m.refetch()

	for {
		select {
		case <-m.quit:
			return
		case <-ticker.C:
			m.handleTick(tickEvent{now: m.clk.Now()})
		case ev := <-m.inbox:
			switch ev := ev.(type) {
			case tickEvent:
				m.handleTick(ev)
			case fetchDone:
				m.handleFetchDone(ev)
			case pushEvent:
				m.handlePush(ev)
			case refreshRequest:
				m.refetch()
			case dismissRequest:
				m.mutate(func(v *View) { v.TransientError = "" })
			}
		}
	}
}

func (m *Monitor) onPush(topic string, payload []byte) {
	m.post(pushEvent{topic: topic, payload: payload})
}

// refetch starts a new fetch generation. An older in-flight fetch keeps
// running but its result will not match fetchGen and gets discarded.
func (m *Monitor) refetch() {
	m.fetchGen++
	gen := m.fetchGen

	go func() {
		ctx, cancel := context.WithTimeout(m.ctx, fetchTimeout)
		defer cancel()

		sess, reason, err := m.fetcher.CurrentSession(ctx)
		m.post(fetchDone{gen: gen, session: sess, noneReason: reason, err: err})
	}()
}

func (m *Monitor) handleFetchDone(ev fetchDone) {
	if ev.gen != m.fetchGen {
		m.log.Debug("discarding superseded fetch result",
			slog.Uint64("gen", ev.gen), slog.Uint64("latest", m.fetchGen))
		return
	}

	if ev.err != nil {
		// a failed refetch must not stop the clock; keep the last view ticking
		m.log.Error("session refetch failed", sl.Err(ev.err))
		m.mutate(func(v *View) { v.TransientError = ev.err.Error() })
		return
	}

	if ev.session == nil {
		m.log.Info("no active session", slog.String("reason", ev.noneReason))
		m.resubscribe("")
		m.mutate(func(v *View) {
			*v = View{NoSessionReason: ev.noneReason}
		})
		return
	}

	m.resubscribe(ev.session.ID)
	sess := ev.session
	m.mutate(func(v *View) {
		*v = View{Session: sess}
	})
	m.handleTick(tickEvent{now: m.clk.Now()})
}

func (m *Monitor) handleTick(ev tickEvent) {
	sess := m.View().Session
	if sess == nil {
		return
	}

	snap := m.computeSnapshot(sess, ev.now)
	pol := policy.Evaluate(snap, snap.Status == models.TimerNotStarted)

	m.mutate(func(v *View) {
		if v.Session == nil {
			return
		}
		v.Snapshot = snap
		v.Policy = pol
	})
}

func (m *Monitor) computeSnapshot(sess *models.Session, now time.Time) timer.Snapshot {
	start, end, err := sess.Window.Bounds(now)
	if err != nil {
		m.log.Warn("malformed schedule window, using fallback status", sl.Err(err))
		return timer.Fallback(now)
	}

	snap, err := timer.Compute(start, end, now)
	if err != nil {
		m.log.Warn("invalid schedule window, using fallback status",
			sl.Err(err), slog.String("session_id", sess.ID))
		return timer.Fallback(now)
	}

	return snap
}

func (m *Monitor) handlePush(ev pushEvent) {
	id := m.subscribedID

	switch ev.topic {
	case push.TopicScheduleUpdated:
		m.refetch()
	case push.TopicStatusChanged(id):
		m.refetch()
	case push.TopicTimeUpdate(id):
		m.applyTimeUpdate(ev.payload)
	default:
		m.log.Debug("push event for unwatched topic", slog.String("topic", ev.topic))
	}
}

// applyTimeUpdate patches gating flags in place instead of refetching, so
// in-flight local UI state survives the update.
func (m *Monitor) applyTimeUpdate(payload []byte) {
	var patch push.TimeUpdatePayload
	if err := json.Unmarshal(payload, &patch); err != nil {
		m.log.Warn("undecodable time-update payload", sl.Err(err))
		return
	}

	m.mutate(func(v *View) {
		if v.Session == nil {
			return
		}
		if patch.CanCheckIn != nil {
			v.Session.Gating.CanCheckIn = *patch.CanCheckIn
		}
		if patch.CanCheckOut != nil {
			v.Session.Gating.CanCheckOut = *patch.CanCheckOut
		}
		if patch.MinutesUntilCheckIn != nil {
			v.Session.Gating.MinutesUntilCheckIn = *patch.MinutesUntilCheckIn
		}
		if patch.MinutesUntilCheckOut != nil {
			v.Session.Gating.MinutesUntilCheckOut = *patch.MinutesUntilCheckOut
		}
	})
}

// resubscribe swaps the session-scoped subscriptions. The old topics are
// released before the new ones are taken, so two live session subscriptions
// never coexist.
func (m *Monitor) resubscribe(sessionID string) {
	if m.subscribedID == sessionID {
		return
	}

	if m.subscribedID != "" {
		m.bus.Unsubscribe(push.TopicStatusChanged(m.subscribedID))
		m.bus.Unsubscribe(push.TopicTimeUpdate(m.subscribedID))
	}

	m.subscribedID = sessionID
	if sessionID == "" {
		return
	}

	for _, topic := range []string{push.TopicStatusChanged(sessionID), push.TopicTimeUpdate(sessionID)} {
		if err := m.bus.Subscribe(m.ctx, topic, m.onPush); err != nil {
			m.log.Error("failed to subscribe", slog.String("topic", topic), sl.Err(err))
		}
	}
}

func (m *Monitor) unsubscribeAll() {
	if m.subscribedID != "" {
		m.bus.Unsubscribe(push.TopicStatusChanged(m.subscribedID))
		m.bus.Unsubscribe(push.TopicTimeUpdate(m.subscribedID))
		m.subscribedID = ""
	}
	m.bus.Unsubscribe(push.TopicScheduleUpdated)
}

func (m *Monitor) mutate(fn func(v *View)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn(&m.view)
}
