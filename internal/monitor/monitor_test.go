package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Zlazh-dev/presensiapp3-sub002/internal/clock"
	"github.com/Zlazh-dev/presensiapp3-sub002/internal/models"
	"github.com/Zlazh-dev/presensiapp3-sub002/internal/push"
)

const testInterval = 5 * time.Millisecond

type fetchResp struct {
	session *models.Session
	reason  string
	err     error
	gate    chan struct{} // when set, the fetch blocks until the gate closes
}

type scriptedFetcher struct {
	mu     sync.Mutex
	calls  int
	script []fetchResp
}

func (f *scriptedFetcher) CurrentSession(_ context.Context) (*models.Session, string, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	resp := f.script[i]
	f.mu.Unlock()

	if resp.gate != nil {
		<-resp.gate
	}

	return resp.session, resp.reason, resp.err
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

func (f *scriptedFetcher) extend(r fetchResp) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.script = append(f.script, r)
}

func testSession(id string) *models.Session {
	return &models.Session{
		ID:          id,
		ScheduleID:  "sch-1",
		ClassID:     "cls-7a",
		ClassName:   "7A",
		Subject:     "Mathematics",
		CheckedInAt: time.Date(2025, 9, 1, 6, 58, 0, 0, time.UTC),
		Window:      models.ScheduleWindow{StartTime: "07:00", EndTime: "08:00"},
		Tag:         models.SessionActive,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not reached: %s", msg)
}

func startMonitor(t *testing.T, fetcher *scriptedFetcher, now time.Time) (*Monitor, *push.MemoryBus, *clock.Fake) {
	t.Helper()

	bus := push.NewMemoryBus()
	clk := clock.NewFake(now)
	m := New(testLogger(), fetcher, bus, clk, testInterval)
	m.Start()
	t.Cleanup(m.Stop)

	return m, bus, clk
}

func TestInitialFetchAndTick(t *testing.T) {
	fetcher := &scriptedFetcher{script: []fetchResp{{session: testSession("sess-1")}}}
	now := time.Date(2025, 9, 1, 7, 30, 0, 0, time.UTC)
	m, bus, _ := startMonitor(t, fetcher, now)

	waitFor(t, func() bool {
		v := m.View()
		return v.Active() && v.Snapshot.ElapsedPercent == 50
	}, "view active at 50 percent")

	v := m.View()
	if v.Snapshot.Status != models.TimerOngoing {
		t.Errorf("Status = %v, want ONGOING", v.Snapshot.Status)
	}
	if !v.Policy.EarlyAllowed || v.Policy.Blocked {
		t.Errorf("Policy = %+v, want early allowed at 50 percent", v.Policy)
	}

	waitFor(t, func() bool {
		return bus.Subscribed(push.TopicScheduleUpdated) &&
			bus.Subscribed(push.TopicStatusChanged("sess-1")) &&
			bus.Subscribed(push.TopicTimeUpdate("sess-1"))
	}, "global and session subscriptions established")
}

func TestNoActiveSessionIsExplicit(t *testing.T) {
	fetcher := &scriptedFetcher{script: []fetchResp{{reason: "no schedule for today"}}}
	m, bus, _ := startMonitor(t, fetcher, time.Date(2025, 9, 1, 7, 0, 0, 0, time.UTC))

	waitFor(t, func() bool {
		v := m.View()
		return !v.Active() && v.NoSessionReason == "no schedule for today"
	}, "explicit no-session state with reason")

	if bus.Subscribed(push.TopicStatusChanged("sess-1")) {
		t.Error("no session topics may be live without a session")
	}
	if !bus.Subscribed(push.TopicScheduleUpdated) {
		t.Error("global schedule-updated subscription must stay live without a session")
	}
}

func TestClockAdvanceMovesStatus(t *testing.T) {
	fetcher := &scriptedFetcher{script: []fetchResp{{session: testSession("sess-1")}}}
	now := time.Date(2025, 9, 1, 7, 30, 0, 0, time.UTC)
	m, _, clk := startMonitor(t, fetcher, now)

	waitFor(t, func() bool { return m.View().Active() }, "view active")

	clk.Set(time.Date(2025, 9, 1, 7, 54, 0, 0, time.UTC))
	waitFor(t, func() bool {
		return m.View().Snapshot.Status == models.TimerEndingSoon
	}, "status moves to ENDING_SOON at 90 percent")

	clk.Set(time.Date(2025, 9, 1, 8, 5, 0, 0, time.UTC))
	waitFor(t, func() bool {
		v := m.View()
		return v.Snapshot.Status == models.TimerEnded && v.Snapshot.ElapsedPercent == 100
	}, "status moves to ENDED past the window")
}

func TestTimeUpdatePatchesGatingWithoutRefetch(t *testing.T) {
	fetcher := &scriptedFetcher{script: []fetchResp{{session: testSession("sess-1")}}}
	m, bus, _ := startMonitor(t, fetcher, time.Date(2025, 9, 1, 7, 30, 0, 0, time.UTC))

	waitFor(t, func() bool { return m.View().Active() }, "view active")
	fetches := fetcher.callCount()

	canOut := true
	minutes := 12
	payload, _ := json.Marshal(push.TimeUpdatePayload{
		CanCheckOut:          &canOut,
		MinutesUntilCheckOut: &minutes,
	})
	bus.Publish(push.TopicTimeUpdate("sess-1"), payload)

	waitFor(t, func() bool {
		v := m.View()
		return v.Active() && v.Session.Gating.CanCheckOut && v.Session.Gating.MinutesUntilCheckOut == 12
	}, "gating flags patched in place")

	if got := fetcher.callCount(); got != fetches {
		t.Errorf("time-update triggered %d refetches, want none", got-fetches)
	}
}

func TestStatusChangedTriggersRefetchAndResubscribe(t *testing.T) {
	fetcher := &scriptedFetcher{script: []fetchResp{{session: testSession("sess-1")}}}
	m, bus, _ := startMonitor(t, fetcher, time.Date(2025, 9, 1, 7, 30, 0, 0, time.UTC))

	waitFor(t, func() bool { return m.View().Active() }, "view active")

	fetcher.extend(fetchResp{session: testSession("sess-2")})
	bus.Publish(push.TopicStatusChanged("sess-1"), []byte(`{"session_id":"sess-1","status":"completed"}`))

	waitFor(t, func() bool {
		v := m.View()
		return v.Active() && v.Session.ID == "sess-2"
	}, "refetch swapped in the new session")

	waitFor(t, func() bool {
		return !bus.Subscribed(push.TopicStatusChanged("sess-1")) &&
			!bus.Subscribed(push.TopicTimeUpdate("sess-1")) &&
			bus.Subscribed(push.TopicStatusChanged("sess-2")) &&
			bus.Subscribed(push.TopicTimeUpdate("sess-2"))
	}, "subscriptions swapped to the new session id")
}

func TestScheduleUpdatedWorksWithoutSession(t *testing.T) {
	fetcher := &scriptedFetcher{script: []fetchResp{{reason: "no schedule for today"}}}
	m, bus, _ := startMonitor(t, fetcher, time.Date(2025, 9, 1, 7, 0, 0, 0, time.UTC))

	waitFor(t, func() bool { return !m.View().Active() && m.View().NoSessionReason != "" }, "no-session state")

	// a schedule edit makes a session appear where none was
	fetcher.extend(fetchResp{session: testSession("sess-9")})
	bus.Publish(push.TopicScheduleUpdated, []byte(`{}`))

	waitFor(t, func() bool {
		v := m.View()
		return v.Active() && v.Session.ID == "sess-9"
	}, "global schedule-updated produced the new session")
}

func TestSupersededFetchIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	fetcher := &scriptedFetcher{script: []fetchResp{
		{session: testSession("stale"), gate: gate},
		{session: testSession("fresh")},
	}}
	m, _, _ := startMonitor(t, fetcher, time.Date(2025, 9, 1, 7, 30, 0, 0, time.UTC))

	waitFor(t, func() bool { return fetcher.callCount() == 1 }, "first fetch in flight")

	m.Refresh()
	waitFor(t, func() bool {
		v := m.View()
		return v.Active() && v.Session.ID == "fresh"
	}, "second fetch applied")

	close(gate)
	time.Sleep(20 * testInterval)

	if got := m.View().Session.ID; got != "fresh" {
		t.Errorf("stale fetch result overwrote the view: got session %q, want %q", got, "fresh")
	}
}

func TestFailedRefetchKeepsTicking(t *testing.T) {
	fetcher := &scriptedFetcher{script: []fetchResp{
		{session: testSession("sess-1")},
		{err: errors.New("connection refused")},
	}}
	m, _, clk := startMonitor(t, fetcher, time.Date(2025, 9, 1, 7, 30, 0, 0, time.UTC))

	waitFor(t, func() bool { return m.View().Active() }, "view active")

	m.Refresh()
	waitFor(t, func() bool { return m.View().TransientError != "" }, "transient error surfaced")

	v := m.View()
	if !v.Active() || v.Session.ID != "sess-1" {
		t.Fatalf("failed refetch must keep the last session, got %+v", v)
	}

	// the clock keeps advancing the snapshot despite the failed fetch
	clk.Set(time.Date(2025, 9, 1, 7, 54, 0, 0, time.UTC))
	waitFor(t, func() bool {
		return m.View().Snapshot.Status == models.TimerEndingSoon
	}, "tick still recomputes after a failed refetch")

	m.DismissError()
	waitFor(t, func() bool { return m.View().TransientError == "" }, "notice dismissed")
}

func TestInvalidWindowFallsBackToOngoing(t *testing.T) {
	sess := testSession("sess-1")
	sess.Window = models.ScheduleWindow{StartTime: "08:00", EndTime: "07:00"}
	fetcher := &scriptedFetcher{script: []fetchResp{{session: sess}}}
	m, _, _ := startMonitor(t, fetcher, time.Date(2025, 9, 1, 7, 30, 0, 0, time.UTC))

	waitFor(t, func() bool {
		v := m.View()
		return v.Active() && v.Snapshot.Status == models.TimerOngoing
	}, "fallback to ONGOING on invalid window")

	if pct := m.View().Snapshot.ElapsedPercent; pct != 0 {
		t.Errorf("ElapsedPercent = %d, want 0 (never negative or NaN-derived)", pct)
	}
}

func TestStopTearsDownEverything(t *testing.T) {
	gate := make(chan struct{})
	fetcher := &scriptedFetcher{script: []fetchResp{
		{session: testSession("sess-1")},
		{session: testSession("late"), gate: gate},
	}}

	bus := push.NewMemoryBus()
	clk := clock.NewFake(time.Date(2025, 9, 1, 7, 30, 0, 0, time.UTC))
	m := New(testLogger(), fetcher, bus, clk, testInterval)
	m.Start()

	waitFor(t, func() bool { return m.View().Active() }, "view active")

	m.Refresh()
	waitFor(t, func() bool { return fetcher.callCount() == 2 }, "late fetch in flight")

	m.Stop()

	if bus.Subscribed(push.TopicScheduleUpdated) ||
		bus.Subscribed(push.TopicStatusChanged("sess-1")) ||
		bus.Subscribed(push.TopicTimeUpdate("sess-1")) {
		t.Error("subscriptions must be torn down with the ticker in one step")
	}

	before := m.View()
	close(gate)
	time.Sleep(20 * testInterval)
	after := m.View()

	if after.Active() && after.Session.ID == "late" {
		t.Error("fetch resolving after teardown mutated the view")
	}
	if before.Snapshot.Now != after.Snapshot.Now {
		t.Error("timer fired after teardown")
	}
}
