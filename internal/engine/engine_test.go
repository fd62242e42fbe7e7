package engine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mrcode/dexshare-widget/internal/glucose"
	"github.com/mrcode/dexshare-widget/internal/session"
	dexerr "github.com/mrcode/dexshare-widget/pkg/errors"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fetchResult struct {
	reading glucose.Reading
	err     error
}

func ok(value int, ts time.Time, trend glucose.Trend) fetchResult {
	return fetchResult{reading: glucose.Reading{Value: value, Timestamp: ts, Trend: trend}}
}

func fail(kind dexerr.Kind) fetchResult {
	return fetchResult{err: dexerr.New(kind, "scripted failure")}
}

// scriptedFetcher plays back canned results. The optional entered and
// release channels let tests hold a fetch in flight.
type scriptedFetcher struct {
	mu          sync.Mutex
	script      []fetchResult
	calls       int
	inFlight    int
	maxInFlight int
	regions     []session.Region

	entered   chan struct{}
	release   chan struct{}
	ignoreCtx bool
}

func (f *scriptedFetcher) Fetch(ctx context.Context, sess *session.Session) (glucose.Reading, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.regions = append(f.regions, sess.Region)

	var res fetchResult
	if len(f.script) > 0 {
		idx := f.calls - 1
		if idx >= len(f.script) {
			idx = len(f.script) - 1
		}
		res = f.script[idx]
	} else {
		res = ok(110, time.Now(), glucose.TrendSteady)
	}
	entered, release := f.entered, f.release
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		if f.ignoreCtx {
			<-release
		} else {
			select {
			case <-release:
			case <-ctx.Done():
				return glucose.Reading{}, dexerr.Wrap(dexerr.KindNetwork, "fetch canceled", ctx.Err())
			}
		}
	}
	return res.reading, res.err
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *scriptedFetcher) maxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

func (f *scriptedFetcher) seenRegions() []session.Region {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]session.Region(nil), f.regions...)
}

func testSession() *session.Session {
	return session.New("11111111-2222-3333-4444-555555555555", session.RegionUS)
}

func newTestEngine(t *testing.T, f *scriptedFetcher, interval time.Duration) *Engine {
	t.Helper()
	store := session.NewStore(filepath.Join(t.TempDir(), "session.json"))
	e := New(f, store, zap.NewNop(), interval)
	t.Cleanup(e.Stop)
	return e
}

func TestTickClassifiesFreshReading(t *testing.T) {
	f := &scriptedFetcher{script: []fetchResult{ok(65, baseTime, glucose.TrendFalling)}}
	e := newTestEngine(t, f, time.Hour)
	e.sess = testSession()
	e.now = func() time.Time { return baseTime.Add(time.Second) }

	e.tick()

	d := e.CurrentDisplayState()
	require.NotNil(t, d.Reading)
	assert.Equal(t, 65, d.Reading.Value)
	assert.Equal(t, glucose.SeverityLow, d.Severity)
	assert.Equal(t, glucose.StalenessFresh, d.Staleness)
	assert.Equal(t, "↓", d.Reading.Trend.Arrow())
	assert.Equal(t, ErrorNone, d.ErrorKind)
	assert.Equal(t, StateIdle, d.State)
	assert.Equal(t, baseTime.Add(time.Second), d.LastSuccess)
}

func TestDisplayBeforeAnyFetch(t *testing.T) {
	e := newTestEngine(t, &scriptedFetcher{}, time.Hour)

	d := e.CurrentDisplayState()
	assert.Nil(t, d.Reading)
	assert.Equal(t, glucose.SeverityUnknown, d.Severity)
	assert.Equal(t, StateIdle, d.State)
	assert.Equal(t, ErrorNone, d.ErrorKind)
	assert.Equal(t, "--", d.FormattedValue())
}

func TestStalenessProgression(t *testing.T) {
	f := &scriptedFetcher{script: []fetchResult{ok(110, baseTime, glucose.TrendSteady)}}
	e := newTestEngine(t, f, time.Hour)
	e.sess = testSession()
	e.now = func() time.Time { return baseTime.Add(time.Second) }

	e.tick()

	e.now = func() time.Time { return baseTime.Add(10 * time.Minute) }
	d := e.CurrentDisplayState()
	assert.Equal(t, glucose.StalenessStale, d.Staleness)
	assert.Equal(t, glucose.SeverityNormal, d.Severity)

	// Severity keeps tracking the value even once the reading expires;
	// staleness is the separate axis that says how much to trust it.
	e.now = func() time.Time { return baseTime.Add(31 * time.Minute) }
	d = e.CurrentDisplayState()
	assert.Equal(t, glucose.StalenessExpired, d.Staleness)
	assert.Equal(t, glucose.SeverityNormal, d.Severity)
}

func TestDegradedAfterThreeTransientFailures(t *testing.T) {
	f := &scriptedFetcher{script: []fetchResult{
		fail(dexerr.KindNetwork),
		fail(dexerr.KindNetwork),
		fail(dexerr.KindRateLimited),
		ok(112, baseTime, glucose.TrendSteady),
	}}
	e := newTestEngine(t, f, time.Hour)
	e.sess = testSession()
	e.now = func() time.Time { return baseTime.Add(time.Second) }

	e.tick()
	d := e.CurrentDisplayState()
	assert.Equal(t, ErrorNone, d.ErrorKind, "one blip must not raise a banner")
	assert.Equal(t, 1, d.ConsecutiveFailures)

	e.tick()
	d = e.CurrentDisplayState()
	assert.Equal(t, ErrorNone, d.ErrorKind)
	assert.Equal(t, 2, d.ConsecutiveFailures)

	e.tick()
	d = e.CurrentDisplayState()
	assert.Equal(t, ErrorConnectivityDegraded, d.ErrorKind)
	assert.Equal(t, 3, d.ConsecutiveFailures)

	e.tick()
	d = e.CurrentDisplayState()
	assert.Equal(t, ErrorNone, d.ErrorKind, "success must clear the degraded banner")
	assert.Equal(t, 0, d.ConsecutiveFailures)
	require.NotNil(t, d.Reading)
	assert.Equal(t, 112, d.Reading.Value)
}

func TestAuthErrorSurfacesImmediately(t *testing.T) {
	f := &scriptedFetcher{script: []fetchResult{fail(dexerr.KindAuth)}}
	e := newTestEngine(t, f, time.Hour)
	e.sess = testSession()

	e.tick()

	d := e.CurrentDisplayState()
	assert.Equal(t, ErrorAuth, d.ErrorKind)
	assert.Equal(t, 0, d.ConsecutiveFailures, "auth failures are not transient")
	assert.Equal(t, StateIdle, d.State, "engine keeps polling after an auth failure")
}

func TestAuthResetsTransientCount(t *testing.T) {
	f := &scriptedFetcher{script: []fetchResult{
		fail(dexerr.KindNetwork),
		fail(dexerr.KindNetwork),
		fail(dexerr.KindAuth),
		fail(dexerr.KindNetwork),
		fail(dexerr.KindNetwork),
	}}
	e := newTestEngine(t, f, time.Hour)
	e.sess = testSession()

	for i := 0; i < 5; i++ {
		e.tick()
	}

	// The auth failure at tick 3 proved connectivity, so only two
	// transient failures have accumulated since.
	d := e.CurrentDisplayState()
	assert.Equal(t, 2, d.ConsecutiveFailures)
	assert.Equal(t, ErrorAuth, d.ErrorKind, "auth banner stays up below the degraded threshold")
}

func TestNoDataKeepsCachedReading(t *testing.T) {
	f := &scriptedFetcher{script: []fetchResult{
		ok(110, baseTime, glucose.TrendSteady),
		fail(dexerr.KindNoData),
	}}
	e := newTestEngine(t, f, time.Hour)
	e.sess = testSession()
	e.now = func() time.Time { return baseTime.Add(time.Minute) }

	e.tick()
	e.tick()

	d := e.CurrentDisplayState()
	assert.Equal(t, ErrorNoData, d.ErrorKind)
	assert.Equal(t, 0, d.ConsecutiveFailures)
	require.NotNil(t, d.Reading, "no-data must not drop the cached reading")
	assert.Equal(t, 110, d.Reading.Value)
}

func TestMissingCredentialsSurfaceAsConfig(t *testing.T) {
	f := &scriptedFetcher{script: []fetchResult{fail(dexerr.KindConfig)}}
	e := newTestEngine(t, f, time.Hour)
	e.sess = testSession()

	e.tick()

	assert.Equal(t, ErrorConfig, e.CurrentDisplayState().ErrorKind)
}

func TestDuplicateReadingEmitsStateNotReading(t *testing.T) {
	f := &scriptedFetcher{script: []fetchResult{ok(110, baseTime, glucose.TrendSteady)}}
	e := newTestEngine(t, f, time.Hour)
	e.sess = testSession()
	ch := e.Subscribe(8)

	e.tick()
	e.tick()

	var types []EventType
	for len(ch) > 0 {
		ev := <-ch
		types = append(types, ev.Type)
	}
	assert.Equal(t, []EventType{EventState, EventReading, EventState, EventState}, types)
}

func TestFailureEmitsErrorEvent(t *testing.T) {
	f := &scriptedFetcher{script: []fetchResult{fail(dexerr.KindNetwork)}}
	e := newTestEngine(t, f, time.Hour)
	e.sess = testSession()
	ch := e.Subscribe(8)

	e.tick()

	var last Event
	for len(ch) > 0 {
		last = <-ch
	}
	assert.Equal(t, EventError, last.Type)
	assert.Equal(t, StateFailure, last.State)
	assert.Equal(t, StateFailure, last.Display.State)
}

func TestStartValidatesSession(t *testing.T) {
	e := newTestEngine(t, &scriptedFetcher{}, time.Hour)

	err := e.Start(nil)
	require.Error(t, err)
	assert.Equal(t, dexerr.KindConfig, dexerr.KindOf(err))

	err = e.Start(&session.Session{AccountRef: "x"})
	require.Error(t, err)
	assert.Equal(t, dexerr.KindConfig, dexerr.KindOf(err))
}

func TestStartPollsImmediately(t *testing.T) {
	f := &scriptedFetcher{}
	e := newTestEngine(t, f, time.Hour)

	require.NoError(t, e.Start(testSession()))

	require.Eventually(t, func() bool { return f.callCount() == 1 },
		time.Second, 5*time.Millisecond, "first poll must not wait out the interval")
}

func TestManualRefreshCoalescesWithInFlightTick(t *testing.T) {
	f := &scriptedFetcher{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	e := newTestEngine(t, f, time.Hour)
	require.NoError(t, e.Start(testSession()))

	<-f.entered

	e.RequestManualRefresh()
	e.RequestManualRefresh()
	e.RequestManualRefresh()

	f.release <- struct{}{}

	// Requests made mid-flight are satisfied by that fetch; no follow-up
	// may start.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, f.callCount())

	e.RequestManualRefresh()
	<-f.entered
	f.release <- struct{}{}

	require.Eventually(t, func() bool { return f.callCount() == 2 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.maxConcurrent(), "fetches must never overlap")
}

func TestStopDiscardsInFlightResult(t *testing.T) {
	f := &scriptedFetcher{
		script:    []fetchResult{ok(200, baseTime, glucose.TrendRising)},
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
		ignoreCtx: true,
	}
	e := newTestEngine(t, f, time.Hour)
	require.NoError(t, e.Start(testSession()))

	<-f.entered

	stopReturned := make(chan struct{})
	go func() {
		e.Stop()
		close(stopReturned)
	}()

	require.Eventually(t, func() bool {
		return e.CurrentDisplayState().State == StateStopped
	}, time.Second, 5*time.Millisecond)

	f.release <- struct{}{}
	<-stopReturned

	d := e.CurrentDisplayState()
	assert.Equal(t, StateStopped, d.State)
	assert.Nil(t, d.Reading, "a result arriving after Stop must be discarded")
}

func TestStopIsIdempotentAndTerminal(t *testing.T) {
	f := &scriptedFetcher{}
	e := newTestEngine(t, f, time.Hour)
	require.NoError(t, e.Start(testSession()))

	e.Stop()
	e.Stop()

	err := e.Start(testSession())
	require.Error(t, err)
	assert.Equal(t, dexerr.KindConfig, dexerr.KindOf(err))
}

func TestStopClosesObservers(t *testing.T) {
	f := &scriptedFetcher{}
	e := newTestEngine(t, f, time.Hour)
	ch := e.Subscribe(4)
	require.NoError(t, e.Start(testSession()))

	e.Stop()

	require.Eventually(t, func() bool {
		for {
			select {
			case _, open := <-ch:
				if !open {
					return true
				}
			default:
				return false
			}
		}
	}, time.Second, 5*time.Millisecond, "observer channel must close on Stop")

	// Subscribing after Stop yields an already closed channel.
	late := e.Subscribe(1)
	_, open := <-late
	assert.False(t, open)
}

func TestStartWhileRunningSwapsSession(t *testing.T) {
	f := &scriptedFetcher{}
	e := newTestEngine(t, f, time.Hour)
	require.NoError(t, e.Start(testSession()))

	require.Eventually(t, func() bool { return f.callCount() == 1 },
		time.Second, 5*time.Millisecond)
	// Let the loop settle back into its select before the restart, so
	// the restart's refresh is not swallowed by the post-tick drain.
	time.Sleep(50 * time.Millisecond)

	updated := testSession()
	updated.Region = session.RegionOUS
	require.NoError(t, e.Start(updated))

	require.Eventually(t, func() bool { return f.callCount() == 2 },
		time.Second, 5*time.Millisecond)
	regions := f.seenRegions()
	assert.Equal(t, session.RegionOUS, regions[len(regions)-1])
}

func TestManualRefreshBeforeStartIsNoop(t *testing.T) {
	f := &scriptedFetcher{}
	e := newTestEngine(t, f, time.Hour)

	e.RequestManualRefresh()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, f.callCount())
}

func TestUpdateSessionPersists(t *testing.T) {
	f := &scriptedFetcher{}
	e := newTestEngine(t, f, time.Hour)
	require.NoError(t, e.Start(testSession()))

	unit := glucose.UnitMmolL
	pos := session.Position{X: 10, Y: 20}
	require.NoError(t, e.UpdateSession(Update{Unit: &unit, WidgetPosition: &pos}))

	loaded, err := e.store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, glucose.UnitMmolL, loaded.Unit)
	require.NotNil(t, loaded.WidgetPosition)
	assert.Equal(t, 10, loaded.WidgetPosition.X)
	assert.Equal(t, session.RegionUS, loaded.Region, "untouched fields keep their value")

	assert.Equal(t, glucose.UnitMmolL, e.CurrentDisplayState().Unit)
}

func TestUpdateSessionSwapsAccountRef(t *testing.T) {
	f := &scriptedFetcher{}
	e := newTestEngine(t, f, time.Hour)
	require.NoError(t, e.Start(testSession()))

	ref := "99999999-8888-7777-6666-555555555555"
	require.NoError(t, e.UpdateSession(Update{AccountRef: &ref}))

	assert.Equal(t, ref, e.Session().AccountRef)
	loaded, err := e.store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, ref, loaded.AccountRef)
}

func TestUpdateSessionRejectsInvalid(t *testing.T) {
	f := &scriptedFetcher{}
	e := newTestEngine(t, f, time.Hour)
	require.NoError(t, e.Start(testSession()))

	bad := session.Region("atlantis")
	err := e.UpdateSession(Update{Region: &bad})
	require.Error(t, err)
	assert.Equal(t, dexerr.KindConfig, dexerr.KindOf(err))

	assert.Equal(t, session.RegionUS, e.Session().Region, "rejected update must not stick")
}

func TestUpdateSessionBeforeStart(t *testing.T) {
	e := newTestEngine(t, &scriptedFetcher{}, time.Hour)

	unit := glucose.UnitMmolL
	err := e.UpdateSession(Update{Unit: &unit})
	require.Error(t, err)
	assert.Equal(t, dexerr.KindConfig, dexerr.KindOf(err))
}
