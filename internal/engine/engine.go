// Package engine drives glucose acquisition: a fixed-interval poll of
// the share service feeding a monotonic reading cache, with render-ready
// display state derived on demand.
//
// One loop goroutine owns all polling, so at most one fetch is ever in
// flight. Timer firings and manual refresh requests that arrive while a
// fetch runs coalesce with it instead of queueing up.
package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrcode/dexshare-widget/internal/cache"
	"github.com/mrcode/dexshare-widget/internal/glucose"
	"github.com/mrcode/dexshare-widget/internal/session"
	"github.com/mrcode/dexshare-widget/internal/share"
	dexerr "github.com/mrcode/dexshare-widget/pkg/errors"
)

// DefaultInterval is the poll cadence when none is configured. The
// upstream sensor reports roughly every five minutes, so polling faster
// buys nothing and the engine never shortens or backs off this interval.
const DefaultInterval = 60 * time.Second

// degradedAfter is how many consecutive transient failures it takes to
// surface a degraded-connectivity banner.
const degradedAfter = 3

// Engine is the acquisition state machine. All methods are safe for
// concurrent use.
type Engine struct {
	fetcher share.Fetcher
	store   *session.Store
	logger  *zap.Logger
	cache   *cache.Cache

	interval time.Duration
	now      func() time.Time

	refreshCh chan struct{}
	stopCh    chan struct{}
	done      chan struct{}

	mu          sync.Mutex
	sess        *session.Session
	state       State
	errKind     ErrorKind
	transient   int
	lastAttempt time.Time
	lastSuccess time.Time
	running     bool
	stopped     bool
	cancelFetch context.CancelFunc
	observers   []chan Event
}

// New returns an engine polling through fetcher every interval and
// persisting session mutations through store. A non-positive interval
// selects the default.
func New(fetcher share.Fetcher, store *session.Store, logger *zap.Logger, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Engine{
		fetcher:   fetcher,
		store:     store,
		logger:    logger,
		cache:     cache.New(),
		interval:  interval,
		now:       time.Now,
		state:     StateIdle,
		refreshCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start begins polling with the given session. Calling Start on a
// running engine swaps in the updated session and triggers an immediate
// poll, which is how credential fixes take effect without a restart. A
// stopped engine cannot be started again.
func (e *Engine) Start(sess *session.Session) error {
	if sess == nil {
		return dexerr.New(dexerr.KindConfig, "no session to poll with")
	}
	if err := sess.Validate(); err != nil {
		return dexerr.Wrap(dexerr.KindConfig, "session not usable for polling", err)
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return dexerr.New(dexerr.KindConfig, "engine is stopped")
	}
	e.sess = sess.Clone()
	if e.running {
		e.mu.Unlock()
		e.RequestManualRefresh()
		return nil
	}
	e.running = true
	e.mu.Unlock()

	e.logger.Info("acquisition started",
		zap.String("region", string(sess.Region)),
		zap.Duration("interval", e.interval),
	)
	go e.run()
	return nil
}

// Stop shuts the engine down. It is idempotent, safe to call mid-tick
// (the in-flight fetch is canceled and its result discarded) and closes
// all observer channels. Stopped is terminal.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.state = StateStopped
	cancel := e.cancelFetch
	wasRunning := e.running
	e.running = false
	observers := e.observers
	e.observers = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wasRunning {
		close(e.stopCh)
		<-e.done
	}
	for _, ch := range observers {
		close(ch)
	}
	e.logger.Info("acquisition stopped")
}

// RequestManualRefresh asks for an immediate poll. A request made while
// a fetch is in flight coalesces with it; repeated requests collapse to
// at most one pending poll.
func (e *Engine) RequestManualRefresh() {
	e.mu.Lock()
	ok := e.running && !e.stopped
	e.mu.Unlock()
	if !ok {
		return
	}
	select {
	case e.refreshCh <- struct{}{}:
	default:
	}
}

// Update is a partial session change; nil fields keep their value.
type Update struct {
	AccountRef     *string
	Region         *session.Region
	Unit           *glucose.Unit
	WidgetPosition *session.Position
}

// UpdateSession applies a partial change, persists the result and makes
// it effective from the next poll. Invalid results are rejected without
// touching memory or disk.
func (e *Engine) UpdateSession(u Update) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess == nil {
		return dexerr.New(dexerr.KindConfig, "no session to update")
	}
	next := e.sess.Clone()
	if u.AccountRef != nil {
		next.AccountRef = *u.AccountRef
	}
	if u.Region != nil {
		next.Region = *u.Region
	}
	if u.Unit != nil {
		next.Unit = *u.Unit
	}
	if u.WidgetPosition != nil {
		p := *u.WidgetPosition
		next.WidgetPosition = &p
	}
	if err := next.Validate(); err != nil {
		return dexerr.Wrap(dexerr.KindConfig, "rejecting session update", err)
	}
	if err := e.store.Save(next); err != nil {
		return err
	}
	e.sess = next
	e.emitLocked(EventState)
	return nil
}

// Session returns a copy of the active session, or nil before Start.
func (e *Engine) Session() *session.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Clone()
}

// CurrentDisplayState derives the render-ready snapshot on demand. When
// nothing has ever been cached the reading is nil and ErrorKind reflects
// the last fetch outcome.
func (e *Engine) CurrentDisplayState() DisplayState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.displayLocked()
}

func (e *Engine) displayLocked() DisplayState {
	d := DisplayState{
		State:               e.state,
		ErrorKind:           e.errKind,
		LastAttempt:         e.lastAttempt,
		LastSuccess:         e.lastSuccess,
		ConsecutiveFailures: e.transient,
		Severity:            glucose.SeverityUnknown,
	}
	if e.sess != nil {
		d.Unit = e.sess.Unit
	}
	if r, ok := e.cache.Current(); ok {
		reading := r
		d.Reading = &reading
		d.Severity = glucose.Classify(r.Value)
		d.Staleness = glucose.StalenessOf(r.Timestamp, e.now())
	}
	return d
}

// run is the single poll loop. The first poll fires immediately rather
// than one interval in.
func (e *Engine) run() {
	defer close(e.done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.tick()
	e.drainPending(ticker)

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.tick()
		case <-e.refreshCh:
			e.tick()
		}
		e.drainPending(ticker)
	}
}

// drainPending drops timer firings and refresh requests that accumulated
// while a tick ran. A slow fetch therefore never causes back-to-back
// polls, and refreshes requested mid-fetch coalesce with that fetch.
func (e *Engine) drainPending(ticker *time.Ticker) {
	for {
		select {
		case <-ticker.C:
		case <-e.refreshCh:
		default:
			return
		}
	}
}

// tick runs one poll: fetch, classify, record. Only the loop goroutine
// calls it.
func (e *Engine) tick() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	sess := e.sess.Clone()
	e.state = StatePolling
	e.lastAttempt = e.now()
	ctx, cancel := context.WithCancel(context.Background())
	e.cancelFetch = cancel
	e.mu.Unlock()

	e.emit(EventState)

	reading, err := e.fetcher.Fetch(ctx, sess)

	e.mu.Lock()
	e.cancelFetch = nil
	stopped := e.stopped
	e.mu.Unlock()
	cancel()
	if stopped {
		return
	}

	if err != nil {
		e.recordFailure(err)
		return
	}
	e.recordSuccess(reading)
}

func (e *Engine) recordSuccess(r glucose.Reading) {
	accepted := e.cache.Accept(r)

	e.mu.Lock()
	e.state = StateSuccess
	e.errKind = ErrorNone
	e.transient = 0
	e.lastSuccess = e.now()
	e.mu.Unlock()

	e.logger.Info("reading fetched",
		zap.Int("value_mgdl", r.Value),
		zap.String("trend", string(r.Trend)),
		zap.Time("reading_at", r.Timestamp),
		zap.Bool("accepted", accepted),
	)

	if accepted {
		e.emit(EventReading)
	} else {
		e.emit(EventState)
	}
	e.settle()
}

func (e *Engine) recordFailure(err error) {
	kind := dexerr.KindOf(err)

	e.mu.Lock()
	e.state = StateFailure
	switch kind {
	case dexerr.KindAuth:
		e.errKind = ErrorAuth
		e.transient = 0
	case dexerr.KindNoData:
		e.errKind = ErrorNoData
		e.transient = 0
	case dexerr.KindConfig, dexerr.KindCorruptConfig:
		e.errKind = ErrorConfig
		e.transient = 0
	default:
		// Network trouble, throttling and anything unclassified count
		// as transient: the next tick may simply succeed. Below the
		// threshold the previous banner stays up so one blip never
		// flips the display.
		e.transient++
		if e.transient >= degradedAfter {
			e.errKind = ErrorConnectivityDegraded
		}
	}
	failures := e.transient
	e.mu.Unlock()

	e.logger.Warn("fetch failed",
		zap.String("kind", string(kind)),
		zap.Int("consecutive_transient", failures),
		zap.Error(err),
	)

	e.emit(EventError)
	e.settle()
}

// settle returns the engine to Idle between ticks unless it stopped in
// the meantime.
func (e *Engine) settle() {
	e.mu.Lock()
	if !e.stopped {
		e.state = StateIdle
	}
	e.mu.Unlock()
}
