// Package pricesync keeps one live price view for a changing ticker set.
//
// A Controller polls a port.PriceSource on a cadence chosen by a session clock,
// with at most one request in flight. Every request is tagged with the ticker
// set generation and an issue sequence; complete is the single place where a
// response is checked against both and either published or dropped.
package pricesync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"basketsync/internal/application/port"
	"basketsync/internal/domain/model"
	dsvc "basketsync/internal/domain/service"
)

const (
	DefaultTimeout          = 10 * time.Second
	DefaultFailureThreshold = 3
)

// Clock chooses the polling cadence. *service.SessionClock implements it.
type Clock interface {
	IsOpen(now time.Time) bool
	PollInterval(now time.Time) time.Duration
	NextChange(now time.Time) time.Time
}

// Event is delivered to listeners after every completed, non-superseded fetch.
// Published is false for failures; Snapshot is then the retained last good one.
type Event struct {
	Snapshot  *model.PriceSnapshot
	Status    model.SyncStatus
	Published bool
}

type Listener func(Event)

type Deps struct {
	Source           port.PriceSource
	Clock            Clock
	Logger           zerolog.Logger
	Timeout          time.Duration
	FailureThreshold int
	Now              func() time.Time
}

type request struct {
	gen     uint64
	seq     uint64
	tickers []string
	cancel  context.CancelFunc
	aborted bool
}

type Controller struct {
	source    port.PriceSource
	clock     Clock
	log       zerolog.Logger
	timeout   time.Duration
	threshold int
	now       func() time.Time

	mu          sync.Mutex
	tickers     []string
	key         string
	generation  uint64
	seq         uint64
	published   uint64
	inflight    *request
	snap        *model.PriceSnapshot
	status      model.SyncStatus
	timer       *time.Timer
	timerSeq    uint64
	sessionOpen bool
	disposed    bool
	listeners   []Listener
}

func NewController(deps Deps) *Controller {
	if deps.Timeout <= 0 {
		deps.Timeout = DefaultTimeout
	}
	if deps.FailureThreshold <= 0 {
		deps.FailureThreshold = DefaultFailureThreshold
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Clock == nil {
		deps.Clock = dsvc.NewSessionClock("")
	}
	id := uuid.NewString()[:8]
	return &Controller{
		source:    deps.Source,
		clock:     deps.Clock,
		log:       deps.Logger.With().Str("component", "pricesync").Str("controller", id).Logger(),
		timeout:   deps.Timeout,
		threshold: deps.FailureThreshold,
		now:       deps.Now,
	}
}

// Configure replaces the tracked ticker set. An unchanged set is a no-op. A
// changed set starts a new generation: the in-flight request is aborted, the
// old snapshot is discarded, and a fetch is issued immediately. An empty set
// leaves the controller idle.
func (c *Controller) Configure(tickers []string) {
	norm := model.NormalizeTickers(tickers)
	key := setKey(norm)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed || key == c.key {
		return
	}

	c.generation++
	c.abortLocked()
	c.tickers = norm
	c.key = key
	c.snap = nil
	c.status = model.SyncStatus{}

	c.log.Debug().
		Uint64("generation", c.generation).
		Strs("tickers", norm).
		Msg("ticker set changed")

	if len(norm) == 0 {
		c.stopTimerLocked()
		return
	}
	c.status.Loading = true
	c.startFetchLocked()
	c.armLocked()
}

// Refresh fetches now unless a request is already in flight, in which case the
// caller is served by that request. force flags the status as a user refresh
// and restarts the cadence.
func (c *Controller) Refresh(force bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed || len(c.tickers) == 0 {
		return
	}
	if force {
		c.status.Refreshing = true
		c.armLocked()
	}
	if c.inflight != nil {
		return
	}
	c.startFetchLocked()
}

// Snapshot returns the last published snapshot, nil before the first one.
func (c *Controller) Snapshot() *model.PriceSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// State returns the snapshot and status as one consistent pair.
func (c *Controller) State() (*model.PriceSnapshot, model.SyncStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap, c.status
}

func (c *Controller) Status() model.SyncStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Tickers returns the tracked ticker set in request order.
func (c *Controller) Tickers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.tickers...)
}

// Subscribe registers l for completion events. Listeners run on the fetch
// goroutine outside the controller lock and may observe events concurrently;
// read Snapshot for the latest state.
func (c *Controller) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.listeners = append(c.listeners, l)
}

// Dispose aborts the in-flight request, stops the timer and makes the
// controller inert. Safe to call more than once.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.disposed = true
	c.abortLocked()
	c.stopTimerLocked()
	c.listeners = nil
	c.log.Debug().Msg("controller disposed")
}

func (c *Controller) startFetchLocked() {
	c.seq++
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	req := &request{
		gen:     c.generation,
		seq:     c.seq,
		tickers: c.tickers,
		cancel:  cancel,
	}
	c.inflight = req
	go c.fetch(ctx, req)
}

type result struct {
	resp *model.PriceResponse
	err  error
}

// fetch races the source against the request timeout. A source that ignores
// ctx is abandoned when the timer fires; its late result goes nowhere.
func (c *Controller) fetch(ctx context.Context, req *request) {
	done := make(chan result, 1)
	go func() {
		var r result
		defer func() {
			if p := recover(); p != nil {
				r = result{err: fmt.Errorf("price source panic: %v", p)}
			}
			done <- r
		}()
		r.resp, r.err = c.source.FetchPrices(ctx, req.tickers)
	}()

	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		r = result{err: ctx.Err()}
	}
	if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(r.err, context.DeadlineExceeded) {
		r.err = fmt.Errorf("%w: %v", context.DeadlineExceeded, r.err)
	}
	if r.err == nil && (r.resp == nil || r.resp.Quotes == nil) {
		r.err = port.ErrMalformedResponse
	}
	c.complete(req, r.resp, r.err)
}

// complete is the only publication point.
func (c *Controller) complete(req *request, resp *model.PriceResponse, err error) {
	req.cancel()

	c.mu.Lock()
	if c.inflight == req {
		c.inflight = nil
	}
	if c.disposed || req.aborted || req.gen != c.generation {
		c.mu.Unlock()
		return
	}
	if published := c.published; req.seq <= published {
		c.mu.Unlock()
		c.log.Debug().Uint64("seq", req.seq).Uint64("published", published).Msg("out of order response dropped")
		return
	}
	if err != nil {
		ev := c.failLocked(err)
		listeners := c.listeners
		c.mu.Unlock()
		notify(listeners, ev)
		return
	}

	snap := buildSnapshot(req, resp, c.now())
	c.published = req.seq
	c.snap = snap
	c.status = model.SyncStatus{}
	ev := Event{Snapshot: snap, Status: c.status, Published: true}
	listeners := c.listeners
	c.mu.Unlock()

	c.log.Debug().
		Uint64("generation", req.gen).
		Uint64("seq", req.seq).
		Int("quotes", len(snap.Quotes)).
		Int("stale", len(snap.StaleTickers)).
		Bool("market_open", snap.MarketOpen).
		Msg("price snapshot published")
	notify(listeners, ev)
}

func (c *Controller) failLocked(err error) Event {
	kind := ClassifyError(err)
	c.status.Loading = false
	c.status.Refreshing = false
	c.status.Error = kind
	c.status.ConsecutiveFailures++
	c.status.Unavailable = c.status.ConsecutiveFailures >= c.threshold

	c.log.Warn().
		Err(err).
		Str("kind", string(kind)).
		Int("failures", c.status.ConsecutiveFailures).
		Bool("unavailable", c.status.Unavailable).
		Msg("price fetch failed, keeping last snapshot")
	return Event{Snapshot: c.snap, Status: c.status}
}

func (c *Controller) abortLocked() {
	if c.inflight == nil {
		return
	}
	c.inflight.aborted = true
	c.inflight.cancel()
	c.inflight = nil
}

func (c *Controller) armLocked() {
	c.stopTimerLocked()
	now := c.now()
	c.sessionOpen = c.clock.IsOpen(now)
	d := c.clock.PollInterval(now)
	if until := c.clock.NextChange(now).Sub(now); until > 0 && until < d {
		d = until
	}
	c.timerSeq++
	seq := c.timerSeq
	c.timer = time.AfterFunc(d, func() { c.tick(seq) })
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerSeq++
}

func (c *Controller) tick(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed || seq != c.timerSeq || len(c.tickers) == 0 {
		return
	}
	if open := c.clock.IsOpen(c.now()); open != c.sessionOpen {
		c.log.Info().Bool("market_open", open).Msg("market session changed, re-arming poll")
	}
	if c.inflight == nil {
		c.startFetchLocked()
	}
	c.armLocked()
}

// ClassifyError maps a fetch error to the status taxonomy.
func ClassifyError(err error) model.ErrorKind {
	var se *port.StatusError
	switch {
	case err == nil:
		return model.ErrorNone
	case errors.Is(err, context.DeadlineExceeded):
		return model.ErrorTimeout
	case errors.Is(err, port.ErrMalformedResponse):
		return model.ErrorMalformed
	case errors.As(err, &se):
		return model.ErrorHTTPStatus
	default:
		return model.ErrorNetwork
	}
}

func buildSnapshot(req *request, resp *model.PriceResponse, now time.Time) *model.PriceSnapshot {
	quotes := make(map[string]model.PriceQuote, len(req.tickers))
	for _, t := range req.tickers {
		if q, ok := resp.Quotes[t]; ok {
			quotes[t] = q
		}
	}
	asOf := resp.Timestamp
	if asOf.IsZero() {
		asOf = now
	}
	return &model.PriceSnapshot{
		Tickers:      req.tickers,
		Quotes:       quotes,
		StaleTickers: dsvc.ClassifyStale(quotes),
		MarketOpen:   resp.MarketOpen,
		AsOf:         asOf,
		Generation:   req.gen,
		Sequence:     req.seq,
	}
}

func notify(listeners []Listener, ev Event) {
	for _, l := range listeners {
		l(ev)
	}
}

func setKey(tickers []string) string {
	sorted := append([]string(nil), tickers...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
