package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basketsync/internal/domain/model"
)

type staticSource struct {
	mu    sync.Mutex
	calls int
	price float64
}

func (s *staticSource) FetchPrices(ctx context.Context, tickers []string) (*model.PriceResponse, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	quotes := make(map[string]model.PriceQuote, len(tickers))
	for _, t := range tickers {
		p := s.price
		quotes[t] = model.PriceQuote{Price: &p, ChangePercent: 1, IsLive: true}
	}
	return &model.PriceResponse{Quotes: quotes, MarketOpen: true, Timestamp: time.Unix(1700000000, 0)}, nil
}

func (s *staticSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type openClock struct{}

func (openClock) IsOpen(time.Time) bool                { return true }
func (openClock) PollInterval(time.Time) time.Duration { return time.Hour }
func (openClock) NextChange(now time.Time) time.Time   { return now.Add(24 * time.Hour) }

type recordingSink struct {
	mu    sync.Mutex
	live  []string
	snaps [][]string
}

func (r *recordingSink) WriteLive(line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live = append(r.live, line)
	return nil
}

func (r *recordingSink) WriteSnapshot(ts time.Time, lines []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, lines)
	return nil
}

func (r *recordingSink) NewLine() error { return nil }

func (r *recordingSink) Snapshots() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

type recordingPublisher struct {
	mu    sync.Mutex
	got   map[string]uint64
	count map[string]int
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{got: make(map[string]uint64), count: make(map[string]int)}
}

func (r *recordingPublisher) Publish(ctx context.Context, basketID string, snap *model.PriceSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got[basketID] = snap.Sequence
	r.count[basketID]++
}

func (r *recordingPublisher) Count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count[id]
}

func (r *recordingPublisher) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.got[id]
	return ok
}

type refMap map[string]model.ReferenceRecord

func (m refMap) Lookup(t string) (model.ReferenceRecord, bool) {
	r, ok := m[t]
	return r, ok
}

func newTestService(src *staticSource, sink *recordingSink, pub *recordingPublisher) *Service {
	return NewService(ServiceDeps{
		Baskets: []model.Basket{
			{ID: "core", Positions: []model.Position{{Ticker: "AAPL", Weight: 60}, {Ticker: "MSFT", Weight: 40}}},
			{ID: "solo", Positions: []model.Position{{Ticker: "NVDA", Weight: 100}}},
			{ID: "core", Positions: []model.Position{{Ticker: "DUPE", Weight: 100}}},
		},
		Refs: refMap{
			"AAPL": {Ticker: "AAPL", BaselinePrice: 100},
			"MSFT": {Ticker: "MSFT", BaselinePrice: 100},
		},
		Source:     src,
		Clock:      openClock{},
		Sink:       sink,
		Snapshots:  pub,
		Logger:     zerolog.Nop(),
		PrintEvery: 20 * time.Millisecond,
		Timeout:    time.Second,
	})
}

func TestServiceRunPublishesAndRenders(t *testing.T) {
	src := &staticSource{price: 110}
	sink := &recordingSink{}
	pub := newRecordingPublisher()
	s := newTestService(src, sink, pub)

	assert.Equal(t, []string{"core", "solo"}, s.BasketIDs())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return pub.Has("core") && pub.Has("solo") }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return sink.Snapshots() > 0 }, 2*time.Second, 5*time.Millisecond)

	val, err := s.Valuation("core")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, val.Summary.WeightedReturn, 1e-9)
	assert.Len(t, val.Rows, 2)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestServiceUnknownBasket(t *testing.T) {
	s := newTestService(&staticSource{price: 1}, &recordingSink{}, newRecordingPublisher())
	defer s.Close()

	_, err := s.Valuation("nope")
	assert.ErrorIs(t, err, ErrBasketNotFound)
	_, err = s.Basket("nope")
	assert.ErrorIs(t, err, ErrBasketNotFound)
	assert.ErrorIs(t, s.Refresh("nope"), ErrBasketNotFound)
}

func TestServiceRefreshIssuesFetch(t *testing.T) {
	src := &staticSource{price: 1}
	s := newTestService(src, &recordingSink{}, newRecordingPublisher())
	defer s.Close()

	require.Eventually(t, func() bool {
		v, _ := s.Valuation("solo")
		return !v.AsOf.IsZero()
	}, 2*time.Second, 5*time.Millisecond)
	before := src.Calls()

	require.NoError(t, s.Refresh("solo"))
	require.Eventually(t, func() bool { return src.Calls() > before }, 2*time.Second, 5*time.Millisecond)
}

func TestServicePublishesWhileRedrawLoopIsBusy(t *testing.T) {
	src := &staticSource{price: 1}
	pub := newRecordingPublisher()
	s := newTestService(src, &recordingSink{}, pub)
	defer s.Close()

	// Run is never started, so the redraw channel fills up
	require.Eventually(t, func() bool { return pub.Has("core") && pub.Has("solo") }, 2*time.Second, 5*time.Millisecond)
fill:
	for {
		select {
		case s.merged <- update{}:
		default:
			break fill
		}
	}

	require.NoError(t, s.Refresh("solo"))
	require.Eventually(t, func() bool { return pub.Count("solo") == 2 }, 2*time.Second, 5*time.Millisecond)
	pub.mu.Lock()
	assert.Equal(t, uint64(2), pub.got["solo"])
	pub.mu.Unlock()
}

func TestServiceRunWithoutBaskets(t *testing.T) {
	s := NewService(ServiceDeps{Logger: zerolog.Nop(), Sink: &recordingSink{}})
	assert.ErrorIs(t, s.Run(context.Background()), ErrNoBaskets)
}
