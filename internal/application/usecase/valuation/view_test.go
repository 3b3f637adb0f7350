package valuation

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basketsync/internal/application/usecase/pricesync"
	"basketsync/internal/domain/model"
	dsvc "basketsync/internal/domain/service"
)

type mapStore map[string]model.ReferenceRecord

func (m mapStore) Lookup(ticker string) (model.ReferenceRecord, bool) {
	r, ok := m[ticker]
	return r, ok
}

type fakeSyncer struct {
	configured [][]string
	refreshed  int
	disposed   int
	states     int
	snap       *model.PriceSnapshot
	status     model.SyncStatus
	listeners  []pricesync.Listener
}

func (f *fakeSyncer) Configure(t []string)           { f.configured = append(f.configured, t) }
func (f *fakeSyncer) Refresh(bool)                   { f.refreshed++ }
func (f *fakeSyncer) Subscribe(l pricesync.Listener) { f.listeners = append(f.listeners, l) }
func (f *fakeSyncer) Dispose()                       { f.disposed++ }

func (f *fakeSyncer) State() (*model.PriceSnapshot, model.SyncStatus) {
	f.states++
	return f.snap, f.status
}

func px(v float64) *float64 { return &v }

func refs() mapStore {
	return mapStore{
		"AAPL": {Ticker: "AAPL", Name: "Apple", BaselinePrice: 180, Score: 80,
			Classification: model.Classification{AssetClass: "Equity", Sector: "Technology", Industry: "Hardware"}},
		"MSFT": {Ticker: "MSFT", Name: "Microsoft", BaselinePrice: 300, Score: 60},
	}
}

func basket() model.Basket {
	return model.Basket{ID: "core", Positions: []model.Position{{Ticker: "AAPL", Weight: 50}, {Ticker: "msft", Weight: 50}}}
}

func snapshot(quotes map[string]model.PriceQuote, tickers ...string) *model.PriceSnapshot {
	return &model.PriceSnapshot{
		Tickers:      tickers,
		Quotes:       quotes,
		StaleTickers: dsvc.ClassifyStale(quotes),
		MarketOpen:   true,
		AsOf:         time.Date(2026, 3, 17, 14, 0, 0, 0, time.UTC),
		Sequence:     1,
	}
}

func TestComposeScenario(t *testing.T) {
	snap := snapshot(map[string]model.PriceQuote{
		"AAPL": {Price: px(198), ChangePercent: 1, IsLive: true},
		"MSFT": {Price: px(330), ChangePercent: 3, IsLive: true},
	}, "AAPL", "MSFT")

	val := Compose(basket(), refs(), snap, model.SyncStatus{})
	require.Len(t, val.Rows, 2)
	assert.InDelta(t, 10.0, val.Summary.WeightedReturn, 1e-9)
	assert.InDelta(t, 2.0, val.Summary.WeightedDayChange, 1e-9)
	assert.InDelta(t, 70.0, val.Summary.AvgScore, 1e-9)
	assert.Equal(t, 100.0, val.Summary.TotalWeight)
	assert.True(t, val.MarketOpen)

	aapl := val.Rows[0]
	assert.Equal(t, "Apple", aapl.Name)
	assert.Equal(t, "Technology", aapl.Classification.Sector)
	assert.InDelta(t, 10.0, *aapl.ReturnPercent, 1e-9)
	assert.Equal(t, 180.0, *aapl.BaselinePrice)
	assert.True(t, aapl.IsLive)
	assert.Equal(t, "MSFT", val.Rows[1].Ticker)
}

func TestComposeStaleTicker(t *testing.T) {
	snap := snapshot(map[string]model.PriceQuote{
		"AAPL": {Price: px(198), IsLive: true},
		"MSFT": {Price: nil},
	}, "AAPL", "MSFT")

	val := Compose(basket(), refs(), snap, model.SyncStatus{})
	assert.InDelta(t, 10.0, val.Summary.WeightedReturn, 1e-9)
	assert.Equal(t, []string{"MSFT"}, val.Stale)

	msft := val.Rows[1]
	assert.True(t, msft.IsStale)
	assert.False(t, msft.IsMissing)
	assert.Nil(t, msft.CurrentPrice)
	assert.Nil(t, msft.ReturnPercent)
}

func TestComposeMissingTickerListedButExcluded(t *testing.T) {
	snap := snapshot(map[string]model.PriceQuote{
		"MSFT": {Price: px(330)},
	}, "AAPL", "MSFT")

	val := Compose(basket(), refs(), snap, model.SyncStatus{})
	require.Len(t, val.Rows, 2)
	assert.True(t, val.Rows[0].IsMissing)
	assert.Nil(t, val.Rows[0].CurrentPrice)
	assert.Equal(t, []string{"AAPL"}, val.Missing)
	assert.InDelta(t, 10.0, val.Summary.WeightedReturn, 1e-9)
}

func TestComposeBeforeFirstSnapshot(t *testing.T) {
	val := Compose(basket(), refs(), nil, model.SyncStatus{Loading: true})
	require.Len(t, val.Rows, 2)
	assert.False(t, val.Rows[0].IsMissing, "nothing is missing before the first poll")
	assert.Equal(t, 0.0, val.Summary.WeightedReturn)
	assert.True(t, val.Status.Loading)
	assert.True(t, val.AsOf.IsZero())
}

func TestComposeUnknownReference(t *testing.T) {
	b := model.Basket{ID: "x", Positions: []model.Position{{Ticker: "NEW", Weight: 10}}}
	snap := snapshot(map[string]model.PriceQuote{"NEW": {Price: px(5), ChangePercent: 4}}, "NEW")

	val := Compose(b, refs(), snap, model.SyncStatus{})
	row := val.Rows[0]
	assert.Nil(t, row.Score)
	assert.Nil(t, row.ReturnPercent)
	assert.Equal(t, 5.0, *row.CurrentPrice)
	assert.Equal(t, 0.0, val.Summary.WeightedReturn)
	assert.InDelta(t, 4.0, val.Summary.WeightedDayChange, 1e-9)
	assert.Equal(t, 0.0, val.Summary.AvgScore)
}

func TestEmptyBasketZeroState(t *testing.T) {
	syncer := &fakeSyncer{}
	v := NewView(model.Basket{ID: "empty"}, refs(), syncer, zerolog.Nop())

	require.Len(t, syncer.configured, 1)
	assert.Empty(t, syncer.configured[0])

	val := v.Valuation()
	assert.Empty(t, val.Rows)
	assert.Equal(t, model.Summary{WeightDelta: 100}, val.Summary)
	assert.False(t, val.Status.Loading)
}

func TestViewConfiguresAndMemoizes(t *testing.T) {
	syncer := &fakeSyncer{}
	v := NewView(basket(), refs(), syncer, zerolog.Nop())
	require.Len(t, syncer.configured, 1)
	assert.Equal(t, []string{"AAPL", "MSFT"}, syncer.configured[0])

	first := v.Valuation()
	second := v.Valuation()
	require.NotEmpty(t, first.Rows)
	assert.Same(t, &first.Rows[0], &second.Rows[0], "unchanged inputs reuse the memo")
	assert.Equal(t, 2, syncer.states, "one state read per valuation")

	syncer.snap = snapshot(map[string]model.PriceQuote{"AAPL": {Price: px(198)}}, "AAPL", "MSFT")
	third := v.Valuation()
	assert.NotSame(t, &first.Rows[0], &third.Rows[0])
	assert.Equal(t, 198.0, *third.Rows[0].CurrentPrice)

	v.SetBasket(model.Basket{ID: "core", Positions: []model.Position{{Ticker: "AAPL", Weight: 100}}})
	require.Len(t, syncer.configured, 2)
	assert.Len(t, v.Valuation().Rows, 1)
}

func TestViewRefreshAndClose(t *testing.T) {
	syncer := &fakeSyncer{}
	v := NewView(basket(), refs(), syncer, zerolog.Nop())

	v.Refresh()
	v.Close()
	v.Close()
	assert.Equal(t, 1, syncer.refreshed)
	assert.Equal(t, 2, syncer.disposed)
}
