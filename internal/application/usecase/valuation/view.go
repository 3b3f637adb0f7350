// Package valuation joins a basket's positions with reference data and the
// live price snapshot into render-ready rows and basket level aggregates.
package valuation

import (
	"sync"

	"github.com/rs/zerolog"

	"basketsync/internal/application/port"
	"basketsync/internal/application/usecase/pricesync"
	"basketsync/internal/domain/model"
	dsvc "basketsync/internal/domain/service"
)

// Syncer is the part of *pricesync.Controller a view drives.
type Syncer interface {
	Configure(tickers []string)
	Refresh(force bool)
	State() (*model.PriceSnapshot, model.SyncStatus)
	Subscribe(l pricesync.Listener)
	Dispose()
}

type versioned interface {
	Version() uint64
}

type memoKey struct {
	basket uint64
	refs   uint64
	snap   *model.PriceSnapshot
	status model.SyncStatus
}

// View owns exactly one Syncer for one basket.
type View struct {
	refs   port.ReferenceStore
	syncer Syncer
	log    zerolog.Logger

	mu      sync.Mutex
	basket  model.Basket
	version uint64
	key     memoKey
	memo    *model.BasketValuation
}

func NewView(basket model.Basket, refs port.ReferenceStore, syncer Syncer, logger zerolog.Logger) *View {
	v := &View{
		refs:   refs,
		syncer: syncer,
		log:    logger.With().Str("component", "valuation").Str("basket", basket.ID).Logger(),
	}
	v.SetBasket(basket)
	return v
}

// SetBasket swaps the basket definition and reconfigures the syncer.
func (v *View) SetBasket(b model.Basket) {
	v.mu.Lock()
	v.basket = b
	v.version++
	v.mu.Unlock()

	tickers := b.Tickers()
	v.log.Debug().Int("positions", len(b.Positions)).Strs("tickers", tickers).Msg("basket set")
	v.syncer.Configure(tickers)
}

func (v *View) Basket() model.Basket {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.basket
}

// Valuation returns the current valuation, recomputing only when the basket,
// reference data, snapshot or sync status changed.
func (v *View) Valuation() model.BasketValuation {
	snap, status := v.syncer.State()

	v.mu.Lock()
	defer v.mu.Unlock()
	key := memoKey{basket: v.version, snap: snap, status: status}
	if rv, ok := v.refs.(versioned); ok {
		key.refs = rv.Version()
	}
	if v.memo != nil && key == v.key {
		return *v.memo
	}
	val := Compose(v.basket, v.refs, snap, status)
	v.key = key
	v.memo = &val
	return val
}

func (v *View) Refresh() { v.syncer.Refresh(true) }

func (v *View) Subscribe(l pricesync.Listener) { v.syncer.Subscribe(l) }

// Close tears the view down; the snapshot is discarded with the syncer.
func (v *View) Close() { v.syncer.Dispose() }

// Compose is the pure join behind View.Valuation.
func Compose(basket model.Basket, refs port.ReferenceStore, snap *model.PriceSnapshot, status model.SyncStatus) model.BasketValuation {
	positions := make([]model.Position, 0, len(basket.Positions))
	refMap := make(map[string]model.ReferenceRecord, len(basket.Positions))
	for _, p := range basket.Positions {
		p.Ticker = model.NormalizeTicker(p.Ticker)
		if p.Ticker == "" {
			continue
		}
		positions = append(positions, p)
		if refs == nil {
			continue
		}
		if ref, ok := refs.Lookup(p.Ticker); ok {
			refMap[p.Ticker] = ref
		}
	}

	var quotes map[string]model.PriceQuote
	if snap != nil {
		quotes = snap.Quotes
	}

	rows := make([]model.Row, 0, len(positions))
	for _, p := range positions {
		rows = append(rows, buildRow(p, refMap, snap))
	}

	val := model.BasketValuation{
		BasketID: basket.ID,
		Rows:     rows,
		Summary:  dsvc.Summarize(positions, quotes, refMap),
		Status:   status,
	}
	if snap != nil {
		val.MarketOpen = snap.MarketOpen
		val.AsOf = snap.AsOf
		val.Stale = snap.Stale()
		val.Missing = dsvc.MissingTickers(tickersOf(positions), quotes)
	}
	return val
}

func buildRow(p model.Position, refs map[string]model.ReferenceRecord, snap *model.PriceSnapshot) model.Row {
	row := model.Row{Ticker: p.Ticker, Weight: p.Weight}

	ref, hasRef := refs[p.Ticker]
	if hasRef {
		row.Name = ref.Name
		row.Classification = ref.Classification
		score := ref.Score
		row.Score = &score
		if ref.BaselinePrice > 0 {
			base := ref.BaselinePrice
			row.BaselinePrice = &base
		}
	}

	if snap == nil {
		return row
	}
	q, ok := snap.Quote(p.Ticker)
	if !ok {
		row.IsMissing = true
		return row
	}
	row.IsLive = q.IsLive
	row.IsStale = q.Price == nil
	if !q.Priced() {
		return row
	}
	cur := *q.Price
	row.CurrentPrice = &cur
	chg := q.ChangePercent
	row.DayChangePercent = &chg
	if hasRef {
		if r, ok := dsvc.PercentReturn(cur, ref.BaselinePrice); ok {
			row.ReturnPercent = &r
		}
	}
	return row
}

func tickersOf(positions []model.Position) []string {
	out := make([]string, 0, len(positions))
	for _, p := range positions {
		out = append(out, p.Ticker)
	}
	return out
}
