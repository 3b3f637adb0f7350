package service

import (
	"gonum.org/v1/gonum/stat"

	"basketsync/internal/domain/model"
)

// PercentReturn is the simple return of current over baseline, in percent.
// ok is false when either price is unusable.
func PercentReturn(current, baseline float64) (float64, bool) {
	if current <= 0 || baseline <= 0 {
		return 0, false
	}
	return (current/baseline - 1) * 100, true
}

// WeightedReturn is the weight-averaged return of positions that have both a
// positive baseline and a positive current price. Everything else is left out
// of the denominator. Returns 0 when nothing is eligible.
func WeightedReturn(positions []model.Position, quotes map[string]model.PriceQuote, refs map[string]model.ReferenceRecord) float64 {
	xs := make([]float64, 0, len(positions))
	ws := make([]float64, 0, len(positions))
	for _, p := range positions {
		q, ok := quotes[p.Ticker]
		if !ok || !q.Priced() {
			continue
		}
		ref, ok := refs[p.Ticker]
		if !ok {
			continue
		}
		r, ok := PercentReturn(*q.Price, ref.BaselinePrice)
		if !ok {
			continue
		}
		xs = append(xs, r)
		ws = append(ws, p.Weight)
	}
	return weightedMean(xs, ws)
}

// WeightedDayChange averages the quote's own day change percent by weight.
// Positions without a priced quote are excluded.
func WeightedDayChange(positions []model.Position, quotes map[string]model.PriceQuote) float64 {
	xs := make([]float64, 0, len(positions))
	ws := make([]float64, 0, len(positions))
	for _, p := range positions {
		q, ok := quotes[p.Ticker]
		if !ok || !q.Priced() {
			continue
		}
		xs = append(xs, q.ChangePercent)
		ws = append(ws, p.Weight)
	}
	return weightedMean(xs, ws)
}

// AvgScore is the unweighted mean conviction score of positions that resolve
// to a reference record.
func AvgScore(positions []model.Position, refs map[string]model.ReferenceRecord) float64 {
	scores := make([]float64, 0, len(positions))
	for _, p := range positions {
		if ref, ok := refs[p.Ticker]; ok {
			scores = append(scores, ref.Score)
		}
	}
	if len(scores) == 0 {
		return 0
	}
	return stat.Mean(scores, nil)
}

// Summarize computes every basket level aggregate in one pass over the inputs.
func Summarize(positions []model.Position, quotes map[string]model.PriceQuote, refs map[string]model.ReferenceRecord) model.Summary {
	var total float64
	for _, p := range positions {
		total += p.Weight
	}
	return model.Summary{
		WeightedReturn:    WeightedReturn(positions, quotes, refs),
		WeightedDayChange: WeightedDayChange(positions, quotes),
		AvgScore:          AvgScore(positions, refs),
		TotalWeight:       total,
		WeightDelta:       100 - total,
	}
}

func weightedMean(xs, ws []float64) float64 {
	var den float64
	for _, w := range ws {
		den += w
	}
	if len(xs) == 0 || den == 0 {
		return 0
	}
	return stat.Mean(xs, ws)
}
