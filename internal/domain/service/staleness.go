package service

import "basketsync/internal/domain/model"

// ClassifyStale returns the tickers present in quotes whose price is nil.
// Tickers absent from quotes are not reported; see MissingTickers.
func ClassifyStale(quotes map[string]model.PriceQuote) map[string]struct{} {
	stale := make(map[string]struct{})
	for t, q := range quotes {
		if q.Price == nil {
			stale[t] = struct{}{}
		}
	}
	return stale
}

// MissingTickers is the set difference requested \ keys(quotes), in request order.
func MissingTickers(requested []string, quotes map[string]model.PriceQuote) []string {
	var out []string
	for _, t := range requested {
		if _, ok := quotes[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}
