package model

import (
	"sort"
	"time"
)

// PriceQuote is a single live observation for a ticker. A nil Price is the
// explicit "unavailable" signal; IsLive=false only means delayed/cached.
type PriceQuote struct {
	Price         *float64 `json:"price"`
	Change        float64  `json:"change"`
	ChangePercent float64  `json:"changePercent"`
	MarketCap     *float64 `json:"marketCap,omitempty"`
	IsLive        bool     `json:"isLive"`
}

// Priced reports whether the quote carries a usable, positive price.
func (q PriceQuote) Priced() bool {
	return q.Price != nil && *q.Price > 0
}

// PriceResponse is the decoded body of one price endpoint call.
type PriceResponse struct {
	Quotes     map[string]PriceQuote
	MarketOpen bool
	Timestamp  time.Time
}

// PriceSnapshot is the immutable result of one successful poll. It is replaced
// wholesale by the next one and must not be modified after publication.
type PriceSnapshot struct {
	Tickers      []string              `json:"tickers"`
	Quotes       map[string]PriceQuote `json:"quotes"`
	StaleTickers map[string]struct{}   `json:"-"`
	MarketOpen   bool                  `json:"marketOpen"`
	AsOf         time.Time             `json:"asOf"`
	Generation   uint64                `json:"generation"`
	Sequence     uint64                `json:"sequence"`
}

// Quote returns the quote for ticker, if the response contained one.
func (s *PriceSnapshot) Quote(ticker string) (PriceQuote, bool) {
	if s == nil {
		return PriceQuote{}, false
	}
	q, ok := s.Quotes[ticker]
	return q, ok
}

func (s *PriceSnapshot) IsStale(ticker string) bool {
	if s == nil {
		return false
	}
	_, ok := s.StaleTickers[ticker]
	return ok
}

// Stale returns the stale tickers sorted, for logging and JSON output.
func (s *PriceSnapshot) Stale() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.StaleTickers))
	for t := range s.StaleTickers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Missing returns the requested tickers the response did not mention at all.
func (s *PriceSnapshot) Missing() []string {
	if s == nil {
		return nil
	}
	var out []string
	for _, t := range s.Tickers {
		if _, ok := s.Quotes[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}
