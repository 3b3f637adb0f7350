package model

import "strings"

// Position is one weighted ticker inside a basket. Weight is an editor supplied
// percentage (0-100); the basket total is not required to reach 100.
type Position struct {
	Ticker string  `json:"ticker" toml:"ticker"`
	Weight float64 `json:"weight" toml:"weight"`
}

// Basket is a named, ordered collection of positions (portfolio or watchlist).
type Basket struct {
	ID        string     `json:"id" toml:"id"`
	Name      string     `json:"name" toml:"name"`
	Kind      string     `json:"kind" toml:"kind"` // "portfolio" | "watchlist"
	Positions []Position `json:"positions" toml:"positions"`
}

// Tickers returns the normalized ticker list of the basket in position order.
func (b Basket) Tickers() []string {
	out := make([]string, 0, len(b.Positions))
	for _, p := range b.Positions {
		out = append(out, p.Ticker)
	}
	return NormalizeTickers(out)
}

// TotalWeight sums the weights of every position.
func (b Basket) TotalWeight() float64 {
	var total float64
	for _, p := range b.Positions {
		total += p.Weight
	}
	return total
}

// Classification places an instrument in the asset class / sector / industry tree.
type Classification struct {
	AssetClass string `json:"assetClass" toml:"asset_class"`
	Sector     string `json:"sector" toml:"sector"`
	Industry   string `json:"industry" toml:"industry"`
}

// ReferenceRecord is the static, editor owned metadata of a ticker.
type ReferenceRecord struct {
	Ticker         string         `json:"ticker" toml:"ticker"`
	Name           string         `json:"name" toml:"name"`
	Classification Classification `json:"classification" toml:"classification"`
	BaselinePrice  float64        `json:"baselinePrice" toml:"baseline_price"`
	Score          float64        `json:"score" toml:"score"`
}

// NormalizeTickers trims, upper-cases and de-duplicates tickers, keeping first-seen order.
func NormalizeTickers(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := NormalizeTicker(s)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func NormalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
