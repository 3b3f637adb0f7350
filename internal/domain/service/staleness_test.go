package service

import (
	"testing"

	"basketsync/internal/domain/model"
)

func TestClassifyStale(t *testing.T) {
	quotes := map[string]model.PriceQuote{
		"AAPL": {Price: price(198), IsLive: true},
		"MSFT": {Price: nil},
		"TSLA": {Price: price(250), IsLive: false},
	}
	stale := ClassifyStale(quotes)
	if len(stale) != 1 {
		t.Fatalf("expected 1 stale ticker, got %d", len(stale))
	}
	if _, ok := stale["MSFT"]; !ok {
		t.Errorf("expected MSFT stale, got %v", stale)
	}
	// delayed but priced is not stale
	if _, ok := stale["TSLA"]; ok {
		t.Errorf("TSLA is delayed, not stale")
	}
}

func TestMissingTickers(t *testing.T) {
	quotes := map[string]model.PriceQuote{"AAPL": {Price: price(1)}, "MSFT": {}}
	got := MissingTickers([]string{"AAPL", "NVDA", "MSFT", "GOOG"}, quotes)
	if len(got) != 2 || got[0] != "NVDA" || got[1] != "GOOG" {
		t.Errorf("expected [NVDA GOOG], got %v", got)
	}
	if got := MissingTickers(nil, quotes); len(got) != 0 {
		t.Errorf("expected none, got %v", got)
	}
}
