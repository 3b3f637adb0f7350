package sqlite

import (
	"context"
	"errors"
	"os"
	"testing"

	"basketsync/internal/application/port"
	"basketsync/internal/domain/model"
)

func TestSQLiteRepoSaveAndGetBasket(t *testing.T) {
	dbPath := "test_basket.db"
	defer os.Remove(dbPath)

	repo, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	b := model.Basket{ID: "core", Name: "Core", Kind: "portfolio", Positions: []model.Position{
		{Ticker: "MSFT", Weight: 40},
		{Ticker: "aapl", Weight: 60},
	}}
	if err := repo.SaveBasket(ctx, b); err != nil {
		t.Fatalf("SaveBasket failed: %v", err)
	}

	got, err := repo.GetBasket(ctx, "core")
	if err != nil {
		t.Fatalf("GetBasket failed: %v", err)
	}
	if got.Name != "Core" || len(got.Positions) != 2 {
		t.Fatalf("unexpected basket: %+v", got)
	}
	if got.Positions[0].Ticker != "MSFT" || got.Positions[1].Ticker != "AAPL" {
		t.Errorf("position order not kept: %+v", got.Positions)
	}
}

func TestSQLiteRepoSaveBasketReplacesPositions(t *testing.T) {
	dbPath := "test_replace.db"
	defer os.Remove(dbPath)

	repo, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	_ = repo.SaveBasket(ctx, model.Basket{ID: "w", Kind: "watchlist", Positions: []model.Position{{Ticker: "AAPL"}, {Ticker: "MSFT"}}})
	_ = repo.SaveBasket(ctx, model.Basket{ID: "w", Kind: "watchlist", Positions: []model.Position{{Ticker: "NVDA"}}})

	got, err := repo.GetBasket(ctx, "w")
	if err != nil {
		t.Fatalf("GetBasket failed: %v", err)
	}
	if len(got.Positions) != 1 || got.Positions[0].Ticker != "NVDA" {
		t.Errorf("expected only NVDA, got %+v", got.Positions)
	}
}

func TestSQLiteRepoListBaskets(t *testing.T) {
	dbPath := "test_list.db"
	defer os.Remove(dbPath)

	repo, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	repo.SaveBasket(ctx, model.Basket{ID: "b", Positions: []model.Position{{Ticker: "AAPL", Weight: 100}}})
	repo.SaveBasket(ctx, model.Basket{ID: "a"})

	baskets, err := repo.ListBaskets(ctx)
	if err != nil {
		t.Fatalf("ListBaskets failed: %v", err)
	}
	if len(baskets) != 2 {
		t.Fatalf("expected 2 baskets, got %d", len(baskets))
	}
	if baskets[0].ID != "a" || len(baskets[0].Positions) != 0 {
		t.Errorf("unexpected first basket: %+v", baskets[0])
	}
	if len(baskets[1].Positions) != 1 {
		t.Errorf("expected 1 position in b, got %+v", baskets[1])
	}
}

func TestSQLiteRepoReferences(t *testing.T) {
	dbPath := "test_refs.db"
	defer os.Remove(dbPath)

	repo, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	rec := model.ReferenceRecord{
		Ticker:         "aapl",
		Name:           "Apple",
		Classification: model.Classification{AssetClass: "Equity", Sector: "Technology", Industry: "Hardware"},
		BaselinePrice:  180,
		Score:          80,
	}
	if err := repo.SaveReference(ctx, rec); err != nil {
		t.Fatalf("SaveReference failed: %v", err)
	}
	rec.BaselinePrice = 190
	if err := repo.SaveReference(ctx, rec); err != nil {
		t.Fatalf("SaveReference update failed: %v", err)
	}

	got, err := repo.GetReference(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetReference failed: %v", err)
	}
	if got.BaselinePrice != 190 || got.Classification.Sector != "Technology" {
		t.Errorf("unexpected record: %+v", got)
	}

	all, err := repo.ListReferences(ctx)
	if err != nil {
		t.Fatalf("ListReferences failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 record, got %d", len(all))
	}
}

func TestSQLiteRepoNotFound(t *testing.T) {
	dbPath := "test_missing.db"
	defer os.Remove(dbPath)

	repo, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	if _, err := repo.GetBasket(ctx, "nope"); !errors.Is(err, port.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetReference(ctx, "NOPE"); !errors.Is(err, port.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
