package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"basketsync/internal/application/port"
	"basketsync/internal/domain/model"
)

type mockRepository struct {
	baskets    []model.Basket
	references map[string]model.ReferenceRecord
	gets       int
	err        error
}

func (m *mockRepository) ListBaskets(ctx context.Context) ([]model.Basket, error) {
	return m.baskets, m.err
}

func (m *mockRepository) GetBasket(ctx context.Context, id string) (*model.Basket, error) {
	for _, b := range m.baskets {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, port.ErrNotFound
}

func (m *mockRepository) ListReferences(ctx context.Context) ([]model.ReferenceRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]model.ReferenceRecord, 0, len(m.references))
	for _, r := range m.references {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockRepository) GetReference(ctx context.Context, ticker string) (*model.ReferenceRecord, error) {
	m.gets++
	if m.err != nil {
		return nil, m.err
	}
	r, ok := m.references[ticker]
	if !ok {
		return nil, port.ErrNotFound
	}
	return &r, nil
}

type mockPublisher struct {
	published map[string]uint64
	err       error
}

func (m *mockPublisher) PublishSnapshot(ctx context.Context, basketID string, snap *model.PriceSnapshot) error {
	if m.err != nil {
		return m.err
	}
	m.published[basketID] = snap.Sequence
	return nil
}

func TestReferenceCacheLoadAndLookup(t *testing.T) {
	repo := &mockRepository{references: map[string]model.ReferenceRecord{
		"AAPL": {Ticker: "aapl", Name: "Apple", BaselinePrice: 180},
	}}
	cache := NewReferenceCache(repo, zerolog.Nop())

	if err := cache.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	rec, ok := cache.Lookup(" aapl ")
	if !ok || rec.Name != "Apple" {
		t.Errorf("expected Apple, got %+v (ok=%v)", rec, ok)
	}
	if cache.Version() == 0 {
		t.Errorf("expected version bump after load")
	}
}

func TestReferenceCacheEnsureLoadsUnknownOnly(t *testing.T) {
	repo := &mockRepository{references: map[string]model.ReferenceRecord{
		"AAPL": {Ticker: "AAPL", Name: "Apple"},
		"MSFT": {Ticker: "MSFT", Name: "Microsoft"},
	}}
	cache := NewReferenceCache(repo, zerolog.Nop())
	cache.Put(model.ReferenceRecord{Ticker: "AAPL", Name: "Apple"})

	if err := cache.Ensure(context.Background(), []string{"AAPL", "MSFT", "NOPE"}); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if repo.gets != 2 {
		t.Errorf("expected 2 repository lookups, got %d", repo.gets)
	}
	if _, ok := cache.Lookup("MSFT"); !ok {
		t.Errorf("expected MSFT to be cached")
	}
	if _, ok := cache.Lookup("NOPE"); ok {
		t.Errorf("unknown ticker must stay unknown")
	}
	if cache.Len() != 2 {
		t.Errorf("expected 2 records, got %d", cache.Len())
	}
}

func TestReferenceCacheEnsurePropagatesErrors(t *testing.T) {
	boom := errors.New("db down")
	cache := NewReferenceCache(&mockRepository{err: boom}, zerolog.Nop())
	if err := cache.Ensure(context.Background(), []string{"AAPL"}); !errors.Is(err, boom) {
		t.Errorf("expected wrapped db error, got %v", err)
	}
	if err := cache.Load(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected wrapped db error, got %v", err)
	}
}

func TestBasketServiceNormalizes(t *testing.T) {
	repo := &mockRepository{baskets: []model.Basket{
		{ID: "core", Positions: []model.Position{{Ticker: " aapl", Weight: 60}, {Ticker: "", Weight: 5}, {Ticker: "msft", Weight: 40}}},
	}}
	svc := NewBasketService(repo)

	baskets, err := svc.ListBaskets(context.Background())
	if err != nil {
		t.Fatalf("ListBaskets failed: %v", err)
	}
	if len(baskets) != 1 || len(baskets[0].Positions) != 2 {
		t.Fatalf("expected 1 basket with 2 positions, got %+v", baskets)
	}
	if baskets[0].Positions[0].Ticker != "AAPL" {
		t.Errorf("expected AAPL, got %s", baskets[0].Positions[0].Ticker)
	}

	if _, err := svc.GetBasket(context.Background(), "missing"); !errors.Is(err, port.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSnapshotServicePublish(t *testing.T) {
	pub := &mockPublisher{published: make(map[string]uint64)}
	svc := NewSnapshotService(pub, zerolog.Nop())

	svc.Publish(context.Background(), "core", &model.PriceSnapshot{Sequence: 7})
	svc.Publish(context.Background(), "core", nil)
	if pub.published["core"] != 7 {
		t.Errorf("expected seq 7 published, got %v", pub.published)
	}

	pub.err = errors.New("redis down")
	svc.Publish(context.Background(), "core", &model.PriceSnapshot{Sequence: 8})
	if pub.published["core"] != 7 {
		t.Errorf("failed publish must not record, got %v", pub.published)
	}
}
