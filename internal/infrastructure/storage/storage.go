// Package storage holds the in-memory repository used when no database is
// enabled. Database backed repositories live in the sub packages.
package storage

import (
	"context"
	"sort"
	"sync"

	"basketsync/internal/application/port"
	"basketsync/internal/domain/model"
)

// InMemoryRepository is a simple in-memory implementation
type InMemoryRepository struct {
	mu         sync.RWMutex
	baskets    map[string]model.Basket
	references map[string]model.ReferenceRecord
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		baskets:    make(map[string]model.Basket),
		references: make(map[string]model.ReferenceRecord),
	}
}

func (r *InMemoryRepository) SaveBasket(ctx context.Context, b model.Basket) error {
	b.Positions = append([]model.Position(nil), b.Positions...)
	for i := range b.Positions {
		b.Positions[i].Ticker = model.NormalizeTicker(b.Positions[i].Ticker)
	}
	r.mu.Lock()
	r.baskets[b.ID] = b
	r.mu.Unlock()
	return nil
}

func (r *InMemoryRepository) ListBaskets(ctx context.Context) ([]model.Basket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Basket, 0, len(r.baskets))
	for _, b := range r.baskets {
		b.Positions = append([]model.Position(nil), b.Positions...)
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *InMemoryRepository) GetBasket(ctx context.Context, id string) (*model.Basket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.baskets[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	b.Positions = append([]model.Position(nil), b.Positions...)
	return &b, nil
}

func (r *InMemoryRepository) SaveReference(ctx context.Context, rec model.ReferenceRecord) error {
	rec.Ticker = model.NormalizeTicker(rec.Ticker)
	r.mu.Lock()
	r.references[rec.Ticker] = rec
	r.mu.Unlock()
	return nil
}

func (r *InMemoryRepository) ListReferences(ctx context.Context) ([]model.ReferenceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ReferenceRecord, 0, len(r.references))
	for _, rec := range r.references {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

func (r *InMemoryRepository) GetReference(ctx context.Context, ticker string) (*model.ReferenceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.references[model.NormalizeTicker(ticker)]
	if !ok {
		return nil, port.ErrNotFound
	}
	return &rec, nil
}

func (r *InMemoryRepository) Close() error {
	return nil
}

var _ port.Repository = (*InMemoryRepository)(nil)
