package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"basketsync/internal/application/port"
	"basketsync/internal/domain/model"
)

// ReferenceCache is the synchronous in-memory reference store read by the
// valuation views. It is filled from a repository at startup and on demand
// for tickers it has not seen.
type ReferenceCache struct {
	repo port.ReferenceRepository
	log  zerolog.Logger

	mu      sync.RWMutex
	records map[string]model.ReferenceRecord
	version uint64
}

func NewReferenceCache(repo port.ReferenceRepository, logger zerolog.Logger) *ReferenceCache {
	return &ReferenceCache{
		repo:    repo,
		log:     logger.With().Str("component", "reference_cache").Logger(),
		records: make(map[string]model.ReferenceRecord),
	}
}

// Load replaces the cache content with everything the repository holds.
func (c *ReferenceCache) Load(ctx context.Context) error {
	if c.repo == nil {
		return nil
	}
	recs, err := c.repo.ListReferences(ctx)
	if err != nil {
		return fmt.Errorf("list references: %w", err)
	}
	next := make(map[string]model.ReferenceRecord, len(recs))
	for _, r := range recs {
		r.Ticker = model.NormalizeTicker(r.Ticker)
		next[r.Ticker] = r
	}

	c.mu.Lock()
	c.records = next
	c.version++
	c.mu.Unlock()

	c.log.Info().Int("records", len(next)).Msg("reference data loaded")
	return nil
}

// Ensure loads unknown tickers one by one. Tickers the repository does not
// know are skipped; they render without reference data.
func (c *ReferenceCache) Ensure(ctx context.Context, tickers []string) error {
	if c.repo == nil {
		return nil
	}
	for _, t := range model.NormalizeTickers(tickers) {
		if _, ok := c.Lookup(t); ok {
			continue
		}
		rec, err := c.repo.GetReference(ctx, t)
		if errors.Is(err, port.ErrNotFound) {
			c.log.Debug().Str("ticker", t).Msg("no reference record")
			continue
		}
		if err != nil {
			return fmt.Errorf("get reference %s: %w", t, err)
		}
		c.Put(*rec)
	}
	return nil
}

func (c *ReferenceCache) Lookup(ticker string) (model.ReferenceRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[model.NormalizeTicker(ticker)]
	return r, ok
}

func (c *ReferenceCache) Put(r model.ReferenceRecord) {
	r.Ticker = model.NormalizeTicker(r.Ticker)
	c.mu.Lock()
	c.records[r.Ticker] = r
	c.version++
	c.mu.Unlock()
}

// Version changes whenever the cache content changes.
func (c *ReferenceCache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

func (c *ReferenceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

var _ port.ReferenceStore = (*ReferenceCache)(nil)
