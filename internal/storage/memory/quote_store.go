// Package memory provides in-process stores for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/JakeFAU/quote-harvester/internal/quote"
)

// QuoteStore keeps quote rows in a sync.Map so upserts to distinct ids never
// contend on a shared lock.
type QuoteStore struct {
	rows    sync.Map
	upserts atomic.Int64

	wmMu      sync.Mutex
	watermark int64
	wmSet     bool
	wmWrites  int
}

// NewQuoteStore creates an empty store.
func NewQuoteStore() *QuoteStore {
	return &QuoteStore{}
}

// Upsert inserts or overwrites the row for record.ID.
func (s *QuoteStore) Upsert(_ context.Context, record quote.Record) error {
	if record.ID <= quote.WatermarkID {
		return fmt.Errorf("upsert quote %d: %w", record.ID, quote.ErrInvalidID)
	}
	s.rows.Store(record.ID, record)
	s.upserts.Add(1)
	return nil
}

// Get returns the row for id.
func (s *QuoteStore) Get(_ context.Context, id int64) (quote.Record, bool) {
	v, ok := s.rows.Load(id)
	if !ok {
		return quote.Record{}, false
	}
	return v.(quote.Record), true
}

// IDs returns the stored identifiers in ascending order.
func (s *QuoteStore) IDs() []int64 {
	var ids []int64
	s.rows.Range(func(k, _ any) bool {
		ids = append(ids, k.(int64))
		return true
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Upserts reports how many upserts were applied, overwrites included.
func (s *QuoteStore) Upserts() int64 {
	return s.upserts.Load()
}

// ReadWatermark returns quote.ErrWatermarkNotFound until the first write.
func (s *QuoteStore) ReadWatermark(context.Context) (int64, error) {
	s.wmMu.Lock()
	defer s.wmMu.Unlock()
	if !s.wmSet {
		return 0, quote.ErrWatermarkNotFound
	}
	return s.watermark, nil
}

// WriteWatermark overwrites the watermark.
func (s *QuoteStore) WriteWatermark(_ context.Context, value int64) error {
	s.wmMu.Lock()
	defer s.wmMu.Unlock()
	s.watermark = value
	s.wmSet = true
	s.wmWrites++
	return nil
}

// WatermarkWrites reports how many times the watermark has been written.
func (s *QuoteStore) WatermarkWrites() int {
	s.wmMu.Lock()
	defer s.wmMu.Unlock()
	return s.wmWrites
}

// Close implements quote.Store.
func (s *QuoteStore) Close() error { return nil }
