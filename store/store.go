// Package store persists registry snapshots and giveaway records.
package store

import (
	"fmt"
	"sync"

	"github.com/bitfsorg/libgiveaway-go/factory"
	"github.com/bitfsorg/libgiveaway-go/giveaway"
)

// Store persists a single registry and its giveaways.
type Store interface {
	// SaveMeta stores the registry fields of snap, ignoring its giveaways.
	SaveMeta(snap factory.Snapshot) error

	// SaveGiveaway inserts or replaces the record at rec.Index.
	SaveGiveaway(rec giveaway.Record) error

	// SaveRegistry stores the registry and all its giveaways atomically.
	SaveRegistry(snap factory.Snapshot) error

	// LoadRegistry returns the stored registry with giveaways in index order.
	LoadRegistry() (factory.Snapshot, error)

	// LookupSlug returns the index stored under slug.
	LookupSlug(slug string) (uint64, error)

	Close() error
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu        sync.RWMutex
	meta      *factory.Snapshot
	giveaways map[uint64]giveaway.Record
	slugs     map[string]uint64
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		giveaways: make(map[uint64]giveaway.Record),
		slugs:     make(map[string]uint64),
	}
}

// SaveMeta implements Store.
func (s *MemStore) SaveMeta(snap factory.Snapshot) error {
	meta := snap.Meta()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta = &meta
	return nil
}

// SaveGiveaway implements Store.
func (s *MemStore) SaveGiveaway(rec giveaway.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(rec)
}

func (s *MemStore) putLocked(rec giveaway.Record) error {
	if idx, ok := s.slugs[rec.Params.Slug]; ok && idx != rec.Index {
		return fmt.Errorf("%w: %q at %d", ErrSlugConflict, rec.Params.Slug, idx)
	}
	s.giveaways[rec.Index] = rec
	s.slugs[rec.Params.Slug] = rec.Index
	return nil
}

// SaveRegistry implements Store.
func (s *MemStore) SaveRegistry(snap factory.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta := snap.Meta()
	s.meta = &meta
	s.giveaways = make(map[uint64]giveaway.Record, len(snap.Giveaways))
	s.slugs = make(map[string]uint64, len(snap.Giveaways))
	for _, rec := range snap.Giveaways {
		if err := s.putLocked(rec); err != nil {
			return err
		}
	}
	return nil
}

// LoadRegistry implements Store.
func (s *MemStore) LoadRegistry() (factory.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.meta == nil {
		return factory.Snapshot{}, ErrNotFound
	}
	snap := *s.meta
	snap.Giveaways = make([]giveaway.Record, 0, len(s.giveaways))
	for i := uint64(0); i < uint64(len(s.giveaways)); i++ {
		rec, ok := s.giveaways[i]
		if !ok {
			return factory.Snapshot{}, fmt.Errorf("%w: missing giveaway %d", ErrCorrupt, i)
		}
		snap.Giveaways = append(snap.Giveaways, rec)
	}
	return snap, nil
}

// LookupSlug implements Store.
func (s *MemStore) LookupSlug(slug string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.slugs[slug]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrSlugNotFound, slug)
	}
	return idx, nil
}

// Close implements Store.
func (s *MemStore) Close() error { return nil }
