package store

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/bitfsorg/libgiveaway-go/factory"
	"github.com/bitfsorg/libgiveaway-go/giveaway"
)

var (
	bucketMeta      = []byte("meta")
	bucketGiveaways = []byte("giveaways")
	bucketSlugs     = []byte("slugs")

	keyRegistry = []byte("registry")
)

// BoltStore persists a registry in a bbolt database.
//
// Layout:
//
//	meta/registry     gob(factory.Snapshot) without giveaways
//	giveaways/<index> gob(giveaway.Record), index as 8-byte big-endian
//	slugs/<slug>      8-byte big-endian index
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the database at dbPath, creating the parent
// directory if needed.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketGiveaways, bucketSlugs} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

func indexKey(i uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, i)
	return k
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// SaveMeta implements Store.
func (s *BoltStore) SaveMeta(snap factory.Snapshot) error {
	return s.db.Update(func(tx *bbolt.Tx) error { return putMeta(tx, snap) })
}

func putMeta(tx *bbolt.Tx, snap factory.Snapshot) error {
	data, err := encodeGob(snap.Meta())
	if err != nil {
		return fmt.Errorf("store: encode registry: %w", err)
	}
	return tx.Bucket(bucketMeta).Put(keyRegistry, data)
}

// SaveGiveaway implements Store.
func (s *BoltStore) SaveGiveaway(rec giveaway.Record) error {
	return s.db.Update(func(tx *bbolt.Tx) error { return putGiveaway(tx, rec) })
}

func putGiveaway(tx *bbolt.Tx, rec giveaway.Record) error {
	slugs := tx.Bucket(bucketSlugs)
	key := indexKey(rec.Index)
	if v := slugs.Get([]byte(rec.Params.Slug)); v != nil && !bytes.Equal(v, key) {
		return fmt.Errorf("%w: %q at %d", ErrSlugConflict, rec.Params.Slug, binary.BigEndian.Uint64(v))
	}
	data, err := encodeGob(rec)
	if err != nil {
		return fmt.Errorf("store: encode giveaway %d: %w", rec.Index, err)
	}
	if err := tx.Bucket(bucketGiveaways).Put(key, data); err != nil {
		return fmt.Errorf("store: put giveaway %d: %w", rec.Index, err)
	}
	if err := slugs.Put([]byte(rec.Params.Slug), key); err != nil {
		return fmt.Errorf("store: put slug %q: %w", rec.Params.Slug, err)
	}
	return nil
}

// SaveRegistry implements Store. Previously stored giveaways are replaced.
func (s *BoltStore) SaveRegistry(snap factory.Snapshot) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketGiveaways, bucketSlugs} {
			if err := tx.DeleteBucket(name); err != nil {
				return fmt.Errorf("store: reset %q: %w", name, err)
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return fmt.Errorf("store: reset %q: %w", name, err)
			}
		}
		if err := putMeta(tx, snap); err != nil {
			return err
		}
		for _, rec := range snap.Giveaways {
			if err := putGiveaway(tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadRegistry implements Store.
func (s *BoltStore) LoadRegistry() (factory.Snapshot, error) {
	var snap factory.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keyRegistry)
		if data == nil {
			return ErrNotFound
		}
		if err := decodeGob(data, &snap); err != nil {
			return fmt.Errorf("%w: registry: %w", ErrCorrupt, err)
		}

		var next uint64
		return tx.Bucket(bucketGiveaways).ForEach(func(k, v []byte) error {
			if len(k) != 8 || binary.BigEndian.Uint64(k) != next {
				return fmt.Errorf("%w: missing giveaway %d", ErrCorrupt, next)
			}
			var rec giveaway.Record
			if err := decodeGob(v, &rec); err != nil {
				return fmt.Errorf("%w: giveaway %d: %w", ErrCorrupt, next, err)
			}
			snap.Giveaways = append(snap.Giveaways, rec)
			next++
			return nil
		})
	})
	if err != nil {
		return factory.Snapshot{}, err
	}
	return snap, nil
}

// LookupSlug implements Store.
func (s *BoltStore) LookupSlug(slug string) (uint64, error) {
	var idx uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketSlugs).Get([]byte(slug))
		if v == nil {
			return fmt.Errorf("%w: %q", ErrSlugNotFound, slug)
		}
		idx = binary.BigEndian.Uint64(v)
		return nil
	})
	return idx, err
}
