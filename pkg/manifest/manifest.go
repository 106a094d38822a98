// Package manifest records produced digests in a BoltDB file, one bucket per
// algorithm keyed by absolute path.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"

	"github.com/jacktea/xgsum/pkg/dispatch"
)

// ErrNotFound is returned by Get when no entry is recorded.
var ErrNotFound = errors.New("manifest: entry not found")

var bucketPrefix = []byte("digest:")

// Config configures the BoltDB-backed store.
type Config struct {
	Path    string
	NoSync  bool
	Timeout time.Duration
}

// Entry is one recorded digest.
type Entry struct {
	Path      string    `json:"path"`
	Algorithm string    `json:"algorithm"`
	Digest    string    `json:"digest"`
	Size      int64     `json:"size"`
	HashedAt  time.Time `json:"hashed_at"`
}

// Store persists entries in BoltDB.
type Store struct {
	cfg Config
	db  *bolt.DB
}

// Open creates or opens the manifest file.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("manifest: path is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 1 * time.Second
	}
	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{
		Timeout: cfg.Timeout,
		NoSync:  cfg.NoSync,
	})
	if err != nil {
		return nil, fmt.Errorf("manifest: open: %w", err)
	}
	return &Store{cfg: cfg, db: db}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// EntriesFrom converts successful results to entries stamped with now.
// Failed results are skipped.
func EntriesFrom(results []dispatch.Result, now time.Time) []Entry {
	entries := make([]Entry, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		path := r.Path
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		entries = append(entries, Entry{
			Path:      path,
			Algorithm: string(r.Algorithm),
			Digest:    r.Digest.String(),
			Size:      r.Size,
			HashedAt:  now.UTC(),
		})
	}
	return entries
}

// Record writes entries in a single transaction, replacing older ones.
func (s *Store) Record(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, e := range entries {
			bkt, err := tx.CreateBucketIfNotExists(bucketName(e.Algorithm))
			if err != nil {
				return fmt.Errorf("manifest: create bucket %s: %w", e.Algorithm, err)
			}
			data, err := json.Marshal(e)
			if err != nil {
				return err
			}
			if err := bkt.Put([]byte(e.Path), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get returns the entry recorded for path under algorithm.
func (s *Store) Get(ctx context.Context, algorithm, path string) (Entry, error) {
	var entry Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketName(algorithm))
		if bkt == nil {
			return ErrNotFound
		}
		data := bkt.Get([]byte(path))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &entry)
	})
	return entry, err
}

// List returns every entry, grouped by algorithm and sorted by path.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	var out []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, bkt *bolt.Bucket) error {
			return bkt.ForEach(func(k, v []byte) error {
				var e Entry
				if err := json.Unmarshal(v, &e); err != nil {
					return fmt.Errorf("manifest: decode %s: %w", k, err)
				}
				out = append(out, e)
				return nil
			})
		})
	})
	return out, err
}

func bucketName(algorithm string) []byte {
	return append(append([]byte(nil), bucketPrefix...), algorithm...)
}
