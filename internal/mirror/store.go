// Package mirror keeps one JSON snapshot per backend table on the edge node
// so the UI keeps working when the hosted database is unreachable.
package mirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"safemaint-backend/internal/model"
)

// Options tunes how snapshots are written.
type Options struct {
	// TruncateThreshold is the list length kept when a write hits the quota.
	TruncateThreshold int
	// InlineBlobBytes is the largest blob kept inline in a snapshot.
	InlineBlobBytes int
}

// Store reads and writes table snapshots through a Backend. Writes to the
// same store are serialized.
type Store struct {
	backend Backend
	opts    Options
	logger  *zap.Logger
	mu      sync.Mutex
}

// New creates a Store.
func New(backend Backend, opts Options, logger *zap.Logger) *Store {
	if opts.TruncateThreshold <= 0 {
		opts.TruncateThreshold = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{backend: backend, opts: opts, logger: logger.Named("mirror")}
}

// Read returns the last snapshot written for key, or an empty list.
func Read[T any](s *Store, key model.TableKey) []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return read[T](s, key)
}

// Write replaces the snapshot for key. When the backend is out of quota a
// list longer than the truncation threshold is cut to its first entries and
// retried once; otherwise the write is dropped and the previous snapshot is
// left untouched.
func Write[T any](s *Store, key model.TableKey, items []T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return write(s, key, items)
}

// Get returns the record with the given id from the snapshot for key.
func Get[T model.Record](s *Store, key model.TableKey, id string) (T, bool) {
	for _, item := range Read[T](s, key) {
		if item.RecordID() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Upsert replaces the record with the same id, or prepends it when new, so
// lists stay newest-first. It returns the list as written.
func Upsert[T model.Record](s *Store, key model.TableKey, item T) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := read[T](s, key)
	replaced := false
	for i := range items {
		if items[i].RecordID() == item.RecordID() {
			items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		items = append([]T{item}, items...)
	}
	return items, write(s, key, items)
}

// Remove deletes the record with the given id and returns it.
func Remove[T model.Record](s *Store, key model.TableKey, id string) (T, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed T
	items := read[T](s, key)
	kept := items[:0]
	found := false
	for _, item := range items {
		if !found && item.RecordID() == id {
			removed = item
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		return removed, false, nil
	}
	return removed, true, write(s, key, kept)
}

// Update applies fn to the snapshot for key under the store lock and writes
// the result.
func Update[T any](s *Store, key model.TableKey, fn func([]T) []T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return write(s, key, fn(read[T](s, key)))
}

// Optimize returns a copy of items with every oversized blob elided.
func Optimize[T any](items []T, inlineBlobBytes int) []T {
	out := make([]T, len(items))
	copy(out, items)
	for i := range out {
		carrier, ok := any(&out[i]).(model.BlobCarrier)
		if !ok {
			continue
		}
		for _, b := range carrier.Blobs() {
			b.Elide(inlineBlobBytes)
		}
	}
	return out
}

func read[T any](s *Store, key model.TableKey) []T {
	payload, ok, err := s.backend.Get(string(key))
	if err != nil {
		s.logger.Warn("snapshot read failed", zap.String("table", string(key)), zap.Error(err))
		return []T{}
	}
	if !ok || len(payload) == 0 {
		return []T{}
	}

	var items []T
	if err := json.Unmarshal(payload, &items); err != nil {
		s.logger.Warn("snapshot decode failed", zap.String("table", string(key)), zap.Error(err))
		return []T{}
	}
	if items == nil {
		return []T{}
	}
	return items
}

func write[T any](s *Store, key model.TableKey, items []T) error {
	if items == nil {
		items = []T{}
	}
	items = Optimize(items, s.opts.InlineBlobBytes)

	err := s.set(key, items)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		s.logger.Error("snapshot write failed", zap.String("table", string(key)), zap.Error(err))
		return err
	}

	limit := s.opts.TruncateThreshold
	if len(items) <= limit {
		s.logger.Warn("snapshot write dropped: quota exceeded",
			zap.String("table", string(key)), zap.Int("items", len(items)))
		return err
	}

	if err := s.set(key, items[:limit]); err != nil {
		s.logger.Warn("truncated snapshot write dropped",
			zap.String("table", string(key)), zap.Int("items", limit), zap.Error(err))
		return err
	}
	s.logger.Warn("snapshot truncated to fit quota",
		zap.String("table", string(key)), zap.Int("from", len(items)), zap.Int("to", limit))
	return nil
}

func (s *Store) set(key model.TableKey, items any) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %s: %w", key, err)
	}
	return s.backend.Set(string(key), payload)
}
