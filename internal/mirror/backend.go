package mirror

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

// ErrQuotaExceeded is returned by a backend when a write would push the
// stored payloads past its byte quota.
var ErrQuotaExceeded = errors.New("mirror: storage quota exceeded")

// Backend persists one opaque payload per table key.
type Backend interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, payload []byte) error
	Delete(key string) error
}

// snapshot is one table's serialized list in the SQLite mirror file.
type snapshot struct {
	TableKey  string `gorm:"primaryKey;column:table_key;size:64"`
	Payload   []byte `gorm:"not null"`
	UpdatedAt time.Time
}

func (snapshot) TableName() string { return "mirror_snapshots" }

// SQLiteBackend stores snapshots in a local SQLite file.
type SQLiteBackend struct {
	db    *gorm.DB
	quota int
	mu    sync.Mutex
}

// NewSQLiteBackend creates the snapshot table if needed. A quota of zero
// disables the quota check.
func NewSQLiteBackend(db *gorm.DB, quotaBytes int) (*SQLiteBackend, error) {
	if err := db.AutoMigrate(&snapshot{}); err != nil {
		return nil, fmt.Errorf("failed to migrate mirror snapshots: %w", err)
	}
	return &SQLiteBackend{db: db, quota: quotaBytes}, nil
}

// Get returns the stored payload for key.
func (b *SQLiteBackend) Get(key string) ([]byte, bool, error) {
	var s snapshot
	err := b.db.Where("table_key = ?", key).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return s.Payload, true, nil
}

// Set replaces the payload for key, refusing writes beyond the quota.
func (b *SQLiteBackend) Set(key string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.quota > 0 {
		var used int64
		if err := b.db.Model(&snapshot{}).
			Where("table_key <> ?", key).
			Select("COALESCE(SUM(LENGTH(payload)), 0)").
			Scan(&used).Error; err != nil {
			return fmt.Errorf("failed to measure mirror usage: %w", err)
		}
		if used+int64(len(payload)) > int64(b.quota) {
			return ErrQuotaExceeded
		}
	}

	return b.db.Save(&snapshot{TableKey: key, Payload: payload, UpdatedAt: time.Now().UTC()}).Error
}

// Delete removes the payload for key.
func (b *SQLiteBackend) Delete(key string) error {
	return b.db.Where("table_key = ?", key).Delete(&snapshot{}).Error
}

// MemoryBackend keeps snapshots in process memory. Used when the edge node
// runs without a writable disk, and in tests.
type MemoryBackend struct {
	c     *cache.Cache
	quota int
	mu    sync.Mutex
}

// NewMemoryBackend creates an in-memory backend. A quota of zero disables
// the quota check.
func NewMemoryBackend(quotaBytes int) *MemoryBackend {
	return &MemoryBackend{
		c:     cache.New(cache.NoExpiration, 0),
		quota: quotaBytes,
	}
}

// Get returns the stored payload for key.
func (b *MemoryBackend) Get(key string) ([]byte, bool, error) {
	v, ok := b.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	return v.([]byte), true, nil
}

// Set replaces the payload for key, refusing writes beyond the quota.
func (b *MemoryBackend) Set(key string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.quota > 0 {
		used := 0
		for k, item := range b.c.Items() {
			if k == key {
				continue
			}
			used += len(item.Object.([]byte))
		}
		if used+len(payload) > b.quota {
			return ErrQuotaExceeded
		}
	}

	stored := make([]byte, len(payload))
	copy(stored, payload)
	b.c.Set(key, stored, cache.NoExpiration)
	return nil
}

// Delete removes the payload for key.
func (b *MemoryBackend) Delete(key string) error {
	b.c.Delete(key)
	return nil
}
