package kv

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EntryModel is the GORM model for the kv_entries table.
type EntryModel struct {
	Slot      string     `gorm:"column:slot;primaryKey;size:191"`
	Value     []byte     `gorm:"column:value;not null"`
	ExpiresAt *time.Time `gorm:"column:expires_at;index"`
	UpdatedAt time.Time
}

// TableName returns the table name for GORM.
func (EntryModel) TableName() string {
	return "kv_entries"
}

// expired reports whether the entry has passed its expiration time at now.
func (m EntryModel) expired(now time.Time) bool {
	return m.ExpiresAt != nil && !now.Before(*m.ExpiresAt)
}

// Migrate creates or updates the kv_entries table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&EntryModel{})
}

// PurgeExpired deletes every entry whose expiration time is before now and returns how many were removed.
func PurgeExpired(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at IS NOT NULL AND expires_at <= ?", now).Delete(&EntryModel{})
	return res.RowsAffected, res.Error
}

// lockStripes is the number of mutexes shared by all keys of a gormStore.
const lockStripes = 64

// gormStore is a Store backed by a SQL table through GORM.
// Writes to one key are serialized in-process and, on postgres, with a row lock.
type gormStore struct {
	db    *gorm.DB
	locks [lockStripes]sync.Mutex
	now   func() time.Time
}

// Compile-time check to ensure gormStore implements Store.
var _ Store = (*gormStore)(nil)

// NewGormStore creates a Store on top of db. The kv_entries table must exist (see Migrate).
func NewGormStore(db *gorm.DB) *gormStore {
	return &gormStore{db: db, now: time.Now}
}

// keyLock returns the stripe mutex guarding key. Distinct keys may share a stripe.
func (s *gormStore) keyLock(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.locks[h.Sum32()%lockStripes]
}

// Get returns the stored value or (nil, nil) when the key is absent or expired.
func (s *gormStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.get(s.db.WithContext(ctx), key)
}

// get は Limit(1).Find を使います。First と違い、無いキーを gorm がエラーとしてログに出しません。
func (s *gormStore) get(tx *gorm.DB, key string) ([]byte, error) {
	var rows []EntryModel
	if err := tx.Where("slot = ?", key).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 || rows[0].expired(s.now()) {
		return nil, nil
	}
	return rows[0].Value, nil
}

// Set upserts the value for key without expiration.
func (s *gormStore) Set(ctx context.Context, key string, value []byte) error {
	return s.SetTTL(ctx, key, value, 0)
}

// SetTTL upserts the value for key. Expired rows read as absent until PurgeExpired removes them.
func (s *gormStore) SetTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()

	var expiresAt *time.Time
	if ttl > 0 {
		t := s.now().Add(ttl)
		expiresAt = &t
	}
	return s.put(s.db.WithContext(ctx), key, value, expiresAt)
}

func (s *gormStore) put(tx *gorm.DB, key string, value []byte, expiresAt *time.Time) error {
	m := EntryModel{Slot: key, Value: value, ExpiresAt: expiresAt, UpdatedAt: s.now()}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&m).Error
}

// Delete removes key.
func (s *gormStore) Delete(ctx context.Context, key string) error {
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()
	return s.db.WithContext(ctx).Where("slot = ?", key).Delete(&EntryModel{}).Error
}

// Update performs a serialized read-modify-write of key inside a transaction.
// The written value never expires.
func (s *gormStore) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		// SQLite has no row locks; the whole database is locked for the write instead.
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		current, err := s.get(q, key)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			return tx.Where("slot = ?", key).Delete(&EntryModel{}).Error
		}
		return s.put(tx, key, next, nil)
	})
}
