// Package local implements the guest-mode persistence backend on top of a
// SQLite-backed key-value table.
//
// The collection is written as a single JSON-encoded blob under a versioned
// key; preferences are two independent scalar keys. All writes are
// synchronous and immediate.
//
// # Usage
//
//	store, err := local.New(db)
//	books, err := store.LoadCollection(ctx, "")
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"bookshelf/internal/entities"
	"bookshelf/internal/store"
)

// Storage keys. CollectionKey carries the current schema version;
// LegacyCollectionKey is read once as a fallback when the current key is
// absent.
const (
	CollectionKey       = "shelf-v5"
	LegacyCollectionKey = "shelf-v4"
	ThemeKey            = "shelf-theme"
	ShelfNameKey        = "shelf-name"
)

type record struct {
	Key       string `gorm:"primaryKey;size:100"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (record) TableName() string {
	return "shelf_store"
}

// Store is the local persistence backend.
type Store struct {
	db *gorm.DB
}

var _ store.Backend = (*Store)(nil)

// New creates the local store and its backing table.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("migrate shelf store: %w", err)
	}
	return &Store{db: db}, nil
}

// Policy reports that local writes happen synchronously on every change.
func (s *Store) Policy() store.WritePolicy {
	return store.WriteImmediate
}

// LoadCollection reads the collection blob. When the current key is absent
// the legacy key is read instead, with the shelf year backfilled to the
// current year for any book lacking one. Malformed data is treated as no
// data.
func (s *Store) LoadCollection(ctx context.Context, identity string) ([]entities.Book, error) {
	raw, ok, err := s.get(CollectionKey)
	if err != nil {
		return nil, err
	}
	if ok {
		return decodeCollection(raw, CollectionKey), nil
	}

	raw, ok, err = s.get(LegacyCollectionKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	books := decodeCollection(raw, LegacyCollectionKey)
	curYear := time.Now().Year()
	for i := range books {
		if books[i].ShelfYear == 0 {
			books[i].ShelfYear = curYear
		}
	}
	return books, nil
}

// LoadRawCollection reads the current collection blob only, with no legacy
// fallback. The migration routine uses it to decide what to transfer.
func (s *Store) LoadRawCollection() ([]entities.Book, error) {
	raw, ok, err := s.get(CollectionKey)
	if err != nil || !ok {
		return nil, err
	}
	return decodeCollection(raw, CollectionKey), nil
}

// ClearCollection removes the collection blob after a successful migration so
// it is neither re-migrated nor shown in a stale guest view.
func (s *Store) ClearCollection() error {
	return s.db.Where("key = ?", CollectionKey).Delete(&record{}).Error
}

// LoadPreferences reads the two scalar preference keys, or nil when neither
// has been saved.
func (s *Store) LoadPreferences(ctx context.Context, identity string) (*entities.Preferences, error) {
	theme, themeOK, err := s.get(ThemeKey)
	if err != nil {
		return nil, err
	}
	name, nameOK, err := s.get(ShelfNameKey)
	if err != nil {
		return nil, err
	}
	if !themeOK && !nameOK {
		return nil, nil
	}

	prefs := entities.DefaultPreferences()
	if themeOK && theme != "" {
		prefs.ThemeID = theme
	}
	if nameOK && name != "" {
		prefs.ShelfName = name
	}
	return &prefs, nil
}

// UpsertBook replaces the book's entry in the blob, or prepends it when new,
// and rewrites the whole blob synchronously.
func (s *Store) UpsertBook(ctx context.Context, identity string, book entities.Book) error {
	books, err := s.LoadCollection(ctx, identity)
	if err != nil {
		return err
	}

	replaced := false
	for i := range books {
		if books[i].ID == book.ID {
			books[i] = book
			replaced = true
			break
		}
	}
	if !replaced {
		books = append([]entities.Book{book}, books...)
	}
	return s.saveCollection(books)
}

// DeleteBook removes the book from the blob and rewrites it.
func (s *Store) DeleteBook(ctx context.Context, identity, bookID string) error {
	books, err := s.LoadCollection(ctx, identity)
	if err != nil {
		return err
	}

	kept := books[:0]
	for _, b := range books {
		if b.ID != bookID {
			kept = append(kept, b)
		}
	}
	return s.saveCollection(kept)
}

// SavePreferences writes both scalar preference keys.
func (s *Store) SavePreferences(ctx context.Context, identity string, prefs entities.Preferences) error {
	if err := s.set(ThemeKey, prefs.ThemeID); err != nil {
		return err
	}
	return s.set(ShelfNameKey, prefs.ShelfName)
}

func (s *Store) saveCollection(books []entities.Book) error {
	if books == nil {
		books = []entities.Book{}
	}
	data, err := json.Marshal(books)
	if err != nil {
		return fmt.Errorf("encode collection: %w", err)
	}
	return s.set(CollectionKey, string(data))
}

func (s *Store) get(key string) (string, bool, error) {
	var rec record
	err := s.db.Where("key = ?", key).First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.Value, true, nil
}

func (s *Store) set(key, value string) error {
	var rec record
	result := s.db.Where("key = ?", key).First(&rec)

	if result.Error == gorm.ErrRecordNotFound {
		rec = record{Key: key, Value: value}
		return s.db.Create(&rec).Error
	} else if result.Error != nil {
		return result.Error
	}

	rec.Value = value
	return s.db.Save(&rec).Error
}

func decodeCollection(raw, key string) []entities.Book {
	var books []entities.Book
	if err := json.Unmarshal([]byte(raw), &books); err != nil {
		log.Printf("Corrupt collection blob under %s, treating as empty: %v", key, err)
		return nil
	}
	return books
}
