// Package migration moves a guest collection from the local store into the
// cloud store the first time a session resolves to an authenticated
// identity.
package migration

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"bookshelf/internal/entities"
)

// An id longer than this is assumed to be backend-assigned already and is
// kept as-is during migration.
const backendSafeIDLength = 20

// LocalSource is the guest-mode store being migrated away from.
type LocalSource interface {
	LoadRawCollection() ([]entities.Book, error)
	ClearCollection() error
}

// CloudTarget is the authenticated store being migrated into.
type CloudTarget interface {
	CountBooks(ctx context.Context, identity string) (int64, error)
	UpsertBook(ctx context.Context, identity string, book entities.Book) error
}

// Migrator transfers local books into the cloud exactly once per
// authenticated session; the caller guards re-entry.
type Migrator struct {
	local LocalSource
	cloud CloudTarget
}

// New creates a migrator over the two stores.
func New(local LocalSource, cloud CloudTarget) *Migrator {
	return &Migrator{local: local, cloud: cloud}
}

// Run performs the one-shot transfer and returns the migrated books.
//
// It no-ops when the local store is empty and aborts without transferring
// anything when the identity already owns cloud rows — migration only
// bootstraps an empty cloud collection, never overwrites one. On full
// success the local blob is cleared. On partial failure nothing is rolled
// back and the blob is kept, so the next sign-in retries the whole transfer;
// that is safe because upserts are idempotent by id.
func (m *Migrator) Run(ctx context.Context, identity string) ([]entities.Book, error) {
	books, err := m.local.LoadRawCollection()
	if err != nil {
		return nil, fmt.Errorf("read local collection: %w", err)
	}
	if len(books) == 0 {
		return nil, nil
	}

	count, err := m.cloud.CountBooks(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("cloud conflict check: %w", err)
	}
	if count > 0 {
		log.Printf("Migration skipped: identity already has %d cloud books", count)
		return nil, nil
	}

	migrated := make([]entities.Book, len(books))
	for i, book := range books {
		if len(book.ID) <= backendSafeIDLength {
			book.ID = newMigratedID()
		}
		migrated[i] = book
	}

	for i, book := range migrated {
		if err := m.cloud.UpsertBook(ctx, identity, book); err != nil {
			// Keep the local blob so nothing is silently lost; the
			// books already transferred stay in the cloud.
			log.Printf("Migration failed after %d/%d books: %v", i, len(migrated), err)
			return migrated[:i], fmt.Errorf("migrate book %s: %w", book.ID, err)
		}
	}

	if err := m.local.ClearCollection(); err != nil {
		log.Printf("Migration complete but local clear failed: %v", err)
	} else {
		log.Printf("Migrated %d books to cloud", len(migrated))
	}
	return migrated, nil
}

func newMigratedID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("migrated-%d", time.Now().UnixMilli())
	}
	return fmt.Sprintf("migrated-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}
