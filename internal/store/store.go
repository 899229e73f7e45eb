// Package store defines the persistence contract shared by the local
// (guest-mode) and cloud (signed-in) backends.
//
// Exactly one backend is active per session, selected by authentication
// state: an authenticated identity selects the cloud store, otherwise the
// local store. The selection is re-evaluated on every auth transition.
package store

import (
	"context"

	"bookshelf/internal/entities"
)

// WritePolicy tells the shelf controller how to time durable writes against
// a backend.
type WritePolicy int

const (
	// WriteImmediate persists synchronously on every state change.
	WriteImmediate WritePolicy = iota
	// WriteDebounced coalesces rapid successive edits before persisting.
	WriteDebounced
)

// Backend owns durable storage of a user's collection and preferences.
//
// identity is the opaque authenticated user id; the local backend ignores
// it. Write failures are best-effort-eventual: callers log them and keep the
// in-memory state as the session's source of truth. UpsertBook must be safe
// to call repeatedly with the same id and converging field values.
type Backend interface {
	LoadCollection(ctx context.Context, identity string) ([]entities.Book, error)
	LoadPreferences(ctx context.Context, identity string) (*entities.Preferences, error)
	UpsertBook(ctx context.Context, identity string, book entities.Book) error
	DeleteBook(ctx context.Context, identity, bookID string) error
	SavePreferences(ctx context.Context, identity string, prefs entities.Preferences) error
	Policy() WritePolicy
}
