package migration

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/internal/entities"
)

type fakeLocal struct {
	books   []entities.Book
	cleared bool
}

func (f *fakeLocal) LoadRawCollection() ([]entities.Book, error) { return f.books, nil }
func (f *fakeLocal) ClearCollection() error {
	f.cleared = true
	f.books = nil
	return nil
}

type fakeCloud struct {
	rows     map[string]entities.Book
	failFrom int // fail upserts once this many have succeeded; -1 disables
	upserts  int
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{rows: make(map[string]entities.Book), failFrom: -1}
}

func (f *fakeCloud) CountBooks(ctx context.Context, identity string) (int64, error) {
	return int64(len(f.rows)), nil
}

func (f *fakeCloud) UpsertBook(ctx context.Context, identity string, book entities.Book) error {
	if f.failFrom >= 0 && f.upserts >= f.failFrom {
		return errors.New("cloud write failed")
	}
	f.upserts++
	f.rows[book.ID] = book
	return nil
}

func TestMigrator_TransfersAndClearsLocal(t *testing.T) {
	local := &fakeLocal{books: []entities.Book{
		{ID: "book-1700000000000-abcd1234", Title: "Dune"},
		{ID: "short-id", Title: "Circe"},
		{ID: "", Title: "Rebecca"},
	}}
	cloud := newFakeCloud()

	migrated, err := New(local, cloud).Run(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, migrated, 3)

	// Exactly N cloud rows, local blob cleared.
	assert.Len(t, cloud.rows, 3)
	assert.True(t, local.cleared)

	// Backend-safe ids survive; short ones are replaced.
	assert.Equal(t, "book-1700000000000-abcd1234", migrated[0].ID)
	assert.True(t, strings.HasPrefix(migrated[1].ID, "migrated-"))
	assert.Greater(t, len(migrated[1].ID), 20)
	assert.True(t, strings.HasPrefix(migrated[2].ID, "migrated-"))
}

func TestMigrator_EmptyLocalIsNoOp(t *testing.T) {
	local := &fakeLocal{}
	cloud := newFakeCloud()

	migrated, err := New(local, cloud).Run(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, migrated)
	assert.Empty(t, cloud.rows)
	assert.False(t, local.cleared)
}

// Existing cloud data is never overwritten: the row count stays unchanged
// and the local blob is kept.
func TestMigrator_ExistingCloudDataAborts(t *testing.T) {
	local := &fakeLocal{books: []entities.Book{{ID: "short", Title: "Dune"}}}
	cloud := newFakeCloud()
	cloud.rows["existing"] = entities.Book{ID: "existing", Title: "Already Here"}

	migrated, err := New(local, cloud).Run(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, migrated)
	assert.Len(t, cloud.rows, 1)
	assert.False(t, local.cleared)
}

// A partial failure keeps the local blob so a later sign-in can retry the
// full transfer; already-migrated books stay in the cloud.
func TestMigrator_PartialFailureKeepsLocal(t *testing.T) {
	local := &fakeLocal{books: []entities.Book{
		{ID: "book-1700000000000-abcd1234", Title: "One"},
		{ID: "book-1700000000001-abcd1234", Title: "Two"},
		{ID: "book-1700000000002-abcd1234", Title: "Three"},
	}}
	cloud := newFakeCloud()
	cloud.failFrom = 2

	migrated, err := New(local, cloud).Run(context.Background(), "user-1")
	require.Error(t, err)
	assert.Len(t, migrated, 2)
	assert.Len(t, cloud.rows, 2)
	assert.False(t, local.cleared)
	require.NotEmpty(t, local.books)
}
