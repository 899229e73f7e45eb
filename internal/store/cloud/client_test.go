package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/internal/entities"
)

// fakeBackend is a minimal in-memory PostgREST double for the books and
// user_prefs tables.
type fakeBackend struct {
	t     *testing.T
	books map[string]bookRow // keyed by id
	order []string           // insertion order of ids
	prefs map[string]prefsRow
}

func newFakeBackend(t *testing.T) *fakeBackend {
	return &fakeBackend{
		t:     t,
		books: make(map[string]bookRow),
		prefs: make(map[string]prefsRow),
	}
}

func eqParam(query, field string) string {
	for _, part := range strings.Split(query, "&") {
		if strings.HasPrefix(part, field+"=eq.") {
			return strings.TrimPrefix(part, field+"=eq.")
		}
	}
	return ""
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	assert.NotEmpty(f.t, r.Header.Get("apikey"))
	assert.True(f.t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer "))

	query := r.URL.RawQuery
	switch {
	case r.URL.Path == "/rest/v1/books" && r.Method == http.MethodGet:
		user := eqParam(query, "user_id")
		var rows []bookRow
		// Newest first, per order=created_at.desc.
		for i := len(f.order) - 1; i >= 0; i-- {
			if row, ok := f.books[f.order[i]]; ok && row.UserID == user {
				rows = append(rows, row)
			}
		}
		if strings.Contains(r.Header.Get("Prefer"), "count=exact") {
			w.Header().Set("Content-Range", fmt.Sprintf("*/%d", len(rows)))
		}
		if rows == nil {
			rows = []bookRow{}
		}
		_ = json.NewEncoder(w).Encode(rows)

	case r.URL.Path == "/rest/v1/books" && r.Method == http.MethodPost:
		assert.Contains(f.t, query, "on_conflict=id")
		assert.Contains(f.t, r.Header.Get("Prefer"), "resolution=merge-duplicates")
		var rows []bookRow
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&rows))
		for _, row := range rows {
			if _, exists := f.books[row.ID]; !exists {
				f.order = append(f.order, row.ID)
				now := time.Now().UTC()
				row.CreatedAt = &now
			} else {
				row.CreatedAt = f.books[row.ID].CreatedAt
			}
			f.books[row.ID] = row
		}
		w.WriteHeader(http.StatusCreated)

	case r.URL.Path == "/rest/v1/books" && r.Method == http.MethodDelete:
		id := eqParam(query, "id")
		user := eqParam(query, "user_id")
		if row, ok := f.books[id]; ok && row.UserID == user {
			delete(f.books, id)
		}
		w.WriteHeader(http.StatusNoContent)

	case r.URL.Path == "/rest/v1/user_prefs" && r.Method == http.MethodGet:
		user := eqParam(query, "user_id")
		rows := []prefsRow{}
		if row, ok := f.prefs[user]; ok {
			rows = append(rows, row)
		}
		_ = json.NewEncoder(w).Encode(rows)

	case r.URL.Path == "/rest/v1/user_prefs" && r.Method == http.MethodPost:
		assert.Contains(f.t, query, "on_conflict=user_id")
		var rows []prefsRow
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&rows))
		for _, row := range rows {
			f.prefs[row.UserID] = row
		}
		w.WriteHeader(http.StatusCreated)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func setupClient(t *testing.T) (*Client, *fakeBackend) {
	t.Helper()
	fake := newFakeBackend(t)
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	return New(server.URL, "anon-key").WithToken("access-token"), fake
}

func year(n int) *int { return &n }

func TestClient_UpsertAndLoad(t *testing.T) {
	client, _ := setupClient(t)
	ctx := context.Background()

	book := entities.Book{
		ID:         "book-1700000000000-abcd1234",
		Title:      "Dune",
		Author:     "Frank Herbert",
		Year:       year(1965),
		CoverURL:   "https://covers.openlibrary.org/b/isbn/9780441013593-L.jpg",
		Status:     entities.StatusReading,
		Rating:     4,
		Notes:      "sandworms",
		ShelfYear:  2024,
		CatalogKey: "local-9780441013593-0",
	}
	require.NoError(t, client.UpsertBook(ctx, "user-1", book))

	books, err := client.LoadCollection(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, books, 1)

	got := books[0]
	assert.Equal(t, book.ID, got.ID)
	assert.Equal(t, "Dune", got.Title)
	assert.Equal(t, entities.StatusReading, got.Status)
	assert.Equal(t, 4, got.Rating)
	assert.Equal(t, "sandworms", got.Notes)
	assert.Equal(t, "local-9780441013593-0", got.CatalogKey)
	assert.Equal(t, book.CoverURL, got.CoverURL)
	// Cloud rows never re-trigger cover lookups.
	assert.True(t, got.CoverResolved)
	assert.False(t, got.AddedAt.IsZero())
}

func TestClient_LoadCollectionNewestFirst(t *testing.T) {
	client, _ := setupClient(t)
	ctx := context.Background()

	require.NoError(t, client.UpsertBook(ctx, "user-1", entities.Book{ID: "a", Title: "First", ShelfYear: 2024}))
	require.NoError(t, client.UpsertBook(ctx, "user-1", entities.Book{ID: "b", Title: "Second", ShelfYear: 2024}))

	books, err := client.LoadCollection(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "b", books[0].ID)
	assert.Equal(t, "a", books[1].ID)
}

// Upserting the same id with the same values twice leaves the store in the
// state a single call produces.
func TestClient_UpsertIdempotent(t *testing.T) {
	client, fake := setupClient(t)
	ctx := context.Background()

	book := entities.Book{ID: "book-1", Title: "Dune", Status: entities.StatusWant, ShelfYear: 2024}
	require.NoError(t, client.UpsertBook(ctx, "user-1", book))
	after := fake.books["book-1"]

	require.NoError(t, client.UpsertBook(ctx, "user-1", book))
	assert.Len(t, fake.books, 1)
	assert.Equal(t, after, fake.books["book-1"])

	count, err := client.CountBooks(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestClient_UpsertDefaultsStatusAndShelfYear(t *testing.T) {
	client, fake := setupClient(t)
	ctx := context.Background()

	require.NoError(t, client.UpsertBook(ctx, "user-1", entities.Book{ID: "book-1", Title: "Dune"}))

	row := fake.books["book-1"]
	assert.Equal(t, "want", row.Status)
	assert.Equal(t, time.Now().Year(), row.ShelfYear)
	assert.Equal(t, entities.SchemaVersion, row.SchemaVersion)
	assert.Nil(t, row.Cover)
	assert.Nil(t, row.CatalogKey)
}

func TestClient_DeleteScopedToIdentity(t *testing.T) {
	client, fake := setupClient(t)
	ctx := context.Background()

	require.NoError(t, client.UpsertBook(ctx, "user-1", entities.Book{ID: "book-1", Title: "Dune", ShelfYear: 2024}))

	// A delete against the wrong identity must not remove the row.
	require.NoError(t, client.DeleteBook(ctx, "user-2", "book-1"))
	assert.Len(t, fake.books, 1)

	require.NoError(t, client.DeleteBook(ctx, "user-1", "book-1"))
	assert.Empty(t, fake.books)
}

func TestClient_CountBooks(t *testing.T) {
	client, _ := setupClient(t)
	ctx := context.Background()

	count, err := client.CountBooks(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, client.UpsertBook(ctx, "user-1", entities.Book{ID: "a", Title: "One", ShelfYear: 2024}))
	require.NoError(t, client.UpsertBook(ctx, "user-2", entities.Book{ID: "b", Title: "Other", ShelfYear: 2024}))

	count, err = client.CountBooks(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestClient_Preferences(t *testing.T) {
	client, _ := setupClient(t)
	ctx := context.Background()

	prefs, err := client.LoadPreferences(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, prefs)

	require.NoError(t, client.SavePreferences(ctx, "user-1",
		entities.Preferences{ThemeID: "vapor", ShelfName: "Beach Reads"}))

	prefs, err = client.LoadPreferences(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, prefs)
	assert.Equal(t, "vapor", prefs.ThemeID)
	assert.Equal(t, "Beach Reads", prefs.ShelfName)
}

func TestClient_ServerErrorSurfacesToCaller(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "anon-key")
	_, err := client.LoadCollection(context.Background(), "user-1")
	assert.Error(t, err)

	err = client.UpsertBook(context.Background(), "user-1", entities.Book{ID: "x", ShelfYear: 2024})
	assert.Error(t, err)
}
