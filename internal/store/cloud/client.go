// Package cloud implements the signed-in persistence backend against a
// PostgREST-compatible table store (a Supabase project in production).
//
// Books live in a "books" table and preferences in "user_prefs", both scoped
// by the owning identity. Every write carries a schema_version tag for
// forward-compatible migration of the remote schema.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bookshelf/internal/entities"
	"bookshelf/internal/store"
)

// Client talks to the remote table store over HTTPS.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	token      string
}

var _ store.Backend = (*Client)(nil)

// New creates a cloud store client. apiKey authenticates the project; the
// per-session bearer token is attached with WithToken after sign-in.
func New(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// WithToken returns a copy of the client bound to the signed-in session's
// bearer token.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

// Policy reports that cloud writes are debounced by the caller.
func (c *Client) Policy() store.WritePolicy {
	return store.WriteDebounced
}

// bookRow is the wire shape of a books table row.
type bookRow struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Year          *int      `json:"year"`
	Pages         *int      `json:"pages"`
	Cover         *string   `json:"cover"`
	Status        string    `json:"status"`
	Rating        int       `json:"rating"`
	Notes         string    `json:"notes"`
	ShelfYear     int       `json:"shelf_year"`
	CatalogKey    *string   `json:"catalog_key"`
	// Assigned by the backend on insert; never sent on writes.
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	SchemaVersion int        `json:"schema_version"`
}

type prefsRow struct {
	UserID        string `json:"user_id"`
	Theme         string `json:"theme"`
	ShelfName     string `json:"shelf_name"`
	SchemaVersion int    `json:"schema_version"`
}

// LoadCollection reads all books owned by identity, newest first.
func (c *Client) LoadCollection(ctx context.Context, identity string) ([]entities.Book, error) {
	query := fmt.Sprintf("select=*&user_id=eq.%s&order=created_at.desc", identity)
	resp, err := c.do(ctx, http.MethodGet, "books", query, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rows []bookRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode books: %w", err)
	}

	books := make([]entities.Book, 0, len(rows))
	for _, row := range rows {
		book := entities.Book{
			ID:        row.ID,
			Title:     row.Title,
			Author:    row.Author,
			Year:      row.Year,
			Pages:     row.Pages,
			Status:    entities.Status(row.Status),
			Rating:    row.Rating,
			Notes:     row.Notes,
			ShelfYear: row.ShelfYear,
			// Cloud rows never re-trigger cover lookups.
			CoverResolved: true,
		}
		if row.CreatedAt != nil {
			book.AddedAt = *row.CreatedAt
		}
		if row.Cover != nil {
			book.CoverURL = *row.Cover
		}
		if row.CatalogKey != nil {
			book.CatalogKey = *row.CatalogKey
		}
		if !book.Status.Valid() {
			book.Status = entities.StatusWant
		}
		books = append(books, book)
	}
	return books, nil
}

// UpsertBook writes a single row keyed by the book id. Calling it again with
// the same id and values converges to the same row.
func (c *Client) UpsertBook(ctx context.Context, identity string, book entities.Book) error {
	row := bookRow{
		ID:            book.ID,
		UserID:        identity,
		Title:         book.Title,
		Author:        book.Author,
		Year:          book.Year,
		Pages:         book.Pages,
		Status:        string(book.Status),
		Rating:        book.Rating,
		Notes:         book.Notes,
		ShelfYear:     book.ShelfYear,
		SchemaVersion: entities.SchemaVersion,
	}
	if row.Status == "" {
		row.Status = string(entities.StatusWant)
	}
	if row.ShelfYear == 0 {
		row.ShelfYear = time.Now().Year()
	}
	if book.CoverURL != "" {
		row.Cover = &book.CoverURL
	}
	if book.CatalogKey != "" {
		row.CatalogKey = &book.CatalogKey
	}

	body, err := json.Marshal([]bookRow{row})
	if err != nil {
		return fmt.Errorf("encode book row: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "books", "on_conflict=id",
		"resolution=merge-duplicates,return=minimal", body)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// DeleteBook removes a row filtered by both id and owning identity, so a
// stale or malicious id can never delete another user's row.
func (c *Client) DeleteBook(ctx context.Context, identity, bookID string) error {
	query := fmt.Sprintf("id=eq.%s&user_id=eq.%s", bookID, identity)
	resp, err := c.do(ctx, http.MethodDelete, "books", query, "", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// CountBooks returns the exact number of rows owned by identity. The
// migration routine uses it as its conflict check.
func (c *Client) CountBooks(ctx context.Context, identity string) (int64, error) {
	query := fmt.Sprintf("select=id&user_id=eq.%s&limit=1", identity)
	resp, err := c.do(ctx, http.MethodGet, "books", query, "count=exact", nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	// PostgREST reports the exact count in Content-Range: "0-0/42".
	contentRange := resp.Header.Get("Content-Range")
	idx := strings.LastIndex(contentRange, "/")
	if idx < 0 {
		return 0, fmt.Errorf("missing count in Content-Range %q", contentRange)
	}
	count, err := strconv.ParseInt(contentRange[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse count from Content-Range %q: %w", contentRange, err)
	}
	return count, nil
}

// LoadPreferences reads the identity's preferences row, or nil when none
// exists yet.
func (c *Client) LoadPreferences(ctx context.Context, identity string) (*entities.Preferences, error) {
	query := fmt.Sprintf("select=*&user_id=eq.%s&limit=1", identity)
	resp, err := c.do(ctx, http.MethodGet, "user_prefs", query, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rows []prefsRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	prefs := entities.DefaultPreferences()
	if rows[0].Theme != "" {
		prefs.ThemeID = rows[0].Theme
	}
	if rows[0].ShelfName != "" {
		prefs.ShelfName = rows[0].ShelfName
	}
	return &prefs, nil
}

// SavePreferences upserts the identity's single preferences row.
func (c *Client) SavePreferences(ctx context.Context, identity string, prefs entities.Preferences) error {
	row := prefsRow{
		UserID:        identity,
		Theme:         prefs.ThemeID,
		ShelfName:     prefs.ShelfName,
		SchemaVersion: entities.SchemaVersion,
	}
	body, err := json.Marshal([]prefsRow{row})
	if err != nil {
		return fmt.Errorf("encode preferences row: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "user_prefs", "on_conflict=user_id",
		"resolution=merge-duplicates,return=minimal", body)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) do(ctx context.Context, method, table, query, prefer string, body []byte) (*http.Response, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, table)
	if query != "" {
		url += "?" + query
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("apikey", c.apiKey)
	token := c.token
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, table, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s: unexpected status %d", method, table, resp.StatusCode)
	}
	return resp, nil
}
