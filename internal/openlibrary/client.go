// Package openlibrary queries the OpenLibrary search API for books that are
// not in the local catalog, and resolves cover images for books added
// without one.
package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"bookshelf/internal/search"
)

const searchFields = "key,title,author_name,first_publish_year,number_of_pages_median,isbn,cover_i"

// Client fetches bibliographic data from the OpenLibrary API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *rateLimiter
}

type rateLimiter struct {
	mu       sync.Mutex
	lastCall time.Time
	interval time.Duration
}

func newRateLimiter(interval time.Duration) *rateLimiter {
	return &rateLimiter{interval: interval}
}

func (r *rateLimiter) wait() {
	r.mu.Lock()
	defer r.mu.Unlock()

	since := time.Since(r.lastCall)
	if since < r.interval {
		time.Sleep(r.interval - since)
	}
	r.lastCall = time.Now()
}

// NewClient creates a rate-limited OpenLibrary client. An empty baseURL uses
// the public API.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://openlibrary.org"
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:     baseURL,
		rateLimiter: newRateLimiter(time.Second), // 1 request per second
	}
}

// Search runs a free-text query and maps the response documents to search
// results. Remote results carry no score; the caller appends them after the
// ranked local results.
func (c *Client) Search(ctx context.Context, query string) ([]search.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required")
	}

	out, err := c.searchJSON(ctx, query, search.MaxResults, searchFields)
	if err != nil {
		return nil, err
	}

	results := make([]search.Result, 0, len(out.Docs))
	for i, doc := range out.Docs {
		key := doc.Key
		if key == "" {
			key = fmt.Sprintf("ol-%s-%d", query, i)
		}
		r := search.Result{
			Key:   key,
			Title: doc.Title,
			ISBN:  pickISBN(doc.ISBN),
		}
		if len(doc.AuthorName) > 0 {
			r.Author = doc.AuthorName[0]
		}
		if doc.FirstPublishYear != 0 {
			year := doc.FirstPublishYear
			r.Year = &year
		}
		if doc.PagesMedian != 0 {
			pages := doc.PagesMedian
			r.Pages = &pages
		}
		if doc.CoverI != 0 {
			r.CoverURL = fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-L.jpg", doc.CoverI)
		} else if r.ISBN != "" {
			r.CoverURL = search.CoverURLForISBN(r.ISBN)
		}
		results = append(results, r)
	}
	return results, nil
}

// ResolveCover searches for a cover image by title and author. It prefers a
// cover identifier, falls back to an ISBN-13 template, and returns empty
// with no error when neither resolves — "no cover" is an ordinary outcome,
// recorded by the caller so the book is never retried automatically.
func (c *Client) ResolveCover(ctx context.Context, title, author string) (string, error) {
	q := strings.TrimSpace(title + " " + author)
	if q == "" {
		return "", fmt.Errorf("title is required")
	}

	out, err := c.searchJSON(ctx, q, 3, "isbn,cover_i")
	if err != nil {
		return "", err
	}

	for _, doc := range out.Docs {
		if doc.CoverI != 0 {
			return fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-L.jpg", doc.CoverI), nil
		}
	}
	for _, doc := range out.Docs {
		for _, isbn := range doc.ISBN {
			if len(isbn) == 13 {
				return search.CoverURLForISBN(isbn), nil
			}
		}
	}
	return "", nil
}

func (c *Client) searchJSON(ctx context.Context, query string, limit int, fields string) (*searchResponse, error) {
	c.rateLimiter.wait()

	searchURL := fmt.Sprintf("%s/search.json?q=%s&limit=%d&fields=%s",
		c.baseURL, url.QueryEscape(query), limit, fields)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Bookshelf/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &out, nil
}

// pickISBN prefers an ISBN-13 and otherwise takes the first listed.
func pickISBN(isbns []string) string {
	for _, isbn := range isbns {
		if len(isbn) == 13 {
			return isbn
		}
	}
	if len(isbns) > 0 {
		return isbns[0]
	}
	return ""
}

// OpenLibrary API response types (internal)

type searchResponse struct {
	NumFound int         `json:"numFound"`
	Docs     []searchDoc `json:"docs"`
}

type searchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
	PagesMedian      int      `json:"number_of_pages_median"`
	ISBN             []string `json:"isbn"`
	CoverI           int      `json:"cover_i"`
}
