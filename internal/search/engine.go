// Package search ranks catalog entries against free-text queries and merges
// the ranked local results with remote lookups.
package search

import (
	"fmt"
	"sort"
	"strings"

	"bookshelf/internal/catalog"
)

// MaxResults caps every query's output.
const MaxResults = 8

// noiseFloor discards entries whose best score is indistinguishable from an
// accidental word-prefix hit.
const noiseFloor = 15

// authorWeight discounts author matches relative to title matches.
const authorWeight = 0.8

// Result is one ranked suggestion. Key is stable per query: synthesized for
// catalog entries, provider-supplied for remote ones. Score is zero for
// remote results, which are never ranked against local ones.
type Result struct {
	Key      string  `json:"key"`
	Title    string  `json:"title"`
	Author   string  `json:"author"`
	Year     *int    `json:"year"`
	Pages    *int    `json:"pages"`
	ISBN     string  `json:"isbn,omitempty"`
	CoverURL string  `json:"coverUrl,omitempty"`
	Score    float64 `json:"score,omitempty"`
}

// Engine performs pure, deterministic fuzzy search over a fixed catalog.
type Engine struct {
	entries []catalog.Entry
}

// NewEngine builds an engine over the given entries. The slice is not copied
// and must stay immutable.
func NewEngine(entries []catalog.Entry) *Engine {
	return &Engine{entries: entries}
}

// Search returns up to MaxResults ranked suggestions for query. Queries
// shorter than two characters yield nothing. Identical queries always yield
// identical output; the engine performs no I/O.
func (e *Engine) Search(query string) []Result {
	if len(query) < 2 {
		return nil
	}

	type scored struct {
		entry catalog.Entry
		score float64
	}

	var matches []scored
	seen := make(map[string]struct{})
	for _, entry := range e.entries {
		score := MatchScore(query, entry.Title)
		if a := MatchScore(query, entry.Author) * authorWeight; a > score {
			score = a
		}
		if score <= noiseFloor {
			continue
		}
		// Duplicate (title, author) pairs exist in the source list;
		// the first occurrence wins.
		key := entry.Title + "|" + entry.Author
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		matches = append(matches, scored{entry: entry, score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	if len(matches) > MaxResults {
		matches = matches[:MaxResults]
	}

	results := make([]Result, len(matches))
	for i, m := range matches {
		keyPart := m.entry.ISBN
		if keyPart == "" {
			keyPart = m.entry.Title
		}
		results[i] = Result{
			Key:      fmt.Sprintf("local-%s-%d", keyPart, i),
			Title:    m.entry.Title,
			Author:   m.entry.Author,
			Year:     m.entry.Year,
			Pages:    m.entry.Pages,
			ISBN:     m.entry.ISBN,
			CoverURL: CoverURLForISBN(m.entry.ISBN),
			Score:    m.score,
		}
	}
	return results
}

// MatchScore rates how well text matches query, case-insensitively.
//
// A substring hit scores 100 plus up to 50 for the query-to-text length
// ratio, so a query covering most of the text outranks the same query buried
// in a long title. Otherwise each whitespace-delimited query word contributes
// 30+3n when it appears anywhere in the text, or 15+2n when some text word
// merely starts with it.
func MatchScore(query, text string) float64 {
	q := strings.ToLower(query)
	t := strings.ToLower(text)
	if strings.Contains(t, q) {
		return 100 + float64(len(q))/float64(len(t))*50
	}

	var score float64
	var textWords []string
	for _, w := range strings.Fields(q) {
		if strings.Contains(t, w) {
			score += float64(30 + 3*len(w))
			continue
		}
		if textWords == nil {
			textWords = strings.Fields(t)
		}
		for _, tw := range textWords {
			if strings.HasPrefix(tw, w) {
				score += float64(15 + 2*len(w))
				break
			}
		}
	}
	return score
}

// CoverURLForISBN returns the deterministic cover image URL for an ISBN, or
// empty when no ISBN is known.
func CoverURLForISBN(isbn string) string {
	if isbn == "" {
		return ""
	}
	return fmt.Sprintf("https://covers.openlibrary.org/b/isbn/%s-L.jpg", isbn)
}
