package search

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/internal/catalog"
)

func intPtr(n int) *int { return &n }

func testEntries() []catalog.Entry {
	return []catalog.Entry{
		{Title: "Dune", Author: "Frank Herbert", Year: intPtr(1965), Pages: intPtr(688), ISBN: "9780441013593"},
		{Title: "Dune Messiah", Author: "Frank Herbert", Year: intPtr(1969), Pages: intPtr(337), ISBN: "9780593098233"},
		{Title: "Children of Dune", Author: "Frank Herbert", Year: intPtr(1976), Pages: intPtr(444), ISBN: "9780593098240"},
		{Title: "The Hobbit", Author: "J.R.R. Tolkien", Year: intPtr(1937), Pages: intPtr(310), ISBN: "9780547928227"},
		{Title: "Circe", Author: "Madeline Miller", Year: intPtr(2018), Pages: intPtr(393), ISBN: "9780316556347"},
	}
}

func TestMatchScore(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		text     string
		expected float64
	}{
		{"exact match", "dune", "Dune", 100 + 50},
		{"substring of longer text", "dune", "Dune Messiah", 100 + 4.0/12.0*50},
		{"case insensitive", "DUNE", "dune", 150},
		{"word hit mid-query", "frank tolkien", "J.R.R. Tolkien", 30 + 3*7},
		{"no match", "xyzzy", "Dune", 0},
		{"multi word sum", "the hobbit", "The Hobbit", 100 + 10.0/10.0*50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, MatchScore(tt.query, tt.text), 1e-9)
		})
	}
}

// Identical queries against a fixed catalog always produce identical output.
func TestSearch_Deterministic(t *testing.T) {
	engine := NewEngine(catalog.Entries())

	first := engine.Search("the")
	second := engine.Search("the")
	assert.Equal(t, first, second)
}

func TestSearch_ShortQueryFloor(t *testing.T) {
	engine := NewEngine(testEntries())

	assert.Empty(t, engine.Search(""))
	assert.Empty(t, engine.Search("d"))
	assert.NotEmpty(t, engine.Search("du"))
}

func TestSearch_SubstringOutranksFragment(t *testing.T) {
	engine := NewEngine(testEntries())

	results := engine.Search("dune")
	require.NotEmpty(t, results)

	// "Dune" covers its whole title, so it outranks the same query buried
	// in longer titles.
	assert.Equal(t, "Dune", results[0].Title)
	titles := make([]string, len(results))
	for i, r := range results {
		titles[i] = r.Title
	}
	assert.Contains(t, titles, "Dune Messiah")
	assert.Contains(t, titles, "Children of Dune")
	assert.NotContains(t, titles, "The Hobbit")
}

func TestSearch_AuthorMatchWeighted(t *testing.T) {
	engine := NewEngine(testEntries())

	results := engine.Search("herbert")
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, "Frank Herbert", r.Author)
		// Author substring hits carry the 0.8 weight.
		assert.InDelta(t, (100+7.0/13.0*50)*0.8, r.Score, 1e-9)
	}
}

func TestSearch_DuplicateEntriesCollapse(t *testing.T) {
	entries := append(testEntries(),
		catalog.Entry{Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593"})
	engine := NewEngine(entries)

	results := engine.Search("dune")
	count := 0
	for _, r := range results {
		if r.Title == "Dune" && r.Author == "Frank Herbert" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestSearch_TopKCap(t *testing.T) {
	var entries []catalog.Entry
	for i := 0; i < 40; i++ {
		entries = append(entries, catalog.Entry{
			Title:  fmt.Sprintf("Dune Chronicle %d", i),
			Author: "Frank Herbert",
		})
	}
	engine := NewEngine(entries)

	assert.Len(t, engine.Search("dune"), MaxResults)

	// Also holds against the full embedded catalog for a broad query.
	assert.LessOrEqual(t, len(NewEngine(catalog.Entries()).Search("the")), MaxResults)
}

func TestSearch_ResultShape(t *testing.T) {
	engine := NewEngine(testEntries())

	results := engine.Search("circe")
	require.Len(t, results, 1)
	r := results[0]

	assert.Equal(t, "local-9780316556347-0", r.Key)
	assert.Equal(t, "Circe", r.Title)
	assert.Equal(t, "https://covers.openlibrary.org/b/isbn/9780316556347-L.jpg", r.CoverURL)
	assert.GreaterOrEqual(t, r.Score, 100.0)
}

func TestSearch_NoISBNKeyFallsBackToTitle(t *testing.T) {
	engine := NewEngine([]catalog.Entry{{Title: "Mystery Draft", Author: "Anon"}})

	results := engine.Search("mystery")
	require.Len(t, results, 1)
	assert.Equal(t, "local-Mystery Draft-0", results[0].Key)
	assert.Empty(t, results[0].CoverURL)
}

// The scenario from the catalog: a Dune query resolves the canonical entry
// with its deterministic cover URL.
func TestSearch_DuneScenario(t *testing.T) {
	engine := NewEngine(catalog.Entries())

	results := engine.Search("dune")
	require.NotEmpty(t, results)
	r := results[0]

	assert.Equal(t, "Dune", r.Title)
	assert.Equal(t, "Frank Herbert", r.Author)
	assert.Equal(t, "https://covers.openlibrary.org/b/isbn/9780441013593-L.jpg", r.CoverURL)
	assert.GreaterOrEqual(t, r.Score, 100.0)
}
