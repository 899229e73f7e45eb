package search

import (
	"context"
	"log"
	"strings"
	"sync"

	"bookshelf/internal/entities"
)

// RemoteSearcher looks up suggestions from an external bibliographic source.
// Implementations may fail transiently; the aggregator degrades to empty
// results and never propagates the error.
type RemoteSearcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// Aggregator combines instant local search with on-demand remote search.
// Local results always precede remote ones: the catalog ranking is trusted
// more than unranked provider order.
type Aggregator struct {
	engine *Engine
	remote RemoteSearcher

	mu         sync.Mutex
	lastQuery  string
	lastRemote []Result
}

// NewAggregator wires the local engine with a remote searcher. remote may be
// nil, in which case remote search always yields nothing.
func NewAggregator(engine *Engine, remote RemoteSearcher) *Aggregator {
	return &Aggregator{engine: engine, remote: remote}
}

// Local returns the ranked catalog results for query.
func (a *Aggregator) Local(query string) []Result {
	return a.engine.Search(query)
}

// Remote returns provider results for query, excluding titles already present
// among the local results. Each distinct query string is attempted at most
// once per session; repeats return the memoized outcome, including a memoized
// failure.
func (a *Aggregator) Remote(ctx context.Context, query string) []Result {
	if len(query) < 2 || a.remote == nil {
		return nil
	}

	a.mu.Lock()
	if a.lastQuery == query {
		cached := a.lastRemote
		a.mu.Unlock()
		return cached
	}
	a.lastQuery = query
	a.lastRemote = nil
	a.mu.Unlock()

	docs, err := a.remote.Search(ctx, query)
	if err != nil {
		log.Printf("Remote search failed for %q: %v", query, err)
		return nil
	}

	localTitles := make(map[string]struct{})
	for _, r := range a.Local(query) {
		localTitles[strings.ToLower(r.Title)] = struct{}{}
	}

	filtered := make([]Result, 0, len(docs))
	for _, d := range docs {
		if d.Title == "" {
			continue
		}
		if _, dup := localTitles[strings.ToLower(d.Title)]; dup {
			continue
		}
		filtered = append(filtered, d)
	}

	a.mu.Lock()
	// A newer query may have superseded this one while the request was in
	// flight; its result is stale and gets dropped on arrival.
	if a.lastQuery == query {
		a.lastRemote = filtered
	} else {
		filtered = nil
	}
	a.mu.Unlock()
	return filtered
}

// Aggregate concatenates ranked local results with remote results, provider
// order preserved.
func (a *Aggregator) Aggregate(local, remote []Result) []Result {
	merged := make([]Result, 0, len(local)+len(remote))
	merged = append(merged, local...)
	merged = append(merged, remote...)
	return merged
}

// OnShelf reports whether a result's key is already referenced by a book in
// the collection, so the caller can mark "already on shelf".
func OnShelf(key string, books []entities.Book) bool {
	if key == "" {
		return false
	}
	for _, b := range books {
		if b.CatalogKey == key {
			return true
		}
	}
	return false
}
