// Package catalog holds the static reference list of known books used for
// offline search.
//
// The data is a pipe-delimited text blob compiled into the binary:
//
//	title|author|year|pages|isbn
//
// one record per line. Year and pages may be empty or non-numeric, in which
// case they parse as unknown. Negative years are BCE dates.
package catalog

import (
	_ "embed"
	"strconv"
	"strings"
	"sync"
)

//go:embed catalog.txt
var rawCatalog string

// Entry is one immutable catalog record. The source list may contain
// duplicate (title, author) pairs; deduplication happens at search time.
type Entry struct {
	Title  string
	Author string
	Year   *int
	Pages  *int
	ISBN   string
}

var (
	once    sync.Once
	entries []Entry
)

// Entries returns the parsed catalog. The parse runs once; the returned
// slice must be treated as read-only.
func Entries() []Entry {
	once.Do(func() {
		entries = Parse(rawCatalog)
	})
	return entries
}

// Parse decodes a pipe-delimited record list. Lines with fewer than two
// fields are skipped; numeric fields that fail to parse are left nil.
func Parse(data string) []Entry {
	lines := strings.Split(data, "\n")
	parsed := make([]Entry, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) < 2 {
			continue
		}
		e := Entry{
			Title:  strings.TrimSpace(fields[0]),
			Author: strings.TrimSpace(fields[1]),
		}
		if len(fields) > 2 {
			e.Year = parseInt(fields[2])
		}
		if len(fields) > 3 {
			e.Pages = parseInt(fields[3])
		}
		if len(fields) > 4 {
			e.ISBN = strings.TrimSpace(fields[4])
		}
		parsed = append(parsed, e)
	}
	return parsed
}

func parseInt(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}
