package entities

import "time"

// SchemaVersion tags every cloud write for forward-compatible migration
// of the remote schema.
const SchemaVersion = 1

type Status string

const (
	StatusWant     Status = "want"
	StatusReading  Status = "reading"
	StatusFinished Status = "finished"
)

// Valid reports whether s is one of the three known reading statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusWant, StatusReading, StatusFinished:
		return true
	}
	return false
}

// Book is a single entry in a user's collection.
//
// ID is client-generated for new books ("book-<unixms>-<rand>"), or
// backend-assigned for migrated and cloud rows. Year and Pages are nil when
// unknown. ShelfYear always holds a concrete year after creation.
type Book struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Year          *int      `json:"year"`
	Pages         *int      `json:"pages"`
	CoverURL      string    `json:"coverUrl,omitempty"`
	CoverResolved bool      `json:"coverResolved"`
	Status        Status    `json:"status"`
	Rating        int       `json:"rating"`
	Notes         string    `json:"notes"`
	ShelfYear     int       `json:"shelfYear"`
	AddedAt       time.Time `json:"addedAt"`
	CatalogKey    string    `json:"catalogKey,omitempty"`
}

// BookUpdate carries a partial edit. Nil fields are left untouched by Apply,
// so unknown or absent attributes can never clobber existing state.
type BookUpdate struct {
	Title         *string `json:"title,omitempty"`
	Author        *string `json:"author,omitempty"`
	Year          *int    `json:"year,omitempty"`
	Pages         *int    `json:"pages,omitempty"`
	CoverURL      *string `json:"coverUrl,omitempty"`
	CoverResolved *bool   `json:"coverResolved,omitempty"`
	Status        *Status `json:"status,omitempty"`
	Rating        *int    `json:"rating,omitempty"`
	Notes         *string `json:"notes,omitempty"`
	ShelfYear     *int    `json:"shelfYear,omitempty"`
}

// Apply merges the set fields of u into b. ID, AddedAt and CatalogKey are
// immutable and have no counterpart in BookUpdate.
func (b *Book) Apply(u BookUpdate) {
	if u.Title != nil {
		b.Title = *u.Title
	}
	if u.Author != nil {
		b.Author = *u.Author
	}
	if u.Year != nil {
		b.Year = u.Year
	}
	if u.Pages != nil {
		b.Pages = u.Pages
	}
	if u.CoverURL != nil {
		b.CoverURL = *u.CoverURL
	}
	if u.CoverResolved != nil {
		b.CoverResolved = *u.CoverResolved
	}
	if u.Status != nil {
		b.Status = *u.Status
	}
	if u.Rating != nil {
		b.Rating = *u.Rating
	}
	if u.Notes != nil {
		b.Notes = *u.Notes
	}
	if u.ShelfYear != nil {
		b.ShelfYear = *u.ShelfYear
	}
}
