// Package shelf owns the in-memory collection state and dispatches durable
// writes to the active persistence backend.
//
// The controller is a small state machine over {loading, ready}: until the
// initial load (including migration, when applicable) completes, the
// collection is not authoritative and mutations are rejected. Once ready,
// mutations apply to memory first and durability is fire-and-forget — the
// in-memory state is the session's source of truth and reconciles with the
// backend on next load.
package shelf

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"bookshelf/internal/entities"
	"bookshelf/internal/migration"
	"bookshelf/internal/store"
)

// DefaultDebounce is the quiet period coalescing rapid edits to one book
// into a single cloud write.
const DefaultDebounce = 500 * time.Millisecond

// writeTimeout bounds each fire-and-forget durable write.
const writeTimeout = 15 * time.Second

var (
	// ErrNotReady rejects mutations while the initial load is in flight.
	ErrNotReady = errors.New("shelf: not ready")
	// ErrNotFound reports an unknown book id.
	ErrNotFound = errors.New("shelf: book not found")
)

// State is the controller lifecycle phase.
type State int

const (
	StateLoading State = iota
	StateReady
)

// AddItem carries the fields an add operation may supply; everything else is
// defaulted at creation.
type AddItem struct {
	Title      string          `json:"title"`
	Author     string          `json:"author"`
	Year       *int            `json:"year"`
	Pages      *int            `json:"pages"`
	CoverURL   string          `json:"coverUrl"`
	Status     entities.Status `json:"status"`
	ShelfYear  int             `json:"shelfYear"`
	CatalogKey string          `json:"catalogKey"`
}

// Controller is the shelf data controller exposed to the presentation layer.
type Controller struct {
	mu       sync.Mutex
	state    State
	backend  store.Backend
	identity string
	books    []entities.Book
	prefs    entities.Preferences

	migrator *migration.Migrator
	migrated bool

	debounce time.Duration
	// Debounce timers are keyed per book id, so rapid edits to book A
	// followed by book B persist both. A single shared timer would let
	// B's edit swallow A's pending write.
	timers map[string]*time.Timer
}

// NewController creates a controller in guest mode over the given backend.
// migrator may be nil when no local-to-cloud migration can ever apply.
func NewController(backend store.Backend, migrator *migration.Migrator) *Controller {
	return NewControllerWithDebounce(backend, migrator, DefaultDebounce)
}

// NewControllerWithDebounce creates a controller with a custom debounce
// window.
func NewControllerWithDebounce(backend store.Backend, migrator *migration.Migrator, debounce time.Duration) *Controller {
	return &Controller{
		state:    StateLoading,
		backend:  backend,
		migrator: migrator,
		debounce: debounce,
		prefs:    entities.DefaultPreferences(),
		timers:   make(map[string]*time.Timer),
	}
}

// State returns the current lifecycle phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Identity returns the authenticated identity, or empty in guest mode.
func (c *Controller) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Books returns a snapshot of the in-memory collection, most recent first.
func (c *Controller) Books() []entities.Book {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]entities.Book, len(c.books))
	copy(out, c.books)
	return out
}

// Book returns a single book by id.
func (c *Controller) Book(id string) (entities.Book, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.books {
		if b.ID == id {
			return b, nil
		}
	}
	return entities.Book{}, ErrNotFound
}

// Preferences returns the current in-memory preferences.
func (c *Controller) Preferences() entities.Preferences {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prefs
}

// Activate switches the active backend on an auth transition and puts the
// controller back into loading until Load completes. Pending debounced
// writes against the previous backend are dropped rather than replayed
// against a stale identity.
func (c *Controller) Activate(identity string, backend store.Backend) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, timer := range c.timers {
		timer.Stop()
		delete(c.timers, id)
	}
	c.state = StateLoading
	c.identity = identity
	c.backend = backend
	c.migrated = false
	c.books = nil
	c.prefs = entities.DefaultPreferences()
}

// Load runs migration when applicable, then reads the collection and
// preferences from the active backend and marks the controller ready. Load
// failures degrade to an empty collection; the controller still becomes
// ready so the session stays usable.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	identity := c.identity
	backend := c.backend
	runMigration := identity != "" && c.migrator != nil && !c.migrated
	c.mu.Unlock()

	if runMigration {
		if _, err := c.migrator.Run(ctx, identity); err != nil {
			log.Printf("Migration error: %v", err)
		}
		c.mu.Lock()
		c.migrated = true
		c.mu.Unlock()
	}

	var loadErr error
	books, err := backend.LoadCollection(ctx, identity)
	if err != nil {
		log.Printf("Load collection error: %v", err)
		loadErr = err
		books = nil
	}

	prefs, err := backend.LoadPreferences(ctx, identity)
	if err != nil {
		log.Printf("Load preferences error: %v", err)
	}

	c.mu.Lock()
	c.books = books
	if prefs != nil {
		c.prefs = *prefs
	}
	c.state = StateReady
	c.mu.Unlock()
	return loadErr
}

// AddBook synthesizes a new book from item, prepends it to the collection,
// and issues an asynchronous durable write. The book is returned
// synchronously so the caller can reference it immediately.
func (c *Controller) AddBook(item AddItem) (entities.Book, error) {
	if item.Status == "" {
		item.Status = entities.StatusWant
	}
	if !item.Status.Valid() {
		return entities.Book{}, fmt.Errorf("invalid status %q", item.Status)
	}
	if item.ShelfYear == 0 {
		item.ShelfYear = time.Now().Year()
	}

	book := entities.Book{
		ID:         newBookID(),
		Title:      item.Title,
		Author:     item.Author,
		Year:       item.Year,
		Pages:      item.Pages,
		CoverURL:   item.CoverURL,
		Status:     item.Status,
		Rating:     0,
		Notes:      "",
		ShelfYear:  item.ShelfYear,
		AddedAt:    time.Now().UTC(),
		CatalogKey: item.CatalogKey,
	}

	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return entities.Book{}, ErrNotReady
	}
	c.books = append([]entities.Book{book}, c.books...)
	backend := c.backend
	identity := c.identity
	c.mu.Unlock()

	if backend.Policy() == store.WriteImmediate {
		persist(backend, identity, book)
	} else {
		go persist(backend, identity, book)
	}
	return book, nil
}

// RemoveBook drops the book from memory immediately and issues an
// asynchronous durable delete. A pending debounced write for the book is
// cancelled.
func (c *Controller) RemoveBook(id string) error {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return ErrNotReady
	}

	found := false
	kept := c.books[:0]
	for _, b := range c.books {
		if b.ID == id {
			found = true
			continue
		}
		kept = append(kept, b)
	}
	if !found {
		c.mu.Unlock()
		return ErrNotFound
	}
	c.books = kept

	if timer, ok := c.timers[id]; ok {
		timer.Stop()
		delete(c.timers, id)
	}
	backend := c.backend
	identity := c.identity
	c.mu.Unlock()

	drop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := backend.DeleteBook(ctx, identity, id); err != nil {
			log.Printf("Delete book %s failed: %v", id, err)
		}
	}
	if backend.Policy() == store.WriteImmediate {
		drop()
	} else {
		go drop()
	}
	return nil
}

// UpdateBook merges a partial edit into the matching book immediately and
// schedules the durable write according to the backend's policy: immediate
// backends persist synchronously, debounced backends coalesce rapid edits
// within the debounce window. Only the latest merged state is ever
// persisted; each write carries the full book, not a diff.
func (c *Controller) UpdateBook(id string, update entities.BookUpdate) (entities.Book, error) {
	if update.Status != nil && !update.Status.Valid() {
		return entities.Book{}, fmt.Errorf("invalid status %q", *update.Status)
	}
	if update.Rating != nil && (*update.Rating < 0 || *update.Rating > 5) {
		return entities.Book{}, fmt.Errorf("rating %d out of range", *update.Rating)
	}

	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return entities.Book{}, ErrNotReady
	}

	idx := -1
	for i := range c.books {
		if c.books[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return entities.Book{}, ErrNotFound
	}

	c.books[idx].Apply(update)
	book := c.books[idx]
	backend := c.backend
	identity := c.identity
	debounced := backend.Policy() == store.WriteDebounced
	if debounced {
		c.scheduleWriteLocked(id)
	}
	c.mu.Unlock()

	if !debounced {
		persist(backend, identity, book)
	}
	return book, nil
}

// SetThemeID validates and updates the theme preference, then issues a
// durable preference write.
func (c *Controller) SetThemeID(id string) error {
	if !entities.ValidTheme(id) {
		return fmt.Errorf("unknown theme %q", id)
	}
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return ErrNotReady
	}
	c.prefs.ThemeID = id
	c.mu.Unlock()
	c.savePreferences()
	return nil
}

// SetShelfName updates the shelf display label, then issues a durable
// preference write.
func (c *Controller) SetShelfName(name string) error {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return ErrNotReady
	}
	c.prefs.ShelfName = name
	c.mu.Unlock()
	c.savePreferences()
	return nil
}

// Flush synchronously persists every pending debounced write. Called on
// shutdown so a quiet-period edit is not lost with the process.
func (c *Controller) Flush(ctx context.Context) {
	c.mu.Lock()
	backend := c.backend
	identity := c.identity
	var pending []entities.Book
	for id, timer := range c.timers {
		timer.Stop()
		delete(c.timers, id)
		for _, b := range c.books {
			if b.ID == id {
				pending = append(pending, b)
				break
			}
		}
	}
	c.mu.Unlock()

	for _, book := range pending {
		if err := backend.UpsertBook(ctx, identity, book); err != nil {
			log.Printf("Flush book %s failed: %v", book.ID, err)
		}
	}
}

// scheduleWriteLocked restarts the book's debounce timer. Caller holds the
// lock.
func (c *Controller) scheduleWriteLocked(id string) {
	if timer, ok := c.timers[id]; ok {
		timer.Stop()
	}
	c.timers[id] = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		delete(c.timers, id)
		backend := c.backend
		identity := c.identity
		var book *entities.Book
		for i := range c.books {
			if c.books[i].ID == id {
				snapshot := c.books[i]
				book = &snapshot
				break
			}
		}
		c.mu.Unlock()

		// The book may have been removed while the timer was pending.
		if book == nil {
			return
		}
		persist(backend, identity, *book)
	})
}

func (c *Controller) savePreferences() {
	c.mu.Lock()
	backend := c.backend
	identity := c.identity
	prefs := c.prefs
	c.mu.Unlock()

	write := func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := backend.SavePreferences(ctx, identity, prefs); err != nil {
			log.Printf("Save preferences failed: %v", err)
		}
	}
	if backend.Policy() == store.WriteImmediate {
		write()
	} else {
		go write()
	}
}

func persist(backend store.Backend, identity string, book entities.Book) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := backend.UpsertBook(ctx, identity, book); err != nil {
		log.Printf("Upsert book %s failed: %v", book.ID, err)
	}
}

// newBookID generates a client-side id: "book-<unixms>-<hex>".
func newBookID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("book-%d", time.Now().UnixMilli())
	}
	return fmt.Sprintf("book-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}
