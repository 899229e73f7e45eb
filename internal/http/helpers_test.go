package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"bookshelf/internal/auth"
	"bookshelf/internal/catalog"
	"bookshelf/internal/config"
	"bookshelf/internal/entities"
	"bookshelf/internal/search"
	"bookshelf/internal/shelf"
	"bookshelf/internal/store"
)

// memBackend is an immediate-write in-memory store for handler tests.
type memBackend struct {
	mu    sync.Mutex
	books map[string]entities.Book
	order []string
	prefs *entities.Preferences
}

func newMemBackend() *memBackend {
	return &memBackend{books: make(map[string]entities.Book)}
}

func (m *memBackend) Policy() store.WritePolicy { return store.WriteImmediate }

func (m *memBackend) LoadCollection(ctx context.Context, identity string) ([]entities.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Book
	for i := len(m.order) - 1; i >= 0; i-- {
		if b, ok := m.books[m.order[i]]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBackend) LoadPreferences(ctx context.Context, identity string) (*entities.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prefs, nil
}

func (m *memBackend) UpsertBook(ctx context.Context, identity string, book entities.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.books[book.ID]; !exists {
		m.order = append(m.order, book.ID)
	}
	m.books[book.ID] = book
	return nil
}

func (m *memBackend) DeleteBook(ctx context.Context, identity, bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.books, bookID)
	return nil
}

func (m *memBackend) SavePreferences(ctx context.Context, identity string, prefs entities.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs = &prefs
	return nil
}

func readyShelf(t *testing.T, backend store.Backend) *shelf.Controller {
	t.Helper()
	controller := shelf.NewController(backend, nil)
	require.NoError(t, controller.Load(context.Background()))
	return controller
}

func testRouter(t *testing.T, cfg RouterConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if cfg.Aggregator == nil {
		cfg.Aggregator = search.NewAggregator(search.NewEngine(catalog.Entries()), nil)
	}
	return NewRouter(cfg)
}

func testSessionManager(t *testing.T) *auth.SessionManager {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sm, err := auth.NewSessionManager(sqlDB, config.Sessions{
		Lifetime:      time.Hour,
		SecureCookies: false,
	})
	require.NoError(t, err)
	return sm
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}
