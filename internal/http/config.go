package http

import (
	"gorm.io/gorm"

	"bookshelf/internal/auth"
	"bookshelf/internal/covers"
	"bookshelf/internal/search"
	"bookshelf/internal/shelf"
	"bookshelf/internal/store"
)

// CloudBackendFactory builds a cloud backend bound to one session's access
// token. Nil when cloud mode is not configured.
type CloudBackendFactory func(accessToken string) store.Backend

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router. This replaces the long parameter list
// in NewRouter for better maintainability.
type RouterConfig struct {
	// Core dependencies
	Controller *shelf.Controller
	Aggregator *search.Aggregator
	Database   *gorm.DB

	// Persistence selection on auth transitions
	LocalBackend store.Backend
	CloudBackend CloudBackendFactory

	// Cover caching; nil disables the cover proxy endpoint
	CoverCache *covers.Cache

	// Session layer; nil disables the session endpoints entirely
	SessionManager *auth.SessionManager
	RateLimiter    *auth.RateLimiter

	// Application info
	Version string
}
