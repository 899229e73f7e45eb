package http

import (
	"github.com/gin-gonic/gin"

	"bookshelf/internal/auth"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Uses RouterConfig to receive all dependencies, improving testability
// and reducing parameter count.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())

	// Apply security headers to all responses
	router.Use(auth.SecurityHeadersMiddleware())

	// Apply session middleware if enabled
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}

	health := NewHealthController(cfg.Database, cfg.Version)
	searchController := NewSearchController(cfg.Aggregator, cfg.Controller)
	booksController := NewBooksController(cfg.Controller, cfg.CoverCache)
	preferencesController := NewPreferencesController(cfg.Controller)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	api := router.Group("/api")

	// Session endpoints and backend reconciliation
	if cfg.SessionManager != nil {
		sessionController := NewSessionController(
			cfg.SessionManager, cfg.Controller, cfg.LocalBackend, cfg.CloudBackend, cfg.RateLimiter)

		session := api.Group("/session")
		if cfg.RateLimiter != nil {
			session.Use(cfg.RateLimiter.RateLimitMiddleware())
		}
		session.POST("", sessionController.SignIn)
		session.DELETE("", sessionController.SignOut)
		session.GET("", sessionController.Status)

		api.Use(sessionController.EnsureBackend())
	}

	// Search endpoint
	api.GET("/search", searchController.Search)

	// Books API endpoints
	api.GET("/books", booksController.GetAllBooks)
	api.POST("/books", booksController.AddBook)
	api.GET("/books/:id", booksController.GetBook)
	api.PATCH("/books/:id", booksController.UpdateBook)
	api.DELETE("/books/:id", booksController.DeleteBook)

	// Book cover endpoint
	if cfg.CoverCache != nil {
		coversController := NewCoversController(cfg.CoverCache, cfg.Controller)
		api.GET("/books/:id/cover", coversController.GetCover)
	}

	// Preferences endpoints
	api.GET("/preferences", preferencesController.GetPreferences)
	api.PATCH("/preferences", preferencesController.UpdatePreferences)

	return router
}
