package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"bookshelf/internal/auth"
	"bookshelf/internal/catalog"
	"bookshelf/internal/config"
	"bookshelf/internal/covers"
	"bookshelf/internal/database"
	http_controllers "bookshelf/internal/http"
	"bookshelf/internal/migration"
	"bookshelf/internal/openlibrary"
	"bookshelf/internal/scheduler"
	"bookshelf/internal/search"
	"bookshelf/internal/shelf"
	"bookshelf/internal/store"
	"bookshelf/internal/store/cloud"
	"bookshelf/internal/store/local"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown: wait for interrupt, then give in-flight work the
	// configured timeout to finish.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (e.g., to flush pending shelf writes)
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting Bookshelf v%s", version)

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	// Guest-mode persistence over the local key-value table
	localStore, err := local.New(db.DB)
	if err != nil {
		log.Fatalf("Failed to initialize local store: %v", err)
	}

	// Local search over the embedded catalog plus the remote catalog client
	engine := search.NewEngine(catalog.Entries())
	openLibraryClient := openlibrary.NewClient(cfg.OpenLibrary.BaseURL)
	aggregator := search.NewAggregator(engine, openLibraryClient)

	// Cloud persistence; absent configuration leaves the app in guest-only
	// mode with no sign-in surface behind it
	var migrator *migration.Migrator
	var cloudFactory http_controllers.CloudBackendFactory
	if cfg.CloudEnabled() {
		cloudClient := cloud.New(cfg.Supabase.URL, cfg.Supabase.APIKey)
		migrator = migration.New(localStore, cloudClient)
		cloudFactory = func(accessToken string) store.Backend {
			return cloudClient.WithToken(accessToken)
		}
		log.Printf("Cloud mode enabled (%s)", cfg.Supabase.URL)
	} else {
		log.Printf("Cloud mode disabled; collections persist locally only")
	}

	// Shelf controller starts in guest mode and loads the local collection
	controller := shelf.NewControllerWithDebounce(localStore, migrator, cfg.Shelf.Debounce)
	if err := controller.Load(context.Background()); err != nil {
		log.Printf("WARNING: initial collection load failed: %v", err)
	}

	// Session layer shares the sqlite database with the local store
	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatalf("Failed to get SQL DB for sessions: %v", err)
	}
	sessionManager, err := auth.NewSessionManager(sqlDB, cfg.Sessions)
	if err != nil {
		log.Fatalf("Failed to initialize session manager: %v", err)
	}
	rateLimiter := auth.NewRateLimiter(auth.RateLimitConfig{
		MaxAttempts:     cfg.Sessions.MaxSignInAttempts,
		WindowDuration:  cfg.Sessions.RateLimitWindow,
		LockoutDuration: cfg.Sessions.LockoutDuration,
	})

	// Disk cache for cover images, next to the database
	coverCacheDir := filepath.Join(filepath.Dir(cfg.Database.Path), "covers")
	coverCache, err := covers.NewCache(coverCacheDir)
	if err != nil {
		log.Printf("WARNING: Failed to initialize cover cache: %v", err)
	} else {
		log.Printf("Cover cache initialized at %s", coverCacheDir)
	}

	// Periodic cover backfill
	coverSync := scheduler.NewCoverSyncScheduler(controller, openLibraryClient, cfg.CoverSync)
	if err := coverSync.Start(context.Background()); err != nil {
		log.Printf("WARNING: cover sync scheduler failed to start: %v", err)
	}

	routerCfg := http_controllers.RouterConfig{
		Controller:     controller,
		Aggregator:     aggregator,
		Database:       db.DB,
		LocalBackend:   localStore,
		CloudBackend:   cloudFactory,
		CoverCache:     coverCache,
		SessionManager: sessionManager,
		RateLimiter:    rateLimiter,
		Version:        version,
	}

	router := http_controllers.NewRouter(routerCfg)

	// Shutdown callback for graceful cleanup
	onShutdown := func(ctx context.Context) {
		coverSync.Stop()
		rateLimiter.Stop()
		// Debounced edits still in their quiet period must not die with
		// the process.
		controller.Flush(ctx)
	}

	Serve(router, cfg, onShutdown)
}
