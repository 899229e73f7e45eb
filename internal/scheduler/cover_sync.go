// Package scheduler runs the periodic cover backfill: books added without a
// cover image get one looked up from the remote catalog in the background.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"bookshelf/internal/config"
	"bookshelf/internal/entities"
	"bookshelf/internal/shelf"
)

// resolveTimeout bounds a single remote cover lookup.
const resolveTimeout = 20 * time.Second

// CoverResolver finds a cover image URL for a title/author pair. An empty
// URL with a nil error means the catalog has nothing for this book.
type CoverResolver interface {
	ResolveCover(ctx context.Context, title, author string) (string, error)
}

// CoverSyncScheduler manages the periodic cover backfill sweep.
type CoverSyncScheduler struct {
	shelf    *shelf.Controller
	resolver CoverResolver
	cfg      config.CoverSync

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// NewCoverSyncScheduler creates a new scheduler instance
func NewCoverSyncScheduler(shelfController *shelf.Controller, resolver CoverResolver, cfg config.CoverSync) *CoverSyncScheduler {
	return &CoverSyncScheduler{
		shelf:    shelfController,
		resolver: resolver,
		cfg:      cfg,
		cron:     cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start begins the scheduler if the backfill is enabled
func (s *CoverSyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if !s.cfg.Enabled {
		log.Printf("Cover sync scheduler: disabled")
		return nil
	}

	entryID, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		s.runSweep()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule cover sync job: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Cover sync scheduler: started with schedule '%s'", s.cfg.Schedule)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler
func (s *CoverSyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	// Stop accepting new jobs and wait for running jobs to complete
	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.cancelFunc = nil

	log.Printf("Cover sync scheduler: stopped")
}

// RunNow triggers an immediate sweep
func (s *CoverSyncScheduler) RunNow() {
	go s.runSweep()
}

// IsRunning returns whether the scheduler is active
func (s *CoverSyncScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRunTime returns when the next sweep will occur
func (s *CoverSyncScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

// runSweep resolves covers for every book that still lacks one. A book with
// CoverResolved set is never retried, even when the lookup found nothing:
// the catalog answered, it just had no cover.
func (s *CoverSyncScheduler) runSweep() {
	books := s.shelf.Books()

	pending := make([]entities.Book, 0)
	for _, b := range books {
		if b.CoverURL == "" && !b.CoverResolved {
			pending = append(pending, b)
		}
	}
	if len(pending) == 0 {
		return
	}

	log.Printf("Cover sync: resolving covers for %d books", len(pending))
	startTime := time.Now()
	resolvedCount := 0

	for _, book := range pending {
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		coverURL, err := s.resolver.ResolveCover(ctx, book.Title, book.Author)
		cancel()
		if err != nil {
			log.Printf("Cover sync: lookup failed for %q: %v", book.Title, err)
			continue
		}

		resolved := true
		update := entities.BookUpdate{CoverResolved: &resolved}
		if coverURL != "" {
			update.CoverURL = &coverURL
			resolvedCount++
		}
		if _, err := s.shelf.UpdateBook(book.ID, update); err != nil {
			// The book may have been removed while the sweep was running.
			log.Printf("Cover sync: update failed for %q: %v", book.Title, err)
		}
	}

	log.Printf("Cover sync: resolved %d/%d covers in %v",
		resolvedCount, len(pending), time.Since(startTime).Round(time.Millisecond))
}
