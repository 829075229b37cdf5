package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/adarchive-ingest/internal/entity"
	"github.com/user/adarchive-ingest/internal/repository"
	"github.com/user/adarchive-ingest/pkg/metrics"
)

// mediaCandidates is how many top-reach ads are tried per page before giving
// up on finding extractable media.
const mediaCandidates = 3

// MediaFetcher is the extraction stage: it polls for enriched pages, renders
// their highest-reach ad snapshots and persists one representative creative
// per page.
type MediaFetcher struct {
	pages        repository.PageRepository
	ads          repository.AdRepository
	creatives    repository.CreativeRepository
	extractor    repository.MediaExtractor
	cache        repository.MediaCache // optional, may be nil
	cacheTTL     time.Duration
	workers      int
	pollInterval time.Duration
	log          *zap.Logger
}

// NewMediaFetcher creates the media extraction stage runner. cache may be
// nil to disable the recently-extracted shortcut.
func NewMediaFetcher(
	pages repository.PageRepository,
	ads repository.AdRepository,
	creatives repository.CreativeRepository,
	extractor repository.MediaExtractor,
	cache repository.MediaCache,
	cacheTTL time.Duration,
	workers int,
	pollInterval time.Duration,
	log *zap.Logger,
) *MediaFetcher {
	if workers < 1 {
		workers = 1
	}
	return &MediaFetcher{
		pages:        pages,
		ads:          ads,
		creatives:    creatives,
		extractor:    extractor,
		cache:        cache,
		cacheTTL:     cacheTTL,
		workers:      workers,
		pollInterval: pollInterval,
		log:          log,
	}
}

// Run polls for media-pending pages until none remain and the enrichment
// stage has signaled completion. Each batch gets its own queue and worker
// pool sized to the batch, so memory and browser concurrency stay bounded.
func (f *MediaFetcher) Run(ctx context.Context, upstreamDone <-chan struct{}) error {
	f.log.Info("media fetcher started", zap.Int("workers", f.workers))
	for {
		batch, err := f.pages.ClaimMediaPending(ctx, 0)
		if err != nil {
			return fmt.Errorf("claim media-pending pages: %w", err)
		}

		if len(batch) == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-upstreamDone:
				batch, err = f.pages.ClaimMediaPending(ctx, 0)
				if err != nil {
					return fmt.Errorf("claim media-pending pages: %w", err)
				}
				if len(batch) == 0 {
					f.log.Info("media fetcher drained, upstream done")
					return nil
				}
			case <-time.After(f.pollInterval):
				continue
			}
		}

		f.log.Info("extracting media", zap.Int("batch", len(batch)))
		f.processBatch(ctx, batch)
	}
}

func (f *MediaFetcher) processBatch(ctx context.Context, batch []entity.Page) {
	queue := make(chan entity.Page, len(batch))
	for _, p := range batch {
		queue <- p
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < min(f.workers, len(batch)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range queue {
				if ctx.Err() != nil {
					return
				}
				f.processPage(ctx, p)
			}
		}()
	}
	wg.Wait()
}

// processPage resolves one page's creative. Every failure is recorded on the
// page itself; nothing here can take the stage down.
func (f *MediaFetcher) processPage(ctx context.Context, page entity.Page) {
	log := f.log.With(zap.String("page_id", page.PageID))

	if f.cache != nil {
		fresh, err := f.cache.IsRecentlyExtracted(ctx, page.PageID)
		if err != nil {
			log.Warn("media cache lookup failed", zap.Error(err))
		} else if fresh {
			metrics.MediaExtractions.WithLabelValues("cached").Inc()
			f.markMedia(ctx, page.PageID, entity.StatusCompleted)
			return
		}
	}

	existing, err := f.creatives.Get(ctx, page.PageID)
	if err != nil {
		// Non-critical: worst case we re-extract media we already have.
		log.Warn("failed to load existing creative", zap.Error(err))
		existing = nil
	}

	candidates, err := f.ads.TopBySnapshotReach(ctx, page.PageID, mediaCandidates)
	if err != nil {
		log.Error("failed to load media candidates", zap.Error(err))
		f.retryOrCrash(ctx, page.PageID, log)
		return
	}
	if len(candidates) == 0 {
		log.Info("no snapshot candidates for page")
		f.markMedia(ctx, page.PageID, entity.StatusNotFound)
		return
	}

	for _, cand := range candidates {
		if existing != nil && existing.AdID == cand.AdID {
			// The stored creative already references a top candidate.
			log.Info("creative already up to date", zap.String("ad_id", cand.AdID))
			f.markMedia(ctx, page.PageID, entity.StatusCompleted)
			return
		}

		kind, mediaURL, err := f.extractor.Extract(ctx, cand.SnapshotURL)
		if err != nil {
			metrics.MediaExtractions.WithLabelValues("error").Inc()
			log.Warn("snapshot extraction crashed",
				zap.String("ad_id", cand.AdID), zap.Error(err))
			f.retryOrCrash(ctx, page.PageID, log)
			return
		}
		if mediaURL == "" {
			metrics.MediaExtractions.WithLabelValues("empty").Inc()
			log.Info("no media in snapshot, trying next candidate", zap.String("ad_id", cand.AdID))
			continue
		}

		metrics.MediaExtractions.WithLabelValues("found").Inc()
		creative := &entity.Creative{
			PageID: page.PageID,
			AdID:   cand.AdID,
			Kind:   kind,
			URL:    mediaURL,
			Reach:  cand.Reach,
		}
		if err := f.creatives.Upsert(ctx, creative); err != nil {
			log.Error("failed to persist creative", zap.Error(err))
			f.retryOrCrash(ctx, page.PageID, log)
			return
		}
		if f.cache != nil {
			if err := f.cache.MarkExtracted(ctx, page.PageID, f.cacheTTL); err != nil {
				log.Warn("failed to mark media cache", zap.Error(err))
			}
		}
		log.Info("creative stored",
			zap.String("ad_id", cand.AdID),
			zap.String("kind", string(kind)),
			zap.Int64("reach", cand.Reach))
		f.markMedia(ctx, page.PageID, entity.StatusCompleted)
		return
	}

	log.Info("no candidate yielded media", zap.Int("tried", len(candidates)))
	f.markMedia(ctx, page.PageID, entity.StatusNotFound)
}

// retryOrCrash records one extraction failure; the store escalates the page
// to crashed when the counter reaches the ceiling.
func (f *MediaFetcher) retryOrCrash(ctx context.Context, pageID string, log *zap.Logger) {
	status, err := f.pages.IncrementMediaRetry(ctx, pageID)
	if err != nil {
		log.Error("failed to increment media retry count", zap.Error(err))
		return
	}
	if status == entity.StatusCrashed {
		log.Error("page crashed after repeated extraction failures",
			zap.Int("retries", entity.MediaRetryCeiling))
	}
	metrics.PagesProcessed.WithLabelValues("media", string(status)).Inc()
}

func (f *MediaFetcher) markMedia(ctx context.Context, pageID string, status entity.PageStatus) {
	if err := f.pages.MarkMediaStatus(ctx, pageID, status); err != nil {
		f.log.Error("failed to mark media status",
			zap.String("page_id", pageID), zap.String("status", string(status)), zap.Error(err))
		return
	}
	metrics.PagesProcessed.WithLabelValues("media", string(status)).Inc()
}
