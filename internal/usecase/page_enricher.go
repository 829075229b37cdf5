package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/adarchive-ingest/internal/entity"
	"github.com/user/adarchive-ingest/internal/repository"
	"github.com/user/adarchive-ingest/pkg/metrics"
)

const archiveDateLayout = "2006-01-02"

// PageEnricher is the enrichment stage: it polls for pages awaiting their ad
// set, fetches every ad from the archive, recomputes reach aggregates and
// admits enriched pages into the media stage.
type PageEnricher struct {
	pages        repository.PageRepository
	ads          repository.AdRepository
	client       repository.ArchiveClient
	workers      int
	pollInterval time.Duration
	minCreation  *time.Time // ads created before this are dropped entirely
	log          *zap.Logger
}

// NewPageEnricher creates the enrichment stage runner. minCreation may be
// nil to keep ads of any age.
func NewPageEnricher(
	pages repository.PageRepository,
	ads repository.AdRepository,
	client repository.ArchiveClient,
	workers int,
	pollInterval time.Duration,
	minCreation *time.Time,
	log *zap.Logger,
) *PageEnricher {
	if workers < 1 {
		workers = 1
	}
	return &PageEnricher{
		pages:        pages,
		ads:          ads,
		client:       client,
		workers:      workers,
		pollInterval: pollInterval,
		minCreation:  minCreation,
		log:          log,
	}
}

// Run polls the store for claimable pages until none remain and the upstream
// discovery stage has signaled completion. Batches are processed by a
// bounded worker pool; a drained batch loops immediately, an idle poll
// sleeps. Only token exhaustion or an unreachable store end the loop early.
func (e *PageEnricher) Run(ctx context.Context, upstreamDone <-chan struct{}) error {
	e.log.Info("page enricher started", zap.Int("workers", e.workers))
	for {
		batch, err := e.pages.ClaimAdsPending(ctx, 0)
		if err != nil {
			return fmt.Errorf("claim ads-pending pages: %w", err)
		}

		if len(batch) == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-upstreamDone:
				// Drain once more: upstream may have written pages
				// between our query and its completion signal.
				batch, err = e.pages.ClaimAdsPending(ctx, 0)
				if err != nil {
					return fmt.Errorf("claim ads-pending pages: %w", err)
				}
				if len(batch) == 0 {
					e.log.Info("page enricher drained, upstream done")
					return nil
				}
			case <-time.After(e.pollInterval):
				continue
			}
		}

		e.log.Info("enriching pages", zap.Int("batch", len(batch)))
		if err := e.processBatch(ctx, batch); err != nil {
			return err
		}
	}
}

func (e *PageEnricher) processBatch(ctx context.Context, batch []entity.Page) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		fatalMu  sync.Mutex
		fatalErr error
	)
	recordFatal := func(err error) {
		fatalMu.Lock()
		if fatalErr == nil {
			fatalErr = err
		}
		fatalMu.Unlock()
		cancel()
	}

	queue := make(chan entity.Page, len(batch))
	for _, p := range batch {
		queue <- p
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < min(e.workers, len(batch)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range queue {
				if ctx.Err() != nil {
					return
				}
				if err := e.enrich(ctx, p); err != nil {
					recordFatal(err)
				}
			}
		}()
	}
	wg.Wait()

	fatalMu.Lock()
	defer fatalMu.Unlock()
	return fatalErr
}

// enrich fetches one page's full ad set and advances its ads_status. The
// returned error is non-nil only for fatal conditions.
func (e *PageEnricher) enrich(ctx context.Context, page entity.Page) error {
	log := e.log.With(zap.String("page_id", page.PageID))

	archiveAds, err := e.client.AdsByPage(ctx, page.PageID, page.Country)
	if err != nil {
		log.Error("failed to fetch ads for page", zap.Error(err))
		e.markAds(ctx, page.PageID, entity.StatusError)
		if errors.Is(err, repository.ErrTokensExhausted) {
			return err
		}
		return nil
	}

	var (
		totalReach  int64
		activeReach int64
		keep        []entity.Ad
	)
	for i := range archiveAds {
		ad := &archiveAds[i]
		created := parseArchiveDate(ad.CreationTime)
		if e.minCreation != nil && created != nil && created.Before(*e.minCreation) {
			continue
		}

		reach := int64(ad.TotalReach)
		totalReach += reach
		if !ad.IsActive() {
			// Inactive ads count toward aggregates but are not stored.
			continue
		}
		activeReach += reach

		keep = append(keep, entity.Ad{
			AdID:          ad.ID,
			PageID:        page.PageID,
			CreationTime:  created,
			DeliveryStart: parseArchiveDate(ad.DeliveryStartTime),
			DeliveryStop:  parseArchiveDate(ad.DeliveryStopTime),
			SnapshotURL:   ad.SnapshotURL,
			Reach:         reach,
			IsActive:      true,
			Beneficiary:   ad.Beneficiary(),
		})
	}

	if err := e.pages.SetReach(ctx, page.PageID, totalReach, activeReach); err != nil {
		log.Error("failed to store reach aggregates", zap.Error(err))
		e.markAds(ctx, page.PageID, entity.StatusError)
		return nil
	}

	if len(keep) == 0 {
		log.Info("no active ads survived filtering", zap.Int("fetched", len(archiveAds)))
		e.markAds(ctx, page.PageID, entity.StatusNotFound)
		return nil
	}

	if err := e.ads.UpsertAds(ctx, keep); err != nil {
		log.Error("failed to upsert ads", zap.Error(err))
		e.markAds(ctx, page.PageID, entity.StatusError)
		return nil
	}

	e.markAds(ctx, page.PageID, entity.StatusCompleted)
	// Enrichment success is the sole trigger admitting a page into the
	// media stage.
	if err := e.pages.MarkMediaStatus(ctx, page.PageID, entity.StatusPending); err != nil {
		log.Error("failed to queue page for media extraction", zap.Error(err))
	}
	log.Info("page enriched",
		zap.Int("ads_stored", len(keep)),
		zap.Int64("total_reach", totalReach),
		zap.Int64("active_reach", activeReach))
	return nil
}

func (e *PageEnricher) markAds(ctx context.Context, pageID string, status entity.PageStatus) {
	if err := e.pages.MarkAdsStatus(ctx, pageID, status); err != nil {
		e.log.Error("failed to mark ads status",
			zap.String("page_id", pageID), zap.String("status", string(status)), zap.Error(err))
		return
	}
	metrics.PagesProcessed.WithLabelValues("ads", string(status)).Inc()
}

func parseArchiveDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(archiveDateLayout, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return nil
		}
	}
	return &t
}
