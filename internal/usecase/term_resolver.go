package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/user/adarchive-ingest/internal/entity"
	"github.com/user/adarchive-ingest/internal/repository"
	"github.com/user/adarchive-ingest/pkg/metrics"
)

// TermResolver is the discovery stage: it resolves every claimable search
// term into the set of pages advertising on it, seeding the enrichment queue.
type TermResolver struct {
	terms   repository.TermRepository
	pages   repository.PageRepository
	client  repository.ArchiveClient
	workers int
	log     *zap.Logger

	// known guards against re-creating pages discovered by concurrent
	// workers within this run. The store's upsert stays idempotent, so a
	// lost race only costs a redundant write.
	mu    sync.Mutex
	known map[string]struct{}
}

// NewTermResolver creates the discovery stage runner.
func NewTermResolver(
	terms repository.TermRepository,
	pages repository.PageRepository,
	client repository.ArchiveClient,
	workers int,
	log *zap.Logger,
) *TermResolver {
	if workers < 1 {
		workers = 1
	}
	return &TermResolver{
		terms:   terms,
		pages:   pages,
		client:  client,
		workers: workers,
		log:     log,
	}
}

// Run claims all pending and errored terms once and resolves them with a
// bounded worker pool. It blocks until the stage is drained and returns a
// fatal error only when the token pool is exhausted or the store fails;
// per-term failures are recorded on the term and retried next run.
func (r *TermResolver) Run(ctx context.Context) error {
	terms, err := r.terms.ClaimPending(ctx, 0)
	if err != nil {
		return fmt.Errorf("claim pending terms: %w", err)
	}
	if len(terms) == 0 {
		r.log.Info("no unprocessed search terms")
		return nil
	}

	known, err := r.pages.KnownPageIDs(ctx)
	if err != nil {
		// Not fatal: the page upsert is idempotent, the set only saves
		// redundant writes.
		r.log.Error("failed to load known page ids", zap.Error(err))
		known = make(map[string]struct{})
	}
	r.known = known

	r.log.Info("resolving search terms",
		zap.Int("terms", len(terms)),
		zap.Int("known_pages", len(known)),
		zap.Int("workers", r.workers))

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

	queue := make(chan entity.SearchTerm)
	var wg sync.WaitGroup
	for i := 0; i < min(r.workers, len(terms)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range queue {
				if err := r.resolve(ctx, t); err != nil {
					recordFatal(err)
				}
			}
		}()
	}

feed:
	for _, t := range terms {
		select {
		case queue <- t:
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()

	fatalMu.Lock()
	defer fatalMu.Unlock()
	return fatalErr
}

// resolve processes one term. The returned error is non-nil only for fatal
// conditions that must halt the stage; ordinary failures mark the term as
// errored for the next run.
func (r *TermResolver) resolve(ctx context.Context, term entity.SearchTerm) error {
	log := r.log.With(zap.Int64("term_id", term.ID), zap.String("term", term.Text), zap.String("country", term.Country))

	ads, err := r.client.SearchAds(ctx, term.Text, term.Country)
	if err != nil {
		log.Error("term search failed", zap.Error(err))
		r.markTerm(ctx, term.ID, entity.TermError)
		if errors.Is(err, repository.ErrTokensExhausted) {
			return err
		}
		return nil
	}

	unique := make(map[string]string, len(ads))
	for _, ad := range ads {
		if ad.PageID == "" {
			continue
		}
		if _, seen := unique[ad.PageID]; !seen {
			unique[ad.PageID] = ad.PageName
		}
	}

	newPages := r.claimUnknown(unique, term.Country)
	log.Info("term resolved", zap.Int("pages", len(unique)), zap.Int("new", len(newPages)))

	if len(newPages) > 0 {
		if err := r.pages.UpsertPages(ctx, newPages); err != nil {
			log.Error("failed to upsert discovered pages", zap.Error(err))
			r.forgetKnown(newPages)
			r.markTerm(ctx, term.ID, entity.TermError)
			return nil
		}
	}

	r.markTerm(ctx, term.ID, entity.TermCompleted)
	return nil
}

// claimUnknown filters the discovered pages down to ones not seen before and
// registers them in the known set. Check and insert happen under one lock so
// two workers cannot both claim the same page.
func (r *TermResolver) claimUnknown(discovered map[string]string, country string) []entity.Page {
	r.mu.Lock()
	defer r.mu.Unlock()

	var newPages []entity.Page
	for id, name := range discovered {
		if _, ok := r.known[id]; ok {
			continue
		}
		r.known[id] = struct{}{}
		newPages = append(newPages, entity.Page{
			PageID:      id,
			Name:        name,
			Country:     country,
			AdsStatus:   entity.StatusPending,
			MediaStatus: entity.StatusPending,
		})
	}
	return newPages
}

// forgetKnown removes pages from the known set after a failed upsert so a
// retry of the term can re-create them.
func (r *TermResolver) forgetKnown(pages []entity.Page) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pages {
		delete(r.known, p.PageID)
	}
}

func (r *TermResolver) markTerm(ctx context.Context, id int64, status entity.TermStatus) {
	if err := r.terms.MarkStatus(ctx, id, status); err != nil {
		r.log.Error("failed to mark term status",
			zap.Int64("term_id", id), zap.String("status", string(status)), zap.Error(err))
		return
	}
	metrics.TermsProcessed.WithLabelValues(string(status)).Inc()
}
