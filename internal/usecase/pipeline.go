package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/adarchive-ingest/internal/repository"
)

// Pipeline wires the three stages together: discovery runs to completion on
// the calling goroutine while enrichment and media extraction poll
// concurrently, each draining until its upstream stage signals done. There
// is no cross-stage cancellation; a started run drains to completion and the
// crash-recovery sweep covers process termination.
type Pipeline struct {
	resolver *TermResolver
	enricher *PageEnricher
	media    *MediaFetcher
	terms    repository.TermRepository
	pages    repository.PageRepository
	log      *zap.Logger
}

// NewPipeline creates the orchestrator.
func NewPipeline(
	resolver *TermResolver,
	enricher *PageEnricher,
	media *MediaFetcher,
	terms repository.TermRepository,
	pages repository.PageRepository,
	log *zap.Logger,
) *Pipeline {
	return &Pipeline{
		resolver: resolver,
		enricher: enricher,
		media:    media,
		terms:    terms,
		pages:    pages,
		log:      log,
	}
}

// Run executes one full pipeline pass and blocks until all three stages have
// drained. Stage failures are collected rather than hiding each other; a
// failed stage still signals downstream so nothing waits forever.
func (p *Pipeline) Run(ctx context.Context) error {
	log := p.log.With(zap.String("run_id", uuid.NewString()))
	start := time.Now()
	log.Info("pipeline run starting")

	if err := p.recover(ctx, log); err != nil {
		return err
	}

	discoveryDone := make(chan struct{})
	enrichmentDone := make(chan struct{})

	var (
		wg        sync.WaitGroup
		enrichErr error
		mediaErr  error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(enrichmentDone)
		if err := p.enricher.Run(ctx, discoveryDone); err != nil {
			enrichErr = fmt.Errorf("enrichment stage: %w", err)
			log.Error("enrichment stage failed", zap.Error(err))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.media.Run(ctx, enrichmentDone); err != nil {
			mediaErr = fmt.Errorf("media stage: %w", err)
			log.Error("media stage failed", zap.Error(err))
		}
	}()

	var resolveErr error
	if err := p.resolver.Run(ctx); err != nil {
		resolveErr = fmt.Errorf("discovery stage: %w", err)
		log.Error("discovery stage failed", zap.Error(err))
	}
	// Signal downstream even on failure so the pollers can drain and exit.
	close(discoveryDone)

	wg.Wait()

	err := errors.Join(resolveErr, enrichErr, mediaErr)
	if err == nil {
		log.Info("pipeline run completed", zap.Duration("elapsed", time.Since(start)))
	}
	return err
}

// recover sweeps items a crashed run left in processing back to pending and
// requeues pages whose enrichment failed last run, so both are claimable
// again.
func (p *Pipeline) recover(ctx context.Context, log *zap.Logger) error {
	n, err := p.terms.ResetStuck(ctx)
	if err != nil {
		return fmt.Errorf("reset stuck terms: %w", err)
	}
	m, err := p.pages.ResetStuck(ctx)
	if err != nil {
		return fmt.Errorf("reset stuck pages: %w", err)
	}
	e, err := p.pages.RequeueErroredAds(ctx)
	if err != nil {
		return fmt.Errorf("requeue errored pages: %w", err)
	}
	if n+m+e > 0 {
		log.Info("recovered queued work",
			zap.Int64("terms", n), zap.Int64("pages", m), zap.Int64("requeued_errors", e))
	}
	return nil
}
