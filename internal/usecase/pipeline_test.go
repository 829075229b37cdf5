package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/adarchive-ingest/internal/entity"
	"github.com/user/adarchive-ingest/internal/repository"
)

func buildPipeline(terms *fakeTermRepo, pages *fakePageRepo, ads *fakeAdRepo, creatives *fakeCreativeRepo, archive *fakeArchive, extractor *fakeExtractor) *Pipeline {
	log := zap.NewNop()
	resolver := NewTermResolver(terms, pages, archive, 2, log)
	enricher := NewPageEnricher(pages, ads, archive, 2, time.Millisecond, nil, log)
	media := NewMediaFetcher(pages, ads, creatives, extractor, newFakeMediaCache(), time.Hour, 2, time.Millisecond, log)
	return NewPipeline(resolver, enricher, media, terms, pages, log)
}

func TestPipelineRunsAllStagesToCompletion(t *testing.T) {
	terms := newFakeTermRepo(entity.SearchTerm{ID: 1, Text: "heating", Country: "AT", Status: entity.TermPending})
	pages := newFakePageRepo()
	ads := newFakeAdRepo()
	creatives := newFakeCreativeRepo()

	archive := &fakeArchive{
		searchFn: func(term, country string) ([]entity.ArchiveAd, error) {
			return []entity.ArchiveAd{
				{ID: "s1", PageID: "p1", PageName: "Heatco"},
				{ID: "s2", PageID: "p2", PageName: "Warmly"},
			}, nil
		},
		adsFn: func(pageID, country string) ([]entity.ArchiveAd, error) {
			if pageID == "p2" {
				// Only stopped ads: p2 never reaches the media stage.
				return []entity.ArchiveAd{{ID: "p2-a1", DeliveryStopTime: "2025-02-01", TotalReach: 50}}, nil
			}
			return []entity.ArchiveAd{
				{ID: "p1-a1", SnapshotURL: "https://archive/p1-a1", TotalReach: 800},
				{ID: "p1-a2", SnapshotURL: "https://archive/p1-a2", TotalReach: 100},
			}, nil
		},
	}
	extractor := &fakeExtractor{fn: func(url string) (entity.MediaKind, string, error) {
		return entity.MediaImage, "https://cdn/p1.jpg", nil
	}}

	p := buildPipeline(terms, pages, ads, creatives, archive, extractor)
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, entity.TermCompleted, terms.get(1).Status)

	p1 := pages.get("p1")
	assert.Equal(t, entity.StatusCompleted, p1.AdsStatus)
	assert.Equal(t, entity.StatusCompleted, p1.MediaStatus)
	assert.Equal(t, int64(900), p1.TotalReach)

	p2 := pages.get("p2")
	assert.Equal(t, entity.StatusNotFound, p2.AdsStatus)
	// Enrichment never completed for p2, so the media stage must not have
	// touched it.
	assert.Equal(t, entity.StatusPending, p2.MediaStatus)

	c, err := creatives.Get(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "p1-a1", c.AdID, "creative comes from the top-reach ad")

	none, err := creatives.Get(context.Background(), "p2")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestPipelineRecoversStuckItemsBeforeRunning(t *testing.T) {
	// A previous run died mid-flight: a processing term and a processing page.
	terms := newFakeTermRepo(entity.SearchTerm{ID: 1, Text: "x", Country: "DE", Status: entity.TermProcessing})
	pages := newFakePageRepo(entity.Page{PageID: "stuck", Country: "DE", AdsStatus: entity.StatusProcessing, MediaStatus: entity.StatusCompleted})
	ads := newFakeAdRepo()
	creatives := newFakeCreativeRepo()

	archive := &fakeArchive{
		searchFn: func(term, country string) ([]entity.ArchiveAd, error) {
			return nil, nil
		},
		adsFn: func(pageID, country string) ([]entity.ArchiveAd, error) {
			return []entity.ArchiveAd{{ID: "a1", SnapshotURL: "https://archive/a1", TotalReach: 10}}, nil
		},
	}
	extractor := &fakeExtractor{fn: func(url string) (entity.MediaKind, string, error) {
		return entity.MediaImage, "https://cdn/a1.jpg", nil
	}}

	p := buildPipeline(terms, pages, ads, creatives, archive, extractor)
	require.NoError(t, p.Run(context.Background()))

	// Both stuck items were swept back to pending and then processed.
	assert.Equal(t, 1, terms.resets)
	assert.Equal(t, entity.TermCompleted, terms.get(1).Status)
	assert.Equal(t, entity.StatusCompleted, pages.get("stuck").AdsStatus)
}

func TestPipelineFailedDiscoveryStillDrainsDownstream(t *testing.T) {
	terms := newFakeTermRepo(entity.SearchTerm{ID: 1, Text: "x", Country: "DE", Status: entity.TermPending})
	// Pre-existing work for the downstream stages.
	pages := newFakePageRepo(entity.Page{PageID: "p1", Country: "DE", AdsStatus: entity.StatusPending, MediaStatus: entity.StatusNotFound})
	ads := newFakeAdRepo()
	creatives := newFakeCreativeRepo()

	archive := &fakeArchive{
		searchFn: func(term, country string) ([]entity.ArchiveAd, error) {
			return nil, repository.ErrTokensExhausted
		},
		adsFn: func(pageID, country string) ([]entity.ArchiveAd, error) {
			return []entity.ArchiveAd{{ID: "a1", SnapshotURL: "https://archive/a1", TotalReach: 10}}, nil
		},
	}
	extractor := &fakeExtractor{fn: func(url string) (entity.MediaKind, string, error) {
		return entity.MediaImage, "https://cdn/a1.jpg", nil
	}}

	p := buildPipeline(terms, pages, ads, creatives, archive, extractor)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	select {
	case err := <-done:
		// Discovery failed but the run still terminated instead of
		// leaving the pollers waiting forever.
		require.ErrorIs(t, err, repository.ErrTokensExhausted)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not terminate after discovery failure")
	}

	// Downstream stages drained the pre-existing page before exiting.
	p1 := pages.get("p1")
	assert.Equal(t, entity.StatusCompleted, p1.AdsStatus)
	assert.Equal(t, entity.StatusCompleted, p1.MediaStatus)
}
