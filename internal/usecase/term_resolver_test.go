package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/adarchive-ingest/internal/entity"
	"github.com/user/adarchive-ingest/internal/repository"
)

func searchResult(pages ...[2]string) []entity.ArchiveAd {
	var ads []entity.ArchiveAd
	for _, p := range pages {
		ads = append(ads, entity.ArchiveAd{ID: "ad-" + p[0], PageID: p[0], PageName: p[1]})
	}
	return ads
}

func TestTermResolverCreatesDiscoveredPages(t *testing.T) {
	terms := newFakeTermRepo(entity.SearchTerm{ID: 1, Text: "solar panels", Country: "DE", Status: entity.TermPending})
	pages := newFakePageRepo()
	archive := &fakeArchive{
		searchFn: func(term, country string) ([]entity.ArchiveAd, error) {
			assert.Equal(t, "solar panels", term)
			assert.Equal(t, "DE", country)
			// Duplicate page ids in one result set collapse to one page.
			return searchResult([2]string{"p1", "Solar One"}, [2]string{"p2", "Solar Two"}, [2]string{"p1", "Solar One"}), nil
		},
	}

	r := NewTermResolver(terms, pages, archive, 2, zap.NewNop())
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, entity.TermCompleted, terms.get(1).Status)
	require.Equal(t, 2, pages.count())

	p1 := pages.get("p1")
	assert.Equal(t, "Solar One", p1.Name)
	assert.Equal(t, "DE", p1.Country)
	assert.Equal(t, entity.StatusPending, p1.AdsStatus)
}

func TestTermResolverSkipsKnownPages(t *testing.T) {
	terms := newFakeTermRepo(entity.SearchTerm{ID: 1, Text: "x", Country: "FR", Status: entity.TermPending})
	pages := newFakePageRepo(entity.Page{PageID: "p1", Name: "Old Name", AdsStatus: entity.StatusCompleted, MediaStatus: entity.StatusCompleted})
	archive := &fakeArchive{
		searchFn: func(term, country string) ([]entity.ArchiveAd, error) {
			return searchResult([2]string{"p1", "New Name"}, [2]string{"p2", "Fresh"}), nil
		},
	}

	r := NewTermResolver(terms, pages, archive, 1, zap.NewNop())
	require.NoError(t, r.Run(context.Background()))

	// p1 was already known: its record and statuses are untouched.
	p1 := pages.get("p1")
	assert.Equal(t, "Old Name", p1.Name)
	assert.Equal(t, entity.StatusCompleted, p1.AdsStatus)

	p2 := pages.get("p2")
	assert.Equal(t, entity.StatusPending, p2.AdsStatus)
}

func TestTermResolverIdempotentAcrossRuns(t *testing.T) {
	terms := newFakeTermRepo(entity.SearchTerm{ID: 1, Text: "x", Country: "IT", Status: entity.TermPending})
	pages := newFakePageRepo()
	var calls int
	archive := &fakeArchive{
		searchFn: func(term, country string) ([]entity.ArchiveAd, error) {
			calls++
			return searchResult([2]string{"p1", "One"}), nil
		},
	}

	r := NewTermResolver(terms, pages, archive, 1, zap.NewNop())
	require.NoError(t, r.Run(context.Background()))
	// Completed terms are not claimable: the second run is a no-op.
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, pages.count())
}

func TestTermResolverMarksTermErrorOnSearchFailure(t *testing.T) {
	terms := newFakeTermRepo(
		entity.SearchTerm{ID: 1, Text: "bad", Country: "DE", Status: entity.TermPending},
		entity.SearchTerm{ID: 2, Text: "good", Country: "DE", Status: entity.TermPending},
	)
	pages := newFakePageRepo()
	archive := &fakeArchive{
		searchFn: func(term, country string) ([]entity.ArchiveAd, error) {
			if term == "bad" {
				return nil, errors.New("upstream 500")
			}
			return searchResult([2]string{"p1", "One"}), nil
		},
	}

	r := NewTermResolver(terms, pages, archive, 1, zap.NewNop())
	// An ordinary per-term failure is not fatal to the stage.
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, entity.TermError, terms.get(1).Status)
	assert.Equal(t, entity.TermCompleted, terms.get(2).Status)
	assert.Equal(t, 1, pages.count())
}

func TestTermResolverErroredTermsAreReclaimed(t *testing.T) {
	terms := newFakeTermRepo(entity.SearchTerm{ID: 1, Text: "x", Country: "DE", Status: entity.TermError})
	pages := newFakePageRepo()
	archive := &fakeArchive{
		searchFn: func(term, country string) ([]entity.ArchiveAd, error) {
			return searchResult([2]string{"p1", "One"}), nil
		},
	}

	r := NewTermResolver(terms, pages, archive, 1, zap.NewNop())
	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, entity.TermCompleted, terms.get(1).Status)
}

func TestTermResolverTokenExhaustionIsFatal(t *testing.T) {
	terms := newFakeTermRepo(entity.SearchTerm{ID: 1, Text: "x", Country: "DE", Status: entity.TermPending})
	pages := newFakePageRepo()
	archive := &fakeArchive{
		searchFn: func(term, country string) ([]entity.ArchiveAd, error) {
			return nil, repository.ErrTokensExhausted
		},
	}

	r := NewTermResolver(terms, pages, archive, 1, zap.NewNop())
	err := r.Run(context.Background())
	require.ErrorIs(t, err, repository.ErrTokensExhausted)
	// The term is still marked so the next run retries it.
	assert.Equal(t, entity.TermError, terms.get(1).Status)
}
