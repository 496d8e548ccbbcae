// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/discovarr/internal/cache"
	"github.com/autobrr/discovarr/internal/domain"
	"github.com/autobrr/discovarr/internal/tmdb"
)

// fakeCatalog implements Catalog with per-test overrides and records every
// upstream call.
type fakeCatalog struct {
	mu    sync.Mutex
	calls map[string]int

	popularPages        []int
	topRatedPages       []int
	recommendationPages []int
	similarPages        []int
	discoverFilters     map[string]string

	popularFn         func(ct domain.ContentType, page int) (*tmdb.PageResult, error)
	topRatedFn        func(ct domain.ContentType, page int) (*tmdb.PageResult, error)
	discoverFn        func(ct domain.ContentType, filters map[string]string) (*tmdb.PageResult, error)
	recommendationsFn func(ct domain.ContentType, id, page int) (*tmdb.PageResult, error)
	similarFn         func(ct domain.ContentType, id, page int) (*tmdb.PageResult, error)
	searchKeywordFn   func(query string) (*tmdb.KeywordPage, error)
	byIDFn            func(ct domain.ContentType, id int, appendToResponse string) (tmdb.ContentItem, error)
	detailsFn         func(ct domain.ContentType, id int) (*tmdb.Details, error)
	externalIDsFn     func(ct domain.ContentType, id int) (*tmdb.ExternalIDs, error)
	genresFn          func(ct domain.ContentType) ([]tmdb.Genre, error)
	keywordsFn        func(ct domain.ContentType, id int) ([]tmdb.Keyword, error)
	findFn            func(externalID, source string) (*tmdb.FindResult, error)
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{calls: make(map[string]int)}
}

func (f *fakeCatalog) record(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeCatalog) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeCatalog) Popular(_ context.Context, ct domain.ContentType, page int) (*tmdb.PageResult, error) {
	f.record("popular")
	f.mu.Lock()
	f.popularPages = append(f.popularPages, page)
	f.mu.Unlock()
	if f.popularFn != nil {
		return f.popularFn(ct, page)
	}
	return &tmdb.PageResult{TotalPages: 1}, nil
}

func (f *fakeCatalog) TopRated(_ context.Context, ct domain.ContentType, page int) (*tmdb.PageResult, error) {
	f.record("top_rated")
	f.mu.Lock()
	f.topRatedPages = append(f.topRatedPages, page)
	f.mu.Unlock()
	if f.topRatedFn != nil {
		return f.topRatedFn(ct, page)
	}
	return &tmdb.PageResult{TotalPages: 1}, nil
}

func (f *fakeCatalog) Discover(_ context.Context, ct domain.ContentType, filters map[string]string) (*tmdb.PageResult, error) {
	f.record("discover")
	f.mu.Lock()
	f.discoverFilters = filters
	f.mu.Unlock()
	if f.discoverFn != nil {
		return f.discoverFn(ct, filters)
	}
	return &tmdb.PageResult{TotalPages: 1}, nil
}

func (f *fakeCatalog) Recommendations(_ context.Context, ct domain.ContentType, id, page int) (*tmdb.PageResult, error) {
	f.record("recommendations")
	f.mu.Lock()
	f.recommendationPages = append(f.recommendationPages, page)
	f.mu.Unlock()
	if f.recommendationsFn != nil {
		return f.recommendationsFn(ct, id, page)
	}
	return &tmdb.PageResult{TotalPages: 1}, nil
}

func (f *fakeCatalog) Similar(_ context.Context, ct domain.ContentType, id, page int) (*tmdb.PageResult, error) {
	f.record("similar")
	f.mu.Lock()
	f.similarPages = append(f.similarPages, page)
	f.mu.Unlock()
	if f.similarFn != nil {
		return f.similarFn(ct, id, page)
	}
	return &tmdb.PageResult{TotalPages: 1}, nil
}

func (f *fakeCatalog) SearchKeyword(_ context.Context, query string) (*tmdb.KeywordPage, error) {
	f.record("search_keyword")
	if f.searchKeywordFn != nil {
		return f.searchKeywordFn(query)
	}
	return &tmdb.KeywordPage{}, nil
}

func (f *fakeCatalog) ByID(_ context.Context, ct domain.ContentType, id int, appendToResponse string) (tmdb.ContentItem, error) {
	f.record("by_id")
	if f.byIDFn != nil {
		return f.byIDFn(ct, id, appendToResponse)
	}
	return tmdb.ContentItem{"id": id}, nil
}

func (f *fakeCatalog) Details(_ context.Context, ct domain.ContentType, id int) (*tmdb.Details, error) {
	f.record("details")
	if f.detailsFn != nil {
		return f.detailsFn(ct, id)
	}
	return &tmdb.Details{ID: id}, nil
}

func (f *fakeCatalog) ExternalIDs(_ context.Context, ct domain.ContentType, id int) (*tmdb.ExternalIDs, error) {
	f.record("external_ids")
	if f.externalIDsFn != nil {
		return f.externalIDsFn(ct, id)
	}
	return &tmdb.ExternalIDs{ID: id}, nil
}

func (f *fakeCatalog) Genres(_ context.Context, ct domain.ContentType) ([]tmdb.Genre, error) {
	f.record("genres")
	if f.genresFn != nil {
		return f.genresFn(ct)
	}
	return nil, nil
}

func (f *fakeCatalog) Keywords(_ context.Context, ct domain.ContentType, id int) ([]tmdb.Keyword, error) {
	f.record("keywords")
	if f.keywordsFn != nil {
		return f.keywordsFn(ct, id)
	}
	return nil, nil
}

func (f *fakeCatalog) FindByExternalID(_ context.Context, externalID, source string) (*tmdb.FindResult, error) {
	f.record("find")
	if f.findFn != nil {
		return f.findFn(externalID, source)
	}
	return &tmdb.FindResult{}, nil
}

func newTestService(catalog Catalog, cfg Config) *Service {
	return NewService(catalog, cache.New(time.Minute), cfg)
}

func pageLabeled(prefix string, page, totalPages, totalResults int) *tmdb.PageResult {
	return &tmdb.PageResult{
		TotalPages:   totalPages,
		TotalResults: totalResults,
		Results:      movieItems(fmt.Sprintf("%s-%d", prefix, page)),
	}
}

func TestFetchPagesIssuesExpectedPages(t *testing.T) {
	tests := []struct {
		name        string
		logicalPage int
		width       int
		wantPages   []int
	}{
		{name: "page 1 width 5", logicalPage: 1, width: 5, wantPages: []int{5, 4, 3, 2, 1}},
		{name: "page 2 width 3", logicalPage: 2, width: 3, wantPages: []int{6, 5, 4}},
		{name: "page 3 width 1", logicalPage: 3, width: 1, wantPages: []int{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := newFakeCatalog()
			catalog.popularFn = func(_ domain.ContentType, page int) (*tmdb.PageResult, error) {
				return pageLabeled("movie", page, 10, 200), nil
			}
			s := newTestService(catalog, Config{})

			result, err := s.popularMovies(context.Background(), tt.logicalPage, tt.width)
			require.NoError(t, err)

			assert.ElementsMatch(t, tt.wantPages, catalog.popularPages)
			assert.Equal(t, len(tt.wantPages), catalog.callCount("popular"))

			// Fold order is keyed by launch index: highest page first.
			wantTitles := make([]string, 0, len(tt.wantPages))
			for _, page := range tt.wantPages {
				wantTitles = append(wantTitles, fmt.Sprintf("movie-%d", page))
			}
			assert.Equal(t, wantTitles, itemTitles(result.Results))
		})
	}
}

func TestFetchPagesTakesSmallestTotals(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.popularFn = func(_ domain.ContentType, page int) (*tmdb.PageResult, error) {
		return pageLabeled("movie", page, 1, 20), nil
	}
	s := newTestService(catalog, Config{})

	result, err := s.popularMovies(context.Background(), 1, 5)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalPages)
	assert.Equal(t, 20, result.TotalResults)
}

func TestFetchPagesServedFromCache(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.popularFn = func(_ domain.ContentType, page int) (*tmdb.PageResult, error) {
		return pageLabeled("movie", page, 10, 200), nil
	}
	s := newTestService(catalog, Config{})

	_, err := s.popularMovies(context.Background(), 1, 5)
	require.NoError(t, err)
	_, err = s.popularMovies(context.Background(), 1, 5)
	require.NoError(t, err)

	assert.Equal(t, 5, catalog.callCount("popular"))
}

func TestFetchPagesFailurePropagatesInternally(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.popularFn = func(_ domain.ContentType, page int) (*tmdb.PageResult, error) {
		if page == 3 {
			return nil, errors.New("upstream unavailable")
		}
		return pageLabeled("movie", page, 10, 200), nil
	}
	s := newTestService(catalog, Config{})

	_, err := s.popularMovies(context.Background(), 1, 5)
	require.Error(t, err)

	// Every page still ran to completion behind the join barrier.
	assert.Equal(t, 5, catalog.callCount("popular"))
}

func TestPublicOperationsReturnEmptyOnFailure(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.popularFn = func(domain.ContentType, int) (*tmdb.PageResult, error) {
		return nil, errors.New("upstream unavailable")
	}
	s := newTestService(catalog, Config{})

	result := s.PopularMovies(context.Background(), 1)

	require.NotNil(t, result)
	assert.Zero(t, result.TotalPages)
	assert.Zero(t, result.TotalResults)
	assert.Empty(t, result.Results)
}

func TestAllMergesPopularAndTopAcrossTypes(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.popularFn = func(ct domain.ContentType, page int) (*tmdb.PageResult, error) {
		return pageLabeled("popular-"+string(ct), page, 4, 80), nil
	}
	catalog.topRatedFn = func(ct domain.ContentType, page int) (*tmdb.PageResult, error) {
		return pageLabeled("top-"+string(ct), page, 4, 80), nil
	}
	s := newTestService(catalog, Config{})

	result := s.All(context.Background(), 1, 1)

	assert.ElementsMatch(t, []string{
		"popular-movie-1",
		"popular-tv-1",
		"top-movie-1",
		"top-tv-1",
	}, itemTitles(result.Results))
	assert.Equal(t, 2, catalog.callCount("popular"))
	assert.Equal(t, 2, catalog.callCount("top_rated"))
}

func TestWidthOverride(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.popularFn = func(ct domain.ContentType, page int) (*tmdb.PageResult, error) {
		return pageLabeled(string(ct), page, 10, 200), nil
	}
	catalog.topRatedFn = func(ct domain.ContentType, page int) (*tmdb.PageResult, error) {
		return pageLabeled("top-"+string(ct), page, 10, 200), nil
	}
	s := newTestService(catalog, Config{PageMultiplier: 5})

	s.TV(context.Background(), 1, 2)

	assert.ElementsMatch(t, []int{2, 1}, catalog.popularPages)
	assert.ElementsMatch(t, []int{2, 1}, catalog.topRatedPages)
}

func TestDiscoverInvalidContentType(t *testing.T) {
	catalog := newFakeCatalog()
	s := newTestService(catalog, Config{})

	result := s.Discover(context.Background(), "music", map[string]string{"sort_by": "popularity.desc"})

	assert.Empty(t, result.Results)
	assert.Zero(t, catalog.callCount("discover"))
}

func TestDiscoverSubstitutesKeywordIDs(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.searchKeywordFn = func(query string) (*tmdb.KeywordPage, error) {
		switch query {
		case "anime":
			return &tmdb.KeywordPage{Results: []tmdb.Keyword{
				{ID: 42, Name: "Anime"},
				{ID: 7, Name: "anime music"},
			}}, nil
		default:
			return &tmdb.KeywordPage{Results: []tmdb.Keyword{{ID: 9, Name: "robot"}}}, nil
		}
	}
	s := newTestService(catalog, Config{})

	s.Discover(context.Background(), "tv", map[string]string{
		"keyword": "anime,robots",
		"sort_by": "popularity.desc",
	})

	require.Equal(t, 1, catalog.callCount("discover"))
	assert.Equal(t, "42", catalog.discoverFilters["with_keywords"])
	assert.Equal(t, "popularity.desc", catalog.discoverFilters["sort_by"])
	assert.NotContains(t, catalog.discoverFilters, "keyword")
}

func TestDiscoverUnresolvedKeywordDropsFilter(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.searchKeywordFn = func(string) (*tmdb.KeywordPage, error) {
		return &tmdb.KeywordPage{}, nil
	}
	s := newTestService(catalog, Config{})

	s.Discover(context.Background(), "movie", map[string]string{"keyword": "nonexistent"})

	require.Equal(t, 1, catalog.callCount("discover"))
	assert.NotContains(t, catalog.discoverFilters, "keyword")
	assert.NotContains(t, catalog.discoverFilters, "with_keywords")
}

func TestDiscoverCachesIdenticalFilterSets(t *testing.T) {
	catalog := newFakeCatalog()
	s := newTestService(catalog, Config{})

	filters := map[string]string{"sort_by": "popularity.desc", "with_genres": "16"}
	s.Discover(context.Background(), "tv", filters)
	s.Discover(context.Background(), "tv", filters)

	assert.Equal(t, 1, catalog.callCount("discover"))
}

func TestSimilarAndRecommendedFetchesAdditionalPages(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.recommendationsFn = func(_ domain.ContentType, _, page int) (*tmdb.PageResult, error) {
		return pageLabeled("rec", page, 3, 60), nil
	}
	catalog.similarFn = func(_ domain.ContentType, _, page int) (*tmdb.PageResult, error) {
		return pageLabeled("sim", page, 2, 40), nil
	}
	s := newTestService(catalog, Config{})

	result := s.SimilarAndRecommended(context.Background(), 550, "movie")

	assert.ElementsMatch(t, []int{1, 2, 3}, catalog.recommendationPages)
	assert.ElementsMatch(t, []int{1, 2}, catalog.similarPages)
	assert.ElementsMatch(t, []string{
		"rec-1", "rec-2", "rec-3",
		"sim-1", "sim-2",
	}, itemTitles(result.Results))
	assert.Equal(t, 2, result.TotalPages)
	assert.Equal(t, 40, result.TotalResults)
}

func TestSimilarAndRecommendedCapsStreamsAtFivePages(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.recommendationsFn = func(_ domain.ContentType, _, page int) (*tmdb.PageResult, error) {
		return pageLabeled("rec", page, 10, 200), nil
	}
	catalog.similarFn = func(_ domain.ContentType, _, page int) (*tmdb.PageResult, error) {
		return pageLabeled("sim", page, 10, 200), nil
	}
	s := newTestService(catalog, Config{})

	s.SimilarAndRecommended(context.Background(), 550, "tv")

	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, catalog.recommendationPages)
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, catalog.similarPages)
}

func TestSimilarAndRecommendedInvalidContentType(t *testing.T) {
	catalog := newFakeCatalog()
	s := newTestService(catalog, Config{})

	result := s.SimilarAndRecommended(context.Background(), 550, "music")

	assert.Empty(t, result.Results)
	assert.Zero(t, catalog.callCount("recommendations"))
	assert.Zero(t, catalog.callCount("similar"))
}

func TestGetByID(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.byIDFn = func(ct domain.ContentType, id int, appendToResponse string) (tmdb.ContentItem, error) {
		assert.Equal(t, domain.ContentTypeMovie, ct)
		assert.Equal(t, "reviews,keywords,videos,credits,images", appendToResponse)
		return tmdb.ContentItem{"id": id, "title": "Fight Club"}, nil
	}
	s := newTestService(catalog, Config{})

	item := s.GetByID(context.Background(), 550, "Movie")

	require.NotNil(t, item)
	assert.Equal(t, "Fight Club", item["title"])

	// Second lookup is served from cache.
	s.GetByID(context.Background(), 550, "movie")
	assert.Equal(t, 1, catalog.callCount("by_id"))
}

func TestGetByIDInvalidContentType(t *testing.T) {
	catalog := newFakeCatalog()
	s := newTestService(catalog, Config{})

	assert.Nil(t, s.GetByID(context.Background(), 550, "book"))
	assert.Zero(t, catalog.callCount("by_id"))
}

func TestGetExternalIDs(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.externalIDsFn = func(_ domain.ContentType, id int) (*tmdb.ExternalIDs, error) {
		return &tmdb.ExternalIDs{ID: id, IMDbID: "tt0137523"}, nil
	}
	s := newTestService(catalog, Config{})

	ids := s.GetExternalIDs(context.Background(), 550, "movie")

	require.NotNil(t, ids)
	assert.Equal(t, "tt0137523", ids.IMDbID)

	s.GetExternalIDs(context.Background(), 550, "movie")
	assert.Equal(t, 1, catalog.callCount("external_ids"))
}

func TestGetGenres(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.genresFn = func(ct domain.ContentType) ([]tmdb.Genre, error) {
		return []tmdb.Genre{{ID: 16, Name: "Animation"}}, nil
	}
	s := newTestService(catalog, Config{})

	genres := s.GetGenres(context.Background(), "tv")

	require.Len(t, genres, 1)
	assert.Equal(t, "Animation", genres[0].Name)

	s.GetGenres(context.Background(), "tv")
	assert.Equal(t, 1, catalog.callCount("genres"))
}

func TestGenreCachesIsolatedPerContentType(t *testing.T) {
	catalog := newFakeCatalog()
	s := newTestService(catalog, Config{})

	s.GetGenres(context.Background(), "tv")
	s.GetGenres(context.Background(), "movie")

	assert.Equal(t, 2, catalog.callCount("genres"))
}

func TestFindByExternalID(t *testing.T) {
	catalog := newFakeCatalog()
	var gotSource string
	catalog.findFn = func(externalID, source string) (*tmdb.FindResult, error) {
		gotSource = source
		return &tmdb.FindResult{MovieResults: movieItems("Fight Club")}, nil
	}
	s := newTestService(catalog, Config{})

	result := s.ImdbIDToTmdb(context.Background(), "tt0137523")
	require.NotNil(t, result)
	assert.Equal(t, "imdb_id", gotSource)

	s.TvdbIDToTmdb(context.Background(), "81189")
	assert.Equal(t, "tvdb_id", gotSource)
}

func TestFindByExternalIDFailureReturnsNil(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.findFn = func(string, string) (*tmdb.FindResult, error) {
		return nil, errors.New("upstream unavailable")
	}
	s := newTestService(catalog, Config{})

	assert.Nil(t, s.ImdbIDToTmdb(context.Background(), "tt0137523"))
}
