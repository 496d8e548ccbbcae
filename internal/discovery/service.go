// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package discovery aggregates paginated TMDB listings: it fans page
// requests out in parallel, merges and deduplicates the results, caches
// every upstream call and layers keyword resolution and anime detection on
// top.
package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/discovarr/internal/cache"
	"github.com/autobrr/discovarr/internal/domain"
	"github.com/autobrr/discovarr/internal/tmdb"
)

// Catalog is the upstream metadata source the aggregation engine runs
// against, implemented by the TMDB client.
type Catalog interface {
	Popular(ctx context.Context, contentType domain.ContentType, page int) (*tmdb.PageResult, error)
	TopRated(ctx context.Context, contentType domain.ContentType, page int) (*tmdb.PageResult, error)
	Discover(ctx context.Context, contentType domain.ContentType, filters map[string]string) (*tmdb.PageResult, error)
	Recommendations(ctx context.Context, contentType domain.ContentType, id, page int) (*tmdb.PageResult, error)
	Similar(ctx context.Context, contentType domain.ContentType, id, page int) (*tmdb.PageResult, error)
	SearchKeyword(ctx context.Context, query string) (*tmdb.KeywordPage, error)
	ByID(ctx context.Context, contentType domain.ContentType, id int, appendToResponse string) (tmdb.ContentItem, error)
	Details(ctx context.Context, contentType domain.ContentType, id int) (*tmdb.Details, error)
	ExternalIDs(ctx context.Context, contentType domain.ContentType, id int) (*tmdb.ExternalIDs, error)
	Genres(ctx context.Context, contentType domain.ContentType) ([]tmdb.Genre, error)
	Keywords(ctx context.Context, contentType domain.ContentType, id int) ([]tmdb.Keyword, error)
	FindByExternalID(ctx context.Context, externalID, source string) (*tmdb.FindResult, error)
}

// Cache region per logical endpoint and parameter shape.
const (
	regionPopularMovies        = "popular_movies"
	regionTopMovies            = "top_movies"
	regionPopularTV            = "popular_tv"
	regionTopTV                = "top_tv"
	regionDiscoverMovie        = "discover_movie"
	regionDiscoverTV           = "discover_tv"
	regionMovieRecommendations = "movie_recommendations"
	regionTVRecommendations    = "tv_recommendations"
	regionMovieSimilar         = "movie_similar"
	regionTVSimilar            = "tv_similar"
	regionKeywordSearch        = "keyword_search"
	regionMovieByID            = "movie_by_id"
	regionTVByID               = "tv_by_id"
	regionMovieExternalIDs     = "movie_external_ids"
	regionTVExternalIDs        = "tv_external_ids"
	regionMovieGenres          = "movie_genres"
	regionTVGenres             = "tv_genres"
)

// byIDAppendFields lists the sub-resources inlined on by-ID lookups.
const byIDAppendFields = "reviews,keywords,videos,credits,images"

const (
	defaultPageMultiplier       = 5
	defaultMaxConcurrentFetches = 20
	maxStreamPages              = 5
)

// Config carries the tunables of the aggregation engine.
type Config struct {
	// PageMultiplier is the fan-out width: one logical page expands to this
	// many consecutive upstream pages. Default 5.
	PageMultiplier int
	// AnimeCheckFallback enables the genre + origin country fallback when no
	// anime keyword is present.
	AnimeCheckFallback bool
	// MaxConcurrentFetches caps in-flight upstream calls across all
	// concurrent fan-outs. Default 20.
	MaxConcurrentFetches int
}

// Service is the aggregation facade over the upstream catalog. All exported
// operations swallow failures: they log and return an empty result, never an
// error.
type Service struct {
	catalog Catalog
	cache   *cache.Cache
	logger  zerolog.Logger

	sem chan struct{}

	mu                 sync.RWMutex
	pageMultiplier     int
	animeCheckFallback bool
}

func NewService(catalog Catalog, resultCache *cache.Cache, cfg Config) *Service {
	if cfg.PageMultiplier <= 0 {
		cfg.PageMultiplier = defaultPageMultiplier
	}
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = defaultMaxConcurrentFetches
	}

	return &Service{
		catalog:            catalog,
		cache:              resultCache,
		logger:             log.Logger.With().Str("module", "discovery").Logger(),
		sem:                make(chan struct{}, cfg.MaxConcurrentFetches),
		pageMultiplier:     cfg.PageMultiplier,
		animeCheckFallback: cfg.AnimeCheckFallback,
	}
}

// ApplyConfig updates the runtime tunables, used by config reload listeners.
func (s *Service) ApplyConfig(cfg *domain.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.PageMultiplier > 0 {
		s.pageMultiplier = cfg.PageMultiplier
	}
	s.animeCheckFallback = cfg.AnimeCheckFallback
}

// width resolves the fan-out width for a call: an explicit positive override
// wins, otherwise the configured page multiplier applies.
func (s *Service) width(multiplier []int) int {
	if len(multiplier) > 0 && multiplier[0] > 0 {
		return multiplier[0]
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pageMultiplier
}

func (s *Service) fallbackEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.animeCheckFallback
}

// CacheStats exposes the per-region cache snapshot for the stats endpoint.
func (s *Service) CacheStats() map[string]cache.RegionStats {
	return s.cache.Stats()
}

// All returns top and popular content across movies and TV, shuffled.
func (s *Service) All(ctx context.Context, page int, multiplier ...int) *tmdb.PageResult {
	result, err := s.all(ctx, page, s.width(multiplier))
	if err != nil {
		s.logger.Error().Err(err).Int("page", page).Msg("Failed to aggregate combined content")
		return tmdb.EmptyPageResult()
	}
	return shuffleResults(result)
}

// TV returns top and popular TV, shuffled.
func (s *Service) TV(ctx context.Context, page int, multiplier ...int) *tmdb.PageResult {
	result, err := s.tv(ctx, page, s.width(multiplier))
	if err != nil {
		s.logger.Error().Err(err).Int("page", page).Msg("Failed to aggregate TV content")
		return tmdb.EmptyPageResult()
	}
	return shuffleResults(result)
}

// Movies returns top and popular movies, shuffled.
func (s *Service) Movies(ctx context.Context, page int, multiplier ...int) *tmdb.PageResult {
	result, err := s.movies(ctx, page, s.width(multiplier))
	if err != nil {
		s.logger.Error().Err(err).Int("page", page).Msg("Failed to aggregate movie content")
		return tmdb.EmptyPageResult()
	}
	return shuffleResults(result)
}

// Popular returns popular movies and TV, shuffled.
func (s *Service) Popular(ctx context.Context, page int, multiplier ...int) *tmdb.PageResult {
	result, err := s.popular(ctx, page, s.width(multiplier))
	if err != nil {
		s.logger.Error().Err(err).Int("page", page).Msg("Failed to aggregate popular content")
		return tmdb.EmptyPageResult()
	}
	return shuffleResults(result)
}

// Top returns top-rated movies and TV, shuffled.
func (s *Service) Top(ctx context.Context, page int, multiplier ...int) *tmdb.PageResult {
	result, err := s.top(ctx, page, s.width(multiplier))
	if err != nil {
		s.logger.Error().Err(err).Int("page", page).Msg("Failed to aggregate top rated content")
		return tmdb.EmptyPageResult()
	}
	return shuffleResults(result)
}

// PopularMovies returns popular movies, shuffled.
func (s *Service) PopularMovies(ctx context.Context, page int, multiplier ...int) *tmdb.PageResult {
	result, err := s.popularMovies(ctx, page, s.width(multiplier))
	if err != nil {
		s.logger.Error().Err(err).Int("page", page).Msg("Failed to obtain popular movies")
		return tmdb.EmptyPageResult()
	}
	return shuffleResults(result)
}

// TopMovies returns top-rated movies, shuffled.
func (s *Service) TopMovies(ctx context.Context, page int, multiplier ...int) *tmdb.PageResult {
	result, err := s.topMovies(ctx, page, s.width(multiplier))
	if err != nil {
		s.logger.Error().Err(err).Int("page", page).Msg("Failed to obtain top rated movies")
		return tmdb.EmptyPageResult()
	}
	return shuffleResults(result)
}

// PopularTV returns popular TV, shuffled.
func (s *Service) PopularTV(ctx context.Context, page int, multiplier ...int) *tmdb.PageResult {
	result, err := s.popularTV(ctx, page, s.width(multiplier))
	if err != nil {
		s.logger.Error().Err(err).Int("page", page).Msg("Failed to obtain popular TV")
		return tmdb.EmptyPageResult()
	}
	return shuffleResults(result)
}

// TopTV returns top-rated TV, shuffled.
func (s *Service) TopTV(ctx context.Context, page int, multiplier ...int) *tmdb.PageResult {
	result, err := s.topTV(ctx, page, s.width(multiplier))
	if err != nil {
		s.logger.Error().Err(err).Int("page", page).Msg("Failed to obtain top rated TV")
		return tmdb.EmptyPageResult()
	}
	return shuffleResults(result)
}

// Discover performs a filtered discovery search. A "keyword" filter is
// resolved to TMDB keyword IDs first; unresolvable keywords drop the filter
// rather than failing the search.
func (s *Service) Discover(ctx context.Context, contentType string, filters map[string]string) *tmdb.PageResult {
	ct, ok := domain.ParseContentType(contentType)
	if !ok {
		s.logger.Warn().Str("contentType", contentType).Msg("Invalid content type in discover")
		return tmdb.EmptyPageResult()
	}

	result, err := s.discover(ctx, ct, filters)
	if err != nil {
		s.logger.Error().Err(err).Str("contentType", contentType).Msg("Failed to discover")
		return tmdb.EmptyPageResult()
	}
	return result
}

// SimilarAndRecommended merges the similar and recommended streams for a
// TMDB ID into one shuffled result.
func (s *Service) SimilarAndRecommended(ctx context.Context, id int, contentType string) *tmdb.PageResult {
	ct, ok := domain.ParseContentType(contentType)
	if !ok {
		s.logger.Warn().Str("contentType", contentType).Msg("Invalid content type in similar and recommended")
		return tmdb.EmptyPageResult()
	}

	result, err := s.similarAndRecommended(ctx, ct, id)
	if err != nil {
		s.logger.Error().Err(err).Int("id", id).Str("contentType", contentType).Msg("Failed to obtain merged similar and recommended")
		return tmdb.EmptyPageResult()
	}
	return shuffleResults(result)
}

// GetByID returns the full record for a TMDB ID, nil when the lookup fails.
func (s *Service) GetByID(ctx context.Context, id int, contentType string) tmdb.ContentItem {
	ct, ok := domain.ParseContentType(contentType)
	if !ok {
		s.logger.Warn().Str("contentType", contentType).Msg("Invalid content type in get by ID")
		return nil
	}

	region := byContentType(ct, regionMovieByID, regionTVByID)
	item, err := cache.GetOrCompute(ctx, s.cache, region, strconv.Itoa(id), func(ctx context.Context) (tmdb.ContentItem, error) {
		return s.catalog.ByID(ctx, ct, id, byIDAppendFields)
	})
	if err != nil {
		s.logger.Error().Err(err).Int("id", id).Str("contentType", contentType).Msg("Failed to obtain content by ID")
		return nil
	}
	return item
}

// GetExternalIDs returns the external service identifiers for a TMDB ID,
// nil when the lookup fails.
func (s *Service) GetExternalIDs(ctx context.Context, id int, contentType string) *tmdb.ExternalIDs {
	ct, ok := domain.ParseContentType(contentType)
	if !ok {
		s.logger.Warn().Str("contentType", contentType).Msg("Invalid content type in get external IDs")
		return nil
	}

	region := byContentType(ct, regionMovieExternalIDs, regionTVExternalIDs)
	ids, err := cache.GetOrCompute(ctx, s.cache, region, strconv.Itoa(id), func(ctx context.Context) (*tmdb.ExternalIDs, error) {
		return s.catalog.ExternalIDs(ctx, ct, id)
	})
	if err != nil {
		s.logger.Error().Err(err).Int("id", id).Str("contentType", contentType).Msg("Failed to obtain external IDs")
		return nil
	}
	return ids
}

// GetGenres returns the genre list for a content type, nil on failure.
func (s *Service) GetGenres(ctx context.Context, contentType string) []tmdb.Genre {
	ct, ok := domain.ParseContentType(contentType)
	if !ok {
		s.logger.Warn().Str("contentType", contentType).Msg("Invalid content type in get genres")
		return nil
	}

	region := byContentType(ct, regionMovieGenres, regionTVGenres)
	genres, err := cache.GetOrCompute(ctx, s.cache, region, "list", func(ctx context.Context) ([]tmdb.Genre, error) {
		return s.catalog.Genres(ctx, ct)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("contentType", contentType).Msg("Failed to obtain genres")
		return nil
	}
	return genres
}

// ImdbIDToTmdb resolves an IMDB ID to TMDB records, nil on failure.
func (s *Service) ImdbIDToTmdb(ctx context.Context, imdbID string) *tmdb.FindResult {
	result, err := s.catalog.FindByExternalID(ctx, imdbID, "imdb_id")
	if err != nil {
		s.logger.Error().Err(err).Str("imdbId", imdbID).Msg("Failed to resolve IMDB ID")
		return nil
	}
	return result
}

// TvdbIDToTmdb resolves a TVDB ID to TMDB records, nil on failure.
func (s *Service) TvdbIDToTmdb(ctx context.Context, tvdbID string) *tmdb.FindResult {
	result, err := s.catalog.FindByExternalID(ctx, tvdbID, "tvdb_id")
	if err != nil {
		s.logger.Error().Err(err).Str("tvdbId", tvdbID).Msg("Failed to resolve TVDB ID")
		return nil
	}
	return result
}

// Internal operations. These return errors so tests can tell a failed
// aggregation apart from a legitimately empty one; the exported wrappers
// flatten both to an empty result.

func (s *Service) all(ctx context.Context, page, width int) (*tmdb.PageResult, error) {
	popular, err := s.popular(ctx, page, width)
	if err != nil {
		return nil, err
	}
	top, err := s.top(ctx, page, width)
	if err != nil {
		return nil, err
	}
	return mergeResults(popular, top), nil
}

func (s *Service) tv(ctx context.Context, page, width int) (*tmdb.PageResult, error) {
	popular, err := s.popularTV(ctx, page, width)
	if err != nil {
		return nil, err
	}
	top, err := s.topTV(ctx, page, width)
	if err != nil {
		return nil, err
	}
	return mergeResults(popular, top), nil
}

func (s *Service) movies(ctx context.Context, page, width int) (*tmdb.PageResult, error) {
	popular, err := s.popularMovies(ctx, page, width)
	if err != nil {
		return nil, err
	}
	top, err := s.topMovies(ctx, page, width)
	if err != nil {
		return nil, err
	}
	return mergeResults(popular, top), nil
}

func (s *Service) popular(ctx context.Context, page, width int) (*tmdb.PageResult, error) {
	movies, err := s.popularMovies(ctx, page, width)
	if err != nil {
		return nil, err
	}
	tv, err := s.popularTV(ctx, page, width)
	if err != nil {
		return nil, err
	}
	return mergeResults(movies, tv), nil
}

func (s *Service) top(ctx context.Context, page, width int) (*tmdb.PageResult, error) {
	movies, err := s.topMovies(ctx, page, width)
	if err != nil {
		return nil, err
	}
	tv, err := s.topTV(ctx, page, width)
	if err != nil {
		return nil, err
	}
	return mergeResults(movies, tv), nil
}

func (s *Service) popularMovies(ctx context.Context, page, width int) (*tmdb.PageResult, error) {
	return s.fetchPages(ctx, regionPopularMovies, func(ctx context.Context, page int) (*tmdb.PageResult, error) {
		return s.catalog.Popular(ctx, domain.ContentTypeMovie, page)
	}, page, width)
}

func (s *Service) topMovies(ctx context.Context, page, width int) (*tmdb.PageResult, error) {
	return s.fetchPages(ctx, regionTopMovies, func(ctx context.Context, page int) (*tmdb.PageResult, error) {
		return s.catalog.TopRated(ctx, domain.ContentTypeMovie, page)
	}, page, width)
}

func (s *Service) popularTV(ctx context.Context, page, width int) (*tmdb.PageResult, error) {
	return s.fetchPages(ctx, regionPopularTV, func(ctx context.Context, page int) (*tmdb.PageResult, error) {
		return s.catalog.Popular(ctx, domain.ContentTypeTV, page)
	}, page, width)
}

func (s *Service) topTV(ctx context.Context, page, width int) (*tmdb.PageResult, error) {
	return s.fetchPages(ctx, regionTopTV, func(ctx context.Context, page int) (*tmdb.PageResult, error) {
		return s.catalog.TopRated(ctx, domain.ContentTypeTV, page)
	}, page, width)
}

func (s *Service) discover(ctx context.Context, ct domain.ContentType, filters map[string]string) (*tmdb.PageResult, error) {
	resolved := make(map[string]string, len(filters))
	for k, v := range filters {
		resolved[k] = v
	}

	// Substitute keyword strings for their TMDB IDs. An unresolvable keyword
	// drops the filter, matching the behavior of the keyword resolver.
	if keyword, ok := resolved["keyword"]; ok {
		if ids := s.KeywordIDs(ctx, splitKeywords(keyword)...); len(ids) > 0 {
			resolved["with_keywords"] = joinIDs(ids)
		}
		delete(resolved, "keyword")
	}

	region := byContentType(ct, regionDiscoverMovie, regionDiscoverTV)
	return cache.GetOrCompute(ctx, s.cache, region, filterKey(resolved), func(ctx context.Context) (*tmdb.PageResult, error) {
		return s.catalog.Discover(ctx, ct, resolved)
	})
}

func (s *Service) similarAndRecommended(ctx context.Context, ct domain.ContentType, id int) (*tmdb.PageResult, error) {
	// Page 1 of each stream is fetched serially to learn its page count.
	recommendedFirst, err := s.recommended(ctx, ct, id, 1)
	if err != nil {
		return nil, err
	}
	similarFirst, err := s.similar(ctx, ct, id, 1)
	if err != nil {
		return nil, err
	}

	var tasks []*task[*tmdb.PageResult]
	for page := 2; page <= min(recommendedFirst.TotalPages, maxStreamPages); page++ {
		page := page
		tasks = append(tasks, spawn(s.sem, func() (*tmdb.PageResult, error) {
			return s.recommended(ctx, ct, id, page)
		}))
	}
	for page := 2; page <= min(similarFirst.TotalPages, maxStreamPages); page++ {
		page := page
		tasks = append(tasks, spawn(s.sem, func() (*tmdb.PageResult, error) {
			return s.similar(ctx, ct, id, page)
		}))
	}

	merged := mergeResults(recommendedFirst, similarFirst)

	// Merge in start order behind the join barrier.
	var firstErr error
	for _, t := range tasks {
		result, err := t.join()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if firstErr == nil {
			merged = mergeResults(merged, result)
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return merged, nil
}

func (s *Service) recommended(ctx context.Context, ct domain.ContentType, id, page int) (*tmdb.PageResult, error) {
	region := byContentType(ct, regionMovieRecommendations, regionTVRecommendations)
	return cache.GetOrCompute(ctx, s.cache, region, pageKey(id, page), func(ctx context.Context) (*tmdb.PageResult, error) {
		return s.catalog.Recommendations(ctx, ct, id, page)
	})
}

func (s *Service) similar(ctx context.Context, ct domain.ContentType, id, page int) (*tmdb.PageResult, error) {
	region := byContentType(ct, regionMovieSimilar, regionTVSimilar)
	return cache.GetOrCompute(ctx, s.cache, region, pageKey(id, page), func(ctx context.Context) (*tmdb.PageResult, error) {
		return s.catalog.Similar(ctx, ct, id, page)
	})
}

func byContentType(ct domain.ContentType, movie, tv string) string {
	if ct == domain.ContentTypeTV {
		return tv
	}
	return movie
}

func pageKey(id, page int) string {
	return fmt.Sprintf("%dpage%d", id, page)
}

// filterKey produces a stable cache key for a filter set: url.Values.Encode
// sorts by parameter name, so identical filter maps always yield identical
// keys.
func filterKey(filters map[string]string) string {
	values := url.Values{}
	for k, v := range filters {
		values.Set(k, v)
	}
	return values.Encode()
}

func splitKeywords(keyword string) []string {
	parts := strings.Split(keyword, ",")
	keywords := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			keywords = append(keywords, trimmed)
		}
	}
	return keywords
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
