// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package discovery

import (
	"context"
	"strings"

	"github.com/autobrr/discovarr/internal/cache"
	"github.com/autobrr/discovarr/internal/tmdb"
)

// KeywordIDs resolves keyword strings to TMDB keyword IDs through cached
// keyword searches. A keyword matches a search result when the names are
// equal ignoring case; every exact match is collected, so an ambiguous
// keyword contributes all of its IDs. Returns nil when no input was given or
// nothing resolved.
func (s *Service) KeywordIDs(ctx context.Context, keywords ...string) []int {
	if len(keywords) == 0 {
		s.logger.Warn().Msg("No keywords provided for resolution")
		return nil
	}

	ids, err := s.keywordIDs(ctx, keywords)
	if err != nil {
		s.logger.Error().Err(err).Strs("keywords", keywords).Msg("Failed to resolve keywords")
		return nil
	}
	if len(ids) == 0 {
		s.logger.Debug().Strs("keywords", keywords).Msg("Keywords not found")
		return nil
	}
	return ids
}

func (s *Service) keywordIDs(ctx context.Context, keywords []string) ([]int, error) {
	var ids []int
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}

		search, err := cache.GetOrCompute(ctx, s.cache, regionKeywordSearch, keyword, func(ctx context.Context) (*tmdb.KeywordPage, error) {
			return s.catalog.SearchKeyword(ctx, keyword)
		})
		if err != nil {
			return nil, err
		}

		for _, result := range search.Results {
			if strings.EqualFold(result.Name, keyword) {
				ids = append(ids, result.ID)
			}
		}
	}
	return ids, nil
}
