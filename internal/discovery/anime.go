// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package discovery

import (
	"context"
	"slices"
	"strings"

	"github.com/autobrr/discovarr/internal/domain"
	"github.com/autobrr/discovarr/internal/tmdb"
)

// IsAnime reports whether a TMDB ID should be treated as anime. The check is
// keyword-driven: any keyword named "anime" decides immediately. When the
// fallback is enabled, content with an Animation genre and Japanese origin
// also qualifies. Failures at any step yield false, never an error.
func (s *Service) IsAnime(ctx context.Context, id int, contentType string) bool {
	ct, ok := domain.ParseContentType(contentType)
	if !ok {
		s.logger.Warn().Str("contentType", contentType).Msg("Invalid content type in anime check")
		return false
	}

	isAnime, err := s.isAnime(ctx, ct, id)
	if err != nil {
		s.logger.Error().Err(err).Int("id", id).Str("contentType", contentType).Msg("Failed to check if content is anime")
		return false
	}

	if !isAnime {
		s.logger.Debug().Int("id", id).Str("contentType", contentType).Msg("Content is not anime")
	}
	return isAnime
}

func (s *Service) isAnime(ctx context.Context, ct domain.ContentType, id int) (bool, error) {
	keywords, err := s.catalog.Keywords(ctx, ct, id)
	if err != nil {
		return false, err
	}

	for _, keyword := range keywords {
		if strings.EqualFold(keyword.Name, "anime") {
			return true, nil
		}
	}

	if !s.fallbackEnabled() {
		return false, nil
	}

	details, err := s.catalog.Details(ctx, ct, id)
	if err != nil {
		return false, err
	}

	if !hasGenre(details.Genres, "Animation") {
		return false, nil
	}

	switch ct {
	case domain.ContentTypeTV:
		return slices.Contains(details.OriginCountry, "JP"), nil
	case domain.ContentTypeMovie:
		for _, country := range details.ProductionCountries {
			if country.ISO3166_1 == "JP" {
				return true, nil
			}
		}
	}
	return false, nil
}

func hasGenre(genres []tmdb.Genre, name string) bool {
	for _, genre := range genres {
		if genre.Name == name {
			return true
		}
	}
	return false
}
