// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package discovery

import (
	"math/rand"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/discovarr/internal/tmdb"
)

// mergeResults combines two page results into a new one: totals take the
// smaller value, results are concatenated and deduplicated. The inputs are
// not modified.
func mergeResults(a, b *tmdb.PageResult) *tmdb.PageResult {
	combined := make([]tmdb.ContentItem, 0, len(a.Results)+len(b.Results))
	combined = append(combined, a.Results...)
	combined = append(combined, b.Results...)

	return &tmdb.PageResult{
		TotalPages:   min(a.TotalPages, b.TotalPages),
		TotalResults: min(a.TotalResults, b.TotalResults),
		Results:      dedupeItems(combined),
	}
}

// dedupeItems removes duplicate content in a single left-to-right pass,
// keeping the first occurrence of each discriminator value. Series (name)
// and movies (title) are tracked separately so a series and a movie sharing
// a string do not collide. Items carrying neither field are kept and logged.
func dedupeItems(items []tmdb.ContentItem) []tmdb.ContentItem {
	seenNames := make(map[string]struct{})
	seenTitles := make(map[string]struct{})

	deduped := make([]tmdb.ContentItem, 0, len(items))
	for _, item := range items {
		field, value, ok := item.Discriminator()
		if !ok {
			log.Warn().Interface("item", item).Msg("Content item has neither name nor title, keeping it")
			deduped = append(deduped, item)
			continue
		}

		seen := seenTitles
		if field == "name" {
			seen = seenNames
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		deduped = append(deduped, item)
	}
	return deduped
}

// shuffleResults returns a copy of the page result with its items in uniform
// random order. Only public operations shuffle, so cached values and fan-out
// folds always see deterministic order.
func shuffleResults(result *tmdb.PageResult) *tmdb.PageResult {
	shuffled := &tmdb.PageResult{
		Page:         result.Page,
		TotalPages:   result.TotalPages,
		TotalResults: result.TotalResults,
		Results:      slices.Clone(result.Results),
	}
	rand.Shuffle(len(shuffled.Results), func(i, j int) {
		shuffled.Results[i], shuffled.Results[j] = shuffled.Results[j], shuffled.Results[i]
	})
	return shuffled
}
