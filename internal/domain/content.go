// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "strings"

// ContentType identifies the TMDB media kind an operation targets.
type ContentType string

const (
	ContentTypeMovie ContentType = "movie"
	ContentTypeTV    ContentType = "tv"
)

// ParseContentType normalizes a user-supplied content type string.
// The second return value reports whether the input was valid.
func ParseContentType(s string) (ContentType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie":
		return ContentTypeMovie, true
	case "tv":
		return ContentTypeTV, true
	default:
		return "", false
	}
}
