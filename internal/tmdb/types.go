// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tmdb

// ContentItem is a single metadata record from a TMDB listing. The engine
// only ever inspects the name/title discriminator; every other field passes
// through untouched to the consumer.
type ContentItem map[string]any

// Discriminator returns the field and value used for duplicate detection:
// "name" for series-like items, "title" for movie-like items. ok is false
// when the item carries neither.
func (ci ContentItem) Discriminator() (field, value string, ok bool) {
	if v, exists := ci["name"]; exists {
		if s, isString := v.(string); isString {
			return "name", s, true
		}
	}
	if v, exists := ci["title"]; exists {
		if s, isString := v.(string); isString {
			return "title", s, true
		}
	}
	return "", "", false
}

// PageResult is one page of listing results, or the merge of several pages.
type PageResult struct {
	Page         int           `json:"page,omitempty"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
	Results      []ContentItem `json:"results"`
}

// EmptyPageResult is the value public operations return on any failure.
func EmptyPageResult() *PageResult {
	return &PageResult{Results: []ContentItem{}}
}

// Keyword is a TMDB keyword record.
type Keyword struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// KeywordPage is a page of keyword search results.
type KeywordPage struct {
	Page         int       `json:"page"`
	TotalPages   int       `json:"total_pages"`
	TotalResults int       `json:"total_results"`
	Results      []Keyword `json:"results"`
}

// keywordsResponse covers both response shapes of the keywords endpoint:
// TV returns "results", movies return "keywords".
type keywordsResponse struct {
	ID       int       `json:"id"`
	Results  []Keyword `json:"results"`
	Keywords []Keyword `json:"keywords"`
}

// Genre is a TMDB genre record.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type genreListResponse struct {
	Genres []Genre `json:"genres"`
}

// ProductionCountry is a country entry on a movie detail record.
type ProductionCountry struct {
	ISO3166_1 string `json:"iso_3166_1"`
	Name      string `json:"name"`
}

// Details holds the subset of a detail record the classifier inspects.
type Details struct {
	ID                  int                 `json:"id"`
	Genres              []Genre             `json:"genres"`
	OriginCountry       []string            `json:"origin_country"`
	ProductionCountries []ProductionCountry `json:"production_countries"`
}

// ExternalIDs maps a TMDB ID to identifiers on other services.
type ExternalIDs struct {
	ID          int    `json:"id"`
	IMDbID      string `json:"imdb_id"`
	TVDBID      int    `json:"tvdb_id"`
	FacebookID  string `json:"facebook_id"`
	InstagramID string `json:"instagram_id"`
	TwitterID   string `json:"twitter_id"`
}

// FindResult is the response of the find-by-external-ID endpoint.
type FindResult struct {
	MovieResults []ContentItem `json:"movie_results"`
	TVResults    []ContentItem `json:"tv_results"`
}
