// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/autobrr/discovarr/internal/discovery"
)

// singleTypeMultiplier is the fan-out width used for single-type listings;
// combined listings already cover twice the content per page.
const singleTypeMultiplier = 2

// DiscoveryHandler exposes the aggregation facade as a JSON API.
type DiscoveryHandler struct {
	service *discovery.Service
}

func NewDiscoveryHandler(service *discovery.Service) *DiscoveryHandler {
	return &DiscoveryHandler{service: service}
}

func (h *DiscoveryHandler) Routes(r chi.Router) {
	r.Route("/discover", func(r chi.Router) {
		r.Get("/all", h.All)
		r.Get("/movies", h.Movies)
		r.Get("/tv", h.TV)
		r.Get("/popular", h.Popular)
		r.Get("/top", h.Top)
		r.Get("/search", h.Search)
	})

	r.Get("/genres/{contentType}", h.Genres)

	r.Route("/{contentType}/{id}", func(r chi.Router) {
		r.Get("/", h.ByID)
		r.Get("/similar", h.SimilarAndRecommended)
		r.Get("/external-ids", h.ExternalIDs)
		r.Get("/anime", h.Anime)
	})

	r.Get("/find/imdb/{id}", h.FindIMDB)
	r.Get("/find/tvdb/{id}", h.FindTVDB)

	r.Get("/cache/stats", h.CacheStats)
}

func (h *DiscoveryHandler) All(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.service.All(r.Context(), pageParam(r)))
}

func (h *DiscoveryHandler) Movies(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.service.Movies(r.Context(), pageParam(r), multiplierParam(r, singleTypeMultiplier)))
}

func (h *DiscoveryHandler) TV(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.service.TV(r.Context(), pageParam(r), multiplierParam(r, singleTypeMultiplier)))
}

func (h *DiscoveryHandler) Popular(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.service.Popular(r.Context(), pageParam(r)))
}

func (h *DiscoveryHandler) Top(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.service.Top(r.Context(), pageParam(r)))
}

// Search performs a filtered discovery search. The type parameter selects
// movie or tv; every other query parameter passes through as an upstream
// filter, with keyword resolved to TMDB keyword IDs by the facade.
func (h *DiscoveryHandler) Search(w http.ResponseWriter, r *http.Request) {
	contentType := r.URL.Query().Get("type")
	if contentType == "" {
		RespondError(w, http.StatusBadRequest, "type parameter is required")
		return
	}

	filters := make(map[string]string)
	for key, values := range r.URL.Query() {
		if key == "type" || len(values) == 0 {
			continue
		}
		filters[key] = values[0]
	}

	RespondJSON(w, http.StatusOK, h.service.Discover(r.Context(), contentType, filters))
}

func (h *DiscoveryHandler) Genres(w http.ResponseWriter, r *http.Request) {
	genres := h.service.GetGenres(r.Context(), chi.URLParam(r, "contentType"))
	if genres == nil {
		RespondJSON(w, http.StatusOK, []any{})
		return
	}
	RespondJSON(w, http.StatusOK, genres)
}

func (h *DiscoveryHandler) ByID(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	item := h.service.GetByID(r.Context(), id, chi.URLParam(r, "contentType"))
	if item == nil {
		RespondError(w, http.StatusNotFound, "content not found")
		return
	}
	RespondJSON(w, http.StatusOK, item)
}

func (h *DiscoveryHandler) SimilarAndRecommended(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	RespondJSON(w, http.StatusOK, h.service.SimilarAndRecommended(r.Context(), id, chi.URLParam(r, "contentType")))
}

func (h *DiscoveryHandler) ExternalIDs(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	ids := h.service.GetExternalIDs(r.Context(), id, chi.URLParam(r, "contentType"))
	if ids == nil {
		RespondError(w, http.StatusNotFound, "external IDs not found")
		return
	}
	RespondJSON(w, http.StatusOK, ids)
}

func (h *DiscoveryHandler) Anime(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"id":    id,
		"anime": h.service.IsAnime(r.Context(), id, chi.URLParam(r, "contentType")),
	})
}

func (h *DiscoveryHandler) FindIMDB(w http.ResponseWriter, r *http.Request) {
	result := h.service.ImdbIDToTmdb(r.Context(), chi.URLParam(r, "id"))
	if result == nil {
		RespondError(w, http.StatusNotFound, "no TMDB match for IMDB ID")
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

func (h *DiscoveryHandler) FindTVDB(w http.ResponseWriter, r *http.Request) {
	result := h.service.TvdbIDToTmdb(r.Context(), chi.URLParam(r, "id"))
	if result == nil {
		RespondError(w, http.StatusNotFound, "no TMDB match for TVDB ID")
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

func (h *DiscoveryHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.service.CacheStats())
}

func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// multiplierParam returns the fan-out width for a listing request: an
// explicit multiplier query parameter wins over the handler default.
func multiplierParam(r *http.Request, fallback int) int {
	multiplier, err := strconv.Atoi(r.URL.Query().Get("multiplier"))
	if err != nil || multiplier < 1 {
		return fallback
	}
	return multiplier
}

func idParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		RespondError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
