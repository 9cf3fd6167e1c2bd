// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storepulse/storepulse/internal/database"
	"github.com/storepulse/storepulse/internal/models"
)

// categoryResponse bundles the category reference data with its ranked items.
type categoryResponse struct {
	Category *models.CategoryInfo `json:"category"`
	Items    []models.RankedItem  `json:"items"`
}

// Categories returns the category reference data.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	categories, err := h.db.ListCategories(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithMeta(categories, &APIMeta{Count: len(categories)})
}

// Category returns the ranked top items for one category together with the
// category reference data.
func (h *Handler) Category(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id := chi.URLParam(r, "id")
	if !models.ValidCategory(id) {
		rw.NotFound("unknown category: " + id)
		return
	}

	limit, err := h.limitParam(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	info, err := h.db.GetCategory(r.Context(), id)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		rw.DatabaseError(err)
		return
	}

	items, err := h.db.CategoryTopItems(r.Context(), models.Category(id), limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithMeta(categoryResponse{Category: info, Items: items}, &APIMeta{
		Count: len(items),
		Limit: limit,
	})
}

// Items returns the ranked top items for the category named in the query.
func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	category := r.URL.Query().Get("category")
	if category == "" {
		rw.BadRequest("category query parameter is required")
		return
	}
	if !models.ValidCategory(category) {
		rw.NotFound("unknown category: " + category)
		return
	}

	limit, err := h.limitParam(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	items, err := h.db.CategoryTopItems(r.Context(), models.Category(category), limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithMeta(items, &APIMeta{Count: len(items), Limit: limit})
}

// ItemByName returns a single item looked up by its package name.
func (h *Handler) ItemByName(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	name := chi.URLParam(r, "name")
	item, err := h.db.GetItemByName(r.Context(), name)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("no item named " + name)
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(item)
}

// ItemScoreHistory returns the archived score rows for an item, newest first.
func (h *Handler) ItemScoreHistory(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	name := chi.URLParam(r, "name")
	item, err := h.db.GetItemByName(r.Context(), name)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("no item named " + name)
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	history, err := h.db.ScoreHistoryForItem(r.Context(), item.ID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithMeta(history, &APIMeta{Count: len(history)})
}
