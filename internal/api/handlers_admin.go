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

// CategoryExcluded lists the manually excluded items for a category.
func (h *Handler) CategoryExcluded(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id := chi.URLParam(r, "id")
	if !models.ValidCategory(id) {
		rw.NotFound("unknown category: " + id)
		return
	}

	items, err := h.db.CategoryExcludedItems(r.Context(), models.Category(id))
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithMeta(items, &APIMeta{Count: len(items)})
}

// ExcludeItem marks an item's current score row in a category as excluded.
func (h *Handler) ExcludeItem(w http.ResponseWriter, r *http.Request) {
	h.setExclude(w, r, true)
}

// IncludeItem clears the exclusion flag on an item's current score row.
func (h *Handler) IncludeItem(w http.ResponseWriter, r *http.Request) {
	h.setExclude(w, r, false)
}

func (h *Handler) setExclude(w http.ResponseWriter, r *http.Request, exclude bool) {
	rw := NewResponseWriter(w, r)

	category := chi.URLParam(r, "id")
	itemID := chi.URLParam(r, "itemID")
	if !models.ValidCategory(category) {
		rw.NotFound("unknown category: " + category)
		return
	}

	found, err := h.db.SetScoreExclude(r.Context(), models.Category(category), itemID, exclude)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if !found {
		rw.NotFound("no current score for item in category")
		return
	}

	h.logger.Info().
		Str("subject", SubjectFromContext(r.Context())).
		Str("category", category).
		Str("item_id", itemID).
		Bool("exclude", exclude).
		Msg("score exclusion changed")

	rw.Success(map[string]interface{}{
		"item_id":  itemID,
		"category": category,
		"exclude":  exclude,
	})
}

// settingBody is the request payload for writing a setting.
type settingBody struct {
	Value string `json:"value"`
}

// SettingGet returns one setting value by key.
func (h *Handler) SettingGet(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	key := chi.URLParam(r, "key")
	value, err := h.db.GetSetting(r.Context(), key)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("no setting named " + key)
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(models.Setting{Key: key, Value: value})
}

// SettingPut writes one setting value.
func (h *Handler) SettingPut(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	key := chi.URLParam(r, "key")
	var body settingBody
	if err := decodeBody(w, r, &body); err != nil {
		rw.BadRequest(err.Error())
		return
	}

	if err := h.db.SetSetting(r.Context(), key, body.Value); err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(models.Setting{Key: key, Value: body.Value})
}
