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
)

// sliceBody is the request payload for creating or updating a slice.
type sliceBody struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SliceList lists all editorial slices with their member counts.
func (h *Handler) SliceList(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	slices, err := h.db.ListEditorialSlices(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithMeta(slices, &APIMeta{Count: len(slices)})
}

// SliceCreate creates a new editorial slice.
func (h *Handler) SliceCreate(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var body sliceBody
	if err := decodeBody(w, r, &body); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if body.ID == "" || body.Name == "" {
		rw.BadRequest("id and name are required")
		return
	}

	err := h.db.CreateEditorialSlice(r.Context(), body.ID, body.Name, body.Description)
	if errors.Is(err, database.ErrSliceExists) {
		rw.Conflict("slice already exists: " + body.ID)
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	slice, err := h.db.GetEditorialSlice(r.Context(), body.ID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Created(slice)
}

// SliceGet returns one editorial slice.
func (h *Handler) SliceGet(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id := chi.URLParam(r, "id")
	slice, err := h.db.GetEditorialSlice(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("no slice with id " + id)
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(slice)
}

// SliceUpdate renames or redescribes an editorial slice.
func (h *Handler) SliceUpdate(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id := chi.URLParam(r, "id")
	var body sliceBody
	if err := decodeBody(w, r, &body); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if body.Name == "" {
		rw.BadRequest("name is required")
		return
	}

	err := h.db.UpdateEditorialSlice(r.Context(), id, body.Name, body.Description)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("no slice with id " + id)
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	slice, err := h.db.GetEditorialSlice(r.Context(), id)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(slice)
}

// SliceDelete removes an editorial slice and its memberships.
func (h *Handler) SliceDelete(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id := chi.URLParam(r, "id")
	err := h.db.DeleteEditorialSlice(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("no slice with id " + id)
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.NoContent()
}

// SliceItems returns the items belonging to a slice.
func (h *Handler) SliceItems(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id := chi.URLParam(r, "id")
	if _, err := h.db.GetEditorialSlice(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("no slice with id " + id)
			return
		}
		rw.DatabaseError(err)
		return
	}

	items, err := h.db.SliceItems(r.Context(), id)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithMeta(items, &APIMeta{Count: len(items)})
}

// SliceAddItem adds an item to a slice. The item must exist in the catalog.
func (h *Handler) SliceAddItem(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	sliceID := chi.URLParam(r, "id")
	itemID := chi.URLParam(r, "itemID")

	if _, err := h.db.GetEditorialSlice(r.Context(), sliceID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("no slice with id " + sliceID)
			return
		}
		rw.DatabaseError(err)
		return
	}
	if _, err := h.db.GetItemByID(r.Context(), itemID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("no item with id " + itemID)
			return
		}
		rw.DatabaseError(err)
		return
	}

	if err := h.db.AddItemToSlice(r.Context(), sliceID, itemID); err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.NoContent()
}

// SliceRemoveItem removes an item from a slice. Removing an item that is
// not a member is a no-op.
func (h *Handler) SliceRemoveItem(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	sliceID := chi.URLParam(r, "id")
	itemID := chi.URLParam(r, "itemID")

	if err := h.db.RemoveItemFromSlice(r.Context(), sliceID, itemID); err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.NoContent()
}
