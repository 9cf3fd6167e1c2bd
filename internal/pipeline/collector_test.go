// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepulse/storepulse/internal/config"
	"github.com/storepulse/storepulse/internal/models"
)

type fakeUpserter struct {
	pages [][]models.Item
	err   error
}

func (f *fakeUpserter) UpsertItems(_ context.Context, items []models.Item) error {
	if f.err != nil {
		return f.err
	}
	f.pages = append(f.pages, items)
	return nil
}

func (f *fakeUpserter) allItems() []models.Item {
	var out []models.Item
	for _, page := range f.pages {
		out = append(out, page...)
	}
	return out
}

func catalogRecordJSON(id, name string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"package_name": %q,
		"title": "Title",
		"summary": "A summary",
		"description": "A long enough description for eligibility purposes.",
		"version": "1.2.3",
		"publisher": "acme",
		"revision": 42,
		"links": {
			"website": ["https://example.com", "https://mirror.example.com"],
			"contact": ["mailto:dev@example.com"],
			"issues": ["https://bugs.example.com"]
		},
		"media": [
			{"type": "screenshot", "url": "https://cdn.example.com/shot.png"},
			{"type": "icon", "url": "https://cdn.example.com/icon.png"}
		],
		"developer_validation": "verified",
		"license": "MIT",
		"last_updated": "2026-07-25T14:03:02Z"
	}`, id, name)
}

func newCatalogTestServer(t *testing.T, handler http.HandlerFunc) *CatalogClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewCatalogClient(&config.CatalogConfig{
		BaseURL:     srv.URL,
		PageTimeout: 5 * time.Second,
		RateLimit:   1000,
		RateBurst:   1000,
	})
}

func TestCollectorPaginatesAndUpserts(t *testing.T) {
	client := newCatalogTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.RawQuery, "fields=")

		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprintf(w, `{
				"_embedded": {"packages": [%s, %s]},
				"_links": {"next": {"href": "/api/v1/packages/search?page=2"}}
			}`, catalogRecordJSON("id-a", "alpha"), catalogRecordJSON("id-b", "beta"))
		case "2":
			fmt.Fprintf(w, `{
				"_embedded": {"packages": [%s]},
				"_links": {"self": {"href": "/api/v1/packages/search?page=2"}}
			}`, catalogRecordJSON("id-c", "gamma"))
		default:
			t.Errorf("unexpected page request: %s", r.URL.RawQuery)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	store := &fakeUpserter{}
	collector := NewCollector(client, store)

	count, err := collector.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// one upsert per page
	require.Len(t, store.pages, 2)
	assert.Len(t, store.pages[0], 2)
	assert.Len(t, store.pages[1], 1)
}

func TestCollectorNormalizesRecords(t *testing.T) {
	client := newCatalogTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"_embedded": {"packages": [%s]}, "_links": {}}`,
			catalogRecordJSON("id-a", "alpha"))
	})

	store := &fakeUpserter{}
	_, err := NewCollector(client, store).Collect(context.Background())
	require.NoError(t, err)

	items := store.allItems()
	require.Len(t, items, 1)
	item := items[0]

	assert.Equal(t, "id-a", item.ID)
	assert.Equal(t, "alpha", item.Name)
	assert.Equal(t, "https://example.com", item.Website, "first website URL wins")
	assert.Equal(t, "mailto:dev@example.com", item.Contact)
	assert.Equal(t, "https://cdn.example.com/icon.png", item.Icon, "icon comes from the icon media entry")
	assert.Equal(t, 42, item.Revision)
	assert.Equal(t, time.Date(2026, 7, 25, 14, 3, 2, 0, time.UTC), item.LastUpdated)
	assert.Len(t, item.Media, 2)
}

func TestCollectorMissingOptionalFields(t *testing.T) {
	client := newCatalogTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"_embedded": {"packages": [{
				"id": "bare",
				"package_name": "bare",
				"links": {},
				"media": [],
				"last_updated": "2026-01-01T00:00:00Z"
			}]},
			"_links": {}
		}`)
	})

	store := &fakeUpserter{}
	_, err := NewCollector(client, store).Collect(context.Background())
	require.NoError(t, err)

	items := store.allItems()
	require.Len(t, items, 1)
	assert.Empty(t, items[0].Website)
	assert.Empty(t, items[0].Contact)
	assert.Empty(t, items[0].Icon)
}

func TestCollectorAbortsOnPageFailure(t *testing.T) {
	var requests int
	client := newCatalogTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprintf(w, `{
				"_embedded": {"packages": [%s]},
				"_links": {"next": {"href": "x"}}
			}`, catalogRecordJSON("id-a", "alpha"))
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	store := &fakeUpserter{}
	count, err := NewCollector(client, store).Collect(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "page 2")
	// page 1 already committed before the failure
	assert.Equal(t, 1, count)
	assert.Len(t, store.pages, 1)
	assert.Equal(t, 2, requests)
}

func TestCollectorAbortsOnBadTimestamp(t *testing.T) {
	client := newCatalogTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"_embedded": {"packages": [{
				"id": "bad", "package_name": "bad",
				"links": {}, "media": [],
				"last_updated": "not-a-timestamp"
			}]},
			"_links": {}
		}`)
	})

	store := &fakeUpserter{}
	_, err := NewCollector(client, store).Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "last_updated")
	assert.Empty(t, store.pages)
}

func TestCollectorAbortsOnUpsertFailure(t *testing.T) {
	client := newCatalogTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"_embedded": {"packages": [%s]}, "_links": {}}`,
			catalogRecordJSON("id-a", "alpha"))
	})

	store := &fakeUpserter{err: errors.New("disk full")}
	_, err := NewCollector(client, store).Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert failed")
}
