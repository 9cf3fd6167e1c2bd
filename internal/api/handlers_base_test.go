// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/storepulse/storepulse/internal/config"
	"github.com/storepulse/storepulse/internal/database"
	"github.com/storepulse/storepulse/internal/jobs"
	"github.com/storepulse/storepulse/internal/models"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

// fakeQueue records enqueued steps and serves canned job state.
type fakeQueue struct {
	mu       sync.Mutex
	enqueued []models.Step
	jobs     map[string]jobs.Job
	err      error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{jobs: make(map[string]jobs.Job)}
}

func (q *fakeQueue) Enqueue(_ context.Context, step models.Step) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	id := uuid.NewString()
	q.enqueued = append(q.enqueued, step)
	q.jobs[id] = jobs.Job{ID: id, Step: step, Status: jobs.StatusQueued, EnqueuedAt: time.Now()}
	return id, nil
}

func (q *fakeQueue) Status(jobID string) (jobs.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	return job, ok
}

// fakeStageRunner reports fixed in-flight state.
type fakeStageRunner struct {
	running map[models.Step]bool
}

func (r *fakeStageRunner) Running(step models.Step) bool {
	return r.running[step]
}

type testEnv struct {
	handler http.Handler
	db      *database.DB
	queue   *fakeQueue
	runner  *fakeStageRunner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbCfg := &config.DatabaseConfig{
		Path:      filepath.Join(t.TempDir(), "api-test.duckdb"),
		MaxMemory: "256MB",
		Threads:   2,
	}
	db, err := database.New(dbCfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{
		API: config.APIConfig{DefaultLimit: 10, MaxLimit: 25},
		Security: config.SecurityConfig{
			JWTSecret:         testJWTSecret,
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: true,
			CORSOrigins:       []string{"*"},
		},
	}

	queue := newFakeQueue()
	runner := &fakeStageRunner{running: make(map[models.Step]bool)}
	router := NewRouter(db, queue, runner, cfg)

	return &testEnv{
		handler: router.Setup(),
		db:      db,
		queue:   queue,
		runner:  runner,
	}
}

// testItem returns an item that passes the eligibility predicate.
func testItem(id string) models.Item {
	return models.Item{
		ID:          id,
		Name:        "pkg-" + id,
		Title:       "Package " + id,
		Summary:     "A test package",
		Description: "A package description comfortably longer than fifty characters for tests.",
		Version:     "1.0.0",
		Publisher:   "acme",
		Revision:    3,
		Icon:        "https://cdn.example.com/" + id + "/icon.png",
		Links: map[string][]string{
			"contact": {"mailto:dev@example.com"},
			"issues":  {"https://bugs.example.com/" + id},
		},
		Media: []models.MediaEntry{
			{Type: "icon", URL: "https://cdn.example.com/" + id + "/icon.png"},
		},
		LastUpdated: time.Now().AddDate(0, 0, -7),
	}
}

// seedScoredItems inserts eligible items with a current popular-category
// score proportional to their position.
func seedScoredItems(t *testing.T, db *database.DB, ids ...string) {
	t.Helper()
	ctx := context.Background()

	items := make([]models.Item, 0, len(ids))
	scores := make([]models.Score, 0, len(ids))
	for i, id := range ids {
		items = append(items, testItem(id))
		scores = append(scores, models.Score{
			ItemID:   id,
			Category: models.CategoryPopular,
			Score:    1.0 - float64(i)*0.1,
		})
	}
	require.NoError(t, db.UpsertItems(ctx, items))
	_, err := db.ApplyEligibilityFilter(ctx, 50, time.Now().AddDate(0, 0, -180))
	require.NoError(t, err)
	require.NoError(t, db.ReplaceScores(ctx, scores, time.Now().Truncate(time.Second), 90))
}

// adminToken signs a short-lived HS256 token for admin requests.
func adminToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "test-admin",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

// doRequest executes a request against the router and decodes the envelope.
func (e *testEnv) doRequest(t *testing.T, method, path, token, body string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var envelope APIResponse
	if rec.Body.Len() > 0 && strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	}
	return rec, envelope
}

// decodeData re-marshals the envelope data into a typed value.
func decodeData(t *testing.T, envelope APIResponse, dst interface{}) {
	t.Helper()
	raw, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dst))
}
