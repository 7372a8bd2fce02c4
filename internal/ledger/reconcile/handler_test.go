package reconcile

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/meridian-books/meridian/internal/platform/cache"
)

func newTestHandler(t *testing.T, repo Repository) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := cache.NewStore(client, time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, NewService(repo, logger), store, Defaults{DateWindowDays: 3})

	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func doJSON(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const windowBody = `{"account_id":1,"period_start":"2024-03-01","period_end":"2024-03-31"}`

func TestStatusEndpointCachesAndInvalidates(t *testing.T) {
	repo := newMemoryReconcileRepo()
	repo.addLine(1, 1, day(10), "-50.00", "A")
	repo.addSplit(7, 1, day(10), "-50.00")
	router := newTestHandler(t, repo)

	rec := doJSON(t, router, "/status", windowBody)
	require.Equal(t, http.StatusOK, rec.Code)
	var before StatusReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &before))
	require.Equal(t, 0, before.MatchedPairs)

	// Mutate the store directly; the cached report must still be served.
	_, err := repo.SetMatched(context.Background(), 1, 7)
	require.NoError(t, err)
	rec = doJSON(t, router, "/status", windowBody)
	var cached StatusReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cached))
	require.Equal(t, 0, cached.MatchedPairs)

	// Unmatch through the API invalidates; the next status recomputes.
	rec = doJSON(t, router, "/unmatch", `{"account_id":1,"period_start":"2024-03-01","period_end":"2024-03-31","all":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, "/status", windowBody)
	var after StatusReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))
	require.Equal(t, 0, after.MatchedPairs)
	require.Equal(t, 1, after.UnmatchedLines)
}

func TestProposeEndpoint(t *testing.T) {
	repo := newMemoryReconcileRepo()
	repo.addLine(1, 1, day(10), "-50.00", "A")
	repo.addSplit(7, 1, day(12), "-50.00")
	router := newTestHandler(t, repo)

	rec := doJSON(t, router, "/propose", windowBody)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count     int        `json:"count"`
		Proposals []Proposal `json:"proposals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	require.Equal(t, int64(7), body.Proposals[0].SplitID)
}

func TestApplyEndpointThenProposeEmpty(t *testing.T) {
	repo := newMemoryReconcileRepo()
	repo.addLine(1, 1, day(10), "-50.00", "A")
	repo.addSplit(7, 1, day(10), "-50.00")
	router := newTestHandler(t, repo)

	rec := doJSON(t, router, "/apply", windowBody)
	require.Equal(t, http.StatusOK, rec.Code)
	var result ApplyResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, 1, result.Applied)

	rec = doJSON(t, router, "/propose", windowBody)
	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Zero(t, body.Count)
}

func TestUnmatchEndpointRequiresSelector(t *testing.T) {
	router := newTestHandler(t, newMemoryReconcileRepo())
	rec := doJSON(t, router, "/unmatch", windowBody)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestEndpointsRejectMissingPeriod(t *testing.T) {
	router := newTestHandler(t, newMemoryReconcileRepo())
	rec := doJSON(t, router, "/propose", `{"account_id":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
