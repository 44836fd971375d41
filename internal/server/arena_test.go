package server

import (
	"arena-bot/internal/api"
	"arena-bot/internal/config"
	"arena-bot/internal/constants"
	"arena-bot/internal/domain"
	"arena-bot/internal/metrics"
	"arena-bot/internal/repository"
	"arena-bot/internal/scheduler"
	"arena-bot/internal/service"
	"arena-bot/internal/store"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAssigner struct {
	mu          sync.Mutex
	assignments []api.TierAssignment
	err         error
}

func (a *recordingAssigner) AssignTier(ctx context.Context, assignment api.TierAssignment) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.assignments = append(a.assignments, assignment)
	return a.err
}

type testServer struct {
	arena   *ArenaServer
	handler http.Handler
	ratings *repository.RatingRepository
	roles   *recordingAssigner
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{PingTTL: constants.PingTTL, LeaderboardLimit: constants.DefaultLeaderboardLimit}
	logger := zerolog.Nop()
	s := store.NewMemoryStore()
	m := metrics.NewMetrics(prometheus.NewRegistry())
	sched := scheduler.New(logger, time.Second)
	t.Cleanup(func() { _ = sched.Stop(context.Background()) })

	ratings := repository.NewRatingRepository(s, logger)
	ledger := service.NewPingLedger(repository.NewPingRepository(s, logger), sched, m, cfg, logger)
	ranking := service.NewRankingEngine(ratings, m, cfg, logger)

	roles := &recordingAssigner{}
	arena := newArenaServer(ledger, ranking, roles, logger)
	return &testServer{arena: arena, handler: arena.Routes(), ratings: ratings, roles: roles}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func (ts *testServer) seed(t *testing.T, participant string, rating int) {
	t.Helper()
	now := time.Now()
	require.NoError(t, ts.ratings.Upsert(context.Background(), &domain.RatingRecord{
		ParticipantID: participant,
		Rating:        rating,
		History:       []domain.Outcome{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}))
}

func TestPingEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/pings", pingRequest{ParticipantID: "A", Queue: "singles", LocationID: "L1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	list := decode[activePingList](t, rec)
	assert.False(t, list.None)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, "A", list.Entries[0].ParticipantID)
	assert.Nil(t, list.Entries[0].Tier)

	rec = ts.do(t, http.MethodGet, "/v1/pings/singles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list = decode[activePingList](t, rec)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, 0, list.Entries[0].MinutesAgo)

	rec = ts.do(t, http.MethodGet, "/v1/pings/doubles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list = decode[activePingList](t, rec)
	assert.True(t, list.None)
	assert.NotNil(t, list.Entries)

	rec = ts.do(t, http.MethodDelete, "/v1/pings/singles/A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[map[string]bool](t, rec)["removed"])

	rec = ts.do(t, http.MethodDelete, "/v1/pings/singles/A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[map[string]bool](t, rec)["removed"])
}

func TestPingRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/pings", pingRequest{ParticipantID: "A", Queue: "trios", LocationID: "L1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/pings", pingRequest{ParticipantID: "A", Queue: "singles"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/pings/trios", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/pings", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRankedPingCarriesTier(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, "A", 1250)

	rec := ts.do(t, http.MethodPost, "/v1/pings", pingRequest{ParticipantID: "A", Queue: "ranked", LocationID: "L1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	list := decode[activePingList](t, rec)
	require.Len(t, list.Entries, 1)
	require.NotNil(t, list.Entries[0].Tier)
	assert.Equal(t, domain.TierDiamond, *list.Entries[0].Tier)

	rec = ts.do(t, http.MethodPost, "/v1/pings", pingRequest{ParticipantID: "new", Queue: "ranked", LocationID: "L1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	list = decode[activePingList](t, rec)
	require.Len(t, list.Entries, 2)
	for _, e := range list.Entries {
		if e.ParticipantID == "new" {
			require.NotNil(t, e.Tier)
			assert.Equal(t, domain.TierGold, *e.Tier)
		}
	}
}

func TestClearAllEndpoint(t *testing.T) {
	ts := newTestServer(t)
	for _, q := range []string{"singles", "doubles", "funnies"} {
		rec := ts.do(t, http.MethodPost, "/v1/pings", pingRequest{ParticipantID: "A", Queue: q, LocationID: "L1"})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := ts.do(t, http.MethodDelete, "/v1/pings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[map[string]int](t, rec)["cleared"])
}

func TestReportMatchEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/matches", domain.MatchReport{WinnerID: "X", LoserID: "X"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/matches", domain.MatchReport{WinnerID: "A", LoserID: "B"})
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[domain.MatchResult](t, rec)
	assert.Equal(t, 1016, result.WinnerRating)
	assert.Equal(t, 984, result.LoserRating)

	ts.arena.Wait()
	assert.Empty(t, ts.roles.assignments)
}

func TestReportMatchNotifiesTierChanges(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, "A", 1045)
	ts.seed(t, "B", 1052)

	rec := ts.do(t, http.MethodPost, "/v1/matches", domain.MatchReport{WinnerID: "A", LoserID: "B"})
	require.Equal(t, http.StatusOK, rec.Code)

	ts.arena.Wait()
	ts.roles.mu.Lock()
	defer ts.roles.mu.Unlock()
	require.Len(t, ts.roles.assignments, 2)

	byID := map[string]api.TierAssignment{}
	for _, a := range ts.roles.assignments {
		byID[a.ParticipantID] = a
	}
	assert.Equal(t, domain.TierPlatinum, byID["A"].After)
	assert.Equal(t, 1061, byID["A"].Rating)
	assert.Equal(t, domain.TierGold, byID["B"].After)
}

func TestTierNotificationFailureDoesNotFailReport(t *testing.T) {
	ts := newTestServer(t)
	ts.roles.err = errors.New("webhook down")
	ts.seed(t, "A", 1045)
	ts.seed(t, "B", 1052)

	rec := ts.do(t, http.MethodPost, "/v1/matches", domain.MatchReport{WinnerID: "A", LoserID: "B"})
	assert.Equal(t, http.StatusOK, rec.Code)
	ts.arena.Wait()
}

func TestRatingEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/ratings/A", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for i := 0; i < 3; i++ {
		rec = ts.do(t, http.MethodPost, "/v1/matches", domain.MatchReport{WinnerID: "A", LoserID: "B"})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec = ts.do(t, http.MethodPost, "/v1/matches", domain.MatchReport{WinnerID: "B", LoserID: "A"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/ratings/A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ratingResponse](t, rec)
	assert.Equal(t, 3, resp.Wins)
	assert.Equal(t, 1, resp.Losses)
	assert.InDelta(t, 0.75, resp.WinRate, 0.001)
	assert.Equal(t, []domain.Outcome{"W", "W", "W", "L"}, resp.Recent)
}

func TestLeaderboardEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/leaderboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entries":[]}`, rec.Body.String())

	ts.seed(t, "A", 1100)
	ts.seed(t, "B", 900)
	ts.seed(t, "C", 1300)

	rec = ts.do(t, http.MethodGet, "/v1/leaderboard?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decode[map[string][]domain.LeaderboardEntry](t, rec)["entries"]
	require.Len(t, board, 2)
	assert.Equal(t, "C", board[0].ParticipantID)
	assert.Equal(t, "A", board[1].ParticipantID)

	rec = ts.do(t, http.MethodGet, "/v1/leaderboard?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/leaderboard/B", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[domain.LeaderboardEntry](t, rec).Position)

	rec = ts.do(t, http.MethodGet, "/v1/leaderboard/nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
