package server

import (
	"arena-bot/internal/api"
	"arena-bot/internal/constants"
	"arena-bot/internal/domain"
	"arena-bot/internal/service"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// TierAssigner applies a tier change on the chat platform.
type TierAssigner interface {
	AssignTier(ctx context.Context, assignment api.TierAssignment) error
}

// ArenaServer is the HTTP/JSON surface the bot process calls with resolved identifiers.
type ArenaServer struct {
	ledger     *service.PingLedger
	ranking    *service.RankingEngine
	roles      TierAssigner
	background sync.WaitGroup
	logger     zerolog.Logger
}

func NewArenaServer(ledger *service.PingLedger, ranking *service.RankingEngine, roles *api.RoleClient, logger zerolog.Logger) *ArenaServer {
	return newArenaServer(ledger, ranking, roles, logger)
}

func newArenaServer(ledger *service.PingLedger, ranking *service.RankingEngine, roles TierAssigner, logger zerolog.Logger) *ArenaServer {
	return &ArenaServer{ledger: ledger, ranking: ranking, roles: roles, logger: logger}
}

func (s *ArenaServer) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/pings", s.RecordPing)
	mux.HandleFunc("GET /v1/pings/{queue}", s.ListActive)
	mux.HandleFunc("DELETE /v1/pings/{queue}/{participant}", s.Withdraw)
	mux.HandleFunc("DELETE /v1/pings", s.ClearAll)
	mux.HandleFunc("POST /v1/matches", s.ReportMatch)
	mux.HandleFunc("GET /v1/ratings/{participant}", s.GetRating)
	mux.HandleFunc("GET /v1/leaderboard", s.Leaderboard)
	mux.HandleFunc("GET /v1/leaderboard/{participant}", s.Standing)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

type pingRequest struct {
	ParticipantID string `json:"participant_id"`
	Queue         string `json:"queue"`
	LocationID    string `json:"location_id"`
}

type activePing struct {
	ParticipantID string       `json:"participant_id"`
	LocationID    string       `json:"location_id"`
	Tier          *domain.Tier `json:"tier,omitempty"`
	IssuedAt      string       `json:"issued_at"`
	MinutesAgo    int          `json:"minutes_ago"`
}

type activePingList struct {
	Queue   domain.QueueKind `json:"queue"`
	None    bool             `json:"none"`
	Entries []activePing     `json:"entries"`
}

func (s *ArenaServer) RecordPing(w http.ResponseWriter, r *http.Request) {
	var req pingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	queue, err := domain.ParseQueueKind(req.Queue)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	pr := service.PingRequest{ParticipantID: req.ParticipantID, Queue: queue, LocationID: req.LocationID}
	if queue == domain.QueueRanked && req.ParticipantID != "" {
		rec, err := s.ranking.GetOrCreate(r.Context(), req.ParticipantID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		pr.Tier = domain.TierPtr(s.ranking.TierForRating(rec.Rating))
	}

	list, err := s.ledger.RecordPing(r.Context(), pr)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActivePingList(list))
}

func (s *ArenaServer) ListActive(w http.ResponseWriter, r *http.Request) {
	queue, err := domain.ParseQueueKind(r.PathValue("queue"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	list, err := s.ledger.ListActive(r.Context(), queue, time.Now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivePingList(list))
}

func (s *ArenaServer) Withdraw(w http.ResponseWriter, r *http.Request) {
	queue, err := domain.ParseQueueKind(r.PathValue("queue"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	removed, err := s.ledger.Withdraw(r.Context(), r.PathValue("participant"), queue)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (s *ArenaServer) ClearAll(w http.ResponseWriter, r *http.Request) {
	cleared, err := s.ledger.ClearAll(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}

func (s *ArenaServer) ReportMatch(w http.ResponseWriter, r *http.Request) {
	var report domain.MatchReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	result, err := s.ranking.ReportMatch(r.Context(), report)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.notifyTierChanges(result)
	writeJSON(w, http.StatusOK, result)
}

// notifyTierChanges hands tier transitions to the role collaborator off the request path.
func (s *ArenaServer) notifyTierChanges(result domain.MatchResult) {
	changes := []api.TierAssignment{}
	if result.WinnerTier.Changed {
		changes = append(changes, api.TierAssignment{
			ParticipantID: result.WinnerID,
			Before:        result.WinnerTier.Before,
			After:         result.WinnerTier.After,
			Rating:        result.WinnerRating,
		})
	}
	if result.LoserTier.Changed {
		changes = append(changes, api.TierAssignment{
			ParticipantID: result.LoserID,
			Before:        result.LoserTier.Before,
			After:         result.LoserTier.After,
			Rating:        result.LoserRating,
		})
	}
	if len(changes) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.RoleWebhookTimeout)
	g := new(errgroup.Group)
	for _, change := range changes {
		g.Go(func() error {
			return s.roles.AssignTier(ctx, change)
		})
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer cancel()
		if err := g.Wait(); err != nil {
			s.logger.Error().Err(err).Msg("tier assignment failed")
		}
	}()
}

// Wait blocks until background tier notifications finish.
func (s *ArenaServer) Wait() {
	s.background.Wait()
}

type ratingResponse struct {
	ParticipantID string           `json:"participant_id"`
	Rating        int              `json:"rating"`
	Tier          domain.Tier      `json:"tier"`
	Wins          int              `json:"wins"`
	Losses        int              `json:"losses"`
	WinRate       float32          `json:"win_rate"`
	Recent        []domain.Outcome `json:"recent"`
}

func (s *ArenaServer) GetRating(w http.ResponseWriter, r *http.Request) {
	rec, err := s.ranking.Get(r.Context(), r.PathValue("participant"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ratingResponse{
		ParticipantID: rec.ParticipantID,
		Rating:        rec.Rating,
		Tier:          s.ranking.TierForRating(rec.Rating),
		Wins:          rec.Wins,
		Losses:        rec.Losses,
		WinRate:       calculateWinRate(rec.Wins, rec.Losses),
		Recent:        rec.Recent(constants.RecentResultsLimit),
	})
}

func (s *ArenaServer) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	board, err := s.ranking.Leaderboard(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if board == nil {
		board = []domain.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": board})
}

func (s *ArenaServer) Standing(w http.ResponseWriter, r *http.Request) {
	entry, err := s.ranking.Standing(r.Context(), r.PathValue("participant"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *ArenaServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	var se *domain.StorageError
	switch {
	case errors.Is(err, domain.ErrInvalidPing), errors.Is(err, domain.ErrInvalidMatch):
		writeError(w, r, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err)
	case errors.As(err, &se):
		writeError(w, r, http.StatusServiceUnavailable, err)
	default:
		writeError(w, r, http.StatusInternalServerError, err)
	}
}

func toActivePingList(list domain.ActivePingList) activePingList {
	out := activePingList{Queue: list.Queue, None: list.None, Entries: []activePing{}}
	for _, e := range list.Entries {
		out.Entries = append(out.Entries, activePing{
			ParticipantID: e.ParticipantID,
			LocationID:    e.LocationID,
			Tier:          e.Tier,
			IssuedAt:      e.IssuedAt.UTC().Format(time.RFC3339),
			MinutesAgo:    e.MinutesAgo(),
		})
	}
	return out
}

func calculateWinRate(wins, losses int) float32 {
	if wins+losses == 0 {
		return 0
	}
	return float32(wins) / float32(wins+losses)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	logger := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("request rejected")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
