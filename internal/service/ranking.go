package service

import (
	"arena-bot/internal/config"
	"arena-bot/internal/constants"
	"arena-bot/internal/domain"
	"arena-bot/internal/elo"
	"arena-bot/internal/keylock"
	"arena-bot/internal/metrics"
	"arena-bot/internal/repository"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// RankingEngine keeps Elo ratings and reports rank tier transitions. It never touches
// platform roles; callers act on the returned TierChange values.
type RankingEngine struct {
	repo         *repository.RatingRepository
	metrics      metrics.ArenaMetrics
	locks        *keylock.Locker
	defaultLimit int
	now          func() time.Time
	logger       zerolog.Logger
}

func NewRankingEngine(repo *repository.RatingRepository, m metrics.ArenaMetrics, cfg *config.Config, logger zerolog.Logger) *RankingEngine {
	return &RankingEngine{
		repo:         repo,
		metrics:      m,
		locks:        keylock.New(),
		defaultLimit: cfg.LeaderboardLimit,
		now:          time.Now,
		logger:       logger.With().Str("component", "ranking_engine").Logger(),
	}
}

func (e *RankingEngine) TierForRating(rating int) domain.Tier {
	return elo.TierFor(rating)
}

func (e *RankingEngine) Get(ctx context.Context, participantID string) (domain.RatingRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	rec, err := e.repo.Get(ctx, participantID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			e.metrics.StorageError("get_rating")
		}
		return domain.RatingRecord{}, err
	}
	return *rec, nil
}

func (e *RankingEngine) GetOrCreate(ctx context.Context, participantID string) (domain.RatingRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if strings.TrimSpace(participantID) == "" {
		return domain.RatingRecord{}, fmt.Errorf("participant id is required")
	}

	unlock := e.locks.Lock(participantID)
	defer unlock()

	rec, err := e.repo.Get(ctx, participantID)
	if err == nil {
		return *rec, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		e.metrics.StorageError("get_rating")
		return domain.RatingRecord{}, fmt.Errorf("failed to load rating: %w", err)
	}

	rec = e.newRecord(participantID)
	if err := e.repo.Upsert(ctx, rec); err != nil {
		e.metrics.StorageError("create_rating")
		return domain.RatingRecord{}, fmt.Errorf("failed to create rating: %w", err)
	}

	e.logger.Info().Str("participant_id", participantID).Int("rating", rec.Rating).Msg("rating record created")
	return *rec, nil
}

func (e *RankingEngine) ReportMatch(ctx context.Context, report domain.MatchReport) (domain.MatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if strings.TrimSpace(report.WinnerID) == "" || strings.TrimSpace(report.LoserID) == "" {
		return domain.MatchResult{}, fmt.Errorf("%w: winner and loser are required", domain.ErrInvalidMatch)
	}
	if report.WinnerID == report.LoserID {
		return domain.MatchResult{}, domain.ErrInvalidMatch
	}

	unlock := e.locks.Lock(report.WinnerID, report.LoserID)
	defer unlock()

	g, gCtx := errgroup.WithContext(ctx)
	var winner, loser *domain.RatingRecord
	g.Go(func() error {
		var err error
		winner, err = e.loadOrDefault(gCtx, report.WinnerID)
		return err
	})
	g.Go(func() error {
		var err error
		loser, err = e.loadOrDefault(gCtx, report.LoserID)
		return err
	})
	if err := g.Wait(); err != nil {
		e.metrics.StorageError("report_match")
		e.logger.Error().Err(err).
			Str("winner_id", report.WinnerID).
			Str("loser_id", report.LoserID).
			Msg("failed to load ratings")
		return domain.MatchResult{}, fmt.Errorf("failed to load ratings: %w", err)
	}

	oldWinner, oldLoser := winner.Rating, loser.Rating
	newWinner, newLoser := elo.Update(oldWinner, oldLoser)

	now := e.now()
	winner.Rating, loser.Rating = newWinner, newLoser
	winner.Wins++
	loser.Losses++
	winner.History = append(winner.History, domain.OutcomeWin)
	loser.History = append(loser.History, domain.OutcomeLoss)
	winner.UpdatedAt, loser.UpdatedAt = now, now

	if err := e.repo.UpsertPair(ctx, winner, loser); err != nil {
		e.metrics.StorageError("report_match")
		return domain.MatchResult{}, fmt.Errorf("failed to persist match: %w", err)
	}

	result := domain.MatchResult{
		WinnerID:     report.WinnerID,
		LoserID:      report.LoserID,
		WinnerRating: newWinner,
		LoserRating:  newLoser,
		WinnerDelta:  newWinner - oldWinner,
		LoserDelta:   newLoser - oldLoser,
		WinnerTier:   tierChange(oldWinner, newWinner),
		LoserTier:    tierChange(oldLoser, newLoser),
	}

	e.metrics.MatchReported()
	for _, tc := range []domain.TierChange{result.WinnerTier, result.LoserTier} {
		if !tc.Changed {
			continue
		}
		direction := "down"
		if tc.After > tc.Before {
			direction = "up"
		}
		e.metrics.TierChanged(direction)
	}

	e.logger.Info().
		Str("winner_id", report.WinnerID).
		Str("loser_id", report.LoserID).
		Int("winner_rating", newWinner).
		Int("loser_rating", newLoser).
		Int("winner_delta", result.WinnerDelta).
		Int("loser_delta", result.LoserDelta).
		Bool("winner_tier_changed", result.WinnerTier.Changed).
		Bool("loser_tier_changed", result.LoserTier.Changed).
		Msg("match reported")

	return result, nil
}

// Leaderboard returns records by rating, highest first. limit <= 0 uses the configured default.
func (e *RankingEngine) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if limit <= 0 {
		limit = e.defaultLimit
	}
	if limit > constants.MaxLeaderboardLimit {
		limit = constants.MaxLeaderboardLimit
	}

	ranked, err := e.ranked(ctx)
	if err != nil {
		return nil, err
	}
	return pie.Top(ranked, limit), nil
}

// Standing returns one participant's leaderboard position.
func (e *RankingEngine) Standing(ctx context.Context, participantID string) (domain.LeaderboardEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	ranked, err := e.ranked(ctx)
	if err != nil {
		return domain.LeaderboardEntry{}, err
	}
	for _, entry := range ranked {
		if entry.ParticipantID == participantID {
			return entry, nil
		}
	}
	return domain.LeaderboardEntry{}, domain.ErrNotFound
}

func (e *RankingEngine) ranked(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	records, err := e.repo.List(ctx)
	if err != nil {
		e.metrics.StorageError("leaderboard")
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}

	records = pie.SortUsing(records, func(a, b domain.RatingRecord) bool {
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		return a.ParticipantID < b.ParticipantID
	})

	entries := make([]domain.LeaderboardEntry, len(records))
	for i, r := range records {
		entries[i] = domain.LeaderboardEntry{
			Position:      i + 1,
			ParticipantID: r.ParticipantID,
			Rating:        r.Rating,
			Wins:          r.Wins,
			Losses:        r.Losses,
		}
	}
	return entries, nil
}

func (e *RankingEngine) loadOrDefault(ctx context.Context, participantID string) (*domain.RatingRecord, error) {
	rec, err := e.repo.Get(ctx, participantID)
	if errors.Is(err, domain.ErrNotFound) {
		return e.newRecord(participantID), nil
	}
	return rec, err
}

func (e *RankingEngine) newRecord(participantID string) *domain.RatingRecord {
	now := e.now()
	return &domain.RatingRecord{
		ParticipantID: participantID,
		Rating:        constants.DefaultRating,
		History:       []domain.Outcome{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func tierChange(before, after int) domain.TierChange {
	b, a := elo.TierFor(before), elo.TierFor(after)
	return domain.TierChange{Before: b, After: a, Changed: b != a}
}
