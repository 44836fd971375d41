package service

import (
	"arena-bot/internal/config"
	"arena-bot/internal/constants"
	"arena-bot/internal/domain"
	"arena-bot/internal/keylock"
	"arena-bot/internal/metrics"
	"arena-bot/internal/repository"
	"arena-bot/internal/scheduler"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elliotchance/pie/v2"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type PingRequest struct {
	ParticipantID string
	Queue         domain.QueueKind
	LocationID    string
	Tier          *domain.Tier
}

// PingLedger tracks who is currently looking for a match in each queue.
type PingLedger struct {
	repo      *repository.PingRepository
	scheduler *scheduler.Scheduler
	metrics   metrics.ArenaMetrics
	locks     *keylock.Locker
	ttl       time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

func NewPingLedger(repo *repository.PingRepository, sched *scheduler.Scheduler, m metrics.ArenaMetrics, cfg *config.Config, logger zerolog.Logger) *PingLedger {
	l := &PingLedger{
		repo:      repo,
		scheduler: sched,
		metrics:   m,
		locks:     keylock.New(),
		ttl:       cfg.PingTTL,
		now:       time.Now,
		logger:    logger.With().Str("component", "ping_ledger").Logger(),
	}
	sched.OnError(func(key string, err error) {
		m.ExpiryFailed()
	})
	return l
}

func (l *PingLedger) TTL() time.Duration {
	return l.ttl
}

func (l *PingLedger) RecordPing(ctx context.Context, req PingRequest) (domain.ActivePingList, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if err := validatePing(req); err != nil {
		return domain.ActivePingList{}, err
	}

	version, err := gonanoid.New()
	if err != nil {
		return domain.ActivePingList{}, fmt.Errorf("failed to generate ping version: %w", err)
	}

	now := l.now()
	entry := &domain.PingEntry{
		ParticipantID: req.ParticipantID,
		Queue:         req.Queue,
		LocationID:    req.LocationID,
		Tier:          req.Tier,
		IssuedAt:      now,
		Version:       version,
	}

	key := repository.PingKey(req.Queue, req.ParticipantID)
	unlock := l.locks.Lock(key)
	err = l.repo.Upsert(ctx, entry)
	if err == nil {
		l.scheduleExpiry(key, entry)
	}
	unlock()

	if err != nil {
		l.metrics.StorageError("record_ping")
		l.logger.Error().Err(err).
			Str("participant_id", req.ParticipantID).
			Str("queue", string(req.Queue)).
			Msg("failed to record ping")
		return domain.ActivePingList{}, fmt.Errorf("failed to record ping: %w", err)
	}

	l.metrics.PingRecorded(string(req.Queue))
	l.logger.Info().
		Str("participant_id", req.ParticipantID).
		Str("queue", string(req.Queue)).
		Str("location_id", req.LocationID).
		Str("version", version).
		Msg("ping recorded")

	return l.ListActive(ctx, req.Queue, now)
}

func (l *PingLedger) scheduleExpiry(key string, entry *domain.PingEntry) {
	queue, participantID, version := entry.Queue, entry.ParticipantID, entry.Version
	l.scheduler.Schedule(key, l.ttl, func(ctx context.Context) error {
		return l.Expire(ctx, queue, participantID, version)
	})
}

// ListActive returns pings younger than the TTL, newest first. Entries whose expiry has
// not run yet are filtered by age here.
func (l *PingLedger) ListActive(ctx context.Context, queue domain.QueueKind, now time.Time) (domain.ActivePingList, error) {
	if !queue.Valid() {
		return domain.ActivePingList{}, fmt.Errorf("%w: unknown queue %q", domain.ErrInvalidPing, queue)
	}

	entries, err := l.repo.ListByQueue(ctx, queue)
	if err != nil {
		l.metrics.StorageError("list_active")
		return domain.ActivePingList{}, fmt.Errorf("failed to list pings: %w", err)
	}

	live := pie.Filter(entries, func(e domain.PingEntry) bool {
		return now.Sub(e.IssuedAt) < l.ttl
	})
	live = pie.SortUsing(live, func(a, b domain.PingEntry) bool {
		if !a.IssuedAt.Equal(b.IssuedAt) {
			return a.IssuedAt.After(b.IssuedAt)
		}
		return a.ParticipantID < b.ParticipantID
	})

	list := domain.ActivePingList{Queue: queue, None: len(live) == 0}
	for _, e := range live {
		list.Entries = append(list.Entries, domain.ActivePing{PingEntry: e, Age: now.Sub(e.IssuedAt)})
	}

	l.logger.Debug().
		Str("queue", string(queue)).
		Int("stored", len(entries)).
		Int("active", len(live)).
		Msg("listed active pings")

	return list, nil
}

// Expire removes the ping only if it still carries version, so a stale expiry never
// deletes a newer ping. Calling it again is a no-op.
func (l *PingLedger) Expire(ctx context.Context, queue domain.QueueKind, participantID, version string) error {
	unlock := l.locks.Lock(repository.PingKey(queue, participantID))
	defer unlock()

	entry, err := l.repo.Get(ctx, queue, participantID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		l.metrics.StorageError("expire_ping")
		return fmt.Errorf("failed to load ping for expiry: %w", err)
	}

	if entry.Version != version {
		l.logger.Debug().
			Str("participant_id", participantID).
			Str("queue", string(queue)).
			Str("stale_version", version).
			Str("live_version", entry.Version).
			Msg("ping superseded, skipping expiry")
		return nil
	}

	if err := l.repo.Delete(ctx, queue, participantID); err != nil {
		l.metrics.StorageError("expire_ping")
		return fmt.Errorf("failed to expire ping: %w", err)
	}

	l.metrics.PingExpired(string(queue))
	l.logger.Info().
		Str("participant_id", participantID).
		Str("queue", string(queue)).
		Msg("ping expired")
	return nil
}

// Withdraw removes a participant's ping before it expires.
func (l *PingLedger) Withdraw(ctx context.Context, participantID string, queue domain.QueueKind) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if !queue.Valid() {
		return false, fmt.Errorf("%w: unknown queue %q", domain.ErrInvalidPing, queue)
	}

	key := repository.PingKey(queue, participantID)
	unlock := l.locks.Lock(key)
	defer unlock()

	_, err := l.repo.Get(ctx, queue, participantID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		l.metrics.StorageError("withdraw_ping")
		return false, fmt.Errorf("failed to load ping: %w", err)
	}

	if err := l.repo.Delete(ctx, queue, participantID); err != nil {
		l.metrics.StorageError("withdraw_ping")
		return false, fmt.Errorf("failed to withdraw ping: %w", err)
	}
	l.scheduler.Cancel(key)

	l.logger.Info().Str("participant_id", participantID).Str("queue", string(queue)).Msg("ping withdrawn")
	return true, nil
}

// ClearAll deletes every ping in every queue. It also runs once at startup so pings
// never outlive the process that scheduled their expiry.
func (l *PingLedger) ClearAll(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	entries, err := l.repo.ListAll(ctx)
	if err != nil {
		l.metrics.StorageError("clear_all")
		return 0, fmt.Errorf("failed to list pings: %w", err)
	}

	cleared := 0
	for _, e := range entries {
		key := repository.PingKey(e.Queue, e.ParticipantID)
		unlock := l.locks.Lock(key)
		err := l.repo.Delete(ctx, e.Queue, e.ParticipantID)
		if err == nil {
			l.scheduler.Cancel(key)
		}
		unlock()

		if err != nil {
			l.metrics.StorageError("clear_all")
			l.metrics.PingsCleared(cleared)
			return cleared, fmt.Errorf("failed to clear ping %s: %w", key, err)
		}
		cleared++
	}

	l.metrics.PingsCleared(cleared)
	l.logger.Info().Int("cleared", cleared).Msg("all pings cleared")
	return cleared, nil
}

func validatePing(req PingRequest) error {
	if strings.TrimSpace(req.ParticipantID) == "" {
		return fmt.Errorf("%w: participant id is required", domain.ErrInvalidPing)
	}
	if strings.TrimSpace(req.LocationID) == "" {
		return fmt.Errorf("%w: location id is required", domain.ErrInvalidPing)
	}
	if !req.Queue.Valid() {
		return fmt.Errorf("%w: unknown queue %q", domain.ErrInvalidPing, req.Queue)
	}
	if req.Queue == domain.QueueRanked && req.Tier == nil {
		return fmt.Errorf("%w: ranked pings need a tier", domain.ErrInvalidPing)
	}
	if req.Queue != domain.QueueRanked && req.Tier != nil {
		return fmt.Errorf("%w: only ranked pings carry a tier", domain.ErrInvalidPing)
	}
	return nil
}
