package repository

import (
	"arena-bot/internal/constants"
	"arena-bot/internal/domain"
	"arena-bot/internal/store"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

type PingRepository struct {
	pings  *store.Collection[domain.PingEntry]
	logger zerolog.Logger
}

func NewPingRepository(s store.Store, logger zerolog.Logger) *PingRepository {
	return &PingRepository{
		pings:  store.NewCollection[domain.PingEntry](s, constants.NamespacePings),
		logger: logger,
	}
}

// PingKey is the storage and lock key of the single live ping per (queue, participant).
func PingKey(queue domain.QueueKind, participantID string) string {
	return fmt.Sprintf("%s:%s", queue, participantID)
}

func (r *PingRepository) Get(ctx context.Context, queue domain.QueueKind, participantID string) (*domain.PingEntry, error) {
	entry, err := r.pings.Get(ctx, PingKey(queue, participantID))
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.NewStorageError("get ping", err)
	}
	return &entry, nil
}

func (r *PingRepository) Upsert(ctx context.Context, entry *domain.PingEntry) error {
	if err := r.pings.Put(ctx, PingKey(entry.Queue, entry.ParticipantID), *entry); err != nil {
		return domain.NewStorageError("put ping", err)
	}
	return nil
}

func (r *PingRepository) Delete(ctx context.Context, queue domain.QueueKind, participantID string) error {
	if err := r.pings.Delete(ctx, PingKey(queue, participantID)); err != nil {
		return domain.NewStorageError("delete ping", err)
	}
	return nil
}

// ListByQueue returns every stored ping of one queue, expired or not.
func (r *PingRepository) ListByQueue(ctx context.Context, queue domain.QueueKind) ([]domain.PingEntry, error) {
	all, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PingEntry, 0, len(all))
	for _, e := range all {
		if e.Queue == queue {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *PingRepository) ListAll(ctx context.Context) ([]domain.PingEntry, error) {
	all, err := r.pings.Scan(ctx)
	if err != nil {
		return nil, domain.NewStorageError("scan pings", err)
	}
	out := make([]domain.PingEntry, 0, len(all))
	for key, e := range all {
		if !strings.HasPrefix(key, string(e.Queue)+":") {
			r.logger.Warn().Str("key", key).Msg("skipping ping stored under mismatched key")
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
