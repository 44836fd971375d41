package repository

import (
	"arena-bot/internal/constants"
	"arena-bot/internal/domain"
	"arena-bot/internal/store"
	"context"
	"errors"

	"github.com/rs/zerolog"
)

type RatingRepository struct {
	ratings *store.Collection[domain.RatingRecord]
	logger  zerolog.Logger
}

func NewRatingRepository(s store.Store, logger zerolog.Logger) *RatingRepository {
	return &RatingRepository{
		ratings: store.NewCollection[domain.RatingRecord](s, constants.NamespaceRatings),
		logger:  logger,
	}
}

func (r *RatingRepository) Get(ctx context.Context, participantID string) (*domain.RatingRecord, error) {
	rec, err := r.ratings.Get(ctx, participantID)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.NewStorageError("get rating", err)
	}
	return &rec, nil
}

func (r *RatingRepository) Upsert(ctx context.Context, rec *domain.RatingRecord) error {
	if err := r.ratings.Put(ctx, rec.ParticipantID, *rec); err != nil {
		return domain.NewStorageError("put rating", err)
	}
	return nil
}

// UpsertPair persists both records of a match in one all-or-nothing write.
func (r *RatingRepository) UpsertPair(ctx context.Context, a, b *domain.RatingRecord) error {
	err := r.ratings.PutBatch(ctx, map[string]domain.RatingRecord{
		a.ParticipantID: *a,
		b.ParticipantID: *b,
	})
	if err != nil {
		r.logger.Error().Err(err).
			Str("participant_a", a.ParticipantID).
			Str("participant_b", b.ParticipantID).
			Msg("failed to persist rating pair")
		return domain.NewStorageError("put rating pair", err)
	}
	return nil
}

func (r *RatingRepository) List(ctx context.Context) ([]domain.RatingRecord, error) {
	all, err := r.ratings.Scan(ctx)
	if err != nil {
		return nil, domain.NewStorageError("scan ratings", err)
	}
	out := make([]domain.RatingRecord, 0, len(all))
	for _, rec := range all {
		out = append(out, rec)
	}
	return out, nil
}
