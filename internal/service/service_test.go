package service

import (
	"arena-bot/internal/config"
	"arena-bot/internal/constants"
	"arena-bot/internal/metrics"
	"arena-bot/internal/repository"
	"arena-bot/internal/scheduler"
	"arena-bot/internal/store"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var errStoreDown = errors.New("store down")

// flakyStore fails selected operations on demand.
type flakyStore struct {
	store.Store
	mu            sync.Mutex
	failPutBatch  bool
	failGet       bool
	failDelete    bool
	putBatchCalls int
}

func (s *flakyStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	s.mu.Lock()
	fail := s.failGet
	s.mu.Unlock()
	if fail {
		return nil, errStoreDown
	}
	return s.Store.Get(ctx, namespace, key)
}

func (s *flakyStore) Delete(ctx context.Context, namespace, key string) error {
	s.mu.Lock()
	fail := s.failDelete
	s.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return s.Store.Delete(ctx, namespace, key)
}

func (s *flakyStore) PutBatch(ctx context.Context, namespace string, entries []store.Entry) error {
	s.mu.Lock()
	s.putBatchCalls++
	fail := s.failPutBatch
	s.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return s.Store.PutBatch(ctx, namespace, entries)
}

func (s *flakyStore) set(fn func(s *flakyStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

type fixture struct {
	store     *flakyStore
	scheduler *scheduler.Scheduler
	ledger    *PingLedger
	ranking   *RankingEngine
	clock     *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{
		PingTTL:          constants.PingTTL,
		LeaderboardLimit: constants.DefaultLeaderboardLimit,
	}
	logger := zerolog.Nop()
	s := &flakyStore{Store: store.NewMemoryStore()}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	sched := scheduler.New(logger, time.Second)
	t.Cleanup(func() { _ = sched.Stop(context.Background()) })

	clock := &fakeClock{now: time.Date(2026, 10, 19, 23, 50, 0, 0, time.UTC)}

	ledger := NewPingLedger(repository.NewPingRepository(s, logger), sched, m, cfg, logger)
	ledger.now = clock.Now
	ranking := NewRankingEngine(repository.NewRatingRepository(s, logger), m, cfg, logger)
	ranking.now = clock.Now

	return &fixture{store: s, scheduler: sched, ledger: ledger, ranking: ranking, clock: clock}
}
