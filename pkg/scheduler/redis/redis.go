// Package redis is a durable delay scheduler on a Redis sorted set.
//
// Continuations are members scored by their due time in unix milliseconds, so they survive
// restarts of the engine. A poll loop atomically claims due members and delivers them.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/leadflow/pkg/scheduler"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	redis "github.com/redis/go-redis/v9"
)

const (
	DefaultKey          = "leadflow:delays"
	DefaultPollInterval = time.Second
	defaultBatchSize    = 100
)

// claimDue pops up to ARGV[2] members scored at or before ARGV[1].
var claimDue = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
if #due > 0 then
	redis.call('ZREM', KEYS[1], unpack(due))
end
return due
`)

type entry struct {
	ID           string                 `json:"id"`
	Continuation scheduler.Continuation `json:"continuation"`
}

// Scheduler implements scheduler.DelayScheduler on Redis.
type Scheduler struct {
	client       redis.UniversalClient
	logger       *slog.Logger
	clock        clockwork.Clock
	key          string
	pollInterval time.Duration

	mu      sync.Mutex
	handler scheduler.Handler
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

type Option func(*Scheduler)

func WithKey(key string) Option {
	return func(s *Scheduler) { s.key = key }
}

func WithPollInterval(interval time.Duration) Option {
	return func(s *Scheduler) { s.pollInterval = interval }
}

func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// NewScheduler connects to the Redis server at url (redis://[:password@]host:port/db).
func NewScheduler(ctx context.Context, logger *slog.Logger, url string, opts ...Option) (*Scheduler, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return New(client, logger, opts...), nil
}

// New wraps an existing client. The scheduler owns the client and closes it on Close.
func New(client redis.UniversalClient, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		client:       client,
		logger:       logger.With("module", "redis_scheduler"),
		clock:        clockwork.NewRealClock(),
		key:          DefaultKey,
		pollInterval: DefaultPollInterval,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With("key", s.key)

	return s
}

func (s *Scheduler) Start(ctx context.Context, handler scheduler.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopCh != nil {
		return errors.New("redis scheduler already started")
	}

	s.handler = handler
	s.stopCh = make(chan struct{})

	s.wg.Add(1)

	go s.poll(context.WithoutCancel(ctx), s.stopCh)

	s.logger.InfoContext(ctx, "redis scheduler started", "poll_interval", s.pollInterval)

	return nil
}

func (s *Scheduler) Schedule(ctx context.Context, delay time.Duration, continuation scheduler.Continuation) error {
	if continuation.DueAt.IsZero() {
		continuation.DueAt = s.clock.Now().Add(delay)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate continuation ID: %w", err)
	}

	member, err := json.Marshal(entry{ID: id.String(), Continuation: continuation})
	if err != nil {
		return fmt.Errorf("failed to encode continuation: %w", err)
	}

	err = s.client.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(continuation.DueAt.UnixMilli()),
		Member: string(member),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to schedule continuation: %w", err)
	}

	return nil
}

// Pending returns the number of continuations stored in Redis.
func (s *Scheduler) Pending(ctx context.Context) (int64, error) {
	return s.client.ZCard(ctx, s.key).Result()
}

// Close stops polling. Pending continuations stay in Redis for the next run.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	stopCh := s.stopCh
	s.stopCh = nil
	s.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		s.wg.Wait()
	}

	s.logger.InfoContext(ctx, "redis scheduler stopped")

	return s.client.Close()
}

func (s *Scheduler) poll(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.Chan():
			err := s.deliverDue(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "failed to deliver due continuations", "error", err)
			}
		}
	}
}

// deliverDue claims and runs every due continuation.
func (s *Scheduler) deliverDue(ctx context.Context) error {
	for {
		members, err := claimDue.Run(ctx, s.client, []string{s.key},
			s.clock.Now().UnixMilli(), defaultBatchSize).StringSlice()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to claim due continuations: %w", err)
		}

		for _, member := range members {
			var due entry

			err := json.Unmarshal([]byte(member), &due)
			if err != nil {
				s.logger.ErrorContext(ctx, "dropping undecodable continuation", "member", member, "error", err)

				continue
			}

			s.handler(ctx, due.Continuation)
		}

		if len(members) < defaultBatchSize {
			return nil
		}
	}
}
