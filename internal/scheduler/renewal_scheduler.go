// internal/scheduler/renewal_scheduler.go
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"billing-service/internal/metrics"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	lockKey     = "billing:renewal-notifier:lock"
	maxLockTTL  = 10 * time.Minute
	runTimeout  = 5 * time.Minute
	resultOK    = "ok"
	resultError = "error"
	resultSkip  = "skipped"
)

// ErrLockHeld is returned by RunOnce when another replica holds the run lock.
var ErrLockHeld = errors.New("renewal job already running elsewhere")

// Generator produces renewal notifications and reports how many were inserted.
type Generator interface {
	GenerateRenewalNotifications(ctx context.Context) (int, error)
}

type Config struct {
	Interval     time.Duration
	RunOnStartup bool
}

// RenewalScheduler runs the renewal notification generator on a fixed
// interval. With a Redis client, runs are serialised across replicas.
type RenewalScheduler struct {
	cron      *cron.Cron
	generator Generator
	redis     redis.Cmdable
	cfg       Config
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewRenewalScheduler builds the scheduler; rdb may be nil.
func NewRenewalScheduler(generator Generator, rdb redis.Cmdable, cfg Config, m *metrics.Metrics, logger *zap.Logger) *RenewalScheduler {
	return &RenewalScheduler{
		cron:      cron.New(),
		generator: generator,
		redis:     rdb,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
	}
}

// Start registers the job and starts the cron runner.
func (s *RenewalScheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.cfg.Interval)
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("schedule renewal job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("renewal scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Bool("distributed_lock", s.redis != nil),
	)

	if s.cfg.RunOnStartup {
		go s.tick()
	}
	return nil
}

// Stop halts scheduling and waits for a running job to finish.
func (s *RenewalScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("renewal job still running at shutdown")
	}
}

func (s *RenewalScheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	generated, err := s.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrLockHeld):
		s.logger.Debug("renewal job skipped, lock held")
	case err != nil:
		s.logger.Error("renewal job failed", zap.Error(err))
	default:
		s.logger.Info("renewal job completed", zap.Int("generated", generated))
	}
}

// RunOnce runs the generator a single time, holding the distributed lock
// when Redis is configured.
func (s *RenewalScheduler) RunOnce(ctx context.Context) (int, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		if errors.Is(err, ErrLockHeld) {
			s.metrics.RenewalJobRuns.WithLabelValues(resultSkip).Inc()
		} else {
			s.metrics.RenewalJobRuns.WithLabelValues(resultError).Inc()
		}
		return 0, err
	}
	defer release()

	generated, err := s.generator.GenerateRenewalNotifications(ctx)
	if err != nil {
		s.metrics.RenewalJobRuns.WithLabelValues(resultError).Inc()
		return generated, err
	}

	s.metrics.RenewalJobRuns.WithLabelValues(resultOK).Inc()
	return generated, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (s *RenewalScheduler) acquire(ctx context.Context) (func(), error) {
	if s.redis == nil {
		return func() {}, nil
	}

	token := ulid.Make().String()
	ok, err := s.redis.SetNX(ctx, lockKey, token, s.lockTTL()).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire renewal lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return func() {
		if err := releaseScript.Run(context.Background(), s.redis, []string{lockKey}, token).Err(); err != nil {
			s.logger.Warn("failed to release renewal lock", zap.Error(err))
		}
	}, nil
}

func (s *RenewalScheduler) lockTTL() time.Duration {
	if s.cfg.Interval > 0 && s.cfg.Interval < maxLockTTL {
		return s.cfg.Interval
	}
	return maxLockTTL
}
