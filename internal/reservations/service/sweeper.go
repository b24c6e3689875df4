package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"calendra/internal/reservations/events"
	"calendra/internal/reservations/lifecycle"
	"calendra/internal/reservations/metrics"
	"calendra/pkg/logger"
	"calendra/pkg/model"

	"github.com/robfig/cron/v3"
)

func (e *engine) ExpireHolds(ctx context.Context) (expired int, err error) {
	ctx, done := e.begin(ctx, opExpire)
	defer func() { done(err) }()

	holds, err := e.deps.Store.FindExpiredHolds(ctx, e.deps.Clock.Now(), e.opts.SweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("find expired holds: %w", err)
	}

	for _, hold := range holds {
		ok, err := e.expireWithRetry(ctx, hold)
		if err != nil {
			if ctx.Err() != nil {
				return expired, ctx.Err()
			}
			metrics.SweepFailed()
			e.log.Ctx(ctx).Error("Giving up on expiring hold",
				"reservation_id", hold.ID,
				"resource_id", hold.ResourceID,
				"error", err,
			)
			continue
		}
		if ok {
			expired++
		}
	}

	return expired, nil
}

// expireWithRetry retries transient failures with quadratic backoff. The
// resource lock is released between attempts.
func (e *engine) expireWithRetry(ctx context.Context, hold *model.Reservation) (bool, error) {
	var attempt int
	for {
		attempt++
		ok, err := e.expireOne(ctx, hold)
		if err == nil {
			return ok, nil
		}

		e.log.Ctx(ctx).Warn("Expire hold failed",
			"reservation_id", hold.ID,
			"attempt", attempt,
			"error", err,
		)
		if attempt >= e.opts.SweepMaxRetries {
			return false, fmt.Errorf("expire hold %s after %d attempts: %w", hold.ID, attempt, err)
		}

		backoff := time.Duration(attempt*attempt) * e.opts.SweepBackoff
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// expireOne reports false without error when the hold was confirmed or
// removed since it was listed.
func (e *engine) expireOne(ctx context.Context, hold *model.Reservation) (bool, error) {
	release, cal, err := e.lock(ctx, hold.ResourceID)
	if err != nil {
		return false, err
	}

	now := e.deps.Clock.Now()
	current, ok := cal.Get(hold.ID)
	if !ok || !current.HoldExpired(now) {
		release()
		return false, nil
	}

	next := current.Clone()
	if err := lifecycle.Transition(next, model.StatusExpired, now); err != nil {
		release()
		return false, err
	}
	if err := e.persist(ctx, next); err != nil {
		release()
		return false, err
	}
	cal.Remove(next.ID)
	out := next.Clone()
	release()

	metrics.HoldExpired()
	e.record(ctx, out, "hold deadline passed", model.StatusPending, "")
	e.emit(ctx, events.New(model.EventReservationExpired, out, now))
	e.log.Ctx(ctx).Info("Hold expired",
		"reservation_id", out.ID,
		"resource_id", out.ResourceID,
		"expired_at", now,
	)
	return true, nil
}

// Sweeper runs ExpireHolds on a cron schedule. A run still in progress
// causes the next tick to be skipped.
type Sweeper struct {
	engine ReservationEngine
	cron   *cron.Cron
	log    *logger.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewSweeper(engine ReservationEngine, schedule string, log *logger.Logger) (*Sweeper, error) {
	log = log.Component("hold-sweeper")
	cl := cronLogger{log: log}

	s := &Sweeper{
		engine: engine,
		log:    log,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}

	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info("Hold sweeper started")
}

// Stop cancels a running sweep and waits for it until ctx is done.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
		s.log.Info("Hold sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	return s.engine.ExpireHolds(ctx)
}

func (s *Sweeper) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	expired, err := s.RunOnce(ctx)
	if err != nil {
		s.log.Error("Hold sweep failed", "error", err)
		return
	}
	if expired > 0 {
		s.log.Info("Hold sweep finished", "expired", expired)
	}
}

type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
