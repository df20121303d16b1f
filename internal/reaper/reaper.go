// Package reaper expires seat holds whose lock has lapsed so their seats
// return to the pool.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirinyoku/cinehold/internal/domain"
	"github.com/kirinyoku/cinehold/internal/event"
)

const (
	DefaultInterval  = 60 * time.Second
	DefaultBatchSize = 500
)

// ErrRunning is returned by Start when the reaper is already started.
var ErrRunning = errors.New("reaper already running")

type Ledger interface {
	ExpireHolds(ctx context.Context, now time.Time, limit int) ([]domain.Booking, error)
}

// Guard serializes sweeps across replicas. TryLock reports ok=false when
// another replica is sweeping.
type Guard interface {
	TryLock(ctx context.Context) (unlock func(context.Context) error, ok bool, err error)
}

type localGuard struct{}

func (localGuard) TryLock(context.Context) (func(context.Context) error, bool, error) {
	return func(context.Context) error { return nil }, true, nil
}

type Config struct {
	Interval  time.Duration
	BatchSize int
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

type Reaper struct {
	ledger   Ledger
	guard    Guard
	notifier event.ShowNotifier
	events   event.Publisher
	log      *slog.Logger
	cfg      Config

	sweeping atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a reaper. A nil guard means this process is the only sweeper.
func New(
	ledger Ledger,
	guard Guard,
	notifier event.ShowNotifier,
	events event.Publisher,
	logger *slog.Logger,
	cfg Config,
) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if guard == nil {
		guard = localGuard{}
	}

	if notifier == nil {
		notifier = event.Nop{}
	}

	if events == nil {
		events = event.Nop{}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Reaper{
		ledger:   ledger,
		guard:    guard,
		notifier: notifier,
		events:   events,
		log:      logger.With(slog.String("component", "reaper")),
		cfg:      cfg,
	}
}

// Start launches the periodic sweep. It returns immediately; the loop runs
// until ctx is done or Stop is called.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.loop(ctx, r.done)

	r.log.InfoContext(ctx, "reaper started",
		slog.Duration("interval", r.cfg.Interval),
		slog.Int("batch_size", r.cfg.BatchSize),
	)

	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (r *Reaper) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

// Run starts the reaper and blocks until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	r.Stop()

	return nil
}

func (r *Reaper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	t := time.NewTicker(r.cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := r.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.log.ErrorContext(ctx, "sweep failed", slog.Any("err", err))
			}
		}
	}
}

// Sweep expires every hold whose lock lapsed before now, in batches. A call
// that finds another sweep in progress, here or on another replica, returns
// 0 without doing anything.
//
// Returns:
//   - int: number of bookings moved to EXPIRED.
//   - error: if the ledger or the guard fails; bookings expired by earlier
//     batches stay expired.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	const op = "reaper.Reaper.Sweep"

	if !r.sweeping.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer r.sweeping.Store(false)

	unlock, ok, err := r.guard.TryLock(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	if !ok {
		r.log.DebugContext(ctx, "sweep skipped, lock held elsewhere")
		return 0, nil
	}

	defer func() {
		// the sweep ctx may already be cancelled
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		defer cancel()

		if err := unlock(uctx); err != nil {
			r.log.WarnContext(ctx, "release reaper lock failed", slog.Any("err", err))
		}
	}()

	now := r.cfg.Now()
	total := 0

	for {
		expired, err := r.ledger.ExpireHolds(ctx, now, r.cfg.BatchSize)
		if err != nil {
			return total, fmt.Errorf("%s:%w", op, err)
		}

		total += len(expired)
		r.announce(ctx, expired, now)

		if len(expired) < r.cfg.BatchSize {
			break
		}
	}

	if total > 0 {
		r.log.InfoContext(ctx, "expired holds", slog.Int("count", total))
	}

	return total, nil
}

func (r *Reaper) announce(ctx context.Context, expired []domain.Booking, now time.Time) {
	shows := make(map[int64]struct{})

	for _, b := range expired {
		shows[b.ShowID] = struct{}{}

		ev := domain.BookingEvent{
			Type:       domain.EventBookingExpired,
			BookingID:  b.ID,
			UserID:     b.UserID,
			ShowID:     b.ShowID,
			Status:     string(domain.BookingExpired),
			OccurredAt: now,
		}
		if err := r.events.PublishBookingEvent(ctx, ev); err != nil {
			r.log.WarnContext(ctx, "publish booking event failed",
				slog.String("booking_id", b.ID.String()),
				slog.Any("err", err),
			)
		}
	}

	for id := range shows {
		if err := r.notifier.PublishShowChanged(ctx, id); err != nil {
			r.log.WarnContext(ctx, "publish show changed failed",
				slog.Int64("show_id", id),
				slog.Any("err", err),
			)
		}
	}
}
