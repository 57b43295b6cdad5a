package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	nativecommon "fusdpool/native/common"
	"fusdpool/native/liquidity"
)

// Accruer is the engine surface driven by the scheduler.
type Accruer interface {
	CurrentEpoch() (uint64, error)
	ApplyRewards(cursor string, limit int) (liquidity.BatchResult, error)
}

// Config controls the sweep cadence.
type Config struct {
	Interval time.Duration
	PageSize int
	// PagesPerSecond throttles page commits within one sweep. Zero disables
	// throttling.
	PagesPerSecond float64
}

// Sweep summarises one walk over the ledger.
type Sweep struct {
	Epoch     uint64
	Pages     int
	Processed int
	Accrued   int
	Skipped   bool
}

// Scheduler periodically brings every ledger entry up to the current epoch.
type Scheduler struct {
	accruer  Accruer
	interval time.Duration
	pageSize int
	limiter  *rate.Limiter
	logger   *slog.Logger
	tracer   trace.Tracer
	pages    metric.Int64Counter

	mu         sync.Mutex
	sweptEpoch uint64
	swept      bool
}

// New constructs a scheduler.
func New(accruer Accruer, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	if accruer == nil {
		return nil, fmt.Errorf("scheduler: accruer required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 200
	}
	if cfg.PagesPerSecond < 0 {
		return nil, fmt.Errorf("scheduler: pages per second must not be negative")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		accruer:  accruer,
		interval: cfg.Interval,
		pageSize: cfg.PageSize,
		logger:   logger,
		tracer:   otel.Tracer("fusdpool/scheduler"),
	}
	if cfg.PagesPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.PagesPerSecond), 1)
	}
	meter := otel.GetMeterProvider().Meter("fusdpool/scheduler")
	counter, err := meter.Int64Counter("fusd.pool.scheduler.pages")
	if err != nil {
		counter, _ = noop.NewMeterProvider().Meter("fusdpool/scheduler").Int64Counter("fusd.pool.scheduler.pages")
	}
	s.pages = counter
	return s, nil
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("scheduler: started",
		slog.Duration("interval", s.interval),
		slog.Int("page_size", s.pageSize))
	for {
		if _, err := s.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, nativecommon.ErrModulePaused) {
				s.logger.Warn("scheduler: pool paused, sweep skipped")
			} else {
				s.logger.Error("scheduler: sweep failed", slog.Any("error", err))
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce walks the ledger page by page. A walk is skipped when the previous
// one completed at the same epoch.
func (s *Scheduler) RunOnce(ctx context.Context) (Sweep, error) {
	current, err := s.accruer.CurrentEpoch()
	if err != nil {
		return Sweep{}, err
	}
	s.mu.Lock()
	skip := s.swept && s.sweptEpoch == current
	s.mu.Unlock()
	if skip {
		return Sweep{Epoch: current, Skipped: true}, nil
	}

	sweep := Sweep{Epoch: current}
	cursor := ""
	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return sweep, err
			}
		} else if err := ctx.Err(); err != nil {
			return sweep, err
		}
		result, err := s.page(ctx, cursor)
		if err != nil {
			return sweep, err
		}
		sweep.Pages++
		sweep.Processed += result.Processed
		sweep.Accrued += result.Accrued
		if result.Epoch > sweep.Epoch {
			sweep.Epoch = result.Epoch
		}
		if result.Done() {
			break
		}
		cursor = result.NextCursor
	}

	s.mu.Lock()
	s.swept = true
	s.sweptEpoch = current
	s.mu.Unlock()
	s.logger.Info("scheduler: sweep complete",
		slog.Uint64("epoch", sweep.Epoch),
		slog.Int("pages", sweep.Pages),
		slog.Int("processed", sweep.Processed),
		slog.Int("accrued", sweep.Accrued))
	return sweep, nil
}

func (s *Scheduler) page(ctx context.Context, cursor string) (liquidity.BatchResult, error) {
	ctx, span := s.tracer.Start(ctx, "scheduler.apply_rewards",
		trace.WithAttributes(attribute.String("cursor", cursor), attribute.Int("limit", s.pageSize)))
	defer span.End()
	result, err := s.accruer.ApplyRewards(cursor, s.pageSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.pages.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		return liquidity.BatchResult{}, err
	}
	span.SetAttributes(
		attribute.Int64("epoch", int64(result.Epoch)),
		attribute.Int("processed", result.Processed),
		attribute.Int("accrued", result.Accrued),
	)
	span.SetStatus(codes.Ok, "page applied")
	s.pages.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "success")))
	return result, nil
}
