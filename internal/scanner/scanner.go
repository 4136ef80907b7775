// Package scanner drives periodic valuation of every catalog cycle against a
// consistent quote snapshot and hands the outcome to its sinks.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"cyclescan/internal/arbitrage"
	"cyclescan/internal/metrics"
	"cyclescan/internal/model"
)

// SnapshotSource hands out immutable views of current quotes.
type SnapshotSource interface {
	Snapshot() model.Snapshot
}

// Publisher receives every batch for presentation.
type Publisher interface {
	PublishBatch(ctx context.Context, batch Batch) error
}

// Recorder persists qualifying results.
type Recorder interface {
	LogOpportunity(ctx context.Context, r model.ValuationResult) error
}

// Alerter is told about qualifying results. It must not block.
type Alerter interface {
	Dispatch(ctx context.Context, r model.ValuationResult)
}

// Batch is the outcome of one tick.
type Batch struct {
	Results       []model.ValuationResult
	Opportunities []model.ValuationResult
	FeeRate       float64
	Threshold     float64
	SnapshotAt    time.Time
	// Skipped maps a cycle id to the reason it produced no result.
	Skipped map[string]error
}

// Config holds the scanner's tunables.
type Config struct {
	Interval         time.Duration
	ThresholdPercent float64
	FeeRate          float64
	Workers          int
	// MissingQuoteAlertTicks is how many consecutive ticks a cycle may lack
	// quotes before the operator is warned. Zero disables the warning.
	MissingQuoteAlertTicks int
}

// Scanner evaluates the catalog on a fixed cadence.
type Scanner struct {
	logger  *slog.Logger
	engine  *arbitrage.Engine
	cycles  []model.Cycle
	source  SnapshotSource
	cfg     Config
	metrics *metrics.Metrics

	publishers []Publisher
	recorders  []Recorder
	alerters   []Alerter

	feeMu   sync.RWMutex
	feeRate float64

	running atomic.Bool

	// only touched by the tick holding running
	streaks map[string]int
}

// Option attaches a sink or collaborator to a Scanner.
type Option func(*Scanner)

func WithPublisher(p Publisher) Option {
	return func(s *Scanner) { s.publishers = append(s.publishers, p) }
}

func WithRecorder(r Recorder) Option {
	return func(s *Scanner) { s.recorders = append(s.recorders, r) }
}

func WithAlerter(a Alerter) Option {
	return func(s *Scanner) { s.alerters = append(s.alerters, a) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scanner) { s.metrics = m }
}

// New creates a Scanner over cycles. The fee rate in cfg is validated.
func New(logger *slog.Logger, engine *arbitrage.Engine, cycles []model.Cycle, source SnapshotSource, cfg Config, opts ...Option) (*Scanner, error) {
	if err := validFee(cfg.FeeRate); err != nil {
		return nil, err
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("scanner: interval must be positive, got %s", cfg.Interval)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	s := &Scanner{
		logger:  logger,
		engine:  engine,
		cycles:  append([]model.Cycle(nil), cycles...),
		source:  source,
		cfg:     cfg,
		feeRate: cfg.FeeRate,
		streaks: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetFeeRate changes the fee applied from the next tick on.
func (s *Scanner) SetFeeRate(fee float64) error {
	if err := validFee(fee); err != nil {
		return err
	}
	s.feeMu.Lock()
	old := s.feeRate
	s.feeRate = fee
	s.feeMu.Unlock()
	if old != fee {
		s.logger.Info("Scanner: fee rate updated", "old", old, "new", fee)
	}
	return nil
}

// FeeRate returns the fee the next tick will use.
func (s *Scanner) FeeRate() float64 {
	s.feeMu.RLock()
	defer s.feeMu.RUnlock()
	return s.feeRate
}

// Run ticks until ctx is cancelled. A tick that would overlap one still in
// progress is skipped.
func (s *Scanner) Run(ctx context.Context) error {
	s.logger.Info("Scanner: starting", "cycles", len(s.cycles), "interval", s.cfg.Interval, "threshold", s.cfg.ThresholdPercent)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scanner: stopping")
			wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Tick(ctx)
			}()
		}
	}
}

// Tick performs one scan. It returns false without doing anything when
// another tick is still running.
func (s *Scanner) Tick(ctx context.Context) (Batch, bool) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("Scanner: previous tick still running, skipping")
		s.metrics.TickSkipped()
		return Batch{}, false
	}
	defer s.running.Store(false)

	start := time.Now()
	snap := s.source.Snapshot()
	fee := s.FeeRate()

	results := make([]model.ValuationResult, len(s.cycles))
	errs := make([]error, len(s.cycles))

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, c := range s.cycles {
		g.Go(func() error {
			results[i], errs[i] = s.engine.Evaluate(c, snap, fee)
			return nil
		})
	}
	_ = g.Wait()

	batch := Batch{
		FeeRate:    fee,
		Threshold:  s.cfg.ThresholdPercent,
		SnapshotAt: snap.TakenAt,
		Skipped:    make(map[string]error),
	}
	for i, c := range s.cycles {
		if errs[i] != nil {
			s.skip(c, errs[i])
			batch.Skipped[c.ID] = errs[i]
			continue
		}
		delete(s.streaks, c.ID)
		batch.Results = append(batch.Results, results[i])
	}
	batch.Opportunities = arbitrage.Filter(batch.Results, s.cfg.ThresholdPercent)

	s.deliver(ctx, batch)

	best := 0.0
	for i, r := range batch.Results {
		if i == 0 || r.PercentReturn > best {
			best = r.PercentReturn
		}
	}
	s.metrics.OpportunitiesFound(len(batch.Opportunities), best)
	s.metrics.TickCompleted(time.Since(start), len(snap.Quotes))
	s.logger.Debug("Scanner: tick complete",
		"evaluated", len(batch.Results),
		"skipped", len(batch.Skipped),
		"opportunities", len(batch.Opportunities),
		"duration", time.Since(start),
	)
	return batch, true
}

func (s *Scanner) skip(c model.Cycle, err error) {
	switch {
	case errors.Is(err, arbitrage.ErrMissingQuote):
		s.metrics.CycleFailed("missing_quote")
		s.streaks[c.ID]++
		n := s.streaks[c.ID]
		s.logger.Debug("Scanner: cycle skipped", "cycle", c.ID, "error", err)
		if s.cfg.MissingQuoteAlertTicks > 0 && n == s.cfg.MissingQuoteAlertTicks {
			s.logger.Warn("Scanner: cycle has been missing quotes", "cycle", c.ID, "path", c.Path(), "ticks", n, "error", err)
		}
	case errors.Is(err, arbitrage.ErrInvalidQuote):
		s.metrics.CycleFailed("invalid_quote")
		s.logger.Debug("Scanner: cycle skipped", "cycle", c.ID, "error", err)
	case errors.Is(err, arbitrage.ErrInvalidLeg):
		s.metrics.CycleFailed("invalid_leg")
		s.logger.Error("Scanner: cycle is misconfigured", "cycle", c.ID, "error", err)
	default:
		s.metrics.CycleFailed("other")
		s.logger.Error("Scanner: cycle evaluation failed", "cycle", c.ID, "error", err)
	}
}

func (s *Scanner) deliver(ctx context.Context, batch Batch) {
	for _, p := range s.publishers {
		if err := p.PublishBatch(ctx, batch); err != nil {
			s.metrics.SinkFailed("publish")
			s.logger.Error("Scanner: failed to publish batch", "error", err)
		}
	}
	for _, o := range batch.Opportunities {
		s.logger.Info("Profitable cycle found",
			"cycle", o.CycleID,
			"return", o.PercentReturn,
			"finalAmount", o.FinalAmount,
		)
		for _, r := range s.recorders {
			if err := r.LogOpportunity(ctx, o); err != nil {
				s.metrics.SinkFailed("record")
				s.logger.Error("Failed to log opportunity", "cycle", o.CycleID, "error", err)
			}
		}
		for _, a := range s.alerters {
			a.Dispatch(ctx, o)
		}
	}
}

func validFee(fee float64) error {
	if !(fee >= 0 && fee < 1) {
		return fmt.Errorf("scanner: %w: %v", arbitrage.ErrInvalidFee, fee)
	}
	return nil
}
