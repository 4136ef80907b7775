package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"cyclescan/internal/metrics"
	"cyclescan/internal/model"
)

// DispatcherConfig bounds how much alerting work may be outstanding.
type DispatcherConfig struct {
	// Timeout covers judging and delivering one opportunity.
	Timeout time.Duration
	// RatePerMinute caps how many opportunities are judged; zero disables the cap.
	RatePerMinute float64
	Burst         int
	// MaxInFlight caps concurrent assessments; extra opportunities are dropped.
	MaxInFlight int
}

// Dispatcher judges and delivers opportunities in the background.
type Dispatcher struct {
	logger  *slog.Logger
	judge   Judge
	senders []Sender
	limiter *rate.Limiter
	slots   chan struct{}
	timeout time.Duration
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. m may be nil.
func NewDispatcher(logger *slog.Logger, judge Judge, senders []Sender, cfg DispatcherConfig, m *metrics.Metrics) *Dispatcher {
	limit := rate.Inf
	if cfg.RatePerMinute > 0 {
		limit = rate.Limit(cfg.RatePerMinute / 60)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	inFlight := cfg.MaxInFlight
	if inFlight < 1 {
		inFlight = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		logger:  logger,
		judge:   judge,
		senders: senders,
		limiter: rate.NewLimiter(limit, burst),
		slots:   make(chan struct{}, inFlight),
		timeout: timeout,
		metrics: m,
	}
}

// Dispatch queues r for judging and returns immediately. The work outlives
// ctx's cancellation but not the dispatcher's timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, r model.ValuationResult) {
	if !d.limiter.Allow() {
		d.logger.Debug("Dispatcher: rate limited, dropping opportunity", "cycle", r.CycleID)
		d.metrics.Alert("dropped")
		return
	}
	select {
	case d.slots <- struct{}{}:
	default:
		d.logger.Warn("Dispatcher: too many alerts in flight, dropping opportunity", "cycle", r.CycleID)
		d.metrics.Alert("dropped")
		return
	}

	opp := NewOpportunity(r)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() { <-d.slots }()

		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		d.handle(actx, opp)
	}()
}

// Wait blocks until every dispatched opportunity has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) handle(ctx context.Context, opp model.Opportunity) {
	verdict, err := d.judge.Assess(ctx, opp)
	if err != nil {
		d.logger.Error("Dispatcher: judge failed", "cycle", opp.CycleID, "error", err)
		d.metrics.Alert("failed")
		return
	}
	if !verdict.ShouldAlert {
		d.logger.Debug("Dispatcher: judge declined alert", "cycle", opp.CycleID, "return", opp.PercentReturn)
		d.metrics.Alert("suppressed")
		return
	}

	title := "Arbitrage opportunity: " + opp.PathDescription
	delivered := 0
	for _, s := range d.senders {
		if err := s.Send(ctx, title, verdict.Message); err != nil {
			d.logger.Error("Dispatcher: sender failed", "sender", s.Name(), "cycle", opp.CycleID, "error", err)
			continue
		}
		delivered++
	}
	if delivered == 0 && len(d.senders) > 0 {
		d.metrics.Alert("failed")
		return
	}
	d.metrics.Alert("sent")
}
