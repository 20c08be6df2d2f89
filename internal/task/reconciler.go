package task

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper runs one reconciliation sweep over all queued tasks.
type Sweeper interface {
	// ReconcileQueued polls the providers for every task that still
	// has a queued item and applies the resulting transitions.
	ReconcileQueued(ctx context.Context) error
}

// ReconcilerConfig holds configuration for the reconciliation loop.
type ReconcilerConfig struct {
	// Interval is the sweep cadence. If zero, defaults to 15 seconds.
	Interval time.Duration
}

// Reconciler drives periodic status reconciliation. Sweeps run
// synchronously inside the loop goroutine, so two sweeps never overlap;
// ticks that fire while a sweep is still running are dropped by the
// ticker.
type Reconciler struct {
	sweeper    Sweeper
	interval   time.Duration
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// NewReconciler creates a new Reconciler.
func NewReconciler(sweeper Sweeper, config ReconcilerConfig, logger *slog.Logger) *Reconciler {
	interval := config.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Reconciler{
		sweeper:    sweeper,
		interval:   interval,
		ctx:        ctx,
		cancelFunc: cancel,
		logger:     logger.With("component", "reconciler"),
	}
}

// Start launches the reconciliation loop.
func (r *Reconciler) Start() {
	r.wg.Add(1)
	go r.loop()

	r.logger.Info("reconciler started", "interval", r.interval.String())
}

// Stop shuts the loop down, waiting for an in-flight sweep to finish.
func (r *Reconciler) Stop() {
	r.cancelFunc()
	r.wg.Wait()
	r.logger.Info("reconciler stopped")
}

// loop ticks at the configured interval and runs sweeps.
func (r *Reconciler) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			start := time.Now()
			if err := r.sweeper.ReconcileQueued(r.ctx); err != nil {
				// A sweep-level failure (e.g. the queued-task query)
				// is logged and retried on the next tick.
				r.logger.Error("reconciliation sweep failed", "error", err)
				continue
			}
			r.logger.Debug("reconciliation sweep finished",
				"duration", time.Since(start).String())
		}
	}
}
