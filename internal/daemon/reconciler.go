package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/1broseidon/autumn/internal/desktop"
	"github.com/1broseidon/autumn/internal/runloop"
)

// StatsRecorder receives registry sizes and reconciliation outcomes.
type StatsRecorder interface {
	SetSizes(apps, windows, screens int)
	Reconciled(err error)
}

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Reconciler periodically resynchronizes the registries with the platform,
// correcting notifications that were never delivered.
type Reconciler struct {
	interval time.Duration
	loop     *runloop.Loop
	desktop  *desktop.Desktop
	stats    StatsRecorder
	logger   *slog.Logger
}

// NewReconciler creates a new reconciler with the given configuration.
// Passes run on loop; stats may be nil.
func NewReconciler(cfg ReconcilerConfig, loop *runloop.Loop, d *desktop.Desktop, stats StatsRecorder) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		interval: interval,
		loop:     loop,
		desktop:  d,
		stats:    stats,
		logger:   logger,
	}
}

// Run starts the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

// reconcile performs a single reconciliation pass on the loop. Panics in the
// pass are recovered by the loop and reported as errors.
func (r *Reconciler) reconcile(ctx context.Context) {
	err := r.loop.Do(ctx, r.pass)
	if err != nil && ctx.Err() == nil {
		r.logger.Warn("reconciler: pass failed", "error", err)
	}
}

func (r *Reconciler) pass() error {
	report, err := r.desktop.Sync()
	if r.stats != nil {
		r.stats.Reconciled(err)
	}
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	if report.Changed() {
		r.logger.Info("reconciler: corrected drift",
			"apps_added", report.AppsAdded,
			"apps_removed", report.AppsRemoved,
			"windows_added", report.WindowsAdded,
			"windows_removed", report.WindowsRemoved)
	}
	r.recordSizes()
	return nil
}

func (r *Reconciler) recordSizes() {
	if r.stats == nil {
		return
	}
	r.stats.SetSizes(r.desktop.Apps().Len(), r.desktop.Windows().Len(), r.desktop.Screens().Len())
}

// ReconcileNow triggers an immediate reconciliation pass.
func (r *Reconciler) ReconcileNow(ctx context.Context) {
	r.reconcile(ctx)
}
