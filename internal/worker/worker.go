// Package worker runs the background renewal sweep. The sweep is the
// only writer that advances billing periods, so clock-driven state
// changes stay out of the request path.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/strandhq/billing/internal/domain"
	"github.com/strandhq/billing/internal/telemetry"
)

// Config holds renewal worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// PollInterval is how often the sweep runs
	PollInterval time.Duration

	// Window is how far ahead of period end a subscription is picked up
	Window time.Duration
}

// Worker periodically sweeps subscriptions whose billing period is
// about to end and renews, converts, or finalizes them.
type Worker struct {
	config        Config
	subscriptions domain.SubscriptionService
	logger        *slog.Logger
}

// NewWorker creates a renewal sweep worker
func NewWorker(subscriptions domain.SubscriptionService, config Config, logger *slog.Logger) *Worker {
	// Set defaults
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Hour
	}
	if config.Window == 0 {
		config.Window = 24 * time.Hour
	}

	return &Worker{
		config:        config,
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// Start runs the sweep loop until the context is cancelled. The first
// sweep happens immediately so a restarted worker never waits a full
// poll interval with renewals already due.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("renewal worker starting",
		"worker_id", w.config.WorkerID,
		"poll_interval", w.config.PollInterval,
		"window", w.config.Window,
	)

	w.sweep(ctx)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("renewal worker shutting down", "worker_id", w.config.WorkerID)
			return ctx.Err()

		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep runs one pass over due subscriptions. Errors are logged, never
// fatal; the next tick retries whatever this pass could not finish.
func (w *Worker) sweep(ctx context.Context) {
	start := time.Now()

	processed, err := w.subscriptions.ProcessDueRenewals(ctx, w.config.Window)

	duration := time.Since(start)
	if telemetry.Business != nil {
		telemetry.Business.RenewalSweepDuration.WithLabelValues(w.config.WorkerID).Observe(duration.Seconds())
	}

	if err != nil {
		w.logger.Error("renewal sweep failed",
			"worker_id", w.config.WorkerID,
			"processed", processed,
			"duration", duration,
			"error", err,
		)
		if telemetry.Business != nil {
			telemetry.Business.RenewalSweepRuns.WithLabelValues(w.config.WorkerID, "error").Inc()
		}
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.RenewalSweepRuns.WithLabelValues(w.config.WorkerID, "ok").Inc()
	}

	if processed > 0 {
		w.logger.Info("renewal sweep completed",
			"worker_id", w.config.WorkerID,
			"processed", processed,
			"duration", duration,
		)
	} else {
		w.logger.Debug("renewal sweep found nothing due",
			"worker_id", w.config.WorkerID,
			"duration", duration,
		)
	}
}
