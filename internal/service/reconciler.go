package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/domain"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/observability"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/queue"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultStatusPollWait      = time.Second
	defaultReconcileErrBackoff = 5 * time.Second
)

type ReconcilerConfig struct {
	PollWait     time.Duration
	ErrorBackoff time.Duration
}

// Reconciler applies status reports from the notification platform to the
// stored varsler. A polled batch is committed only after every update in it
// has been applied; otherwise the batch is rewound and redelivered whole.
type Reconciler struct {
	varsler repository.VarselRepository
	poller  queue.Poller
	cfg     ReconcilerConfig
	logger  *zap.Logger
	metrics *observability.Metrics
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewReconciler(
	varsler repository.VarselRepository,
	poller queue.Poller,
	cfg ReconcilerConfig,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*Reconciler, error) {
	if varsler == nil {
		return nil, fmt.Errorf("varsel repository is required")
	}
	if poller == nil {
		return nil, fmt.Errorf("poller is required")
	}
	if cfg.PollWait <= 0 {
		cfg.PollWait = defaultStatusPollWait
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = defaultReconcileErrBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Reconciler{
		varsler: varsler,
		poller:  poller,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		sleep:   sleepWithContext,
	}, nil
}

func (r *Reconciler) Start(ctx context.Context) error {
	for ctx.Err() == nil {
		if _, err := r.ReconcileOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("status reconciliation failed", zap.Error(err))
			if err := r.sleep(ctx, r.cfg.ErrorBackoff); err != nil {
				return nil
			}
		}
	}
	return nil
}

// ReconcileOnce runs one poll cycle and returns the number of messages it
// committed.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (int, error) {
	msgs, err := r.poller.Poll(ctx, r.cfg.PollWait)
	if err != nil {
		r.metrics.IncReconcileCycle("poll_error")
		return 0, fmt.Errorf("poll status queue: %w", err)
	}
	if len(msgs) == 0 {
		r.metrics.IncReconcileCycle("empty")
		return 0, nil
	}

	updates := make([]domain.StatusUpdate, 0, len(msgs))
	for _, msg := range msgs {
		update, err := queue.DecodeStatusEvent(msg.Body)
		if err != nil {
			return 0, r.rewind(fmt.Errorf("decode status message %q: %w", msg.Key, err))
		}
		updates = append(updates, update)
	}

	var applied []domain.StatusUpdate
	ignored := 0
	err = r.varsler.Transaction(ctx, func(repo repository.VarselRepository) error {
		applied = applied[:0]
		ignored = 0
		for _, update := range updates {
			v, err := repo.ApplyStatusUpdate(ctx, update)
			if err != nil {
				return fmt.Errorf("apply %s to varsel %s: %w", update.Kind(), update.TargetVarselID(), err)
			}
			if v == nil {
				ignored++
				r.logger.Warn("status update for unknown varsel",
					zap.String("varselId", update.TargetVarselID()),
					zap.String("kind", update.Kind()),
				)
				continue
			}
			applied = append(applied, update)
		}
		return nil
	})
	if err != nil {
		return 0, r.rewind(err)
	}

	if err := r.poller.Commit(); err != nil {
		r.metrics.IncReconcileCycle("commit_error")
		return 0, fmt.Errorf("commit status batch: %w", err)
	}

	for _, update := range applied {
		r.metrics.IncStatusUpdateApplied(update.Kind())
	}
	for i := 0; i < ignored; i++ {
		r.metrics.IncStatusUpdateIgnored()
	}
	r.metrics.IncReconcileCycle("committed")
	r.logger.Debug("status batch committed",
		zap.Int("messages", len(msgs)),
		zap.Int("applied", len(applied)),
		zap.Int("ignored", ignored),
	)
	return len(msgs), nil
}

func (r *Reconciler) rewind(cause error) error {
	r.metrics.IncReconcileCycle("rewound")
	if err := r.poller.Rewind(); err != nil {
		return errors.Join(cause, fmt.Errorf("rewind status batch: %w", err))
	}
	return cause
}
