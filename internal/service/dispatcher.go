package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/content"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/domain"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/observability"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/queue"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/ratelimit"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/repository"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/stilling"
	"go.uber.org/zap"
)

const (
	dispatchRateScope           = "brukervarsel"
	defaultDispatchIdleBackoff  = time.Second
	defaultDispatchErrorBackoff = 5 * time.Second
	defaultVarselActiveFor      = 28 * 24 * time.Hour
)

// ErrUnknownTag is returned when a varsel carries a tag the registry does not know.
var ErrUnknownTag = errors.New("unknown content tag")

type DispatcherConfig struct {
	StillingLinkBaseURL string
	TreffLinkBaseURL    string
	ActiveFor           time.Duration
	Produsent           queue.Produsent
	IdleBackoff         time.Duration
	ErrorBackoff        time.Duration
}

// Dispatcher moves varsler from the store to the notification platform, one
// claimed row at a time.
type Dispatcher struct {
	varsler     repository.VarselRepository
	publisher   queue.Publisher
	stillinger  stilling.Lookup
	rateLimiter ratelimit.RateLimiter
	cfg         DispatcherConfig
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(
	varsler repository.VarselRepository,
	publisher queue.Publisher,
	stillinger stilling.Lookup,
	rateLimiter ratelimit.RateLimiter,
	cfg DispatcherConfig,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*Dispatcher, error) {
	if varsler == nil {
		return nil, fmt.Errorf("varsel repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if stillinger == nil {
		return nil, fmt.Errorf("stilling lookup is required")
	}
	for name, raw := range map[string]string{"stilling": cfg.StillingLinkBaseURL, "treff": cfg.TreffLinkBaseURL} {
		if _, err := url.ParseRequestURI(strings.TrimSpace(raw)); err != nil {
			return nil, fmt.Errorf("invalid %s link base url %q: %w", name, raw, err)
		}
	}
	if cfg.ActiveFor <= 0 {
		cfg.ActiveFor = defaultVarselActiveFor
	}
	if cfg.IdleBackoff <= 0 {
		cfg.IdleBackoff = defaultDispatchIdleBackoff
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = defaultDispatchErrorBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		varsler:     varsler,
		publisher:   publisher,
		stillinger:  stillinger,
		rateLimiter: rateLimiter,
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
		sleep:       sleepWithContext,
	}, nil
}

// Start dispatches until ctx is done. Errors are logged and retried after a
// fixed backoff; an empty store is polled again after the idle backoff.
func (d *Dispatcher) Start(ctx context.Context) error {
	for ctx.Err() == nil {
		dispatched, err := d.DispatchOne(ctx)

		var wait time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			d.logger.Error("dispatch failed", zap.Error(err))
			wait = d.cfg.ErrorBackoff
		case !dispatched:
			wait = d.cfg.IdleBackoff
		default:
			continue
		}

		if err := d.sleep(ctx, wait); err != nil {
			return nil
		}
	}
	return nil
}

// DispatchOne claims the oldest unsent varsel, publishes it and marks it
// dispatched once the broker has confirmed. It reports false when nothing was
// claimable. On error the claim is rolled back and the varsel stays unsent.
func (d *Dispatcher) DispatchOne(ctx context.Context) (bool, error) {
	if d.rateLimiter != nil {
		if err := d.rateLimiter.Wait(ctx, dispatchRateScope); err != nil {
			d.metrics.IncDispatchError("ratelimit")
			return false, fmt.Errorf("wait for dispatch slot: %w", err)
		}
	}

	var dispatched *domain.Varsel
	start := d.now()

	err := d.varsler.Transaction(ctx, func(repo repository.VarselRepository) error {
		v, err := repo.ClaimNextUnsent(ctx)
		if err != nil {
			d.metrics.IncDispatchError("claim")
			return fmt.Errorf("claim next unsent varsel: %w", err)
		}
		if v == nil {
			return nil
		}

		ctx := observability.WithVarselID(ctx, v.VarselID)
		msg, err := d.buildMessage(ctx, v)
		if err != nil {
			d.metrics.IncDispatchError(dispatchErrorReason(err))
			return fmt.Errorf("build varsel %s: %w", v.VarselID, err)
		}

		if err := d.publisher.Publish(ctx, msg); err != nil {
			d.metrics.IncDispatchError("publish")
			return fmt.Errorf("publish varsel %s: %w", v.VarselID, err)
		}

		updated, err := repo.MarkDispatched(ctx, v)
		if err != nil {
			d.metrics.IncDispatchError("mark")
			return fmt.Errorf("mark varsel %s dispatched: %w", v.VarselID, err)
		}
		dispatched = updated
		return nil
	})
	if err != nil {
		return false, err
	}
	if dispatched == nil {
		return false, nil
	}

	d.metrics.IncVarselDispatched(dispatched.Tag)
	d.metrics.ObserveDispatchDuration(d.now().Sub(start))
	observability.WithContextLogger(d.logger, observability.WithVarselID(ctx, dispatched.VarselID)).
		Info("varsel dispatched",
			zap.String("mal", dispatched.Tag),
			zap.String("sourceId", dispatched.SourceID),
		)
	return true, nil
}

func (d *Dispatcher) buildMessage(ctx context.Context, v *domain.Varsel) (queue.OpprettVarsel, error) {
	variant, ok := content.Lookup(v.Tag)
	if !ok {
		return queue.OpprettVarsel{}, fmt.Errorf("%w: %q", ErrUnknownTag, v.Tag)
	}

	params := content.Params{MergeFields: v.MergeFields}
	linkBase := d.cfg.TreffLinkBaseURL
	if variant.NeedsLookup() {
		info, err := d.stillinger.Get(ctx, v.SourceID)
		if err != nil {
			return queue.OpprettVarsel{}, err
		}
		params.Title = info.Title
		params.Employer = info.Employer
		linkBase = d.cfg.StillingLinkBaseURL
	}

	tekster, err := variant.Render(params)
	if err != nil {
		return queue.OpprettVarsel{}, err
	}

	msg := queue.NewOpprettVarsel(queue.VarselContent{
		VarselID:    v.VarselID,
		Ident:       v.Recipient,
		Link:        strings.TrimRight(linkBase, "/") + "/" + url.PathEscape(v.SourceID),
		Minside:     tekster.Minside,
		SMS:         tekster.SMS,
		EpostTittel: tekster.EpostTittel,
		EpostTekst:  tekster.EpostTekst,
	}, d.now().Add(d.cfg.ActiveFor), d.cfg.Produsent)

	return msg, nil
}

func dispatchErrorReason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownTag):
		return "unknown_tag"
	case errors.Is(err, stilling.ErrNotFound):
		return "stilling_not_found"
	case stilling.IsTransient(err):
		return "lookup"
	default:
		return "render"
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
