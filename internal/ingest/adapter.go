// Package ingest turns upstream rekrutteringstreff events into varsler.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/content"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/domain"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/observability"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/queue"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/service"
	"go.uber.org/zap"
)

const (
	resultCreated = "created"
	resultIgnored = "ignored"
	resultSkipped = "skipped"
	resultInvalid = "invalid"
	resultError   = "error"
)

var eventValidator = validator.New(validator.WithRequiredStructEnabled())

// Creator stores new varsler.
type Creator interface {
	Create(ctx context.Context, req service.CreateRequest) ([]domain.Varsel, error)
}

// eventSpec describes one upstream event type. accept is checked after the
// event name matches; mergeFields, when set, may return an empty list to skip
// the event.
type eventSpec[T any] struct {
	name        string
	eventName   string
	tag         content.Tag
	accept      func(ev *T) bool
	felter      func(ev *T) *TreffFelter
	mergeFields func(ev *T, logger *zap.Logger) []string
}

// Adapter consumes one upstream event type and creates varsler with one tag.
type Adapter struct {
	name    string
	tag     content.Tag
	handle  func(ctx context.Context, body []byte) (string, error)
	logger  *zap.Logger
	metrics *observability.Metrics
}

func newAdapter[T any](spec eventSpec[T], creator Creator, logger *zap.Logger, metrics *observability.Metrics) (*Adapter, error) {
	if creator == nil {
		return nil, fmt.Errorf("%s adapter: creator is required", spec.name)
	}
	if _, ok := content.Lookup(spec.tag.String()); !ok {
		return nil, fmt.Errorf("%s adapter: unknown tag %s", spec.name, spec.tag)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("adapter", spec.name))

	handle := func(ctx context.Context, body []byte) (string, error) {
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return resultInvalid, fmt.Errorf("decode event: %w", err)
		}
		if env.EventName != spec.eventName {
			return resultIgnored, nil
		}

		var ev T
		if err := json.Unmarshal(body, &ev); err != nil {
			return resultInvalid, fmt.Errorf("decode %s: %w", spec.eventName, err)
		}
		if spec.accept != nil && !spec.accept(&ev) {
			return resultIgnored, nil
		}
		if err := eventValidator.Struct(&ev); err != nil {
			return resultInvalid, fmt.Errorf("%w: %s: %v", domain.ErrValidation, spec.eventName, err)
		}

		f := spec.felter(&ev)
		var mergeFields []string
		if spec.mergeFields != nil {
			mergeFields = spec.mergeFields(&ev, logger)
			if len(mergeFields) == 0 {
				logger.Info("no known changes in event, skipping", zap.String("rekrutteringstreffId", f.TreffID))
				return resultSkipped, nil
			}
		}

		sender := strings.TrimSpace(f.AvsenderNavident)
		if sender == "" {
			sender = domain.SystemSender
		}

		varsler, err := creator.Create(ctx, service.CreateRequest{
			Tag:         spec.tag,
			SourceID:    f.TreffID,
			Recipients:  f.Fnr,
			Sender:      sender,
			MergeFields: mergeFields,
		})
		if err != nil {
			return resultError, err
		}

		logger.Info("varsler created from event",
			zap.String("rekrutteringstreffId", f.TreffID),
			zap.Int("count", len(varsler)),
		)
		return resultCreated, nil
	}

	return &Adapter{
		name:    spec.name,
		tag:     spec.tag,
		handle:  handle,
		logger:  logger,
		metrics: metrics,
	}, nil
}

func (a *Adapter) Name() string     { return a.name }
func (a *Adapter) Tag() content.Tag { return a.tag }

// Handle processes one upstream message. Events that do not match the
// adapter's precondition are acknowledged without effect; any other failure is
// returned so the message is redelivered.
func (a *Adapter) Handle(ctx context.Context, msg queue.Message) error {
	result, err := a.handle(ctx, msg.Body)
	a.metrics.IncIngestionEvent(a.name, result)
	if err != nil {
		a.logger.Error("failed to ingest event",
			zap.Error(err),
			zap.Bool("redelivered", msg.Redelivered),
		)
		return fmt.Errorf("%s: %w", a.name, err)
	}
	return nil
}
