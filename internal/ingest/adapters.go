package ingest

import (
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/content"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/observability"
	"go.uber.org/zap"
)

const (
	invitasjonEventName = "rekrutteringstreffinvitasjon"
	endringEventName    = "rekrutteringstreffoppdatering"
	avlysningEventName  = "rekrutteringstreffSvarOgStatus"
	treffstatusAvlyst   = "avlyst"
)

func NewInvitasjonAdapter(creator Creator, logger *zap.Logger, metrics *observability.Metrics) (*Adapter, error) {
	return newAdapter(eventSpec[invitasjonEvent]{
		name:      "invitasjon",
		eventName: invitasjonEventName,
		tag:       content.TagInvitertTreff,
		felter:    func(ev *invitasjonEvent) *TreffFelter { return &ev.TreffFelter },
	}, creator, logger, metrics)
}

// NewEndringAdapter handles changes to a treff. Only events flagged for
// notification are used, and only the changes with a known display name end up
// in the texts.
func NewEndringAdapter(creator Creator, logger *zap.Logger, metrics *observability.Metrics) (*Adapter, error) {
	return newAdapter(eventSpec[endringEvent]{
		name:      "endring",
		eventName: endringEventName,
		tag:       content.TagInvitertTreffEndret,
		accept:    func(ev *endringEvent) bool { return ev.SkalVarsle },
		felter:    func(ev *endringEvent) *TreffFelter { return &ev.TreffFelter },
		mergeFields: func(ev *endringEvent, logger *zap.Logger) []string {
			return displayEndringer(ev.EndredeFelter, logger)
		},
	}, creator, logger, metrics)
}

func NewAvlysningAdapter(creator Creator, logger *zap.Logger, metrics *observability.Metrics) (*Adapter, error) {
	return newAdapter(eventSpec[avlysningEvent]{
		name:      "avlysning",
		eventName: avlysningEventName,
		tag:       content.TagTreffAvlyst,
		accept: func(ev *avlysningEvent) bool {
			return ev.Svar && ev.Treffstatus == treffstatusAvlyst
		},
		felter: func(ev *avlysningEvent) *TreffFelter { return &ev.TreffFelter },
	}, creator, logger, metrics)
}

// All builds every adapter the service runs.
func All(creator Creator, logger *zap.Logger, metrics *observability.Metrics) ([]*Adapter, error) {
	constructors := []func(Creator, *zap.Logger, *observability.Metrics) (*Adapter, error){
		NewInvitasjonAdapter,
		NewEndringAdapter,
		NewAvlysningAdapter,
	}

	adapters := make([]*Adapter, 0, len(constructors))
	for _, newFn := range constructors {
		a, err := newFn(creator, logger, metrics)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

func displayEndringer(codes []string, logger *zap.Logger) []string {
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		display, ok := endringDisplay[code]
		if !ok {
			logger.Warn("unknown endret felt, dropping", zap.String("felt", code))
			continue
		}
		out = append(out, display)
	}
	return out
}
