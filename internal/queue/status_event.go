package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/domain"
)

// ErrUnknownStatusEvent is returned for event names or statuses outside the
// vocabulary this service understands.
var ErrUnknownStatusEvent = errors.New("unknown status event")

const eksternStatusOppdatert = "eksternStatusOppdatert"

type statusEvent struct {
	EventName   string `json:"@event_name"`
	VarselID    string `json:"varselId"`
	Status      string `json:"status"`
	Kanal       string `json:"kanal"`
	Feilmelding string `json:"feilmelding"`
}

var lifecycleEvents = map[string]domain.LifecycleStatus{
	"opprettet":  domain.LifecycleCreated,
	"inaktivert": domain.LifecycleInactivated,
	"slettet":    domain.LifecycleDeleted,
}

var plainChannelStatuses = map[string]domain.ChannelStatus{
	"bestilt":     domain.ChannelStatusOrdered,
	"venter":      domain.ChannelStatusWaiting,
	"kansellert":  domain.ChannelStatusCancelled,
	"ferdigstilt": domain.ChannelStatusFinished,
}

// DecodeStatusEvent turns one status message into its typed update.
func DecodeStatusEvent(body []byte) (domain.StatusUpdate, error) {
	var ev statusEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("invalid status event json: %w", err)
	}

	varselID := strings.TrimSpace(ev.VarselID)
	if varselID == "" {
		return nil, fmt.Errorf("%w: status event without varselId", domain.ErrValidation)
	}

	if status, ok := lifecycleEvents[ev.EventName]; ok {
		return domain.LifecycleUpdate{VarselID: varselID, Status: status}, nil
	}
	if ev.EventName != eksternStatusOppdatert {
		return nil, fmt.Errorf("%w: event name %q", ErrUnknownStatusEvent, ev.EventName)
	}

	switch ev.Status {
	case "sendt":
		channel, err := domain.ParseChannelFromString(ev.Kanal)
		if err != nil {
			return nil, fmt.Errorf("sendt event for %s: %w", varselID, err)
		}
		return domain.SentUpdate{VarselID: varselID, Channel: channel}, nil
	case "feilet":
		return domain.FailedUpdate{VarselID: varselID, Reason: ev.Feilmelding}, nil
	}

	if status, ok := plainChannelStatuses[ev.Status]; ok {
		return domain.ChannelUpdate{VarselID: varselID, Status: status}, nil
	}
	return nil, fmt.Errorf("%w: %s status %q", ErrUnknownStatusEvent, eksternStatusOppdatert, ev.Status)
}
