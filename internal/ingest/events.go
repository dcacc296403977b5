package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Recipients accepts fnr as either a single string or an array of strings.
type Recipients []string

func (r *Recipients) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*r = nil
		return nil
	case len(data) > 0 && data[0] == '"':
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*r = Recipients{single}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("fnr must be a string or an array of strings: %w", err)
	}
	*r = list
	return nil
}

type envelope struct {
	EventName string `json:"@event_name"`
}

// TreffFelter are the fields every rekrutteringstreff event carries.
type TreffFelter struct {
	TreffID          string     `json:"rekrutteringstreffId" validate:"required"`
	Fnr              Recipients `json:"fnr" validate:"required,min=1,dive,required"`
	AvsenderNavident string     `json:"avsenderNavident"`
}

type invitasjonEvent struct {
	TreffFelter
}

type endringEvent struct {
	TreffFelter
	SkalVarsle    bool     `json:"skalVarsle"`
	EndredeFelter []string `json:"endredeFelter" validate:"required,min=1"`
}

type avlysningEvent struct {
	TreffFelter
	Svar        bool   `json:"svar"`
	Treffstatus string `json:"treffstatus"`
}

// endringDisplay maps the codes in endredeFelter to the words used in texts.
var endringDisplay = map[string]string{
	"NAVN":         "navn",
	"TIDSPUNKT":    "tidspunkt",
	"SVARFRIST":    "svarfrist",
	"STED":         "sted",
	"INTRODUKSJON": "introduksjon",
}
