package queue

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	opprettEventName  = "opprett"
	varselTypeBeskjed = "beskjed"
	sensitivitetHigh  = "high"
	spraakkodeBokmaal = "nb"
	kanalSMS          = "SMS"
)

var messageValidator = validator.New(validator.WithRequiredStructEnabled())

// Produsent identifies this service towards the notification platform.
type Produsent struct {
	Cluster   string `json:"cluster" validate:"required"`
	Namespace string `json:"namespace" validate:"required"`
	Appnavn   string `json:"appnavn" validate:"required"`
}

type Tekst struct {
	Spraakkode string `json:"spraakkode" validate:"required"`
	Tekst      string `json:"tekst" validate:"required,max=300"`
	Default    bool   `json:"default"`
}

type EksternVarsling struct {
	PrefererteKanaler    []string `json:"prefererteKanaler" validate:"required,min=1,dive,oneof=SMS EPOST"`
	SMSVarslingstekst    string   `json:"smsVarslingstekst" validate:"required,max=160"`
	EpostVarslingstittel string   `json:"epostVarslingstittel" validate:"required"`
	EpostVarslingstekst  string   `json:"epostVarslingstekst" validate:"required,max=4000"`
	KanBatches           bool     `json:"kanBatches"`
}

// OpprettVarsel asks the notification platform to create one varsel.
type OpprettVarsel struct {
	EventName       string          `json:"@event_name" validate:"required,eq=opprett"`
	Type            string          `json:"type" validate:"required"`
	VarselID        string          `json:"varselId" validate:"required,uuid"`
	Ident           string          `json:"ident" validate:"required"`
	Sensitivitet    string          `json:"sensitivitet" validate:"required"`
	Link            string          `json:"link" validate:"required,url"`
	Tekster         []Tekst         `json:"tekster" validate:"required,min=1,dive"`
	EksternVarsling EksternVarsling `json:"eksternVarsling"`
	AktivFremTil    time.Time       `json:"aktivFremTil" validate:"required"`
	Produsent       Produsent       `json:"produsent"`
}

// VarselContent is what the dispatcher renders for one varsel.
type VarselContent struct {
	VarselID    string
	Ident       string
	Link        string
	Minside     string
	SMS         string
	EpostTittel string
	EpostTekst  string
}

func NewOpprettVarsel(c VarselContent, aktivFremTil time.Time, produsent Produsent) OpprettVarsel {
	return OpprettVarsel{
		EventName:    opprettEventName,
		Type:         varselTypeBeskjed,
		VarselID:     c.VarselID,
		Ident:        c.Ident,
		Sensitivitet: sensitivitetHigh,
		Link:         c.Link,
		Tekster: []Tekst{{
			Spraakkode: spraakkodeBokmaal,
			Tekst:      c.Minside,
			Default:    true,
		}},
		EksternVarsling: EksternVarsling{
			PrefererteKanaler:    []string{kanalSMS},
			SMSVarslingstekst:    c.SMS,
			EpostVarslingstittel: c.EpostTittel,
			EpostVarslingstekst:  c.EpostTekst,
		},
		AktivFremTil: aktivFremTil.UTC(),
		Produsent:    produsent,
	}
}

func (m OpprettVarsel) Validate() error {
	if err := messageValidator.Struct(m); err != nil {
		return fmt.Errorf("varsel %s: %w", m.VarselID, err)
	}
	return nil
}
