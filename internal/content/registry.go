// Package content holds the fixed set of notification texts, one variant per tag.
package content

import (
	"fmt"
	"strings"
)

// Tag identifies a content variant. It is stored on every varsel.
type Tag string

const (
	TagVurdertSomAktuell       Tag = "VURDERT_SOM_AKTUELL"
	TagPassendeStilling        Tag = "PASSENDE_STILLING"
	TagPassendeJobbarrangement Tag = "PASSENDE_JOBBARRANGEMENT"
	TagInvitertTreff           Tag = "KANDIDAT_INVITERT_TREFF"
	TagInvitertTreffEndret     Tag = "KANDIDAT_INVITERT_TREFF_ENDRET"
	TagTreffAvlyst             Tag = "INVITERT_TREFF_AVLYST"
)

func (t Tag) String() string { return string(t) }

// Source tells which kind of upstream entity a varsel's source id refers to.
type Source int

const (
	SourceStilling Source = iota + 1
	SourceRekrutteringstreff
)

// MergePlaceholder is replaced by the rendered merge fields in parameterized variants.
const MergePlaceholder = "{{endringer}}"

// stillingPlaceholder is replaced by the stilling title, and employer when known.
const stillingPlaceholder = "{{stilling}}"

// Params carries the data a variant may need when rendering.
type Params struct {
	Title    string
	Employer string
	// MergeFields are display strings, rendered in order.
	MergeFields []string
}

// Tekster is the full set of texts sent with one varsel.
type Tekster struct {
	Minside     string
	SMS         string
	EpostTittel string
	EpostTekst  string
}

// Variant is the content of one tag.
type Variant struct {
	tag    Tag
	source Source

	minside     string
	sms         string
	epostTittel string
	epostTekst  string
}

func (v Variant) Tag() Tag          { return v.tag }
func (v Variant) Source() Source    { return v.source }
func (v Variant) NeedsLookup() bool { return v.source == SourceStilling }

// MinsideTekst is the short text shown on the recipient's Min side.
func (v Variant) MinsideTekst(p Params) string { return fill(v.minside, p) }

func (v Variant) SMSTekst(p Params) string { return fill(v.sms, p) }

func (v Variant) EpostTittel() string { return v.epostTittel }

func (v Variant) EpostTekst(p Params) string { return fill(v.epostTekst, p) }

// Parameterized reports whether the variant renders merge fields.
func (v Variant) Parameterized() bool {
	return strings.Contains(v.sms, MergePlaceholder) ||
		strings.Contains(v.epostTekst, MergePlaceholder) ||
		strings.Contains(v.minside, MergePlaceholder)
}

// Render produces all texts for the variant.
func (v Variant) Render(p Params) (Tekster, error) {
	if v.Parameterized() && len(p.MergeFields) == 0 {
		return Tekster{}, fmt.Errorf("variant %s requires merge fields", v.tag)
	}
	if v.NeedsLookup() && strings.TrimSpace(p.Title) == "" {
		return Tekster{}, fmt.Errorf("variant %s requires a title", v.tag)
	}

	return Tekster{
		Minside:     v.MinsideTekst(p),
		SMS:         v.SMSTekst(p),
		EpostTittel: v.EpostTittel(),
		EpostTekst:  v.EpostTekst(p),
	}, nil
}

// Lookup returns the variant registered for tag.
func Lookup(tag string) (Variant, bool) {
	v, ok := variants[Tag(tag)]
	return v, ok
}

// registeredTags lists every registered tag in a stable order.
func registeredTags() []Tag {
	return []Tag{
		TagVurdertSomAktuell,
		TagPassendeStilling,
		TagPassendeJobbarrangement,
		TagInvitertTreff,
		TagInvitertTreffEndret,
		TagTreffAvlyst,
	}
}

// fill substitutes every placeholder in one pass, so placeholder-like text in
// a title or merge field is left as is.
func fill(text string, p Params) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	return strings.NewReplacer(
		MergePlaceholder, JoinNorwegian(p.MergeFields),
		stillingPlaceholder, stillingLabel(p),
	).Replace(text)
}

// JoinNorwegian lists items as "a, b og c".
func JoinNorwegian(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " og " + items[len(items)-1]
}

func stillingLabel(p Params) string {
	if strings.TrimSpace(p.Employer) == "" {
		return p.Title
	}
	return p.Title + " hos " + p.Employer
}

const (
	epostHilsen = "\n\nVennlig hilsen Nav"
	loggInn     = "Logg inn på Nav for å se mer."
)

var variants = map[Tag]Variant{
	TagVurdertSomAktuell: {
		tag:         TagVurdertSomAktuell,
		source:      SourceStilling,
		minside:     "Du er vurdert som aktuell for stillingen " + stillingPlaceholder + ".",
		sms:         "Hei! Du er vurdert som aktuell for en stilling. " + loggInn,
		epostTittel: "Du er vurdert som aktuell for en stilling",
		epostTekst:  "Hei! Du er vurdert som aktuell for en stilling. " + loggInn + epostHilsen,
	},
	TagPassendeStilling: {
		tag:         TagPassendeStilling,
		source:      SourceStilling,
		minside:     "Vi har funnet en stilling som kan passe deg: " + stillingPlaceholder + ".",
		sms:         "Hei! Vi har funnet en stilling som kan passe deg. " + loggInn,
		epostTittel: "Stilling som kan passe deg",
		epostTekst:  "Hei! Vi har funnet en stilling som kan passe deg. " + loggInn + epostHilsen,
	},
	TagPassendeJobbarrangement: {
		tag:         TagPassendeJobbarrangement,
		source:      SourceStilling,
		minside:     "Vi har funnet et jobbarrangement som kan passe deg: " + stillingPlaceholder + ".",
		sms:         "Hei! Vi har funnet et jobbarrangement som kan passe deg. " + loggInn,
		epostTittel: "Jobbarrangement som kan passe deg",
		epostTekst:  "Hei! Vi har funnet et jobbarrangement som kan passe deg. " + loggInn + epostHilsen,
	},
	TagInvitertTreff: {
		tag:         TagInvitertTreff,
		source:      SourceRekrutteringstreff,
		minside:     "Du er invitert til et treff der du kan møte arbeidsgivere.",
		sms:         "Hei! Du er invitert til et treff der du kan møte arbeidsgivere. " + loggInn,
		epostTittel: "Invitasjon til treff med arbeidsgivere",
		epostTekst:  "Hei! Du er invitert til et treff der du kan møte arbeidsgivere. " + loggInn + epostHilsen,
	},
	TagInvitertTreffEndret: {
		tag:         TagInvitertTreffEndret,
		source:      SourceRekrutteringstreff,
		minside:     "Endringer i et treff du er invitert til: " + MergePlaceholder + ".",
		sms:         "Hei! Det er endringer i et treff du er invitert til: " + MergePlaceholder + ". " + loggInn,
		epostTittel: "Endringer i treff",
		epostTekst:  "Hei! Det er endringer i et treff du er invitert til: " + MergePlaceholder + ". " + loggInn + epostHilsen,
	},
	TagTreffAvlyst: {
		tag:         TagTreffAvlyst,
		source:      SourceRekrutteringstreff,
		minside:     "Et treff du har takket ja til er avlyst.",
		sms:         "Hei! Et treff du har takket ja til er avlyst. " + loggInn,
		epostTittel: "Treff avlyst",
		epostTekst:  "Hei! Et treff du har takket ja til er avlyst. " + loggInn + epostHilsen,
	},
}
