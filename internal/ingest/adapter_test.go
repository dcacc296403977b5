package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/content"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/domain"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/observability"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/queue"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/service"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeCreator struct {
	calls    []service.CreateRequest
	createFn func(ctx context.Context, req service.CreateRequest) ([]domain.Varsel, error)
}

func (f *fakeCreator) Create(ctx context.Context, req service.CreateRequest) ([]domain.Varsel, error) {
	f.calls = append(f.calls, req)
	if f.createFn != nil {
		return f.createFn(ctx, req)
	}
	varsler := make([]domain.Varsel, len(req.Recipients))
	for i, r := range req.Recipients {
		varsler[i] = domain.Varsel{Recipient: r, SourceID: req.SourceID, Tag: req.Tag.String()}
	}
	return varsler, nil
}

func message(body string) queue.Message {
	return queue.Message{Body: []byte(body)}
}

func TestAdaptersCreateVarsler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		newFn func(Creator, *zap.Logger, *observability.Metrics) (*Adapter, error)
		body  string
		want  service.CreateRequest
	}{
		{
			name:  "invitasjon with fnr array",
			newFn: NewInvitasjonAdapter,
			body:  `{"@event_name":"rekrutteringstreffinvitasjon","rekrutteringstreffId":"T1","fnr":["R1","R2"],"avsenderNavident":"Z990000"}`,
			want: service.CreateRequest{
				Tag:        content.TagInvitertTreff,
				SourceID:   "T1",
				Recipients: []string{"R1", "R2"},
				Sender:     "Z990000",
			},
		},
		{
			name:  "invitasjon with single fnr and no sender",
			newFn: NewInvitasjonAdapter,
			body:  `{"@event_name":"rekrutteringstreffinvitasjon","rekrutteringstreffId":"T1","fnr":"R1"}`,
			want: service.CreateRequest{
				Tag:        content.TagInvitertTreff,
				SourceID:   "T1",
				Recipients: []string{"R1"},
				Sender:     domain.SystemSender,
			},
		},
		{
			name:  "endring maps known codes in order",
			newFn: NewEndringAdapter,
			body:  `{"@event_name":"rekrutteringstreffoppdatering","skalVarsle":true,"rekrutteringstreffId":"T2","fnr":"R1","endredeFelter":["TIDSPUNKT","STED","INTRODUKSJON"]}`,
			want: service.CreateRequest{
				Tag:         content.TagInvitertTreffEndret,
				SourceID:    "T2",
				Recipients:  []string{"R1"},
				Sender:      domain.SystemSender,
				MergeFields: []string{"tidspunkt", "sted", "introduksjon"},
			},
		},
		{
			name:  "avlysning for accepted invitation",
			newFn: NewAvlysningAdapter,
			body:  `{"@event_name":"rekrutteringstreffSvarOgStatus","svar":true,"treffstatus":"avlyst","rekrutteringstreffId":"T3","fnr":["R9"]}`,
			want: service.CreateRequest{
				Tag:        content.TagTreffAvlyst,
				SourceID:   "T3",
				Recipients: []string{"R9"},
				Sender:     domain.SystemSender,
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			creator := &fakeCreator{}
			a, err := tt.newFn(creator, zap.NewNop(), nil)
			if err != nil {
				t.Fatalf("new adapter error = %v", err)
			}
			if err := a.Handle(context.Background(), message(tt.body)); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if len(creator.calls) != 1 {
				t.Fatalf("Create() calls = %d, want 1", len(creator.calls))
			}
			if !reflect.DeepEqual(creator.calls[0], tt.want) {
				t.Fatalf("Create() request = %+v, want %+v", creator.calls[0], tt.want)
			}
		})
	}
}

func TestAdaptersIgnoreEventsOutsidePrecondition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		newFn func(Creator, *zap.Logger, *observability.Metrics) (*Adapter, error)
		body  string
	}{
		{
			name:  "other event name",
			newFn: NewInvitasjonAdapter,
			body:  `{"@event_name":"kandidat.dummy","fnr":12345}`,
		},
		{
			name:  "endring not flagged",
			newFn: NewEndringAdapter,
			body:  `{"@event_name":"rekrutteringstreffoppdatering","skalVarsle":false,"rekrutteringstreffId":"T2","fnr":"R1","endredeFelter":["NAVN"]}`,
		},
		{
			name:  "avlysning without svar",
			newFn: NewAvlysningAdapter,
			body:  `{"@event_name":"rekrutteringstreffSvarOgStatus","svar":false,"treffstatus":"avlyst","rekrutteringstreffId":"T3","fnr":"R1"}`,
		},
		{
			name:  "svar on a treff that is not cancelled",
			newFn: NewAvlysningAdapter,
			body:  `{"@event_name":"rekrutteringstreffSvarOgStatus","svar":true,"treffstatus":"fullfort","rekrutteringstreffId":"T3","fnr":"R1"}`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			creator := &fakeCreator{}
			a, err := tt.newFn(creator, nil, nil)
			if err != nil {
				t.Fatalf("new adapter error = %v", err)
			}
			if err := a.Handle(context.Background(), message(tt.body)); err != nil {
				t.Fatalf("Handle() error = %v, want nil", err)
			}
			if len(creator.calls) != 0 {
				t.Fatalf("Create() calls = %d, want 0", len(creator.calls))
			}
		})
	}
}

func TestAdapterMissingRecipientIsNotAcknowledged(t *testing.T) {
	t.Parallel()

	creator := &fakeCreator{}
	metrics := observability.NewMetrics()
	a, err := NewInvitasjonAdapter(creator, zap.NewNop(), metrics)
	if err != nil {
		t.Fatalf("NewInvitasjonAdapter() error = %v", err)
	}

	err = a.Handle(context.Background(), message(`{"@event_name":"rekrutteringstreffinvitasjon","rekrutteringstreffId":"T1"}`))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Handle() error = %v, want ErrValidation", err)
	}
	if len(creator.calls) != 0 {
		t.Fatalf("Create() calls = %d, want 0", len(creator.calls))
	}

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `kandidatvarsel_ingestion_events_total{adapter="invitasjon",result="invalid"} 1`) {
		t.Fatalf("invalid event not counted:\n%s", rec.Body.String())
	}
}

func TestAdapterRejectsMalformedPayloads(t *testing.T) {
	t.Parallel()

	bodies := map[string]string{
		"not json":         `{"@event_name":`,
		"fnr wrong type":   `{"@event_name":"rekrutteringstreffinvitasjon","rekrutteringstreffId":"T1","fnr":42}`,
		"empty fnr array":  `{"@event_name":"rekrutteringstreffinvitasjon","rekrutteringstreffId":"T1","fnr":[]}`,
		"blank fnr":        `{"@event_name":"rekrutteringstreffinvitasjon","rekrutteringstreffId":"T1","fnr":[""]}`,
		"missing treff id": `{"@event_name":"rekrutteringstreffinvitasjon","fnr":"R1"}`,
	}

	for name, body := range bodies {
		name, body := name, body
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			creator := &fakeCreator{}
			a, err := NewInvitasjonAdapter(creator, nil, nil)
			if err != nil {
				t.Fatalf("NewInvitasjonAdapter() error = %v", err)
			}
			if err := a.Handle(context.Background(), message(body)); err == nil {
				t.Fatalf("Handle() error = nil, want error")
			}
			if len(creator.calls) != 0 {
				t.Fatalf("Create() calls = %d, want 0", len(creator.calls))
			}
		})
	}
}

func TestEndringAdapterDropsUnknownCodes(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	creator := &fakeCreator{}
	a, err := NewEndringAdapter(creator, zap.New(core), nil)
	if err != nil {
		t.Fatalf("NewEndringAdapter() error = %v", err)
	}

	body := `{"@event_name":"rekrutteringstreffoppdatering","skalVarsle":true,"rekrutteringstreffId":"T2","fnr":"R1","endredeFelter":["ARBEIDSGIVER","SVARFRIST"]}`
	if err := a.Handle(context.Background(), message(body)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(creator.calls) != 1 {
		t.Fatalf("Create() calls = %d, want 1", len(creator.calls))
	}
	if got := creator.calls[0].MergeFields; !reflect.DeepEqual(got, []string{"svarfrist"}) {
		t.Fatalf("merge fields = %v, want [svarfrist]", got)
	}

	warnings := logs.FilterMessage("unknown endret felt, dropping").All()
	if len(warnings) != 1 {
		t.Fatalf("warnings = %d, want 1", len(warnings))
	}
	if got := warnings[0].ContextMap()["felt"]; got != "ARBEIDSGIVER" {
		t.Fatalf("warned felt = %v, want ARBEIDSGIVER", got)
	}
}

func TestEndringAdapterSkipsWhenNoKnownCodes(t *testing.T) {
	t.Parallel()

	creator := &fakeCreator{}
	a, err := NewEndringAdapter(creator, nil, nil)
	if err != nil {
		t.Fatalf("NewEndringAdapter() error = %v", err)
	}

	body := `{"@event_name":"rekrutteringstreffoppdatering","skalVarsle":true,"rekrutteringstreffId":"T2","fnr":"R1","endredeFelter":["ARBEIDSGIVER"]}`
	if err := a.Handle(context.Background(), message(body)); err != nil {
		t.Fatalf("Handle() error = %v, want nil", err)
	}
	if len(creator.calls) != 0 {
		t.Fatalf("Create() calls = %d, want 0", len(creator.calls))
	}
}

func TestAdapterPropagatesCreateError(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("database is down")
	creator := &fakeCreator{
		createFn: func(ctx context.Context, req service.CreateRequest) ([]domain.Varsel, error) {
			return nil, storeErr
		},
	}
	a, err := NewAvlysningAdapter(creator, nil, nil)
	if err != nil {
		t.Fatalf("NewAvlysningAdapter() error = %v", err)
	}

	body := `{"@event_name":"rekrutteringstreffSvarOgStatus","svar":true,"treffstatus":"avlyst","rekrutteringstreffId":"T3","fnr":"R1"}`
	if err := a.Handle(context.Background(), message(body)); !errors.Is(err, storeErr) {
		t.Fatalf("Handle() error = %v, want %v", err, storeErr)
	}
}

func TestAll(t *testing.T) {
	t.Parallel()

	adapters, err := All(&fakeCreator{}, nil, nil)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}

	var names []string
	for _, a := range adapters {
		names = append(names, a.Name())
	}
	want := []string{"invitasjon", "endring", "avlysning"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("adapter names = %v, want %v", names, want)
	}

	if _, err := NewInvitasjonAdapter(nil, nil, nil); err == nil {
		t.Fatalf("NewInvitasjonAdapter(nil) error = nil, want error")
	}
}
