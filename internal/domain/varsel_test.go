package domain

import (
	"errors"
	"testing"
	"time"
)

func newTestVarsel() Varsel {
	return Varsel{
		ID:         1,
		VarselID:   "0190b6f0-0000-7000-8000-000000000001",
		SourceID:   "stilling-1",
		Recipient:  "12345678910",
		Sender:     "Z990000",
		Tag:        "PASSENDE_STILLING",
		Dispatched: true,
	}
}

func TestParseChannelFromString(t *testing.T) {
	t.Parallel()

	got, err := ParseChannelFromString(" epost ")
	if err != nil {
		t.Fatalf("ParseChannelFromString() unexpected error = %v", err)
	}
	if got != ChannelEmail {
		t.Fatalf("ParseChannelFromString() = %s, want %s", got, ChannelEmail)
	}

	_, err = ParseChannelFromString("fax")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseChannelFromString() error = %v, want ErrValidation", err)
	}
}

func TestVarselValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(v *Varsel)
		wantErr bool
	}{
		{name: "valid", mutate: func(v *Varsel) {}},
		{name: "sent with channel", mutate: func(v *Varsel) {
			v.ChannelStatus = ChannelStatusSent
			v.Channel = ChannelSMS
		}},
		{name: "sent without channel", mutate: func(v *Varsel) {
			v.ChannelStatus = ChannelStatusSent
		}, wantErr: true},
		{name: "missing varsel id", mutate: func(v *Varsel) { v.VarselID = " " }, wantErr: true},
		{name: "missing recipient", mutate: func(v *Varsel) { v.Recipient = "" }, wantErr: true},
		{name: "unknown channel status", mutate: func(v *Varsel) { v.ChannelStatus = "LEST" }, wantErr: true},
		{name: "unknown channel", mutate: func(v *Varsel) { v.Channel = "FAX" }, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := newTestVarsel()
			tt.mutate(&v)
			err := v.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestApplySentIsIdempotent(t *testing.T) {
	t.Parallel()

	v := newTestVarsel()
	update := SentUpdate{VarselID: v.VarselID, Channel: ChannelSMS}

	if changed := v.Apply(update); !changed {
		t.Fatal("first Apply() reported no change")
	}
	once := v

	if changed := v.Apply(update); changed {
		t.Fatal("second Apply() reported a change")
	}
	if v.ChannelStatus != once.ChannelStatus || v.Channel != once.Channel {
		t.Fatalf("state after second apply = %s/%s, want %s/%s", v.ChannelStatus, v.Channel, once.ChannelStatus, once.Channel)
	}
	if v.ChannelStatus != ChannelStatusSent || v.Channel != ChannelSMS {
		t.Fatalf("state = %s/%s, want SENDT/SMS", v.ChannelStatus, v.Channel)
	}
}

func TestApplyFailedRecordsReason(t *testing.T) {
	t.Parallel()

	v := newTestVarsel()
	v.Apply(FailedUpdate{VarselID: v.VarselID, Reason: "ugyldig telefonnummer"})

	if v.ChannelStatus != ChannelStatusFailed {
		t.Fatalf("channel status = %s, want FEILET", v.ChannelStatus)
	}
	if v.FailureReason != "ugyldig telefonnummer" {
		t.Fatalf("failure reason = %q", v.FailureReason)
	}
}

func TestApplyIgnoresChannelRegressionAfterTerminalStatus(t *testing.T) {
	t.Parallel()

	for _, terminal := range []StatusUpdate{
		ChannelUpdate{Status: ChannelStatusFinished},
		FailedUpdate{Reason: "reservert"},
	} {
		for _, late := range []ChannelStatus{ChannelStatusOrdered, ChannelStatusWaiting} {
			v := newTestVarsel()
			v.Apply(terminal)
			want := v.ChannelStatus

			if changed := v.Apply(ChannelUpdate{Status: late}); changed {
				t.Fatalf("%s after %s reported a change", late, want)
			}
			if v.ChannelStatus != want {
				t.Fatalf("channel status = %s, want %s", v.ChannelStatus, want)
			}
		}
	}
}

func TestApplyKeepsChannelWhenFinished(t *testing.T) {
	t.Parallel()

	v := newTestVarsel()
	v.Apply(ChannelUpdate{Status: ChannelStatusOrdered})
	v.Apply(SentUpdate{Channel: ChannelEmail})
	v.Apply(ChannelUpdate{Status: ChannelStatusFinished})

	if v.ChannelStatus != ChannelStatusFinished || v.Channel != ChannelEmail {
		t.Fatalf("state = %s/%s, want FERDIGSTILT/EPOST", v.ChannelStatus, v.Channel)
	}
	if got := v.PublicChannelStatus(); got != PublicDeliveredEmail {
		t.Fatalf("PublicChannelStatus() = %s, want %s", got, PublicDeliveredEmail)
	}
}

func TestApplyLifecycleOnlyMovesForward(t *testing.T) {
	t.Parallel()

	v := newTestVarsel()
	v.Apply(LifecycleUpdate{Status: LifecycleCreated})
	v.Apply(LifecycleUpdate{Status: LifecycleDeleted})

	if changed := v.Apply(LifecycleUpdate{Status: LifecycleInactivated}); changed {
		t.Fatal("INAKTIVERT after SLETTET reported a change")
	}
	if changed := v.Apply(LifecycleUpdate{Status: LifecycleCreated}); changed {
		t.Fatal("OPPRETTET after SLETTET reported a change")
	}
	if v.LifecycleStatus != LifecycleDeleted {
		t.Fatalf("lifecycle status = %s, want SLETTET", v.LifecycleStatus)
	}
}

func TestPublicChannelStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(v *Varsel)
		want   PublicChannelStatus
	}{
		{name: "not dispatched", mutate: func(v *Varsel) { v.Dispatched = false }, want: PublicPending},
		{name: "dispatched without report", mutate: func(v *Varsel) {}, want: PublicOrdered},
		{name: "waiting", mutate: func(v *Varsel) { v.ChannelStatus = ChannelStatusWaiting }, want: PublicOrdered},
		{name: "sent sms", mutate: func(v *Varsel) {
			v.ChannelStatus = ChannelStatusSent
			v.Channel = ChannelSMS
		}, want: PublicDeliveredSMS},
		{name: "finished without channel", mutate: func(v *Varsel) { v.ChannelStatus = ChannelStatusFinished }, want: PublicFinished},
		{name: "failed", mutate: func(v *Varsel) { v.ChannelStatus = ChannelStatusFailed }, want: PublicFailed},
		{name: "cancelled", mutate: func(v *Varsel) { v.ChannelStatus = ChannelStatusCancelled }, want: PublicCancelled},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := newTestVarsel()
			tt.mutate(&v)
			if got := v.PublicChannelStatus(); got != tt.want {
				t.Fatalf("PublicChannelStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPublicLifecycleStatus(t *testing.T) {
	t.Parallel()

	v := newTestVarsel()
	if got := v.PublicLifecycleStatus(); got != PublicNotPublished {
		t.Fatalf("PublicLifecycleStatus() = %s, want %s", got, PublicNotPublished)
	}

	v.LifecycleStatus = LifecycleInactivated
	if got := v.PublicLifecycleStatus(); got != PublicInactive {
		t.Fatalf("PublicLifecycleStatus() = %s, want %s", got, PublicInactive)
	}
}

func TestNowUsesNorwegianTime(t *testing.T) {
	t.Parallel()

	if got := Now().Location().String(); got != "Europe/Oslo" {
		t.Fatalf("Now() location = %s, want Europe/Oslo", got)
	}
}

func TestLocalTimeKeepsWallClock(t *testing.T) {
	t.Parallel()

	stored := time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC)
	got := LocalTime(stored)

	if got.Hour() != 14 || got.Minute() != 30 || got.Day() != 3 {
		t.Fatalf("LocalTime() = %s, want wall clock 14:30 on the 3rd", got)
	}
	if got.Location().String() != "Europe/Oslo" {
		t.Fatalf("LocalTime() location = %s, want Europe/Oslo", got.Location())
	}
}
