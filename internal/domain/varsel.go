package domain

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// SystemSender is recorded as sender when no NAV ident is known.
const SystemSender = "SYSTEM"

// LifecycleStatus is the in-platform (Min side) state reported by the notification platform.
type LifecycleStatus string

const (
	LifecycleUnset       LifecycleStatus = ""
	LifecycleCreated     LifecycleStatus = "OPPRETTET"
	LifecycleInactivated LifecycleStatus = "INAKTIVERT"
	LifecycleDeleted     LifecycleStatus = "SLETTET"
)

func (s LifecycleStatus) String() string { return string(s) }

func (s LifecycleStatus) IsValid() bool {
	switch s {
	case LifecycleUnset, LifecycleCreated, LifecycleInactivated, LifecycleDeleted:
		return true
	}
	return false
}

func (s LifecycleStatus) rank() int {
	switch s {
	case LifecycleCreated:
		return 1
	case LifecycleInactivated:
		return 2
	case LifecycleDeleted:
		return 3
	}
	return 0
}

// ChannelStatus is the external (SMS/e-mail) delivery state.
type ChannelStatus string

const (
	ChannelStatusUnset     ChannelStatus = ""
	ChannelStatusOrdered   ChannelStatus = "BESTILT"
	ChannelStatusSent      ChannelStatus = "SENDT"
	ChannelStatusWaiting   ChannelStatus = "VENTER"
	ChannelStatusCancelled ChannelStatus = "KANSELLERT"
	ChannelStatusFinished  ChannelStatus = "FERDIGSTILT"
	ChannelStatusFailed    ChannelStatus = "FEILET"
)

func (s ChannelStatus) String() string { return string(s) }

func (s ChannelStatus) IsValid() bool {
	switch s {
	case ChannelStatusUnset, ChannelStatusOrdered, ChannelStatusSent, ChannelStatusWaiting,
		ChannelStatusCancelled, ChannelStatusFinished, ChannelStatusFailed:
		return true
	}
	return false
}

func (s ChannelStatus) isTerminal() bool {
	return s == ChannelStatusFinished || s == ChannelStatusFailed
}

// Channel is the external channel a notification was delivered through.
type Channel string

const (
	ChannelNone  Channel = ""
	ChannelSMS   Channel = "SMS"
	ChannelEmail Channel = "EPOST"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	return c == ChannelSMS || c == ChannelEmail
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return ChannelNone, fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// Varsel is one notification to one recipient.
type Varsel struct {
	ID          int64
	VarselID    string
	SourceID    string
	Recipient   string
	Sender      string
	Tag         string
	MergeFields []string
	CreatedAt   time.Time
	Dispatched  bool

	LifecycleStatus LifecycleStatus
	ChannelStatus   ChannelStatus
	Channel         Channel
	FailureReason   string
}

func (v *Varsel) Validate() error {
	if v == nil {
		return fmt.Errorf("%w: varsel is nil", ErrValidation)
	}
	if strings.TrimSpace(v.VarselID) == "" {
		return fmt.Errorf("%w: varsel id is required", ErrValidation)
	}
	if strings.TrimSpace(v.SourceID) == "" {
		return fmt.Errorf("%w: source id is required", ErrValidation)
	}
	if strings.TrimSpace(v.Recipient) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if strings.TrimSpace(v.Tag) == "" {
		return fmt.Errorf("%w: tag is required", ErrValidation)
	}
	if !v.LifecycleStatus.IsValid() {
		return fmt.Errorf("%w: invalid lifecycle status %q", ErrValidation, v.LifecycleStatus)
	}
	if !v.ChannelStatus.IsValid() {
		return fmt.Errorf("%w: invalid channel status %q", ErrValidation, v.ChannelStatus)
	}
	if v.Channel != ChannelNone && !v.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, v.Channel)
	}
	if v.ChannelStatus == ChannelStatusSent && v.Channel == ChannelNone {
		return fmt.Errorf("%w: status %s requires a channel", ErrValidation, ChannelStatusSent)
	}
	return nil
}

var oslo = mustLoadLocation("Europe/Oslo")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// Now returns the current civil time in Norway, which is what creation timestamps are stored in.
func Now() time.Time {
	return time.Now().In(oslo)
}

// LocalTime reads the wall clock of t as Norwegian civil time. Timestamps
// stored without zone are returned by the driver as UTC.
func LocalTime(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), oslo)
}
