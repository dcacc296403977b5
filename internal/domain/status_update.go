package domain

import "strings"

// StatusUpdate is a decoded status report from the notification platform.
// The set of implementations is closed: LifecycleUpdate, ChannelUpdate,
// SentUpdate and FailedUpdate.
type StatusUpdate interface {
	TargetVarselID() string
	Kind() string
	isStatusUpdate()
}

// LifecycleUpdate reports the in-platform state of a varsel.
type LifecycleUpdate struct {
	VarselID string
	Status   LifecycleStatus
}

// ChannelUpdate reports an external channel state that carries no payload:
// ordered, waiting, cancelled or finished.
type ChannelUpdate struct {
	VarselID string
	Status   ChannelStatus
}

// SentUpdate reports that the external notification went out on Channel.
type SentUpdate struct {
	VarselID string
	Channel  Channel
}

// FailedUpdate reports that the external notification could not be delivered.
type FailedUpdate struct {
	VarselID string
	Reason   string
}

func (u LifecycleUpdate) TargetVarselID() string { return u.VarselID }
func (u ChannelUpdate) TargetVarselID() string   { return u.VarselID }
func (u SentUpdate) TargetVarselID() string      { return u.VarselID }
func (u FailedUpdate) TargetVarselID() string    { return u.VarselID }

func (u LifecycleUpdate) Kind() string { return "lifecycle_" + strings.ToLower(string(u.Status)) }
func (u ChannelUpdate) Kind() string   { return "channel_" + strings.ToLower(string(u.Status)) }
func (SentUpdate) Kind() string        { return "channel_sendt" }
func (FailedUpdate) Kind() string      { return "channel_feilet" }

func (LifecycleUpdate) isStatusUpdate() {}
func (ChannelUpdate) isStatusUpdate()   {}
func (SentUpdate) isStatusUpdate()      {}
func (FailedUpdate) isStatusUpdate()    {}

// Apply merges u into v and reports whether any field changed.
//
// Lifecycle states only move forward (OPPRETTET, INAKTIVERT, SLETTET). Once the
// channel status is FERDIGSTILT or FEILET, late BESTILT and VENTER reports are
// ignored. Applying the same update twice leaves v unchanged.
func (v *Varsel) Apply(u StatusUpdate) bool {
	before := *v

	switch u := u.(type) {
	case LifecycleUpdate:
		if u.Status.rank() >= v.LifecycleStatus.rank() {
			v.LifecycleStatus = u.Status
		}
	case ChannelUpdate:
		if v.ChannelStatus.isTerminal() &&
			(u.Status == ChannelStatusOrdered || u.Status == ChannelStatusWaiting) {
			break
		}
		v.ChannelStatus = u.Status
	case SentUpdate:
		v.ChannelStatus = ChannelStatusSent
		v.Channel = u.Channel
	case FailedUpdate:
		v.ChannelStatus = ChannelStatusFailed
		v.FailureReason = u.Reason
	}

	return before.LifecycleStatus != v.LifecycleStatus ||
		before.ChannelStatus != v.ChannelStatus ||
		before.Channel != v.Channel ||
		before.FailureReason != v.FailureReason
}
