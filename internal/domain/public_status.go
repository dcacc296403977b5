package domain

// PublicChannelStatus is the external delivery state as shown to API consumers.
type PublicChannelStatus string

const (
	PublicPending        PublicChannelStatus = "PENDING"
	PublicOrdered        PublicChannelStatus = "ORDERED"
	PublicDeliveredSMS   PublicChannelStatus = "DELIVERED_SMS"
	PublicDeliveredEmail PublicChannelStatus = "DELIVERED_EMAIL"
	PublicFailed         PublicChannelStatus = "FAILED"
	PublicCancelled      PublicChannelStatus = "CANCELLED"
	PublicFinished       PublicChannelStatus = "FINISHED"
)

// PublicLifecycleStatus is the in-platform state as shown to API consumers.
type PublicLifecycleStatus string

const (
	PublicNotPublished PublicLifecycleStatus = "NOT_PUBLISHED"
	PublicPublished    PublicLifecycleStatus = "PUBLISHED"
	PublicInactive     PublicLifecycleStatus = "INACTIVE"
	PublicDeleted      PublicLifecycleStatus = "DELETED"
)

func (v Varsel) PublicChannelStatus() PublicChannelStatus {
	if !v.Dispatched {
		return PublicPending
	}

	switch v.ChannelStatus {
	case ChannelStatusSent:
		return deliveredOn(v.Channel)
	case ChannelStatusFinished:
		if v.Channel != ChannelNone {
			return deliveredOn(v.Channel)
		}
		return PublicFinished
	case ChannelStatusFailed:
		return PublicFailed
	case ChannelStatusCancelled:
		return PublicCancelled
	default:
		return PublicOrdered
	}
}

func (v Varsel) PublicLifecycleStatus() PublicLifecycleStatus {
	switch v.LifecycleStatus {
	case LifecycleCreated:
		return PublicPublished
	case LifecycleInactivated:
		return PublicInactive
	case LifecycleDeleted:
		return PublicDeleted
	default:
		return PublicNotPublished
	}
}

func deliveredOn(channel Channel) PublicChannelStatus {
	if channel == ChannelEmail {
		return PublicDeliveredEmail
	}
	return PublicDeliveredSMS
}
