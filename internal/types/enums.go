package types

import "strings"

// BroadcastStatus represents the lifecycle state of a broadcast alert.
// These values MUST match the CHECK constraint on broadcast_messages.status.
type BroadcastStatus string

const (
	StatusDraft            BroadcastStatus = "draft"
	StatusPendingApproval  BroadcastStatus = "pending-approval"
	StatusBroadcasting     BroadcastStatus = "broadcasting"
	StatusCancelled        BroadcastStatus = "cancelled"
	StatusRejected         BroadcastStatus = "rejected"
	StatusCompleted        BroadcastStatus = "completed"
	StatusTechnicalFailure BroadcastStatus = "technical-failure"
)

// AllowedStatusTransitions is the transition table owned by the lifecycle
// manager. A status missing from the map, or mapped to an empty slice, is
// terminal.
var AllowedStatusTransitions = map[BroadcastStatus][]BroadcastStatus{
	StatusDraft:            {StatusPendingApproval},
	StatusPendingApproval:  {StatusRejected, StatusDraft, StatusBroadcasting},
	StatusBroadcasting:     {StatusCompleted, StatusCancelled},
	StatusRejected:         {},
	StatusCompleted:        {},
	StatusCancelled:        {},
	StatusTechnicalFailure: {},
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s BroadcastStatus) CanTransitionTo(next BroadcastStatus) bool {
	for _, allowed := range AllowedStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// MessageType identifies the kind of broadcast event sent to providers.
type MessageType string

const (
	MessageTypeAlert  MessageType = "alert"
	MessageTypeUpdate MessageType = "update"
	MessageTypeCancel MessageType = "cancel"
)

// Provider identifies a mobile network operator's Cell Broadcast Centre.
type Provider string

const (
	ProviderEE       Provider = "ee"
	ProviderThree    Provider = "three"
	ProviderO2       Provider = "o2"
	ProviderVodafone Provider = "vodafone"
)

// AllProviders lists every supported provider in canonical order.
var AllProviders = []Provider{ProviderEE, ProviderThree, ProviderO2, ProviderVodafone}

// ParseProvider converts a case-insensitive provider name to a Provider.
func ParseProvider(s string) (Provider, bool) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllProviders {
		if p == known {
			return p, true
		}
	}
	return "", false
}

// AllowedProviderAll is the service-level setting meaning "every provider
// enabled for the deployment".
const AllowedProviderAll = "all"

// DeliveryStatus enumerates the states of a ProviderDeliveryRecord.
// These values MUST match the CHECK constraint on broadcast_provider_messages.
type DeliveryStatus string

const (
	DeliveryStatusSending          DeliveryStatus = "sending"
	DeliveryStatusAck              DeliveryStatus = "returned-ack"
	DeliveryStatusErr              DeliveryStatus = "returned-error"
	DeliveryStatusTechnicalFailure DeliveryStatus = "technical-failure"
)

// BroadcastChannel is the cell broadcast channel configured on a service.
type BroadcastChannel string

const (
	ChannelTest       BroadcastChannel = "test"
	ChannelOperator   BroadcastChannel = "operator"
	ChannelSevere     BroadcastChannel = "severe"
	ChannelGovernment BroadcastChannel = "government"
)

// ActorType identifies who performed a lifecycle transition.
type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeAPIKey ActorType = "api_key"
	ActorTypeSystem ActorType = "system"
)
