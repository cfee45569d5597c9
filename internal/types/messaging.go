package types

// DispatchKind distinguishes the units of work carried on the broadcasts queue.
type DispatchKind string

const (
	DispatchKindBroadcast DispatchKind = "dispatch"
	DispatchKindLinkTest  DispatchKind = "link_test"
)

// DispatchMessage is the SQS envelope for one unit of dispatch work. For
// broadcast dispatches the unit is keyed by (BroadcastEventID, Provider); link
// tests carry only the provider.
type DispatchMessage struct {
	Kind             DispatchKind `json:"kind"`
	BroadcastEventID string       `json:"broadcast_event_id,omitempty"`
	Provider         Provider     `json:"provider"`

	// RetryCount carries the attempt counter across the publish cycle.
	// Incremented by the producer when a retry is scheduled.
	RetryCount int `json:"retry_count"`

	TraceID string `json:"trace_id,omitempty"`

	// FailureCode is set only on dead-lettered messages.
	FailureCode ErrorCode `json:"failure_code,omitempty"`
	FailureMsg  string    `json:"failure_message,omitempty"`
}
