package types

import (
	"time"
)

// Polygon is an ordered list of [lat, lon] vertex pairs describing one
// contiguous area.
type Polygon [][]float64

// Areas is the region set targeted by an alert. Names are for humans, the
// simple polygons are what providers receive.
type Areas struct {
	Names          []string  `json:"names"`
	SimplePolygons []Polygon `json:"simple_polygons"`
}

// Clone returns a deep copy so snapshots never alias the parent alert.
func (a Areas) Clone() Areas {
	out := Areas{}
	if a.Names != nil {
		out.Names = append([]string(nil), a.Names...)
	}
	if a.SimplePolygons != nil {
		out.SimplePolygons = make([]Polygon, len(a.SimplePolygons))
		for i, poly := range a.SimplePolygons {
			cp := make(Polygon, len(poly))
			for j, pt := range poly {
				cp[j] = append([]float64(nil), pt...)
			}
			out.SimplePolygons[i] = cp
		}
	}
	return out
}

// Service is the owning organisation unit of an alert. Only the fields the
// dispatch engine needs are modeled.
type Service struct {
	ID                       string           `json:"id" db:"id"`
	Name                     string           `json:"name" db:"name"`
	Active                   bool             `json:"active" db:"active"`
	Restricted               bool             `json:"restricted" db:"restricted"`
	AllowedBroadcastProvider string           `json:"allowed_broadcast_provider" db:"allowed_broadcast_provider"`
	BroadcastChannel         BroadcastChannel `json:"broadcast_channel" db:"broadcast_channel"`
}

// Live reports whether the service has left trial mode.
func (s *Service) Live() bool { return !s.Restricted }

// AvailableProviders intersects the service's allowed provider with the
// deployment-enabled list, preserving the enabled list's order.
func (s *Service) AvailableProviders(enabled []Provider) []Provider {
	allowed := s.AllowedBroadcastProvider
	if allowed == "" {
		allowed = AllowedProviderAll
	}
	var out []Provider
	for _, p := range enabled {
		if allowed == AllowedProviderAll || Provider(allowed) == p {
			out = append(out, p)
		}
	}
	return out
}

// Alert is the mutable aggregate root. Status moves only along
// AllowedStatusTransitions.
type Alert struct {
	ID         string  `json:"id" db:"id"`
	ServiceID  string  `json:"service_id" db:"service_id"`
	TemplateID *string `json:"template_id,omitempty" db:"template_id"`

	Content    string          `json:"content" db:"content"`
	Areas      Areas           `json:"areas" db:"areas"`
	StartsAt   *time.Time      `json:"starts_at,omitempty" db:"starts_at"`
	FinishesAt *time.Time      `json:"finishes_at,omitempty" db:"finishes_at"`
	Duration   *time.Duration  `json:"duration,omitempty" db:"duration_seconds"`
	Status     BroadcastStatus `json:"status" db:"status"`
	Stubbed    bool            `json:"stubbed" db:"stubbed"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" db:"updated_at"`
	CreatedBy *string    `json:"created_by,omitempty" db:"created_by_id"`

	// Audit
	SubmittedAt       *time.Time `json:"submitted_at,omitempty" db:"submitted_at"`
	SubmittedBy       *string    `json:"submitted_by,omitempty" db:"submitted_by_id"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	ApprovedBy        *string    `json:"approved_by,omitempty" db:"approved_by_id"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancelledBy       *string    `json:"cancelled_by,omitempty" db:"cancelled_by_id"`
	CancelledByAPIKey *string    `json:"cancelled_by_api_key,omitempty" db:"cancelled_by_api_key_id"`
	RejectedAt        *time.Time `json:"rejected_at,omitempty" db:"rejected_at"`
	RejectedBy        *string    `json:"rejected_by,omitempty" db:"rejected_by_id"`
	RejectionReason   string     `json:"rejection_reason,omitempty" db:"rejection_reason"`
}

// HasAreas reports whether the alert has at least one polygon to broadcast to.
func (a *Alert) HasAreas() bool { return len(a.Areas.SimplePolygons) > 0 }

// Submitter returns the user who submitted the alert for approval, falling
// back to its creator for alerts that predate submission stamping.
func (a *Alert) Submitter() string {
	if a.SubmittedBy != nil {
		return *a.SubmittedBy
	}
	if a.CreatedBy != nil {
		return *a.CreatedBy
	}
	return ""
}

// AlertEvent is an immutable snapshot of an alert at the moment it went live,
// was updated, or was cancelled. Providers only ever see transmitted_* fields.
type AlertEvent struct {
	ID                    string      `json:"id" db:"id"`
	ServiceID             string      `json:"service_id" db:"service_id"`
	BroadcastMessageID    string      `json:"broadcast_message_id" db:"broadcast_message_id"`
	MessageType           MessageType `json:"message_type" db:"message_type"`
	SentAt                time.Time   `json:"sent_at" db:"sent_at"`
	TransmittedContent    string      `json:"transmitted_content" db:"transmitted_content"`
	TransmittedAreas      Areas       `json:"transmitted_areas" db:"transmitted_areas"`
	TransmittedSender     string      `json:"transmitted_sender" db:"transmitted_sender"`
	TransmittedStartsAt   *time.Time  `json:"transmitted_starts_at,omitempty" db:"transmitted_starts_at"`
	TransmittedFinishesAt *time.Time  `json:"transmitted_finishes_at,omitempty" db:"transmitted_finishes_at"`
}

// TransmittedSender is the sender name stamped on every event.
const TransmittedSender = "Emergency Alerts"

// NewAlertEvent snapshots the alert's current content. Areas and timestamps
// are copied so later edits to the alert cannot leak into the event.
func NewAlertEvent(id string, alert *Alert, msgType MessageType, sentAt time.Time) *AlertEvent {
	return &AlertEvent{
		ID:                    id,
		ServiceID:             alert.ServiceID,
		BroadcastMessageID:    alert.ID,
		MessageType:           msgType,
		SentAt:                sentAt,
		TransmittedContent:    alert.Content,
		TransmittedAreas:      alert.Areas.Clone(),
		TransmittedSender:     TransmittedSender,
		TransmittedStartsAt:   copyTime(alert.StartsAt),
		TransmittedFinishesAt: copyTime(alert.FinishesAt),
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// ProviderDeliveryRecord tracks one (event, provider) delivery. At most one
// exists per pair, enforced by a unique constraint.
type ProviderDeliveryRecord struct {
	ID               string         `json:"id" db:"id"`
	BroadcastEventID string         `json:"broadcast_event_id" db:"broadcast_event_id"`
	Provider         Provider       `json:"provider" db:"provider"`
	Status           DeliveryStatus `json:"status" db:"status"`
	MessageNumber    *int64         `json:"message_number,omitempty" db:"message_number"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        *time.Time     `json:"updated_at,omitempty" db:"updated_at"`
}

// Actor identifies who performed a lifecycle transition.
type Actor struct {
	ID   string    `json:"id" validate:"required"`
	Type ActorType `json:"type" validate:"omitempty,oneof=user api_key system"`
}
