package cbc

import (
	"fmt"
	"time"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// Headline is the fixed headline carried on every alert and update.
const Headline = "GOV.UK Emergency Alert"

// Message format tags.
const (
	FormatCAP  = "cap"
	FormatIBAG = "ibag"
)

// Payload message types. Test is only used by link tests.
const (
	MessageTypeAlert  = "alert"
	MessageTypeUpdate = "update"
	MessageTypeCancel = "cancel"
	MessageTypeTest   = "test"
)

// capTimeLayout renders sent/expires as %Y-%m-%dT%H:%M:%S.%fZ.
const capTimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatCAPTime formats t in UTC using the CAP datetime layout.
func FormatCAPTime(t time.Time) string {
	return t.UTC().Format(capTimeLayout)
}

// FormatMessageNumber renders n as eight lowercase hex digits.
func FormatMessageNumber(n int64) string {
	return fmt.Sprintf("%08x", n)
}

// Payload is the JSON body handed to a provider proxy Lambda.
type Payload struct {
	MessageType   string        `json:"message_type"`
	Identifier    string        `json:"identifier"`
	MessageNumber string        `json:"message_number,omitempty"`
	MessageFormat string        `json:"message_format"`
	Headline      string        `json:"headline,omitempty"`
	Description   string        `json:"description,omitempty"`
	Areas         []AreaPayload `json:"areas,omitempty"`
	References    []Reference   `json:"references,omitempty"`
	Sent          string        `json:"sent,omitempty"`
	Expires       string        `json:"expires,omitempty"`
	Language      string        `json:"language,omitempty"`
	Channel       string        `json:"channel,omitempty"`
	CBCTarget     string        `json:"cbc_target,omitempty"`
}

// AreaPayload wraps one simple polygon.
type AreaPayload struct {
	Polygon types.Polygon `json:"polygon"`
}

// Reference points at an earlier message the provider has already received.
type Reference struct {
	MessageID     string `json:"message_id"`
	MessageNumber string `json:"message_number,omitempty"`
	Sent          string `json:"sent"`
}

// PreviousMessage is an earlier delivery to the same provider for the same
// alert, used to build references.
type PreviousMessage struct {
	ID            string
	MessageNumber *int64
	CreatedAt     time.Time
}

// BroadcastRequest is the logical content of one send, independent of
// provider family.
type BroadcastRequest struct {
	Identifier       string
	MessageNumber    string
	Description      string
	Areas            []types.Polygon
	PreviousMessages []PreviousMessage
	Sent             time.Time
	Expires          *time.Time
	Channel          types.BroadcastChannel
}

func areaPayloads(polys []types.Polygon) []AreaPayload {
	out := make([]AreaPayload, 0, len(polys))
	for _, p := range polys {
		out = append(out, AreaPayload{Polygon: p})
	}
	return out
}
