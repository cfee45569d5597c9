package external

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// LiveBroadcastSubject is the subject line of every live broadcast ticket.
const LiveBroadcastSubject = "Live broadcast sent"

const contentPreviewRunes = 100

// LiveBroadcastTicket is the rendered support notification.
type LiveBroadcastTicket struct {
	Subject string
	Body    string
}

// NewLiveBroadcastTicket renders the ticket for alert. The body links to the
// alert in the admin app and previews the first 100 characters of content.
func NewLiveBroadcastTicket(adminBaseURL string, alert *types.Alert, service *types.Service, providers []types.Provider) LiveBroadcastTicket {
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = string(p)
	}
	areas := "no named areas"
	if len(alert.Areas.Names) > 0 {
		areas = strings.Join(alert.Areas.Names, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Broadcast sent by %s\n\n", service.Name)
	fmt.Fprintf(&b, "%s/services/%s/current-alerts/%s\n\n",
		strings.TrimRight(adminBaseURL, "/"), service.ID, alert.ID)
	fmt.Fprintf(&b, "Sent on channel %s to %s.\n", service.BroadcastChannel, areas)
	fmt.Fprintf(&b, "Providers: %s\n\n", strings.Join(names, ", "))
	fmt.Fprintf(&b, "Content starts %q", preview(alert.Content))

	return LiveBroadcastTicket{Subject: LiveBroadcastSubject, Body: b.String()}
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= contentPreviewRunes {
		return s
	}
	return string([]rune(s)[:contentPreviewRunes]) + "..."
}
