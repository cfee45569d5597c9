package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/slack-go/slack"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/config"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func sampleAlert() (*types.Alert, *types.Service) {
	alert := &types.Alert{
		ID:      "alert-1",
		Content: strings.Repeat("a", 99) + "bcdef",
		Areas:   types.Areas{Names: []string{"Bristol", "Bath"}},
	}
	service := &types.Service{
		ID:               "svc-1",
		Name:             "Environment Agency",
		BroadcastChannel: types.ChannelSevere,
	}
	return alert, service
}

func TestNewLiveBroadcastTicket(t *testing.T) {
	alert, service := sampleAlert()
	ticket := NewLiveBroadcastTicket("https://admin.example/", alert, service, []types.Provider{types.ProviderEE, types.ProviderO2})

	if ticket.Subject != "Live broadcast sent" {
		t.Errorf("unexpected subject %q", ticket.Subject)
	}
	for _, want := range []string{
		"https://admin.example/services/svc-1/current-alerts/alert-1",
		"Sent on channel severe to Bristol, Bath.",
		"Providers: ee, o2",
		strings.Repeat("a", 99) + "b...",
	} {
		if !strings.Contains(ticket.Body, want) {
			t.Errorf("ticket body missing %q:\n%s", want, ticket.Body)
		}
	}
	if strings.Contains(ticket.Body, "bcdef") {
		t.Error("content preview should stop at 100 characters")
	}
}

func TestZendeskClient_CreatesPrivateIncident(t *testing.T) {
	var got zendeskTicketRequest
	var user, pass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/tickets.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, _ = r.BasicAuth()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ticket":{"id":42}}`))
	}))
	defer server.Close()

	client := NewZendeskClient(&http.Client{Timeout: time.Second}, ZendeskConfig{
		BaseURL:      server.URL,
		Email:        "support@example.gov.uk",
		APIKey:       "zd-key",
		AdminBaseURL: "https://admin.example",
		Logger:       discardLogger(),
	}, WithSleepFunc(noopSleep))

	alert, service := sampleAlert()
	if err := client.NotifyLiveBroadcast(context.Background(), alert, service, types.AllProviders); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if user != "support@example.gov.uk/token" || pass != "zd-key" {
		t.Errorf("unexpected basic auth %q/%q", user, pass)
	}
	if got.Ticket.Subject != LiveBroadcastSubject || got.Ticket.Comment.Public || got.Ticket.Type != "incident" {
		t.Errorf("unexpected ticket: %+v", got.Ticket)
	}
}

func TestZendeskClient_RejectionIsUpstreamSupportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Couldn't authenticate you"}`))
	}))
	defer server.Close()

	client := NewZendeskClient(&http.Client{}, ZendeskConfig{BaseURL: server.URL, Logger: discardLogger()})
	alert, service := sampleAlert()
	err := client.NotifyLiveBroadcast(context.Background(), alert, service, nil)

	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeUpstreamSupport {
		t.Fatalf("expected upstream support error, got %v", err)
	}
	if !strings.Contains(appErr.Message, "401") {
		t.Errorf("expected status in message, got %q", appErr.Message)
	}
}

type fakeSlack struct {
	channel string
	calls   int
	err     error
}

func (f *fakeSlack) PostMessageContext(_ context.Context, channel string, _ ...slack.MsgOption) (string, string, error) {
	f.channel = channel
	f.calls++
	return channel, "1700000000.000100", f.err
}

func TestSlackNotifier(t *testing.T) {
	poster := &fakeSlack{}
	n := NewSlackNotifier(poster, "C0SUPPORT", "https://admin.example", discardLogger())
	alert, service := sampleAlert()

	if err := n.NotifyLiveBroadcast(context.Background(), alert, service, types.AllProviders); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if poster.channel != "C0SUPPORT" || poster.calls != 1 {
		t.Errorf("unexpected post: %+v", poster)
	}

	poster.err = errors.New("channel_not_found")
	err := n.NotifyLiveBroadcast(context.Background(), alert, service, nil)
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeUpstreamSupport {
		t.Fatalf("expected upstream support error, got %v", err)
	}
}

func TestNewClientRegistry_SelectsBackend(t *testing.T) {
	base := config.Config{Environment: "prod", Support: config.SupportConfig{AdminBaseURL: "https://admin.example"}}

	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantTyp string
	}{
		{"stub backend", func(c *config.Config) { c.Support.Backend = "stub" }, "*external.StubSupportNotifier"},
		{"zendesk", func(c *config.Config) { c.Support.Backend = "zendesk"; c.Support.ZendeskURL = "https://x.zendesk.com" }, "*external.ZendeskClient"},
		{"slack", func(c *config.Config) { c.Support.Backend = "slack"; c.Support.SlackChannel = "C1" }, "*external.SlackNotifier"},
		{"local forces stub", func(c *config.Config) { c.Support.Backend = "zendesk"; c.Environment = "local" }, "*external.StubSupportNotifier"},
		{"test mode forces stub", func(c *config.Config) { c.Support.Backend = "slack"; c.IsTestMode = true }, "*external.StubSupportNotifier"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			reg, err := NewClientRegistry(&cfg, discardLogger(), WithSlackPoster(&fakeSlack{}), WithHTTPClient(&http.Client{Timeout: time.Second}))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := fmt.Sprintf("%T", reg.Support); got != tc.wantTyp {
				t.Errorf("expected %s, got %s", tc.wantTyp, got)
			}
		})
	}
}

func TestStubSupportNotifier(t *testing.T) {
	alert, service := sampleAlert()
	if err := NewStubSupportNotifier("", discardLogger()).NotifyLiveBroadcast(context.Background(), alert, service, nil); err != nil {
		t.Fatalf("stub must never fail: %v", err)
	}
}
