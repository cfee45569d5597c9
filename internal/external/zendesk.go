package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// ZendeskConfig holds credentials for the Zendesk tickets API.
type ZendeskConfig struct {
	BaseURL      string
	Email        string
	APIKey       string
	AdminBaseURL string
	Logger       *slog.Logger
}

// ZendeskClient creates internal incident tickets through the Zendesk API.
type ZendeskClient struct {
	base   *BaseClient
	cfg    ZendeskConfig
	logger *slog.Logger
}

// NewZendeskClient creates a ZendeskClient.
func NewZendeskClient(httpClient *http.Client, cfg ZendeskConfig, opts ...BaseClientOption) *ZendeskClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ZendeskClient{
		base:   NewBaseClient(httpClient, "zendesk", DefaultRetryPolicy(), "emergency-alerts-api", opts...),
		cfg:    cfg,
		logger: logger,
	}
}

type zendeskTicketRequest struct {
	Ticket zendeskTicket `json:"ticket"`
}

type zendeskTicket struct {
	Subject  string         `json:"subject"`
	Comment  zendeskComment `json:"comment"`
	Type     string         `json:"type"`
	Priority string         `json:"priority"`
	Tags     []string       `json:"tags"`
}

type zendeskComment struct {
	Body   string `json:"body"`
	Public bool   `json:"public"`
}

type zendeskTicketResponse struct {
	Ticket struct {
		ID int64 `json:"id"`
	} `json:"ticket"`
}

// NotifyLiveBroadcast implements SupportNotifier.
func (c *ZendeskClient) NotifyLiveBroadcast(ctx context.Context, alert *types.Alert, service *types.Service, providers []types.Provider) error {
	ticket := NewLiveBroadcastTicket(c.cfg.AdminBaseURL, alert, service, providers)
	payload, err := json.Marshal(zendeskTicketRequest{Ticket: zendeskTicket{
		Subject:  ticket.Subject,
		Comment:  zendeskComment{Body: ticket.Body, Public: false},
		Type:     "incident",
		Priority: "normal",
		Tags:     []string{"emergency_alerts", "live_broadcast"},
	}})
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode zendesk ticket", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/v2/tickets.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build zendesk request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.Email+"/token", c.cfg.APIKey)

	resp, err := c.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return types.NewAppError(types.ErrCodeUpstreamSupport,
			fmt.Sprintf("zendesk rejected ticket with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var created zendeskTicketResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		c.logger.WarnContext(ctx, "zendesk ticket created but response unreadable", "error", err)
		return nil
	}
	c.logger.InfoContext(ctx, "zendesk ticket created",
		"ticket_id", created.Ticket.ID,
		"broadcast_message_id", alert.ID,
	)
	return nil
}
