package external

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/slack-go/slack"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/config"
)

// ClientRegistry holds the external clients selected by configuration.
type ClientRegistry struct {
	Support SupportNotifier
}

// RegistryOption configures NewClientRegistry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	httpClient *http.Client
	slack      SlackPoster
}

// WithHTTPClient overrides the HTTP client used by Zendesk.
func WithHTTPClient(c *http.Client) RegistryOption {
	return func(rc *registryConfig) { rc.httpClient = c }
}

// WithSlackPoster overrides the Slack API client.
func WithSlackPoster(p SlackPoster) RegistryOption {
	return func(rc *registryConfig) { rc.slack = p }
}

// NewClientRegistry selects the support backend. Test mode and the local
// environment always get stubs regardless of SUPPORT_BACKEND.
func NewClientRegistry(cfg *config.Config, logger *slog.Logger, opts ...RegistryOption) (*ClientRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rc := &registryConfig{}
	for _, opt := range opts {
		opt(rc)
	}

	backend := cfg.Support.Backend
	if cfg.IsTestMode || cfg.Environment == "local" {
		backend = "stub"
	}
	logger.Info("initializing external clients", "support_backend", backend, "environment", cfg.Environment)

	reg := &ClientRegistry{}
	switch backend {
	case "zendesk":
		httpClient := rc.httpClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: 10 * time.Second}
		}
		reg.Support = NewZendeskClient(httpClient, ZendeskConfig{
			BaseURL:      cfg.Support.ZendeskURL,
			Email:        cfg.Support.ZendeskEmail,
			APIKey:       cfg.Support.ZendeskKey.Unmask(),
			AdminBaseURL: cfg.Support.AdminBaseURL,
			Logger:       logger.With("client", "zendesk"),
		})
	case "slack":
		poster := rc.slack
		if poster == nil {
			poster = slack.New(cfg.Support.SlackToken.Unmask())
		}
		reg.Support = NewSlackNotifier(poster, cfg.Support.SlackChannel, cfg.Support.AdminBaseURL, logger.With("client", "slack"))
	default:
		reg.Support = NewStubSupportNotifier(cfg.Support.AdminBaseURL, logger.With("mode", "stub"))
	}
	return reg, nil
}
