// Package config defines the process configuration for the broadcast dispatch
// services. Configuration is loaded once at process initialization (Lambda
// cold start or daemon boot) and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format fails startup.
package config

import (
	"strings"
	"time"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// SecretString is an alias for types.SecretString so config consumers do not
// need to import types just to declare secrets.
type SecretString = types.SecretString

// ProductionEnv is the APP_ENV value for the live deployment.
const ProductionEnv = "prod"

// Config is the top-level configuration struct. Sub-components receive only
// the config subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"emergency-alerts-broadcast"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	IsTestMode  bool   `envconfig:"IS_TEST_MODE" default:"false"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	CBC           CBCConfig
	Support       SupportConfig
	Scheduler     SchedulerConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// IsProduction reports whether this is the live deployment.
func (c *Config) IsProduction() bool { return c.Environment == ProductionEnv }

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"eu-west-2"`

	BroadcastQueue string `envconfig:"SQS_BROADCASTS" validate:"required,url"`
	DlqURL         string `envconfig:"SQS_DLQ" validate:"required,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// CBCConfig configures the provider proxy Lambdas. An empty secondary name
// means the provider has no secondary endpoint; Vodafone has none by default.
type CBCConfig struct {
	ProxyEnabled  bool          `envconfig:"CBC_PROXY_ENABLED" default:"false"`
	EnabledCBCs   []string      `envconfig:"ENABLED_CBCS" default:"ee,three,o2,vodafone"`
	InvokeTimeout time.Duration `envconfig:"CBC_INVOKE_TIMEOUT" default:"30s"`

	EEPrimary         string `envconfig:"CBC_EE_PRIMARY_LAMBDA" default:"ee-1-proxy"`
	EESecondary       string `envconfig:"CBC_EE_SECONDARY_LAMBDA" default:"ee-2-proxy"`
	ThreePrimary      string `envconfig:"CBC_THREE_PRIMARY_LAMBDA" default:"three-1-proxy"`
	ThreeSecondary    string `envconfig:"CBC_THREE_SECONDARY_LAMBDA" default:"three-2-proxy"`
	O2Primary         string `envconfig:"CBC_O2_PRIMARY_LAMBDA" default:"o2-1-proxy"`
	O2Secondary       string `envconfig:"CBC_O2_SECONDARY_LAMBDA" default:"o2-2-proxy"`
	VodafonePrimary   string `envconfig:"CBC_VODAFONE_PRIMARY_LAMBDA" default:"vodafone-1-proxy"`
	VodafoneSecondary string `envconfig:"CBC_VODAFONE_SECONDARY_LAMBDA"`
}

// LambdaNames pairs the primary and secondary proxy function names of one provider.
type LambdaNames struct {
	Primary   string
	Secondary string
}

// Lambdas returns the proxy function names for provider p.
func (c CBCConfig) Lambdas(p types.Provider) (LambdaNames, bool) {
	switch p {
	case types.ProviderEE:
		return LambdaNames{c.EEPrimary, c.EESecondary}, true
	case types.ProviderThree:
		return LambdaNames{c.ThreePrimary, c.ThreeSecondary}, true
	case types.ProviderO2:
		return LambdaNames{c.O2Primary, c.O2Secondary}, true
	case types.ProviderVodafone:
		return LambdaNames{c.VodafonePrimary, c.VodafoneSecondary}, true
	}
	return LambdaNames{}, false
}

// EnabledProviders parses ENABLED_CBCS, dropping unknown names and duplicates
// while keeping the configured order.
func (c CBCConfig) EnabledProviders() []types.Provider {
	seen := make(map[types.Provider]bool, len(c.EnabledCBCs))
	var out []types.Provider
	for _, raw := range c.EnabledCBCs {
		p, ok := types.ParseProvider(raw)
		if !ok || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// SupportConfig selects and configures the support-ticket backend.
type SupportConfig struct {
	Backend      string       `envconfig:"SUPPORT_BACKEND" default:"stub" validate:"oneof=zendesk slack stub"`
	ZendeskURL   string       `envconfig:"ZENDESK_API_URL" validate:"required_if=Backend zendesk"`
	ZendeskEmail string       `envconfig:"ZENDESK_EMAIL"`
	ZendeskKey   SecretString `envconfig:"ZENDESK_API_KEY"`
	SlackToken   SecretString `envconfig:"SLACK_BOT_TOKEN"`
	SlackChannel string       `envconfig:"SLACK_CHANNEL" validate:"required_if=Backend slack"`
	AdminBaseURL string       `envconfig:"ADMIN_BASE_URL" default:"http://localhost:6012" validate:"url"`
}

// SchedulerConfig configures the periodic jobs.
type SchedulerConfig struct {
	LinkTestSchedule string  `envconfig:"LINK_TEST_SCHEDULE" default:"@every 15m"`
	ExpirySchedule   string  `envconfig:"EXPIRY_SCHEDULE" default:"@every 1m"`
	LinkTestRate     float64 `envconfig:"LINK_TEST_RATE" default:"2" validate:"gt=0"`
	Timezone         string  `envconfig:"SCHEDULER_TZ" default:"Europe/London"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"EmergencyAlerts"`
	MetricsEnabled  bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)

// normalizeList trims whitespace around comma-separated envconfig entries.
func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
