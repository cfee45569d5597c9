package cbc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"golang.org/x/sync/errgroup"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// CBC targets reachable behind every proxy Lambda.
const (
	TargetA = "cbc_a"
	TargetB = "cbc_b"
)

// maxSuccessStatus is the highest Lambda invoke status treated as success.
const maxSuccessStatus = 299

// LambdaInvoker is the subset of the Lambda client used by Transport.
type LambdaInvoker interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// Endpoint is one (proxy Lambda, CBC target) combination.
type Endpoint struct {
	Lambda string
	Target string
}

// Transport invokes a single provider's proxy Lambdas.
type Transport struct {
	provider  types.Provider
	primary   string
	secondary string
	api       LambdaInvoker
	timeout   time.Duration
	logger    types.Logger
}

// NewTransport creates a Transport. An empty secondary means the provider
// only has a primary proxy.
func NewTransport(provider types.Provider, primary, secondary string, api LambdaInvoker, timeout time.Duration, logger types.Logger) *Transport {
	return &Transport{
		provider:  provider,
		primary:   primary,
		secondary: secondary,
		api:       api,
		timeout:   timeout,
		logger:    logger.With("provider", string(provider)),
	}
}

// Endpoints lists the combinations in failover order: primary/A, primary/B,
// then secondary/A and secondary/B when a secondary exists.
func (t *Transport) Endpoints() []Endpoint {
	eps := []Endpoint{{t.primary, TargetA}, {t.primary, TargetB}}
	if t.secondary != "" {
		eps = append(eps, Endpoint{t.secondary, TargetA}, Endpoint{t.secondary, TargetB})
	}
	return eps
}

// InvokeWithFailover tries each endpoint in order and stops at the first
// success. Individual failures are logged; only exhausting every endpoint
// returns an error, which is always retryable.
func (t *Transport) InvokeWithFailover(ctx context.Context, payload Payload) error {
	eps := t.Endpoints()
	for _, ep := range eps {
		if t.invoke(ctx, ep, payload) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return t.unavailable(err, len(eps))
		}
	}
	return t.unavailable(nil, len(eps))
}

// InvokeAll sends payload to every endpoint concurrently, regardless of
// individual outcomes. It reports the endpoints that failed.
func (t *Transport) InvokeAll(ctx context.Context, payload Payload) error {
	var (
		mu     sync.Mutex
		failed []Endpoint
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, ep := range t.Endpoints() {
		g.Go(func() error {
			if !t.invoke(gctx, ep, payload) {
				mu.Lock()
				failed = append(failed, ep)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) > 0 {
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamCBC,
			fmt.Sprintf("%d of %d %s link test invocations failed", len(failed), len(t.Endpoints()), t.provider),
			nil, map[string]any{"provider": string(t.provider), "failed": failed})
	}
	return nil
}

func (t *Transport) unavailable(cause error, attempts int) error {
	return types.NewAppErrorWithDetails(types.ErrCodeUpstreamCBC,
		fmt.Sprintf("all %d %s endpoints failed", attempts, t.provider),
		cause, map[string]any{"provider": string(t.provider)})
}

// invoke performs one synchronous Lambda call. Success requires no client
// error, a status of at most 299, and no function error.
func (t *Transport) invoke(ctx context.Context, ep Endpoint, payload Payload) bool {
	log := t.logger.With("lambda_name", ep.Lambda, "cbc_target", ep.Target, "message_type", payload.MessageType)

	payload.CBCTarget = ep.Target
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error("failed to encode cbc payload", "error", err)
		return false
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	out, err := t.api.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(ep.Lambda),
		InvocationType: lambdatypes.InvocationTypeRequestResponse,
		Payload:        body,
	})
	switch {
	case err != nil:
		log.Error("cbc proxy invoke failed", "error", err)
		return false
	case out.StatusCode > maxSuccessStatus:
		log.Error("cbc proxy returned error status", "status_code", out.StatusCode)
		return false
	case out.FunctionError != nil:
		log.Error("cbc proxy function error", "function_error", aws.ToString(out.FunctionError), "response", string(out.Payload))
		return false
	}
	log.Info("cbc proxy invoke succeeded", "status_code", out.StatusCode)
	return true
}

// IsRetryable reports whether err is a transport failure that should be
// retried with backoff.
func IsRetryable(err error) bool {
	var appErr *types.AppError
	return errors.As(err, &appErr) && appErr.Code == types.ErrCodeUpstreamCBC
}
