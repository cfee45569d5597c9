package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// LinkTestSubmitter enqueues a link test for one provider.
type LinkTestSubmitter interface {
	SubmitLinkTest(ctx context.Context, provider types.Provider) error
}

// ExpiryCompleter completes broadcasts whose finish time has passed.
type ExpiryCompleter interface {
	CompleteExpired(ctx context.Context) (int, error)
}

// LinkTestService enqueues one link test per enabled provider, paced by a
// token bucket so the proxies are not hit in a burst.
type LinkTestService struct {
	submitter LinkTestSubmitter
	providers []types.Provider
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewLinkTestService creates a LinkTestService submitting at most perSecond
// link tests per second.
func NewLinkTestService(submitter LinkTestSubmitter, providers []types.Provider, perSecond float64, logger *slog.Logger) *LinkTestService {
	return &LinkTestService{
		submitter: submitter,
		providers: providers,
		limiter:   rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:    logger,
	}
}

// TriggerLinkTests returns the number of link tests enqueued. A failed
// submission does not stop the others.
func (s *LinkTestService) TriggerLinkTests(ctx context.Context) (int, error) {
	var (
		sent int
		errs []error
	)
	for _, p := range s.providers {
		if err := s.limiter.Wait(ctx); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.submitter.SubmitLinkTest(ctx, p); err != nil {
			s.logger.ErrorContext(ctx, "failed to enqueue link test", "provider", string(p), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		sent++
	}
	s.logger.InfoContext(ctx, "link tests enqueued", "count", sent, "providers", len(s.providers))
	return sent, errors.Join(errs...)
}

// ExpiryService completes expired broadcasts.
type ExpiryService struct {
	completer ExpiryCompleter
	logger    *slog.Logger
}

// NewExpiryService creates an ExpiryService.
func NewExpiryService(completer ExpiryCompleter, logger *slog.Logger) *ExpiryService {
	return &ExpiryService{completer: completer, logger: logger}
}

// CompleteExpired runs one completion pass.
func (s *ExpiryService) CompleteExpired(ctx context.Context) (int, error) {
	n, err := s.completer.CompleteExpired(ctx)
	if err != nil {
		return n, err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "completed expired broadcasts", "count", n)
	}
	return n, nil
}
