package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/adforge/core/internal/config"
	"github.com/adforge/core/internal/modules/generation/provider"
	"github.com/adforge/core/internal/pkg/metrics"
)

// ErrAllProvidersExhausted marks a request for which every provider in the
// chain failed. Wrap it with ExhaustedError to carry attempt details.
var ErrAllProvidersExhausted = errors.New("all providers exhausted")

// AttemptOutcome labels how a single provider attempt ended.
type AttemptOutcome string

const (
	OutcomeSuccess AttemptOutcome = "success"
	OutcomeTimeout AttemptOutcome = "timeout"
	OutcomeError   AttemptOutcome = "error"
)

// Attempt records one provider call for the caller-facing failure report.
type Attempt struct {
	ProviderID  string         `json:"providerId"`
	MediaKind   string         `json:"mediaKind"`
	StartedAt   time.Time      `json:"startedAt"`
	Duration    time.Duration  `json:"-"`
	Outcome     AttemptOutcome `json:"outcome"`
	ErrorDetail string         `json:"errorDetail,omitempty"`
}

// ExhaustedError reports that the full chain for a media kind failed, with the
// per-attempt record callers surface to the client.
type ExhaustedError struct {
	MediaKind provider.Kind
	Attempts  []Attempt
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %s providers exhausted after %d attempts", e.MediaKind, len(e.Attempts))
}

func (e *ExhaustedError) Unwrap() error { return ErrAllProvidersExhausted }

// Orchestrator walks a provider chain in order, applying a per-attempt timeout
// and stopping at the first success. A provider failure never aborts the
// request; only chain exhaustion does.
type Orchestrator struct {
	chains    provider.Chains
	timeouts  config.TimeoutsConfig
	collector metrics.Collector
	logger    *zap.Logger
}

func NewOrchestrator(chains provider.Chains, timeouts config.TimeoutsConfig, collector metrics.Collector, logger *zap.Logger) *Orchestrator {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Orchestrator{
		chains:    chains,
		timeouts:  timeouts,
		collector: collector,
		logger:    logger,
	}
}

// Generate runs the chain for the request's media kind. On success it returns
// the first provider output plus the attempt trail so far; on exhaustion it
// returns an ExhaustedError carrying every attempt.
func (o *Orchestrator) Generate(ctx context.Context, kind provider.Kind, req provider.Request) (*provider.Output, []Attempt, error) {
	chain := o.chains[kind]
	if len(chain) == 0 {
		return nil, nil, &ExhaustedError{MediaKind: kind}
	}

	baseTimeout := o.attemptTimeout(kind)
	attempts := make([]Attempt, 0, len(chain))

	for _, p := range chain {
		attempt := Attempt{
			ProviderID: p.ID(),
			MediaKind:  string(kind),
			StartedAt:  time.Now(),
		}

		// Submit-and-poll providers run until their poll ceiling; the attempt
		// timeout must not undercut it. Synchronous providers keep the base.
		timeout := baseTimeout
		if long, ok := p.(longAttempt); ok {
			if ceiling := long.AttemptCeiling(); ceiling > timeout {
				timeout = ceiling
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		out, err := p.Submit(attemptCtx, req)
		cancel()

		attempt.Duration = time.Since(attempt.StartedAt)

		if err == nil && out != nil {
			attempt.Outcome = OutcomeSuccess
			attempts = append(attempts, attempt)
			o.logger.Info("provider succeeded",
				zap.String("provider", p.ID()),
				zap.String("media_kind", string(kind)),
				zap.Duration("took", attempt.Duration),
			)
			return out, attempts, nil
		}

		if err == nil {
			err = errors.New("provider returned no output")
		}
		attempt.Outcome = OutcomeError
		if errors.Is(err, context.DeadlineExceeded) {
			attempt.Outcome = OutcomeTimeout
		}
		attempt.ErrorDetail = err.Error()
		attempts = append(attempts, attempt)

		o.collector.ProviderFailure(p.ID())
		o.logger.Warn("provider failed, falling through",
			zap.String("provider", p.ID()),
			zap.String("media_kind", string(kind)),
			zap.String("outcome", string(attempt.Outcome)),
			zap.Error(err),
		)

		// The caller walked away; stop burning the rest of the chain.
		if ctx.Err() != nil {
			break
		}
	}

	return nil, attempts, &ExhaustedError{MediaKind: kind, Attempts: attempts}
}

// longAttempt is implemented by providers whose single attempt legitimately
// outlasts the per-kind timeout, such as submit-and-poll video backends.
type longAttempt interface {
	AttemptCeiling() time.Duration
}

func (o *Orchestrator) attemptTimeout(kind provider.Kind) time.Duration {
	seconds := 0
	switch kind {
	case provider.KindText:
		seconds = o.timeouts.TextSeconds
	case provider.KindImage:
		seconds = o.timeouts.ImageSeconds
	case provider.KindVideo:
		seconds = o.timeouts.VideoSeconds
	}
	if seconds <= 0 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}
