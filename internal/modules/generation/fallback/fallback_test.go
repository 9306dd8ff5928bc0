package fallback

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adforge/core/internal/config"
	"github.com/adforge/core/internal/modules/generation/provider"
	"github.com/adforge/core/internal/pkg/metrics"
)

type stubProvider struct {
	id    string
	kind  provider.Kind
	out   *provider.Output
	err   error
	calls int
}

func (s *stubProvider) ID() string          { return s.id }
func (s *stubProvider) Kind() provider.Kind { return s.kind }

func (s *stubProvider) Submit(context.Context, provider.Request) (*provider.Output, error) {
	s.calls++
	return s.out, s.err
}

func testTimeouts() config.TimeoutsConfig {
	return config.TimeoutsConfig{TextSeconds: 30, ImageSeconds: 60, VideoSeconds: 180, VideoCeilingSeconds: 300}
}

func TestGenerate_FirstProviderWins(t *testing.T) {
	p1 := &stubProvider{id: "p1", kind: provider.KindText, out: &provider.Output{ProviderID: "p1", Text: "copy"}}
	p2 := &stubProvider{id: "p2", kind: provider.KindText, out: &provider.Output{ProviderID: "p2", Text: "unused"}}
	o := NewOrchestrator(provider.Chains{provider.KindText: {p1, p2}}, testTimeouts(), metrics.Nop{}, zap.NewNop())

	out, attempts, err := o.Generate(context.Background(), provider.KindText, provider.Request{Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, "p1", out.ProviderID)
	require.Len(t, attempts, 1)
	require.Equal(t, OutcomeSuccess, attempts[0].Outcome)
	require.Zero(t, p2.calls)
}

func TestGenerate_FallsThroughToNextProvider(t *testing.T) {
	p1 := &stubProvider{id: "p1", kind: provider.KindText, err: fmt.Errorf("wrapped: %w", context.DeadlineExceeded)}
	p2 := &stubProvider{id: "p2", kind: provider.KindText, out: &provider.Output{ProviderID: "p2", Text: "copy"}}
	o := NewOrchestrator(provider.Chains{provider.KindText: {p1, p2}}, testTimeouts(), metrics.Nop{}, zap.NewNop())

	out, attempts, err := o.Generate(context.Background(), provider.KindText, provider.Request{Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, "p2", out.ProviderID)
	require.Len(t, attempts, 2)
	require.Equal(t, OutcomeTimeout, attempts[0].Outcome)
	require.Equal(t, "p1", attempts[0].ProviderID)
	require.Equal(t, OutcomeSuccess, attempts[1].Outcome)
}

func TestGenerate_AllProvidersExhausted(t *testing.T) {
	p1 := &stubProvider{id: "p1", kind: provider.KindImage, err: errors.New("rate limited")}
	p2 := &stubProvider{id: "p2", kind: provider.KindImage, err: errors.New("boom")}
	p3 := &stubProvider{id: "p3", kind: provider.KindImage, err: errors.New("down")}
	o := NewOrchestrator(provider.Chains{provider.KindImage: {p1, p2, p3}}, testTimeouts(), metrics.Nop{}, zap.NewNop())

	out, attempts, err := o.Generate(context.Background(), provider.KindImage, provider.Request{Prompt: "hi"})
	require.Nil(t, out)
	require.Len(t, attempts, 3)
	require.ErrorIs(t, err, ErrAllProvidersExhausted)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, provider.KindImage, exhausted.MediaKind)
	require.Len(t, exhausted.Attempts, 3)
	require.Equal(t, "rate limited", exhausted.Attempts[0].ErrorDetail)
	require.Equal(t, OutcomeError, exhausted.Attempts[1].Outcome)
	require.Equal(t, 1, p1.calls)
	require.Equal(t, 1, p2.calls)
	require.Equal(t, 1, p3.calls)
}

func TestGenerate_EmptyChainIsExhausted(t *testing.T) {
	o := NewOrchestrator(provider.Chains{}, testTimeouts(), metrics.Nop{}, zap.NewNop())

	_, _, err := o.Generate(context.Background(), provider.KindVideo, provider.Request{Prompt: "hi"})
	require.ErrorIs(t, err, ErrAllProvidersExhausted)
}

func TestGenerate_CancelledCallerStopsChain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p1 := &stubProvider{id: "p1", kind: provider.KindText, err: errors.New("boom")}
	p2 := &stubProvider{id: "p2", kind: provider.KindText, out: &provider.Output{ProviderID: "p2", Text: "copy"}}
	o := NewOrchestrator(provider.Chains{provider.KindText: {p1, p2}}, testTimeouts(), metrics.Nop{}, zap.NewNop())

	cancel()
	_, attempts, err := o.Generate(ctx, provider.KindText, provider.Request{Prompt: "hi"})
	require.Error(t, err)
	require.Len(t, attempts, 1)
	require.Zero(t, p2.calls)
}

func TestAttemptTimeout_PerKind(t *testing.T) {
	o := NewOrchestrator(provider.Chains{}, testTimeouts(), metrics.Nop{}, zap.NewNop())
	require.Equal(t, "30s", o.attemptTimeout(provider.KindText).String())
	require.Equal(t, "1m0s", o.attemptTimeout(provider.KindImage).String())
	require.Equal(t, "3m0s", o.attemptTimeout(provider.KindVideo).String())
}

// deadlineStub records the deadline of the context each Submit receives.
type deadlineStub struct {
	stubProvider
	window time.Duration
}

func (s *deadlineStub) Submit(ctx context.Context, req provider.Request) (*provider.Output, error) {
	if deadline, ok := ctx.Deadline(); ok {
		s.window = time.Until(deadline)
	}
	return s.stubProvider.Submit(ctx, req)
}

// pollStub is a deadlineStub that declares a long attempt ceiling, the way a
// submit-and-poll video backend does.
type pollStub struct {
	deadlineStub
	ceiling time.Duration
}

func (s *pollStub) AttemptCeiling() time.Duration { return s.ceiling }

func TestGenerate_CeilingRaisesOnlyPollProviderTimeout(t *testing.T) {
	sync := &deadlineStub{stubProvider: stubProvider{id: "sync-video", kind: provider.KindVideo, err: errors.New("over capacity")}}
	poll := &pollStub{
		deadlineStub: deadlineStub{stubProvider: stubProvider{id: "poll-video", kind: provider.KindVideo, out: &provider.Output{ProviderID: "poll-video", URL: "https://vendor.example/v.mp4"}}},
		ceiling:      5 * time.Minute,
	}
	o := NewOrchestrator(provider.Chains{provider.KindVideo: {sync, poll}}, testTimeouts(), metrics.Nop{}, zap.NewNop())

	out, attempts, err := o.Generate(context.Background(), provider.KindVideo, provider.Request{Prompt: "demo"})
	require.NoError(t, err)
	require.Equal(t, "poll-video", out.ProviderID)
	require.Len(t, attempts, 2)

	// The synchronous vendor keeps the per-kind window; only the polling
	// vendor gets the ceiling.
	require.InDelta(t, (3 * time.Minute).Seconds(), sync.window.Seconds(), 5)
	require.InDelta(t, (5 * time.Minute).Seconds(), poll.window.Seconds(), 5)
}
