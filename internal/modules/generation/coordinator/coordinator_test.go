package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adforge/core/internal/models"
	"github.com/adforge/core/internal/modules/billing/credits"
	"github.com/adforge/core/internal/modules/generation/fallback"
	"github.com/adforge/core/internal/modules/generation/provider"
	"github.com/adforge/core/internal/modules/storage/hosting"
	"github.com/adforge/core/internal/pkg/metrics"
)

type fakeLedger struct {
	reserveErr error
	reserves   int
	commits    int
	releases   int
}

func (f *fakeLedger) Cost(string) (int64, error) { return 5, nil }

func (f *fakeLedger) Reserve(_ context.Context, userID, mediaKind string, _ *string) (*models.CreditLedgerEntryModel, error) {
	f.reserves++
	if f.reserveErr != nil {
		return nil, f.reserveErr
	}
	entry := &models.CreditLedgerEntryModel{
		UserID:          userID,
		ActionType:      mediaKind,
		CreditsConsumed: 5,
		State:           models.CreditReserved,
	}
	entry.ID = "entry-1"
	return entry, nil
}

func (f *fakeLedger) Commit(context.Context, string) error  { f.commits++; return nil }
func (f *fakeLedger) Release(context.Context, string) error { f.releases++; return nil }

type fakeOptimizer struct {
	calls int
}

func (f *fakeOptimizer) Optimize(context.Context, string, string, string) (string, []models.LearningPatternModel, error) {
	f.calls++
	return "optimized system prompt", []models.LearningPatternModel{{PatternType: "structure"}}, nil
}

type fakeGenerator struct {
	out   *provider.Output
	err   error
	calls int
	req   provider.Request
}

func (f *fakeGenerator) Generate(_ context.Context, _ provider.Kind, req provider.Request) (*provider.Output, []fallback.Attempt, error) {
	f.calls++
	f.req = req
	if f.err != nil {
		return nil, []fallback.Attempt{{ProviderID: "p1", Outcome: fallback.OutcomeError}}, f.err
	}
	return f.out, []fallback.Attempt{{ProviderID: f.out.ProviderID, Outcome: fallback.OutcomeSuccess}}, nil
}

type fakeHost struct {
	err   error
	calls int
	req   hosting.HostRequest
}

func (f *fakeHost) Host(_ context.Context, req hosting.HostRequest) (*models.HostedAssetModel, error) {
	f.calls++
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	asset := &models.HostedAssetModel{
		CampaignID:   req.CampaignID,
		MediaKind:    req.MediaKind,
		StorageTier:  "primary",
		PermanentURL: "https://cdn.example.com/" + req.MediaKind + "/a.bin",
		ContentType:  req.ContentType,
		ByteSize:     int64(len(req.Bytes)),
	}
	asset.ID = "asset-1"
	return asset, nil
}

type fakeCampaigns struct {
	statuses   []models.CampaignStatus
	superseded int
}

func (f *fakeCampaigns) Ensure(_ context.Context, campaignID, ownerID, _, _ string) (*models.CampaignModel, error) {
	c := &models.CampaignModel{OwnerID: ownerID}
	c.ID = campaignID
	return c, nil
}

func (f *fakeCampaigns) UpdateStatus(_ context.Context, _ string, status models.CampaignStatus) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeCampaigns) MarkSuperseded(context.Context, string, string, string) error {
	f.superseded++
	return nil
}

func newTestService(ledger *fakeLedger, opt *fakeOptimizer, gen *fakeGenerator, host *fakeHost, camps *fakeCampaigns) *Service {
	return NewService(ledger, opt, gen, host, camps, metrics.Nop{}, zap.NewNop())
}

func textInput() GenerateInput {
	return GenerateInput{
		UserID:     "user-1",
		CampaignID: "camp-1",
		MediaKind:  provider.KindText,
		Prompt:     "write an ad",
		Platform:   "instagram",
		Language:   "en",
	}
}

func TestGenerate_TextSuccessCommitsCredits(t *testing.T) {
	ledger := &fakeLedger{}
	opt := &fakeOptimizer{}
	gen := &fakeGenerator{out: &provider.Output{ProviderID: "p1", Text: "fresh copy"}}
	host := &fakeHost{}
	camps := &fakeCampaigns{}
	svc := newTestService(ledger, opt, gen, host, camps)

	result, err := svc.Generate(context.Background(), textInput())
	require.NoError(t, err)
	require.Equal(t, "fresh copy", result.Text)
	require.Equal(t, "p1", result.ProviderID)
	require.Equal(t, int64(5), result.CreditsSpent)
	require.Equal(t, 1, result.PatternsApplied)

	require.Equal(t, 1, ledger.commits)
	require.Zero(t, ledger.releases)
	require.Equal(t, "optimized system prompt", gen.req.SystemPrompt)
	require.Equal(t, []byte("fresh copy"), host.req.Bytes)
	require.Equal(t, []models.CampaignStatus{models.CampaignGenerating, models.CampaignReady}, camps.statuses)
	require.Equal(t, 1, camps.superseded)
}

func TestGenerate_InsufficientCreditsSkipsProviders(t *testing.T) {
	ledger := &fakeLedger{reserveErr: credits.ErrInsufficientCredits}
	gen := &fakeGenerator{out: &provider.Output{ProviderID: "p1"}}
	svc := newTestService(ledger, &fakeOptimizer{}, gen, &fakeHost{}, &fakeCampaigns{})

	_, err := svc.Generate(context.Background(), textInput())
	require.ErrorIs(t, err, credits.ErrInsufficientCredits)
	require.Zero(t, gen.calls)
	require.Zero(t, ledger.commits)
	require.Zero(t, ledger.releases)
}

func TestGenerate_ProviderExhaustionReleasesCredits(t *testing.T) {
	ledger := &fakeLedger{}
	gen := &fakeGenerator{err: &fallback.ExhaustedError{MediaKind: provider.KindText}}
	camps := &fakeCampaigns{}
	svc := newTestService(ledger, &fakeOptimizer{}, gen, &fakeHost{}, camps)

	_, err := svc.Generate(context.Background(), textInput())
	require.ErrorIs(t, err, fallback.ErrAllProvidersExhausted)
	require.Equal(t, 1, ledger.releases)
	require.Zero(t, ledger.commits)
	require.Equal(t, models.CampaignDraft, camps.statuses[len(camps.statuses)-1])
}

func TestGenerate_HostingExhaustionReleasesCredits(t *testing.T) {
	ledger := &fakeLedger{}
	gen := &fakeGenerator{out: &provider.Output{ProviderID: "p1", URL: "https://cdn.vendor.example/tmp.png", ContentType: "image/png"}}
	host := &fakeHost{err: hosting.ErrHostingExhausted}
	svc := newTestService(ledger, &fakeOptimizer{}, gen, host, &fakeCampaigns{})

	in := textInput()
	in.MediaKind = provider.KindImage

	_, err := svc.Generate(context.Background(), in)
	require.ErrorIs(t, err, hosting.ErrHostingExhausted)
	require.Equal(t, 1, ledger.releases)
	require.Zero(t, ledger.commits)
}

func TestGenerate_ImageSkipsOptimizerAndKeepsProviderURLOut(t *testing.T) {
	ledger := &fakeLedger{}
	opt := &fakeOptimizer{}
	gen := &fakeGenerator{out: &provider.Output{ProviderID: "img-1", URL: "https://cdn.vendor.example/tmp.png", ContentType: "image/png"}}
	host := &fakeHost{}
	svc := newTestService(ledger, opt, gen, host, &fakeCampaigns{})

	in := textInput()
	in.MediaKind = provider.KindImage

	result, err := svc.Generate(context.Background(), in)
	require.NoError(t, err)
	require.Zero(t, opt.calls)
	require.NotEqual(t, gen.out.URL, result.Asset.PermanentURL)
	require.Equal(t, "https://cdn.vendor.example/tmp.png", host.req.SourceURL)
}

// balanceLedger enforces a real credit limit under a mutex, so concurrent
// generations contend the way transactions do on the locked account row.
type balanceLedger struct {
	mu       sync.Mutex
	limit    int64
	cost     int64
	used     int64
	reserved map[string]int64
	commits  int
	nextID   int
}

func newBalanceLedger(limit, cost int64) *balanceLedger {
	return &balanceLedger{limit: limit, cost: cost, reserved: map[string]int64{}}
}

func (l *balanceLedger) Cost(string) (int64, error) { return l.cost, nil }

func (l *balanceLedger) Reserve(_ context.Context, userID, mediaKind string, _ *string) (*models.CreditLedgerEntryModel, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.used+l.cost > l.limit {
		return nil, credits.ErrInsufficientCredits
	}
	l.used += l.cost
	l.nextID++
	entry := &models.CreditLedgerEntryModel{
		UserID:          userID,
		ActionType:      mediaKind,
		CreditsConsumed: l.cost,
		State:           models.CreditReserved,
	}
	entry.ID = fmt.Sprintf("entry-%d", l.nextID)
	l.reserved[entry.ID] = l.cost
	return entry, nil
}

func (l *balanceLedger) Commit(_ context.Context, entryID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.reserved[entryID]; !ok {
		return fmt.Errorf("entry %s is not reserved", entryID)
	}
	delete(l.reserved, entryID)
	l.commits++
	return nil
}

func (l *balanceLedger) Release(_ context.Context, entryID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cost, ok := l.reserved[entryID]; ok {
		l.used -= cost
		delete(l.reserved, entryID)
	}
	return nil
}

type noopOptimizer struct{}

func (noopOptimizer) Optimize(context.Context, string, string, string) (string, []models.LearningPatternModel, error) {
	return "", nil, nil
}

type noopGenerator struct{}

func (noopGenerator) Generate(_ context.Context, _ provider.Kind, _ provider.Request) (*provider.Output, []fallback.Attempt, error) {
	return &provider.Output{ProviderID: "p1", Text: "copy"},
		[]fallback.Attempt{{ProviderID: "p1", Outcome: fallback.OutcomeSuccess}}, nil
}

type noopHost struct{}

func (noopHost) Host(_ context.Context, req hosting.HostRequest) (*models.HostedAssetModel, error) {
	asset := &models.HostedAssetModel{
		CampaignID:   req.CampaignID,
		MediaKind:    req.MediaKind,
		StorageTier:  "primary",
		PermanentURL: "https://cdn.example.com/a.txt",
		ContentType:  req.ContentType,
	}
	asset.ID = "asset-1"
	return asset, nil
}

type noopCampaigns struct{}

func (noopCampaigns) Ensure(_ context.Context, campaignID, ownerID, _, _ string) (*models.CampaignModel, error) {
	c := &models.CampaignModel{OwnerID: ownerID}
	c.ID = campaignID
	return c, nil
}

func (noopCampaigns) UpdateStatus(context.Context, string, models.CampaignStatus) error {
	return nil
}

func (noopCampaigns) MarkSuperseded(context.Context, string, string, string) error { return nil }

func TestGenerate_ConcurrentRequestsCommitExactlyFloorOfBalance(t *testing.T) {
	// limit 23, cost 5: exactly floor(23/5) = 4 requests may commit.
	ledger := newBalanceLedger(23, 5)
	svc := NewService(ledger, noopOptimizer{}, noopGenerator{}, noopHost{}, noopCampaigns{}, metrics.Nop{}, zap.NewNop())

	const workers = 16
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Generate(context.Background(), textInput())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded, rejected := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, credits.ErrInsufficientCredits):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	require.Equal(t, 4, succeeded)
	require.Equal(t, workers-4, rejected)
	require.Equal(t, 4, ledger.commits)
	require.Empty(t, ledger.reserved)
	require.Equal(t, int64(20), ledger.used)
}

func TestGenerate_UnknownMediaKindRejectedBeforeReserve(t *testing.T) {
	ledger := &fakeLedger{}
	svc := newTestService(ledger, &fakeOptimizer{}, &fakeGenerator{out: &provider.Output{}}, &fakeHost{}, &fakeCampaigns{})

	in := textInput()
	in.MediaKind = "audio"

	_, err := svc.Generate(context.Background(), in)
	require.Error(t, err)
	require.Zero(t, ledger.reserves)
}
