package coordinator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/adforge/core/internal/models"
	"github.com/adforge/core/internal/modules/generation/provider"
	"github.com/adforge/core/internal/modules/storage/hosting"
	"github.com/adforge/core/internal/pkg/metrics"
)

// Service runs the full generation flow: reserve credits, optimize the prompt,
// walk the provider chain, host the output, then settle the ledger. Credits
// are only committed once the asset is durably ours; every failure path
// releases the reservation.
type Service struct {
	credits   creditLedger
	optimizer promptOptimizer
	generator generator
	host      assetHost
	campaigns campaignStore
	collector metrics.Collector
	logger    *zap.Logger
}

func NewService(
	credits creditLedger,
	optimizer promptOptimizer,
	generator generator,
	host assetHost,
	campaigns campaignStore,
	collector metrics.Collector,
	logger *zap.Logger,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		credits:   credits,
		optimizer: optimizer,
		generator: generator,
		host:      host,
		campaigns: campaigns,
		collector: collector,
		logger:    logger,
	}
}

// Generate executes one generation request end to end.
func (s *Service) Generate(ctx context.Context, in GenerateInput) (result *GenerateResult, err error) {
	kind := in.MediaKind
	switch kind {
	case provider.KindText, provider.KindImage, provider.KindVideo:
	default:
		return nil, fmt.Errorf("unknown media kind %q", kind)
	}

	s.collector.GenerationStarted(string(kind))
	defer func() {
		s.collector.GenerationFinished(string(kind), err == nil)
	}()

	// Credits come first: an exhausted balance must never reach a provider.
	entry, err := s.credits.Reserve(ctx, in.UserID, string(kind), &in.CampaignID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if releaseErr := s.credits.Release(context.WithoutCancel(ctx), entry.ID); releaseErr != nil {
				s.logger.Error("release reserved credits",
					zap.String("entry", entry.ID),
					zap.Error(releaseErr),
				)
			}
		}
	}()

	if _, err = s.campaigns.Ensure(ctx, in.CampaignID, in.UserID, in.Platform, in.Language); err != nil {
		return nil, err
	}
	if err = s.campaigns.UpdateStatus(ctx, in.CampaignID, models.CampaignGenerating); err != nil {
		return nil, err
	}

	systemPrompt := ""
	patternsApplied := 0
	if kind == provider.KindText {
		prompt, patterns, optErr := s.optimizer.Optimize(ctx, in.Platform, in.Language, string(kind))
		if optErr != nil {
			// Optimization is an enhancement, never a gate.
			s.logger.Warn("prompt optimization failed", zap.Error(optErr))
		} else {
			systemPrompt = prompt
			patternsApplied = len(patterns)
		}
	}

	out, attempts, err := s.generator.Generate(ctx, kind, provider.Request{
		SystemPrompt: systemPrompt,
		Prompt:       in.Prompt,
		Style:        in.Style,
		ReferenceURL: in.ReferenceURL,
	})
	if err != nil {
		_ = s.campaigns.UpdateStatus(ctx, in.CampaignID, models.CampaignDraft)
		return nil, err
	}

	asset, err := s.hostOutput(ctx, in, out)
	if err != nil {
		_ = s.campaigns.UpdateStatus(ctx, in.CampaignID, models.CampaignDraft)
		return nil, err
	}

	if err = s.campaigns.MarkSuperseded(ctx, in.CampaignID, string(kind), asset.ID); err != nil {
		s.logger.Error("mark superseded assets", zap.Error(err))
		err = nil
	}
	if err = s.campaigns.UpdateStatus(ctx, in.CampaignID, models.CampaignReady); err != nil {
		s.logger.Error("update campaign status", zap.Error(err))
		err = nil
	}

	if err = s.credits.Commit(ctx, entry.ID); err != nil {
		return nil, err
	}

	result = &GenerateResult{
		CampaignID: in.CampaignID,
		MediaKind:  string(kind),
		ProviderID: out.ProviderID,
		Text:       out.Text,
		Asset: &AssetView{
			ID:           asset.ID,
			PermanentURL: asset.PermanentURL,
			StorageTier:  asset.StorageTier,
			ContentType:  asset.ContentType,
			ByteSize:     asset.ByteSize,
		},
		Attempts:        attempts,
		CreditsSpent:    entry.CreditsConsumed,
		PatternsApplied: patternsApplied,
	}
	return result, nil
}

// hostOutput pushes the provider output through the durability pipeline. Text
// is hosted from its own bytes; media arrives as bytes or as a short-lived
// URL the pipeline captures immediately.
func (s *Service) hostOutput(ctx context.Context, in GenerateInput, out *provider.Output) (*models.HostedAssetModel, error) {
	req := hosting.HostRequest{
		CampaignID:       in.CampaignID,
		MediaKind:        string(in.MediaKind),
		SourceProviderID: out.ProviderID,
		SourceURL:        out.URL,
		Bytes:            out.Bytes,
		ContentType:      out.ContentType,
	}
	if in.MediaKind == provider.KindText {
		req.Bytes = []byte(out.Text)
		req.ContentType = "text/plain; charset=utf-8"
		req.SourceURL = ""
	}

	asset, err := s.host.Host(ctx, req)
	if err != nil {
		if errors.Is(err, hosting.ErrHostingExhausted) {
			s.logger.Error("hosting exhausted",
				zap.String("campaign", in.CampaignID),
				zap.String("media_kind", string(in.MediaKind)),
			)
		}
		return nil, err
	}
	return asset, nil
}
