package coordinator

import (
	"context"

	"github.com/adforge/core/internal/models"
	"github.com/adforge/core/internal/modules/generation/fallback"
	"github.com/adforge/core/internal/modules/generation/provider"
	"github.com/adforge/core/internal/modules/storage/hosting"
)

// The coordinator depends on narrow interfaces so the full generate flow can
// be driven end to end with fakes.

type creditLedger interface {
	Cost(mediaKind string) (int64, error)
	Reserve(ctx context.Context, userID, mediaKind string, campaignID *string) (*models.CreditLedgerEntryModel, error)
	Commit(ctx context.Context, entryID string) error
	Release(ctx context.Context, entryID string) error
}

type promptOptimizer interface {
	Optimize(ctx context.Context, platform, language, contentType string) (string, []models.LearningPatternModel, error)
}

type generator interface {
	Generate(ctx context.Context, kind provider.Kind, req provider.Request) (*provider.Output, []fallback.Attempt, error)
}

type assetHost interface {
	Host(ctx context.Context, req hosting.HostRequest) (*models.HostedAssetModel, error)
}

type campaignStore interface {
	Ensure(ctx context.Context, campaignID, ownerID, platform, language string) (*models.CampaignModel, error)
	UpdateStatus(ctx context.Context, campaignID string, status models.CampaignStatus) error
	MarkSuperseded(ctx context.Context, campaignID, mediaKind, newAssetID string) error
}

// GenerateInput is one generation request after authentication.
type GenerateInput struct {
	UserID       string
	CampaignID   string
	MediaKind    provider.Kind
	Prompt       string
	Style        string
	Platform     string
	Language     string
	ReferenceURL string
}

// AssetView is the caller-facing slice of a hosted asset.
type AssetView struct {
	ID           string `json:"id"`
	PermanentURL string `json:"permanentUrl"`
	StorageTier  string `json:"storageTier"`
	ContentType  string `json:"contentType"`
	ByteSize     int64  `json:"byteSize"`
}

// GenerateResult reports a completed generation.
type GenerateResult struct {
	CampaignID      string             `json:"campaignId"`
	MediaKind       string             `json:"mediaKind"`
	ProviderID      string             `json:"providerId"`
	Text            string             `json:"text,omitempty"`
	Asset           *AssetView         `json:"asset,omitempty"`
	Attempts        []fallback.Attempt `json:"attempts"`
	CreditsSpent    int64              `json:"creditsSpent"`
	PatternsApplied int                `json:"patternsApplied"`
}
