package campaign

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/adforge/core/internal/models"
	"github.com/adforge/core/internal/pkg/pagination"
)

// ErrCampaignNotFound is returned for lookups of unknown or foreign campaigns.
var ErrCampaignNotFound = errors.New("campaign not found")

// Service is the thin campaign view this core keeps. Full campaign CRUD lives
// upstream; the pipeline only needs ownership checks, status transitions, and
// the asset list.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Get fetches a campaign owned by the given user.
func (s *Service) Get(ctx context.Context, campaignID, ownerID string) (*models.CampaignModel, error) {
	var campaign models.CampaignModel
	err := s.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", campaignID, ownerID).
		First(&campaign).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// Ensure creates the campaign row when the upstream service has not synced it
// yet. Generation must not fail because a webhook raced us.
func (s *Service) Ensure(ctx context.Context, campaignID, ownerID, platform, language string) (*models.CampaignModel, error) {
	campaign, err := s.Get(ctx, campaignID, ownerID)
	if err == nil {
		return campaign, nil
	}
	if !errors.Is(err, ErrCampaignNotFound) {
		return nil, err
	}

	campaign = &models.CampaignModel{
		OwnerID:  ownerID,
		Name:     campaignID,
		Platform: platform,
		Language: language,
		Status:   models.CampaignDraft,
	}
	campaign.ID = campaignID
	if err := s.db.WithContext(ctx).Create(campaign).Error; err != nil {
		return nil, err
	}
	return campaign, nil
}

// UpdateStatus moves a campaign to a new pipeline state.
func (s *Service) UpdateStatus(ctx context.Context, campaignID string, status models.CampaignStatus) error {
	res := s.db.WithContext(ctx).
		Model(&models.CampaignModel{}).
		Where("id = ?", campaignID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// MarkSuperseded chains a fresh asset onto any live asset of the same media
// kind, so the campaign always has exactly one current asset per kind.
func (s *Service) MarkSuperseded(ctx context.Context, campaignID, mediaKind, newAssetID string) error {
	return s.db.WithContext(ctx).
		Model(&models.HostedAssetModel{}).
		Where("campaign_id = ? AND media_kind = ? AND id <> ? AND superseded_by IS NULL",
			campaignID, mediaKind, newAssetID).
		Update("superseded_by", newAssetID).Error
}

// ListAssets returns the campaign's hosted assets, newest first.
func (s *Service) ListAssets(ctx context.Context, campaignID, ownerID string, q pagination.Query, includeSuperseded bool) ([]models.HostedAssetModel, int64, error) {
	if _, err := s.Get(ctx, campaignID, ownerID); err != nil {
		return nil, 0, err
	}

	query := s.db.WithContext(ctx).
		Model(&models.HostedAssetModel{}).
		Where("campaign_id = ?", campaignID)
	if !includeSuperseded {
		query = query.Where("superseded_by IS NULL")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var assets []models.HostedAssetModel
	err := query.
		Order("created_at DESC").
		Offset(q.Offset()).
		Limit(q.Size).
		Find(&assets).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list assets: %w", err)
	}
	return assets, total, nil
}
