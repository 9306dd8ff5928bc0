package hosting

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/adforge/core/internal/models"
	"github.com/adforge/core/internal/pkg/metrics"
)

// ErrHostingExhausted marks an asset whose bytes could not be persisted on any
// tier, including the reference fallback. The generation itself succeeded; the
// caller must not bill for an asset it cannot durably serve.
var ErrHostingExhausted = errors.New("hosting exhausted")

const (
	captureAttempts       = 3
	captureAttemptTimeout = 30 * time.Second
)

// HostRequest describes one raw provider output to persist. Exactly one of
// Bytes or SourceURL is set.
type HostRequest struct {
	CampaignID       string
	MediaKind        string
	SourceProviderID string
	SourceURL        string
	Bytes            []byte
	ContentType      string
}

// Pipeline captures provider output immediately and walks the tier chain
// until one backend accepts the bytes. The permanent URL always points at our
// own storage, never at a provider.
type Pipeline struct {
	db        *gorm.DB
	tiers     []Tier
	collector metrics.Collector
	logger    *zap.Logger
	client    *http.Client
}

func NewPipeline(db *gorm.DB, tiers []Tier, collector metrics.Collector, logger *zap.Logger) *Pipeline {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Pipeline{
		db:        db,
		tiers:     tiers,
		collector: collector,
		logger:    logger,
		client:    &http.Client{Timeout: captureAttemptTimeout},
	}
}

// Host persists one provider output and records the asset row. Capture happens
// before anything else because provider URLs expire within hours.
func (p *Pipeline) Host(ctx context.Context, req HostRequest) (*models.HostedAssetModel, error) {
	payload := req.Bytes
	contentType := req.ContentType
	captureErr := error(nil)

	if len(payload) == 0 {
		if req.SourceURL == "" {
			return nil, fmt.Errorf("host: neither bytes nor source url provided")
		}
		payload, contentType, captureErr = p.capture(ctx, req.SourceURL)
		if captureErr != nil {
			p.logger.Warn("capture failed, trying reference upload",
				zap.String("media_kind", req.MediaKind),
				zap.Error(captureErr),
			)
		}
	}
	if contentType == "" {
		contentType = req.ContentType
	}

	objectKey := BuildObjectKey(req.MediaKind, contentType)

	var (
		permanentURL string
		tierName     string
	)
	if captureErr == nil {
		permanentURL, tierName = p.persist(ctx, objectKey, payload, contentType)
	} else {
		permanentURL, tierName = p.persistByReference(ctx, objectKey, req.SourceURL)
	}
	if permanentURL == "" {
		return nil, fmt.Errorf("%s asset: %w", req.MediaKind, ErrHostingExhausted)
	}

	asset := &models.HostedAssetModel{
		CampaignID:       req.CampaignID,
		MediaKind:        req.MediaKind,
		SourceProviderID: req.SourceProviderID,
		StorageTier:      tierName,
		ObjectKey:        objectKey,
		PermanentURL:     permanentURL,
		ContentType:      contentType,
		ByteSize:         int64(len(payload)),
	}
	if err := p.db.WithContext(ctx).Create(asset).Error; err != nil {
		return nil, fmt.Errorf("record hosted asset: %w", err)
	}

	p.logger.Info("asset hosted",
		zap.String("media_kind", req.MediaKind),
		zap.String("tier", tierName),
		zap.String("object_key", objectKey),
	)
	return asset, nil
}

// capture downloads the source with bounded retries. Backoff doubles from two
// seconds; each attempt gets its own timeout so one stalled read cannot eat
// the whole budget.
func (p *Pipeline) capture(ctx context.Context, sourceURL string) ([]byte, string, error) {
	var lastErr error
	for attempt := 0; attempt < captureAttempts; attempt++ {
		data, contentType, err := p.captureOnce(ctx, sourceURL)
		if err == nil {
			return data, contentType, nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == captureAttempts-1 {
			break
		}

		backoff := time.Duration(2<<attempt) * time.Second // 2s, 4s, 8s
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, "", fmt.Errorf("capture after %d attempts: %w", captureAttempts, lastErr)
}

func (p *Pipeline) captureOnce(ctx context.Context, sourceURL string) ([]byte, string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, captureAttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("capture source: status=%d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// persist walks the tier chain with the already-captured buffer. The same
// bytes go to every tier; nothing is re-downloaded between attempts.
func (p *Pipeline) persist(ctx context.Context, objectKey string, payload []byte, contentType string) (string, string) {
	for _, tier := range p.tiers {
		url, err := tier.Put(ctx, objectKey, payload, contentType)
		if err != nil {
			p.logger.Warn("tier rejected write",
				zap.String("tier", tier.Name()),
				zap.String("object_key", objectKey),
				zap.Error(err),
			)
			continue
		}
		p.collector.TierWrite(tier.Name())
		return url, tier.Name()
	}
	return "", ""
}

func (p *Pipeline) persistByReference(ctx context.Context, objectKey, sourceURL string) (string, string) {
	for _, tier := range p.tiers {
		url, err := tier.PutFromURL(ctx, objectKey, sourceURL)
		if err != nil {
			p.logger.Warn("tier reference upload failed",
				zap.String("tier", tier.Name()),
				zap.String("object_key", objectKey),
				zap.Error(err),
			)
			continue
		}
		p.collector.TierWrite(tier.Name())
		return url, tier.Name()
	}
	return "", ""
}

// LocalTier returns the configured local tier, if any, for static serving and
// promotion jobs.
func (p *Pipeline) LocalTier() *LocalTier {
	for _, tier := range p.tiers {
		if lt, ok := tier.(*LocalTier); ok {
			return lt
		}
	}
	return nil
}

// PromoteLocal re-uploads assets stranded on the local tier to the strongest
// tier that will take them. Run from cron; limit bounds work per tick.
func (p *Pipeline) PromoteLocal(ctx context.Context, limit int) (int, error) {
	local := p.LocalTier()
	if local == nil {
		return 0, nil
	}
	if limit <= 0 {
		limit = 20
	}

	var assets []models.HostedAssetModel
	err := p.db.WithContext(ctx).
		Where("storage_tier = ? AND superseded_by IS NULL", local.Name()).
		Order("created_at ASC").
		Limit(limit).
		Find(&assets).Error
	if err != nil {
		return 0, err
	}

	promoted := 0
	for i := range assets {
		asset := &assets[i]
		data, contentType, err := local.Open(asset.ObjectKey)
		if err != nil {
			p.logger.Warn("promote: cannot read local object",
				zap.String("object_key", asset.ObjectKey),
				zap.Error(err),
			)
			continue
		}

		for _, tier := range p.tiers {
			if tier.Name() == local.Name() {
				break
			}
			url, err := tier.Put(ctx, asset.ObjectKey, data, contentType)
			if err != nil {
				p.logger.Warn("promote: tier rejected write",
					zap.String("tier", tier.Name()),
					zap.String("object_key", asset.ObjectKey),
					zap.Error(err),
				)
				continue
			}

			updates := map[string]interface{}{
				"storage_tier":  tier.Name(),
				"permanent_url": url,
			}
			if err := p.db.WithContext(ctx).Model(asset).Updates(updates).Error; err != nil {
				p.logger.Error("promote: update asset row", zap.Error(err))
				break
			}
			_ = local.Remove(asset.ObjectKey)
			p.collector.TierWrite(tier.Name())
			promoted++
			break
		}
	}
	return promoted, nil
}
